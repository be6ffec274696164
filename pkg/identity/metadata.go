package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/backoffice/pkg/auth"
)

// MetadataStore pushes per-user metadata to the identity provider.
type MetadataStore interface {
	SetRole(ctx context.Context, userID string, role auth.Role) error
}

// HTTPMetadataStore writes user metadata over the provider's REST API.
type HTTPMetadataStore struct {
	baseURL string
	token   string
	client  *http.Client
	log     logrus.FieldLogger
}

// NewHTTPMetadataStore creates a metadata store against baseURL,
// authenticating with the given API token.
func NewHTTPMetadataStore(baseURL, token string, log logrus.FieldLogger) *HTTPMetadataStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPMetadataStore{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type roleMetadata struct {
	PrivateMetadata struct {
		Role auth.Role `json:"role"`
	} `json:"private_metadata"`
}

// SetRole writes the user's role into their provider metadata.
func (s *HTTPMetadataStore) SetRole(ctx context.Context, userID string, role auth.Role) error {
	var payload roleMetadata
	payload.PrivateMetadata.Role = role
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	url := fmt.Sprintf("%s/users/%s/metadata", s.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"status":  resp.StatusCode,
		}).Warn("identity provider rejected metadata update")
		return fmt.Errorf("metadata update returned status %d", resp.StatusCode)
	}
	return nil
}

// NopMetadataStore discards role updates. Used when no provider
// metadata endpoint is configured.
type NopMetadataStore struct{}

// SetRole is a no-op.
func (NopMetadataStore) SetRole(context.Context, string, auth.Role) error { return nil }
