package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/backoffice/pkg/auth"
)

// Verifier turns a bearer token into a verified principal.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (auth.Principal, error)
}

// OIDCConfig configures the OIDC verifier.
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// CacheSize and CacheTTL bound the verified-principal cache.
	// Zero values select the defaults.
	CacheSize int
	CacheTTL  time.Duration
}

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = time.Minute
)

// OIDCVerifier verifies ID tokens against an OpenID Connect provider
// and maps their claims to principals. Verified principals are cached
// per raw token for a short TTL.
type OIDCVerifier struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	cache        *expirable.LRU[string, auth.Principal]
}

// NewOIDCVerifier discovers the provider and builds a verifier.
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		cache: expirable.NewLRU[string, auth.Principal](size, nil, ttl),
	}, nil
}

// Verify checks rawToken and maps its claims to a principal. The TTL
// on the cache is short enough that revocation at the provider is
// observed promptly; membership and permission state are never cached
// here.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (auth.Principal, error) {
	if p, ok := v.cache.Get(rawToken); ok {
		return p, nil
	}

	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("failed to verify token: %w", err)
	}

	var claims struct {
		Subject    string `json:"sub"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return auth.Principal{}, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Email == "" {
		return auth.Principal{}, fmt.Errorf("token carries no email claim")
	}

	p := auth.Principal{
		ID:        claims.Subject,
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		AvatarURL: claims.Picture,
	}
	v.cache.Add(rawToken, p)
	return p, nil
}

// InitiateLogin redirects to the provider's authorization endpoint.
func (v *OIDCVerifier) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) {
	http.Redirect(w, r, v.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusFound)
}

// Exchange trades an authorization code for a verified principal.
func (v *OIDCVerifier) Exchange(ctx context.Context, code string) (auth.Principal, error) {
	token, err := v.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("failed to exchange code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return auth.Principal{}, fmt.Errorf("missing id_token in token response")
	}
	return v.Verify(ctx, rawIDToken)
}
