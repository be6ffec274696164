package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/backoffice/pkg/access"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/contextkeys"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/routing"
	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

// InitUser creates or refreshes the caller's user row from their
// verified identity.
func (s *Server) InitUser(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "no verified principal")
		return
	}

	user, err := s.store.UpsertUser(r.Context(), p, "")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// GetAuthContext resolves the caller's effective tenant view.
func (s *Server) GetAuthContext(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "no verified principal")
		return
	}

	authCtx, err := s.resolver.ResolveContext(r.Context(), p.Email)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ContextResolutionsTotal.WithLabelValues("error").Inc()
		}
		s.writeDomainError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ContextResolutionsTotal.WithLabelValues("ok").Inc()
	}
	httputil.WriteSuccess(w, authCtx)
}

type acceptInvitationResponse struct {
	AgencyID string `json:"agencyId,omitempty"`
	Joined   bool   `json:"joined"`
}

// AcceptInvitation claims the caller's pending invitation, if any.
func (s *Server) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "no verified principal")
		return
	}

	agencyID, err := s.acceptor.Accept(r.Context(), p)
	if err != nil {
		if s.metrics != nil && errors.Is(err, tenancy.ErrRoleConflict) {
			s.metrics.InvitationConflictsTotal.Inc()
		}
		s.writeDomainError(w, err)
		return
	}
	if s.metrics != nil && agencyID != "" {
		s.metrics.InvitationsAcceptedTotal.Inc()
	}
	httputil.WriteSuccess(w, acceptInvitationResponse{
		AgencyID: agencyID,
		Joined:   agencyID != "",
	})
}

type landingResponse struct {
	Outcome  routing.Kind `json:"outcome"`
	Redirect string       `json:"redirect,omitempty"`
}

// Landing decides where the caller goes after authentication: accept
// any pending invitation, resolve the membership, and route on role,
// agency and request parameters.
func (s *Server) Landing(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "no verified principal")
		return
	}

	agencyID, err := s.acceptor.Accept(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	// An unresolved membership is a valid state (onboarding); any other
	// resolver failure must surface instead of degrading the decision.
	var role auth.Role
	authCtx, err := s.resolver.ResolveContext(r.Context(), p.Email)
	switch {
	case err == nil:
		role = authCtx.User.Role
	case !errors.Is(err, tenancy.ErrNotFound):
		s.writeDomainError(w, err)
		return
	}

	query := r.URL.Query()
	outcome := routing.Decide(role, agencyID, routing.Params{
		Plan:  query.Get("plan"),
		State: query.Get("state"),
		Code:  query.Get("code"),
	})
	if s.metrics != nil {
		s.metrics.RoutingDecisionsTotal.WithLabelValues(string(outcome.Kind)).Inc()
	}
	httputil.WriteSuccess(w, landingResponse{
		Outcome:  outcome.Kind,
		Redirect: outcome.RedirectPath(),
	})
}

type setAccessRequest struct {
	access.SetAccessRequest
	// AgencyID scopes the activity entry for the change.
	AgencyID string `json:"agencyId,omitempty"`
}

// SetAccess grants or revokes a user's access to a subaccount.
func (s *Server) SetAccess(w http.ResponseWriter, r *http.Request) {
	if _, ok := contextkeys.GetPrincipal(r.Context()); !ok {
		httputil.WriteUnauthorized(w, "no verified principal")
		return
	}

	var req setAccessRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ctx := r.Context()
	if req.AgencyID != "" {
		ctx = contextkeys.WithAgencyID(ctx, req.AgencyID)
	}

	perm, err := s.permissions.SetAccess(ctx, req.SetAccessRequest)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if s.metrics != nil {
		label := "granted"
		if !perm.Access {
			label = "revoked"
		}
		s.metrics.PermissionChangesTotal.WithLabelValues(label).Inc()
	}
	httputil.WriteSuccess(w, perm)
}
