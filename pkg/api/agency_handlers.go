package api

import (
	"net/http"

	"github.com/platinummonkey/backoffice/pkg/activity"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/contextkeys"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

// UpsertAgency creates or updates an agency. On first creation the
// caller becomes the agency's owner and the default navigation is
// seeded.
func (s *Server) UpsertAgency(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "no verified principal")
		return
	}

	var agency tenancy.Agency
	if !httputil.ParseJSONOrError(w, r, &agency) {
		return
	}
	if agency.Name == "" {
		httputil.WriteBadRequest(w, "agency name is required")
		return
	}
	if agency.CompanyEmail == "" {
		agency.CompanyEmail = p.Email
	}

	if err := s.store.UpsertAgency(r.Context(), &agency); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if s.feed != nil {
		req := activity.Request{Description: "Updated agency information", AgencyID: agency.ID}
		if err := s.feed.Record(contextkeys.WithAgencyID(r.Context(), agency.ID), req); err != nil {
			s.logger.WithError(err).Warn("failed to record agency update")
		}
	}
	httputil.WriteSuccess(w, &agency)
}

// GetAgency returns one agency by id.
func (s *Server) GetAgency(w http.ResponseWriter, r *http.Request) {
	agencyID, ok := httputil.ParsePathStringOrError(w, r, "agencyID")
	if !ok {
		return
	}

	agency, err := s.store.AgencyByID(r.Context(), agencyID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, agency)
}

// DeleteAgency removes an agency. Subaccounts, memberships and feed
// entries cascade with it.
func (s *Server) DeleteAgency(w http.ResponseWriter, r *http.Request) {
	agencyID, ok := httputil.ParsePathStringOrError(w, r, "agencyID")
	if !ok {
		return
	}

	if err := s.store.DeleteAgency(r.Context(), agencyID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// UpsertSubAccount creates or updates a subaccount under an agency.
// Creation grants the agency owner access and seeds the subaccount
// navigation.
func (s *Server) UpsertSubAccount(w http.ResponseWriter, r *http.Request) {
	agencyID, ok := httputil.ParsePathStringOrError(w, r, "agencyID")
	if !ok {
		return
	}

	var sub tenancy.SubAccount
	if !httputil.ParseJSONOrError(w, r, &sub) {
		return
	}
	sub.AgencyID = agencyID
	if sub.Name == "" {
		httputil.WriteBadRequest(w, "subaccount name is required")
		return
	}

	if err := s.store.UpsertSubAccount(r.Context(), &sub); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if s.feed != nil {
		req := activity.Request{
			Description:  "Updated subaccount " + sub.Name,
			AgencyID:     agencyID,
			SubAccountID: sub.ID,
		}
		if err := s.feed.Record(r.Context(), req); err != nil {
			s.logger.WithError(err).Warn("failed to record subaccount update")
		}
	}
	httputil.WriteSuccess(w, &sub)
}

// ListSubAccounts returns all subaccounts under an agency.
func (s *Server) ListSubAccounts(w http.ResponseWriter, r *http.Request) {
	agencyID, ok := httputil.ParsePathStringOrError(w, r, "agencyID")
	if !ok {
		return
	}

	subs, err := s.store.SubAccountsForAgency(r.Context(), agencyID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, subs)
}

type createInvitationRequest struct {
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

// CreateInvitation offers membership in the agency to an email address.
// Re-inviting the same address replaces the previous offer. The owner
// role cannot be offered.
func (s *Server) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	agencyID, ok := httputil.ParsePathStringOrError(w, r, "agencyID")
	if !ok {
		return
	}

	var req createInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "invitee email is required")
		return
	}
	if req.Role == "" {
		req.Role = auth.DefaultRole
	}
	if !req.Role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}
	if req.Role == auth.RoleAgencyOwner {
		httputil.WriteConflict(w, "ownership cannot be offered by invitation")
		return
	}

	inv := &tenancy.Invitation{
		Email:    req.Email,
		AgencyID: agencyID,
		Role:     req.Role,
	}
	if err := s.store.UpsertInvitation(r.Context(), inv); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if s.feed != nil {
		rec := activity.Request{Description: "Invited " + req.Email, AgencyID: agencyID}
		if err := s.feed.Record(r.Context(), rec); err != nil {
			s.logger.WithError(err).Warn("failed to record invitation")
		}
	}
	httputil.WriteCreated(w, inv)
}

// ListNotifications returns the agency's activity feed, newest first.
func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	agencyID, ok := httputil.ParsePathStringOrError(w, r, "agencyID")
	if !ok {
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	entries, err := s.feed.Feed(r.Context(), agencyID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []*activity.Entry{}
	}
	httputil.WriteSuccess(w, entries)
}
