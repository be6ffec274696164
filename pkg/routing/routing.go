package routing

import (
	"net/url"
	"strings"

	"github.com/platinummonkey/backoffice/pkg/auth"
)

// StateSeparator splits a deep-link state parameter into its path and
// agency id halves.
const StateSeparator = "___"

// Kind enumerates the possible navigation outcomes.
type Kind string

const (
	// ShowOnboarding means the caller has no tenant membership yet and
	// should be shown the agency creation flow.
	ShowOnboarding Kind = "SHOW_ONBOARDING"
	// RedirectToSubaccountHome sends subaccount-level roles to the
	// subaccount picker.
	RedirectToSubaccountHome Kind = "REDIRECT_SUBACCOUNT_HOME"
	// RedirectToBilling sends the caller to their agency billing page
	// with the selected plan.
	RedirectToBilling Kind = "REDIRECT_BILLING"
	// RedirectTo resumes a deep link carried in the state parameter.
	RedirectTo Kind = "REDIRECT_STATE"
	// RedirectToAgencyHome sends agency-level roles to their agency
	// dashboard.
	RedirectToAgencyHome Kind = "REDIRECT_AGENCY_HOME"
	// Unauthorized means the caller may not proceed.
	Unauthorized Kind = "UNAUTHORIZED"
)

// Params carries the request parameters that influence the decision.
type Params struct {
	Plan  string
	State string
	Code  string
}

// Outcome is the navigation decision. AgencyID, Path, Plan and Code are
// populated only where the Kind calls for them.
type Outcome struct {
	Kind     Kind
	AgencyID string
	Path     string
	Plan     string
	Code     string
}

// Decide maps the caller's resolved role and agency to a navigation
// outcome. agencyID is the agency the caller resolves to, or the one
// just joined via invitation; empty means no membership. Rules apply
// in order and the first match wins.
func Decide(role auth.Role, agencyID string, params Params) Outcome {
	if agencyID == "" {
		return Outcome{Kind: ShowOnboarding}
	}

	if role.SubAccountLevel() {
		return Outcome{Kind: RedirectToSubaccountHome}
	}

	if role.AgencyLevel() {
		if params.Plan != "" {
			return Outcome{Kind: RedirectToBilling, AgencyID: agencyID, Plan: params.Plan}
		}
		if params.State != "" {
			path, stateAgencyID, ok := strings.Cut(params.State, StateSeparator)
			if !ok || stateAgencyID == "" {
				return Outcome{Kind: Unauthorized}
			}
			return Outcome{Kind: RedirectTo, AgencyID: stateAgencyID, Path: path, Code: params.Code}
		}
		return Outcome{Kind: RedirectToAgencyHome, AgencyID: agencyID}
	}

	return Outcome{Kind: Unauthorized}
}

// RedirectPath renders the outcome as a relative URL. Returns the empty
// string for ShowOnboarding and Unauthorized, which do not redirect.
func (o Outcome) RedirectPath() string {
	switch o.Kind {
	case RedirectToSubaccountHome:
		return "/subaccount"
	case RedirectToBilling:
		q := url.Values{}
		q.Set("plan", o.Plan)
		return "/agency/" + o.AgencyID + "/billing?" + q.Encode()
	case RedirectTo:
		path := "/agency/" + o.AgencyID + "/" + o.Path
		if o.Code != "" {
			q := url.Values{}
			q.Set("code", o.Code)
			path += "?" + q.Encode()
		}
		return path
	case RedirectToAgencyHome:
		return "/agency/" + o.AgencyID
	default:
		return ""
	}
}
