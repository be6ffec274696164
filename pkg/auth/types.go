package auth

import "strings"

// Role represents a user's role within their agency
type Role string

const (
	RoleAgencyOwner     Role = "AGENCY_OWNER"     // Established at agency creation, never via invitation
	RoleAgencyAdmin     Role = "AGENCY_ADMIN"     // Full agency management except ownership transfer
	RoleSubAccountUser  Role = "SUBACCOUNT_USER"  // Works inside granted subaccounts
	RoleSubAccountGuest Role = "SUBACCOUNT_GUEST" // Read-mostly access to granted subaccounts
)

// DefaultRole is assigned when a user is provisioned without an explicit role
const DefaultRole = RoleSubAccountUser

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAgencyOwner, RoleAgencyAdmin, RoleSubAccountUser, RoleSubAccountGuest:
		return true
	}
	return false
}

// AgencyLevel reports whether r may manage the agency and its subaccounts
func (r Role) AgencyLevel() bool {
	return r == RoleAgencyOwner || r == RoleAgencyAdmin
}

// SubAccountLevel reports whether r is scoped to individual subaccounts
func (r Role) SubAccountLevel() bool {
	return r == RoleSubAccountUser || r == RoleSubAccountGuest
}

// Principal is the verified caller record supplied by the identity provider.
// It exists before (and independently of) any tenant membership.
type Principal struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// FullName joins the principal's first and last names
func (p Principal) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
