package tenancy

import (
	"time"

	"github.com/platinummonkey/backoffice/pkg/auth"
)

// Agency is the tenant root. Billing plan contents are owned by the external
// billing system; only the plan identifier is kept here.
type Agency struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CompanyEmail string    `json:"company_email"`
	WhiteLabel   bool      `json:"white_label"`
	Plan         string    `json:"plan,omitempty"`
	AgencyLogo   string    `json:"agency_logo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SubAccount is a workspace owned by exactly one agency. Deleting the agency
// cascades to its subaccounts.
type SubAccount struct {
	ID             string    `json:"id"`
	AgencyID       string    `json:"agency_id"`
	Name           string    `json:"name"`
	CompanyEmail   string    `json:"company_email,omitempty"`
	SubAccountLogo string    `json:"sub_account_logo,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User is a principal record keyed by email. AgencyID is empty until the
// user has been onboarded into an agency.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      auth.Role `json:"role"`
	AgencyID  string    `json:"agency_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission grants a user visibility into a specific subaccount. At most
// one row exists per (email, sub_account_id) pair.
type Permission struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	SubAccountID string `json:"sub_account_id"`
	Access       bool   `json:"access"`
}

// InvitationStatus is the lifecycle state of an invitation. There is no
// persisted ACCEPTED state: acceptance deletes the row, which is the only
// durable marker of completion.
type InvitationStatus string

const (
	InvitationPending InvitationStatus = "PENDING"
)

// Invitation is a pending offer of agency membership to an email address.
type Invitation struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	AgencyID  string           `json:"agency_id"`
	Role      auth.Role        `json:"role"`
	Status    InvitationStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// SidebarOption is a navigation entry rendered for an agency or subaccount.
// Exactly one of AgencyID or SubAccountID is set.
type SidebarOption struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	Link         string `json:"link"`
	AgencyID     string `json:"agency_id,omitempty"`
	SubAccountID string `json:"sub_account_id,omitempty"`
}
