package activity

import (
	"errors"
	"time"
)

var (
	// ErrNoActor means no acting user could be resolved for the entry.
	ErrNoActor = errors.New("no acting user resolved")
	// ErrMissingTenantReference means neither an agency nor a subaccount
	// was supplied to scope the entry.
	ErrMissingTenantReference = errors.New("agency or subaccount reference required")
)

// Notification is one activity feed entry. Rows are append-only.
type Notification struct {
	ID           string    `json:"id"`
	Notification string    `json:"notification"`
	UserID       string    `json:"userId"`
	AgencyID     string    `json:"agencyId"`
	SubAccountID string    `json:"subAccountId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Actor is the denormalized view of the user attached to a feed entry,
// returned alongside each Notification on reads.
type Actor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Entry pairs a Notification with its actor for feed rendering.
type Entry struct {
	Notification
	User Actor `json:"user"`
}

// Request describes one entry to record. AgencyID may be empty when
// SubAccountID is set; the recorder derives the owning agency.
type Request struct {
	Description  string
	AgencyID     string
	SubAccountID string
}
