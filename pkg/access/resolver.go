package access

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

// ErrInvalidCaller means the caller identity required for a privileged
// mutation was absent.
var ErrInvalidCaller = errors.New("caller email required")

// Store is the slice of the entity store the authorization core reads
// and writes. Implemented by *tenancy.Store.
type Store interface {
	UserByEmail(ctx context.Context, email string) (*tenancy.User, error)
	AgencyByID(ctx context.Context, id string) (*tenancy.Agency, error)
	SubAccountsForAgency(ctx context.Context, agencyID string) ([]*tenancy.SubAccount, error)
	SidebarOptionsForAgency(ctx context.Context, agencyID string) ([]*tenancy.SidebarOption, error)
	SidebarOptionsForSubAccount(ctx context.Context, subAccountID string) ([]*tenancy.SidebarOption, error)
	UserPermissions(ctx context.Context, email string) ([]*tenancy.Permission, error)
	PendingInvitationByEmail(ctx context.Context, email string) (*tenancy.Invitation, error)
	AcceptInvitation(ctx context.Context, p auth.Principal) (*tenancy.User, error)
	UpsertPermission(ctx context.Context, perm *tenancy.Permission) error
	SetPermissionAccess(ctx context.Context, id string, access bool) (*tenancy.Permission, error)
}

// SubAccountView is one subaccount in the caller's resolved view, with
// its navigation options and the caller's access flag.
type SubAccountView struct {
	*tenancy.SubAccount
	SidebarOptions []*tenancy.SidebarOption `json:"sidebarOptions"`
	Access         bool                     `json:"access"`
}

// AuthContext is the caller's effective view of their tenant: who they
// are, the agency they belong to, and which subaccounts they can see.
// It is the sole input the presentation layer uses to decide what to
// render.
type AuthContext struct {
	User           *tenancy.User            `json:"user"`
	Agency         *tenancy.Agency          `json:"agency,omitempty"`
	SidebarOptions []*tenancy.SidebarOption `json:"sidebarOptions,omitempty"`
	SubAccounts    []*SubAccountView        `json:"subAccounts,omitempty"`
	Permissions    []*tenancy.Permission    `json:"permissions,omitempty"`
}

// VisibleSubAccounts returns the subaccounts the caller holds an active
// grant for.
func (c *AuthContext) VisibleSubAccounts() []*SubAccountView {
	var visible []*SubAccountView
	for _, sub := range c.SubAccounts {
		if sub.Access {
			visible = append(visible, sub)
		}
	}
	return visible
}

// Resolver computes AuthContexts from the entity store.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveContext loads the principal's membership graph. Returns
// tenancy.ErrNotFound when no user row exists for the email. A user
// with no agency yet resolves to a context holding only the user row.
//
// Permission state is read fresh on every call so a grant change is
// visible on the caller's next resolve.
func (r *Resolver) ResolveContext(ctx context.Context, principalEmail string) (*AuthContext, error) {
	if principalEmail == "" {
		return nil, ErrInvalidCaller
	}

	user, err := r.store.UserByEmail(ctx, principalEmail)
	if err != nil {
		return nil, err
	}

	authCtx := &AuthContext{User: user}
	if user.AgencyID == "" {
		return authCtx, nil
	}

	var subs []*tenancy.SubAccount
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		agency, err := r.store.AgencyByID(gctx, user.AgencyID)
		if err != nil {
			return err
		}
		authCtx.Agency = agency
		return nil
	})
	g.Go(func() error {
		options, err := r.store.SidebarOptionsForAgency(gctx, user.AgencyID)
		if err != nil {
			return err
		}
		authCtx.SidebarOptions = options
		return nil
	})
	g.Go(func() error {
		loaded, err := r.store.SubAccountsForAgency(gctx, user.AgencyID)
		if err != nil {
			return err
		}
		subs = loaded
		return nil
	})
	g.Go(func() error {
		perms, err := r.store.UserPermissions(gctx, principalEmail)
		if err != nil {
			return err
		}
		authCtx.Permissions = perms
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	access := make(map[string]bool, len(authCtx.Permissions))
	for _, perm := range authCtx.Permissions {
		access[perm.SubAccountID] = perm.Access
	}

	authCtx.SubAccounts = make([]*SubAccountView, 0, len(subs))
	g, gctx = errgroup.WithContext(ctx)
	for _, sub := range subs {
		view := &SubAccountView{SubAccount: sub, Access: access[sub.ID]}
		authCtx.SubAccounts = append(authCtx.SubAccounts, view)
		g.Go(func() error {
			options, err := r.store.SidebarOptionsForSubAccount(gctx, view.ID)
			if err != nil {
				return err
			}
			view.SidebarOptions = options
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return authCtx, nil
}
