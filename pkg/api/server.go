package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/backoffice/pkg/access"
	"github.com/platinummonkey/backoffice/pkg/activity"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

// Resolver computes the caller's authorization context.
type Resolver interface {
	ResolveContext(ctx context.Context, principalEmail string) (*access.AuthContext, error)
}

// Acceptor converts pending invitations into memberships.
type Acceptor interface {
	Accept(ctx context.Context, p auth.Principal) (string, error)
}

// PermissionEngine mutates per-subaccount access grants.
type PermissionEngine interface {
	SetAccess(ctx context.Context, req access.SetAccessRequest) (*tenancy.Permission, error)
}

// ActivityFeed records and reads the tenant activity log.
type ActivityFeed interface {
	Record(ctx context.Context, req activity.Request) error
	Feed(ctx context.Context, agencyID string, limit int) ([]*activity.Entry, error)
}

// TenancyStore is the slice of the entity store the HTTP surface
// manages directly. Implemented by *tenancy.Store.
type TenancyStore interface {
	UpsertAgency(ctx context.Context, agency *tenancy.Agency) error
	AgencyByID(ctx context.Context, id string) (*tenancy.Agency, error)
	DeleteAgency(ctx context.Context, id string) error
	UpsertSubAccount(ctx context.Context, sub *tenancy.SubAccount) error
	SubAccountByID(ctx context.Context, id string) (*tenancy.SubAccount, error)
	SubAccountsForAgency(ctx context.Context, agencyID string) ([]*tenancy.SubAccount, error)
	UpsertUser(ctx context.Context, p auth.Principal, role auth.Role) (*tenancy.User, error)
	UpsertInvitation(ctx context.Context, inv *tenancy.Invitation) error
}

// Server handles back office HTTP requests.
type Server struct {
	router *mux.Router

	store       TenancyStore
	resolver    Resolver
	acceptor    Acceptor
	permissions PermissionEngine
	feed        ActivityFeed

	logger  *observability.Logger
	metrics *observability.Metrics
}

// ServerConfig collects the Server's collaborators.
type ServerConfig struct {
	Store       TenancyStore
	Resolver    Resolver
	Acceptor    Acceptor
	Permissions PermissionEngine
	Feed        ActivityFeed
	Logger      *observability.Logger
	Metrics     *observability.Metrics

	// Middleware is applied to every route, outermost first.
	Middleware []mux.MiddlewareFunc
}

// NewServer creates the API server and registers all routes.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		store:       cfg.Store,
		resolver:    cfg.Resolver,
		acceptor:    cfg.Acceptor,
		permissions: cfg.Permissions,
		feed:        cfg.Feed,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	for _, mw := range cfg.Middleware {
		s.router.Use(mw)
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// Caller-scoped operations
	s.router.HandleFunc("/me", s.InitUser).Methods("POST")
	s.router.HandleFunc("/me/context", s.GetAuthContext).Methods("GET")
	s.router.HandleFunc("/me/landing", s.Landing).Methods("GET")
	s.router.HandleFunc("/invitations/accept", s.AcceptInvitation).Methods("POST")

	// Agency management
	s.router.HandleFunc("/agencies", s.UpsertAgency).Methods("POST")
	s.router.HandleFunc("/agencies/{agencyID}", s.GetAgency).Methods("GET")
	s.router.HandleFunc("/agencies/{agencyID}", s.DeleteAgency).Methods("DELETE")
	s.router.HandleFunc("/agencies/{agencyID}/subaccounts", s.UpsertSubAccount).Methods("POST")
	s.router.HandleFunc("/agencies/{agencyID}/subaccounts", s.ListSubAccounts).Methods("GET")
	s.router.HandleFunc("/agencies/{agencyID}/invitations", s.CreateInvitation).Methods("POST")
	s.router.HandleFunc("/agencies/{agencyID}/notifications", s.ListNotifications).Methods("GET")

	// Access control
	s.router.HandleFunc("/permissions", s.SetAccess).Methods("POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// writeDomainError maps the core error taxonomy onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenancy.ErrNotFound):
		httputil.WriteNotFoundError(w, "not found")
	case errors.Is(err, tenancy.ErrRoleConflict):
		httputil.WriteConflict(w, "agency already has an owner")
	case errors.Is(err, access.ErrInvalidCaller),
		errors.Is(err, activity.ErrNoActor),
		errors.Is(err, activity.ErrMissingTenantReference):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, tenancy.ErrStoreUnavailable):
		s.logger.WithError(err).Error("entity store unavailable")
		httputil.WriteServiceUnavailable(w, "store unavailable")
	default:
		s.logger.WithError(err).Error("request failed")
		httputil.WriteInternalError(w, err)
	}
}
