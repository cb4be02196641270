package server

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/jrsteele09/go-fund-auth/audit"
	"github.com/jrsteele09/go-fund-auth/auth"
	"github.com/jrsteele09/go-fund-auth/internal/config"
	"github.com/jrsteele09/go-fund-auth/roles"
	"github.com/jrsteele09/go-fund-auth/tenancy"
	"github.com/jrsteele09/go-fund-auth/tenants"
	"github.com/jrsteele09/go-fund-auth/token"
	"github.com/jrsteele09/go-fund-auth/users"
	"github.com/rs/zerolog/log"
)

// Repos holds all repository dependencies for the Server
type Repos struct {
	Users   users.Repo
	Roles   roles.Repo
	Tenants tenants.Repo
	Audit   audit.Repo
}

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config
	repos  Repos

	tokens        *token.Manager
	authenticator *auth.Authenticator
	logins        *auth.LoginService
	accounts      *auth.AccountService
	tenancy       *tenancy.Resolver
	loginLimiter  *ipRateLimiter

	trustedProxies []netip.Prefix

	denylist token.Denylist
	nowFunc  func() time.Time
}

type ServerOption func(*Server)

// WithDenylist enables principal denial on lock and the revoked token check on every request.
func WithDenylist(denylist token.Denylist) ServerOption {
	return func(s *Server) {
		s.denylist = denylist
	}
}

func WithNowFunc(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func New(cfg config.Config, repos Repos, options ...ServerOption) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("[Server New] invalid configuration: %w", err)
	}
	if repos.Users == nil || repos.Roles == nil || repos.Tenants == nil || repos.Audit == nil {
		return nil, fmt.Errorf("[Server New] users, roles, tenants and audit repos are required")
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		repos:   repos,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	var err error
	s.tokens, err = token.NewHMACManager(cfg.GetAccessTokenSecret(), cfg.GetRefreshTokenSecret(),
		token.WithTokenExpiry(cfg.GetAccessTokenTTL(), cfg.GetRefreshTokenTTL()),
		token.WithNowFunc(s.nowFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create token manager: %w", err)
	}

	var authOptions []auth.AuthenticatorOption
	if s.denylist != nil {
		authOptions = append(authOptions, auth.WithDenylist(s.denylist))
	}
	s.authenticator, err = auth.NewAuthenticator(s.tokens, repos.Users, repos.Roles, authOptions...)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create authenticator: %w", err)
	}

	recorder := audit.NewRecorder(repos.Audit, audit.WithNowFunc(s.nowFunc))
	s.logins, err = auth.NewLoginService(auth.Repos{Users: repos.Users, Roles: repos.Roles}, s.tokens,
		auth.WithMaxLoginAttempts(cfg.GetMaxLoginAttempts()),
		auth.WithAuditRecorder(recorder),
		auth.WithLoginDenylist(s.denylist),
		auth.WithLoginNowFunc(s.nowFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create login service: %w", err)
	}
	s.accounts = auth.NewAccountService(repos.Users, recorder, s.denylist, s.tokens.AccessTokenTTL())

	s.tenancy, err = tenancy.NewResolver(repos.Users, repos.Tenants, tenancy.WithAuditRecorder(recorder))
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create tenancy resolver: %w", err)
	}

	s.loginLimiter = newIPRateLimiter(cfg.GetLoginRatePerMinute())
	s.trustedProxies = cfg.GetTrustedProxies()

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Tokens exposes the token manager, mainly for tests and tooling that mint tokens.
func (s *Server) Tokens() *token.Manager {
	return s.tokens
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}
