package server

import (
	"net/http"

	"github.com/jrsteele09/go-fund-auth/internal/obs"
	"github.com/jrsteele09/go-fund-auth/roles"
)

// Route path constants
const (
	RouteAuthLogin           = "/auth/login"
	RouteAuthMe              = "/auth/me"
	RouteRefreshToken        = "/refresh-token"
	RouteLogout              = "/logout"
	RouteCurrentOrganization = "/organizations/current"
	RouteSwitchOrganization  = "/organizations/switch"
	RouteUserLock            = "/users/{id}/lock"
	RouteMetrics             = "/metrics"
	RouteHealth              = "/healthz"
)

func (s *Server) initRoutes() {
	// Session endpoints used by the client session manager
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware(s.RateLimitMiddleware(s.loginLimiter))...))
	s.RegisterRouteHandler("POST "+RouteRefreshToken, ChainMiddleware(s.RefreshTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Tenancy
	s.RegisterRouteHandler("GET "+RouteCurrentOrganization, ChainMiddleware(s.CurrentOrganizationHandler(), s.APIMiddleware(s.RequireAuth(), s.ResolveOrganization())...))
	s.RegisterRouteHandler("POST "+RouteSwitchOrganization, ChainMiddleware(s.SwitchOrganizationHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Administration
	s.RegisterRouteHandler("PATCH "+RouteUserLock, ChainMiddleware(s.UserLockHandler(), s.APIMiddleware(s.RequireAuth(), s.RequirePermission("users", roles.ActionLockUnlock))...))

	s.RegisterRouteHandler("GET "+RouteMetrics, obs.Handler())
	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the mux wrapped with request instrumentation.
func (s *Server) Handler() http.Handler {
	return obs.Instrument(s)
}
