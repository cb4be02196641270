package server

import (
	"net/http"

	"github.com/jrsteele09/go-fund-auth/auth"
	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/internal/obs"
	"github.com/jrsteele09/go-fund-auth/tenancy"
	"github.com/jrsteele09/go-fund-auth/tenants"
	"github.com/rs/zerolog/log"
)

// RequireAuth validates the Bearer access token and attaches the live identity to the request context.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			identity, err := s.authenticator.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				obs.AuthOutcome(string(apperrors.KindOf(err)))
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("[RequireAuth] rejected")
				writeJSONError(w, err)
				return
			}
			obs.AuthOutcome("ok")
			next(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
		}
	}
}

// RequirePermission must be chained after RequireAuth.
func (s *Server) RequirePermission(module, action string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if err := auth.CheckPermission(auth.IdentityFromContext(r.Context()), module, action); err != nil {
				obs.GuardDenied("permission")
				writeJSONError(w, err)
				return
			}
			next(w, r)
		}
	}
}

func (s *Server) RequireRole(allowed ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if err := auth.CheckRole(auth.IdentityFromContext(r.Context()), allowed...); err != nil {
				obs.GuardDenied("role")
				writeJSONError(w, err)
				return
			}
			next(w, r)
		}
	}
}

// ResolveOrganization attaches the caller's current organization and branch. It is re-derived on
// every request.
func (s *Server) ResolveOrganization() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tc, err := s.tenancy.ResolveOrganization(r.Context(), auth.IdentityFromContext(r.Context()))
			if err != nil {
				obs.GuardDenied("organization")
				writeJSONError(w, err)
				return
			}
			next(w, r.WithContext(tenancy.ContextWithTenant(r.Context(), tc)))
		}
	}
}

// RequireOrganizationType must be chained after ResolveOrganization.
func (s *Server) RequireOrganizationType(allowed ...tenants.OrganizationType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if err := tenancy.RequireOrganizationType(tenancy.TenantFromContext(r.Context()), allowed...); err != nil {
				obs.GuardDenied("organization_type")
				writeJSONError(w, err)
				return
			}
			next(w, r)
		}
	}
}
