package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jrsteele09/go-fund-auth/auth"
	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/tenancy"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type switchOrganizationRequest struct {
	OrganizationID string `json:"organizationId"`
}

type lockRequest struct {
	Locked *bool `json:"locked"`
}

// LoginHandler exchanges a username and password for a token pair and profile.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, err)
			return
		}
		session, err := s.logins.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeJSONError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

// RefreshTokenHandler rotates a refresh token into a new pair.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, err)
			return
		}
		session, err := s.logins.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeJSONError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

// LogoutHandler always succeeds. Clients discard their tokens regardless of the outcome.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		_ = decodeJSON(r, &req)
		s.logins.Logout(r.Context(), req.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromContext(r.Context())
		profile := auth.Profile{
			ID:             identity.PrincipalID,
			Username:       identity.Username,
			FullName:       identity.FullName,
			Email:          identity.Email,
			RoleID:         identity.RoleID,
			BranchCode:     identity.BranchCode,
			OrganizationID: identity.OrganizationID,
			Permissions:    identity.Permissions(),
		}
		if identity.Role != nil {
			profile.RoleName = identity.Role.Name
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func (s *Server) CurrentOrganizationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tenancy.TenantFromContext(r.Context()))
	}
}

// SwitchOrganizationHandler changes the caller's current organization.
func (s *Server) SwitchOrganizationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req switchOrganizationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, err)
			return
		}
		identity := auth.IdentityFromContext(r.Context())
		org, err := s.tenancy.SwitchOrganization(r.Context(), identity, req.OrganizationID)
		if err != nil {
			writeJSONError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"organization": org,
			"branchCode":   identity.BranchCode,
		})
	}
}

// UserLockHandler locks or unlocks the principal named in the path.
func (s *Server) UserLockHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, err)
			return
		}
		if req.Locked == nil {
			writeJSONError(w, apperrors.Validation("locked is required"))
			return
		}
		principal, err := s.accounts.SetLocked(r.Context(), auth.IdentityFromContext(r.Context()), r.PathValue("id"), *req.Locked)
		if err != nil {
			writeJSONError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, principal)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperrors.Validation("request body required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return apperrors.Validation("request body required")
		}
		return apperrors.Validation("invalid request body")
	}
	return nil
}
