package auth

import apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"

// Rejection reasons surfaced by the authentication middleware, the guards and the login service.
// The missing header message is relied on by existing clients and must not change.
var (
	ErrMissingHeader           = apperrors.Auth("Authorization token missing or malformed.")
	ErrAccessTokenExpired      = apperrors.Auth("access token expired, refresh and retry")
	ErrInvalidToken            = apperrors.Forbidden("invalid token")
	ErrTokenRevoked            = apperrors.Forbidden("token revoked")
	ErrUserNotFound            = apperrors.Auth("user not found")
	ErrAccountInactive         = apperrors.Forbidden("account inactive")
	ErrAccountLocked           = apperrors.Forbidden("account locked")
	ErrRoleNotFound            = apperrors.Forbidden("role not found")
	ErrRoleInactive            = apperrors.Forbidden("role inactive")
	ErrAuthenticationRequired  = apperrors.Auth("authentication required")
	ErrNoPermissions           = apperrors.Forbidden("no permissions found")
	ErrInsufficientPermissions = apperrors.Forbidden("insufficient permissions")
	ErrInvalidCredentials      = apperrors.Auth("invalid username or password")
	ErrInvalidRefreshToken     = apperrors.Auth("invalid refresh token")
	ErrRefreshTokenExpired     = apperrors.Auth("refresh token expired")
)
