package auth

import (
	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/roles"
	"github.com/rs/zerolog/log"
)

// CheckPermission is deny-by-default: only an explicit grant of action in module passes. The
// admin role is the single exception and passes every check.
func CheckPermission(identity *Identity, module, action string) error {
	if identity == nil || identity.Role == nil {
		return ErrNoPermissions
	}
	if identity.Role.IsAdmin() {
		log.Debug().
			Str("principal_id", identity.PrincipalID).
			Str("permission", module+":"+action).
			Msg("admin role elevation")
		return nil
	}

	perms := identity.Role.Permissions
	if perms == nil {
		return ErrNoPermissions
	}
	if !perms.HasModule(module) {
		return apperrors.Forbidden("no permissions found for module %s", module)
	}
	if !perms.Allows(module, action) {
		return apperrors.Forbidden("missing permission %s:%s", module, action)
	}
	return nil
}

// CheckRole passes when the identity's role name matches one of allowed, ignoring case.
func CheckRole(identity *Identity, allowed ...string) error {
	if identity == nil {
		return ErrAuthenticationRequired
	}
	if identity.Role == nil {
		return ErrInsufficientPermissions
	}
	name := roles.NormalizeName(identity.Role.Name)
	for _, candidate := range allowed {
		if roles.NormalizeName(candidate) == name {
			return nil
		}
	}
	return ErrInsufficientPermissions
}
