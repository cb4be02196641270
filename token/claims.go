package token

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-fund-auth/roles"
	"github.com/pkg/errors"
)

// Claims is the canonical, normalized view of a verified token. Refresh tokens only populate
// PrincipalID, ExpiresAt and TokenID.
type Claims struct {
	PrincipalID string
	Username    string
	RoleID      string
	RoleName    string
	BranchCode  string
	Permissions roles.PermissionSet
	IssuedAt    time.Time
	ExpiresAt   time.Time
	TokenID     string
}

// wireClaims accepts both historical payload shapes: "id" or "userId" for the principal, and
// "roleName"/"roleId" or a single "role" that is either a name or an {id,name} object.
type wireClaims struct {
	PrincipalID flexString          `json:"id,omitempty"`
	UserID      flexString          `json:"userId,omitempty"`
	Username    string              `json:"username,omitempty"`
	RoleID      flexString          `json:"roleId,omitempty"`
	RoleName    string              `json:"roleName,omitempty"`
	Role        json.RawMessage     `json:"role,omitempty"`
	BranchCode  string              `json:"branchCode,omitempty"`
	Permissions roles.PermissionSet `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

type legacyRole struct {
	ID   flexString `json:"id"`
	Name string     `json:"name"`
}

func (w *wireClaims) normalize() (*Claims, error) {
	c := &Claims{
		PrincipalID: firstNonEmpty(string(w.PrincipalID), string(w.UserID)),
		Username:    w.Username,
		RoleID:      string(w.RoleID),
		RoleName:    w.RoleName,
		BranchCode:  w.BranchCode,
		Permissions: w.Permissions,
		TokenID:     w.RegisteredClaims.ID,
	}
	if c.PrincipalID == "" {
		return nil, errors.New("token carries no principal id")
	}

	if raw := bytes.TrimSpace(w.Role); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var name string
		var obj legacyRole
		switch {
		case json.Unmarshal(raw, &name) == nil:
			c.RoleName = firstNonEmpty(c.RoleName, name)
		case json.Unmarshal(raw, &obj) == nil:
			c.RoleName = firstNonEmpty(c.RoleName, obj.Name)
			c.RoleID = firstNonEmpty(c.RoleID, string(obj.ID))
		default:
			return nil, errors.New("unrecognised role claim")
		}
	}

	if w.ExpiresAt != nil {
		c.ExpiresAt = w.ExpiresAt.Time
	}
	if w.IssuedAt != nil {
		c.IssuedAt = w.IssuedAt.Time
	}
	return c, nil
}

// flexString decodes ids that older issuers wrote as numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "id must be a string or number")
	}
	*f = flexString(n.String())
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
