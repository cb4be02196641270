package tenants

import (
	"fmt"
	"strings"
	"time"
)

// OrganizationType enumerates the kinds of tenant the application serves.
type OrganizationType string

const (
	TypeChurch   OrganizationType = "CHURCH"
	TypeSchool   OrganizationType = "SCHOOL"
	TypeNGO      OrganizationType = "NGO"
	TypeBusiness OrganizationType = "BUSINESS"
	TypeOther    OrganizationType = "OTHER"
)

// ParseOrganizationType accepts any casing of the enumerated values.
func ParseOrganizationType(s string) (OrganizationType, error) {
	t := OrganizationType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeChurch, TypeSchool, TypeNGO, TypeBusiness, TypeOther:
		return t, nil
	}
	return "", fmt.Errorf("unknown organization type %q", s)
}

// Organization is the tenant root. All tenant-scoped data is reachable only through an active
// organization.
type Organization struct {
	ID        string           `json:"id"`
	Code      string           `json:"code"`
	Name      string           `json:"name"`
	Type      OrganizationType `json:"type"`
	IsActive  bool             `json:"isActive"`
	CreatedAt time.Time        `json:"createdAt,omitempty"`
}

// Branch is a sub-division of an organization, addressed by code.
type Branch struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}
