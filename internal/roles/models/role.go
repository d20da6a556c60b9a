package models

import (
	"strings"
	"time"

	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
)

// Role names a permission set.
type Role string

const (
	RoleDefaultAdmin       Role = "DEFAULT_ADMIN"
	RoleAdmin              Role = "ADMIN"
	RoleMinter             Role = "MINTER"
	RoleScholarshipManager Role = "SCHOLARSHIP_MANAGER"
)

// AllRoles lists every role in a stable order.
var AllRoles = []Role{RoleDefaultAdmin, RoleAdmin, RoleMinter, RoleScholarshipManager}

// ParseRole accepts the canonical name in any case, with '-' or '_' separators.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+s)
	}
	return r, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleDefaultAdmin, RoleAdmin, RoleMinter, RoleScholarshipManager:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Membership records that Principal holds Role.
type Membership struct {
	Role      Role             `json:"role"`
	Principal domain.Principal `json:"principal"`
	GrantedBy domain.Principal `json:"granted_by"`
	GrantedAt time.Time        `json:"granted_at"`
}

// RoleGranted is the payload of a role_granted event.
type RoleGranted struct {
	Role      Role             `json:"role"`
	Principal domain.Principal `json:"principal"`
	GrantedBy domain.Principal `json:"granted_by"`
}

// RoleRevoked is the payload of a role_revoked event. RevokedBy equals
// Principal when the role was renounced.
type RoleRevoked struct {
	Role      Role             `json:"role"`
	Principal domain.Principal `json:"principal"`
	RevokedBy domain.Principal `json:"revoked_by"`
}

// RoleAdminChanged is the payload of a role_admin_changed event.
type RoleAdminChanged struct {
	Role          Role             `json:"role"`
	PreviousAdmin Role             `json:"previous_admin"`
	NewAdmin      Role             `json:"new_admin"`
	ChangedBy     domain.Principal `json:"changed_by"`
}
