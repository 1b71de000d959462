package auth

import (
	"fmt"
	"strings"
)

// Role is a named authorization level with a fixed rank.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleFinance     Role = "finance"
	RoleBDC         Role = "bdc"
	RoleSalesperson Role = "salesperson"
	RoleViewer      Role = "viewer"
)

var roleRanks = map[Role]int{
	RoleOwner:       7,
	RoleAdmin:       6,
	RoleManager:     5,
	RoleFinance:     4,
	RoleBDC:         3,
	RoleSalesperson: 2,
	RoleViewer:      1,
}

// UnknownRoleError is returned when a role name is outside the enumerated set.
type UnknownRoleError struct {
	Role string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %q", e.Role)
}

// Roles returns every role, highest rank first.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleManager, RoleFinance, RoleBDC, RoleSalesperson, RoleViewer}
}

// ParseRole normalizes a stored role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRanks[r]; !ok {
		return "", &UnknownRoleError{Role: s}
	}
	return r, nil
}

// IsValid reports whether r is one of the enumerated roles.
func (r Role) IsValid() bool {
	_, ok := roleRanks[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

var roleLabels = map[Role]string{
	RoleOwner:       "Owner",
	RoleAdmin:       "Admin",
	RoleManager:     "Manager",
	RoleFinance:     "Finance",
	RoleBDC:         "BDC",
	RoleSalesperson: "Salesperson",
	RoleViewer:      "Viewer",
}

// Label is the display name of r, or "Unknown".
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return "Unknown"
}

// RankOf returns the rank of role.
func RankOf(role Role) (int, error) {
	rank, ok := roleRanks[role]
	if !ok {
		return 0, &UnknownRoleError{Role: string(role)}
	}
	return rank, nil
}

// MeetsMinimum reports whether actual ranks at or above required.
// An unknown or empty actual role is rank 0 and never qualifies; an unknown
// required role is unsatisfiable.
func MeetsMinimum(actual, required Role) bool {
	want, err := RankOf(required)
	if err != nil {
		return false
	}
	have, err := RankOf(actual)
	if err != nil {
		return false
	}
	return have >= want
}

func IsManagerOrAbove(r Role) bool { return MeetsMinimum(r, RoleManager) }

func IsAdminOrAbove(r Role) bool { return MeetsMinimum(r, RoleAdmin) }
