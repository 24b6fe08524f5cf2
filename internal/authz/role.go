// Package authz holds the role hierarchy and the capability predicates used
// by every route.  Nothing here performs I/O; the caller's role must come
// from the users table, never from a token claim.
package authz

import "errors"

// Role is a value of users.account_type.
type Role string

const (
	RoleOrganizer  Role = "organizer"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var rank = map[Role]int{
	RoleOrganizer:  1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// ErrInvalidOperation is returned when a user targets their own account
// with a mutating admin action.
var ErrInvalidOperation = errors.New("cannot perform this action on your own account")

// ErrUnknownRole is returned when a stored account_type is not one of the
// three roles.
var ErrUnknownRole = errors.New("unknown account type")

// ParseRole validates a stored or submitted role name.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := rank[r]
	return r, ok
}

// Rank returns the privilege level of r; unknown roles rank 0.
func Rank(r Role) int { return rank[r] }

// AtLeast reports whether r meets the required threshold.  An unknown role
// never meets any threshold.
func AtLeast(r, required Role) bool {
	have := rank[r]
	return have > 0 && have >= rank[required]
}

// Actor is the authenticated caller with their current database role.
type Actor struct {
	ID   uint64
	Role Role
}

func CanPublish(r Role) bool       { return AtLeast(r, RoleAdmin) }
func CanEditPublished(r Role) bool { return AtLeast(r, RoleAdmin) }
func CanDelete(r Role) bool        { return AtLeast(r, RoleSuperAdmin) }

// CanEditDraft allows the draft's creator, or anyone admin and above.
func CanEditDraft(a Actor, createdBy uint64) bool {
	if !AtLeast(a.Role, RoleOrganizer) {
		return false
	}
	return a.ID == createdBy || AtLeast(a.Role, RoleAdmin)
}

// ForbidSelfTarget guards promote, demote and delete.
func ForbidSelfTarget(callerID, targetID uint64) error {
	if callerID == targetID {
		return ErrInvalidOperation
	}
	return nil
}
