// Package access decides whether a caller's role may invoke an operation.
package access

import "libraryrental/model"

// Allowed reports whether role may perform an operation restricted to the
// given roles. Admins pass every check. The allow-list must be non-empty;
// an operation with no declared roles is never admitted, so callers cannot
// accidentally leave an endpoint open.
func Allowed(role model.Role, allowed ...model.Role) bool {
	if !role.Valid() {
		return false
	}
	if role == model.RoleAdmin {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
