package auth

import "readaloud/internal/model"

// RequireRole returns ErrForbidden unless principal holds one of roles.
func RequireRole(principal model.Principal, roles ...model.Role) error {
	for _, role := range roles {
		if principal.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// CanManageClass reports whether principal may mutate class. Admins bypass
// ownership; a teacher only manages classes they own.
func CanManageClass(principal model.Principal, class model.Class) bool {
	if principal.Role == model.RoleAdmin {
		return true
	}
	return principal.Role == model.RoleTeacher && class.TeacherID == principal.ID
}

// CanDeletePrincipal enforces the self-protection invariant: nobody deletes
// their own account through the admin delete operation.
func CanDeletePrincipal(actor model.Principal, targetID string) error {
	if err := RequireRole(actor, model.RoleAdmin); err != nil {
		return err
	}
	if actor.ID == targetID {
		return ErrForbidden
	}
	return nil
}
