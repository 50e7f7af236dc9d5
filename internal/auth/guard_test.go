package auth

import (
	"errors"
	"testing"

	"readaloud/internal/model"
)

func TestRequireRole(t *testing.T) {
	teacher := model.Principal{ID: "t1", Role: model.RoleTeacher}
	if err := RequireRole(teacher, model.RoleTeacher, model.RoleAdmin); err != nil {
		t.Fatalf("expected teacher to pass, got %v", err)
	}
	if err := RequireRole(teacher, model.RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCanManageClass(t *testing.T) {
	class := model.Class{ID: "c1", TeacherID: "t1"}
	if !CanManageClass(model.Principal{ID: "t1", Role: model.RoleTeacher}, class) {
		t.Fatalf("owner teacher should manage their class")
	}
	if CanManageClass(model.Principal{ID: "t2", Role: model.RoleTeacher}, class) {
		t.Fatalf("non-owner teacher must not manage the class")
	}
	if !CanManageClass(model.Principal{ID: "a1", Role: model.RoleAdmin}, class) {
		t.Fatalf("admin bypasses ownership")
	}
	if CanManageClass(model.Principal{ID: "t1", Role: model.RoleStudent}, class) {
		t.Fatalf("student must never manage a class")
	}
}

func TestCanDeletePrincipal(t *testing.T) {
	admin := model.Principal{ID: "a1", Role: model.RoleAdmin}
	if err := CanDeletePrincipal(admin, "u2"); err != nil {
		t.Fatalf("admin should delete another principal, got %v", err)
	}
	if err := CanDeletePrincipal(admin, "a1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self-delete must be refused, got %v", err)
	}
	if err := CanDeletePrincipal(model.Principal{ID: "t1", Role: model.RoleTeacher}, "u2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin delete must be refused, got %v", err)
	}
}
