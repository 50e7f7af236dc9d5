package visual

import (
	"testing"

	"readaloud/internal/model"
)

func TestMatchAnimal(t *testing.T) {
	data := model.VisualPasswordData{Animal: "cat"}
	if !Match("cat", model.VisualAnimal, data) {
		t.Fatalf("expected match for correct animal")
	}
	if Match("dog", model.VisualAnimal, data) {
		t.Fatalf("expected mismatch for wrong animal")
	}
	if Match("Cat", model.VisualAnimal, data) {
		t.Fatalf("comparison must be case-sensitive")
	}
}

func TestMatchObject(t *testing.T) {
	data := model.VisualPasswordData{Object: "ball"}
	if !Match("ball", model.VisualObject, data) {
		t.Fatalf("expected match for correct object")
	}
	if Match("kite", model.VisualObject, data) {
		t.Fatalf("expected mismatch for wrong object")
	}
}

func TestMatchColorShape(t *testing.T) {
	data := model.VisualPasswordData{ColorShape: "red-circle"}
	if !Match("red-circle", model.VisualColorShape, data) {
		t.Fatalf("expected match for correct color-shape")
	}
	if Match("blue-square", model.VisualColorShape, data) {
		t.Fatalf("expected mismatch for wrong color-shape")
	}
}

func TestUnknownTypeFailsClosed(t *testing.T) {
	data := model.VisualPasswordData{Animal: "cat"}
	if Match("cat", model.VisualPasswordType("pattern"), data) {
		t.Fatalf("unknown type must never match")
	}
	if Match("", model.VisualPasswordType("pattern"), data) {
		t.Fatalf("unknown type must never match an empty submission")
	}
}

func TestWrongUnionFieldFailsClosed(t *testing.T) {
	// Declared animal but only the object field is set.
	data := model.VisualPasswordData{Object: "ball"}
	if Match("ball", model.VisualAnimal, data) {
		t.Fatalf("selection must come from the field matching the type")
	}
	if Match("", model.VisualAnimal, data) {
		t.Fatalf("empty stored selection must never match")
	}
}

func TestCorrectSelection(t *testing.T) {
	if got := CorrectSelection(model.VisualAnimal, model.VisualPasswordData{Animal: "owl"}); got != "owl" {
		t.Fatalf("expected owl, got %q", got)
	}
	if got := CorrectSelection(model.VisualPasswordType("bogus"), model.VisualPasswordData{Animal: "owl"}); got != "" {
		t.Fatalf("expected empty selection for unknown type, got %q", got)
	}
}
