// Package visual implements the student visual-password comparator. It is a
// separate authentication channel from text passwords and must never be
// handed a password hash.
package visual

import "readaloud/internal/model"

// CorrectSelection returns the stored selection for the credential, or ""
// when the type is unknown or the union field for the type is unset.
func CorrectSelection(kind model.VisualPasswordType, data model.VisualPasswordData) string {
	switch kind {
	case model.VisualAnimal:
		return data.Animal
	case model.VisualObject:
		return data.Object
	case model.VisualColorShape:
		return data.ColorShape
	default:
		return ""
	}
}

// Match reports whether submitted equals the stored selection. Comparison is
// exact and case-sensitive; selections come from a closed set of UI options.
// Unknown types and empty stored selections fail closed.
func Match(submitted string, kind model.VisualPasswordType, data model.VisualPasswordData) bool {
	correct := CorrectSelection(kind, data)
	if correct == "" {
		return false
	}
	return submitted == correct
}
