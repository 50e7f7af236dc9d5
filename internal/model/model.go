package model

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func ValidRole(role Role) bool {
	switch role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

// Principal is an identity record. Students authenticate without an email or
// text password, so both columns are nullable for them.
type Principal struct {
	ID           string
	Email        *string
	Role         Role
	Active       bool
	PasswordHash *string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type VisualPasswordType string

const (
	VisualAnimal     VisualPasswordType = "animal"
	VisualObject     VisualPasswordType = "object"
	VisualColorShape VisualPasswordType = "color-shape"
)

// VisualPasswordData is a tagged union keyed by VisualPasswordType. Exactly
// one field is populated, the one matching the declared type.
type VisualPasswordData struct {
	Animal     string `json:"animal,omitempty"`
	Object     string `json:"object,omitempty"`
	ColorShape string `json:"colorShape,omitempty"`
}

// Valid reports whether the union carries exactly the field matching kind.
func (d VisualPasswordData) Valid(kind VisualPasswordType) bool {
	switch kind {
	case VisualAnimal:
		return d.Animal != "" && d.Object == "" && d.ColorShape == ""
	case VisualObject:
		return d.Object != "" && d.Animal == "" && d.ColorShape == ""
	case VisualColorShape:
		return d.ColorShape != "" && d.Animal == "" && d.Object == ""
	default:
		return false
	}
}

// StudentCredential is the one-to-one visual-password extension of a
// student Principal.
type StudentCredential struct {
	PrincipalID string
	Type        VisualPasswordType
	Data        VisualPasswordData
	UpdatedAt   time.Time
}

// Session is a server-held bearer record. TokenHash is the SHA-256 of the
// opaque cookie value; the plaintext token is never stored.
type Session struct {
	ID             string
	PrincipalID    string
	TokenHash      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	UserAgent      *string
	IPAddress      *string
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Class struct {
	ID        string
	TeacherID string
	Name      string
	Active    bool
	CreatedAt time.Time
}

// RosterEntry is the projection exposed to the pre-auth student login
// picker: just enough to render a name tile, never credentials.
type RosterEntry struct {
	PrincipalID string
	FirstName   string
	LastName    string
}

type AuditEvent struct {
	ID           string
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   *string
	Details      *string
	IPAddress    *string
	CreatedAt    time.Time
}
