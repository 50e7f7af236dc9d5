package auth

import (
	"context"
	"time"

	"readaloud/internal/model"
)

// The stores below are implemented by internal/repository against Postgres
// and by in-memory fakes in tests. Absence is signalled with pgx.ErrNoRows
// by the real implementation; callers only check via errors.Is against the
// error the store returns, so fakes may return any sentinel they declare as
// their not-found error through NotFound().

// IdentityStore reads principals and student credentials.
type IdentityStore interface {
	GetPrincipalByEmail(ctx context.Context, email string) (model.Principal, error)
	GetPrincipalByID(ctx context.Context, id string) (model.Principal, error)
	GetStudentCredential(ctx context.Context, principalID string) (model.StudentCredential, error)
	// NotFound reports whether err means the row does not exist.
	NotFound(err error) bool
}

// SessionStore is the injected session table adapter.
type SessionStore interface {
	CreateSession(ctx context.Context, session model.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (model.Session, error)
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
	NotFound(err error) bool
}

// EnrollmentStore verifies the student/class edge for scoped logins.
type EnrollmentStore interface {
	GetClass(ctx context.Context, classID string) (model.Class, error)
	IsEnrolled(ctx context.Context, studentID, classID string) (bool, error)
	NotFound(err error) bool
}

// AssignmentStore is read after a successful student login, never before.
type AssignmentStore interface {
	// NextAssignmentID returns the earliest assignment the student has not
	// completed, or "" when none is pending.
	NextAssignmentID(ctx context.Context, studentID string) (string, error)
}

// AttemptLimiter throttles visual-password guesses. Implementations must
// not fail a login on limiter infrastructure errors.
type AttemptLimiter interface {
	// Allow records an attempt and reports whether it may proceed.
	Allow(ctx context.Context, studentID string) (bool, error)
	// Reset clears the attempt count after a successful login.
	Reset(ctx context.Context, studentID string) error
}
