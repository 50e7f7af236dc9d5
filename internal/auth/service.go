package auth

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"readaloud/internal/crypto"
	"readaloud/internal/model"
	"readaloud/internal/visual"
)

// StudentSessionTTL is fixed for visual logins regardless of the configured
// standard-login TTL.
const StudentSessionTTL = 24 * time.Hour

// ClientMeta carries diagnostic request attributes onto the session row.
// They are never authorization-relevant.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// LoginResult is the outcome of a successful authentication: the principal,
// the plaintext bearer token for the cookie, and the session row as stored.
type LoginResult struct {
	Principal        model.Principal
	Token            string
	Session          model.Session
	NextAssignmentID string
}

// Service orchestrates both login protocols and session resolution against
// injected stores. It holds no state beyond its collaborators.
type Service struct {
	identity    IdentityStore
	sessions    SessionStore
	enrollments EnrollmentStore
	assignments AssignmentStore
	limiter     AttemptLimiter
	sessionTTL  time.Duration
	now         func() time.Time
}

func NewService(identity IdentityStore, sessions SessionStore, enrollments EnrollmentStore, assignments AssignmentStore, limiter AttemptLimiter, sessionTTL time.Duration) *Service {
	return &Service{
		identity:    identity,
		sessions:    sessions,
		enrollments: enrollments,
		assignments: assignments,
		limiter:     limiter,
		sessionTTL:  sessionTTL,
		now:         time.Now,
	}
}

// LoginStandard authenticates a teacher or admin by email and password.
// Unknown email and wrong password collapse into ErrInvalidCredentials.
func (s *Service) LoginStandard(ctx context.Context, email, password string, meta ClientMeta) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	principal, err := s.identity.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if s.identity.NotFound(err) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if principal.PasswordHash == nil {
		// Students have no text password; this protocol never applies.
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := crypto.CheckPassword(*principal.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !principal.Active {
		return LoginResult{}, ErrInactiveAccount
	}

	return s.mintSession(ctx, principal, s.sessionTTL, meta)
}

// LoginVisual authenticates a student by id and visual selection, optionally
// scoped to a class. The class id is verified then discarded; it is never a
// session attribute.
func (s *Service) LoginVisual(ctx context.Context, studentID, selection, classID string, meta ClientMeta) (LoginResult, error) {
	if studentID == "" || selection == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, studentID)
		if err != nil {
			// Limiter outage must not take logins down with it.
			log.Printf("attempt limiter unavailable: %v", err)
		} else if !allowed {
			return LoginResult{}, ErrRateLimited
		}
	}

	principal, err := s.identity.GetPrincipalByID(ctx, studentID)
	if err != nil {
		if s.identity.NotFound(err) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if principal.Role != model.RoleStudent {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !principal.Active {
		return LoginResult{}, ErrInactiveAccount
	}

	if classID != "" {
		class, err := s.enrollments.GetClass(ctx, classID)
		if err != nil {
			if s.enrollments.NotFound(err) {
				return LoginResult{}, ErrNotEnrolled
			}
			return LoginResult{}, err
		}
		if !class.Active {
			return LoginResult{}, ErrClassInactive
		}
		enrolled, err := s.enrollments.IsEnrolled(ctx, studentID, classID)
		if err != nil {
			return LoginResult{}, err
		}
		if !enrolled {
			return LoginResult{}, ErrNotEnrolled
		}
	}

	credential, err := s.identity.GetStudentCredential(ctx, studentID)
	if err != nil {
		if s.identity.NotFound(err) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !visual.Match(selection, credential.Type, credential.Data) {
		return LoginResult{}, ErrInvalidCredentials
	}

	result, err := s.mintSession(ctx, principal, StudentSessionTTL, meta)
	if err != nil {
		return LoginResult{}, err
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, studentID); err != nil {
			log.Printf("attempt limiter reset failed: %v", err)
		}
	}

	// Informational read, performed after authentication and never gating it.
	if s.assignments != nil {
		if next, err := s.assignments.NextAssignmentID(ctx, studentID); err != nil {
			log.Printf("next assignment lookup failed for %s: %v", studentID, err)
		} else {
			result.NextAssignmentID = next
		}
	}

	return result, nil
}

// Resolve maps a bearer token to its principal. Expired or unknown sessions
// and inactive principals all resolve to ErrUnauthenticated.
func (s *Service) Resolve(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, ErrUnauthenticated
	}

	session, err := s.sessions.GetSessionByTokenHash(ctx, crypto.HashToken(token))
	if err != nil {
		if s.sessions.NotFound(err) {
			return model.Principal{}, ErrUnauthenticated
		}
		return model.Principal{}, err
	}

	now := s.now()
	if session.Expired(now) {
		// Lazy expiry: the row is dead either way, deleting it is cleanup.
		if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
			log.Printf("expired session cleanup failed: %v", err)
		}
		return model.Principal{}, ErrUnauthenticated
	}

	principal, err := s.identity.GetPrincipalByID(ctx, session.PrincipalID)
	if err != nil {
		if s.identity.NotFound(err) {
			return model.Principal{}, ErrUnauthenticated
		}
		return model.Principal{}, err
	}
	if !principal.Active {
		return model.Principal{}, ErrUnauthenticated
	}

	if err := s.sessions.TouchSession(ctx, session.ID, now); err != nil {
		log.Printf("session touch failed: %v", err)
	}

	// Callers get a projection without the credential material.
	principal.PasswordHash = nil
	return principal, nil
}

// Logout revokes the session behind token. Revoking an unknown token is not
// an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	session, err := s.sessions.GetSessionByTokenHash(ctx, crypto.HashToken(token))
	if err != nil {
		if s.sessions.NotFound(err) {
			return nil
		}
		return err
	}
	return s.sessions.DeleteSession(ctx, session.ID)
}

// SweepExpired deletes sessions past their expiry. Lazy expiry at resolve
// time is authoritative; this only reclaims rows.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx, s.now())
}

func (s *Service) mintSession(ctx context.Context, principal model.Principal, ttl time.Duration, meta ClientMeta) (LoginResult, error) {
	token, err := crypto.NewSessionToken()
	if err != nil {
		return LoginResult{}, err
	}

	now := s.now()
	session := model.Session{
		ID:             uuid.NewString(),
		PrincipalID:    principal.ID,
		TokenHash:      crypto.HashToken(token),
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(ttl),
	}
	if meta.UserAgent != "" {
		session.UserAgent = &meta.UserAgent
	}
	if meta.IPAddress != "" {
		session.IPAddress = &meta.IPAddress
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return LoginResult{}, err
	}

	principal.PasswordHash = nil
	return LoginResult{Principal: principal, Token: token, Session: session}, nil
}
