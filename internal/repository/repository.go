package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"readaloud/internal/model"
)

// Store implements the identity, session, enrollment, assignment and audit
// stores against Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) NotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

const principalColumns = `id, email, role, active, password_hash, first_name, last_name, created_at, updated_at`

func scanPrincipal(row pgx.Row) (model.Principal, error) {
	var principal model.Principal
	err := row.Scan(
		&principal.ID,
		&principal.Email,
		&principal.Role,
		&principal.Active,
		&principal.PasswordHash,
		&principal.FirstName,
		&principal.LastName,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	)
	return principal, err
}

func (s *Store) GetPrincipalByEmail(ctx context.Context, email string) (model.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		WHERE email = $1
	`, email)
	return scanPrincipal(row)
}

func (s *Store) GetPrincipalByID(ctx context.Context, id string) (model.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		WHERE id = $1
	`, id)
	return scanPrincipal(row)
}

func (s *Store) CreatePrincipal(ctx context.Context, principal model.Principal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO principals (id, email, role, active, password_hash, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, principal.ID, principal.Email, principal.Role, principal.Active, principal.PasswordHash,
		principal.FirstName, principal.LastName, principal.CreatedAt, principal.UpdatedAt)
	return err
}

// PrincipalUpdate applies only the fields that are set. Role changes go
// through here too, which keeps them an explicit admin operation.
type PrincipalUpdate struct {
	Email        *string
	FirstName    *string
	LastName     *string
	PasswordHash *string
	Active       *bool
	Role         *model.Role
}

func (s *Store) UpdatePrincipal(ctx context.Context, id string, update PrincipalUpdate) (model.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE principals
		SET email = COALESCE($2, email),
		    first_name = COALESCE($3, first_name),
		    last_name = COALESCE($4, last_name),
		    password_hash = COALESCE($5, password_hash),
		    active = COALESCE($6, active),
		    role = COALESCE($7, role),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+principalColumns+`
	`, id, update.Email, update.FirstName, update.LastName, update.PasswordHash, update.Active, update.Role)
	return scanPrincipal(row)
}

// DeletePrincipal removes the principal; sessions and the student credential
// cascade at the schema level.
func (s *Store) DeletePrincipal(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM principals WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListPrincipals(ctx context.Context, role model.Role, limit int) ([]model.Principal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		WHERE ($1 = '' OR role = $1)
		ORDER BY last_name, first_name
		LIMIT $2
	`, string(role), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var principals []model.Principal
	for rows.Next() {
		principal, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, principal)
	}
	return principals, rows.Err()
}

func (s *Store) GetStudentCredential(ctx context.Context, principalID string) (model.StudentCredential, error) {
	var credential model.StudentCredential
	row := s.pool.QueryRow(ctx, `
		SELECT principal_id, visual_password_type, visual_password_data, updated_at
		FROM student_credentials
		WHERE principal_id = $1
	`, principalID)
	err := row.Scan(&credential.PrincipalID, &credential.Type, &credential.Data, &credential.UpdatedAt)
	return credential, err
}

func (s *Store) UpsertStudentCredential(ctx context.Context, credential model.StudentCredential) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO student_credentials (principal_id, visual_password_type, visual_password_data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (principal_id)
		DO UPDATE SET visual_password_type = $2, visual_password_data = $3, updated_at = now()
	`, credential.PrincipalID, credential.Type, credential.Data)
	return err
}

func (s *Store) CreateSession(ctx context.Context, session model.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, principal_id, token_hash, created_at, last_activity_at, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.PrincipalID, session.TokenHash, session.CreatedAt,
		session.LastActivityAt, session.ExpiresAt, session.UserAgent, session.IPAddress)
	return err
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var session model.Session
	row := s.pool.QueryRow(ctx, `
		SELECT id, principal_id, token_hash, created_at, last_activity_at, expires_at, user_agent, ip_address
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(&session.ID, &session.PrincipalID, &session.TokenHash, &session.CreatedAt,
		&session.LastActivityAt, &session.ExpiresAt, &session.UserAgent, &session.IPAddress)
	return session, err
}

func (s *Store) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET last_activity_at = $1 WHERE id = $2`, at, sessionID)
	return err
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	return err
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) GetClass(ctx context.Context, classID string) (model.Class, error) {
	var class model.Class
	row := s.pool.QueryRow(ctx, `
		SELECT id, teacher_id, name, active, created_at
		FROM classes
		WHERE id = $1
	`, classID)
	err := row.Scan(&class.ID, &class.TeacherID, &class.Name, &class.Active, &class.CreatedAt)
	return class, err
}

func (s *Store) IsEnrolled(ctx context.Context, studentID, classID string) (bool, error) {
	var enrolled bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2
		)
	`, studentID, classID).Scan(&enrolled)
	return enrolled, err
}

// TeacherHasStudent reports whether the student is enrolled in any class
// the teacher owns.
func (s *Store) TeacherHasStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	var has bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM enrollments e
			JOIN classes c ON c.id = e.class_id
			WHERE c.teacher_id = $1 AND e.student_id = $2
		)
	`, teacherID, studentID).Scan(&has)
	return has, err
}

func (s *Store) UpdateClassTeacher(ctx context.Context, classID, teacherID string) (model.Class, error) {
	var class model.Class
	row := s.pool.QueryRow(ctx, `
		UPDATE classes
		SET teacher_id = $2
		WHERE id = $1
		RETURNING id, teacher_id, name, active, created_at
	`, classID, teacherID)
	err := row.Scan(&class.ID, &class.TeacherID, &class.Name, &class.Active, &class.CreatedAt)
	return class, err
}

func (s *Store) UpdateClassName(ctx context.Context, classID, name string) (model.Class, error) {
	var class model.Class
	row := s.pool.QueryRow(ctx, `
		UPDATE classes
		SET name = $2
		WHERE id = $1
		RETURNING id, teacher_id, name, active, created_at
	`, classID, name)
	err := row.Scan(&class.ID, &class.TeacherID, &class.Name, &class.Active, &class.CreatedAt)
	return class, err
}

// ListRoster returns the closed picker roster for a class: active enrolled
// students, names only.
func (s *Store) ListRoster(ctx context.Context, classID string) ([]model.RosterEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.first_name, p.last_name
		FROM enrollments e
		JOIN principals p ON p.id = e.student_id
		WHERE e.class_id = $1 AND p.active = true
		ORDER BY p.first_name, p.last_name
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []model.RosterEntry
	for rows.Next() {
		var entry model.RosterEntry
		if err := rows.Scan(&entry.PrincipalID, &entry.FirstName, &entry.LastName); err != nil {
			return nil, err
		}
		roster = append(roster, entry)
	}
	return roster, rows.Err()
}

// NextAssignmentID returns the earliest-due assignment in the student's
// classes without a completed recording, or "" when nothing is pending.
func (s *Store) NextAssignmentID(ctx context.Context, studentID string) (string, error) {
	var assignmentID string
	row := s.pool.QueryRow(ctx, `
		SELECT a.id
		FROM assignments a
		JOIN enrollments e ON e.class_id = a.class_id
		WHERE e.student_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM recordings r
			WHERE r.assignment_id = a.id AND r.student_id = $1 AND r.completed = true
		  )
		ORDER BY a.due_at
		LIMIT 1
	`, studentID)
	if err := row.Scan(&assignmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return assignmentID, nil
}

func (s *Store) InsertAuditEvent(ctx context.Context, event model.AuditEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, actor_id, action, resource_type, resource_id, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.ActorID, event.Action, event.ResourceType, event.ResourceID,
		event.Details, event.IPAddress, event.CreatedAt)
	return err
}
