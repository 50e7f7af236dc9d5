package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"readaloud/internal/audit"
	"readaloud/internal/auth"
	"readaloud/internal/config"
	"readaloud/internal/crypto"
	"readaloud/internal/model"
	"readaloud/internal/repository"
)

// SessionCookieName is the fixed cookie carrying the opaque session token.
const SessionCookieName = "readaloud_session"

// Store is the provisioning/read surface the handlers need beyond the auth
// service. *repository.Store implements it; tests use an in-memory fake.
type Store interface {
	GetPrincipalByID(ctx context.Context, id string) (model.Principal, error)
	CreatePrincipal(ctx context.Context, principal model.Principal) error
	UpdatePrincipal(ctx context.Context, id string, update repository.PrincipalUpdate) (model.Principal, error)
	DeletePrincipal(ctx context.Context, id string) (bool, error)
	ListPrincipals(ctx context.Context, role model.Role, limit int) ([]model.Principal, error)
	UpsertStudentCredential(ctx context.Context, credential model.StudentCredential) error
	GetClass(ctx context.Context, classID string) (model.Class, error)
	UpdateClassTeacher(ctx context.Context, classID, teacherID string) (model.Class, error)
	UpdateClassName(ctx context.Context, classID, name string) (model.Class, error)
	ListRoster(ctx context.Context, classID string) ([]model.RosterEntry, error)
	TeacherHasStudent(ctx context.Context, teacherID, studentID string) (bool, error)
	NotFound(err error) bool
}

type Server struct {
	cfg   config.Config
	auth  *auth.Service
	store Store
	sink  audit.Sink
}

func NewServer(cfg config.Config, authService *auth.Service, store Store, sink audit.Sink) *Server {
	return &Server{cfg: cfg, auth: authService, store: store, sink: sink}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/student-login", s.handleStudentLogin)
	r.Post("/auth/logout", s.handleLogout)
	r.With(s.withUser).Get("/auth/me", s.handleMe)

	// Pre-auth: the student login screen needs the closed roster to pick from.
	r.Get("/classes/{classID}/roster", s.handleRoster)
	r.With(s.withUser).Patch("/classes/{classID}", s.handlePatchClass)

	r.Route("/users", func(r chi.Router) {
		r.Use(s.withUser)
		r.With(s.requireAdmin).Get("/", s.handleListUsers)
		r.With(s.requireAdmin).Post("/", s.handleCreateUser)
		r.Get("/{userID}", s.handleGetUser)
		r.Patch("/{userID}", s.handleUpdateUser)
		r.With(s.requireAdmin).Delete("/{userID}", s.handleDeleteUser)
	})

	r.With(s.withUser).Put("/students/{studentID}/visual-password", s.handleSetVisualPassword)

	return r
}

type principalSummary struct {
	ID        string  `json:"id"`
	Email     *string `json:"email,omitempty"`
	Role      string  `json:"role"`
	Active    bool    `json:"active"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
}

func summarize(principal model.Principal) principalSummary {
	return principalSummary{
		ID:        principal.ID,
		Email:     principal.Email,
		Role:      string(principal.Role),
		Active:    principal.Active,
		FirstName: principal.FirstName,
		LastName:  principal.LastName,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User             principalSummary `json:"user"`
	NextAssignmentID string           `json:"nextAssignmentId,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.auth.LoginStandard(r.Context(), req.Email, req.Password, clientMeta(r))
	if err != nil {
		loginAttempts.WithLabelValues("standard", "rejected").Inc()
		s.writeAuthError(w, err)
		return
	}
	loginAttempts.WithLabelValues("standard", "authenticated").Inc()

	s.setSessionCookie(w, result.Token, s.cfg.SessionTTL)
	writeJSON(w, http.StatusOK, loginResponse{User: summarize(result.Principal)})
}

type studentLoginRequest struct {
	StudentID      string `json:"studentId"`
	VisualPassword string `json:"visualPassword"`
	ClassID        string `json:"classId,omitempty"`
}

func (s *Server) handleStudentLogin(w http.ResponseWriter, r *http.Request) {
	var req studentLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.auth.LoginVisual(r.Context(), req.StudentID, req.VisualPassword, req.ClassID, clientMeta(r))
	if err != nil {
		loginAttempts.WithLabelValues("visual", "rejected").Inc()
		s.writeAuthError(w, err)
		return
	}
	loginAttempts.WithLabelValues("visual", "authenticated").Inc()

	s.setSessionCookie(w, result.Token, auth.StudentSessionTTL)
	writeJSON(w, http.StatusOK, loginResponse{
		User:             summarize(result.Principal),
		NextAssignmentID: result.NextAssignmentID,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
			log.Printf("logout error: %v", err)
		}
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, summarize(principal))
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	class, err := s.store.GetClass(r.Context(), classID)
	if err != nil {
		if s.store.NotFound(err) {
			writeError(w, http.StatusNotFound, "class_not_found")
			return
		}
		s.serverError(w, err)
		return
	}
	if !class.Active {
		writeError(w, http.StatusNotFound, "class_not_found")
		return
	}

	roster, err := s.store.ListRoster(r.Context(), classID)
	if err != nil {
		s.serverError(w, err)
		return
	}

	type rosterEntry struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	resp := make([]rosterEntry, 0, len(roster))
	for _, entry := range roster {
		resp = append(resp, rosterEntry{ID: entry.PrincipalID, FirstName: entry.FirstName, LastName: entry.LastName})
	}
	writeJSON(w, http.StatusOK, resp)
}

type patchClassRequest struct {
	TeacherID *string `json:"teacherId,omitempty"`
	Name      *string `json:"name,omitempty"`
}

func (s *Server) handlePatchClass(w http.ResponseWriter, r *http.Request) {
	actor := userFromContext(r.Context())
	classID := chi.URLParam(r, "classID")

	var req patchClassRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	class, err := s.store.GetClass(r.Context(), classID)
	if err != nil {
		if s.store.NotFound(err) {
			writeError(w, http.StatusNotFound, "class_not_found")
			return
		}
		s.serverError(w, err)
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "missing_name")
			return
		}
		if !auth.CanManageClass(actor, class) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		class, err = s.store.UpdateClassName(r.Context(), classID, name)
		if err != nil {
			s.serverError(w, err)
			return
		}
	}

	if req.TeacherID != nil {
		// Reassignment moves a class between teachers; ownership does not
		// cover it, only admins may do it.
		if err := auth.RequireRole(actor, model.RoleAdmin); err != nil {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		teacherID := strings.TrimSpace(*req.TeacherID)
		if teacherID == "" {
			writeError(w, http.StatusBadRequest, "missing_teacher_id")
			return
		}
		teacher, err := s.store.GetPrincipalByID(r.Context(), teacherID)
		if err != nil {
			if s.store.NotFound(err) {
				writeError(w, http.StatusNotFound, "teacher_not_found")
				return
			}
			s.serverError(w, err)
			return
		}
		if teacher.Role != model.RoleTeacher {
			writeError(w, http.StatusBadRequest, "not_a_teacher")
			return
		}

		class, err = s.store.UpdateClassTeacher(r.Context(), classID, teacherID)
		if err != nil {
			s.serverError(w, err)
			return
		}

		audit.Record(r.Context(), s.sink, audit.Entry{
			ActorID:      actor.ID,
			Action:       "class.reassign",
			ResourceType: "class",
			ResourceID:   class.ID,
			Details:      "teacher " + teacherID,
			IPAddress:    clientIP(r),
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":        class.ID,
		"teacherId": class.TeacherID,
		"name":      class.Name,
	})
}

type createUserRequest struct {
	Email              string                    `json:"email,omitempty"`
	Password           string                    `json:"password,omitempty"`
	Role               string                    `json:"role"`
	FirstName          string                    `json:"firstName"`
	LastName           string                    `json:"lastName"`
	VisualPasswordType string                    `json:"visualPasswordType,omitempty"`
	VisualPasswordData *model.VisualPasswordData `json:"visualPasswordData,omitempty"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	actor := userFromContext(r.Context())

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	role := model.Role(strings.TrimSpace(strings.ToLower(req.Role)))
	if !model.ValidRole(role) {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	now := time.Now().UTC()
	principal := model.Principal{
		ID:        uuid.NewString(),
		Role:      role,
		Active:    true,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if role == model.RoleStudent {
		if req.Email != "" || req.Password != "" {
			writeError(w, http.StatusBadRequest, "student_uses_visual_password")
			return
		}
	} else {
		email := strings.TrimSpace(strings.ToLower(req.Email))
		if email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "missing_credentials")
			return
		}
		hash, err := crypto.HashPassword(req.Password)
		if err != nil {
			s.serverError(w, err)
			return
		}
		principal.Email = &email
		principal.PasswordHash = &hash
	}

	var credential *model.StudentCredential
	if req.VisualPasswordType != "" || req.VisualPasswordData != nil {
		if role != model.RoleStudent || req.VisualPasswordData == nil {
			writeError(w, http.StatusBadRequest, "invalid_visual_password")
			return
		}
		kind := model.VisualPasswordType(req.VisualPasswordType)
		if !req.VisualPasswordData.Valid(kind) {
			writeError(w, http.StatusBadRequest, "invalid_visual_password")
			return
		}
		credential = &model.StudentCredential{
			PrincipalID: principal.ID,
			Type:        kind,
			Data:        *req.VisualPasswordData,
		}
	}

	if err := s.store.CreatePrincipal(r.Context(), principal); err != nil {
		writeError(w, http.StatusBadRequest, "user_create_failed")
		return
	}
	if credential != nil {
		if err := s.store.UpsertStudentCredential(r.Context(), *credential); err != nil {
			s.serverError(w, err)
			return
		}
	}

	audit.Record(r.Context(), s.sink, audit.Entry{
		ActorID:      actor.ID,
		Action:       "user.create",
		ResourceType: "user",
		ResourceID:   principal.ID,
		Details:      "role " + string(role),
		IPAddress:    clientIP(r),
	})

	writeJSON(w, http.StatusCreated, summarize(principal))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	role := model.Role(r.URL.Query().Get("role"))

	principals, err := s.store.ListPrincipals(r.Context(), role, limit)
	if err != nil {
		s.serverError(w, err)
		return
	}

	summaries := make([]principalSummary, 0, len(principals))
	for _, principal := range principals {
		summaries = append(summaries, summarize(principal))
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	actor := userFromContext(r.Context())
	userID := chi.URLParam(r, "userID")
	if actor.Role != model.RoleAdmin && actor.ID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	principal, err := s.store.GetPrincipalByID(r.Context(), userID)
	if err != nil {
		if s.store.NotFound(err) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(principal))
}

type updateUserRequest struct {
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Active    *bool   `json:"active,omitempty"`
	Role      *string `json:"role,omitempty"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor := userFromContext(r.Context())
	userID := chi.URLParam(r, "userID")

	isAdmin := actor.Role == model.RoleAdmin
	if !isAdmin && actor.ID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	update := repository.PrincipalUpdate{}
	if req.Email != nil && isAdmin {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email != "" {
			update.Email = &email
		}
	}
	if req.FirstName != nil {
		first := strings.TrimSpace(*req.FirstName)
		if first != "" {
			update.FirstName = &first
		}
	}
	if req.LastName != nil {
		last := strings.TrimSpace(*req.LastName)
		if last != "" {
			update.LastName = &last
		}
	}
	if req.Password != nil && strings.TrimSpace(*req.Password) != "" {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			s.serverError(w, err)
			return
		}
		update.PasswordHash = &hash
	}
	if req.Active != nil && isAdmin {
		update.Active = req.Active
	}
	if req.Role != nil {
		// Role is immutable outside an explicit admin update.
		if !isAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		role := model.Role(strings.TrimSpace(strings.ToLower(*req.Role)))
		if !model.ValidRole(role) {
			writeError(w, http.StatusBadRequest, "invalid_role")
			return
		}
		update.Role = &role
	}

	principal, err := s.store.UpdatePrincipal(r.Context(), userID, update)
	if err != nil {
		if s.store.NotFound(err) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusBadRequest, "update_failed")
		return
	}

	if isAdmin {
		audit.Record(r.Context(), s.sink, audit.Entry{
			ActorID:      actor.ID,
			Action:       "user.update",
			ResourceType: "user",
			ResourceID:   userID,
			IPAddress:    clientIP(r),
		})
	}

	writeJSON(w, http.StatusOK, summarize(principal))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := userFromContext(r.Context())
	userID := chi.URLParam(r, "userID")

	if err := auth.CanDeletePrincipal(actor, userID); err != nil {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	deleted, err := s.store.DeletePrincipal(r.Context(), userID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}

	audit.Record(r.Context(), s.sink, audit.Entry{
		ActorID:      actor.ID,
		Action:       "user.delete",
		ResourceType: "user",
		ResourceID:   userID,
		IPAddress:    clientIP(r),
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type setVisualPasswordRequest struct {
	Type string                   `json:"type"`
	Data model.VisualPasswordData `json:"data"`
}

func (s *Server) handleSetVisualPassword(w http.ResponseWriter, r *http.Request) {
	actor := userFromContext(r.Context())
	studentID := chi.URLParam(r, "studentID")

	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleTeacher:
		has, err := s.store.TeacherHasStudent(r.Context(), actor.ID, studentID)
		if err != nil {
			s.serverError(w, err)
			return
		}
		if !has {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	default:
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	student, err := s.store.GetPrincipalByID(r.Context(), studentID)
	if err != nil {
		if s.store.NotFound(err) {
			writeError(w, http.StatusNotFound, "student_not_found")
			return
		}
		s.serverError(w, err)
		return
	}
	if student.Role != model.RoleStudent {
		writeError(w, http.StatusBadRequest, "not_a_student")
		return
	}

	var req setVisualPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	kind := model.VisualPasswordType(req.Type)
	if !req.Data.Valid(kind) {
		writeError(w, http.StatusBadRequest, "invalid_visual_password")
		return
	}

	if err := s.store.UpsertStudentCredential(r.Context(), model.StudentCredential{
		PrincipalID: studentID,
		Type:        kind,
		Data:        req.Data,
	}); err != nil {
		s.serverError(w, err)
		return
	}

	audit.Record(r.Context(), s.sink, audit.Entry{
		ActorID:      actor.ID,
		Action:       "student.visual_password.update",
		ResourceType: "user",
		ResourceID:   studentID,
		IPAddress:    clientIP(r),
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		principal, err := s.auth.Resolve(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			s.serverError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireRole(userFromContext(r.Context()), model.RoleAdmin); err != nil {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userKey struct{}

func userFromContext(ctx context.Context) model.Principal {
	principal, _ := ctx.Value(userKey{}).(model.Principal)
	return principal
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Production(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Production(),
		SameSite: http.SameSiteLaxMode,
	})
}

// writeAuthError maps the auth taxonomy onto caller-visible outcomes. The
// inactive case deliberately reads the same as bad credentials.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInactiveAccount):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, auth.ErrNotEnrolled):
		writeError(w, http.StatusForbidden, "not_enrolled")
	case errors.Is(err, auth.ErrClassInactive):
		writeError(w, http.StatusForbidden, "class_inactive")
	case errors.Is(err, auth.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too_many_attempts")
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		s.serverError(w, err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	log.Printf("server error: %v", err)
	writeError(w, http.StatusInternalServerError, "server_error")
}

func clientMeta(r *http.Request) auth.ClientMeta {
	return auth.ClientMeta{UserAgent: r.UserAgent(), IPAddress: clientIP(r)}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
