package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"readaloud/internal/crypto"
	"readaloud/internal/model"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("READALOUD_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("READALOUD_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	return pool
}

func TestSessionRoundTrip(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	store := NewStore(pool)
	ctx := context.Background()

	principal := model.Principal{
		ID:        uuid.NewString(),
		Role:      model.RoleStudent,
		Active:    true,
		FirstName: "Test",
		LastName:  "Student",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := store.CreatePrincipal(ctx, principal); err != nil {
		t.Fatalf("create principal: %v", err)
	}
	defer func() {
		if _, err := store.DeletePrincipal(ctx, principal.ID); err != nil {
			t.Errorf("cleanup: %v", err)
		}
	}()

	token, err := crypto.NewSessionToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	now := time.Now().UTC()
	session := model.Session{
		ID:             uuid.NewString(),
		PrincipalID:    principal.ID,
		TokenHash:      crypto.HashToken(token),
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(24 * time.Hour),
	}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	found, err := store.GetSessionByTokenHash(ctx, session.TokenHash)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if found.PrincipalID != principal.ID {
		t.Fatalf("unexpected principal %s", found.PrincipalID)
	}

	if err := store.TouchSession(ctx, session.ID, now.Add(time.Minute)); err != nil {
		t.Fatalf("touch session: %v", err)
	}

	if err := store.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	// Idempotent: deleting again is not an error.
	if err := store.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.GetSessionByTokenHash(ctx, session.TokenHash); !store.NotFound(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestStudentCredentialRoundTrip(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	store := NewStore(pool)
	ctx := context.Background()

	principal := model.Principal{
		ID:        uuid.NewString(),
		Role:      model.RoleStudent,
		Active:    true,
		FirstName: "Test",
		LastName:  "Student",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := store.CreatePrincipal(ctx, principal); err != nil {
		t.Fatalf("create principal: %v", err)
	}
	defer func() {
		if _, err := store.DeletePrincipal(ctx, principal.ID); err != nil {
			t.Errorf("cleanup: %v", err)
		}
	}()

	credential := model.StudentCredential{
		PrincipalID: principal.ID,
		Type:        model.VisualAnimal,
		Data:        model.VisualPasswordData{Animal: "cat"},
	}
	if err := store.UpsertStudentCredential(ctx, credential); err != nil {
		t.Fatalf("upsert credential: %v", err)
	}

	found, err := store.GetStudentCredential(ctx, principal.ID)
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if found.Type != model.VisualAnimal || found.Data.Animal != "cat" {
		t.Fatalf("unexpected credential %+v", found)
	}

	// Rotation replaces the union in place.
	credential.Type = model.VisualObject
	credential.Data = model.VisualPasswordData{Object: "kite"}
	if err := store.UpsertStudentCredential(ctx, credential); err != nil {
		t.Fatalf("rotate credential: %v", err)
	}
	found, err = store.GetStudentCredential(ctx, principal.ID)
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if found.Type != model.VisualObject || found.Data.Object != "kite" || found.Data.Animal != "" {
		t.Fatalf("unexpected rotated credential %+v", found)
	}
}
