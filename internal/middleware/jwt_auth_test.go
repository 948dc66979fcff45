package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zenithcode/backend/internal/models"
)

type stubValidator struct {
	userID uuid.UUID
	err    error
}

func (s stubValidator) ValidateToken(context.Context, string) (uuid.UUID, error) {
	return s.userID, s.err
}

type stubUsers struct {
	users map[uuid.UUID]*models.User
}

func (s stubUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func TestJWTAuth(t *testing.T) {
	alice := &models.User{ID: uuid.New(), Username: "alice", IsActive: true}
	inactive := &models.User{ID: uuid.New(), Username: "gone", IsActive: false}
	users := stubUsers{users: map[uuid.UUID]*models.User{
		alice.ID:    alice,
		inactive.ID: inactive,
	}}

	var seen *models.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromCtx(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token", func(t *testing.T) {
		seen = nil
		handler := JWTAuth(stubValidator{userID: alice.ID}, users)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if seen == nil || seen.ID != alice.ID {
			t.Error("handler should see the authenticated user in context")
		}
	})

	t.Run("missing header", func(t *testing.T) {
		handler := JWTAuth(stubValidator{userID: alice.ID}, users)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		handler := JWTAuth(stubValidator{err: errors.New("expired")}, users)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		handler := JWTAuth(stubValidator{userID: uuid.New()}, users)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("deactivated user", func(t *testing.T) {
		handler := JWTAuth(stubValidator{userID: inactive.ID}, users)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("lowercase bearer", func(t *testing.T) {
		handler := JWTAuth(stubValidator{userID: alice.ID}, users)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer sometoken")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}
