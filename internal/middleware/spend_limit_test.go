package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/models"
)

type stubReservations struct {
	spent decimal.Decimal
}

func (s stubReservations) SumReservationsSince(context.Context, uuid.UUID, time.Time) (decimal.Decimal, error) {
	return s.spent, nil
}

func decP(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// ok200 proves the middleware let the request through.
var ok200 = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func activeUser(limits ...func(*models.User)) *models.User {
	u := &models.User{ID: uuid.New(), IsActive: true}
	for _, f := range limits {
		f(u)
	}
	return u
}

func runSpendLimit(t *testing.T, u *models.User, spent decimal.Decimal, body string, next http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	handler := SpendLimit(stubReservations{spent: spent})(next)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/compute/jobs", strings.NewReader(body))
	if u != nil {
		req = req.WithContext(WithUser(req.Context(), u))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSpendLimit_WithinLimits(t *testing.T) {
	u := activeUser(func(u *models.User) {
		u.MaxCostPerJob = decP(50)
		u.MaxSpendPerDay = decP(200)
	})
	rec := runSpendLimit(t, u, decimal.Zero, `{"type":"TRAINING","cost":"30"}`, ok200)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSpendLimit_NoLimitsConfigured(t *testing.T) {
	rec := runSpendLimit(t, activeUser(), decimal.Zero, `{"type":"INFERENCE","cost":"99999"}`, ok200)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSpendLimit_PerJobExceeded(t *testing.T) {
	u := activeUser(func(u *models.User) { u.MaxCostPerJob = decP(50) })
	rec := runSpendLimit(t, u, decimal.Zero, `{"type":"TRAINING","cost":"51"}`, ok200)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSpendLimit_DailyExceeded(t *testing.T) {
	u := activeUser(func(u *models.User) { u.MaxSpendPerDay = decP(100) })
	// 80 already reserved today + 30 requested > 100.
	rec := runSpendLimit(t, u, decimal.NewFromInt(80), `{"type":"TRAINING","cost":"30"}`, ok200)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	// Exactly at the limit is allowed.
	rec = runSpendLimit(t, u, decimal.NewFromInt(80), `{"type":"TRAINING","cost":"20"}`, ok200)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSpendLimit_BadRequests(t *testing.T) {
	u := activeUser()
	for name, body := range map[string]string{
		"zero cost":     `{"type":"TRAINING","cost":"0"}`,
		"negative cost": `{"type":"TRAINING","cost":"-5"}`,
		"bad type":      `{"type":"MINING","cost":"10"}`,
		"not json":      `cost=10`,
	} {
		rec := runSpendLimit(t, u, decimal.Zero, body, ok200)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestSpendLimit_MissingUser(t *testing.T) {
	rec := runSpendLimit(t, nil, decimal.Zero, `{"type":"TRAINING","cost":"10"}`, ok200)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

// The middleware consumes the body to peek at the cost; the handler must
// still be able to read it in full.
func TestSpendLimit_BodyRestored(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		w.WriteHeader(http.StatusOK)
	})
	body := `{"type":"ANALYSIS","cost":"12.5","parameters":{"depth":3}}`
	rec := runSpendLimit(t, activeUser(), decimal.Zero, body, next)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got != body {
		t.Errorf("handler body: got %q, want %q", got, body)
	}
}
