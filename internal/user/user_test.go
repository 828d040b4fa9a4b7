package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
	"github.com/tap2go/tap2go/internal/storage/memory"
)

func newServer(t *testing.T) (*echo.Echo, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	joined := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	for _, a := range []ledger.Account{
		{ID: "drv-1", Role: ledger.RoleDriver, Email: "ade@example.com", Name: "Ade", LicensePlate: "LAG-123", PhoneNumber: "08030000000", CreatedAt: joined},
		{ID: "stu-1", Role: ledger.RoleStudent, Email: "ngozi@example.com", Name: "Ngozi", Matric: "CSC/2020/001", CreatedAt: joined},
	} {
		if err := store.CreateAccount(ctx, a); err != nil {
			t.Fatalf("create %s: %v", a.ID, err)
		}
	}
	h := NewHandler(ledger.NewService(store), nil)

	e := echo.New()
	e.Validator = httpx.NewValidator()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Request().Header.Get("X-Test-User"); id != "" {
				c.Set("user_id", id)
			}
			return next(c)
		}
	})
	e.GET("/user/:id/profile", h.GetPublicProfile)
	e.PATCH("/user/profile", h.UpdateProfile)
	return e, store
}

func do(e *echo.Echo, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetPublicProfile(t *testing.T) {
	e, _ := newServer(t)

	rec := do(e, http.MethodGet, "/user/drv-1/profile", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var p PublicProfile
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Name != "Ade" || p.Role != ledger.RoleDriver || p.LicensePlate != "LAG-123" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if strings.Contains(rec.Body.String(), "ade@example.com") || strings.Contains(rec.Body.String(), "0803") {
		t.Fatalf("public profile leaked contact details: %s", rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/user/stu-1/profile", "", "")
	if strings.Contains(rec.Body.String(), "CSC/2020/001") {
		t.Fatalf("public profile leaked matric: %s", rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/user/ghost/profile", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateProfile(t *testing.T) {
	e, store := newServer(t)

	rec := do(e, http.MethodPatch, "/user/profile", "stu-1", `{"name":" Ngozi Okafor ","phoneNumber":"08011112222"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	a, err := store.GetAccount(context.Background(), "stu-1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "Ngozi Okafor" || a.PhoneNumber != "08011112222" || a.Matric != "CSC/2020/001" {
		t.Fatalf("unexpected account %+v", a)
	}

	cases := []struct {
		name string
		body string
		want int
	}{
		{"empty body", `{}`, http.StatusBadRequest},
		{"plate on student", `{"licensePlate":"ABC-1"}`, http.StatusBadRequest},
		{"bad phone", `{"phoneNumber":"call me"}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(e, http.MethodPatch, "/user/profile", "stu-1", tc.body); rec.Code != tc.want {
				t.Fatalf("want %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
