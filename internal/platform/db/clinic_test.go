package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestValidClinicID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"default", true},
		{"casablanca_01", true},
		{"CLINIC42", true},
		{"", false},
		{"clinic-one", false},
		{"a;DROP SCHEMA public", false},
		{"this_identifier_is_definitely_far_too_long_for_a_schema", false},
	}
	for _, tt := range tests {
		if got := ValidClinicID(tt.id); got != tt.valid {
			t.Errorf("ValidClinicID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}

func TestSchemaName(t *testing.T) {
	if got := SchemaName("rabat"); got != "clinic_rabat" {
		t.Errorf("expected clinic_rabat, got %s", got)
	}
}

func TestExtractClinicID(t *testing.T) {
	e := echo.New()

	t.Run("default", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if got := extractClinicID(c, "default"); got != "default" {
			t.Errorf("expected default, got %s", got)
		}
	})

	t.Run("header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(ClinicHeader, "rabat")
		c := e.NewContext(req, httptest.NewRecorder())
		if got := extractClinicID(c, "default"); got != "rabat" {
			t.Errorf("expected rabat, got %s", got)
		}
	})

	t.Run("claim wins over header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(ClinicHeader, "rabat")
		c := e.NewContext(req, httptest.NewRecorder())
		c.Set("jwt_clinic_id", "fes")
		if got := extractClinicID(c, "default"); got != "fes" {
			t.Errorf("expected fes, got %s", got)
		}
	})
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := context.Background()
	if ConnFromContext(ctx) != nil {
		t.Error("expected nil conn")
	}
	if TxFromContext(ctx) != nil {
		t.Error("expected nil tx")
	}
	if ClinicFromContext(ctx) != "" {
		t.Error("expected empty clinic")
	}

	ctx = context.WithValue(ctx, ClinicIDKey, "rabat")
	if ClinicFromContext(ctx) != "rabat" {
		t.Errorf("expected rabat, got %q", ClinicFromContext(ctx))
	}
}

func TestClinicMiddleware_RejectsInvalidID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ClinicHeader, "bad-id;")
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	h := ClinicMiddleware(nil, "default")(func(c echo.Context) error {
		called = true
		return nil
	})

	err := h(c)
	if called {
		t.Error("handler should not run for invalid clinic id")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 HTTPError, got %v", err)
	}
}
