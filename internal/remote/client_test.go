package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", zerolog.Nop())
}

func TestCreateDecodesEcho(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/customers" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"r-1","phone":"555-0100","version":1}`))
	})

	echo, err := c.Create(context.Background(), "customers", Record{"phone": "555-0100"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if echo.String("id") != "r-1" {
		t.Errorf("echo id = %q, want r-1", echo.String("id"))
	}
	if echo.Int("version") != 1 {
		t.Errorf("echo version = %d, want 1", echo.Int("version"))
	}
}

func TestListDecodesRecords(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		w.Write([]byte(`{"records":[{"id":"r-1"},{"id":"r-2"}]}`))
	})

	records, err := c.List(context.Background(), "products", 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{"duplicate create", http.StatusConflict, `{"code":"already_exists","message":"dup","existing":{"id":"r-9"}}`, KindAlreadyExists},
		{"version conflict", http.StatusConflict, `{"message":"stale version"}`, KindConflict},
		{"not found", http.StatusNotFound, `{"message":"gone"}`, KindNotFound},
		{"throttled", http.StatusTooManyRequests, ``, KindTransient},
		{"server error", http.StatusBadGateway, ``, KindTransient},
		{"rejected payload", http.StatusUnprocessableEntity, `{"message":"missing phone"}`, KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Create(context.Background(), "customers", Record{})
			var ae *APIError
			if !errors.As(err, &ae) {
				t.Fatalf("error %v is not an APIError", err)
			}
			if ae.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", ae.Kind, tt.wantKind)
			}
			if tt.wantKind == KindAlreadyExists && ae.Existing.String("id") != "r-9" {
				t.Errorf("existing copy not carried: %v", ae.Existing)
			}
		})
	}
}

func TestConnectionFailureIsTransient(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", zerolog.Nop())
	_, err := c.List(context.Background(), "customers", 0)
	if !IsTransient(err) {
		t.Fatalf("connection refusal should classify transient, got %v", err)
	}
}
