package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUserClient_GetUserByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/internal/users/id/7" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"username":"jdoe","firstName":"Jane","lastName":"Doe","email":"jane@example.com"}`))
	}))
	defer srv.Close()

	c := NewUserClient(ClientConfig{BaseURL: srv.URL})
	u, err := c.GetUserByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if u.ID != 7 || u.Username != "jdoe" || u.FirstName != "Jane" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestUserClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewUserClient(ClientConfig{BaseURL: srv.URL})
	if _, err := c.GetUserByID(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewUserClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.GetUserByID(context.Background(), 7)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestUserClient_GetUserByUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/internal/users/username/jdoe" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":7,"username":"jdoe"}`))
	}))
	defer srv.Close()

	c := NewUserClient(ClientConfig{BaseURL: srv.URL})
	u, err := c.GetUserByUsername(context.Background(), "jdoe")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if u.Username != "jdoe" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestPropertyClient_GetPropertyByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/properties/11" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"propertyId":11,"success":true,"title":"Sunny Flat","address":"12 Main St","rentAmount":950,"rented":false,"image":"p.jpg"}`))
	}))
	defer srv.Close()

	c := NewPropertyClient(ClientConfig{BaseURL: srv.URL})
	p, err := c.GetPropertyByID(context.Background(), 11)
	if err != nil {
		t.Fatalf("GetPropertyByID failed: %v", err)
	}
	if p.ID != 11 || p.Title != "Sunny Flat" || p.RentAmount != 950 {
		t.Fatalf("unexpected property: %+v", p)
	}
}

func TestPropertyClient_SuccessFalseIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"property not found"}`))
	}))
	defer srv.Close()

	c := NewPropertyClient(ClientConfig{BaseURL: srv.URL})
	if _, err := c.GetPropertyByID(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPropertyClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := NewPropertyClient(ClientConfig{BaseURL: srv.URL})
	if _, err := c.GetPropertyByID(context.Background(), 11); err == nil {
		t.Fatal("expected error talking to a closed server")
	}
}
