package confluence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Inna0915/obsidian-confluence-flow/internal/apperrors"
)

func TestClient_HTTPErrorCarriesStatusAndBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "server exploded")
	}))
	defer server.Close()

	client := NewClient(server.URL, "u", "t")
	_, err := client.FetchPage(context.Background(), "1")
	if err == nil {
		t.Fatal("expected error")
	}

	var httpErr *apperrors.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error %v is not an HTTPError", err)
	}
	if httpErr.StatusCode != 500 || httpErr.Body != "server exploded" {
		t.Errorf("HTTPError = %+v", httpErr)
	}
}

func TestClient_RetriesOnTooManyRequests(t *testing.T) {
	t.Parallel()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id": "1", "title": "T"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "u", "t")
	page, err := client.FetchPage(context.Background(), "1")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if page.ID != "1" {
		t.Errorf("page = %+v", page)
	}
}

func TestClient_ContextCancellationDuringBackoff(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "u", "t")
	if _, err := client.FetchPage(ctx, "1"); err == nil {
		t.Error("expected error with canceled context")
	}
}

func TestClient_SendsAuthAndAccept(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, token, ok := r.BasicAuth()
		if !ok || user != "u@example.com" || token != "secret" {
			t.Errorf("basic auth = %q/%q/%v", user, token, ok)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		fmt.Fprint(w, `{"id": "1"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "u@example.com", "secret")
	if _, err := client.FetchPage(context.Background(), "1"); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
}
