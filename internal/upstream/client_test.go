package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientGetProjectForwardsToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/projects/42" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"project":{"id":42,"name":"Launch","status":"active"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoints: Endpoints{ProjectTaskService: server.URL}})
	project, ok := client.GetProject(context.Background(), 42, "secret-token")
	if !ok {
		t.Fatalf("expected project fetch to succeed")
	}
	if len(project) == 0 {
		t.Fatalf("expected raw project document")
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer token forwarded, got %q", gotAuth)
	}
}

func TestClientCollapsesNon2xxToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoints: Endpoints{CommentService: server.URL}})
	count, ok := client.CommentCount(context.Background(), 7)
	if ok {
		t.Fatalf("expected unavailable on 500")
	}
	if count != 0 {
		t.Fatalf("expected zero count on failure, got %d", count)
	}
}

func TestClientCollapsesTimeoutToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(Config{
		Endpoints: Endpoints{AttachmentService: server.URL},
		Timeout:   20 * time.Millisecond,
	})
	if _, ok := client.AttachmentCount(context.Background(), 7); ok {
		t.Fatalf("expected unavailable on timeout")
	}
}

func TestClientMissingBaseURLIsUnavailable(t *testing.T) {
	client := NewClient(Config{})
	if _, ok := client.ActivityStats(context.Background(), 30, ""); ok {
		t.Fatalf("expected unavailable without a base URL")
	}
}

func TestClientVerifyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/verify-token" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":true,"user":{"id":9,"username":"ana","is_admin":true,"is_active":true}}`))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoints: Endpoints{UserService: server.URL}})
	user, ok := client.VerifyToken(context.Background(), "token-1")
	if !ok {
		t.Fatalf("expected token to verify")
	}
	if user.ID != 9 || user.Username != "ana" || !user.IsAdmin {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestClientVerifyTokenInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":false}`))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoints: Endpoints{UserService: server.URL}})
	if _, ok := client.VerifyToken(context.Background(), "expired"); ok {
		t.Fatalf("expected invalid token to fail verification")
	}
}
