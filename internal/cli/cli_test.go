package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lazypower/sparkcoach/internal/config"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "sweep", "nudges", "quiz", "resources", "stats", "token", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
	for _, path := range [][]string{{"quiz", "start"}, {"quiz", "answer"}, {"quiz", "status"}, {"nudges", "mark-delivered"}, {"resources", "at-risk"}, {"resources", "due"}} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[1] {
			t.Errorf("command %v not registered", path)
		}
	}
}

func TestAPIClientSendsToken(t *testing.T) {
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"nudges":[]}`))
	}))
	defer ts.Close()

	cfg := config.Default()
	cfg.Server.URL = ts.URL
	cfg.Auth.JWTSecret = "s3cret"

	c, err := apiClient(cfg)
	if err != nil {
		t.Fatalf("apiClient: %v", err)
	}
	if _, err := c.PendingNudges(context.Background(), 0); err != nil {
		t.Fatalf("PendingNudges: %v", err)
	}
	if !strings.HasPrefix(auth, "Bearer ") || len(auth) < 20 {
		t.Errorf("Authorization = %q, want bearer token", auth)
	}
}

func TestAPIClientWithoutSecret(t *testing.T) {
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"nudges":[]}`))
	}))
	defer ts.Close()

	cfg := config.Default()
	cfg.Server.URL = ts.URL

	c, err := apiClient(cfg)
	if err != nil {
		t.Fatalf("apiClient: %v", err)
	}
	if _, err := c.PendingNudges(context.Background(), 0); err != nil {
		t.Fatalf("PendingNudges: %v", err)
	}
	if auth != "" {
		t.Errorf("Authorization = %q, want empty", auth)
	}
}
