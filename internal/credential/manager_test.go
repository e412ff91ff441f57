package credential

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func writeToken(t *testing.T, dir string, tok *oauth2.Token) string {
	t.Helper()
	path := filepath.Join(dir, "token.json")
	data, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("marshal token: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}
	return path
}

func TestTokenMissingFile(t *testing.T) {
	m := NewManager("id", "secret", filepath.Join(t.TempDir(), "absent.json"))

	_, err := m.Token(context.Background())
	if !errors.Is(err, ErrAuthMissing) {
		t.Errorf("error = %v, want ErrAuthMissing", err)
	}
}

func TestTokenNoRefreshToken(t *testing.T) {
	path := writeToken(t, t.TempDir(), &oauth2.Token{
		AccessToken: "access-only",
		Expiry:      time.Now().Add(time.Hour),
	})
	m := NewManager("id", "secret", path)

	_, err := m.Token(context.Background())
	if !errors.Is(err, ErrAuthMissing) {
		t.Errorf("error = %v, want ErrAuthMissing", err)
	}
}

func TestTokenStillValid(t *testing.T) {
	path := writeToken(t, t.TempDir(), &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	})
	m := NewManager("id", "secret", path)

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token error = %v", err)
	}
	if tok.AccessToken != "access" {
		t.Errorf("access token = %q, token inside skew must pass through unrefreshed", tok.AccessToken)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x/token.json"); got != filepath.Join(home, "x/token.json") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/token.json"); got != "/abs/token.json" {
		t.Errorf("absolute path changed: %q", got)
	}
}
