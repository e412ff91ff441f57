// Package credential holds and refreshes the mail-access OAuth
// session. The file-upload path does not depend on it; credential
// absence is fatal for the email path only.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// ErrAuthMissing reports that no usable refresh token is configured.
// The caller must run the interactive bootstrap (cmd/authorize) once.
var ErrAuthMissing = errors.New("credential: no refresh token configured")

// refreshSkew is how close to expiry a token may get before it is
// proactively refreshed.
const refreshSkew = 2 * time.Minute

// Manager owns the persisted OAuth token and hands out valid sessions.
type Manager struct {
	cfg       *oauth2.Config
	tokenFile string

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewManager creates a manager for the given OAuth client. The token
// file path may start with "~/".
func NewManager(clientID, clientSecret, tokenFile string) *Manager {
	return &Manager{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{gmail.GmailReadonlyScope},
		},
		tokenFile: ExpandHome(tokenFile),
	}
}

// Token returns a valid session token, refreshing it first when it is
// within the expiry skew. The rotated token is persisted so the next
// process start reuses it.
func (m *Manager) Token(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tok == nil {
		tok, err := m.load()
		if err != nil {
			return nil, err
		}
		m.tok = tok
	}

	if m.tok.RefreshToken == "" {
		return nil, ErrAuthMissing
	}

	if m.tok.Expiry.IsZero() || time.Now().Add(refreshSkew).Before(m.tok.Expiry) {
		return m.tok, nil
	}

	refreshed, err := m.cfg.TokenSource(ctx, m.tok).Token()
	if err != nil {
		return nil, fmt.Errorf("credential: refresh: %w", err)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = m.tok.RefreshToken
	}
	m.tok = refreshed

	if err := m.save(refreshed); err != nil {
		return nil, fmt.Errorf("credential: persist refreshed token: %w", err)
	}
	return m.tok, nil
}

// AuthURL returns the URL the operator visits during the one-time
// interactive bootstrap. Offline access is forced so the exchange
// yields a refresh token.
func (m *Manager) AuthURL() string {
	return m.cfg.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the authorization code for a token pair and persists
// it for unattended use.
func (m *Manager) Exchange(ctx context.Context, code string) error {
	tok, err := m.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("credential: exchange: %w", err)
	}
	if tok.RefreshToken == "" {
		return fmt.Errorf("credential: exchange yielded no refresh token, revoke app access and retry")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = tok
	return m.save(tok)
}

func (m *Manager) load() (*oauth2.Token, error) {
	data, err := os.ReadFile(m.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrAuthMissing
		}
		return nil, fmt.Errorf("credential: read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("credential: parse token file: %w", err)
	}
	return &tok, nil
}

func (m *Manager) save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(m.tokenFile), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	return os.WriteFile(m.tokenFile, data, 0o600)
}

// ExpandHome resolves a leading "~/" against the user home directory.
func ExpandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
