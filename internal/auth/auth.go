// Package auth holds the authenticated session used by every table: the
// current user, the access token and the calls that renew or end it.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/studiowebux/tablesync/internal/types"
)

const (
	// TokenRequestTimeout is the timeout for login, refresh and logout requests
	TokenRequestTimeout = 30 * time.Second
)

var (
	// ErrNotAuthenticated is returned when no usable token is stored
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Session is what gets persisted between runs
type Session struct {
	User        *types.User `json:"user,omitempty"`
	AccessToken string      `json:"accessToken"`
	TokenType   string      `json:"tokenType,omitempty"`
	Expiry      time.Time   `json:"expiry,omitempty"`
}

// TokenResponse is the body returned by /auth/token and /auth/refresh
type TokenResponse struct {
	AccessToken    string             `json:"access_token"`
	TokenType      string             `json:"token_type"`
	ExpirationTime time.Time          `json:"expiration_time"`
	UserID         int                `json:"user_id,omitempty"`
	EmployeeNo     string             `json:"employee_no,omitempty"`
	Name           string             `json:"name,omitempty"`
	Departments    []types.Department `json:"departments,omitempty"`
}

// Service manages the session file and token lifecycle
type Service struct {
	mu      sync.RWMutex
	session Session

	baseURL string
	path    string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithHTTPClient sets the client used for auth endpoints
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service for the API at baseURL. sessionPath may be
// empty, in which case nothing is persisted.
func NewService(baseURL, sessionPath string, opts ...Option) *Service {
	s := &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    sessionPath,
		client:  &http.Client{Timeout: TokenRequestTimeout},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the session file. A missing file leaves the service logged out.
func (s *Service) Load() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	return nil
}

// Save writes the session file
func (s *Service) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	data, err := json.MarshalIndent(s.session, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// UseToken installs a static token, e.g. one given on the command line.
// It never expires locally.
func (s *Service) UseToken(token string) {
	s.mu.Lock()
	s.session.AccessToken = token
	s.session.TokenType = "Bearer"
	s.session.Expiry = time.Time{}
	s.mu.Unlock()
}

// Token returns the current access token, or "" when logged out
func (s *Service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.AccessToken
}

// CurrentUser returns the logged-in user
func (s *Service) CurrentUser() (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session.User == nil {
		return types.User{}, false
	}
	return *s.session.User, true
}

// IsAuthenticated reports whether a token is held and has not expired
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session.AccessToken == "" {
		return false
	}
	return s.session.Expiry.IsZero() || s.now().Before(s.session.Expiry)
}

// Login exchanges credentials for a token and stores the user
func (s *Service) Login(ctx context.Context, employeeNo, password string) error {
	data := url.Values{}
	data.Set("username", employeeNo)
	data.Set("password", password)

	tok, err := s.tokenRequest(ctx, "/auth/token", strings.NewReader(data.Encode()), "")
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	user := &types.User{
		ID:          tok.UserID,
		EmployeeNo:  tok.EmployeeNo,
		Name:        tok.Name,
		Departments: tok.Departments,
		ExpiresAt:   tok.ExpirationTime,
	}
	if user.EmployeeNo == "" {
		user.EmployeeNo = employeeNo
	}

	s.mu.Lock()
	s.session = Session{
		User:        user,
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      tok.ExpirationTime,
	}
	s.mu.Unlock()

	s.logger.Info("logged in", "employee_no", user.EmployeeNo)
	return s.Save()
}

// RefreshToken renews the access token. On failure the session is cleared,
// so the caller has to log in again.
func (s *Service) RefreshToken(ctx context.Context) error {
	current := s.Token()
	if current == "" {
		return ErrNotAuthenticated
	}

	tok, err := s.tokenRequest(ctx, "/auth/refresh", nil, current)
	if err != nil {
		s.logger.Warn("token refresh failed", "error", err)
		s.clear()
		return fmt.Errorf("token refresh failed: %w", err)
	}

	s.mu.Lock()
	if tok.AccessToken != "" {
		s.session.AccessToken = tok.AccessToken
	}
	s.session.Expiry = tok.ExpirationTime
	if s.session.User != nil {
		s.session.User.ExpiresAt = tok.ExpirationTime
	}
	s.mu.Unlock()

	s.logger.Debug("token refreshed", "expiry", tok.ExpirationTime)
	return s.Save()
}

// Logout tells the server and drops the local session. The local session is
// dropped even when the server call fails.
func (s *Service) Logout(ctx context.Context) error {
	current := s.Token()
	defer s.clear()

	if current == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, TokenRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+current)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("logout request failed", "error", err)
		return nil
	}
	resp.Body.Close()
	return nil
}

// Me re-reads the current user from /auth/me and stores it. Department
// memberships granted since login become visible this way.
func (s *Service) Me(ctx context.Context) (types.User, error) {
	current := s.Token()
	if current == "" {
		return types.User{}, ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, TokenRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/auth/me", nil)
	if err != nil {
		return types.User{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+current)

	resp, err := s.client.Do(req)
	if err != nil {
		return types.User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return types.User{}, ErrNotAuthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return types.User{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var user types.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return types.User{}, fmt.Errorf("failed to parse user: %w", err)
	}

	s.mu.Lock()
	s.session.User = &user
	s.mu.Unlock()
	return user, s.Save()
}

func (s *Service) clear() {
	s.mu.Lock()
	s.session = Session{}
	s.mu.Unlock()

	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove session file", "error", err)
		}
	}
}

func (s *Service) tokenRequest(ctx context.Context, path string, body io.Reader, bearer string) (*TokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, TokenRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var tok TokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	return &tok, nil
}

// TokenSource exposes the session token to oauth2 transports. Expired tokens
// are refreshed once before being handed out.
func (s *Service) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, svc: s}
}

// HTTPClient returns a client that attaches the bearer token to every
// request. base may be nil.
func (s *Service) HTTPClient(ctx context.Context, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{Timeout: TokenRequestTimeout}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: s.TokenSource(ctx),
			Base:   transport,
		},
	}
}

type sessionTokenSource struct {
	ctx context.Context
	svc *Service
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	if ts.svc.Token() == "" {
		return nil, ErrNotAuthenticated
	}
	if !ts.svc.IsAuthenticated() {
		if err := ts.svc.RefreshToken(ts.ctx); err != nil {
			return nil, err
		}
	}

	ts.svc.mu.RLock()
	defer ts.svc.mu.RUnlock()
	return &oauth2.Token{
		AccessToken: ts.svc.session.AccessToken,
		TokenType:   "Bearer",
		Expiry:      ts.svc.session.Expiry,
	}, nil
}
