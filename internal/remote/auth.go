// Package remote talks to the task-navigator backend over HTTP: the auth
// endpoints through golang.org/x/oauth2 and the user_tasks collection as
// plain JSON.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"task-navigator/internal/session"

	"github.com/gofrs/uuid"
	"github.com/spf13/cast"
	"golang.org/x/oauth2"
)

const (
	ClientID = "tasknav-cli"

	tokenPath  = "/auth/v1/token"
	signupPath = "/auth/v1/signup"
	logoutPath = "/auth/v1/logout"
	userPath   = "/auth/v1/user"
)

var ErrNotSignedIn = errors.New("not signed in")

// storedSession is the on-disk form of a session. oauth2.Token does not
// serialize its extra fields, so the user travels next to it.
type storedSession struct {
	Token *oauth2.Token    `json:"token"`
	User  session.Identity `json:"user"`
}

type ProviderConfig struct {
	BaseURL     string
	SessionPath string // empty keeps the session in memory only
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

type listener struct {
	id int
	fn func(session.Event, *session.Identity)
}

// AuthProvider is a session.Provider backed by the backend's auth
// endpoints. It is also an oauth2.TokenSource, refreshing the access token
// on demand and announcing each refresh as TOKEN_REFRESHED.
type AuthProvider struct {
	baseURL     string
	oauth       *oauth2.Config
	httpClient  *http.Client
	sessionPath string
	logger      *slog.Logger

	// refreshMu serializes refreshes; refresh tokens are single use.
	refreshMu sync.Mutex

	mu        sync.Mutex
	token     *oauth2.Token
	identity  *session.Identity
	loaded    bool
	listeners []listener
	nextID    int
}

func NewAuthProvider(cfg ProviderConfig) *AuthProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthProvider{
		baseURL: baseURL,
		oauth: &oauth2.Config{
			ClientID: ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient:  httpClient,
		sessionPath: cfg.SessionPath,
		logger:      logger.With("component", "auth_provider"),
	}
}

// DefaultSessionPath is where the command line client keeps its session.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tasknav", "session.json"), nil
}

func (p *AuthProvider) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *AuthProvider) OnAuthStateChange(fn func(session.Event, *session.Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners = append(p.listeners, listener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, l := range p.listeners {
				if l.id == id {
					p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

func (p *AuthProvider) emit(event session.Event, identity *session.Identity) {
	p.mu.Lock()
	listeners := append([]listener(nil), p.listeners...)
	p.mu.Unlock()

	for _, l := range listeners {
		var copied *session.Identity
		if identity != nil {
			v := *identity
			copied = &v
		}
		l.fn(event, copied)
	}
}

// GetSession returns the stored session, reading the session file on first
// use. An expired access token is refreshed; a refresh the backend rejects
// ends the session.
func (p *AuthProvider) GetSession(ctx context.Context) (*session.Identity, error) {
	if err := p.loadOnce(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	valid := p.token != nil && p.token.Valid()
	hasToken := p.token != nil
	p.mu.Unlock()

	if !hasToken {
		return nil, nil
	}
	if !valid {
		if _, err := p.refresh(ctx); err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				p.logger.Info("stored session rejected", "error", retrieveErr.ErrorCode)
				p.clear()
				return nil, nil
			}
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.identity == nil {
		return nil, nil
	}
	identity := *p.identity
	return &identity, nil
}

func (p *AuthProvider) loadOnce() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return nil
	}
	p.loaded = true
	if p.sessionPath == "" {
		return nil
	}

	data, err := os.ReadFile(p.sessionPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		p.logger.Warn("ignoring unreadable session file", "path", p.sessionPath, "error", err)
		return nil
	}
	if stored.Token == nil || stored.User.ID == uuid.Nil {
		return nil
	}
	p.token = stored.Token
	identity := stored.User
	p.identity = &identity
	return nil
}

// Token implements oauth2.TokenSource over the current session.
func (p *AuthProvider) Token() (*oauth2.Token, error) {
	if err := p.loadOnce(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	tok := p.token
	p.mu.Unlock()

	if tok == nil {
		return nil, ErrNotSignedIn
	}
	if tok.Valid() {
		return tok, nil
	}
	return p.refresh(context.Background())
}

func (p *AuthProvider) refresh(ctx context.Context) (*oauth2.Token, error) {
	p.refreshMu.Lock()

	p.mu.Lock()
	current := p.token
	p.mu.Unlock()
	if current == nil {
		p.refreshMu.Unlock()
		return nil, ErrNotSignedIn
	}
	if current.Valid() {
		// Someone else refreshed while we waited.
		p.refreshMu.Unlock()
		return current, nil
	}

	expired := *current
	expired.Expiry = time.Unix(1, 0)
	tok, err := p.oauth.TokenSource(p.oauthContext(ctx), &expired).Token()
	if err != nil {
		p.refreshMu.Unlock()
		return nil, err
	}

	identity := identityFromToken(tok)
	p.mu.Lock()
	p.token = tok
	if identity != nil {
		p.identity = identity
	}
	identity = p.identity
	p.mu.Unlock()
	p.refreshMu.Unlock()

	p.persist()
	p.emit(session.EventTokenRefreshed, identity)
	return tok, nil
}

func identityFromToken(tok *oauth2.Token) *session.Identity {
	user, ok := tok.Extra("user").(map[string]interface{})
	if !ok {
		return nil
	}
	id, err := uuid.FromString(cast.ToString(user["id"]))
	if err != nil {
		return nil
	}
	return &session.Identity{ID: id, Email: cast.ToString(user["email"])}
}

func (p *AuthProvider) SignInWithPassword(ctx context.Context, email, password string) (*session.Identity, error) {
	tok, err := p.oauth.PasswordCredentialsToken(p.oauthContext(ctx), email, password)
	if err != nil {
		return nil, authError(err)
	}

	identity := identityFromToken(tok)
	if identity == nil {
		return nil, &session.AuthError{Message: "Token response did not include a user"}
	}
	p.establish(tok, identity)
	return identity, nil
}

type signupResponse struct {
	AccessToken  string           `json:"access_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	RefreshToken string           `json:"refresh_token"`
	User         session.Identity `json:"user"`
}

func (p *AuthProvider) SignUp(ctx context.Context, email, password string) (*session.Identity, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+signupPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, session.NewAuthError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, authError(decodeAPIError(resp))
	}

	var created signupResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, session.NewAuthError(fmt.Errorf("failed to decode signup response: %w", err))
	}

	tok := &oauth2.Token{
		AccessToken:  created.AccessToken,
		TokenType:    created.TokenType,
		RefreshToken: created.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(created.ExpiresIn) * time.Second),
	}
	identity := created.User
	p.establish(tok, &identity)
	return &identity, nil
}

func (p *AuthProvider) establish(tok *oauth2.Token, identity *session.Identity) {
	p.mu.Lock()
	p.loaded = true
	p.token = tok
	p.identity = identity
	p.mu.Unlock()

	p.persist()
	p.logger.Info("signed in", "user_id", identity.ID)
	p.emit(session.EventSignedIn, identity)
}

// GetUser asks the backend who the current token belongs to.
func (p *AuthProvider) GetUser(ctx context.Context) (*session.Identity, error) {
	resp, err := p.authorized(ctx, http.MethodGet, userPath)
	if errors.Is(err, ErrNotSignedIn) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, authError(decodeAPIError(resp))
	}

	var identity session.Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, session.NewAuthError(fmt.Errorf("failed to decode user: %w", err))
	}
	return &identity, nil
}

// SignOut revokes the session on the backend and forgets it locally. The
// local session is dropped even when the backend call fails.
func (p *AuthProvider) SignOut(ctx context.Context) error {
	var remoteErr error
	resp, err := p.authorized(ctx, http.MethodPost, logoutPath)
	switch {
	case errors.Is(err, ErrNotSignedIn):
	case err != nil:
		remoteErr = err
	default:
		if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
			remoteErr = authError(decodeAPIError(resp))
		}
		resp.Body.Close()
	}

	p.clear()
	p.emit(session.EventSignedOut, nil)
	return remoteErr
}

func (p *AuthProvider) authorized(ctx context.Context, method, path string) (*http.Response, error) {
	tok, err := p.Token()
	if err != nil {
		if errors.Is(err, ErrNotSignedIn) {
			return nil, err
		}
		return nil, authError(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	tok.SetAuthHeader(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, session.NewAuthError(err)
	}
	return resp, nil
}

func (p *AuthProvider) clear() {
	p.mu.Lock()
	p.loaded = true
	p.token = nil
	p.identity = nil
	p.mu.Unlock()

	if p.sessionPath == "" {
		return
	}
	if err := os.Remove(p.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("failed to remove session file", "path", p.sessionPath, "error", err)
	}
}

func (p *AuthProvider) persist() {
	if p.sessionPath == "" {
		return
	}

	p.mu.Lock()
	if p.token == nil || p.identity == nil {
		p.mu.Unlock()
		return
	}
	stored := storedSession{Token: p.token, User: *p.identity}
	p.mu.Unlock()

	if err := saveSession(p.sessionPath, stored); err != nil {
		p.logger.Warn("failed to save session", "path", p.sessionPath, "error", err)
	}
}

// saveSession writes the session with mode 0600.
func saveSession(path string, stored storedSession) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// authError turns a transport or backend failure into the message a user
// should see.
func authError(err error) *session.AuthError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		message := retrieveErr.ErrorDescription
		if message == "" {
			message = retrieveErr.ErrorCode
		}
		if message == "" {
			message = fmt.Sprintf("auth request failed with status %d", retrieveErr.Response.StatusCode)
		}
		return &session.AuthError{Message: message, Err: err}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &session.AuthError{Message: apiErr.Message, Err: err}
	}
	return session.NewAuthError(err)
}
