package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-fund-auth/auth"
	"github.com/jrsteele09/go-fund-auth/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshThreshold = 5 * time.Minute
	DefaultCheckInterval    = 5 * time.Minute
	DefaultRefreshWindow    = 10 * time.Minute

	loginPath   = "/auth/login"
	refreshPath = "/refresh-token"
	logoutPath  = "/logout"
)

// Manager owns the client side token lifecycle: login, silent refresh, periodic expiry checks and
// logout. Concurrent refreshes collapse into one network call.
type Manager struct {
	baseURL          string
	httpClient       *http.Client
	store            TokenStore
	refreshThreshold time.Duration
	checkInterval    time.Duration
	refreshWindow    time.Duration
	nowFunc          func() time.Time

	refreshGroup singleflight.Group

	lock       sync.Mutex
	identity   *auth.Profile
	generation uint64 // bumped by every logout; in-flight refreshes of an older generation are discarded
	stopTimer  context.CancelFunc
}

type ManagerOption func(*Manager)

func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		m.httpClient = client
	}
}

func WithTokenStore(store TokenStore) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithRefreshThreshold sets the remaining lifetime under which GetValidToken refreshes first.
func WithRefreshThreshold(threshold time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshThreshold = threshold
	}
}

// WithCheckInterval sets how often the background timer runs and the remaining lifetime under
// which it refreshes proactively.
func WithCheckInterval(interval, window time.Duration) ManagerOption {
	return func(m *Manager) {
		m.checkInterval = interval
		m.refreshWindow = window
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func NewManager(baseURL string, options ...ManagerOption) (*Manager, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[session.NewManager] invalid base url %q", baseURL)
	}
	m := &Manager{
		baseURL:          strings.TrimRight(baseURL, "/"),
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		store:            NewMemoryStore(),
		refreshThreshold: DefaultRefreshThreshold,
		checkInterval:    DefaultCheckInterval,
		refreshWindow:    DefaultRefreshWindow,
		nowFunc:          time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Identity returns a copy of the current display identity, or nil when logged out.
func (m *Manager) Identity() *auth.Profile {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.identity == nil {
		return nil
	}
	cp := *m.identity
	return &cp
}

// Login authenticates and stores the returned pair. Any failure clears stored tokens.
func (m *Manager) Login(ctx context.Context, username, password string) (*auth.Profile, error) {
	var resp auth.Session
	err := m.post(ctx, loginPath, map[string]string{"username": username, "password": password}, &resp)
	if err == nil && (resp.AccessToken == "" || resp.RefreshToken == "") {
		err = errors.New("login response is missing tokens")
	}
	var claims *token.Claims
	if err == nil {
		claims, err = token.DecodeUnverified(resp.AccessToken)
	}
	if err != nil {
		m.lock.Lock()
		clearErr := m.endSessionLocked()
		m.lock.Unlock()
		if clearErr != nil {
			log.Err(clearErr).Msg("failed to clear token store after login failure")
		}
		return nil, err
	}

	identity := mergeProfile(nil, claims, &resp.Profile)

	m.lock.Lock()
	defer m.lock.Unlock()
	// A refresh still in flight for the previous session must not overwrite this one.
	m.supersedeLocked()
	if err := m.store.Save(Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}); err != nil {
		return nil, errors.Wrap(err, "Manager.Login store")
	}
	m.identity = identity
	cp := *identity
	return &cp, nil
}

// Logout clears the local session unconditionally and tells the server on a best-effort basis.
// It is safe to call repeatedly.
func (m *Manager) Logout(ctx context.Context) error {
	m.lock.Lock()
	tokens, loadErr := m.store.Load()
	err := m.endSessionLocked()
	m.lock.Unlock()

	if loadErr == nil && tokens.RefreshToken != "" {
		if err := m.post(ctx, logoutPath, map[string]string{"refreshToken": tokens.RefreshToken}, nil); err != nil {
			log.Warn().Err(err).Msg("server logout failed")
		}
	}
	return err
}

// supersedeLocked invalidates in-flight refreshes and stops auto refresh. The lock must be held.
func (m *Manager) supersedeLocked() {
	m.generation++
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
}

// endSessionLocked must be called with the lock held.
func (m *Manager) endSessionLocked() error {
	m.supersedeLocked()
	m.identity = nil
	return errors.Wrap(m.store.Clear(), "Manager.Logout clear store")
}

// GetValidToken returns the stored access token when it has more than the refresh threshold left,
// and otherwise the result of a refresh.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	tokens, err := m.store.Load()
	if err != nil {
		return "", errors.Wrap(err, "Manager.GetValidToken load")
	}
	if tokens.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	if m.remaining(tokens.AccessToken) > m.refreshThreshold {
		return tokens.AccessToken, nil
	}
	return m.refreshFrom(ctx, tokens.AccessToken)
}

// RefreshAccessToken redeems the stored refresh token. Callers arriving while a refresh is in
// flight wait for that one instead of starting another. Any failure logs the session out.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	tokens, err := m.store.Load()
	if err != nil {
		return "", errors.Wrap(err, "Manager.RefreshAccessToken load")
	}
	return m.refreshFrom(ctx, tokens.AccessToken)
}

// refreshFrom refreshes unless the stored access token has already moved on from seen, in which
// case a refresh that finished just before this caller joined is reused.
func (m *Manager) refreshFrom(ctx context.Context, seen string) (string, error) {
	m.lock.Lock()
	gen := m.generation
	m.lock.Unlock()

	// The refresh itself is detached from the first caller's context so that one caller giving
	// up does not fail the others waiting on it.
	refreshCtx := context.WithoutCancel(ctx)
	ch := m.refreshGroup.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return m.refresh(refreshCtx, gen, seen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context, gen uint64, seen string) (string, error) {
	tokens, err := m.store.Load()
	if err != nil {
		return "", m.failRefresh(ctx, gen, errors.Wrap(err, "Manager.refresh load"))
	}
	if seen != "" && tokens.AccessToken != "" && tokens.AccessToken != seen {
		return tokens.AccessToken, nil
	}
	if tokens.RefreshToken == "" {
		return "", m.failRefresh(ctx, gen, ErrNotAuthenticated)
	}

	var resp auth.Session
	if err := m.post(ctx, refreshPath, map[string]string{"refreshToken": tokens.RefreshToken}, &resp); err != nil {
		return "", m.failRefresh(ctx, gen, err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return "", m.failRefresh(ctx, gen, errors.New("refresh response is missing tokens"))
	}
	claims, err := token.DecodeUnverified(resp.AccessToken)
	if err != nil {
		return "", m.failRefresh(ctx, gen, err)
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if m.generation != gen {
		return "", ErrSessionEnded
	}
	if err := m.store.Save(Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}); err != nil {
		return "", errors.Wrap(err, "Manager.refresh store")
	}
	m.identity = mergeProfile(m.identity, claims, &resp.Profile)
	return resp.AccessToken, nil
}

// failRefresh logs out unless a logout already superseded this refresh, then returns err.
func (m *Manager) failRefresh(ctx context.Context, gen uint64, err error) error {
	m.lock.Lock()
	current := m.generation == gen
	m.lock.Unlock()
	if !current {
		return ErrSessionEnded
	}
	log.Warn().Err(err).Msg("token refresh failed, logging out")
	if logoutErr := m.Logout(ctx); logoutErr != nil {
		log.Err(logoutErr).Msg("logout after failed refresh")
	}
	return err
}

// StartAutoRefresh checks the access token every check interval and refreshes it once less than
// the refresh window remains. It runs until ctx is done or Logout is called.
func (m *Manager) StartAutoRefresh(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.lock.Lock()
	if m.stopTimer != nil {
		m.stopTimer()
	}
	m.stopTimer = cancel
	m.lock.Unlock()

	go func() {
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkExpiry(ctx)
			}
		}
	}()
}

func (m *Manager) checkExpiry(ctx context.Context) {
	tokens, err := m.store.Load()
	if err != nil || tokens.AccessToken == "" {
		return
	}
	if m.remaining(tokens.AccessToken) >= m.refreshWindow {
		return
	}
	if _, err := m.refreshFrom(ctx, tokens.AccessToken); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("background token refresh failed")
	}
}

// remaining is the lifetime left on raw; undecodable tokens have none.
func (m *Manager) remaining(raw string) time.Duration {
	claims, err := token.DecodeUnverified(raw)
	if err != nil || claims.ExpiresAt.IsZero() {
		return 0
	}
	return claims.ExpiresAt.Sub(m.nowFunc())
}

func (m *Manager) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}

// mergeProfile layers the token claims over the previous identity, then the server response over
// both. The response wins on conflict.
func mergeProfile(previous *auth.Profile, claims *token.Claims, resp *auth.Profile) *auth.Profile {
	merged := auth.Profile{}
	if previous != nil {
		merged = *previous
	}
	overlay(&merged, auth.Profile{
		ID:          claims.PrincipalID,
		Username:    claims.Username,
		RoleID:      claims.RoleID,
		RoleName:    claims.RoleName,
		BranchCode:  claims.BranchCode,
		Permissions: claims.Permissions,
	})
	if resp != nil {
		overlay(&merged, *resp)
	}
	return &merged
}

func overlay(dst *auth.Profile, src auth.Profile) {
	set := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	set(&dst.ID, src.ID)
	set(&dst.Username, src.Username)
	set(&dst.FullName, src.FullName)
	set(&dst.Email, src.Email)
	set(&dst.RoleID, src.RoleID)
	set(&dst.RoleName, src.RoleName)
	set(&dst.BranchCode, src.BranchCode)
	set(&dst.OrganizationID, src.OrganizationID)
	if src.Permissions != nil {
		dst.Permissions = src.Permissions
	}
}
