package session

import (
	"context"
	"io"
	"net/http"

	"github.com/jrsteele09/go-fund-auth/token"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx     context.Context
	manager *Manager
}

// Token returns a valid access token, refreshing it first when it is close to expiry.
func (ts *tokenSource) Token() (*oauth2.Token, error) {
	access, err := ts.manager.GetValidToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	t := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if claims, err := token.DecodeUnverified(access); err == nil {
		t.Expiry = claims.ExpiresAt
	}
	return t, nil
}

// TokenSource exposes the session as an oauth2.TokenSource. Tokens are not cached outside the
// manager, so a logout takes effect on the next request.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, manager: m}
}

// HTTPClient returns a client that attaches the current access token to every request. It does
// not retry; use Do for the refresh-and-retry behaviour.
func (m *Manager) HTTPClient(ctx context.Context) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: m.TokenSource(ctx), Base: m.httpClient.Transport},
		Timeout:   m.httpClient.Timeout,
	}
}

// Do sends req with the current access token. A 401 triggers one refresh and one retry; any other
// status, including 403, is returned to the caller untouched. Requests with a body can only be
// retried when req.GetBody is set.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	access, err := m.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := m.send(req, access)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	access, err = m.refreshFrom(ctx, access)
	if err != nil {
		return nil, err
	}
	return m.send(req, access)
}

func (m *Manager) send(req *http.Request, access string) (*http.Response, error) {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "Manager.Do rewind body")
		}
		r.Body = body
	}
	r.Header.Set("Authorization", "Bearer "+access)
	return m.httpClient.Do(r)
}
