package tutorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// refreshKey is the single refresh slot per client.
const refreshKey = "session"

// tokenPair is the token part of login and refresh responses.
type tokenPair struct {
	Token        string `json:"token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (p tokenPair) access() string {
	if p.Token != "" {
		return p.Token
	}
	return p.AccessToken
}

type tokenEnvelope struct {
	Success *bool     `json:"success"`
	Data    tokenPair `json:"data"`
	tokenPair
}

// tokens prefers the wrapped data, then top-level fields.
func (e tokenEnvelope) tokens() (access, refresh string) {
	access, refresh = e.Data.access(), e.Data.RefreshToken
	if access == "" {
		access = e.tokenPair.access()
	}
	if refresh == "" {
		refresh = e.tokenPair.RefreshToken
	}
	return access, refresh
}

// recoverSession makes the session usable again after a 401 on a request
// that was sent with usedToken. If another caller already replaced the token
// the request is simply replayed; if the tokens were cleared meanwhile the
// session is over and the navigator has been told. Otherwise it joins or
// starts the refresh.
func (c *Client) recoverSession(usedToken string) error {
	current, _ := c.tokens.Tokens()
	switch {
	case current != "" && current != usedToken:
		return nil
	case current == "" && usedToken != "":
		// the session this request belonged to has already been ended
		return ErrNoRefreshToken
	}

	_, err, shared := c.refreshes.Do(refreshKey, func() (struct{}, error) {
		return struct{}{}, c.refreshTokens()
	})
	if c.debug.Enabled && c.debug.LogAuth {
		c.logger.Debug("Token refresh settled", "shared", shared, "ok", err == nil)
	}
	return err
}

// refreshTokens exchanges the stored refresh token. Any failure ends the
// session: both tokens are cleared and the navigator is told once.
func (c *Client) refreshTokens() error {
	_, refresh := c.tokens.Tokens()
	if refresh == "" {
		c.endSession("no refresh token")
		return ErrNoRefreshToken
	}

	if c.debug.Enabled && c.debug.LogAuth {
		c.logger.Info("Refreshing access token", "endpoint", c.refreshPath)
	}

	access, next, err := c.exchangeRefreshToken(refresh)
	if err != nil {
		c.metrics.RecordTokenRefresh("failure")
		c.endSession("token refresh failed")
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if next == "" {
		next = refresh
	}
	if err := c.tokens.Save(access, next); err != nil {
		c.metrics.RecordTokenRefresh("failure")
		c.endSession("token refresh failed")
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	c.metrics.RecordTokenRefresh("success")
	return nil
}

// exchangeRefreshToken posts the refresh token straight to the transport,
// bypassing middleware, de-duplication and retries. It is bounded by the
// refresh timeout and not by any caller's context, since its result is shared.
func (c *Client) exchangeRefreshToken(refresh string) (string, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"refresh_token": refresh})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveURL(c.refreshPath), bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("refresh endpoint returned %d", resp.StatusCode)
	}

	var env tokenEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", "", err
	}
	if env.Success != nil && !*env.Success {
		return "", "", errors.New("refresh rejected")
	}

	access, next := env.tokens()
	if access == "" {
		return "", "", errors.New("refresh response carries no token")
	}
	return access, next, nil
}

func (c *Client) endSession(reason string) {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("Clearing tokens failed", "error", err)
	}
	if c.debug.Enabled && c.debug.LogAuth {
		c.logger.Info("Session ended", "reason", reason)
	}
	c.navigator.RedirectToLogin(reason)
}

// Login exchanges credentials for a session. On success the returned tokens
// are stored and the cache is emptied; the envelope carries the login data.
func (c *Client) Login(ctx context.Context, username, password string) RawResponse {
	body, err := JSONBody(map[string]string{"username": username, "password": password})
	if err != nil {
		return c.failure(ErrorKindValidation, MsgValidation, 0)
	}

	// a stale token on the login call makes token-auth backends reject it
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("Clearing tokens failed", "error", err)
	}

	resp := c.Request(ctx, c.loginPath, body.options(http.MethodPost))
	if !resp.Success {
		return resp
	}

	var pair tokenPair
	if err := json.Unmarshal(resp.Data, &pair); err != nil || pair.access() == "" {
		return c.failure(ErrorKindParse, MsgParse, 0)
	}
	if err := c.tokens.Save(pair.access(), pair.RefreshToken); err != nil {
		c.logger.Error("Storing tokens failed", "error", err)
		return c.failure(ErrorKindAuth, MsgAuth, 0)
	}

	c.ClearCache()
	if c.debug.Enabled && c.debug.LogAuth {
		c.logger.Info("Logged in", "username", username)
	}
	return resp
}

// Logout tells the server to drop the session, best effort, then clears the
// local tokens and cache. Only a local storage failure is reported.
func (c *Client) Logout(ctx context.Context) error {
	if access, _ := c.tokens.Tokens(); access != "" {
		// no retries and no refresh for a session that is going away
		resp := c.Request(ctx, c.logoutPath, RequestOptions{Method: http.MethodPost, Attempt: c.retry.MaxRetries})
		if !resp.Success && c.debug.Enabled && c.debug.LogAuth {
			c.logger.Debug("Server logout failed", "error", resp.Error)
		}
	}

	c.ClearCache()
	return c.tokens.Clear()
}

// IsAuthenticated reports whether an access token is stored and, for JWTs,
// not yet expired. Opaque tokens count until the server rejects them.
func (c *Client) IsAuthenticated() bool {
	access, _ := c.tokens.Tokens()
	if access == "" {
		return false
	}
	if exp, ok := TokenExpiry(access); ok {
		return c.now().Before(exp)
	}
	return true
}

// SaveTokens stores a session obtained elsewhere.
func (c *Client) SaveTokens(access, refresh string) error {
	return c.tokens.Save(access, refresh)
}

// ClearTokens drops the session without notifying the navigator.
func (c *Client) ClearTokens() error {
	return c.tokens.Clear()
}

// Tokens returns the stored access and refresh token.
func (c *Client) Tokens() (access, refresh string) {
	return c.tokens.Tokens()
}

// InvalidateCache drops the cached response for endpoint.
func (c *Client) InvalidateCache(endpoint string) {
	if c.cache == nil {
		return
	}
	c.cache.Delete(endpoint)
	c.metrics.RecordCacheSize(c.cache.Len())
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	if c.cache == nil {
		return
	}
	c.cache.Clear()
	c.metrics.RecordCacheSize(0)
}
