package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// GetCurrentSession returns the stored session after the server confirms it
// is still open. A missing, expired or revoked session yields nil.
func (c *Client) GetCurrentSession(ctx context.Context) (*auth.Session, error) {
	stored, err := c.tokens.Load()
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	if stored.Expired(c.now()) {
		c.logger.Debug("stored session expired", zap.Time("expires_at", stored.ExpiresAt))
		c.forget()
		return nil, nil
	}

	var resp sessionResponse
	err = c.do(ctx, http.MethodGet, "/auth/session", stored.AccessToken, nil, &resp)
	if StatusCode(err) == http.StatusUnauthorized {
		c.logger.Debug("stored session rejected by server")
		c.forget()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sess := &auth.Session{
		ID:          resp.SessionID,
		UserID:      resp.UserID,
		AccessToken: stored.AccessToken,
		ExpiresAt:   resp.ExpiresAt,
	}
	c.install(sess)
	return sess, nil
}

// OnSessionChange registers handler for sign-in, sign-out and expiry. Expiry
// and sign-out deliver nil.
func (c *Client) OnSessionChange(handler func(*auth.Session)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
		})
	}
}

// SignInWithPassword opens a session. Rejected credentials come back as
// *auth.CredentialError and leave any current session untouched.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	var resp sessionResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		if StatusCode(err) == http.StatusUnauthorized {
			return nil, &auth.CredentialError{Err: err}
		}
		return nil, err
	}

	sess := &auth.Session{
		ID:          resp.SessionID,
		UserID:      resp.UserID,
		AccessToken: resp.AccessToken,
		ExpiresAt:   resp.ExpiresAt,
	}
	if err := c.tokens.Save(sess); err != nil {
		return nil, err
	}
	c.install(sess)
	c.notify(sess)
	return sess, nil
}

// SignOut closes the session on the server and forgets it locally. The local
// copy is dropped even when the server cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.token()
	if token == "" {
		if stored, err := c.tokens.Load(); err == nil && stored != nil {
			token = stored.AccessToken
		}
	}

	c.forget()
	c.notify(nil)

	if token == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// install makes sess current and arms its expiry.
func (c *Client) install(sess *auth.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	cp := *sess
	c.session = &cp

	if sess.ExpiresAt.IsZero() {
		return
	}
	id := sess.ID
	c.expiry = time.AfterFunc(sess.ExpiresAt.Sub(c.now()), func() { c.expire(id) })
}

func (c *Client) expire(sessionID string) {
	c.mu.Lock()
	current := c.session != nil && c.session.ID == sessionID
	c.mu.Unlock()
	if !current {
		return
	}

	c.logger.Info("session expired", zap.String("session_id", sessionID))
	c.forget()
	c.notify(nil)
}

// forget drops the current and stored session without notifying.
func (c *Client) forget() {
	c.mu.Lock()
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	c.session = nil
	c.mu.Unlock()

	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("failed to clear stored session", zap.Error(err))
	}
}

func (c *Client) notify(sess *auth.Session) {
	c.mu.Lock()
	handlers := make([]func(*auth.Session), 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		var cp *auth.Session
		if sess != nil {
			s := *sess
			cp = &s
		}
		h(cp)
	}
}

var _ auth.AuthClient = (*Client)(nil)
