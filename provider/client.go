package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/casedock/authgate/session"
	"github.com/casedock/authgate/token"
)

// ErrProviderUnavailable wraps transport failures and 5xx responses. The
// sign-in state of the user is unknown when this is returned.
var ErrProviderUnavailable = errors.New("identity provider unavailable")

// ErrInvalidCredentials is returned when the password grant is rejected.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrRefreshRejected is returned when the provider refuses a refresh token.
// The token is burned; only a fresh sign-in recovers from this.
var ErrRefreshRejected = errors.New("refresh token rejected")

// ErrSignOutRejected is returned when the provider refuses to revoke a
// session. Local state is still cleared by the caller.
var ErrSignOutRejected = errors.New("sign-out rejected")

const defaultTimeout = 10 * time.Second

// ClientConfig configures the HTTP provider client.
type ClientConfig struct {
	// BaseURL is the auth endpoint root, e.g. https://api.example.com/auth/v1.
	BaseURL string

	// APIKey is sent as the apikey header on every request.
	APIKey string

	// HTTPClient overrides the default client. Nil gets a 10s timeout client.
	HTTPClient *http.Client
}

// Client is a GoTrue-compatible identity provider client. It remembers the
// last session it handed out so CurrentSession can answer without a network
// round trip; the mirror and state machine own durable persistence.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu   sync.Mutex
	last *session.Session
}

// NewClient builds a provider client. BaseURL is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("provider base URL required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
	}, nil
}

// sessionResponse is the GoTrue token payload.
type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"msg"`
}

func (e *errorResponse) text() string {
	switch {
	case e.Description != "":
		return e.Description
	case e.Message != "":
		return e.Message
	default:
		return e.Error
	}
}

// CurrentSession returns the last session this client produced, or nil when
// it has none. It never touches the network.
func (c *Client) CurrentSession(_ context.Context) (*session.Session, error) {
	if c == nil {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Clone(), nil
}

// SignInWithPassword runs the password grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	body := map[string]string{"email": email, "password": password}

	var resp sessionResponse
	status, errText, err := c.post(ctx, "/token?grant_type=password", "", body, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, grantError(ErrInvalidCredentials, status, errText)
	}

	sess := c.toSession(resp)
	c.remember(sess)
	return sess, nil
}

// RefreshSession exchanges a refresh token for a new session. Rejection
// burns the token; callers must not retry with the same one.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*session.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var resp sessionResponse
	status, errText, err := c.post(ctx, "/token?grant_type=refresh_token", "", body, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, grantError(ErrRefreshRejected, status, errText)
	}

	sess := c.toSession(resp)
	c.remember(sess)
	return sess, nil
}

// SignOut revokes the session behind accessToken. The client forgets its
// cached session regardless of the outcome.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	defer c.remember(nil)

	status, errText, err := c.post(ctx, "/logout", accessToken, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return grantError(ErrSignOutRejected, status, errText)
	}
	return nil
}

func (c *Client) remember(sess *session.Session) {
	c.mu.Lock()
	c.last = sess.Clone()
	c.mu.Unlock()
}

// toSession converts the wire payload, peeking inside the access token for
// anything the payload leaves blank.
func (c *Client) toSession(resp sessionResponse) *session.Session {
	now := time.Now()
	sess := &session.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		UserID:       resp.User.ID,
		IssuedAt:     now,
	}
	if resp.ExpiresIn > 0 {
		sess.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	if sess.UserID == "" || sess.ExpiresAt.IsZero() {
		if claims, err := token.Peek(resp.AccessToken); err == nil {
			if sess.UserID == "" {
				sess.UserID = claims.UserID()
			}
			if sess.ExpiresAt.IsZero() {
				sess.ExpiresAt = claims.Expiry()
			}
		}
	}
	return sess
}

// post runs one request and returns the status, any provider error text, and
// a transport error. Transport errors and 5xx map to ErrProviderUnavailable;
// 4xx is left for the caller to classify.
func (c *Client) post(ctx context.Context, path, bearer string, body, out any) (int, string, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, "", fmt.Errorf("%w: encode request: %v", ErrProviderUnavailable, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, "", fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		if out != nil && resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, "", fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
			}
		}
		return resp.StatusCode, "", nil
	}

	var payload errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp.StatusCode, payload.text(), nil
}

func grantError(sentinel error, status int, errText string) error {
	if errText != "" {
		return fmt.Errorf("%w: status %d: %s", sentinel, status, errText)
	}
	return fmt.Errorf("%w: status %d", sentinel, status)
}
