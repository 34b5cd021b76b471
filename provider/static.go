package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/casedock/authgate/internal"
	"github.com/casedock/authgate/session"
	"github.com/casedock/authgate/token"
)

const defaultAccessTTL = time.Hour

// Account seeds a user in the [Static] provider. Passwords are compared in
// plain text; this provider exists for tests and simulations only.
type Account struct {
	UserID   string
	Email    string
	Password string
	Role     string
}

// Static is an in-memory identity provider. It signs real HS256 access
// tokens with a per-instance random key and rotates opaque refresh tokens,
// so the rest of the stack behaves exactly as it does against a live
// endpoint.
type Static struct {
	issuer     string
	accessTTL  time.Duration
	signingKey []byte

	mu       sync.Mutex
	accounts map[string]Account // keyed by lowercase email
	refresh  map[string]string  // refresh token -> user ID
	current  *session.Session
	now      func() time.Time
}

// NewStatic builds a static provider seeded with accounts.
func NewStatic(accounts []Account) (*Static, error) {
	key, err := internal.NewSigningKey()
	if err != nil {
		return nil, err
	}

	p := &Static{
		issuer:     "authgate-static",
		accessTTL:  defaultAccessTTL,
		signingKey: key,
		accounts:   make(map[string]Account, len(accounts)),
		refresh:    make(map[string]string),
		now:        time.Now,
	}
	for _, acct := range accounts {
		p.accounts[strings.ToLower(acct.Email)] = acct
	}
	return p, nil
}

// SetAccessTTL overrides the access token lifetime. Useful for exercising
// refresh behavior on a short clock.
func (p *Static) SetAccessTTL(ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ttl > 0 {
		p.accessTTL = ttl
	}
}

// SetClock overrides the time source.
func (p *Static) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if now != nil {
		p.now = now
	}
}

// CurrentSession returns the most recently issued session, or nil.
func (p *Static) CurrentSession(_ context.Context) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Clone(), nil
}

// SignInWithPassword checks the account and issues a session.
func (p *Static) SignInWithPassword(_ context.Context, email, password string) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[strings.ToLower(email)]
	if !ok || acct.Password != password {
		return nil, fmt.Errorf("%w: email or password incorrect", ErrInvalidCredentials)
	}
	return p.issue(acct)
}

// RefreshSession rotates the refresh token and issues a new session. A
// token that was never issued, or was already used, is rejected.
func (p *Static) RefreshSession(_ context.Context, refreshToken string) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.refresh[refreshToken]
	if !ok {
		return nil, fmt.Errorf("%w: unknown or already used token", ErrRefreshRejected)
	}
	delete(p.refresh, refreshToken)

	for _, acct := range p.accounts {
		if acct.UserID == userID {
			return p.issue(acct)
		}
	}
	return nil, fmt.Errorf("%w: account for token no longer exists", ErrRefreshRejected)
}

// SignOut revokes every refresh token of the session's user and forgets the
// current session.
func (p *Static) SignOut(_ context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	claims, err := token.Peek(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignOutRejected, err)
	}

	for rt, uid := range p.refresh {
		if uid == claims.UserID() {
			delete(p.refresh, rt)
		}
	}
	p.current = nil
	return nil
}

// issue mints the signed access token and a fresh refresh token. Callers
// hold p.mu.
func (p *Static) issue(acct Account) (*session.Session, error) {
	now := p.now()
	expiresAt := now.Add(p.accessTTL)

	claims := token.Claims{
		Role:  acct.Role,
		Email: acct.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   acct.UserID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signingKey)
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %v", ErrProviderUnavailable, err)
	}

	refreshToken, err := internal.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("%w: mint refresh token: %v", ErrProviderUnavailable, err)
	}
	p.refresh[refreshToken] = acct.UserID

	sess := &session.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		UserID:       acct.UserID,
		IssuedAt:     now,
		ExpiresAt:    expiresAt,
	}
	p.current = sess.Clone()
	return sess, nil
}
