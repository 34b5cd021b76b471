//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"sync"
	"time"

	authgate "github.com/casedock/authgate"
	"github.com/casedock/authgate/profile"
	"github.com/casedock/authgate/provider"
	"github.com/casedock/authgate/session"
)

const (
	integrationUserID  = "usr-consultant-01"
	integrationEmail   = "nora@alderhelp.test"
	integrationCompany = "alderhelp"
)

func makeMirrorSession(userID, refreshToken string) *session.Session {
	now := time.Now().UTC()
	return &session.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		UserID:       userID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Hour),
	}
}

func integrationProfiles() *profile.StaticStore {
	return profile.NewStaticStore(&profile.Profile{
		ID:        integrationUserID,
		Name:      "Nora Voss",
		Email:     integrationEmail,
		Role:      profile.RoleConsultant,
		CompanyID: integrationCompany,
	})
}

// restoreProvider is an identity provider with no live session of its own.
// Refresh grants succeed only for tokens registered up front, so tests can
// steer whether a mirrored session is honored or rejected as stale.
type restoreProvider struct {
	mu      sync.Mutex
	refresh map[string]*session.Session
	seq     int
}

func newRestoreProvider() *restoreProvider {
	return &restoreProvider{refresh: make(map[string]*session.Session)}
}

func (p *restoreProvider) registerRefresh(refreshToken, userID string) *session.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	now := time.Now().UTC()
	next := &session.Session{
		AccessToken:  fmt.Sprintf("access-%s-grant-%d", userID, p.seq),
		RefreshToken: fmt.Sprintf("refresh-%s-grant-%d", userID, p.seq),
		TokenType:    "bearer",
		UserID:       userID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Hour),
	}
	p.refresh[refreshToken] = next.Clone()
	return next
}

func (p *restoreProvider) CurrentSession(context.Context) (*session.Session, error) {
	return nil, nil
}

func (p *restoreProvider) SignInWithPassword(context.Context, string, string) (*session.Session, error) {
	return nil, provider.ErrInvalidCredentials
}

func (p *restoreProvider) RefreshSession(_ context.Context, refreshToken string) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, ok := p.refresh[refreshToken]
	if !ok {
		return nil, provider.ErrRefreshRejected
	}
	delete(p.refresh, refreshToken)
	return next.Clone(), nil
}

func (p *restoreProvider) SignOut(context.Context, string) error {
	return nil
}

var _ authgate.IdentityProvider = (*restoreProvider)(nil)
