package workflow

import (
	"context"
	"strings"
	"sync"

	"github.com/dyike/TradeLens/internal/logger"
	"github.com/dyike/TradeLens/internal/models"
)

// Authenticator establishes the ambient session credential used by every
// later call.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) error
}

// Gate owns the authenticated state.
type Gate struct {
	auth Authenticator
	log  *logger.Logger

	mu       sync.RWMutex
	session  models.Session
	lastErr  *AuthError
	inFlight bool
}

func NewGate(auth Authenticator, log *logger.Logger) *Gate {
	return &Gate{auth: auth, log: log.Component("session")}
}

// Login authenticates against the service. Both fields must be non-empty;
// otherwise no call is made and the current session is kept. There is no
// retry.
func (g *Gate) Login(ctx context.Context, username, password string) (models.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		err := &AuthError{Message: ErrCredentialMissing.Error(), Err: ErrCredentialMissing}
		g.mu.Lock()
		defer g.mu.Unlock()
		if !g.session.Authenticated {
			g.lastErr = err
		}
		return g.session, err
	}

	g.mu.Lock()
	if g.inFlight {
		g.mu.Unlock()
		return g.Session(), ErrLoginInFlight
	}
	g.inFlight = true
	g.mu.Unlock()

	err := g.auth.Authenticate(ctx, username, password)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
	if err != nil {
		g.session = models.Session{}
		g.lastErr = newAuthError(err)
		g.log.Warn().Str("user", username).Str("reason", g.lastErr.Message).Msg("login failed")
		return g.session, g.lastErr
	}
	g.session = models.Session{Authenticated: true}
	g.lastErr = nil
	g.log.Info().Str("user", username).Msg("logged in")
	return g.session, nil
}

func (g *Gate) Session() models.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session
}

func (g *Gate) Authenticated() bool {
	return g.Session().Authenticated
}

// LastError is the error of the most recent failed login, or nil.
func (g *Gate) LastError() *AuthError {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastErr
}
