// Package memory is an in-process identity provider for local mode and tests.
package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/event"
)

type authChange struct {
	event   domain.AuthEvent
	session domain.Session
}

type Provider struct {
	// emitMu keeps each session write and its announcement together.
	emitMu sync.Mutex

	mu      sync.RWMutex
	session domain.Session

	changes event.Emitter[authChange]
}

func NewProvider() *Provider {
	return &Provider{session: domain.AbsentSession}
}

func (p *Provider) CurrentSession(_ context.Context) (domain.Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session, nil
}

func (p *Provider) OnAuthStateChange(fn func(domain.AuthEvent, domain.Session)) (func(), error) {
	return p.changes.Subscribe(func(c authChange) {
		fn(c.event, c.session)
	}), nil
}

func (p *Provider) SignIn(_ context.Context, id domain.Identity) error {
	p.publish(domain.AuthSignedIn, func(domain.Session) domain.Session {
		return domain.PresentSession(id)
	})
	return nil
}

func (p *Provider) SignOut(_ context.Context) error {
	p.publish(domain.AuthSignedOut, func(domain.Session) domain.Session {
		return domain.AbsentSession
	})
	return nil
}

// Refresh re-announces the current session as a token refresh.
func (p *Provider) Refresh() domain.Session {
	return p.publish(domain.AuthTokenRefreshed, func(s domain.Session) domain.Session {
		return s
	})
}

// publish applies next to the session and announces the result. Listeners
// must not call back into SignIn, SignOut or Refresh.
func (p *Provider) publish(ev domain.AuthEvent, next func(domain.Session) domain.Session) domain.Session {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	s := next(p.session)
	p.session = s
	p.mu.Unlock()

	p.changes.Emit(authChange{event: ev, session: s})
	return s
}
