package session

import (
	"context"
	"sync"

	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/event"
	"github.com/PabloGalante/nota-agent/internal/metrics"
	"github.com/PabloGalante/nota-agent/internal/observability"
)

type State string

const (
	StateInitializing State = "initializing"
	StateAbsent       State = "absent"
	StatePresent      State = "present"
)

// View is the top-level surface the UI should render for a state.
type View string

const (
	ViewLoading   View = "loading"
	ViewLogin     View = "login"
	ViewDashboard View = "dashboard"
)

// Monitor tracks whether a user is signed in. It is the only writer of the
// current Session.
type Monitor struct {
	provider domain.AuthProvider

	// emitMu serializes each state change with its delivery so listeners
	// observe changes in the order they were applied.
	emitMu sync.Mutex

	mu          sync.Mutex
	state       State
	current     domain.Session
	unsubscribe func()
	closed      bool

	bootOnce     sync.Once
	teardownOnce sync.Once

	changes event.Emitter[domain.Session]
}

func NewMonitor(provider domain.AuthProvider) *Monitor {
	return &Monitor{
		provider: provider,
		state:    StateInitializing,
		current:  domain.AbsentSession,
	}
}

// Bootstrap subscribes to provider events and resolves the initial session
// with a single fetch. A fetch failure resolves to the absent session.
// Only the first call does any work; later calls return Current.
func (m *Monitor) Bootstrap(ctx context.Context) domain.Session {
	m.bootOnce.Do(func() {
		log := observability.LoggerFromContext(ctx)

		unsubscribe, err := m.provider.OnAuthStateChange(func(ev domain.AuthEvent, s domain.Session) {
			m.handleEvent(ctx, ev, s)
		})
		if err != nil {
			log.Error("auth subscription failed", "error", err)
		} else {
			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				unsubscribe()
			} else {
				m.unsubscribe = unsubscribe
				m.mu.Unlock()
			}
		}

		s, err := m.provider.CurrentSession(ctx)
		if err != nil {
			log.Warn("session fetch failed, treating as signed out", "error", err)
			s = domain.AbsentSession
		}

		m.emitMu.Lock()
		defer m.emitMu.Unlock()

		m.mu.Lock()
		// An auth event that arrived during the fetch is newer than the
		// fetched value.
		if m.state != StateInitializing || m.closed {
			m.mu.Unlock()
			return
		}
		m.set(s)
		m.mu.Unlock()

		log.Info("session resolved", "state", stateOf(s))
		m.changes.Emit(s)
	})
	return m.Current()
}

func (m *Monitor) handleEvent(ctx context.Context, ev domain.AuthEvent, s domain.Session) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.set(s)
	m.mu.Unlock()

	observability.LoggerFromContext(ctx).Info("auth state changed", "event", ev, "state", stateOf(s))
	m.changes.Emit(s)
}

// set must be called with mu held.
func (m *Monitor) set(s domain.Session) {
	m.current = s
	m.state = stateOf(s)
	metrics.ObserveSessionTransition(string(m.state))
}

// Subscribe registers fn for every session change, including the bootstrap
// resolution. Consecutive identical values are delivered as-is. Listeners
// run one change at a time and may read Current, but must not block on
// another session change.
func (m *Monitor) Subscribe(fn func(domain.Session)) (dispose func()) {
	return m.changes.Subscribe(fn)
}

// Teardown releases the provider subscription and all listeners. Safe to
// call more than once.
func (m *Monitor) Teardown() {
	m.teardownOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		unsubscribe := m.unsubscribe
		m.unsubscribe = nil
		m.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		m.changes.Reset()
	})
}

func (m *Monitor) Current() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) View() View {
	switch m.State() {
	case StatePresent:
		return ViewDashboard
	case StateAbsent:
		return ViewLogin
	default:
		return ViewLoading
	}
}

func stateOf(s domain.Session) State {
	if s.Present() {
		return StatePresent
	}
	return StateAbsent
}
