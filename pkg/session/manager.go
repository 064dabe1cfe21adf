package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"eduportal/pkg/domain"
	"eduportal/pkg/kv"
)

// PrincipalKey holds the serialized current principal in the kv area.
const PrincipalKey = "edu_lib_user"

// State is the lifecycle state of a Manager.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Manager owns the single current principal of one client.
type Manager struct {
	auth   *Authenticator
	area   kv.Storage
	logger *slog.Logger

	mu        sync.RWMutex
	state     State
	principal *domain.User
}

// NewManager returns a Manager in the Loading state. Call Restore to leave it.
func NewManager(authn *Authenticator, area kv.Storage, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{auth: authn, area: area, logger: logger, state: StateLoading}
}

// Restore loads the persisted principal. A missing or unreadable entry leaves
// the manager unauthenticated.
func (m *Manager) Restore(ctx context.Context) State {
	m.setState(StateLoading, nil)
	raw, ok, err := m.area.Get(ctx, PrincipalKey)
	if err != nil {
		m.logger.Warn("restore session failed", "err", err)
		return m.setState(StateUnauthenticated, nil)
	}
	if !ok {
		return m.setState(StateUnauthenticated, nil)
	}
	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == "" {
		m.logger.Warn("discarding unreadable session", "err", err)
		_ = m.area.Remove(ctx, PrincipalKey)
		return m.setState(StateUnauthenticated, nil)
	}
	return m.setState(StateAuthenticated, &user)
}

// Login authenticates and, on success, persists the principal. On failure the
// previous state is restored.
func (m *Manager) Login(ctx context.Context, username, password string, role domain.Role) (domain.User, error) {
	prevState, prevUser := m.snapshot()
	m.setState(StateLoading, prevUser)

	user, err := m.auth.Login(ctx, username, password, role)
	if err != nil {
		m.setState(prevState, prevUser)
		return domain.User{}, err
	}
	if err := m.persist(ctx, user); err != nil {
		m.logger.Warn("persist session failed", "user_id", user.ID, "err", err)
	}
	m.setState(StateAuthenticated, &user)
	return user, nil
}

// Register creates a student account without changing the current principal.
func (m *Manager) Register(ctx context.Context, username, password string) (domain.User, error) {
	prevState, prevUser := m.snapshot()
	m.setState(StateLoading, prevUser)
	defer m.setState(prevState, prevUser)
	return m.auth.Register(ctx, username, password)
}

// Logout clears the principal from memory and from the kv area.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.area.Remove(ctx, PrincipalKey); err != nil {
		m.logger.Warn("clear persisted session failed", "err", err)
	}
	m.setState(StateUnauthenticated, nil)
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Principal returns the authenticated user, if any.
func (m *Manager) Principal() (domain.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.principal == nil {
		return domain.User{}, false
	}
	return *m.principal, true
}

func (m *Manager) IsAdmin() bool {
	user, ok := m.Principal()
	return ok && user.Role == domain.RoleAdmin
}

func (m *Manager) persist(ctx context.Context, user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return m.area.Set(ctx, PrincipalKey, string(data))
}

func (m *Manager) snapshot() (State, *domain.User) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.principal
}

func (m *Manager) setState(state State, user *domain.User) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.principal = user
	return state
}
