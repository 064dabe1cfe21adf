package session

import (
	"context"
	"errors"
	"testing"

	"eduportal/pkg/domain"
	"eduportal/pkg/kv"
	"eduportal/pkg/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store, kv.Storage) {
	t.Helper()
	area := kv.NewMemoryStorage(0)
	st := store.New(area, store.Options{})
	admin, err := NewAdminCredential("", "")
	if err != nil {
		t.Fatalf("admin credential: %v", err)
	}
	return NewManager(NewAuthenticator(st, admin, nil), area, nil), st, area
}

func loginLogCount(t *testing.T, st *store.Store) int {
	t.Helper()
	logs, err := st.GetLoginLogs(context.Background())
	if err != nil {
		t.Fatalf("login logs: %v", err)
	}
	return len(logs)
}

func TestRegisterThenLoginAsStudent(t *testing.T) {
	m, st, area := newTestManager(t)
	ctx := context.Background()
	if got := m.Restore(ctx); got != StateUnauthenticated {
		t.Fatalf("expected unauthenticated after restore, got %v", got)
	}

	user, err := m.Register(ctx, "alice", "whatever")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != domain.RoleUser || user.LastLogin != nil {
		t.Fatalf("unexpected registered user: %+v", user)
	}
	if m.State() != StateUnauthenticated {
		t.Fatalf("register must not authenticate, state=%v", m.State())
	}

	before := loginLogCount(t, st)
	logged, err := m.Login(ctx, "alice", "any-password", domain.RoleUser)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.LastLogin == nil || logged.ID != user.ID {
		t.Fatalf("unexpected login result: %+v", logged)
	}
	if m.State() != StateAuthenticated {
		t.Fatalf("expected authenticated, got %v", m.State())
	}
	logs, _ := st.GetLoginLogs(ctx)
	if len(logs) != before+1 || logs[0].Username != "alice" || logs[0].Role != domain.RoleUser {
		t.Fatalf("expected one new alice log, got %d logs, newest %+v", len(logs), logs[0])
	}
	if _, ok, _ := area.Get(ctx, PrincipalKey); !ok {
		t.Fatalf("expected principal to be persisted")
	}
}

func TestAdminLogin(t *testing.T) {
	m, st, _ := newTestManager(t)
	ctx := context.Background()
	m.Restore(ctx)
	before := loginLogCount(t, st)

	if _, err := m.Login(ctx, "admin", "wrongpass", domain.RoleAdmin); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if !errors.Is(ErrInvalidAdminCredentials, ErrInvalidCredentials) {
		t.Fatalf("admin credential error must match invalid credentials")
	}
	if got := loginLogCount(t, st); got != before {
		t.Fatalf("failed admin login must not log, %d -> %d", before, got)
	}
	if m.State() != StateUnauthenticated {
		t.Fatalf("failed login must restore state, got %v", m.State())
	}

	user, err := m.Login(ctx, "admin", "admin@123", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if user.ID != AdminID || user.Role != domain.RoleAdmin || !m.IsAdmin() {
		t.Fatalf("unexpected admin principal: %+v", user)
	}
	logs, _ := st.GetLoginLogs(ctx)
	if len(logs) != before+1 || logs[0].Role != domain.RoleAdmin {
		t.Fatalf("expected one admin log entry, got %d", len(logs)-before)
	}
}

func TestAdminNameOnStudentTab(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Login(context.Background(), "admin", "admin@123", domain.RoleUser); !errors.Is(err, ErrUseAdminLogin) {
		t.Fatalf("expected use admin login, got %v", err)
	}
}

func TestUnknownStudent(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Login(context.Background(), "ghost", "x", domain.RoleUser); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := m.Login(context.Background(), "ghost", "x", domain.Role("ROOT")); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Register(context.Background(), "student1", "x"); !errors.Is(err, store.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
}

func TestRestoreAndLogout(t *testing.T) {
	m, st, area := newTestManager(t)
	ctx := context.Background()
	if m.State() != StateLoading {
		t.Fatalf("expected initial loading state, got %v", m.State())
	}
	if _, err := m.Login(ctx, "student3", "", domain.RoleUser); err != nil {
		t.Fatalf("login: %v", err)
	}

	admin, _ := NewAdminCredential("", "")
	restored := NewManager(NewAuthenticator(st, admin, nil), area, nil)
	if got := restored.Restore(ctx); got != StateAuthenticated {
		t.Fatalf("expected restored session, got %v", got)
	}
	if user, ok := restored.Principal(); !ok || user.Username != "student3" {
		t.Fatalf("unexpected restored principal: %+v ok=%v", user, ok)
	}

	restored.Logout(ctx)
	if restored.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated after logout")
	}
	if _, ok, _ := area.Get(ctx, PrincipalKey); ok {
		t.Fatalf("expected persisted principal to be cleared")
	}
}

func TestRestoreDiscardsGarbage(t *testing.T) {
	m, _, area := newTestManager(t)
	ctx := context.Background()
	if err := area.Set(ctx, PrincipalKey, "{not json"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := m.Restore(ctx); got != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", got)
	}
	if _, ok, _ := area.Get(ctx, PrincipalKey); ok {
		t.Fatalf("expected garbage session to be removed")
	}
}
