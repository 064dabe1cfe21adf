// Package session authenticates portal principals and tracks the current one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eduportal/pkg/auth"
	"eduportal/pkg/domain"
)

var (
	ErrInvalidCredentials = errors.New("Invalid Credentials. Please sign up if you are new.")
	// ErrInvalidAdminCredentials matches ErrInvalidCredentials under errors.Is.
	ErrInvalidAdminCredentials error = adminCredentialError{}
	ErrUseAdminLogin                 = errors.New("Please use the Admin Login tab.")
	ErrUnknownRole                   = errors.New("unknown role")
)

type adminCredentialError struct{}

func (adminCredentialError) Error() string { return "Invalid Admin Credentials" }

func (adminCredentialError) Is(target error) bool { return target == ErrInvalidCredentials }

const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin@123"
	// AdminID is the fixed identity of the administrator principal.
	AdminID = "admin-001"
)

// Directory is the slice of the data access layer authentication needs.
// *store.Store satisfies it.
type Directory interface {
	FindUser(ctx context.Context, username string) (domain.User, bool, error)
	RegisterUser(ctx context.Context, username string) (domain.User, error)
	RecordLogin(ctx context.Context, username string, role domain.Role)
}

// AdminCredential is the single administrator account. PasswordHash is bcrypt.
type AdminCredential struct {
	Username     string
	PasswordHash string
}

// NewAdminCredential hashes a plaintext password into an AdminCredential.
func NewAdminCredential(username, password string) (AdminCredential, error) {
	if strings.TrimSpace(username) == "" {
		username = DefaultAdminUsername
	}
	if password == "" {
		password = DefaultAdminPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return AdminCredential{}, fmt.Errorf("admin credential: %w", err)
	}
	return AdminCredential{Username: username, PasswordHash: hash}, nil
}

// Authenticator implements the admin and student login branches.
//
// Students are matched by username only. Any password is accepted for an
// existing student; no per-user secret is stored.
type Authenticator struct {
	dir    Directory
	admin  AdminCredential
	now    func() time.Time
	logger *slog.Logger
}

func NewAuthenticator(dir Directory, admin AdminCredential, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{dir: dir, admin: admin, now: time.Now, logger: logger}
}

// AdminUsername is the reserved administrator name.
func (a *Authenticator) AdminUsername() string {
	return a.admin.Username
}

// Login authenticates username for the requested role and records the login.
func (a *Authenticator) Login(ctx context.Context, username, password string, role domain.Role) (domain.User, error) {
	switch role {
	case domain.RoleAdmin:
		return a.loginAdmin(ctx, username, password)
	case domain.RoleUser:
		return a.loginUser(ctx, username)
	default:
		return domain.User{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
}

func (a *Authenticator) loginAdmin(ctx context.Context, username, password string) (domain.User, error) {
	if username != a.admin.Username || !auth.CheckPassword(password, a.admin.PasswordHash) {
		a.logger.Warn("security_event", "event", "session.login.admin", "outcome", "fail", "username", username)
		return domain.User{}, ErrInvalidAdminCredentials
	}
	a.dir.RecordLogin(ctx, username, domain.RoleAdmin)
	now := a.now().UTC()
	a.logger.Info("security_event", "event", "session.login.admin", "outcome", "success", "username", username)
	return domain.User{
		ID:        AdminID,
		Username:  a.admin.Username,
		Role:      domain.RoleAdmin,
		LastLogin: &now,
	}, nil
}

func (a *Authenticator) loginUser(ctx context.Context, username string) (domain.User, error) {
	if username == a.admin.Username {
		return domain.User{}, ErrUseAdminLogin
	}
	user, ok, err := a.dir.FindUser(ctx, username)
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	if !ok {
		a.logger.Warn("security_event", "event", "session.login.user", "outcome", "fail", "username", username)
		return domain.User{}, ErrInvalidCredentials
	}
	a.dir.RecordLogin(ctx, username, domain.RoleUser)
	now := a.now().UTC()
	user.LastLogin = &now
	a.logger.Info("security_event", "event", "session.login.user", "outcome", "success", "user_id", user.ID)
	return user, nil
}

// Register creates a student account. The password is accepted but not
// stored, and the caller is not logged in.
func (a *Authenticator) Register(ctx context.Context, username, _ string) (domain.User, error) {
	return a.dir.RegisterUser(ctx, username)
}
