package store

import (
	"context"
	"fmt"
	"strings"

	"eduportal/pkg/domain"
)

// GetUsers returns every registered user.
func (s *Store) GetUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := s.view(ctx, func(doc domain.Document) { users = doc.Users }); err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, wait(ctx, s.latency)
}

// FindUser looks up a user by exact username.
func (s *Store) FindUser(ctx context.Context, username string) (domain.User, bool, error) {
	var (
		user  domain.User
		found bool
	)
	err := s.view(ctx, func(doc domain.Document) {
		user, found = findUser(doc.Users, username)
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return user, found, wait(ctx, s.latency)
}

func findUser(users []domain.User, username string) (domain.User, bool) {
	for _, u := range users {
		if u.Username == username {
			return u, true
		}
	}
	return domain.User{}, false
}

// RegisterUser creates a USER-role account. Usernames are compared exactly.
func (s *Store) RegisterUser(ctx context.Context, username string) (domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return domain.User{}, fmt.Errorf("%w: username required", ErrInvalidInput)
	}
	user := domain.User{
		ID:       newID("u"),
		Username: username,
		Role:     domain.RoleUser,
	}
	err := s.update(ctx, func(doc *domain.Document) error {
		if _, exists := findUser(doc.Users, username); exists {
			return ErrDuplicateUsername
		}
		doc.Users = append(doc.Users, user)
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, wait(ctx, s.latency)
}

// RecordLogin stamps the user's last login, if the user exists, and always
// appends one login log entry. It is best-effort: failures are logged and
// never returned.
func (s *Store) RecordLogin(ctx context.Context, username string, role domain.Role) {
	now := s.timestamp()
	err := s.update(ctx, func(doc *domain.Document) error {
		for i := range doc.Users {
			if doc.Users[i].Username == username {
				ts := now
				doc.Users[i].LastLogin = &ts
				break
			}
		}
		doc.LoginLogs = append(doc.LoginLogs, domain.LoginLog{
			ID:        newID("log"),
			Username:  username,
			Role:      role,
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to record login", "username", username, "role", role, "err", err)
	}
	_ = wait(ctx, s.loginLatency)
}

// GetLoginLogs returns the login history, newest first.
func (s *Store) GetLoginLogs(ctx context.Context) ([]domain.LoginLog, error) {
	var logs []domain.LoginLog
	if err := s.view(ctx, func(doc domain.Document) { logs = doc.LoginLogs }); err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []domain.LoginLog{}
	}
	sortLoginLogsNewestFirst(logs)
	return logs, wait(ctx, s.latency)
}
