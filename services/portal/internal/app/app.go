package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eduportal/pkg/ai"
	"eduportal/pkg/domain"
	"eduportal/pkg/kv"
	"eduportal/pkg/session"
	"eduportal/pkg/storage"
	"eduportal/pkg/store"
	"eduportal/pkg/token"
	"eduportal/services/portal/internal/config"
)

// Config holds the parsed portal configuration plus optional overrides used
// by tests and tooling.
type Config struct {
	Portal config.Config
	// KV replaces the configured storage backend when set.
	KV kv.Storage
	// Generator replaces the configured insight provider when set.
	Generator ai.TextGenerator
	// Revoker replaces the configured token revocation list when set.
	Revoker token.Revoker
	Logger  *slog.Logger
}

// App is the portal core: it owns the store and everything layered on top.
type App struct {
	store     *store.Store
	auth      *session.Authenticator
	tokens    *token.Manager
	insight   *ai.Insight
	interval  time.Duration
	maxUpload int64
	logger    *slog.Logger
	closers   []func() error
}

// New wires storage, authentication, tokens and the insight client.
func New(ctx context.Context, cfg Config) (*App, error) {
	pc := cfg.Portal
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		interval:  pc.DashboardIntervalDuration,
		maxUpload: pc.MaxUploadBytes,
		logger:    logger,
	}

	area := cfg.KV
	if area == nil {
		var err error
		area, err = kv.New(kv.Config{
			Backend:       strings.ToLower(pc.StoreBackend),
			DataDir:       pc.DataDir,
			RedisAddr:     pc.RedisAddr,
			RedisPassword: pc.RedisPassword,
			RedisPrefix:   pc.RedisPrefix,
			DatabaseURL:   pc.DatabaseURL,
			QuotaBytes:    pc.StoreQuotaBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("init kv store: %w", err)
		}
		if c, ok := area.(interface{ Close() error }); ok {
			a.closers = append(a.closers, c.Close)
		}
	}

	var quarantine storage.Archive
	if pc.QuarantineEndpoint != "" {
		archive, err := storage.NewMinioArchive(storage.MinioConfig{
			Endpoint:  pc.QuarantineEndpoint,
			AccessKey: pc.QuarantineAccessKey,
			SecretKey: pc.QuarantineSecretKey,
			Bucket:    pc.QuarantineBucket,
			UseSSL:    pc.QuarantineUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init quarantine archive: %w", err)
		}
		quarantine = archive
	}

	a.store = store.New(area, store.Options{
		Key:          pc.StoreKey,
		Latency:      pc.StoreLatencyDuration,
		LoginLatency: pc.LoginLatencyDuration,
		Logger:       logger.With("component", "store"),
		Quarantine:   quarantine,
	})

	admin, err := session.NewAdminCredential(pc.AdminUsername, pc.AdminPassword)
	if err != nil {
		return nil, err
	}
	a.auth = session.NewAuthenticator(a.store, admin, logger)

	revoker := cfg.Revoker
	if revoker == nil {
		if pc.RedisAddr != "" {
			r := token.NewRedisRevoker(pc.RedisAddr, pc.RedisPassword, "")
			a.closers = append(a.closers, r.Close)
			revoker = r
		} else {
			revoker = token.NewMemoryRevoker()
		}
	}
	a.tokens, err = token.NewManager(pc.JWTSecret, revoker, token.Options{
		Issuer:   pc.JWTIssuer,
		Audience: pc.JWTAudience,
		TTL:      pc.JWTTTLDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	gen := cfg.Generator
	if gen == nil {
		gen, err = ai.NewGenerator(ctx, ai.ProviderConfig{
			Provider: pc.AIProvider,
			Model:    pc.AIModel,
			APIKey:   pc.AIAPIKey,
			BaseURL:  pc.AIBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init insight provider: %w", err)
		}
	}
	a.insight = ai.NewInsight(gen, pc.InsightTimeoutDuration, logger.With("component", "insight"))
	return a, nil
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Store exposes the data access layer to tooling.
func (a *App) Store() *store.Store {
	return a.store
}

// MaxUploadBytes is the accepted PDF size.
func (a *App) MaxUploadBytes() int64 {
	return a.maxUpload
}

// Register creates a student account. It does not log the caller in.
func (a *App) Register(ctx context.Context, username, password string) (domain.User, error) {
	return a.auth.Register(ctx, strings.TrimSpace(username), password)
}

// Login authenticates and returns a bearer token for the principal.
func (a *App) Login(ctx context.Context, username, password string, role domain.Role) (string, domain.User, error) {
	user, err := a.auth.Login(ctx, strings.TrimSpace(username), password, role)
	if err != nil {
		return "", domain.User{}, err
	}
	tok, err := a.tokens.Issue(user)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("issue token: %w", err)
	}
	return tok, user, nil
}

// Logout revokes the bearer token.
func (a *App) Logout(ctx context.Context, raw string) error {
	return a.tokens.Revoke(ctx, raw)
}

// Authenticate resolves a bearer token to its principal.
func (a *App) Authenticate(ctx context.Context, raw string) (domain.User, error) {
	user, err := a.tokens.Verify(ctx, raw)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return user, nil
}

// Me returns the freshest view of the principal. Students are re-read from
// the store; the administrator has no stored record.
func (a *App) Me(ctx context.Context, principal domain.User) (domain.User, error) {
	if principal.Role == domain.RoleAdmin {
		return principal, nil
	}
	user, ok, err := a.store.FindUser(ctx, principal.Username)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}
