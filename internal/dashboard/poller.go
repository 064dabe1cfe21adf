// Package dashboard keeps the admin activity view fresh by polling the store.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"eduportal/pkg/domain"
)

// DefaultInterval is the admin auto-refresh period.
const DefaultInterval = 5 * time.Second

// ErrLoad is shown when the first fetch of a view fails.
var ErrLoad = errors.New("An internal error occurred while fetching data. Please refresh.")

// Source is the read side of the store the dashboard needs.
type Source interface {
	GetUsers(ctx context.Context) ([]domain.User, error)
	GetReviews(ctx context.Context) ([]domain.Review, error)
	GetLoginLogs(ctx context.Context) ([]domain.LoginLog, error)
}

// Snapshot is one refresh of the admin view. Each collection comes from its
// own read, so a write landing mid-fetch may show in one list and not yet in
// another. The next refresh converges.
type Snapshot struct {
	Users     []domain.User     `json:"users"`
	Reviews   []domain.Review   `json:"reviews"`
	LoginLogs []domain.LoginLog `json:"loginLogs"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

type Poller struct {
	src      Source
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewPoller(src Source, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{src: src, interval: interval, logger: logger, now: time.Now}
}

// Fetch loads users, reviews and login logs in parallel. Any failed read
// fails the whole fetch; a partial snapshot is never returned.
func (p *Poller) Fetch(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := p.src.GetUsers(gctx)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		snap.Users = users
		return nil
	})
	g.Go(func() error {
		reviews, err := p.src.GetReviews(gctx)
		if err != nil {
			return fmt.Errorf("reviews: %w", err)
		}
		snap.Reviews = reviews
		return nil
	})
	g.Go(func() error {
		logs, err := p.src.GetLoginLogs(gctx)
		if err != nil {
			return fmt.Errorf("login logs: %w", err)
		}
		snap.LoginLogs = logs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.FetchedAt = p.now().UTC()
	return snap, nil
}

// Run delivers an initial snapshot and then one per interval until ctx is
// cancelled. A failed first fetch is returned wrapped in ErrLoad; later
// failures are logged and skipped. Polls never overlap: a tick that fires
// while a fetch is in flight is dropped. Run returns nil once ctx is done.
func (p *Poller) Run(ctx context.Context, deliver func(Snapshot)) error {
	snap, err := p.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	deliver(snap)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		snap, err := p.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("dashboard refresh failed", "err", err)
			continue
		}
		deliver(snap)
	}
}
