package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eduportal/internal/dashboard"
	"eduportal/pkg/domain"
)

func (a *App) Reviews(ctx context.Context) ([]domain.Review, error) {
	return a.store.GetReviews(ctx)
}

// BookReviews returns the reviews left on one book, newest first.
func (a *App) BookReviews(ctx context.Context, bookID string) ([]domain.Review, error) {
	all, err := a.store.GetReviews(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Review, 0)
	for _, r := range all {
		if r.BookID == bookID {
			out = append(out, r)
		}
	}
	return out, nil
}

// AddReview records feedback from the principal. bookID is either a catalog
// book or domain.GeneralFeedback.
func (a *App) AddReview(ctx context.Context, principal domain.User, bookID string, rating int, comment string) (domain.Review, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		bookID = domain.GeneralFeedback
	}
	if bookID != domain.GeneralFeedback {
		if _, err := a.Book(ctx, bookID); err != nil {
			if errors.Is(err, ErrBookNotFound) {
				return domain.Review{}, fmt.Errorf("%w: %s", ErrUnknownBook, bookID)
			}
			return domain.Review{}, err
		}
	}
	return a.store.AddReview(ctx, domain.NewReview{
		BookID:   bookID,
		UserID:   principal.ID,
		Username: principal.Username,
		Rating:   rating,
		Comment:  strings.TrimSpace(comment),
	})
}

func (a *App) Users(ctx context.Context) ([]domain.User, error) {
	return a.store.GetUsers(ctx)
}

func (a *App) LoginLogs(ctx context.Context) ([]domain.LoginLog, error) {
	return a.store.GetLoginLogs(ctx)
}

// Activity fetches one dashboard snapshot.
func (a *App) Activity(ctx context.Context) (dashboard.Snapshot, error) {
	return a.poller().Fetch(ctx)
}

// WatchActivity delivers dashboard snapshots until ctx is cancelled.
func (a *App) WatchActivity(ctx context.Context, deliver func(dashboard.Snapshot)) error {
	return a.poller().Run(ctx, deliver)
}

func (a *App) poller() *dashboard.Poller {
	return dashboard.NewPoller(a.store, a.interval, a.logger.With("component", "dashboard"))
}
