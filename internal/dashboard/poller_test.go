package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eduportal/pkg/domain"
	"eduportal/pkg/kv"
	"eduportal/pkg/store"
)

type slowSource struct {
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
	failFrom int32
}

func (s *slowSource) enter() error {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	call := s.calls.Add(1)
	time.Sleep(s.delay)
	if s.failFrom > 0 && call >= s.failFrom {
		return errors.New("boom")
	}
	return nil
}

func (s *slowSource) GetUsers(context.Context) ([]domain.User, error) {
	return []domain.User{{ID: "u-1"}}, s.enter()
}

func (s *slowSource) GetReviews(context.Context) ([]domain.Review, error) {
	return []domain.Review{}, s.enter()
}

func (s *slowSource) GetLoginLogs(context.Context) ([]domain.LoginLog, error) {
	return []domain.LoginLog{}, s.enter()
}

func TestFetchAgainstStore(t *testing.T) {
	st := store.New(kv.NewMemoryStorage(0), store.Options{})
	p := NewPoller(st, time.Second, nil)
	snap, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snap.Users) != 15 || len(snap.LoginLogs) != 15 || len(snap.Reviews) != 0 || snap.FetchedAt.IsZero() {
		t.Fatalf("unexpected snapshot: users=%d logs=%d reviews=%d", len(snap.Users), len(snap.LoginLogs), len(snap.Reviews))
	}
}

func TestFetchRunsInParallel(t *testing.T) {
	src := &slowSource{delay: 50 * time.Millisecond}
	p := NewPoller(src, time.Second, nil)
	if _, err := p.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if src.maxSeen.Load() < 2 {
		t.Fatalf("expected concurrent source calls, max in flight %d", src.maxSeen.Load())
	}
}

func TestRunStopsOnCancelWithoutOverlap(t *testing.T) {
	src := &slowSource{delay: 30 * time.Millisecond}
	p := NewPoller(src, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	delivered := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(Snapshot) {
			mu.Lock()
			delivered++
			mu.Unlock()
		})
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if delivered < 2 {
		t.Fatalf("expected several snapshots, got %d", delivered)
	}
	if src.maxSeen.Load() > 3 {
		t.Fatalf("polls overlapped: %d calls in flight", src.maxSeen.Load())
	}
	calls := src.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if src.calls.Load() != calls {
		t.Fatalf("source still called after cancel")
	}
}

func TestRunInitialFailure(t *testing.T) {
	src := &slowSource{failFrom: 1}
	p := NewPoller(src, time.Millisecond, nil)
	err := p.Run(context.Background(), func(Snapshot) { t.Fatalf("must not deliver") })
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestRunSilentRefreshFailure(t *testing.T) {
	src := &slowSource{failFrom: 4}
	p := NewPoller(src, time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	delivered := 0
	if err := p.Run(ctx, func(Snapshot) { delivered++ }); err != nil {
		t.Fatalf("later failures must not end the poller: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected only the initial snapshot, got %d", delivered)
	}
}

type logsDown struct{ slowSource }

func (*logsDown) GetLoginLogs(context.Context) ([]domain.LoginLog, error) {
	return nil, errors.New("logs unavailable")
}

func TestFetchFailsWithoutPartialSnapshot(t *testing.T) {
	p := NewPoller(&logsDown{}, time.Second, nil)
	snap, err := p.Fetch(context.Background())
	if err == nil {
		t.Fatalf("expected fetch error")
	}
	if snap.Users != nil || snap.Reviews != nil || !snap.FetchedAt.IsZero() {
		t.Fatalf("expected empty snapshot on failure, got %+v", snap)
	}
}
