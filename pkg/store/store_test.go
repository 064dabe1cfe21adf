package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"eduportal/pkg/domain"
	"eduportal/pkg/kv"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type failingStorage struct {
	kv.Storage
	failSet bool
}

func (f *failingStorage) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("disk on fire")
	}
	return f.Storage.Set(ctx, key, value)
}

type recordingArchive struct {
	names []string
	data  []string
}

func (a *recordingArchive) Archive(_ context.Context, name string, data []byte) (string, error) {
	a.names = append(a.names, name)
	a.data = append(a.data, string(data))
	return "quarantine/" + name + ".json", nil
}

func newTestStore(t *testing.T, area kv.Storage) *Store {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(area, Options{Now: clock.Now})
}

func TestFreshStoreIsSeeded(t *testing.T) {
	area := kv.NewMemoryStorage(0)
	s := newTestStore(t, area)
	ctx := context.Background()

	doc, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(doc.Books) != 3 || len(doc.Users) != 15 || len(doc.LoginLogs) != 15 || len(doc.Reviews) != 0 {
		t.Fatalf("unexpected seed sizes: books=%d users=%d logs=%d reviews=%d",
			len(doc.Books), len(doc.Users), len(doc.LoginLogs), len(doc.Reviews))
	}
	for _, u := range doc.Users {
		if u.Role != domain.RoleUser || u.LastLogin == nil {
			t.Fatalf("seed user should be USER with last login: %+v", u)
		}
	}
	if doc.Books[0].ID != "b-1" || doc.Books[0].PDFURL != domain.PlaceholderPDF {
		t.Fatalf("unexpected first seed book: %+v", doc.Books[0])
	}
	if _, ok, _ := area.Get(ctx, DefaultKey); !ok {
		t.Fatalf("expected seed document to be persisted")
	}
}

func TestMalformedDocumentResetsToSeed(t *testing.T) {
	cases := map[string]string{
		"string":   `"not a document"`,
		"null":     `null`,
		"array":    `[1,2,3]`,
		"garbage":  `{users:`,
		"bad type": `{"users":"nope"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			area := kv.NewMemoryStorage(0)
			ctx := context.Background()
			if err := area.Set(ctx, DefaultKey, raw); err != nil {
				t.Fatalf("set raw: %v", err)
			}
			archive := &recordingArchive{}
			s := New(area, Options{Quarantine: archive})

			doc, err := s.Snapshot(ctx)
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			if len(doc.Books) != 3 || len(doc.Users) != 15 || len(doc.LoginLogs) != 15 || len(doc.Reviews) != 0 {
				t.Fatalf("expected seed document, got books=%d users=%d logs=%d reviews=%d",
					len(doc.Books), len(doc.Users), len(doc.LoginLogs), len(doc.Reviews))
			}
			if len(archive.data) != 1 || archive.data[0] != raw || archive.names[0] != DefaultKey {
				t.Fatalf("expected raw document quarantined once, got %+v", archive)
			}
			persisted, _, _ := area.Get(ctx, DefaultKey)
			if persisted == raw {
				t.Fatalf("expected malformed document to be overwritten")
			}
		})
	}
}

func TestMissingCollectionsAreDefaultFilled(t *testing.T) {
	area := kv.NewMemoryStorage(0)
	ctx := context.Background()
	if err := area.Set(ctx, DefaultKey, `{"reviews":null}`); err != nil {
		t.Fatalf("set raw: %v", err)
	}
	s := newTestStore(t, area)
	doc, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(doc.Users) != 15 || len(doc.Books) != 3 {
		t.Fatalf("expected users and books from seed, got users=%d books=%d", len(doc.Users), len(doc.Books))
	}
	if doc.Reviews == nil || len(doc.Reviews) != 0 || doc.LoginLogs == nil || len(doc.LoginLogs) != 0 {
		t.Fatalf("expected empty reviews and login logs, got %+v %+v", doc.Reviews, doc.LoginLogs)
	}

	if err := area.Set(ctx, DefaultKey, `{"users":[],"books":[]}`); err != nil {
		t.Fatalf("set raw: %v", err)
	}
	doc, err = s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(doc.Users) != 0 || len(doc.Books) != 0 {
		t.Fatalf("present empty collections must be kept, got users=%d books=%d", len(doc.Users), len(doc.Books))
	}
}

func TestRegisterThenRecordLogin(t *testing.T) {
	s := newTestStore(t, kv.NewMemoryStorage(0))
	ctx := context.Background()

	user, err := s.RegisterUser(ctx, "alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != domain.RoleUser || user.LastLogin != nil || !strings.HasPrefix(user.ID, "u-") {
		t.Fatalf("unexpected registered user: %+v", user)
	}
	if _, err := s.RegisterUser(ctx, "alice"); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
	if _, err := s.RegisterUser(ctx, "Alice"); err != nil {
		t.Fatalf("usernames are case-sensitive, got %v", err)
	}
	if _, err := s.RegisterUser(ctx, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank username, got %v", err)
	}

	before, err := s.GetLoginLogs(ctx)
	if err != nil {
		t.Fatalf("login logs: %v", err)
	}
	s.RecordLogin(ctx, "alice", domain.RoleUser)

	found, ok, err := s.FindUser(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("find alice: ok=%v err=%v", ok, err)
	}
	if found.LastLogin == nil {
		t.Fatalf("expected last login to be set")
	}
	logs, err := s.GetLoginLogs(ctx)
	if err != nil {
		t.Fatalf("login logs: %v", err)
	}
	if len(logs) != len(before)+1 {
		t.Fatalf("expected one new login log, got %d -> %d", len(before), len(logs))
	}
	if logs[0].Username != "alice" || logs[0].Role != domain.RoleUser {
		t.Fatalf("expected newest log for alice, got %+v", logs[0])
	}
}

func TestRecordLoginUnknownUserStillLogs(t *testing.T) {
	s := newTestStore(t, kv.NewMemoryStorage(0))
	ctx := context.Background()
	s.RecordLogin(ctx, "admin", domain.RoleAdmin)

	logs, err := s.GetLoginLogs(ctx)
	if err != nil {
		t.Fatalf("login logs: %v", err)
	}
	if logs[0].Username != "admin" || logs[0].Role != domain.RoleAdmin {
		t.Fatalf("expected admin log entry first, got %+v", logs[0])
	}
	users, err := s.GetUsers(ctx)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(users) != 15 {
		t.Fatalf("record login must not create users, got %d", len(users))
	}
}

func TestRecordLoginSwallowsStorageFailure(t *testing.T) {
	area := &failingStorage{Storage: kv.NewMemoryStorage(0)}
	s := newTestStore(t, area)
	ctx := context.Background()
	if _, err := s.GetUsers(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	area.failSet = true
	s.RecordLogin(ctx, "student1", domain.RoleUser)

	area.failSet = false
	logs, err := s.GetLoginLogs(ctx)
	if err != nil {
		t.Fatalf("login logs: %v", err)
	}
	if len(logs) != 15 {
		t.Fatalf("failed write must not be visible, got %d logs", len(logs))
	}
}

func TestAddReviewDuplicateSuppression(t *testing.T) {
	s := newTestStore(t, kv.NewMemoryStorage(0))
	ctx := context.Background()
	in := domain.NewReview{BookID: "b-1", UserID: "u-1", Username: "student1", Rating: 5, Comment: "Great"}

	first, err := s.AddReview(ctx, in)
	if err != nil {
		t.Fatalf("add review: %v", err)
	}
	if !strings.HasPrefix(first.ID, "r-") || first.Timestamp.IsZero() {
		t.Fatalf("expected generated id and timestamp: %+v", first)
	}

	dup := in
	dup.Comment = "  Great \n"
	if _, err := s.AddReview(ctx, dup); !errors.Is(err, ErrDuplicateReview) {
		t.Fatalf("expected duplicate review, got %v", err)
	}
	reviews, err := s.GetReviews(ctx)
	if err != nil {
		t.Fatalf("reviews: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("duplicate must leave reviews unchanged, got %d", len(reviews))
	}

	other := in
	other.BookID = domain.GeneralFeedback
	second, err := s.AddReview(ctx, other)
	if err != nil {
		t.Fatalf("same comment on general feedback should pass: %v", err)
	}
	reviews, err = s.GetReviews(ctx)
	if err != nil {
		t.Fatalf("reviews: %v", err)
	}
	if len(reviews) != 2 || reviews[0].ID != second.ID {
		t.Fatalf("expected newest review first, got %+v", reviews)
	}
}

func TestAddReviewRejectsOutOfRangeRating(t *testing.T) {
	s := newTestStore(t, kv.NewMemoryStorage(0))
	for _, rating := range []int{0, 6, -1} {
		_, err := s.AddReview(context.Background(), domain.NewReview{
			BookID: "b-1", UserID: "u-1", Username: "student1", Rating: rating, Comment: "ok",
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("rating %d: expected invalid input, got %v", rating, err)
		}
	}
}

func TestGetReviewsSortedNewestFirst(t *testing.T) {
	area := kv.NewMemoryStorage(0)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	doc := domain.Document{
		Users: []domain.User{},
		Books: []domain.Book{},
		Reviews: []domain.Review{
			{ID: "r-old", Comment: "a", Rating: 3, Timestamp: base},
			{ID: "r-new", Comment: "b", Rating: 4, Timestamp: base.Add(2 * time.Hour)},
			{ID: "r-mid", Comment: "c", Rating: 5, Timestamp: base.Add(time.Hour)},
		},
		LoginLogs: []domain.LoginLog{
			{ID: "l-mid", Timestamp: base.Add(time.Hour)},
			{ID: "l-old", Timestamp: base},
			{ID: "l-new", Timestamp: base.Add(2 * time.Hour)},
		},
	}
	data, _ := json.Marshal(doc)
	if err := area.Set(ctx, DefaultKey, string(data)); err != nil {
		t.Fatalf("set: %v", err)
	}
	s := newTestStore(t, area)

	reviews, err := s.GetReviews(ctx)
	if err != nil {
		t.Fatalf("reviews: %v", err)
	}
	logs, err := s.GetLoginLogs(ctx)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	want := []string{"new", "mid", "old"}
	for i, w := range want {
		if reviews[i].ID != "r-"+w || logs[i].ID != "l-"+w {
			t.Fatalf("position %d: got review %s log %s", i, reviews[i].ID, logs[i].ID)
		}
	}
}

func TestAddBookStorageFailureIsNotPersisted(t *testing.T) {
	area := kv.NewMemoryStorage(64 * 1024)
	s := newTestStore(t, area)
	ctx := context.Background()

	book, err := s.AddBook(ctx, domain.NewBook{
		Title: "Small", Author: "A", Category: "C", Description: "D", PDFURL: domain.PlaceholderPDF,
	})
	if err != nil {
		t.Fatalf("add small book: %v", err)
	}
	if !strings.HasPrefix(book.ID, "b-") || book.UploadedAt.IsZero() {
		t.Fatalf("expected generated id and upload time: %+v", book)
	}

	_, err = s.AddBook(ctx, domain.NewBook{
		Title: "Huge", Author: "A", Category: "C", Description: "D",
		PDFURL: "data:application/pdf;base64," + strings.Repeat("A", 128*1024),
	})
	if !errors.Is(err, ErrStorageFailure) || !errors.Is(err, kv.ErrQuotaExceeded) {
		t.Fatalf("expected storage failure wrapping quota error, got %v", err)
	}
	books, err := s.GetBooks(ctx)
	if err != nil {
		t.Fatalf("books: %v", err)
	}
	if len(books) != 4 || books[3].ID != book.ID {
		t.Fatalf("expected seed + small book only, got %d books", len(books))
	}
}

func TestAddBookRequiresAllFields(t *testing.T) {
	s := newTestStore(t, kv.NewMemoryStorage(0))
	_, err := s.AddBook(context.Background(), domain.NewBook{Title: "T", Author: "A"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSnapshotRoundTripAndIdempotentReads(t *testing.T) {
	area := kv.NewMemoryStorage(0)
	s := newTestStore(t, area)
	ctx := context.Background()
	if _, err := s.AddReview(ctx, domain.NewReview{BookID: "b-2", UserID: "u-2", Username: "student2", Rating: 4, Comment: "Nice"}); err != nil {
		t.Fatalf("add review: %v", err)
	}

	doc, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	written, _ := json.Marshal(doc)
	persisted, _, _ := area.Get(ctx, DefaultKey)
	if string(written) != persisted {
		t.Fatalf("snapshot differs from persisted document")
	}

	again, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot again: %v", err)
	}
	reread, _ := json.Marshal(again)
	if string(reread) != string(written) {
		t.Fatalf("reads without mutation must be equal")
	}

	b1, _ := s.GetBooks(ctx)
	b2, _ := s.GetBooks(ctx)
	j1, _ := json.Marshal(b1)
	j2, _ := json.Marshal(b2)
	if string(j1) != string(j2) {
		t.Fatalf("get books must be idempotent")
	}
}

func TestReturnedCollectionsAreCopies(t *testing.T) {
	s := newTestStore(t, kv.NewMemoryStorage(0))
	ctx := context.Background()
	books, err := s.GetBooks(ctx)
	if err != nil {
		t.Fatalf("books: %v", err)
	}
	books[0].Title = "mutated"
	again, err := s.GetBooks(ctx)
	if err != nil {
		t.Fatalf("books: %v", err)
	}
	if again[0].Title == "mutated" {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestConcurrentRegisterIsSerialised(t *testing.T) {
	s := newTestStore(t, kv.NewMemoryStorage(0))
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.RegisterUser(ctx, "racer")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	successes, duplicates := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrDuplicateUsername):
			duplicates++
		default:
			t.Fatalf("unexpected register error: %v", err)
		}
	}
	if successes != 1 || duplicates != workers-1 {
		t.Fatalf("expected one success, got successes=%d duplicates=%d", successes, duplicates)
	}
}

func TestLatencyHonoursContext(t *testing.T) {
	s := New(kv.NewMemoryStorage(0), Options{Latency: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := s.GetBooks(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("latency wait ignored context cancellation")
	}
}

func TestResetRestoresSeed(t *testing.T) {
	s := newTestStore(t, kv.NewMemoryStorage(0))
	ctx := context.Background()
	if _, err := s.RegisterUser(ctx, "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	users, err := s.GetUsers(ctx)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(users) != 15 {
		t.Fatalf("expected seed users after reset, got %d", len(users))
	}
}
