// Package store is the data access layer over the persisted portal document.
//
// Every operation reads the whole document from the key-value area, applies
// one mutation, writes the whole document back and then waits for the
// configured latency. A single mutex serialises the read-modify-write cycle,
// so the uniqueness and duplicate checks are atomic with their write.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"eduportal/pkg/domain"
	"eduportal/pkg/kv"
	"eduportal/pkg/storage"
)

// DefaultKey names the persisted document in the key-value area.
const DefaultKey = "edu_resource_db_v4"

const (
	DefaultLatency      = 300 * time.Millisecond
	DefaultLoginLatency = 200 * time.Millisecond
)

var validate = validator.New()

// Options configures a Store. Zero latencies disable the artificial delay.
type Options struct {
	Key          string
	Latency      time.Duration
	LoginLatency time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
	// Quarantine receives a copy of a malformed document before it is reset.
	Quarantine storage.Archive
}

// Store is the sole authority over the persisted document.
type Store struct {
	kv           kv.Storage
	key          string
	latency      time.Duration
	loginLatency time.Duration
	now          func() time.Time
	logger       *slog.Logger
	quarantine   storage.Archive

	mu       sync.Mutex
	seedOnce sync.Once
	seed     domain.Document
}

// New builds a Store over the given storage handle.
func New(area kv.Storage, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		kv:           area,
		key:          opts.Key,
		latency:      opts.Latency,
		loginLatency: opts.LoginLatency,
		now:          opts.Now,
		logger:       opts.Logger,
		quarantine:   opts.Quarantine,
	}
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// seedDocument returns a fresh copy of the seed, generated once per Store.
func (s *Store) seedDocument() domain.Document {
	s.seedOnce.Do(func() {
		s.seed = newSeedDocument(s.timestamp(), newID)
	})
	return cloneDocument(s.seed)
}

// view runs fn against the current document without persisting changes.
func (s *Store) view(ctx context.Context, fn func(doc domain.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	fn(doc)
	return nil
}

// update loads the document, applies fn and writes the result back. An error
// from fn aborts the cycle without writing.
func (s *Store) update(ctx context.Context, fn func(doc *domain.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return s.save(ctx, doc)
}

func (s *Store) load(ctx context.Context) (domain.Document, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: read document: %w", ErrStorageFailure, err)
	}
	if !ok {
		seed := s.seedDocument()
		if err := s.save(ctx, seed); err != nil {
			s.logger.Warn("failed to persist seed document", "key", s.key, "err", err)
		}
		return seed, nil
	}
	doc, err := s.decode(raw)
	if err != nil {
		s.logger.Error("document corrupted, resetting to seed data", "key", s.key, "err", err)
		s.archive(ctx, raw)
		seed := s.seedDocument()
		if err := s.save(ctx, seed); err != nil {
			s.logger.Warn("failed to persist seed document", "key", s.key, "err", err)
		}
		return seed, nil
	}
	return doc, nil
}

// decode parses the persisted document, default-filling missing collections.
func (s *Store) decode(raw string) (domain.Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", ErrMalformedStore, err)
	}
	if fields == nil {
		return domain.Document{}, fmt.Errorf("%w: document is null", ErrMalformedStore)
	}
	var doc domain.Document
	present := func(name string, dst any) (bool, error) {
		msg, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			return false, nil
		}
		if err := json.Unmarshal(msg, dst); err != nil {
			return false, fmt.Errorf("%w: %s: %v", ErrMalformedStore, name, err)
		}
		return true, nil
	}
	hasUsers, err := present("users", &doc.Users)
	if err != nil {
		return domain.Document{}, err
	}
	hasBooks, err := present("books", &doc.Books)
	if err != nil {
		return domain.Document{}, err
	}
	hasReviews, err := present("reviews", &doc.Reviews)
	if err != nil {
		return domain.Document{}, err
	}
	hasLogs, err := present("loginLogs", &doc.LoginLogs)
	if err != nil {
		return domain.Document{}, err
	}
	if !hasUsers || !hasBooks {
		seed := s.seedDocument()
		if !hasUsers {
			doc.Users = seed.Users
		}
		if !hasBooks {
			doc.Books = seed.Books
		}
	}
	if !hasReviews || doc.Reviews == nil {
		doc.Reviews = []domain.Review{}
	}
	if !hasLogs || doc.LoginLogs == nil {
		doc.LoginLogs = []domain.LoginLog{}
	}
	if doc.Users == nil {
		doc.Users = []domain.User{}
	}
	if doc.Books == nil {
		doc.Books = []domain.Book{}
	}
	return doc, nil
}

func (s *Store) archive(ctx context.Context, raw string) {
	if s.quarantine == nil {
		return
	}
	objectKey, err := s.quarantine.Archive(ctx, s.key, []byte(raw))
	if err != nil {
		s.logger.Warn("failed to quarantine corrupted document", "key", s.key, "err", err)
		return
	}
	s.logger.Info("quarantined corrupted document", "key", s.key, "object", objectKey)
}

func (s *Store) save(ctx context.Context, doc domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode document: %w", ErrStorageFailure, err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		s.logger.Error("storage full or error saving document", "key", s.key, "bytes", len(data), "err", err)
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return nil
}

// wait simulates the round-trip. A cancelled ctx cuts it short, but any
// mutation made before the wait has already been committed.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the whole document.
func (s *Store) Snapshot(ctx context.Context) (domain.Document, error) {
	var out domain.Document
	if err := s.view(ctx, func(doc domain.Document) { out = doc }); err != nil {
		return domain.Document{}, err
	}
	return out, wait(ctx, s.latency)
}

// Reset overwrites the persisted document with the seed document.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, s.seedDocument())
}

func sortReviewsNewestFirst(reviews []domain.Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].Timestamp.After(reviews[j].Timestamp)
	})
}

func sortLoginLogsNewestFirst(logs []domain.LoginLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
}

func sameComment(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
