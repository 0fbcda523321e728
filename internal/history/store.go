package history

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sha1n/invitewatch/internal/domain"
)

const (
	// FormatVersion is the current schema version of the history file.
	FormatVersion = 1

	// DefaultFilename is the history file name inside the data directory.
	DefaultFilename = "history.json"

	// DefaultWriteTries is how many times a save is attempted before giving up.
	DefaultWriteTries = 3
)

// document is the on-disk layout.
type document struct {
	Version   int                             `json:"version"`
	UpdatedAt time.Time                       `json:"updated_at"`
	Records   map[string]domain.HistoryRecord `json:"records"`
}

// Store is the durable set of codes already surfaced to the operator.
// The in-memory map always mirrors the last successful save; a failed save
// rolls the change back.
type Store struct {
	path       string
	records    map[string]domain.HistoryRecord
	writeTries uint
	retryDelay time.Duration
	now        func() time.Time
	loadErr    error
	saveErr    error
	mu         sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithWriteTries sets the number of save attempts.
func WithWriteTries(n uint) Option {
	return func(s *Store) {
		if n > 0 {
			s.writeTries = n
		}
	}
}

// WithRetryDelay sets the initial delay between save attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Store) {
		s.retryDelay = d
	}
}

// WithClock overrides the time source for FirstSeenAt and NotifiedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func newStore(path string, opts ...Option) *Store {
	s := &Store{
		path:       path,
		records:    make(map[string]domain.HistoryRecord),
		writeTries: DefaultWriteTries,
		retryDelay: 100 * time.Millisecond,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewMemory creates a store that is never persisted.
func NewMemory(opts ...Option) *Store {
	return newStore("", opts...)
}

// Open loads the history file at path. A missing file yields an empty store.
// A corrupt or unreadable file also yields an empty store: the condition is
// logged and kept in LoadError, and the file is moved aside so the next save
// does not overwrite it. When it cannot be moved, the store refuses to save
// until an operator deals with the file. An unusable directory or a file
// from a newer format version is fatal.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &domain.PersistenceError{Op: "load", Path: path, Err: err}
	}

	s := newStore(path, opts...)
	doc, err := readDocument(path)
	switch {
	case err == nil:
		s.records = doc.Records
	case errors.Is(err, os.ErrNotExist):
		// first run
	case errors.Is(err, ErrUnsupportedVersion):
		return nil, &domain.PersistenceError{Op: "load", Path: path, Err: err}
	default:
		s.loadErr = &domain.PersistenceError{Op: "load", Path: path, Err: err}
		slog.Error("History unreadable, starting with an empty store", "path", path, "error", err)

		reason := "unreadable"
		if errors.Is(err, ErrCorrupt) {
			reason = "corrupt"
		}
		aside := fmt.Sprintf("%s.%s-%d", path, reason, s.now().Unix())
		if renameErr := os.Rename(path, aside); renameErr != nil {
			s.saveErr = fmt.Errorf("%w: %v", ErrSaveBlocked, renameErr)
			slog.Error("Failed to move history aside, saving is disabled", "path", path, "error", renameErr)
		} else {
			slog.Warn("Moved history aside", "path", aside)
		}
	}
	return s, nil
}

var (
	// ErrCorrupt is returned when the history file cannot be decoded.
	ErrCorrupt = errors.New("history file is corrupt")
	// ErrUnsupportedVersion is returned for files written by a newer release.
	ErrUnsupportedVersion = errors.New("unsupported history version")
	// ErrSaveBlocked is returned by saves when an unreadable history file
	// could not be moved out of the way.
	ErrSaveBlocked = errors.New("unreadable history file is still in place")
)

func readDocument(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	if doc.Records == nil {
		doc.Records = make(map[string]domain.HistoryRecord)
	}
	return &doc, nil
}

// Path returns the backing file, or "" for a memory store.
func (s *Store) Path() string {
	return s.path
}

// LoadError returns the recoverable error encountered by Open, if any.
func (s *Store) LoadError() error {
	return s.loadErr
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Contains reports whether code has a record. Matching is exact and case-sensitive.
func (s *Store) Contains(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[code]
	return ok
}

// Get returns the record for code.
func (s *Store) Get(code string) (domain.HistoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[code]
	return r, ok
}

// Diff returns the candidates whose text has no record, in input order.
// It does not modify the store.
func (s *Store) Diff(candidates []domain.CodeCandidate) []domain.CodeCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CodeCandidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := s.records[c.Text]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Commit records every candidate not already present with notified=false.
// Committing a code twice is a no-op the second time.
func (s *Store) Commit(candidates []domain.CodeCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var added []string
	for _, c := range candidates {
		if _, ok := s.records[c.Text]; ok {
			continue
		}
		seen := c.DiscoveredAt
		if seen.IsZero() {
			seen = now
		}
		s.records[c.Text] = domain.HistoryRecord{
			Code:        c.Text,
			FirstSeenAt: seen,
			Source:      c.Source,
			SourceID:    c.SourceID,
			Kind:        c.Kind,
			Context:     c.Context,
		}
		added = append(added, c.Text)
	}
	if len(added) == 0 {
		return nil
	}

	if err := s.persistLocked(); err != nil {
		for _, code := range added {
			delete(s.records, code)
		}
		return err
	}
	return nil
}

// MarkNotified flags the given codes as delivered. Unknown codes are ignored.
func (s *Store) MarkNotified(codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	previous := make(map[string]domain.HistoryRecord)
	for _, code := range codes {
		r, ok := s.records[code]
		if !ok || r.Notified {
			continue
		}
		previous[code] = r
		r.Notified = true
		r.NotifiedAt = &now
		s.records[code] = r
	}
	if len(previous) == 0 {
		return nil
	}

	if err := s.persistLocked(); err != nil {
		for code, r := range previous {
			s.records[code] = r
		}
		return err
	}
	return nil
}

// Pending returns committed records whose notification has not succeeded,
// oldest first.
func (s *Store) Pending() []domain.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.HistoryRecord
	for _, r := range s.records {
		if !r.Notified {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out
}

// Records returns every record, oldest first.
func (s *Store) Records() []domain.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.HistoryRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sortRecords(out)
	return out
}

// Snapshot implements Reader.
func (s *Store) Snapshot() ([]domain.HistoryRecord, error) {
	return s.Records(), nil
}

func sortRecords(rs []domain.HistoryRecord) {
	slices.SortFunc(rs, func(a, b domain.HistoryRecord) int {
		if c := a.FirstSeenAt.Compare(b.FirstSeenAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
}

// persistLocked saves the store, retrying with exponential backoff.
// The caller must hold the write lock.
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	if s.saveErr != nil {
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: s.saveErr}
	}

	data, err := json.MarshalIndent(document{
		Version:   FormatVersion,
		UpdatedAt: s.now().UTC(),
		Records:   s.records,
	}, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryDelay
	b.MaxInterval = 2 * time.Second

	attempt := 0
	_, err = backoff.Retry(context.Background(), func() (struct{}, error) {
		attempt++
		if err := writeAtomic(s.path, data); err != nil {
			slog.Warn("History save failed", "path", s.path, "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.writeTries))
	if err != nil {
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

// writeAtomic writes data to a temp file in the same directory, syncs it and
// renames it over path, so a crash leaves either the old or the new file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename history file: %w", err)
	}
	return nil
}
