package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sha1n/invitewatch/internal/detect"
	"github.com/sha1n/invitewatch/internal/domain"
)

// Fetcher retrieves the monitored account's content. Failures are returned
// as *domain.FetchError. FetchNoteDetail returns the note it was given,
// completed with its full text when the note page could be read.
type Fetcher interface {
	FetchNotes(ctx context.Context, userID string, max int) ([]domain.Note, error)
	FetchNoteDetail(ctx context.Context, note domain.Note) (domain.Note, error)
	FetchComments(ctx context.Context, note domain.Note, max int) ([]domain.Comment, error)
}

// Notifier delivers a batch of codes to the operator.
type Notifier interface {
	Send(ctx context.Context, codes []domain.CodeCandidate) error
}

// Store is the history the monitor deduplicates against.
type Store interface {
	Diff(candidates []domain.CodeCandidate) []domain.CodeCandidate
	Commit(candidates []domain.CodeCandidate) error
	MarkNotified(codes []string) error
	Pending() []domain.HistoryRecord
}

// State is a step of the cycle state machine.
type State string

const (
	StateIdle       State = "IDLE"
	StateFetching   State = "FETCHING"
	StateExtracting State = "EXTRACTING"
	StateFiltering  State = "FILTERING"
	StateNotifying  State = "NOTIFYING"
	StatePersisting State = "PERSISTING"
	StateAborted    State = "ABORTED"
)

// Config holds the per-cycle limits.
type Config struct {
	TargetUserID  string
	MaxNotes      int
	MaxComments   int
	FetchTimeout  time.Duration
	NotifyTimeout time.Duration
	Denylist      detect.Denylist
}

// Monitor runs detection cycles. It holds no state between cycles other
// than the injected store.
type Monitor struct {
	cfg      Config
	matcher  *detect.Matcher
	fetcher  Fetcher
	notifier Notifier
	store    Store
	now      func() time.Time
}

// New creates a Monitor.
func New(cfg Config, matcher *detect.Matcher, fetcher Fetcher, notifier Notifier, store Store) *Monitor {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}
	return &Monitor{
		cfg:      cfg,
		matcher:  matcher,
		fetcher:  fetcher,
		notifier: notifier,
		store:    store,
		now:      time.Now,
	}
}

// SetClock overrides the time source for cycle timestamps.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// unit is one fetched text: a note body or a single comment.
type unit struct {
	text   string
	source domain.Source
	id     string
}

// cycle tracks a single run through the state machine.
type cycle struct {
	log    *slog.Logger
	state  State
	result *domain.MonitorResult
}

func (c *cycle) enter(s State) {
	c.log.Debug("Cycle state", "from", c.state, "to", s)
	c.state = s
	c.result.State = string(s)
}

// RunCycle performs one pass: fetch, extract, filter, notify, persist.
// Fetch and notify failures are recorded in the result and never returned.
// An error is returned only when the cycle aborts, which happens when the
// history cannot be saved or ctx is canceled.
func (m *Monitor) RunCycle(ctx context.Context) (*domain.MonitorResult, error) {
	id := uuid.NewString()
	c := &cycle{
		log:   slog.With("cycle", id),
		state: StateIdle,
		result: &domain.MonitorResult{
			CycleID:   id,
			StartedAt: m.now(),
			State:     string(StateIdle),
			NewCodes:  []domain.CodeCandidate{},
			Errors:    []*domain.FetchError{},
		},
	}
	c.log.Info("Cycle started", "user", m.cfg.TargetUserID)

	units, ok := m.fetch(ctx, c)
	if !ok {
		if err := ctx.Err(); err != nil {
			return m.abort(c, err)
		}
		return m.finish(c, resultFetchFailed), nil
	}

	c.enter(StateExtracting)
	var candidates []domain.CodeCandidate
	for _, u := range units {
		candidates = append(candidates, m.matcher.Extract(u.text, u.source, u.id)...)
	}

	// Filter sees every unit at once so that a code repeated across units
	// keeps only its first occurrence.
	c.enter(StateFiltering)
	survivors := detect.Filter(candidates, m.cfg.Denylist)
	fresh := m.store.Diff(survivors)
	c.result.NewCodes = append(c.result.NewCodes, fresh...)
	for _, code := range fresh {
		codesDiscovered.WithLabelValues(string(code.Kind)).Inc()
	}

	for _, r := range m.store.Pending() {
		c.result.Retried = append(c.result.Retried, r.Candidate())
	}

	batch := make([]domain.CodeCandidate, 0, len(fresh)+len(c.result.Retried))
	batch = append(batch, fresh...)
	batch = append(batch, c.result.Retried...)

	if len(batch) > 0 {
		c.enter(StateNotifying)
		c.result.Notified = m.notify(ctx, c, batch)
	}

	c.enter(StatePersisting)
	if err := m.store.Commit(fresh); err != nil {
		return m.abort(c, err)
	}
	if c.result.Notified {
		codes := make([]string, len(batch))
		for i, b := range batch {
			codes[i] = b.Text
		}
		if err := m.store.MarkNotified(codes); err != nil {
			return m.abort(c, err)
		}
	}

	return m.finish(c, resultOK), nil
}

// fetch gathers the note bodies and their comments. It reports false when
// the note list itself is unavailable.
func (m *Monitor) fetch(ctx context.Context, c *cycle) ([]unit, bool) {
	c.enter(StateFetching)

	notesCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	notes, err := m.fetcher.FetchNotes(notesCtx, m.cfg.TargetUserID, m.cfg.MaxNotes)
	cancel()
	if err != nil {
		fe := m.recordFetchError(c, "notes", err)
		if fe.IsAuth() {
			c.log.Warn("Note list is behind a login wall, cookie likely expired", "error", err)
		} else {
			c.log.Warn("Failed to fetch note list", "error", err)
		}
		return nil, false
	}
	if m.cfg.MaxNotes > 0 && len(notes) > m.cfg.MaxNotes {
		notes = notes[:m.cfg.MaxNotes]
	}
	c.result.CheckedNotes = len(notes)

	var units []unit
	for _, note := range notes {
		if ctx.Err() != nil {
			return nil, false
		}

		detailCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
		full, err := m.fetcher.FetchNoteDetail(detailCtx, note)
		cancel()
		if err != nil {
			fe := m.recordFetchError(c, "detail:"+note.ID, err)
			c.log.Warn("Failed to fetch note page, using profile text", "note", note.ID, "kind", fe.KindName(), "error", err)
		} else {
			note = full
		}
		units = append(units, unit{text: note.Body(), source: domain.SourceNote, id: note.ID})

		if ctx.Err() != nil {
			return nil, false
		}
		commentsCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
		comments, err := m.fetcher.FetchComments(commentsCtx, note, m.cfg.MaxComments)
		cancel()
		if err != nil {
			fe := m.recordFetchError(c, "comments:"+note.ID, err)
			c.log.Warn("Failed to fetch comments, skipping note", "note", note.ID, "kind", fe.KindName(), "error", err)
			continue
		}
		if m.cfg.MaxComments > 0 && len(comments) > m.cfg.MaxComments {
			comments = comments[:m.cfg.MaxComments]
		}
		c.result.CheckedComments += len(comments)
		for _, cm := range comments {
			units = append(units, unit{text: cm.Text, source: domain.SourceComment, id: cm.ID})
		}
	}
	return units, true
}

func (m *Monitor) recordFetchError(c *cycle, unitName string, err error) *domain.FetchError {
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		fe = domain.NewNetworkError(unitName, err)
	}
	c.result.Errors = append(c.result.Errors, fe)
	fetchErrors.WithLabelValues(fe.KindName()).Inc()
	return fe
}

func (m *Monitor) notify(ctx context.Context, c *cycle, batch []domain.CodeCandidate) bool {
	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.NotifyTimeout)
	defer cancel()

	if err := m.notifier.Send(sendCtx, batch); err != nil {
		notifications.WithLabelValues("failed").Inc()
		c.log.Error("Notification failed, codes will be retried next cycle",
			"error", &domain.NotifyError{Count: len(batch), Err: err})
		return false
	}
	notifications.WithLabelValues("sent").Inc()
	c.log.Info("Notification sent", "codes", len(batch), "retried", len(c.result.Retried))
	return true
}

func (m *Monitor) finish(c *cycle, outcome string) *domain.MonitorResult {
	c.enter(StateIdle)
	c.result.FinishedAt = m.now()
	cyclesTotal.WithLabelValues(outcome).Inc()
	cycleDuration.Observe(c.result.Duration().Seconds())

	c.log.Info("Cycle finished",
		"notes", c.result.CheckedNotes,
		"comments", c.result.CheckedComments,
		"new", len(c.result.NewCodes),
		"retried", len(c.result.Retried),
		"errors", len(c.result.Errors),
		"notified", c.result.Notified,
		"duration", c.result.Duration())
	return c.result
}

func (m *Monitor) abort(c *cycle, err error) (*domain.MonitorResult, error) {
	c.log.Error("Cycle aborted", "state", c.state, "error", err)
	c.enter(StateAborted)
	c.result.FinishedAt = m.now()
	cyclesTotal.WithLabelValues(resultAborted).Inc()
	cycleDuration.Observe(c.result.Duration().Seconds())
	return c.result, fmt.Errorf("cycle %s aborted: %w", c.result.CycleID, err)
}
