package monitor

import (
	"context"
	"sync"

	"github.com/sha1n/invitewatch/internal/domain"
)

// MockFetcher serves configured notes and comments.
// This is exported for use by other packages' tests.
type MockFetcher struct {
	Notes    []domain.Note
	NotesErr error
	// Comments maps a note ID to its comments.
	Comments map[string][]domain.Comment
	// CommentErrs maps a note ID to the error its comment fetch returns.
	CommentErrs map[string]error
	// Details maps a note ID to the full text its note page carries. Notes
	// without an entry are returned unchanged.
	Details map[string]string
	// DetailErrs maps a note ID to the error its note page fetch returns.
	DetailErrs map[string]error

	mu           sync.Mutex
	noteCalls    int
	detailCalls  []string
	commentCalls []string
}

// NewMockFetcher creates an empty mock fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Comments:    make(map[string][]domain.Comment),
		CommentErrs: make(map[string]error),
		Details:     make(map[string]string),
		DetailErrs:  make(map[string]error),
	}
}

// AddNote adds a note with its comments.
func (f *MockFetcher) AddNote(note domain.Note, comments ...domain.Comment) {
	f.Notes = append(f.Notes, note)
	f.Comments[note.ID] = comments
}

// FetchNotes implements Fetcher.
func (f *MockFetcher) FetchNotes(_ context.Context, _ string, max int) ([]domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteCalls++

	if f.NotesErr != nil {
		return nil, f.NotesErr
	}
	if max > 0 && len(f.Notes) > max {
		return f.Notes[:max], nil
	}
	return f.Notes, nil
}

// FetchNoteDetail implements Fetcher.
func (f *MockFetcher) FetchNoteDetail(_ context.Context, note domain.Note) (domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls = append(f.detailCalls, note.ID)

	if err := f.DetailErrs[note.ID]; err != nil {
		return note, err
	}
	if text, ok := f.Details[note.ID]; ok {
		note.Text = text
	}
	return note, nil
}

// FetchComments implements Fetcher.
func (f *MockFetcher) FetchComments(_ context.Context, note domain.Note, _ int) ([]domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentCalls = append(f.commentCalls, note.ID)

	if err := f.CommentErrs[note.ID]; err != nil {
		return nil, err
	}
	return f.Comments[note.ID], nil
}

// NoteCalls returns how many times FetchNotes was called.
func (f *MockFetcher) NoteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.noteCalls
}

// DetailCalls returns the note IDs FetchNoteDetail was called with.
func (f *MockFetcher) DetailCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.detailCalls...)
}

// CommentCalls returns the note IDs FetchComments was called with.
func (f *MockFetcher) CommentCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commentCalls...)
}

// MockNotifier records every batch it is asked to send.
type MockNotifier struct {
	// Err, when set, is returned from Send and the batch is still recorded.
	Err error

	mu      sync.Mutex
	batches [][]domain.CodeCandidate
}

// NewMockNotifier creates a mock notifier that always succeeds.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send implements Notifier.
func (n *MockNotifier) Send(_ context.Context, codes []domain.CodeCandidate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, append([]domain.CodeCandidate(nil), codes...))
	return n.Err
}

// SetErr changes the error returned by subsequent sends.
func (n *MockNotifier) SetErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Err = err
}

// Batches returns every recorded batch.
func (n *MockNotifier) Batches() [][]domain.CodeCandidate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]domain.CodeCandidate(nil), n.batches...)
}

// SentCodes returns the texts of every code sent, in order.
func (n *MockNotifier) SentCodes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, b := range n.batches {
		for _, c := range b {
			out = append(out, c.Text)
		}
	}
	return out
}
