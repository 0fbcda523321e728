package history

import (
	"errors"
	"os"

	"github.com/sha1n/invitewatch/internal/domain"
)

// Reader provides a point-in-time view of the history.
type Reader interface {
	Snapshot() ([]domain.HistoryRecord, error)
}

// FileReader reads the history file on every call. It never writes, so it
// can serve a process that does not own the instance lock.
type FileReader struct {
	path string
}

// NewFileReader returns a reader over the history file at path.
func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

// Snapshot returns the records currently on disk, oldest first.
// A missing file is an empty history.
func (r *FileReader) Snapshot() ([]domain.HistoryRecord, error) {
	doc, err := readDocument(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.HistoryRecord{}, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Path: r.path, Err: err}
	}

	out := make([]domain.HistoryRecord, 0, len(doc.Records))
	for _, rec := range doc.Records {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}
