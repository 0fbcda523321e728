package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrAuth indicates the fetched content is a login wall, usually because
	// the configured cookies expired.
	ErrAuth = errors.New("authentication wall")

	// ErrNetwork indicates a transport failure, timeout or unexpected status.
	ErrNetwork = errors.New("network failure")
)

// FetchError is a recoverable failure to fetch one unit: the note list, a
// note page, or the comments of a single note.
type FetchError struct {
	// Kind is ErrAuth or ErrNetwork.
	Kind error
	// Unit identifies what was being fetched, e.g. "notes", "detail:<note id>"
	// or "comments:<note id>".
	Unit string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %v", e.Unit, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %v: %v", e.Unit, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsAuth reports whether the failure was a login wall.
func (e *FetchError) IsAuth() bool {
	return errors.Is(e.Kind, ErrAuth)
}

// KindName returns a short label for logs and metrics.
func (e *FetchError) KindName() string {
	if e.IsAuth() {
		return "auth"
	}
	return "network"
}

type fetchErrorJSON struct {
	Unit    string `json:"unit"`
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON encodes the error as {unit, kind, message}, kind being
// "auth" or "network".
func (e *FetchError) MarshalJSON() ([]byte, error) {
	v := fetchErrorJSON{Unit: e.Unit, Kind: e.KindName()}
	if e.Err != nil {
		v.Message = e.Err.Error()
	}
	return json.Marshal(v)
}

// UnmarshalJSON restores an error written by MarshalJSON. The cause is kept
// as its message only.
func (e *FetchError) UnmarshalJSON(data []byte) error {
	var v fetchErrorJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	e.Unit = v.Unit
	e.Kind = ErrNetwork
	if v.Kind == "auth" {
		e.Kind = ErrAuth
	}
	e.Err = nil
	if v.Message != "" {
		e.Err = errors.New(v.Message)
	}
	return nil
}

// NewAuthError builds a FetchError of kind ErrAuth.
func NewAuthError(unit string, err error) *FetchError {
	return &FetchError{Kind: ErrAuth, Unit: unit, Err: err}
}

// NewNetworkError builds a FetchError of kind ErrNetwork.
func NewNetworkError(unit string, err error) *FetchError {
	return &FetchError{Kind: ErrNetwork, Unit: unit, Err: err}
}

// PersistenceError reports a failure to load or save history.
// Load failures are recoverable; save failures abort the current cycle.
type PersistenceError struct {
	Op   string // "load" or "save"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotifyError reports a failed delivery of a batch of codes.
type NotifyError struct {
	Count int
	Err   error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify %d code(s): %v", e.Count, e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}
