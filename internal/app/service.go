package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sha1n/invitewatch/internal/config"
	"github.com/sha1n/invitewatch/internal/detect"
	"github.com/sha1n/invitewatch/internal/fetch"
	"github.com/sha1n/invitewatch/internal/history"
	"github.com/sha1n/invitewatch/internal/monitor"
	"github.com/sha1n/invitewatch/internal/notify"
)

// defaultNotifyTimeout bounds the log notifier, which has no timeout setting.
const defaultNotifyTimeout = 30 * time.Second

// Service owns the monitor stack of one data directory: the instance lock,
// the history store and the monitor wired to its fetcher and notifier.
type Service struct {
	Settings *config.Settings
	Store    *history.Store
	Monitor  *monitor.Monitor

	lock *history.InstanceLock
}

// NewService takes the data directory lock and wires the monitor. It fails
// with history.ErrLocked when another process owns the directory.
func NewService(settings *config.Settings) (*Service, error) {
	lock := history.NewInstanceLock(settings.LockPath())
	if err := lock.Acquire(); err != nil {
		return nil, err
	}

	svc, err := newService(settings, lock)
	if err != nil {
		if releaseErr := lock.Release(); releaseErr != nil {
			slog.Error("Failed to release instance lock", "path", lock.Path(), "error", releaseErr)
		}
		return nil, err
	}
	return svc, nil
}

func newService(settings *config.Settings, lock *history.InstanceLock) (*Service, error) {
	store, err := history.Open(settings.HistoryPath(), history.WithWriteTries(settings.History.WriteRetries))
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	slog.Info("History loaded", "path", store.Path(), "records", store.Len(), "pending", len(store.Pending()))

	fetcher, err := NewFetcher(settings)
	if err != nil {
		return nil, err
	}
	notifier, notifyTimeout, err := NewNotifier(settings)
	if err != nil {
		return nil, err
	}

	mon := monitor.New(monitor.Config{
		TargetUserID:  settings.TargetUserID,
		MaxNotes:      settings.MaxNotes,
		MaxComments:   settings.MaxComments,
		FetchTimeout:  settings.Fetch.Timeout,
		NotifyTimeout: notifyTimeout,
		Denylist:      detect.NewDenylist(settings.Detect.Denylist...),
	}, NewMatcher(settings), fetcher, notifier, store)

	return &Service{
		Settings: settings,
		Store:    store,
		Monitor:  mon,
		lock:     lock,
	}, nil
}

// Close releases the data directory lock.
func (s *Service) Close() error {
	if s.lock == nil {
		return nil
	}
	if err := s.lock.Release(); err != nil {
		return fmt.Errorf("failed to release %s: %w", s.lock.Path(), err)
	}
	return nil
}

// NewMatcher builds the pattern matcher from the detect settings.
func NewMatcher(settings *config.Settings) *detect.Matcher {
	return detect.NewMatcher(detect.Options{
		Keywords:        settings.Detect.Keywords,
		NumericPrefixes: settings.Detect.NumericPrefixes,
		AlnumPrefixes:   settings.Detect.AlnumPrefixes,
		KeywordWindow:   settings.Detect.KeywordWindow,
	})
}

// NewFetcher builds the HTTP fetch client. Missing cookies are allowed but
// the platform usually answers with a login wall without them.
func NewFetcher(settings *config.Settings) (*fetch.Client, error) {
	if settings.Fetch.Cookies == "" {
		slog.Warn("No fetch cookies configured, the profile page will likely require login")
	}
	client, err := fetch.New(fetch.Options{
		BaseURL:       settings.Fetch.BaseURL,
		APIURL:        settings.Fetch.APIURL,
		Cookies:       settings.Fetch.Cookies,
		UserAgent:     settings.Fetch.UserAgent,
		Headers:       settings.Fetch.Headers,
		Timeout:       settings.Fetch.Timeout,
		Rate:          settings.Fetch.Rate,
		MinPageLength: settings.Fetch.MinPageLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}
	return client, nil
}

// NewNotifier returns the email notifier when email is enabled and the log
// notifier otherwise, along with the timeout for one delivery.
func NewNotifier(settings *config.Settings) (monitor.Notifier, time.Duration, error) {
	if !settings.Email.Enabled {
		slog.Info("Email disabled, new codes will only be logged")
		return notify.NewLog(slog.Default()), defaultNotifyTimeout, nil
	}

	email, err := notify.NewEmail(notify.EmailConfig{
		Host:     settings.Email.SMTPHost,
		Port:     settings.Email.SMTPPort,
		Username: settings.Email.Username,
		Password: settings.Email.Password,
		From:     settings.Email.From,
		To:       settings.Email.To,
		SSL:      settings.Email.SSL,
		Timeout:  settings.Email.Timeout,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create email notifier: %w", err)
	}
	return email, settings.Email.Timeout, nil
}

// IsLocked reports whether err means another process owns the data directory.
func IsLocked(err error) bool {
	return errors.Is(err, history.ErrLocked)
}
