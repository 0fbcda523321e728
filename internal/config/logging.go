package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const masked = "****"

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log-level: %s", name)
	}
}

// NewLogger builds the process logger. Output always goes to w, which is
// stderr in practice so stdout stays free for the stdio MCP transport.
func NewLogger(s LogSettings, w io.Writer) *slog.Logger {
	level, _ := ParseLevel(s.Level)
	opts := &slog.HandlerOptions{Level: level}
	if s.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: target_user_id", "value", s.TargetUserID)
	logger.InfoContext(ctx, "Config: interval", "value", s.Interval)
	logger.InfoContext(ctx, "Config: limits", "max_notes", s.MaxNotes, "max_comments", s.MaxComments)
	logger.InfoContext(ctx, "Config: data_dir", "value", s.DataDir)
	logger.InfoContext(ctx, "Config: detect", "keywords", len(s.Detect.Keywords), "denylist", len(s.Detect.Denylist))
	logger.InfoContext(ctx, "Config: fetch", "base_url", s.Fetch.BaseURL, "rate", s.Fetch.Rate)
	logger.InfoContext(ctx, "Config: fetch.cookies", "value", maskIfSet(s.Fetch.Cookies))

	logger.InfoContext(ctx, "Config: email.enabled", "value", s.Email.Enabled)
	if s.Email.Enabled {
		logger.InfoContext(ctx, "Config: email", "smtp_host", s.Email.SMTPHost, "smtp_port", s.Email.SMTPPort,
			"from", s.Email.From, "to", s.Email.To, "ssl", s.Email.SSL)
		if s.Email.Username != "" {
			logger.InfoContext(ctx, "Config: email.username", "value", s.Email.Username)
			logger.InfoContext(ctx, "Config: email.password", "value", masked)
		}
	}

	logger.InfoContext(ctx, "Config: http.enabled", "value", s.HTTP.Enabled)
	if !s.HTTP.Enabled {
		return
	}
	logger.InfoContext(ctx, "Config: http.host", "value", s.HTTP.Host)
	logger.InfoContext(ctx, "Config: http.port", "value", s.HTTP.Port)
	logger.InfoContext(ctx, "Config: http.auth.type", "value", s.HTTP.Auth.Type)
	switch s.HTTP.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: http.auth.basic.username", "value", s.HTTP.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: http.auth.basic.password", "value", masked)
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: http.auth.api_keys", "count", len(s.HTTP.Auth.APIKeys))
	}
}

func maskIfSet(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	return masked
}

// LogValue implements slog.LogValuer with masked credentials.
func (s AuthSettings) LogValue() slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = masked
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", s.Basic),
		slog.Any("api_keys", keys),
	)
}

// LogValue implements slog.LogValuer with a masked password.
func (s BasicAuthSettings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", masked),
	)
}

// LogValue implements slog.LogValuer with masked cookies.
func (s FetchSettings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", s.BaseURL),
		slog.String("api_url", s.APIURL),
		slog.String("cookies", maskIfSet(s.Cookies)),
		slog.Duration("timeout", s.Timeout),
		slog.Float64("rate", s.Rate),
	)
}

// LogValue implements slog.LogValuer with a masked password.
func (s EmailSettings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", s.Enabled),
		slog.String("smtp_host", s.SMTPHost),
		slog.Int("smtp_port", s.SMTPPort),
		slog.String("username", s.Username),
		slog.String("password", maskIfSet(s.Password)),
		slog.String("from", s.From),
		slog.Any("to", s.To),
	)
}
