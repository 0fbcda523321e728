package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sha1n/invitewatch/internal/detect"
	"github.com/sha1n/invitewatch/internal/history"
)

// EnvPrefix prefixes every environment variable, e.g. INVITEWATCH_FETCH_COOKIES.
const EnvPrefix = "INVITEWATCH"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DetectSettings configures code extraction and filtering.
type DetectSettings struct {
	Keywords        []string `mapstructure:"keywords"`
	Denylist        []string `mapstructure:"denylist"`
	NumericPrefixes []string `mapstructure:"numeric_prefixes"`
	AlnumPrefixes   []string `mapstructure:"alnum_prefixes"`
	KeywordWindow   int      `mapstructure:"keyword_window"`
}

// FetchSettings configures access to the social platform.
type FetchSettings struct {
	BaseURL       string            `mapstructure:"base_url"`
	APIURL        string            `mapstructure:"api_url"`
	Cookies       string            `mapstructure:"cookies"`
	UserAgent     string            `mapstructure:"user_agent"`
	Headers       map[string]string `mapstructure:"headers"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	Rate          float64           `mapstructure:"rate"`
	MinPageLength int               `mapstructure:"min_page_length"`
}

// EmailSettings configures SMTP delivery.
type EmailSettings struct {
	Enabled  bool          `mapstructure:"enabled"`
	SMTPHost string        `mapstructure:"smtp_host"`
	SMTPPort int           `mapstructure:"smtp_port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	To       []string      `mapstructure:"to"`
	SSL      bool          `mapstructure:"ssl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// HTTPSettings configures the optional HTTP server (health, metrics, MCP over SSE).
type HTTPSettings struct {
	Enabled bool         `mapstructure:"enabled"`
	Host    string       `mapstructure:"host"`
	Port    int          `mapstructure:"port"`
	Auth    AuthSettings `mapstructure:"auth"`
}

// HistorySettings configures the history store.
type HistorySettings struct {
	WriteRetries uint `mapstructure:"write_retries"`
}

// LogSettings configures the process logger.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Settings application settings
type Settings struct {
	TargetUserID string          `mapstructure:"target_user_id"`
	Interval     time.Duration   `mapstructure:"interval"`
	MaxNotes     int             `mapstructure:"max_notes"`
	MaxComments  int             `mapstructure:"max_comments"`
	DataDir      string          `mapstructure:"data_dir"`
	Detect       DetectSettings  `mapstructure:"detect"`
	Fetch        FetchSettings   `mapstructure:"fetch"`
	Email        EmailSettings   `mapstructure:"email"`
	HTTP         HTTPSettings    `mapstructure:"http"`
	History      HistorySettings `mapstructure:"history"`
	Log          LogSettings     `mapstructure:"log"`
}

// HistoryPath returns the history file inside the data directory.
func (s *Settings) HistoryPath() string {
	return filepath.Join(s.DataDir, history.DefaultFilename)
}

// LockPath returns the instance lock file inside the data directory.
func (s *Settings) LockPath() string {
	return filepath.Join(s.DataDir, history.LockFilename)
}

// flagBindings maps setting keys to CLI flag names.
var flagBindings = map[string]string{
	"target_user_id":           "target-user-id",
	"interval":                 "interval",
	"max_notes":                "max-notes",
	"max_comments":             "max-comments",
	"data_dir":                 "data-dir",
	"fetch.cookies":            "cookies",
	"email.enabled":            "email-enabled",
	"email.to":                 "email-to",
	"http.enabled":             "http-enabled",
	"http.host":                "http-host",
	"http.port":                "http-port",
	"http.auth.type":           "auth-type",
	"http.auth.basic.username": "auth-basic-username",
	"http.auth.basic.password": "auth-basic-password",
	"http.auth.api_keys":       "auth-api-keys",
	"log.level":                "log-level",
	"log.format":               "log-format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target_user_id", "58953dcb3460945280efcf7b")
	v.SetDefault("interval", 5*time.Minute)
	v.SetDefault("max_notes", 20)
	v.SetDefault("max_comments", 50)
	v.SetDefault("data_dir", defaultDataDir())

	v.SetDefault("detect.keywords", detect.DefaultKeywords)
	v.SetDefault("detect.denylist", detect.DefaultDenylist)
	v.SetDefault("detect.numeric_prefixes", detect.DefaultNumericPrefixes)
	v.SetDefault("detect.alnum_prefixes", detect.DefaultAlnumPrefixes)
	v.SetDefault("detect.keyword_window", detect.DefaultKeywordWindow)

	v.SetDefault("fetch.base_url", "https://www.xiaohongshu.com")
	v.SetDefault("fetch.api_url", "https://edith.xiaohongshu.com")
	v.SetDefault("fetch.cookies", "")
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.headers", map[string]string{})
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.rate", 1.0)
	v.SetDefault("fetch.min_page_length", 2048)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 465)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", []string{})
	v.SetDefault("email.ssl", true)
	v.SetDefault("email.timeout", 30*time.Second)

	v.SetDefault("http.enabled", false)
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 9095)
	v.SetDefault("http.auth.type", AuthTypeNone)
	v.SetDefault("http.auth.basic.username", "")
	v.SetDefault("http.auth.basic.password", "")
	v.SetDefault("http.auth.api_keys", []string{})

	v.SetDefault("history.write_retries", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables (including a ./.env file) >
// config file (--config or INVITEWATCH_CONFIG) > defaults.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	// Variables already set in the environment win over .env.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}

	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	configFile := os.Getenv(EnvPrefix + "_CONFIG")
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			configFile = f.Value.String()
		}
	}
	if configFile != "" {
		v.SetConfigFile(expandHomeDir(configFile))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.Detect.Keywords = cleanList(settings.Detect.Keywords)
	settings.Detect.Denylist = cleanList(settings.Detect.Denylist)
	settings.Detect.NumericPrefixes = cleanList(settings.Detect.NumericPrefixes)
	settings.Detect.AlnumPrefixes = cleanList(settings.Detect.AlnumPrefixes)
	settings.Email.To = cleanList(settings.Email.To)
	settings.HTTP.Auth.APIKeys = cleanList(settings.HTTP.Auth.APIKeys)

	settings.DataDir = expandHomeDir(settings.DataDir)

	return &settings, nil
}

// defaultDataDir returns the default directory for history and the lock file
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".invitewatch"
	}
	return filepath.Join(home, ".invitewatch")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// cleanList splits comma-joined entries, trims spaces and drops empty ones.
func cleanList(s []string) []string {
	result := []string{}
	for _, item := range s {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

// ValidateSettings checks for missing or conflicting configuration.
func ValidateSettings(s *Settings) error {
	if strings.TrimSpace(s.TargetUserID) == "" {
		return errors.New("target-user-id cannot be empty")
	}
	if s.Interval < time.Second {
		return errors.New("interval must be at least 1s, got: " + s.Interval.String())
	}
	if s.MaxNotes <= 0 {
		return errors.New("max-notes must be positive")
	}
	if s.MaxComments < 0 {
		return errors.New("max-comments cannot be negative")
	}
	if s.DataDir == "" {
		return errors.New("data-dir cannot be empty")
	}
	if s.Detect.KeywordWindow <= 0 {
		return errors.New("detect.keyword_window must be positive")
	}
	if s.History.WriteRetries == 0 {
		return errors.New("history.write_retries must be at least 1")
	}

	if err := validateFetchSettings(&s.Fetch); err != nil {
		return err
	}
	if err := validateEmailSettings(&s.Email); err != nil {
		return err
	}
	if err := validateHTTPSettings(&s.HTTP); err != nil {
		return err
	}
	return validateLogSettings(&s.Log)
}

func validateFetchSettings(f *FetchSettings) error {
	for name, raw := range map[string]string{"fetch.base_url": f.BaseURL, "fetch.api_url": f.APIURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an http(s) URL, got: %q", name, raw)
		}
	}
	if f.Timeout <= 0 {
		return errors.New("fetch.timeout must be positive")
	}
	if f.Rate < 0 {
		return errors.New("fetch.rate cannot be negative")
	}
	if f.MinPageLength < 0 {
		return errors.New("fetch.min_page_length cannot be negative")
	}
	return nil
}

func validateEmailSettings(e *EmailSettings) error {
	if !e.Enabled {
		return nil // No validation needed when disabled
	}
	if e.SMTPHost == "" {
		return errors.New("email-enabled requires email.smtp_host")
	}
	if e.SMTPPort <= 0 || e.SMTPPort > 65535 {
		return fmt.Errorf("email.smtp_port out of range: %d", e.SMTPPort)
	}
	if e.From == "" {
		return errors.New("email-enabled requires email.from")
	}
	if len(e.To) == 0 {
		return errors.New("email-enabled requires at least one recipient (email-to)")
	}
	if e.Username != "" && e.Password == "" {
		return errors.New("email.username requires email.password")
	}
	if e.Timeout <= 0 {
		return errors.New("email.timeout must be positive")
	}
	return nil
}

func validateHTTPSettings(h *HTTPSettings) error {
	if h.Enabled && (h.Port <= 0 || h.Port > 65535) {
		return fmt.Errorf("http-port out of range: %d", h.Port)
	}
	return validateAuthSettings(&h.Auth)
}

func validateAuthSettings(a *AuthSettings) error {
	hasBasicCreds := a.Basic.Username != "" || a.Basic.Password != ""
	hasAPIKeys := len(a.APIKeys) > 0

	switch a.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if a.Basic.Username == "" || a.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + a.Type)
	}
	return nil
}

func validateLogSettings(l *LogSettings) error {
	if _, err := ParseLevel(l.Level); err != nil {
		return err
	}
	switch l.Format {
	case "text", "json":
		return nil
	default:
		return errors.New("log-format must be 'text' or 'json', got: " + l.Format)
	}
}
