package app

import "github.com/spf13/pflag"

// RegisterFlags registers the flags shared by every subcommand. Flags only
// override settings they are explicitly set for.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "Config file (yaml, json or toml)")
	flags.StringP("target-user-id", "t", "", "Profile id of the account to watch")
	flags.DurationP("interval", "i", 0, "Time between cycles, e.g. 5m")
	flags.Int("max-notes", 0, "Maximum notes checked per cycle")
	flags.Int("max-comments", 0, "Maximum comments checked per note")
	flags.StringP("data-dir", "d", "", "Directory for the history and lock files")
	flags.String("cookies", "", "Cookie header for the platform session")
	flags.Bool("email-enabled", false, "Send new codes by email")
	flags.StringSlice("email-to", nil, "Email recipients (comma-separated)")
	flags.Bool("http-enabled", false, "Serve health, metrics and MCP over HTTP")
	flags.StringP("http-host", "H", "", "Host for the HTTP server")
	flags.IntP("http-port", "p", 0, "Port for the HTTP server")
	flags.StringP("auth-type", "a", "", "HTTP authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")
	flags.String("log-level", "", "Log level: debug, info, warn, or error")
	flags.String("log-format", "", "Log format: text or json")
}
