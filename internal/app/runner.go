package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sha1n/invitewatch/internal/config"
	"github.com/sha1n/invitewatch/internal/domain"
	"github.com/sha1n/invitewatch/internal/history"
	mcputil "github.com/sha1n/invitewatch/internal/mcp"
	"github.com/sha1n/invitewatch/internal/monitor"
)

// ServerName identifies the MCP server implementation.
const ServerName = "invitewatch"

// RunParams contains dependencies for the run functions
type RunParams struct {
	LoadSettings    func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings   func(*config.Settings) error
	NewService      func(*config.Settings) (*Service, error)
	StartHTTPServer func(context.Context, *http.Server) error
	// CustomIOTransport replaces stdio for the MCP server, for testing.
	CustomIOTransport mcp.Transport
	// Stdout receives command output; LogOutput receives logs.
	Stdout    io.Writer
	LogOutput io.Writer
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:    config.LoadSettingsWithFlags,
		ValidSettings:   config.ValidateSettings,
		NewService:      NewService,
		StartHTTPServer: StartHTTPServer,
		Stdout:          os.Stdout,
		// Always stderr: stdout carries the stdio MCP transport.
		LogOutput: os.Stderr,
	}
}

func prepare(params RunParams, flags *pflag.FlagSet) (*config.Settings, error) {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := params.ValidSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	slog.SetDefault(config.NewLogger(settings.Log, params.LogOutput))
	return settings, nil
}

func openService(params RunParams, settings *config.Settings) (*Service, error) {
	svc, err := params.NewService(settings)
	if IsLocked(err) {
		return nil, fmt.Errorf("another invitewatch instance is running: %w", err)
	}
	return svc, err
}

func closeService(svc *Service) {
	if err := svc.Close(); err != nil {
		slog.Error("Failed to close service", "error", err)
	}
}

// RunWithDeps runs monitor cycles on the configured interval until ctx is
// canceled. When http is enabled it also serves health, metrics, status and
// the MCP history tools.
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := prepare(params, flags)
	if err != nil {
		return err
	}

	slog.Info("Starting invitewatch", "version", version)
	config.Log(settings)

	svc, err := openService(params, settings)
	if err != nil {
		return err
	}
	defer closeService(svc)

	sched, err := monitor.NewScheduler(svc.Monitor, settings.Interval)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			slog.Error("Failed to stop scheduler", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if settings.HTTP.Enabled {
		srv, err := NewHTTPServer(CreateMCPServer(svc.Store, version), sched.Last, settings)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return params.StartHTTPServer(gctx, srv)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	slog.Info("Shutting down")
	return err
}

// RunOnceWithDeps runs a single cycle and prints its result as JSON.
// Fetch and notification failures are reported in the result; only an
// aborted cycle returns an error.
func RunOnceWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet) error {
	settings, err := prepare(params, flags)
	if err != nil {
		return err
	}

	svc, err := openService(params, settings)
	if err != nil {
		return err
	}
	defer closeService(svc)

	result, err := svc.Monitor.RunCycle(ctx)
	if result != nil {
		if encErr := printJSON(params.Stdout, result); encErr != nil {
			return encErr
		}
	}
	return err
}

// ServeWithDeps serves the MCP history tools over stdio. It only reads the
// history file, so it can run next to a monitor process.
func ServeWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := prepare(params, flags)
	if err != nil {
		return err
	}

	slog.Info("Starting MCP server", "version", version, "history", settings.HistoryPath())
	mcpServer := CreateMCPServer(history.NewFileReader(settings.HistoryPath()), version)

	// Use custom transport if provided (for testing), otherwise use stdio
	transport := params.CustomIOTransport
	if transport == nil {
		transport = &mcp.StdioTransport{}
	}
	return mcpServer.Run(ctx, transport)
}

// HistoryWithDeps prints recorded codes as JSON, newest first.
func HistoryWithDeps(params RunParams, flags *pflag.FlagSet, pendingOnly bool) error {
	settings, err := prepare(params, flags)
	if err != nil {
		return err
	}

	records, err := history.NewFileReader(settings.HistoryPath()).Snapshot()
	if err != nil {
		return err
	}

	out := make([]domain.HistoryRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if pendingOnly && records[i].Notified {
			continue
		}
		out = append(out, records[i])
	}
	return printJSON(params.Stdout, out)
}

// CreateMCPServer creates the MCP server with the history tools registered
func CreateMCPServer(r history.Reader, version string) *mcp.Server {
	return mcputil.CreateServer(mcputil.ServerConfig{
		Name:    ServerName,
		Version: version,
		History: r,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
