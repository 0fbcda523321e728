package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sha1n/invitewatch/internal/auth"
	"github.com/sha1n/invitewatch/internal/config"
	"github.com/sha1n/invitewatch/internal/domain"
)

const shutdownTimeout = 5 * time.Second

// StatusFunc returns the most recent cycle result, or nil before the first one.
type StatusFunc func() *domain.MonitorResult

type statusResponse struct {
	*domain.MonitorResult
	DurationMS int64 `json:"duration_ms"`
}

// StartHTTPServer serves srv until ctx is canceled, then shuts it down gracefully.
func StartHTTPServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening (HTTP)", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewHTTPServer creates the HTTP server: health and metrics for probes and
// scrapers, the last cycle status, and the MCP history tools over SSE.
func NewHTTPServer(s *mcp.Server, status StatusFunc, settings *config.Settings) (*http.Server, error) {
	// Factory function returns the server instance for each request
	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s
	}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", statusHandler(status))
	mux.Handle("/sse", sseHandler)

	authMiddleware, err := auth.NewMiddleware(settings.HTTP.Auth, auth.PublicPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", settings.HTTP.Host, settings.HTTP.Port),
		Handler:           authMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func statusHandler(status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last := status()
		if last == nil {
			http.Error(w, "no cycle has completed yet", http.StatusServiceUnavailable)
			return
		}

		resp := statusResponse{MonitorResult: last, DurationMS: last.Duration().Milliseconds()}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "Failed to encode status", "error", err)
		}
	}
}
