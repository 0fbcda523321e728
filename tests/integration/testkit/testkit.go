package testkit

import (
	"fmt"
	"net"
	"testing"

	"github.com/spf13/pflag"

	"github.com/sha1n/invitewatch/internal/app"
)

// Service represents a test service that can be started and stopped
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext provides access to properties collected during environment startup
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv manages the lifecycle of test services
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type testEnvContextImpl struct {
	properties map[string]any
}

func (c *testEnvContextImpl) GetProperties() map[string]any {
	return c.properties
}

func (c *testEnvContextImpl) GetProperty(name string) (any, bool) {
	val, ok := c.properties[name]
	return val, ok
}

type testEnvImpl struct {
	services []Service
	context  *testEnvContextImpl
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnvImpl{
		services: services,
		context:  &testEnvContextImpl{properties: make(map[string]any)},
	}
}

// Start starts services in order and merges their properties. Later
// services override earlier ones on key clashes.
func (e *testEnvImpl) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", s.GetName(), err)
		}
		for k, v := range props {
			e.context.properties[k] = v
		}
	}
	return e.context.properties, nil
}

func (e *testEnvImpl) Stop() error {
	var lastErr error
	// Stop in reverse order
	for i := len(e.services) - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *testEnvImpl) GetContext() TestEnvContext {
	return e.context
}

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	return getFreePortWithAddr("localhost:0")
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

func getFreePortWithAddr(addrStr string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", addrStr)
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	DataDir      string // Required
	TargetUserID string // Defaults to PlatformUserID
	Interval     string // Defaults to "1h", so only the immediate cycle runs
	HTTPPort     int    // Uses free port if 0
	AuthType     string // Defaults to "none"
	APIKeys      string // Comma-separated, for apikey auth
}

// NewTestFlags creates a configured pflag.FlagSet for a monitor with the
// HTTP server enabled on localhost.
func NewTestFlags(t testing.TB, opts FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	if opts.DataDir == "" {
		t.Fatal("FlagOptions.DataDir is required")
	}
	if opts.TargetUserID == "" {
		opts.TargetUserID = PlatformUserID
	}
	if opts.Interval == "" {
		opts.Interval = "1h"
	}
	if opts.HTTPPort == 0 {
		opts.HTTPPort = MustGetFreePort(t)
	}
	if opts.AuthType == "" {
		opts.AuthType = "none"
	}

	set := func(name, value string) {
		if err := flags.Set(name, value); err != nil {
			t.Fatalf("Failed to set --%s: %v", name, err)
		}
	}
	set("data-dir", opts.DataDir)
	set("target-user-id", opts.TargetUserID)
	set("interval", opts.Interval)
	set("cookies", "web_session=integration")
	set("http-enabled", "true")
	set("http-host", "localhost")
	set("http-port", fmt.Sprintf("%d", opts.HTTPPort))
	set("auth-type", opts.AuthType)
	if opts.APIKeys != "" {
		set("auth-api-keys", opts.APIKeys)
	}
	set("log-level", "error")

	return flags
}
