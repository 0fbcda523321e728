package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestExecute_Version(t *testing.T) {
	err := Execute("1.0.0", "abc123", "invitewatch", []string{"--version"})
	if err != nil {
		t.Errorf("Expected no error for --version, got: %v", err)
	}
}

func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"run", "--help"}, {"history", "--help"}} {
		if err := Execute("1.0.0", "abc123", "invitewatch", args); err != nil {
			t.Errorf("Expected no error for %v, got: %v", args, err)
		}
	}
}

func TestExecute_InvalidFlag(t *testing.T) {
	err := Execute("1.0.0", "abc123", "invitewatch", []string{"run", "--invalid-flag"})
	if err == nil {
		t.Error("Expected error for invalid flag")
	}
}

func TestExecute_UnexpectedArgument(t *testing.T) {
	err := Execute("1.0.0", "abc123", "invitewatch", []string{"once", "extra"})
	if err == nil {
		t.Error("Expected error for positional argument")
	}
}

func TestExecute_InvalidConfiguration(t *testing.T) {
	err := Execute("1.0.0", "abc123", "invitewatch", []string{"once", "--interval", "10ms"})
	if err == nil {
		t.Fatal("Expected error for a too short interval")
	}
	if !strings.Contains(err.Error(), "interval") {
		t.Errorf("Expected error about interval, got: %v", err)
	}
}

func TestExecute_InvalidAuthType(t *testing.T) {
	err := Execute("1.0.0", "abc123", "invitewatch", []string{"run", "--auth-type", "oauth"})
	if err == nil || !strings.Contains(err.Error(), "auth-type") {
		t.Errorf("Expected error about auth-type, got: %v", err)
	}
}

func TestExecute_HistoryEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	err := Execute("1.0.0", "abc123", "invitewatch", []string{"history", "--data-dir", dir, "--pending"})
	if err != nil {
		t.Errorf("Expected empty history to succeed, got: %v", err)
	}
}

func TestRunMain_Success(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	// --help should succeed
	runMain([]string{"invitewatch", "--help"}, mockExit)

	if exitCode != -1 {
		t.Errorf("Expected no exit call for --help, got exit code: %d", exitCode)
	}
}

func TestRunMain_Failure(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	runMain([]string{"invitewatch", "--invalid"}, mockExit)

	if exitCode != 1 {
		t.Errorf("Expected exit code 1 for invalid flag, got: %d", exitCode)
	}
}
