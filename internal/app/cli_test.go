package app

import (
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/sha1n/invitewatch/internal/config"
)

func TestRegisterFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	shorthandFlags := map[string]string{
		"config":              "c",
		"target-user-id":      "t",
		"interval":            "i",
		"data-dir":            "d",
		"http-host":           "H",
		"http-port":           "p",
		"auth-type":           "a",
		"auth-basic-username": "u",
		"auth-basic-password": "P",
		"auth-api-keys":       "k",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Flag %q not found", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("Flag %q expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

func TestRegisterFlags_FlowIntoSettings(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	err := flags.Parse([]string{
		"-t", "someone",
		"--interval", "90s",
		"--max-notes", "4",
		"--max-comments", "8",
		"--cookies", "web_session=x",
		"--email-to", "a@example.com,b@example.com",
		"--http-enabled",
		"-p", "9191",
		"--log-level", "debug",
	})
	if err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.TargetUserID != "someone" {
		t.Errorf("Expected target 'someone', got %q", settings.TargetUserID)
	}
	if settings.Interval != 90*time.Second {
		t.Errorf("Expected interval 90s, got %s", settings.Interval)
	}
	if settings.MaxNotes != 4 || settings.MaxComments != 8 {
		t.Errorf("Unexpected limits %d/%d", settings.MaxNotes, settings.MaxComments)
	}
	if settings.Fetch.Cookies != "web_session=x" {
		t.Errorf("Unexpected cookies %q", settings.Fetch.Cookies)
	}
	if len(settings.Email.To) != 2 {
		t.Errorf("Unexpected recipients %v", settings.Email.To)
	}
	if !settings.HTTP.Enabled || settings.HTTP.Port != 9191 {
		t.Errorf("Unexpected http settings %+v", settings.HTTP)
	}
	if settings.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", settings.Log.Level)
	}
}

func TestRegisterFlags_UnsetFlagsKeepDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Parse(nil); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if settings.Interval != 5*time.Minute {
		t.Errorf("Zero-valued flags must not override defaults, got interval %s", settings.Interval)
	}
	if settings.HTTP.Port != 9095 {
		t.Errorf("Expected default port 9095, got %d", settings.HTTP.Port)
	}
}
