package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sha1n/invitewatch/internal/app"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "invitewatch"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Invite code monitor",
		Long: "Watches a social account's notes and comments for invite codes and " +
			"emails every code it has not reported before.",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(`{{.Version}}
`)
	app.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run detection cycles on the configured interval",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, stop := signalContext()
				defer stop()
				return app.RunWithDeps(ctx, app.DefaultRunParams(), cmd.Flags(), version)
			},
		},
		&cobra.Command{
			Use:   "once",
			Short: "Run a single detection cycle and print its result",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, stop := signalContext()
				defer stop()
				return app.RunOnceWithDeps(ctx, app.DefaultRunParams(), cmd.Flags())
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the code history to MCP clients over stdio",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, stop := signalContext()
				defer stop()
				return app.ServeWithDeps(ctx, app.DefaultRunParams(), cmd.Flags(), version)
			},
		},
		historyCommand(),
	)

	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func historyCommand() *cobra.Command {
	var pendingOnly bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded codes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.HistoryWithDeps(app.DefaultRunParams(), cmd.Flags(), pendingOnly)
		},
	}
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only codes whose notification was not delivered")
	return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
