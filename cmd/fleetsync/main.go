// Package main provides the fleetsync CLI: a local vehicle/note catalog
// that syncs bidirectionally with a shared remote store.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fleetsync/internal/remote"
	"github.com/mesh-intelligence/fleetsync/pkg/engine"
)

var (
	// configDir is set by the --config-dir flag.
	configDir string

	// verbose enables debug logging.
	verbose bool

	// svc is the global service instance, initialized on startup.
	svc *engine.Service
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetsync",
	Short: "Fleetsync is a synced vehicle catalog",
	Long: `Fleetsync manages a local catalog of cars, trucks and buses with
attached notes, and keeps it in sync with a shared remote store. Point two
working directories at the same remote file to simulate two devices on one
account.`,
	SilenceUsage:      true,
	PersistentPreRunE: initService,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeService()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default: .fleetsync)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("fleetsync v0.1.0")
	},
}

// initService loads config, opens the service and installs the
// account-unavailable prompt.
func initService(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	log := newLogger(verbose)
	cfg, err := loadConfig(resolveConfigDir())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, err = engine.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("open service: %w", err)
	}
	svc.Sync.OnUnavailable(func(status remote.Availability) {
		color.Yellow("Remote account is %s; syncing is disabled until it recovers.", status)
		color.Yellow("Your data stays on this device and syncs once the account is back.")
	})
	return nil
}

// closeService persists the remote snapshot and releases resources.
func closeService() error {
	if svc != nil {
		return svc.Close()
	}
	return nil
}

// newLogger builds the CLI logger: debug to stderr when verbose, warnings
// and up otherwise.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveConfigDir returns the config directory from flag, env, or default.
func resolveConfigDir() string {
	if configDir != "" {
		return configDir
	}
	if v := os.Getenv("FLEETSYNC_CONFIG_DIR"); v != "" {
		return v
	}
	return ".fleetsync"
}
