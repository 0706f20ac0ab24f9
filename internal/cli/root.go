package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"learnsync/internal/config"
	"learnsync/internal/engine"
	"learnsync/internal/format"
	"learnsync/internal/logging"

	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	PrettyJSON bool
	Format     string

	cfg *config.Config
	// engineOptions is handed to engine.New; tests swap in fakes here.
	engineOptions engine.Options
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "learnsync",
		Short:        "Local-first learning portal client",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Sign in and pull everything
  learnsync login --username 2023010001 --password-stdin
  learnsync sync

  # What is new
  learnsync notices list --view unread --format text

  # Search across notices, assignments and files (shortcut for: learnsync search midterm)
  learnsync /midterm
`),
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("LEARNSYNC_CONFIG_DIR", ""), "Config and data dir (default ~/.learnsync)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("LEARNSYNC_FORMAT", "json"), "Output format (json|edn|text)")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newSSOCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newStatusCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newCoursesCmd(app))
	cmd.AddCommand(newSemestersCmd(app))
	cmd.AddCommand(newNoticesCmd(app))
	cmd.AddCommand(newAssignmentsCmd(app))
	cmd.AddCommand(newFilesCmd(app))
	cmd.AddCommand(newFlagCmd(app))
	cmd.AddCommand(newReadAllCmd(app))
	cmd.AddCommand(newSearchCmd(app))
	cmd.AddCommand(newSettingsCmd(app))
	cmd.AddCommand(newSubmitCmd(app))

	return cmd
}

// openEngine loads config from app.Dir and restores saved state.
func openEngine(cmd *cobra.Command, app *App) (*engine.Engine, error) {
	dir := app.Dir
	if dir == "" {
		d, err := config.Dir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	app.cfg = cfg

	opts := app.engineOptions
	if opts.Logger == nil {
		opts.Logger = logging.New(logging.Options{
			File:    cfg.LogFile,
			Level:   cfg.LogLevel,
			Console: cmd.ErrOrStderr(),
		}).Named("learnsync")
	}
	return engine.New(cmd.Context(), cfg, opts)
}

// withEngine runs fn against a freshly opened engine and closes it after,
// flushing pending writes.
func withEngine(app *App, fn func(cmd *cobra.Command, args []string, e *engine.Engine) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd, app)
		if err != nil {
			return writeErr(cmd, err)
		}
		runErr := fn(cmd, args, e)
		closeErr := e.Close(context.WithoutCancel(cmd.Context()))
		if runErr != nil {
			return writeErr(cmd, withHint(runErr))
		}
		if closeErr != nil {
			return writeErr(cmd, fmt.Errorf("save state: %w", closeErr))
		}
		return nil
	}
}

func (app *App) now() time.Time {
	if app.engineOptions.Now != nil {
		return app.engineOptions.Now()
	}
	return time.Now()
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), map[string]any{"data": v}, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
