// Command dispatch runs the invoice notification jobs once, either in-process
// against the local cache or by calling a running server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/bootstrap"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/logger"
)

// Exit codes
const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

var (
	configPath string
	logLevel   string
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout))
}

func execute(args []string, out io.Writer) int {
	root := newRootCmd(out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			return exitUsage
		}
		return exitFailure
	}
	return exitSuccess
}

// usageError marks argument errors so they exit with exitUsage
type usageError struct{ error }

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "dispatch",
		Short:        "Run invoice notification jobs",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file (default: ./config.toml when present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level")

	root.AddCommand(
		localJobCmd("sync-clone", "Replace the local cache from the system of record",
			func(ctx context.Context, app *bootstrap.App) (any, error) {
				return app.Orchestrator.CloneSync(ctx)
			}),
		localJobCmd("run-scheduled-sends", "Sync invoices and send today's due notifications",
			func(ctx context.Context, app *bootstrap.App) (any, error) {
				return app.Orchestrator.RunScheduledSends(ctx, nil)
			}),
		localJobCmd("run-daily", "Clone the cache, then run the scheduled sends",
			func(ctx context.Context, app *bootstrap.App) (any, error) {
				return app.Orchestrator.RunDaily(ctx, nil)
			}),
		newTriggerCmd(),
	)
	return root
}

type jobFunc func(ctx context.Context, app *bootstrap.App) (any, error)

// localJobCmd builds a subcommand that wires the dispatcher in-process and runs one job
func localJobCmd(use, short string, run jobFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if cfg.Jobs.RunTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Jobs.RunTimeout)
				defer cancel()
			}

			app, err := bootstrap.Build(ctx, cfg, log)
			if err != nil {
				log.Error("Failed to wire dispatcher", zap.Error(err))
				return err
			}
			defer func() {
				if err := app.Close(context.Background()); err != nil {
					log.Warn("Error releasing resources", zap.Error(err))
				}
			}()

			result, runErr := run(ctx, app)
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if runErr != nil {
				log.Error("Job failed", zap.String("job", use), zap.Error(runErr))
			}
			return runErr
		},
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	// stdout carries the JSON result
	output := cfg.Log.Output
	if output == "" || output == "stdout" {
		output = "stderr"
	}
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
