// Package cli provides the command-line interface for secretary.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/secretary-go/internal/calendar"
	"github.com/raphaelgruber/secretary-go/internal/config"
	"github.com/raphaelgruber/secretary-go/internal/db"
	"github.com/raphaelgruber/secretary-go/internal/dialog"
	"github.com/raphaelgruber/secretary-go/internal/intent"
	"github.com/raphaelgruber/secretary-go/internal/llm"
	"github.com/raphaelgruber/secretary-go/internal/metrics"
	"github.com/raphaelgruber/secretary-go/internal/notify"
	"github.com/raphaelgruber/secretary-go/internal/reception"
	"github.com/raphaelgruber/secretary-go/internal/schedule"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and db client
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
	dbClient *db.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "secretary",
	Short: "Automated scheduling assistant for a medical clinic",
	Long: `Secretary is the conversational receptionist of a medical clinic.

It answers patient messages, collects the details needed to book, cancel
or reschedule an appointment, keeps the calendar backend in sync, and
hands the conversation to a human attendant whenever the patient asks
for one.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for commands that never touch it
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "schema" {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg)

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// buildEngine assembles the full turn pipeline: LLM, classifier, calendar
// backend, executor, collector and dispatcher. The returned metrics
// collector is shared with the HTTP stats endpoint.
func buildEngine(ctx context.Context) (*dialog.Engine, *metrics.Collector, error) {
	model, err := llm.NewModel(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init model: %w", err)
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load policy: %w", err)
	}

	cal := newCalendarClient(cfg, logger)

	stats := metrics.NewCollector()
	engine := dialog.NewEngine(dialog.Deps{
		Store:      dbClient,
		Classifier: intent.NewClassifier(model, 0, logger),
		Replier:    model,
		Collector:  reception.NewCollector(policy, logger),
		Tools:      reception.NewTools(dbClient, logger),
		Executor:   schedule.NewExecutor(dbClient, cal, policy, logger),
		Notifier:   notify.New(cfg.HandoffWebhookURL, logger),
		Metrics:    stats,
		Policy:     policy,
		Logger:     logger,
	})
	return engine, stats, nil
}

// newCalendarClient picks the calendar backend. Setting SECRETARY_CALENDAR_URL
// to "memory" (or empty) books against an in-memory calendar, for local
// conversation testing without the agenda service.
func newCalendarClient(cfg config.Config, log *slog.Logger) calendar.Client {
	if cfg.CalendarBaseURL == "" || cfg.CalendarBaseURL == "memory" {
		log.Warn("no calendar backend configured, using in-memory calendar")
		return calendar.NewFake()
	}
	return calendar.NewHTTPClient(cfg.CalendarBaseURL, cfg.CalendarToken, cfg.CalendarTimeout)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(schemaCmd)
}
