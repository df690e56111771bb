package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ibeckermayer/ticketfill/internal/app"
	"github.com/ibeckermayer/ticketfill/internal/browser"
	"github.com/ibeckermayer/ticketfill/internal/config"
	"github.com/ibeckermayer/ticketfill/internal/notifier"
	"github.com/ibeckermayer/ticketfill/internal/scheduler"
	"github.com/ibeckermayer/ticketfill/internal/store"
	"github.com/ibeckermayer/ticketfill/internal/targets"
	"github.com/ibeckermayer/ticketfill/internal/types"
)

var (
	verbose    bool
	configFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ticketfill",
		Short:         "Fill and submit a support-ticket form once per target",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is the user config dir)")

	root.AddCommand(newRunCmd(), newScheduleCmd(), newHistoryCmd(), newLogoutCmd())
	return root
}

func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// loadConfig reads the config, writing the defaults on first run
func loadConfig(logger *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}

	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("could not load config: %w", err)
		}
		// First run - create default config
		cfg = config.Default()
		var saveErr error
		if configFile != "" {
			saveErr = cfg.SaveFile(configFile)
		} else {
			saveErr = cfg.Save()
		}
		if saveErr != nil {
			logger.Warn("Could not save default config.", zap.Error(saveErr))
		} else {
			logger.Info("Created default config; edit it before the first run.")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openSession launches the browser described by cfg
func openSession(logger *zap.Logger) app.Opener {
	return func(ctx context.Context, cfg *config.Config) (app.Session, error) {
		s, err := browser.Open(ctx, logger, browser.Config{
			Headless:        cfg.Browser.Headless,
			UserAgent:       cfg.Browser.UserAgent,
			NavigateRetries: cfg.Run.NavigateRetries,
			RetryDelay:      cfg.Run.RetryDelay.Duration,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// buildApp wires the app and returns a cleanup func
func buildApp(logger *zap.Logger, cfg *config.Config, interactive bool) (*app.App, func(), error) {
	mgr, err := app.NewAuthManager(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	historyPath, err := cfg.HistoryPath()
	if err != nil {
		return nil, nil, err
	}
	history, err := store.New(historyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}

	opts := app.Options{
		Auth:     mgr,
		Recorder: history,
	}
	if interactive {
		opts.Prompter = targets.SurveyPrompter{}
	}
	if cfg.Email.Enabled() {
		n, err := notifier.NewFromConfig(cfg.Email)
		if err != nil {
			logger.Warn("Email reports disabled.", zap.Error(err))
		} else {
			opts.Notifier = n
		}
	}

	return app.New(cfg, openSession(logger), logger, opts), func() { history.Close() }, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCmd() *cobra.Command {
	var selection string
	var headless bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit the form for the selected targets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			defer logger.Sync()

			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = headless
			}

			a, cleanup, err := buildApp(logger, cfg, true)
			if err != nil {
				return err
			}
			defer cleanup()

			all, err := a.LoadTargets()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			var selected []types.Target
			if selection != "" {
				var unknown []string
				selected, unknown = targets.Select(all, selection)
				if len(unknown) > 0 {
					logger.Warn("Unknown targets skipped.", zap.Strings("targets", unknown))
				}
			} else {
				selected, err = targets.Prompt(ctx, targets.SurveyPrompter{}, all)
				if err != nil {
					return err
				}
			}
			if len(selected) == 0 {
				return errors.New("no targets selected")
			}

			results, err := a.Run(ctx, selected)
			if err != nil {
				return err
			}
			printResults(results)
			return nil
		},
	}
	cmd.Flags().StringVarP(&selection, "targets", "t", "", `"all" or a comma separated list (prompts when empty)`)
	cmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run every target on the configured cron schedule",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := newLogger()
			defer logger.Sync()

			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			if err := scheduler.ValidateSchedule(cfg.Schedule.Cron); err != nil {
				return err
			}
			// Nobody is at the terminal to resolve a paused submission.
			a, cleanup, err := buildApp(logger, cfg, false)
			if err != nil {
				return err
			}
			defer cleanup()

			job := func(ctx context.Context) error {
				// Pick up config edits made since the last run.
				if err := a.ReloadConfig(configFile); err != nil {
					logger.Warn("Keeping previous config.", zap.Error(err))
				}
				all, err := a.LoadTargets()
				if err != nil {
					return err
				}
				selected, _ := targets.Select(all, "all")
				_, err = a.Run(ctx, selected)
				return err
			}

			s, err := scheduler.New(cfg.Schedule.Timezone, logger)
			if err != nil {
				return err
			}
			if err := s.AddJob("batch", cfg.Schedule.Cron, job); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			if runNow {
				if err := s.RunNow(ctx, "batch", job); errors.Is(err, targets.ErrTargetsMissing) {
					return err
				}
			}

			s.Start()
			for _, j := range s.ListJobs() {
				logger.Info("Next run.", zap.String("job", j.Name), zap.Time("at", j.NextRun))
			}
			<-ctx.Done()
			<-s.Stop().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "now", false, "also run once immediately")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	var target string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent submissions",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := newLogger()
			defer logger.Sync()

			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			path, err := cfg.HistoryPath()
			if err != nil {
				return err
			}
			history, err := store.New(path)
			if err != nil {
				return err
			}
			defer history.Close()

			if target != "" {
				outcome, ok, err := history.LastOutcome(target)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Printf("%s: no completed submissions\n", target)
					return nil
				}
				fmt.Printf("%s: %s\n", target, outcome)
				return nil
			}

			subs, err := history.RecentSubmissions(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tTARGET\tSTATUS\tFILLED\tMISSING\tCHALLENGE\tERROR")
			for _, s := range subs {
				status := "incomplete"
				if o, ok := s.Outcome(); ok {
					status = string(o)
				}
				challenge := ""
				if s.Log.Challenged {
					challenge = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					s.StartedAt.Local().Format(time.DateTime), s.Target, status,
					len(s.Log.Filled), len(s.Log.Missing), challenge, s.ErrorMessage)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of submissions to show")
	cmd.Flags().StringVar(&target, "target", "", "only print the last outcome for this target")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored browser session",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := newLogger()
			defer logger.Sync()

			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			path, err := cfg.CookiePath()
			if err != nil {
				return err
			}
			mgr, err := app.NewAuthManager(cfg, logger)
			if err != nil {
				return err
			}
			if !mgr.HasSession() {
				logger.Info("No stored session.", zap.String("path", path))
				return nil
			}
			if err := mgr.Clear(); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}
			logger.Info("Stored session cleared.", zap.String("path", path))
			return nil
		},
	}
}

func printResults(results []types.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tOUTCOME\tFILLED\tMISSING\tUNCERTAIN")
	for _, r := range results {
		outcome := string(r.Outcome)
		if r.NeedsAttention() {
			outcome += " (needs attention)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", r.Target.Identifier, outcome, len(r.Filled), len(r.Missing), len(r.Uncertain))
	}
	w.Flush()
}
