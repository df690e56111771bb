// Command tf is a dev CLI for ticketfill maintenance and debugging tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"go.uber.org/zap"

	tfbrowser "github.com/ibeckermayer/ticketfill/internal/browser"
	"github.com/ibeckermayer/ticketfill/internal/config"
	"github.com/ibeckermayer/ticketfill/internal/form"
	"github.com/ibeckermayer/ticketfill/internal/htmldoc"
	"github.com/ibeckermayer/ticketfill/internal/store"
	"github.com/ibeckermayer/ticketfill/internal/types"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	switch os.Args[1] {
	case "probe":
		err = runProbe(logger)
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: tf open <config|cache|dumps|dump>")
			os.Exit(1)
		}
		err = runOpen(os.Args[2])
	case "inspect":
		err = runInspect(logger, os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Fatal("Command failed.", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func printUsage() {
	fmt.Println("Usage: tf <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  probe                          Open the form in a visible browser and report how each field resolves")
	fmt.Println("  open config                    Open config file in default editor")
	fmt.Println("  open cache                     Open cache directory in file explorer")
	fmt.Println("  open dumps                     Open the page dump directory")
	fmt.Println("  open dump                      Open the most recent page dump")
	fmt.Println("  inspect [dump.html]            Resolve every configured field against a saved page")
	fmt.Println("  inspect <dump.html> <id> <label>  Resolve a single descriptor against a saved page")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if os.IsNotExist(err) {
		return config.Default(), nil
	}
	return cfg, err
}

// runProbe loads the live form and resolves the configured fields without
// typing or submitting anything
func runProbe(logger *zap.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := tfbrowser.Open(ctx, logger, tfbrowser.Config{
		Headless:        false, // visible so you can compare with the page
		UserAgent:       cfg.Browser.UserAgent,
		NavigateRetries: cfg.Run.NavigateRetries,
		RetryDelay:      cfg.Run.RetryDelay.Duration,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	logger.Info("Opening form.", zap.String("url", cfg.Form.URL))
	if err := sess.Navigate(ctx, cfg.Form.URL); err != nil {
		return err
	}

	page := sess.Page()
	form.LogInputs(ctx, logger, page, "Inputs on page.")
	reportChallenge(ctx, logger, cfg, page)
	report(ctx, logger, page, descriptors(cfg))

	if h, ok := form.FindSubmit(ctx, page); ok {
		logger.Info("Submit control found.", zap.String("handle", string(h)))
	} else {
		logger.Warn("Submit control not found.")
	}

	fmt.Println("Press Enter to close the browser...")
	fmt.Scanln()
	return nil
}

func runOpen(target string) error {
	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "cache":
		path, err = config.CacheDir()
	case "dumps", "dump":
		var cfg *config.Config
		if cfg, err = loadConfig(); err != nil {
			return err
		}
		path, err = cfg.DumpDir()
		if err == nil && target == "dump" {
			path, err = store.LatestDump(path)
		}
	default:
		return fmt.Errorf("unknown target: %s", target)
	}

	if err != nil {
		return fmt.Errorf("failed to get path: %w", err)
	}

	return browser.OpenFile(path)
}

// runInspect runs the locator offline over a saved page dump
func runInspect(logger *zap.Logger, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		dir, err := cfg.DumpDir()
		if err != nil {
			return err
		}
		if path, err = store.LatestDump(dir); err != nil {
			return err
		}
	}

	ds := descriptors(cfg)
	switch len(args) {
	case 0, 1:
	case 3:
		ds = []types.FieldDescriptor{{StableID: args[1], Label: args[2]}}
	default:
		return fmt.Errorf("usage: tf inspect [dump.html] [<stable_id> <label>]")
	}

	doc, err := htmldoc.Load(path)
	if err != nil {
		return err
	}
	logger.Info("Inspecting page dump.", zap.String("path", filepath.Base(path)))

	ctx := context.Background()
	reportChallenge(ctx, logger, cfg, doc)
	report(ctx, logger, doc, ds)
	if _, ok := form.FindSubmit(ctx, doc); !ok {
		logger.Warn("Submit control not found.")
	}
	return nil
}

func descriptors(cfg *config.Config) []types.FieldDescriptor {
	ds := make([]types.FieldDescriptor, len(cfg.Form.Fields))
	for i, f := range cfg.Form.Fields {
		ds[i] = f.FieldDescriptor
	}
	return ds
}

func report(ctx context.Context, logger *zap.Logger, page form.Page, ds []types.FieldDescriptor) {
	locator := form.NewLocator(logger)
	for _, d := range ds {
		field, ok := locator.Locate(ctx, page, d)
		if !ok {
			fmt.Printf("  %-45s NOT FOUND\n", d.Name())
			continue
		}
		where := "main document"
		if field.InFrame() {
			where = fmt.Sprintf("frame %d", field.Frame)
		}
		fmt.Printf("  %-45s %s via %s\n", d.Name(), where, field.Strategy)
	}
}

func reportChallenge(ctx context.Context, logger *zap.Logger, cfg *config.Config, page form.Page) {
	w := form.NewChallengeWatcher(logger, cfg.Form.Challenge, 0)
	if sel, ok := w.Detect(ctx, page); ok {
		logger.Warn("Verification challenge on page.", zap.String("selector", sel))
	}
}
