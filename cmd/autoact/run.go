package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/autoact/pkg/background"
	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/config"
	"github.com/entrhq/autoact/pkg/content"
	"github.com/entrhq/autoact/pkg/host"
	"github.com/entrhq/autoact/pkg/knowledgebase"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/panel"
	"github.com/entrhq/autoact/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	runHeadless bool
	runNoPanel  bool
	runURL      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the browser, the background and the side panel",
	Long: `Starts the message bus and the background coordinator over the SQLite
knowledge base, launches a browser that mounts a content script on every
matching page, and runs the side panel in this terminal.

Quitting the panel, closing the browser or pressing Ctrl+C stops everything.`,
	Args: cobra.NoArgs,
	RunE: runApp,
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run the browser without a window")
	runCmd.Flags().BoolVar(&runNoPanel, "no-panel", false, "Do not start the terminal side panel")
	runCmd.Flags().StringVar(&runURL, "url", "", "Page to open on start (overrides browser.start_url)")
}

func runApp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runHeadless {
		cfg.Browser.Headless = true
	}
	if runURL != "" {
		cfg.Browser.StartURL = runURL
	}

	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, logger)
}

// run wires every component and blocks until one of them stops.
func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	path, err := cfg.KnowledgeBasePath()
	if err != nil {
		return err
	}
	store, err := knowledgebase.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer store.Close()

	b := bus.New(
		bus.WithLogger(logger.With("bus")),
		bus.WithRequestTimeout(cfg.Bus.RequestTimeout),
	)
	defer b.Close()

	coord, err := background.New(b, store,
		background.WithLogger(logger.With("background")),
		background.WithRunHandler(func(sender string, req types.RunRequest) {
			logger.Infof("run requested by %s: mode=%s context=%s", sender, req.Mode, req.ContextID)
		}))
	if err != nil {
		return err
	}
	defer coord.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.KnowledgeBase.Watch {
		watcher, err := knowledgebase.NewWatcher(path, coord.Invalidate, logger.With("watcher"))
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			watcher.Stop()
			return err
		}
		defer watcher.Stop()
	}

	matcher, err := cfg.Matcher()
	if err != nil {
		return err
	}
	browser := host.New(b, matcher, hostOptions(cfg), host.WithLogger(logger.With("host")))

	g, gctx := errgroup.WithContext(ctx)

	// Whichever component stops first takes the others down with it.
	g.Go(func() error {
		defer cancel()
		return browser.Run(gctx)
	})

	if !runNoPanel {
		side, err := panel.New(b, panel.WithLogger(logger.With("panel")))
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			defer cancel()
			return side.Run(gctx)
		})
	} else {
		fmt.Fprintln(os.Stderr, "AutoAct running without a side panel. Press Ctrl+C to stop.")
	}

	logger.Infof("autoact started (store=%s)", path)
	err = g.Wait()
	logger.Infof("autoact stopped")
	return err
}

func hostOptions(cfg *config.Config) host.Options {
	return host.Options{
		Headless: cfg.Browser.Headless,
		StartURL: cfg.Browser.StartURL,
		Viewport: cfg.Browser.Viewport,
		Script: content.Config{
			ControlID:    cfg.Toolbar.ControlID,
			AnchorOffset: cfg.Toolbar.AnchorOffset,
			DiscardStale: cfg.Bus.DiscardStaleResponses,
		},
	}
}
