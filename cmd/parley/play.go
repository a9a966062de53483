package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nathoo/parley/cli"
	"github.com/nathoo/parley/config"
	"github.com/nathoo/parley/engine"
	"github.com/nathoo/parley/engine/events"
	"github.com/nathoo/parley/engine/save"
	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/loader"
	"github.com/nathoo/parley/observe"
	"github.com/nathoo/parley/storage/sqlite"
	"github.com/nathoo/parley/tui"
)

type playOptions struct {
	plain  bool
	script string
	trace  bool
	fresh  bool
}

func newPlayCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &playOptions{}

	cmd := &cobra.Command{
		Use:   "play [content_dir]",
		Short: "Play a content pack",
		Long: `Load a content pack and talk to its NPCs.

The terminal UI is used when stdout is a terminal; otherwise, or with
--plain, a line-based interface reads commands from stdin. --script replays
commands from a file and echoes them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "use the line-based interface")
	cmd.Flags().StringVar(&opts.script, "script", "", "replay commands from a file (implies --plain)")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "show engine events and effects")
	cmd.Flags().BoolVar(&opts.fresh, "fresh", false, "ignore the existing save and start over")

	return cmd
}

func runPlay(cmd *cobra.Command, rootOpts *rootOptions, opts *playOptions, args []string) error {
	cfg, err := config.Load(rootOpts.configPath)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Content = args[0]
	}

	logger, err := observe.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	defs, warnings, err := loader.LoadAll(cfg.Content)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}
	for _, w := range warnings {
		logger.Warn("content warning", "dir", cfg.Content, "warning", w)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var metrics *observe.Metrics
	if cfg.Metrics.Addr != "" {
		mp, shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return fmt.Errorf("initialising metrics: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("metrics shutdown", "err", err)
			}
		}()
		if metrics, err = observe.NewMetrics(mp); err != nil {
			return fmt.Errorf("creating instruments: %w", err)
		}
		if err := serveMetrics(gctx, g, cfg.Metrics.Addr, logger); err != nil {
			return err
		}
	}

	player := state.NewPlayer()
	backend, closeBackend, err := openBackend(cfg.Save)
	if err != nil {
		return err
	}
	defer closeBackend()

	var saves *save.Trigger
	if backend != nil {
		saves = save.NewTrigger(backend, player,
			save.WithSlot(cfg.Save.Slot),
			save.WithGame(defs.Game),
			save.WithLogger(logger),
			save.WithMetrics(metrics),
		)
		defer saves.Wait()

		if !opts.fresh {
			if err := resume(ctx, saves, player, logger); err != nil {
				return err
			}
		}
	}

	bus := events.NewBus()
	engOpts := []engine.Option{
		engine.WithPublisher(bus),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
	}
	if saves != nil {
		engOpts = append(engOpts, engine.WithSaver(saves))
	}
	eng := engine.New(defs, player, engOpts...)

	interp := cli.NewInterpreter(eng, defs, player, bus, saves)
	defer interp.Close()
	interp.Trace = opts.trace

	g.Go(func() error {
		defer cancel()
		return runUI(gctx, cmd, interp, opts)
	})
	return g.Wait()
}

// runUI drives the interpreter from a script, stdin, or the terminal UI.
func runUI(ctx context.Context, cmd *cobra.Command, interp *cli.Interpreter, opts *playOptions) error {
	var in io.Reader = cmd.InOrStdin()
	echo := false

	if opts.script != "" {
		f, err := os.Open(opts.script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		in = f
		echo = true
	} else if !opts.plain && isTerminal() {
		return tui.Run(ctx, interp)
	}

	c := cli.New(interp)
	c.In = in
	c.Out = cmd.OutOrStdout()
	c.EchoInput = echo
	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveMetrics exposes the Prometheus registry on addr until ctx is done.
// The listener is bound before returning so a taken port fails the command
// before the UI starts.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("metrics endpoint listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}

// openBackend returns the configured save backend, or nil when saving is
// disabled. The returned close function is always safe to call.
func openBackend(cfg config.SaveConfig) (save.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendFile:
		return save.NewFileBackend(cfg.Path), func() {}, nil
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// resume restores the configured slot if it exists.
func resume(ctx context.Context, saves *save.Trigger, player *state.Player, logger *slog.Logger) error {
	sd, err := saves.LoadInto(ctx, player)
	if errors.Is(err, save.ErrNoSave) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resuming from slot %q: %w", saves.Slot(), err)
	}
	logger.Info("resumed save", "slot", saves.Slot(), "saved_at", sd.SavedAt)
	return nil
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
