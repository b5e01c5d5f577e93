package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "shedcmd/internal/log"
	"shedcmd/internal/scheduler"
	"shedcmd/internal/telemetry"
	"shedcmd/internal/web"
)

// osExit is swapped in tests.
var osExit = os.Exit

// onHangup is called after each ignored SIGHUP. Swapped in tests.
var onHangup = func() {}

// ignoreHangups keeps a closed terminal from killing the daemon: SIGHUP is
// logged and otherwise ignored until stop is called.
func ignoreHangups() (stop func()) {
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-hupCh:
				appLog.Info("hangup received, ignoring", "signal", sig.String())
				onHangup()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(hupCh)
		close(done)
	}
}

// runScheduler is the root command: it runs the poll loop (and the status
// server when configured) until a signal arrives or a tick fails fatally.
func runScheduler(flags *rootFlags, _, _ io.Writer) error {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	src, err := newSource(cfg, flags.filePath)
	if err != nil {
		return err
	}
	disp, err := newDispatcher(cfg)
	if err != nil {
		return err
	}
	opts, err := loopOptions(cfg)
	if err != nil {
		return err
	}

	lock, err := acquireLock(cfg.LockPath(flags.configPath))
	if err != nil {
		return withCode(1, err)
	}
	defer lock.Unlock() //nolint:errcheck // released on exit anyway

	// Root context with cancellation on SIGINT/SIGTERM/SIGQUIT. A second signal
	// exits immediately, abandoning any running command.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigCh)
	defer ignoreHangups()()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, finishing current tick", "signal", sig.String())
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigCh:
			appLog.Info("second signal received, exiting now", "signal", sig.String())
			osExit(130)
		case <-done:
		}
	}()

	tp, err := telemetry.Init(ctx, "shedcmd", version)
	if err != nil {
		appLog.Error("telemetry disabled", err)
	}
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			appLog.Error("telemetry shutdown failed", err)
		}
	}()

	appLog.Info("shedcmd starting", "version", version, "config", flags.configPath,
		"interval_mins", cfg.IntervalMins, "fetch_occurrence", cfg.FetchOccurrence,
		"threshold", cfg.ThresholdMinutes(), "commands", len(cfg.Commands), "source", src.Describe())

	if flags.delay > 0 {
		appLog.Info("delaying start", "seconds", flags.delay)
		select {
		case <-time.After(time.Duration(flags.delay) * time.Second):
		case <-ctx.Done():
			appLog.Info("shedcmd exiting")
			return nil
		}
	}

	var store *web.Store
	if cfg.Status.Listen != "" {
		store = web.NewStore()
	}
	var reporter scheduler.Reporter
	if store != nil {
		reporter = store
	}
	loop := scheduler.New(opts, src, disp, reporter)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	if store != nil {
		g.Go(func() error {
			return web.Serve(gctx, cfg.Status, store)
		})
	}

	if err := g.Wait(); err != nil {
		appLog.Error("shedcmd stopped", err)
		if errors.Is(err, scheduler.ErrParse) {
			return withCode(2, err)
		}
		return withCode(1, err)
	}
	appLog.Info("shedcmd exiting")
	return nil
}
