package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/reex/reexd/internal/config"
	"github.com/reex/reexd/internal/discovery"
	"github.com/reex/reexd/internal/events"
	"github.com/reex/reexd/internal/logx"
	"github.com/reex/reexd/internal/monitor"
	"github.com/reex/reexd/internal/remote"
	"github.com/reex/reexd/internal/shell"
	"github.com/reex/reexd/internal/store"
)

const reloadDebounce = 500 * time.Millisecond

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("REEXD_CONFIG"), "path to reexd.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := logx.New(cfg.Verbose)
	logger.Info("starting reexd", "db", cfg.DatabasePath, "poll_interval", cfg.PollInterval().String())

	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var resolver monitor.URLResolver
	if cfg.ConsulAddr != "" {
		r, err := discovery.NewResolver(cfg.ConsulAddr)
		if err != nil {
			return fmt.Errorf("consul resolver: %w", err)
		}
		resolver = r
		logger.Info("consul url resolution enabled", "addr", cfg.ConsulAddr)
	}

	bus := events.NewBus(64)
	defer bus.Close()

	defer bus.Subscribe(events.RecordsChanged, func(e events.Event) {
		logger.Debug("records changed", "folder", e.FolderID.String())
	})()

	client := remote.NewClient(logger)
	engine := shell.NewExecutor(logger)

	sup := monitor.NewSupervisor(st, client, engine, client, resolver, bus, cfg.PollInterval(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal", "signal", sig.String())
		cancel()
	}()

	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("start polling: %w", err)
	}

	if err := watchFolders(ctx, st, sup, cfg.DatabasePath, logger); err != nil {
		logger.Error("folder watch unavailable, edits need a restart", "error", err)
		<-ctx.Done()
	}

	sup.Stop()
	logger.Info("reexd stopped")
	return nil
}

// watchFolders reconciles the poll loop set whenever reexctl writes the
// database. It blocks until ctx is cancelled.
func watchFolders(ctx context.Context, st *store.Store, sup *monitor.Supervisor, dbPath string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// sqlite writes touch the db file plus its -wal/-journal siblings, so
	// watch the directory and filter by prefix.
	dir := filepath.Dir(dbPath)
	base := filepath.Base(dbPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	var debounce *time.Timer
	reload := func() {
		folders, err := st.Folders()
		if err != nil {
			logger.Error("reload folders failed", "error", err)
			return
		}
		logger.Debug("reconciling folders", "count", len(folders))
		sup.Reconcile(folders)
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "error", err)
		}
	}
}
