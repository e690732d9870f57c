package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/halcyondev/parley/editor"
	"github.com/halcyondev/parley/fstree"
	"github.com/halcyondev/parley/registry"
	"github.com/halcyondev/parley/web"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address for the browser frontend")
	rootDir := flag.String("root", "", "workspace root directory (empty = built-in demo workspace)")
	logFile := flag.String("logfile", "", "also write JSON logs to this file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, closeLogs, err := newLogger(*logFile, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
	defer closeLogs()

	if err := run(ctx, *addr, *rootDir, logger); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, rootDir string, logger *slog.Logger) error {
	cfg := loadConfig(rootDir, logger)

	var provider editor.DirectoryProvider
	var project string
	var watcher *fstree.Watcher

	if rootDir == "" {
		virtual := fstree.NewVirtual("demo", fstree.DemoTree())
		provider = virtual
		project = virtual.Name()
	} else {
		disk, err := fstree.NewDisk(rootDir, cfg.IgnoreDirs, logger)
		if err != nil {
			return err
		}
		provider = disk
		project = disk.Name()

		w, err := fstree.NewWatcher(disk.Root(), cfg.IgnoreDirs, logger)
		if err != nil {
			logger.Warn("file watching disabled", "error", err)
		} else {
			watcher = w
			defer watcher.Close()
		}
	}

	reg := registry.New()
	feed := editor.NewFeed(256, logger)
	tabs := editor.NewTabStore(provider, reg, feed, logger)
	session := editor.NewSession(tabs, provider, reg, feed, logger)
	session.SetProject(project)
	if cfg.RegistrySizeCeiling > 0 {
		session.SetRegistrySizeCeiling(cfg.RegistrySizeCeiling)
	}

	if err := session.OpenFolder(ctx); err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}

	srv := web.NewServer(session, logger)
	if watcher != nil {
		go watcher.Run(ctx, func() {
			if err := session.OpenFolder(ctx); err != nil {
				logger.Warn("tree refresh failed", "error", err)
				return
			}
			srv.NotifyTreeChanged()
		})
	}

	server := &http.Server{Addr: addr, Handler: srv}
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	logger.Info("parley listening", "addr", addr, "project", project)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
