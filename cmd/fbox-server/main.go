// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

// Command fbox-server runs the pairing and relay server for ephemeral
// peer-to-peer file-sharing sessions.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fbox-dev/fbox/lib/config"
	"github.com/fbox-dev/fbox/lib/process"
	"github.com/fbox-dev/fbox/lib/version"
	"github.com/fbox-dev/fbox/server"
	"github.com/fbox-dev/fbox/session"
)

// shutdownGrace bounds the graceful drain of in-flight requests on
// SIGINT/SIGTERM. Live WebSockets and relays are cut after this.
const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		listen      string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the YAML config file (or set "+config.EnvVar+")")
	flag.StringVar(&listen, "listen", "", "override the configured listen address")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		version.Print("fbox-server")
		return nil
	}

	var cfg config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.ListenAddress = listen
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := session.NewService(session.Config{
		SeedPassword: cfg.SeedPassword,
		Logger:       logger,
	})

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		Service:       broker,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	logger.Info("fbox-server running", "address", srv.Addr(), "version", version.Info())

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
