// Command v1client is a minimal operator-facing runtime for the V1 binary
// protocol: it dials the configured transport, assembles a client.Client,
// optionally performs a short detect-phase handshake first, then serves a
// diagnostics recorder and an admin HTTP surface until it receives a
// shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	v1config "github.com/alxayo/go-v1proto/internal/config"
	"github.com/alxayo/go-v1proto/internal/diagnostics"
	"github.com/alxayo/go-v1proto/internal/httpapi"
	"github.com/alxayo/go-v1proto/internal/logger"
	v1command "github.com/alxayo/go-v1proto/internal/v1/command"
	v1client "github.com/alxayo/go-v1proto/internal/v1/client"
	"github.com/alxayo/go-v1proto/internal/v1/transport"
)

// targetReceiver addresses the device's command module (host2byte(9,0) in
// the reference client).
const targetReceiver = 0x09

func main() {
	cli, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cli.showVersion {
		printVersion()
		return
	}

	cfg, err := v1config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger.Init()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid log level %q, using default\n", cfg.LogLevel)
	}
	log := logger.Logger().With("component", "cli")

	if cfg.DetectAddr != "" && !cli.skipDetect {
		if err := runDetectPhase(cfg); err != nil {
			log.Warn("detect phase failed, continuing to device connect", "error", err)
		}
	}

	pair, err := dialTransport(cfg.Transport, cfg.BindAddr, cfg.RemoteAddr)
	if err != nil {
		log.Error("failed to dial transport", "error", err)
		os.Exit(1)
	}

	client, err := v1client.New(cfg.Host, pair, []transport.Pair{pair}, log)
	if err != nil {
		log.Error("failed to construct client", "error", err)
		os.Exit(1)
	}
	log.Info("connected", "transport", cfg.Transport, "remote", cfg.RemoteAddr, "host", cfg.Host)

	recorder, _, err := diagnostics.NewRecorder(cfg.DiagnosticsDir, client.ID(), nil)
	if err != nil {
		log.Warn("diagnostics recorder unavailable", "error", err)
		recorder = nil
	}

	var watcher *v1config.Watcher
	if cfg.TunablesPath != "" {
		watcher, err = v1config.NewWatcher(cfg.TunablesPath, log, func(t v1config.Tunables) {
			if err := logger.SetLevel(t.LogLevel); err != nil {
				log.Warn("tunables: invalid log level", "level", t.LogLevel, "error", err)
			}
		})
		if err != nil {
			log.Warn("tunables watcher unavailable", "error", err)
			watcher = nil
		}
	}

	admin := httpapi.New(client)
	adminCtx, stopAdmin := context.WithCancel(context.Background())
	go func() {
		if err := admin.Start(adminCtx, cfg.AdminListenAddr); err != nil {
			log.Error("admin server stopped with error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutdown signal received")

	stopAdmin()
	if watcher != nil {
		watcher.Close()
	}
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Warn("diagnostics recorder close error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		if err := client.Close(); err != nil {
			log.Error("client close error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("shut down cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
}

// runDetectPhase opens a short-lived connection to the detect address,
// announces this host's address byte, and tears the connection down before
// the long-lived device connection is opened.
func runDetectPhase(cfg *v1config.Config) error {
	pair, err := dialTransport(cfg.Transport, "", cfg.DetectAddr)
	if err != nil {
		return fmt.Errorf("dial detect transport: %w", err)
	}

	detectClient, err := v1client.New(cfg.Host, pair, []transport.Pair{pair}, nil)
	if err != nil {
		return fmt.Errorf("construct detect client: %w", err)
	}
	defer detectClient.Close()

	if err := v1command.SendFireAndForget(detectClient.Commands(), targetReceiver, announceCmd{host: cfg.Host}); err != nil {
		return fmt.Errorf("send announce: %w", err)
	}
	return nil
}
