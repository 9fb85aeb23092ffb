// Command pleco-controller is the controller-station end of a pleco
// link: it keeps the link to a slave alive with auto-ping and logs the
// link's RTT, resend activity, and connection status.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kulve/pleco-go/internal/cliutil"
	"github.com/kulve/pleco-go/internal/logger"
	"github.com/kulve/pleco-go/internal/metrics"
	"github.com/kulve/pleco-go/internal/peer"
	"github.com/kulve/pleco-go/internal/transport"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	appCallbacks := transport.Callbacks{
		OnRtt:              func(ms int) { log.Debug("rtt sample", "ms", ms) },
		OnConnectionStatus: func(s transport.ConnectionStatus) { log.Info("connection status changed", "status", s.String()) },
		OnResendTimeout:    func(ms int) { log.Debug("resend timeout adjusted", "ms", ms) },
		OnResentPackets:    func(n uint32) { log.Warn("packet resent", "total_resends", n) },
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var exporter *metrics.Exporter
	cb := appCallbacks
	if cfg.metricsAddr != "" {
		exporter = metrics.New(string(peer.RoleController), cfg.host)
		cb = cliutil.MergeCallbacks(appCallbacks, exporter.Callbacks())
		go func() {
			if err := metrics.Serve(ctx, cfg.metricsAddr, exporter); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	p, err := peer.New(peer.RoleController, peer.Config{
		Host:      cfg.host,
		Port:      cfg.peerPort,
		LocalPort: 0,
	}, cb)
	if err != nil {
		log.Error("failed to construct peer", "error", err)
		os.Exit(1)
	}

	if err := p.Start(ctx); err != nil {
		log.Error("failed to start peer", "error", err)
		os.Exit(1)
	}
	p.EnableAutoPing(true)

	log.Info("controller started", "local_addr", p.LocalAddr(), "peer_id", p.ID(), "remote", fmt.Sprintf("%s:%d", cfg.host, cfg.peerPort))

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := p.Close(); err != nil {
			log.Error("peer close error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("controller stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
}
