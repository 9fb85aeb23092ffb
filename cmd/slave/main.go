// Command pleco-slave is the robot-side end of a pleco link: it logs
// values received from the controller and periodically reports host
// telemetry back as Stats samples.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kulve/pleco-go/internal/cliutil"
	"github.com/kulve/pleco-go/internal/hoststats"
	"github.com/kulve/pleco-go/internal/logger"
	"github.com/kulve/pleco-go/internal/message"
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
		OnConnectionStatus: func(s transport.ConnectionStatus) { log.Info("connection status changed", "status", s.String()) },
		OnValue: func(subtype message.Subtype, value uint16) {
			log.Debug("value received", "subtype", subtype.String(), "value", value)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var exporter *metrics.Exporter
	cb := appCallbacks
	if cfg.metricsAddr != "" {
		exporter = metrics.New(string(peer.RoleSlave), cfg.host)
		cb = cliutil.MergeCallbacks(appCallbacks, exporter.Callbacks())
		go func() {
			if err := metrics.Serve(ctx, cfg.metricsAddr, exporter); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	p, err := peer.New(peer.RoleSlave, peer.Config{
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
	p.EnableAutoPing(cfg.autoPing)

	sampler, err := hoststats.New(p, fmt.Sprintf("@every %s", cfg.statsInterval))
	if err != nil {
		log.Error("failed to construct hoststats sampler", "error", err)
		os.Exit(1)
	}
	sampler.Start()

	log.Info("slave started", "local_addr", p.LocalAddr(), "peer_id", p.ID(), "remote", fmt.Sprintf("%s:%d", cfg.host, cfg.peerPort))

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sampler.Stop(shutdownCtx)

	done := make(chan struct{})
	go func() {
		if err := p.Close(); err != nil {
			log.Error("peer close error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("slave stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
}
