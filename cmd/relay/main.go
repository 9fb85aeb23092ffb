// Command pleco-relay runs the stateless UDP address-learning reflector
// described in spec.md §6, letting a controller and a slave that can't
// reach each other directly (e.g. both behind NAT) rendezvous through a
// host both can reach.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kulve/pleco-go/internal/logger"
	"github.com/kulve/pleco-go/internal/relay"
)

func parseFlags(args []string) (slaveAddr, controllerAddr, logLevel string, err error) {
	fs := flag.NewFlagSet("pleco-relay", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	fs.StringVar(&slaveAddr, "slave-addr", relay.DefaultSlaveAddr, "listen address for slave-side traffic")
	fs.StringVar(&controllerAddr, "controller-addr", relay.DefaultControllerAddr, "listen address for controller-side traffic")
	fs.StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")

	if parseErr := fs.Parse(args); parseErr != nil {
		return "", "", "", parseErr
	}
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return "", "", "", errors.New("invalid log-level")
	}
	return slaveAddr, controllerAddr, logLevel, nil
}

func main() {
	slaveAddr, controllerAddr, logLevel, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger.Init()
	if err := logger.SetLevel(logLevel); err != nil {
		fmt.Printf("warning: invalid log level %q, using default\n", logLevel)
	}
	log := logger.Logger().With("component", "cli")

	r, err := relay.New(slaveAddr, controllerAddr)
	if err != nil {
		log.Error("failed to bind relay sockets", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.Start(ctx)
	log.Info("relay started", "slave_addr", r.SlaveAddr().String(), "controller_addr", r.ControllerAddr().String())

	<-ctx.Done()
	log.Info("shutdown signal received")
	r.Stop()
	log.Info("relay stopped cleanly")
}
