package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/kulve/pleco-go/internal/config"
)

type cliConfig struct {
	peerHost    string
	peerPort    int
	logLevel    string
	metricsAddr string
	configFile  string
	host        string // positional/env/flag resolved per spec.md §6
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("pleco-controller", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	configFile := config.RegisterFileFlag(fs)

	fs.StringVar(&cfg.peerHost, "peer-host", "", "remote slave host (overridden by PLECO_PEER_HOST, then a positional argument)")
	fs.IntVar(&cfg.peerPort, "peer-port", 12347, "remote slave UDP port")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "Prometheus /metrics listen address (empty disables)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.configFile = *configFile

	// A YAML value only fills a field the user didn't pass as a flag;
	// explicit flags always win over the file.
	fileCfg, err := config.Load(cfg.configFile)
	if err != nil {
		return nil, err
	}
	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if !explicit["peer-host"] && fileCfg.PeerHost != "" {
		cfg.peerHost = fileCfg.PeerHost
	}
	if !explicit["peer-port"] && fileCfg.PeerPort != 0 {
		cfg.peerPort = fileCfg.PeerPort
	}
	if !explicit["log-level"] && fileCfg.LogLevel != "" {
		cfg.logLevel = fileCfg.LogLevel
	}
	if !explicit["metrics-addr"] && fileCfg.MetricsAddr != "" {
		cfg.metricsAddr = fileCfg.MetricsAddr
	}

	cfg.host = config.ResolvePeerHost(cfg.peerHost, fs.Args())

	if !config.ValidLogLevel(cfg.logLevel) {
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}
	if cfg.peerPort <= 0 || cfg.peerPort > 65535 {
		return nil, errors.New("peer-port must be between 1 and 65535")
	}

	return cfg, nil
}
