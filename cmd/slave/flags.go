package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kulve/pleco-go/internal/config"
)

type cliConfig struct {
	peerHost      string
	peerPort      int
	logLevel      string
	metricsAddr   string
	statsInterval time.Duration
	autoPing      bool
	configFile    string
	host          string
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("pleco-slave", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	configFile := config.RegisterFileFlag(fs)
	var statsIntervalStr string

	fs.StringVar(&cfg.peerHost, "peer-host", "", "remote controller host (overridden by PLECO_PEER_HOST, then a positional argument)")
	fs.IntVar(&cfg.peerPort, "peer-port", 12347, "remote controller UDP port")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "Prometheus /metrics listen address (empty disables)")
	fs.StringVar(&statsIntervalStr, "stats-interval", "10s", "host-stats sampling interval")
	fs.BoolVar(&cfg.autoPing, "autoping", true, "enable the transport's repeating keepalive ping")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.configFile = *configFile

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
	if !explicit["stats-interval"] && fileCfg.StatsInterval != "" {
		statsIntervalStr = fileCfg.StatsInterval
	}
	// autoping's YAML field is left unmerged: a bool zero value can't be
	// told apart from "absent" in YAML, and the flag already defaults to
	// true, so the only way to actually disable it is -autoping=false.

	cfg.host = config.ResolvePeerHost(cfg.peerHost, fs.Args())

	if !config.ValidLogLevel(cfg.logLevel) {
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}
	if cfg.peerPort <= 0 || cfg.peerPort > 65535 {
		return nil, errors.New("peer-port must be between 1 and 65535")
	}
	interval, err := time.ParseDuration(statsIntervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stats-interval %q: %w", statsIntervalStr, err)
	}
	cfg.statsInterval = interval

	return cfg, nil
}
