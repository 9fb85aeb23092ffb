// Package config loads the shared settings behind the controller and
// slave cmd/ binaries (cmd/relay takes flags only): an optional YAML
// file merged with flag defaults, with
// environment and a positional host argument layered on top for the
// one field spec.md's External Interfaces section singles out
// (peer host precedence).
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// envPeerHost is consulted after flags and before the positional
// argument, matching spec.md §6's stated precedence for the peer host.
const envPeerHost = "PLECO_PEER_HOST"

// Config is the union of fields every cmd/ binary may read from YAML;
// each binary's own flags.go only wires the subset it uses.
type Config struct {
	PeerHost               string `yaml:"peer_host"`
	PeerPort               int    `yaml:"peer_port"`
	LogLevel               string `yaml:"log_level"`
	MetricsAddr            string `yaml:"metrics_addr"`
	StatsInterval          string `yaml:"stats_interval"`
	AutoPing               bool   `yaml:"autoping"`
	SlaveAddr              string `yaml:"slave_addr"`
	ControllerAddr         string `yaml:"controller_addr"`
	ResendTimeoutDefaultMs int    `yaml:"resend_timeout_default_ms"`
	MinConnectionTimeoutMs int    `yaml:"min_connection_timeout_ms"`
}

// Load reads an optional YAML file at path (a missing path is not an
// error — Config{} is returned for callers to layer flag defaults over).
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return cfg, nil
}

// RegisterFileFlag adds the -config flag the controller and slave
// binaries use to name an optional YAML file, returning the bound string
// pointer.
func RegisterFileFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "optional YAML config file")
}

// ResolvePeerHost applies spec.md §6's precedence for the peer host:
// a non-empty positional argument wins outright, then the environment
// variable, then whatever the flag/YAML layer already resolved to.
func ResolvePeerHost(flagValue string, positional []string) string {
	if len(positional) > 0 && positional[0] != "" {
		return positional[0]
	}
	if env := os.Getenv(envPeerHost); env != "" {
		return env
	}
	return flagValue
}

// ValidLogLevel reports whether level is one of the four levels
// internal/logger understands, mirroring the teacher's inline
// flags.go validation style rather than deferring to logger.SetLevel's
// own error at startup.
func ValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
