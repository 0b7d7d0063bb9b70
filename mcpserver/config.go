package mcpserver

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by LoadServerConfig and DiscoverServers
const (
	EnvServerName     = "CSP_RISK_MCP_NAME"
	EnvServerVersion  = "CSP_RISK_MCP_VERSION"
	EnvRateLimit      = "CSP_RISK_MCP_RATE_LIMIT"
	EnvRateBurst      = "CSP_RISK_MCP_RATE_BURST"
	EnvMaxInputBytes  = "CSP_RISK_MCP_MAX_INPUT_BYTES"
	EnvAuditLevel     = "CSP_RISK_MCP_AUDIT_LEVEL"
	EnvPatternPack    = "CSP_RISK_MCP_PATTERN_PACK"
	EnvWatchPack      = "CSP_RISK_MCP_WATCH"
	EnvServerPath     = "CSP_RISK_MCP_SERVER_PATH"
	EnvServerList     = "CSP_RISK_MCP_SERVERS"
	DefaultServerName = "csp-risk"
)

// Request log levels
const (
	AuditLevelMinimal  = "minimal"
	AuditLevelStandard = "standard"
	AuditLevelVerbose  = "verbose"
)

// ServerConfig configures the MCP tool server
type ServerConfig struct {
	Name    string
	Version string

	// Per-client token bucket. Zero takes the env or default value; a
	// negative RequestsPerSecond disables rate limiting.
	RequestsPerSecond float64
	Burst             int

	// MaxInputBytes bounds the total size of a tool call's arguments
	MaxInputBytes int

	// AuditLevel controls request logging (minimal, standard, verbose)
	AuditLevel string

	// PatternPackPath is imported at startup and reloaded on change when WatchPatternPack is set
	PatternPackPath  string
	WatchPatternPack bool
}

// DefaultServerConfig returns the server defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Name:              DefaultServerName,
		Version:           "0.1.0",
		RequestsPerSecond: 10,
		Burst:             20,
		MaxInputBytes:     1 << 20, // 1MB
		AuditLevel:        AuditLevelStandard,
	}
}

// LoadServerConfig merges cfg with CSP_RISK_MCP_* environment variables.
// Explicitly set fields take precedence; env fills the rest, then defaults.
func LoadServerConfig(cfg *ServerConfig) (*ServerConfig, error) {
	return mergeServerConfig(cfg, os.LookupEnv)
}

func mergeServerConfig(cfg *ServerConfig, lookup func(string) (string, bool)) (*ServerConfig, error) {
	merged := ServerConfig{}
	if cfg != nil {
		merged = *cfg
	}
	defaults := DefaultServerConfig()

	if merged.Name == "" {
		merged.Name = envOr(lookup, EnvServerName, defaults.Name)
	}
	if merged.Version == "" {
		merged.Version = envOr(lookup, EnvServerVersion, defaults.Version)
	}
	if merged.AuditLevel == "" {
		merged.AuditLevel = strings.ToLower(envOr(lookup, EnvAuditLevel, defaults.AuditLevel))
	}
	if merged.PatternPackPath == "" {
		merged.PatternPackPath = envOr(lookup, EnvPatternPack, "")
	}

	if merged.RequestsPerSecond == 0 {
		merged.RequestsPerSecond = defaults.RequestsPerSecond
		if v, ok := lookup(EnvRateLimit); ok && v != "" {
			rps, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", EnvRateLimit, v, err)
			}
			merged.RequestsPerSecond = rps
		}
	}
	if merged.Burst == 0 {
		merged.Burst = defaults.Burst
		if v, ok := lookup(EnvRateBurst); ok && v != "" {
			burst, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", EnvRateBurst, v, err)
			}
			merged.Burst = burst
		}
	}
	if merged.MaxInputBytes == 0 {
		merged.MaxInputBytes = defaults.MaxInputBytes
		if v, ok := lookup(EnvMaxInputBytes); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", EnvMaxInputBytes, v, err)
			}
			merged.MaxInputBytes = n
		}
	}
	if !merged.WatchPatternPack {
		if v, ok := lookup(EnvWatchPack); ok && v != "" {
			watch, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", EnvWatchPack, v, err)
			}
			merged.WatchPatternPack = watch
		}
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Validate checks the merged configuration
func (c *ServerConfig) Validate() error {
	switch c.AuditLevel {
	case AuditLevelMinimal, AuditLevelStandard, AuditLevelVerbose:
	default:
		return fmt.Errorf("invalid audit level %q", c.AuditLevel)
	}
	if c.MaxInputBytes < 0 {
		return fmt.Errorf("max input bytes must not be negative")
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		return fmt.Errorf("rate burst must be at least 1 when rate limiting is enabled")
	}
	if c.WatchPatternPack && c.PatternPackPath == "" {
		return fmt.Errorf("watching requires a pattern pack path")
	}
	return nil
}

func envOr(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

// ClientConfig configures a stdio client of a remote csp-risk MCP server
type ClientConfig struct {
	// Command is the server executable; Args are passed to it
	Command string
	Args    []string
	Env     []string

	Timeout      time.Duration
	RetryCount   int
	RetryBackoff time.Duration
}

// DiscoverServers lists candidate server executables from the environment
// and common install locations, in that order
func DiscoverServers() ([]string, error) {
	var servers []string

	if path := os.Getenv(EnvServerPath); path != "" {
		servers = append(servers, path)
	}

	if list := os.Getenv(EnvServerList); list != "" {
		for _, path := range strings.Split(list, ",") {
			if path = strings.TrimSpace(path); path != "" {
				servers = append(servers, path)
			}
		}
	}

	commonPaths := []string{
		"./csp-risk",
		filepath.Join(os.Getenv("HOME"), ".local/bin/csp-risk"),
		"/usr/local/bin/csp-risk",
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			servers = append(servers, path)
		}
	}

	if len(servers) == 0 {
		return nil, fmt.Errorf("no csp-risk MCP server found; set %s or %s", EnvServerPath, EnvServerList)
	}
	return servers, nil
}
