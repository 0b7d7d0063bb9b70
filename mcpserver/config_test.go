package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestMergeServerConfigDefaults(t *testing.T) {
	cfg, err := mergeServerConfig(nil, lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultServerConfig(), cfg)
}

// TestMergeServerConfigPrecedence demonstrates explicit values winning over env
func TestMergeServerConfigPrecedence(t *testing.T) {
	env := lookupFrom(map[string]string{
		EnvServerName:    "from-env",
		EnvRateLimit:     "2.5",
		EnvRateBurst:     "5",
		EnvMaxInputBytes: "2048",
		EnvAuditLevel:    "VERBOSE",
		EnvPatternPack:   "/etc/csp-risk/patterns.yaml",
		EnvWatchPack:     "true",
	})

	cfg, err := mergeServerConfig(&ServerConfig{Name: "explicit", Burst: 9}, env)
	require.NoError(t, err)

	assert.Equal(t, "explicit", cfg.Name)
	assert.Equal(t, "0.1.0", cfg.Version)
	assert.Equal(t, 2.5, cfg.RequestsPerSecond)
	assert.Equal(t, 9, cfg.Burst)
	assert.Equal(t, 2048, cfg.MaxInputBytes)
	assert.Equal(t, AuditLevelVerbose, cfg.AuditLevel)
	assert.Equal(t, "/etc/csp-risk/patterns.yaml", cfg.PatternPackPath)
	assert.True(t, cfg.WatchPatternPack)
}

func TestMergeServerConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		cfg  *ServerConfig
	}{
		{"bad rate", map[string]string{EnvRateLimit: "fast"}, nil},
		{"bad burst", map[string]string{EnvRateBurst: "many"}, nil},
		{"bad size", map[string]string{EnvMaxInputBytes: "1MB"}, nil},
		{"bad watch", map[string]string{EnvWatchPack: "sometimes"}, nil},
		{"bad audit level", map[string]string{EnvAuditLevel: "loud"}, nil},
		{"watch without pack", map[string]string{EnvWatchPack: "1"}, nil},
		{"negative size", nil, &ServerConfig{MaxInputBytes: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mergeServerConfig(tt.cfg, lookupFrom(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadServerConfigReadsEnvironment(t *testing.T) {
	t.Setenv(EnvServerVersion, "2.0.0")
	t.Setenv(EnvRateLimit, "0")

	cfg, err := LoadServerConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", cfg.Version)
	assert.Equal(t, float64(0), cfg.RequestsPerSecond)
	assert.Nil(t, NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst))
}

func TestDiscoverServers(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvServerPath, "/opt/csp-risk/bin/csp-risk")
	t.Setenv(EnvServerList, " /a/csp-risk , ,/b/csp-risk")

	servers, err := DiscoverServers()
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/csp-risk/bin/csp-risk", "/a/csp-risk", "/b/csp-risk"}, servers[:3])
}
