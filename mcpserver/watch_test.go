package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SamuelRCrider/csp-risk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitReload(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("pattern pack was not reloaded")
		return nil
	}
}

// TestPatternPackWatcherReloads demonstrates reload on change and the
// previous patterns surviving a broken edit
func TestPatternPackWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	pack := core.GenerateDefaultPatternPack()
	require.NoError(t, core.SavePatternPack(pack, path))

	cfg := DefaultServerConfig()
	cfg.PatternPackPath = path
	cfg.WatchPatternPack = true
	s := newTestServer(t, cfg)
	require.Len(t, s.engine.ListCustomPatterns(), len(pack.Patterns))

	w, err := NewPatternPackWatcher(path, s.ReloadPatternPack, discardLogger())
	require.NoError(t, err)
	reloaded := make(chan error, 4)
	w.reloaded = reloaded
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	next := core.GenerateDefaultPatternPack()
	next.Metadata.Version = "2.0.0"
	next.Patterns = next.Patterns[:1]
	require.NoError(t, core.SavePatternPack(next, path))

	require.NoError(t, waitReload(t, reloaded))
	assert.Len(t, s.engine.ListCustomPatterns(), 1)

	require.NoError(t, os.WriteFile(path, []byte("metadata: [not a pack"), 0644))
	assert.Error(t, waitReload(t, reloaded))
	assert.Len(t, s.engine.ListCustomPatterns(), 1)
}

func TestNewPatternPackWatcherErrors(t *testing.T) {
	_, err := NewPatternPackWatcher("", nil, discardLogger())
	assert.Error(t, err)

	_, err = NewPatternPackWatcher(filepath.Join(t.TempDir(), "missing", "patterns.yaml"), nil, discardLogger())
	assert.Error(t, err)
}
