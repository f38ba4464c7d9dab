package indexing

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anortham/miller/internal/config"
	"github.com/anortham/miller/internal/grammar"
)

// TestDebouncerCoalescesRapidEdits confirms that several rapid events for
// the same path collapse into a single callback invocation, per
// spec.md §4.9's watcher debounce rule.
func TestDebouncerCoalescesRapidEdits(t *testing.T) {
	var mu sync.Mutex
	var changedCount int

	fw := &FileWatcher{
		ctx:       context.Background(),
		onChanged: func(path string) error { mu.Lock(); changedCount++; mu.Unlock(); return nil },
	}
	fw.debouncer = newEventDebouncer(30*time.Millisecond, fw)

	fw.debouncer.addEvent("/workspace/a.go", eventChanged)
	fw.debouncer.addEvent("/workspace/a.go", eventChanged)
	fw.debouncer.addEvent("/workspace/a.go", eventChanged)

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, changedCount)
}

// TestNewBinaryDetectorRejectsKnownExtensions confirms the ported
// extension database still flags common binary assets.
func TestNewBinaryDetectorRejectsKnownExtensions(t *testing.T) {
	bd := NewBinaryDetector()
	require.True(t, bd.IsBinaryByExtension("logo.png"))
	require.True(t, bd.IsBinaryByExtension("archive.zip"))
	require.False(t, bd.IsBinaryByExtension("main.go"))
	require.False(t, bd.IsBinaryByExtension("bundle.min.js"))
}

func TestScannerRespectsExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "lib.go"), []byte("package vendor\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	cfg := config.Default(dir)
	cfg.Exclude = []string{"vendor/**"}
	scanner := NewScanner(grammar.NewRegistry(), cfg)

	paths, err := scanner.Discover(dir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, filepath.Join(dir, "main.go"), paths[0])
}
