//go:build leaktests
// +build leaktests

package indexing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestCoordinatorShutdownLeavesNoGoroutines confirms Shutdown stops the
// watcher goroutines it started, so repeated open/index/close cycles
// (the MCP and editor-plugin embedding pattern) don't accumulate leaked
// workers.
func TestCoordinatorShutdownLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "hello.go")
	writeGoFile(t, file, "package hello\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	coord, _ := newTestCoordinator(t, dir, false)
	coord.cfg.EnableWatcher = true

	require.NoError(t, coord.IndexWorkspace(context.Background(), dir))
	require.NoError(t, coord.EnableWatcher(dir))
	require.NoError(t, coord.Shutdown())

	time.Sleep(150 * time.Millisecond)
}
