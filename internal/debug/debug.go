// Package debug provides opt-in diagnostic logging gated by the DEBUG
// environment variable, adapted from the teacher's internal/debug
// package and trimmed of its MCP-mode stdio suppression (this build has
// no MCP server to protect).
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu     sync.Mutex
	output io.Writer = os.Stderr
)

// SetOutput redirects debug output; pass nil to disable it entirely.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Enabled reports whether DEBUG=1 (or DEBUG=true) is set in the
// environment.
func Enabled() bool {
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Log writes a component-tagged debug line when debugging is enabled.
func Log(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
}

// LogIndexing logs a line tagged for the indexing coordinator.
func LogIndexing(format string, args ...interface{}) { Log("INDEX", format, args...) }

// LogSearch logs a line tagged for the search engine.
func LogSearch(format string, args ...interface{}) { Log("SEARCH", format, args...) }
