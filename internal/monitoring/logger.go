// Package monitoring holds the diagnostic logger shared by the rig loops.
package monitoring

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger so tests can redirect or mute loop output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Recorder collects formatted log lines.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *Recorder) logf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

// Lines returns a copy of every line captured so far.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Count returns how many captured lines contain substr.
func (r *Recorder) Count(substr string) int {
	n := 0
	for _, l := range r.Lines() {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

// Capture redirects Logf into a Recorder until restore is called.
// Tests that capture must not run in parallel with each other.
func Capture() (rec *Recorder, restore func()) {
	original := Logf
	rec = &Recorder{}
	Logf = rec.logf
	return rec, func() { Logf = original }
}
