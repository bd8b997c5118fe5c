package rbpf

import (
	"io"
	"log"
	"sync/atomic"
)

// LogWriters routes the sampler's three log streams. A nil writer turns
// its stream off.
//
//   - Ops: particle failures and anything an operator must act on.
//   - Diag: one line per particle per frame (group count, kills, exact and
//     proposal probability, weight multiplier, cache hit rate).
//   - Trace: one line per detection group with the full proposal
//     distribution and the drawn association. Very verbose.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

type stream int

const (
	streamOps stream = iota
	streamDiag
	streamTrace
	numStreams
)

// Read concurrently from every particle goroutine.
var loggers [numStreams]atomic.Pointer[log.Logger]

// SetLogWriters replaces all three streams at once.
func SetLogWriters(w LogWriters) {
	for s, out := range [numStreams]io.Writer{w.Ops, w.Diag, w.Trace} {
		if out == nil {
			loggers[s].Store(nil)
			continue
		}
		loggers[s].Store(log.New(out, "[rbpf] ", log.LstdFlags|log.Lmicroseconds))
	}
}

func logf(s stream, format string, args ...any) {
	if l := loggers[s].Load(); l != nil {
		l.Printf(format, args...)
	}
}

// Opsf logs a particle failure or lifecycle event.
func Opsf(format string, args ...any) { logf(streamOps, format, args...) }

// Diagf logs a per-frame summary.
func Diagf(format string, args ...any) { logf(streamDiag, format, args...) }

// Tracef logs a per-group proposal. Callers building expensive arguments
// should check traceEnabled first.
func Tracef(format string, args ...any) { logf(streamTrace, format, args...) }

func traceEnabled() bool { return loggers[streamTrace].Load() != nil }
