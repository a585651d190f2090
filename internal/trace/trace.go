// Copyright 2025 Ying-Yu Ho. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package trace implements the simulator's event log: a line-oriented,
// append-only sink shared by every component. Each line is
//
//	<time_seconds> <event_kind> <id_or_ids> [numeric fields]
//
// with the time printed to six fractional digits. The log is the
// simulation's data product; post-processors treat it as append-only and
// bin it into time-series metrics downstream.
package trace

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Sink receives every formatted event line, without the trailing
// newline. Sinks let the same log fan out to secondary destinations
// (Redis, metrics) without the components knowing about them.
type Sink interface {
	Line(line string)
}

// Observer receives the structured form of every event before
// formatting. Used for metric extraction.
type Observer interface {
	Observe(t float64, kind string, fields []string)
}

// Logger is the shared event-log writer. Writes are line-atomic; order
// within a simulated instant is the order in which components emitted,
// which the kernel makes deterministic.
type Logger struct {
	mu        sync.Mutex
	w         *bufio.Writer
	sinks     []Sink
	observers []Observer
}

// New returns a logger writing to w. Optional sinks receive a copy of
// every line.
func New(w io.Writer, sinks ...Sink) *Logger {
	return &Logger{w: bufio.NewWriterSize(w, 1<<20), sinks: sinks}
}

// AddObserver registers an observer for structured events.
func (l *Logger) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

// Header writes the verbatim header lines followed by the single blank
// line that terminates the header section. Call before any Event.
func (l *Logger) Header(lines []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ln := range lines {
		l.w.WriteString(ln)
		l.w.WriteByte('\n')
	}
	l.w.WriteByte('\n')
}

// Event appends one log line at virtual time t. Fields may be strings,
// ints, or float64s; floats are printed with six fractional digits like
// the timestamp.
func (l *Logger) Event(t float64, kind string, fields ...any) {
	strs := make([]string, len(fields))
	for i, f := range fields {
		strs[i] = formatField(f)
	}
	for _, o := range l.observers {
		o.Observe(t, kind, strs)
	}

	var b strings.Builder
	b.WriteString(strconv.FormatFloat(t, 'f', 6, 64))
	b.WriteByte(' ')
	b.WriteString(kind)
	for _, s := range strs {
		b.WriteByte(' ')
		b.WriteString(s)
	}
	line := b.String()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.WriteString(line)
	l.w.WriteByte('\n')
	for _, s := range l.sinks {
		s.Line(line)
	}
}

// Flush forces buffered lines out to the underlying writer and tells
// every sink to do the same if it buffers.
func (l *Logger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sinks {
		if f, ok := s.(interface{ Flush() error }); ok {
			f.Flush()
		}
	}
	return l.w.Flush()
}

func formatField(f any) string {
	switch v := f.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', 6, 64)
	default:
		panic("trace: unsupported field type")
	}
}
