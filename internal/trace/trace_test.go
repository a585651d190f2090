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

package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

// TestLogger_Format verifies the line layout: six fractional digits on
// the timestamp and on float fields, decimal integers, verbatim
// strings, and the blank line terminating the header.
func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Header([]string{"rate", "window"})
	l.Event(0.5, "send_data", "F1", "H1", 1024, 3)
	l.Event(1.25, "packet_rtt", "F1", 0.0421)
	l.Event(1.25, "buffer_diff", "L1", -1024)
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := strings.Join([]string{
		"rate",
		"window",
		"",
		"0.500000 send_data F1 H1 1024 3",
		"1.250000 packet_rtt F1 0.042100",
		"1.250000 buffer_diff L1 -1024",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("log output mismatch (-want +got):\n%s", diff)
	}
}

// fakePusher records RPush batches and succeeds.
type fakePusher struct {
	batches [][]interface{}
}

func (f *fakePusher) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	batch := make([]interface{}, len(values))
	copy(batch, values)
	f.batches = append(f.batches, batch)
	return redis.NewIntCmd(ctx, "rpush")
}

// TestRedisSink_Batching verifies that lines are pushed in batches of
// the configured size and that Flush drains the remainder.
func TestRedisSink_Batching(t *testing.T) {
	p := &fakePusher{}
	s := NewRedisSink(p, "k", 2)

	s.Line("a")
	if len(p.batches) != 0 {
		t.Fatalf("pushed before the batch filled")
	}
	s.Line("b")
	if len(p.batches) != 1 || len(p.batches[0]) != 2 {
		t.Fatalf("batch = %+v, want one push of 2", p.batches)
	}
	s.Line("c")
	s.Flush()
	if len(p.batches) != 2 || len(p.batches[1]) != 1 {
		t.Fatalf("flush did not drain the remainder: %+v", p.batches)
	}
}

// TestLogger_FansOutToSinks verifies that sinks get each formatted
// line, without the trailing newline.
func TestLogger_FansOutToSinks(t *testing.T) {
	p := &fakePusher{}
	sink := NewRedisSink(p, "k", 1)
	var buf bytes.Buffer
	l := New(&buf, sink)
	l.Event(2, "finish", "F1")

	if len(p.batches) != 1 {
		t.Fatalf("sink saw %d pushes, want 1", len(p.batches))
	}
	if got := p.batches[0][0].(string); got != "2.000000 finish F1" {
		t.Fatalf("sink line = %q", got)
	}
}

// TestMetrics_Observe verifies the Prometheus view of the event
// stream: per-kind counters, byte accounting on send_data, and the
// per-flow cwnd gauge.
func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	var buf bytes.Buffer
	l := New(&buf)
	l.AddObserver(m)

	l.Event(0.1, "send_data", "F1", "H1", 1024, 1)
	l.Event(0.2, "send_data", "F1", "H1", 1024, 2)
	l.Event(0.3, "packet_loss", "L1", "F1", 2)
	l.Event(0.4, "window_size", "F1", 3.5)

	if got := testutil.ToFloat64(m.events.WithLabelValues("send_data")); got != 2 {
		t.Fatalf("send_data counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.dataBytes); got != 2048 {
		t.Fatalf("data bytes = %v, want 2048", got)
	}
	if got := testutil.ToFloat64(m.drops); got != 1 {
		t.Fatalf("drops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cwnd.WithLabelValues("F1")); got != 3.5 {
		t.Fatalf("cwnd gauge = %v, want 3.5", got)
	}
}
