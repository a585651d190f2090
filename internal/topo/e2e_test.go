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

package topo

import (
	"strconv"
	"strings"
	"testing"

	"github.com/yingyuho/networksim/internal/trace"
	"github.com/yingyuho/networksim/pkg/sim"
)

// runScenario parses, builds, and runs one topology, returning the
// event log lines and the built network.
func runScenario(t *testing.T, input, algorithm string, until float64) ([]string, *Network) {
	t.Helper()
	top, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf strings.Builder
	log := trace.New(&buf)
	s := sim.New()
	net, err := Build(s, log, top, algorithm)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s.Run(until)
	if err := log.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	var lines []string
	for _, ln := range strings.Split(buf.String(), "\n") {
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, ln)
		}
	}
	return lines, net
}

func parseTime(t *testing.T, line string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(strings.Fields(line)[0], 64)
	if err != nil {
		t.Fatalf("bad timestamp in %q: %v", line, err)
	}
	return v
}

const sanityTopology = `
H1
H2
-
R1
-
L1 H1 R1 10 10 64
L2 R1 H2 10 10 64
-
F1 H1 H2 0.02 0.5
-
`

// TestEndToEnd_Sanity runs a two-link, one-router transfer to
// completion and checks the universal log properties: monotonic
// timestamps, every data packet delivered without loss, matched
// ack pairs, and silence after finish.
func TestEndToEnd_Sanity(t *testing.T) {
	lines, net := runScenario(t, sanityTopology, "tahoe", 30)

	if !net.Flows[0].Finished() {
		t.Fatalf("flow did not finish within the horizon")
	}
	wantPackets := net.Flows[0].NumPackets()
	if wantPackets != 20 {
		t.Fatalf("packet budget = %d, want 20", wantPackets)
	}

	var finishAt float64 = -1
	received := make(map[int]bool)
	sendAcks := make(map[int]int)
	prev := 0.0
	for _, ln := range lines {
		ts := parseTime(t, ln)
		if ts < prev {
			t.Fatalf("time moved backward at %q", ln)
		}
		prev = ts
		fields := strings.Fields(ln)
		switch fields[1] {
		case "packet_loss":
			t.Fatalf("unexpected loss with 64 KB buffers: %q", ln)
		case "receive_data":
			n, _ := strconv.Atoi(fields[4])
			received[n] = true
		case "send_ack":
			n, _ := strconv.Atoi(fields[4])
			sendAcks[n]++
		case "receive_ack":
			n, _ := strconv.Atoi(fields[4])
			if sendAcks[n] == 0 {
				t.Fatalf("receive_ack %d without a matching send_ack", n)
			}
		case "finish":
			finishAt = ts
		case "send_data":
			if finishAt >= 0 {
				t.Fatalf("send_data after finish: %q", ln)
			}
		}
	}
	if finishAt < 0 {
		t.Fatalf("no finish line in the log")
	}
	for n := 1; n <= wantPackets; n++ {
		if !received[n] {
			t.Fatalf("packet %d never delivered", n)
		}
	}
}

// TestEndToEnd_Deterministic replays the same scenario and requires a
// byte-identical event log.
func TestEndToEnd_Deterministic(t *testing.T) {
	first, _ := runScenario(t, sanityTopology, "fast", 20)
	second, _ := runScenario(t, sanityTopology, "fast", 20)
	if len(first) != len(second) {
		t.Fatalf("replay produced %d lines vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("replay diverged at line %d:\n%s\n%s", i, first[i], second[i])
		}
	}
}

const tailDropTopology = `
H1
H2
-
R1
-
L1 H1 R1 10 10 3
L2 R1 H2 10 10 64
-
F1 H1 H2 0.05 0.5
-
`

// TestEndToEnd_TailDrop shrinks the first link's buffer until slow
// start overflows it: the run must log at least one loss on that link
// and one retransmission, and the flow must still finish.
func TestEndToEnd_TailDrop(t *testing.T) {
	lines, net := runScenario(t, tailDropTopology, "tahoe", 120)

	if !net.Flows[0].Finished() {
		t.Fatalf("flow did not recover from losses")
	}
	losses, retransmits := 0, 0
	for _, ln := range lines {
		fields := strings.Fields(ln)
		switch fields[1] {
		case "packet_loss":
			if fields[2] != "L1" {
				t.Fatalf("loss on %s, expected only on the bottleneck L1", fields[2])
			}
			losses++
		case "retransmit":
			retransmits++
		}
	}
	if losses == 0 {
		t.Fatalf("no packet_loss despite a 3 KB buffer")
	}
	if retransmits == 0 {
		t.Fatalf("losses without retransmissions")
	}
}

const diamondTopology = `
H1
H2
-
R1
R2
R3
R4
-
L0 H1 R1 10 1 64
L1 R1 R2 10 1 64
L2 R1 R3 10 50 64
L3 R2 R4 10 1 64
L4 R3 R4 10 50 64
L5 R4 H2 10 1 64
-
F1 H1 H2 0.01 1
-
`

// TestEndToEnd_DynamicRouting runs the two-path diamond: after the
// sonar rounds, every router on the fast path must forward toward H2
// along it, and the transfer completes over that path.
func TestEndToEnd_DynamicRouting(t *testing.T) {
	_, net := runScenario(t, diamondTopology, "tahoe", 15)

	if port, ok := net.Routers["R1"].Forward("H2"); !ok || port != "L1" {
		t.Fatalf("R1 forward[H2] = (%q, %v), want the fast path L1", port, ok)
	}
	if port, ok := net.Routers["R2"].Forward("H2"); !ok || port != "L3" {
		t.Fatalf("R2 forward[H2] = (%q, %v), want L3", port, ok)
	}
	if port, ok := net.Routers["R4"].Forward("H1"); !ok || port != "L3" {
		t.Fatalf("R4 forward[H1] = (%q, %v), want the fast path L3", port, ok)
	}
	if net.Routers["R1"].RoundOf("H1") < 2 {
		t.Fatalf("R1 saw %d sonar rounds from H1, want at least 2", net.Routers["R1"].RoundOf("H1"))
	}
	if !net.Flows[0].Finished() {
		t.Fatalf("flow did not finish across the diamond")
	}
}

// TestEndToEnd_TwoFlows runs two symmetric flows into the same
// bottleneck and checks both complete, exercising per-flow ackers and
// per-flow window state on shared devices.
func TestEndToEnd_TwoFlows(t *testing.T) {
	const twoFlows = `
H1
H2
H3
-
R1
R2
-
L1 H1 R1 10 5 64
L2 H2 R1 10 5 64
L3 R1 R2 10 5 64
L4 R2 H3 10 5 64
-
F1 H1 H3 0.01 0.5
F2 H2 H3 0.01 0.6
-
`
	_, net := runScenario(t, twoFlows, "fast", 60)
	for _, f := range net.Flows {
		if !f.Finished() {
			t.Fatalf("flow %s did not finish", f.ID())
		}
	}
}
