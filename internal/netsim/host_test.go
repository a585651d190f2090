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

package netsim

import (
	"bytes"
	"testing"

	"github.com/yingyuho/networksim/internal/trace"
	"github.com/yingyuho/networksim/pkg/sim"
)

func wireHost(t *testing.T) (*sim.Simulation, *Host, *recorder) {
	t.Helper()
	s := sim.New()
	var buf bytes.Buffer
	h := NewHost(s, trace.New(&buf), "H2")
	wire := newRecorder(s, "L1")
	if err := Attach(h, wire); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return s, h, wire
}

func lastAck(t *testing.T, wire *recorder) *AckPacket {
	t.Helper()
	for i := len(wire.got) - 1; i >= 0; i-- {
		if ack, ok := wire.got[i].pk.(*AckPacket); ok {
			return ack
		}
	}
	t.Fatalf("no ack on the wire")
	return nil
}

// TestHost_AcksData verifies the receive side: in-order data is acked
// with the advanced edge and the echoed send timestamp; out-of-order
// data repeats the old edge without an echo; duplicates below the edge
// are not acked at all.
func TestHost_AcksData(t *testing.T) {
	_, h, wire := wireHost(t)

	h.Receive(&DataPacket{Src: "H1", Dest: "H2", FlowID: "F1", Number: 1, SentAt: 0.25}, "L1")
	ack := lastAck(t, wire)
	if ack.Number != 2 || !ack.HasTS || ack.EchoTS != 0.25 {
		t.Fatalf("in-order ack = %+v, want number 2 echoing 0.25", ack)
	}
	if ack.Src != "H2" || ack.Dest != "H1" || ack.FlowID != "F1" {
		t.Fatalf("ack addressing = %+v", ack)
	}

	// A gap: the edge stays at 2 and nothing is echoed.
	h.Receive(&DataPacket{Src: "H1", Dest: "H2", FlowID: "F1", Number: 4, SentAt: 0.5}, "L1")
	ack = lastAck(t, wire)
	if ack.Number != 2 || ack.HasTS {
		t.Fatalf("out-of-order ack = %+v, want repeated 2 with no echo", ack)
	}

	acks := len(wire.got)
	// Below the edge: already acknowledged, owes nothing.
	h.Receive(&DataPacket{Src: "H1", Dest: "H2", FlowID: "F1", Number: 1, SentAt: 0.75}, "L1")
	if len(wire.got) != acks {
		t.Fatalf("duplicate below the edge produced a reply")
	}

	// Filling the gap advances past the parked packet.
	h.Receive(&DataPacket{Src: "H1", Dest: "H2", FlowID: "F1", Number: 2, SentAt: 1.0}, "L1")
	h.Receive(&DataPacket{Src: "H1", Dest: "H2", FlowID: "F1", Number: 3, SentAt: 1.1}, "L1")
	ack = lastAck(t, wire)
	if ack.Number != 5 || !ack.HasTS {
		t.Fatalf("gap-fill ack = %+v, want cumulative 5 with echo", ack)
	}
}

// TestHost_SonarRounds verifies that the host floods a sonar with an
// increasing version each interval and answers a foreign sonar with an
// echo naming itself.
func TestHost_SonarRounds(t *testing.T) {
	s, h, wire := wireHost(t)
	s.Run(11)

	var versions []int
	for _, a := range wire.got {
		if sn, ok := a.pk.(*SonarPacket); ok {
			if sn.Src != "H2" {
				t.Fatalf("sonar src = %q, want H2", sn.Src)
			}
			versions = append(versions, sn.Version)
		}
	}
	// Rounds at t=0, 5, 10.
	if len(versions) != 3 || versions[0] != 1 || versions[1] != 2 || versions[2] != 3 {
		t.Fatalf("sonar versions = %v, want [1 2 3]", versions)
	}

	h.Receive(&SonarPacket{Src: "H1", Version: 7}, "L1")
	last := wire.got[len(wire.got)-1].pk
	echo, ok := last.(*EchoPacket)
	if !ok || echo.Src != "H1" || echo.Dest != "H2" || echo.Version != 7 {
		t.Fatalf("sonar reply = %+v, want echo H1/H2 v7", last)
	}
}

// TestHost_DrainsFlowOutbox verifies that an attached flow's queued
// packets are put on the wire in order and logged as send_data.
func TestHost_DrainsFlowOutbox(t *testing.T) {
	s := sim.New()
	var buf bytes.Buffer
	log := trace.New(&buf)
	h := NewHost(s, log, "H1")
	wire := newRecorder(s, "L1")
	if err := Attach(h, wire); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	f := &stubSender{id: "F1", outbox: s.NewStore()}
	h.AttachFlow(f)
	s.At(0, func() {
		f.outbox.Put(&DataPacket{Src: "H1", Dest: "H2", FlowID: "F1", Number: 1})
		f.outbox.Put(&DataPacket{Src: "H1", Dest: "H2", FlowID: "F1", Number: 2})
	})
	s.Run(1)

	var numbers []int
	for _, a := range wire.got {
		if d, ok := a.pk.(*DataPacket); ok {
			numbers = append(numbers, d.Number)
		}
	}
	if len(numbers) != 2 || numbers[0] != 1 || numbers[1] != 2 {
		t.Fatalf("wire saw data %v, want [1 2]", numbers)
	}
}

// TestHost_RoutesAcksToFlow verifies that a returning ack reaches the
// owning flow with its echo intact.
func TestHost_RoutesAcksToFlow(t *testing.T) {
	s := sim.New()
	var buf bytes.Buffer
	h := NewHost(s, trace.New(&buf), "H1")
	wire := newRecorder(s, "L1")
	if err := Attach(h, wire); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	f := &stubSender{id: "F1", outbox: s.NewStore()}
	h.AttachFlow(f)

	h.Receive(&AckPacket{Src: "H2", Dest: "H1", FlowID: "F1", Number: 4, EchoTS: 1.5, HasTS: true}, "L1")
	if len(f.acks) != 1 || f.acks[0].no != 4 || !f.acks[0].hasTS || f.acks[0].ts != 1.5 {
		t.Fatalf("flow acks = %+v, want one (4, 1.5, true)", f.acks)
	}

	// Acks for unknown flows are dropped without dispatch.
	h.Receive(&AckPacket{Src: "H2", Dest: "H1", FlowID: "F9", Number: 1}, "L1")
	if len(f.acks) != 1 {
		t.Fatalf("foreign ack reached the flow")
	}
}

type stubAck struct {
	no    int
	ts    float64
	hasTS bool
}

type stubSender struct {
	id     string
	outbox *sim.Store
	acks   []stubAck
}

func (s *stubSender) ID() string         { return s.id }
func (s *stubSender) Outbox() *sim.Store { return s.outbox }
func (s *stubSender) HandleAck(no int, ts float64, hasTS bool) {
	s.acks = append(s.acks, stubAck{no: no, ts: ts, hasTS: hasTS})
}
