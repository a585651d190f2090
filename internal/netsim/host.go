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
	"github.com/yingyuho/networksim/internal/trace"
	"github.com/yingyuho/networksim/pkg/sim"
)

// DefaultSonarInterval is how often a host starts a new routing round.
const DefaultSonarInterval = 5.0

// Sender is the send side of a flow as the host sees it: a queue of
// data packets to put on the wire and a handler for returning acks.
// The flow package provides the implementation.
type Sender interface {
	ID() string
	Outbox() *sim.Store
	HandleAck(ackNo int, echoTS float64, hasTS bool)
}

// Host is an endpoint: it owns outgoing flows, acknowledges incoming
// data, and periodically floods sonar packets to keep routing current.
// A host has exactly one port.
type Host struct {
	node
	sim           *sim.Simulation
	log           *trace.Logger
	flows         map[string]Sender
	ackers        map[string]*acker
	sonarInterval float64
	sonarVersion  int
}

// NewHost builds a host and starts its sonar round task. The first
// round fires immediately so forwarding tables exist before most flows
// start.
func NewHost(s *sim.Simulation, log *trace.Logger, id string) *Host {
	h := &Host{
		node:          newNode(id, 1),
		sim:           s,
		log:           log,
		flows:         make(map[string]Sender),
		ackers:        make(map[string]*acker),
		sonarInterval: DefaultSonarInterval,
	}
	s.Spawn("sonar:"+id, h.sonarLoop)
	return h
}

// AttachFlow registers an outgoing flow and starts the task that drains
// its outbox onto the wire.
func (h *Host) AttachFlow(f Sender) {
	h.flows[f.ID()] = f
	h.sim.Spawn("send:"+f.ID(), func(p *sim.Proc) error {
		for {
			v, err := f.Outbox().Get(p)
			if err != nil {
				return nil
			}
			pk := v.(*DataPacket)
			h.log.Event(h.sim.Now(), "send_data", f.ID(), h.id, pk.Size(), pk.Number)
			h.emit(pk)
		}
	})
}

// Receive dispatches into the packet's host visitor.
func (h *Host) Receive(pk Packet, from string) {
	pk.VisitHost(h)
}

// emit puts a packet on the host's single attached link. Broadcasting
// to all ports and sending degenerate to the same thing at degree one.
func (h *Host) emit(pk Packet) {
	for _, id := range h.portOrder {
		h.ports[id].Receive(pk, h.id)
	}
}

func (h *Host) sonarLoop(p *sim.Proc) error {
	for {
		h.sonarVersion++
		h.emit(&SonarPacket{Src: h.id, Version: h.sonarVersion})
		if err := p.Sleep(h.sonarInterval); err != nil {
			return nil
		}
	}
}

// receiveData acknowledges an arriving data packet. The per-flow acker
// decides the cumulative ack number; duplicates below the cumulative
// edge owe no ack at all. The send timestamp is echoed back only when
// the edge advanced, so retransmissions never pollute RTT samples.
func (h *Host) receiveData(pk *DataPacket) {
	h.log.Event(h.sim.Now(), "receive_data", pk.FlowID, h.id, pk.Number)
	a, ok := h.ackers[pk.FlowID]
	if !ok {
		a = newAcker()
		h.ackers[pk.FlowID] = a
	}
	ackNo, advanced, ok := a.input(pk.Number)
	if !ok {
		return
	}
	ack := &AckPacket{
		Src:    h.id,
		Dest:   pk.Src,
		FlowID: pk.FlowID,
		Number: ackNo,
	}
	if advanced {
		ack.EchoTS = pk.SentAt
		ack.HasTS = true
	}
	h.log.Event(h.sim.Now(), "send_ack", pk.FlowID, h.id, ackNo)
	h.emit(ack)
}

func (h *Host) receiveAck(pk *AckPacket) {
	h.log.Event(h.sim.Now(), "receive_ack", pk.FlowID, h.id, pk.Number)
	f, ok := h.flows[pk.FlowID]
	if !ok {
		return
	}
	f.HandleAck(pk.Number, pk.EchoTS, pk.HasTS)
}

func (h *Host) receiveSonar(pk *SonarPacket) {
	h.emit(&EchoPacket{Src: pk.Src, Dest: h.id, Version: pk.Version})
}
