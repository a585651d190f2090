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

// Packet sizes in bytes. Rates are megabits per second, delays
// milliseconds, buffers kilobytes (1000 bytes) at the builder surface.
const (
	DataPacketSize  = 1024
	DataPayloadSize = 1024
	AckPacketSize   = 64
	SonarPacketSize = 64
	EchoPacketSize  = 64
)

// Packet is the unit devices exchange. Behavior on arrival lives with
// the packet: the receiving device dispatches into the kind-specific
// visitor, so routers and hosts stay free of per-kind switches.
type Packet interface {
	Size() int
	VisitRouter(r *Router, from string)
	VisitHost(h *Host)
}

// DataPacket carries one payload unit of a flow. Number starts at 1.
// SentAt is the (re)transmission timestamp the receiver may echo back.
type DataPacket struct {
	Src    string
	Dest   string
	FlowID string
	Number int
	SentAt float64
}

func (p *DataPacket) Size() int { return DataPacketSize }

// VisitRouter forwards by destination host; an unknown destination is
// flooded on every other port so early packets still arrive before the
// first sonar round has populated the tables.
func (p *DataPacket) VisitRouter(r *Router, from string) {
	if port, ok := r.forward[p.Dest]; ok {
		r.sendTo(p, port)
		return
	}
	r.broadcastExcept(p, from)
}

func (p *DataPacket) VisitHost(h *Host) {
	h.receiveData(p)
}

// AckPacket acknowledges cumulative receipt: Number is the smallest
// packet number the receiver has never seen. EchoTS echoes the data
// packet's send timestamp only when the ack advanced the cumulative
// edge; retransmission-tainted acks carry no echo so RTT samples stay
// clean.
type AckPacket struct {
	Src    string
	Dest   string
	FlowID string
	Number int
	EchoTS float64
	HasTS  bool
}

func (p *AckPacket) Size() int { return AckPacketSize }

func (p *AckPacket) VisitRouter(r *Router, from string) {
	if port, ok := r.forward[p.Dest]; ok {
		r.sendTo(p, port)
		return
	}
	r.broadcastExcept(p, from)
}

func (p *AckPacket) VisitHost(h *Host) {
	h.receiveAck(p)
}

// SonarPacket floods outward from a host to refresh routing state.
// Version increases once per round so routers can recognize and follow
// only the earliest-arriving copy of the current round.
type SonarPacket struct {
	Src     string
	Version int
}

func (p *SonarPacket) Size() int { return SonarPacketSize }

// VisitRouter implements reverse-path flooding: the first copy of a new
// round records the arrival port as the way back to Src and floods on;
// every later copy of the same round is dropped.
func (p *SonarPacket) VisitRouter(r *Router, from string) {
	if r.version[p.Src] >= p.Version {
		return
	}
	r.version[p.Src] = p.Version
	r.reverse[p.Src] = from
	r.broadcastExcept(p, from)
}

func (p *SonarPacket) VisitHost(h *Host) {
	h.receiveSonar(p)
}

// EchoPacket travels back toward the sonar source along the reverse
// path, installing forwarding entries toward Dest as it goes. Together
// with the sonar flood this builds a shortest-latency tree per round.
type EchoPacket struct {
	Src     string
	Dest    string
	Version int
}

func (p *EchoPacket) Size() int { return EchoPacketSize }

// VisitRouter installs the forward entry and relays toward the sonar
// source. Echoes from stale rounds, or arriving before the round's
// sonar, are dropped by the version gate.
func (p *EchoPacket) VisitRouter(r *Router, from string) {
	if r.version[p.Src] != p.Version {
		return
	}
	r.forward[p.Dest] = from
	if back, ok := r.reverse[p.Src]; ok {
		r.sendTo(p, back)
	}
}

func (p *EchoPacket) VisitHost(h *Host) {
	// The echo has reached the sonar source; nothing left to do.
}
