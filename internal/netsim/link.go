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
	"fmt"

	"github.com/yingyuho/networksim/internal/trace"
	"github.com/yingyuho/networksim/pkg/sim"
)

// Link is a passive full-duplex segment: a pair of Cables, one per
// direction, between exactly two endpoints. A packet arriving from one
// endpoint enters the cable that delivers to the other.
type Link struct {
	node
	sim    *sim.Simulation
	log    *trace.Logger
	rate   float64 // bits per second
	delay  float64 // seconds
	bufCap int     // bytes per direction
	cables map[string]*Cable // keyed by the feeding endpoint's id
}

// NewLink builds an unconnected link. Rate is in Mbps, delay in
// milliseconds, buffer in kilobytes, matching the topology file units.
func NewLink(s *sim.Simulation, log *trace.Logger, id string, rateMbps, delayMs, bufferKB float64) *Link {
	return &Link{
		node:   newNode(id, 2),
		sim:    s,
		log:    log,
		rate:   rateMbps * 1e6,
		delay:  delayMs / 1e3,
		bufCap: int(bufferKB * 1000),
		cables: make(map[string]*Cable),
	}
}

// Connect attaches the link between a and b and brings up both cables.
func (l *Link) Connect(a, b Device) error {
	if err := Attach(l, a); err != nil {
		return err
	}
	if err := Attach(l, b); err != nil {
		return err
	}
	l.cables[a.ID()] = newCable(l.sim, l.log, l.id, l.rate, l.delay, l.bufCap, b)
	l.cables[b.ID()] = newCable(l.sim, l.log, l.id, l.rate, l.delay, l.bufCap, a)
	return nil
}

// Receive routes the packet into the cable belonging to the arriving
// side; its service loop eventually delivers to the opposite device.
func (l *Link) Receive(pk Packet, from string) {
	c, ok := l.cables[from]
	if !ok {
		panic(fmt.Sprintf("link %q: packet from unattached device %q", l.id, from))
	}
	c.feed(pk)
}
