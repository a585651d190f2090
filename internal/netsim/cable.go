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

// Cable is one direction of a Link: a finite byte buffer with tail-drop
// admission in front of a serialize-then-propagate service loop.
//
// Two counters split the accounting: buffered holds the bytes occupying
// the buffer (admission reserves, service releases after serialization),
// ready holds the bytes the service loop has yet to consume. Control
// packets share the buffer with data and are subject to the same tail
// drop, but only dropped Data packets produce a packet_loss event.
type Cable struct {
	sim      *sim.Simulation
	log      *trace.Logger
	linkID   string
	rateBps  float64
	delay    float64 // propagation, seconds
	buffered *sim.Container
	ready    *sim.Container
	fifo     *sim.Store
	dst      Device
}

func newCable(s *sim.Simulation, log *trace.Logger, linkID string, rateBps, delaySec float64, capacityBytes int, dst Device) *Cable {
	c := &Cable{
		sim:      s,
		log:      log,
		linkID:   linkID,
		rateBps:  rateBps,
		delay:    delaySec,
		buffered: s.NewContainer(capacityBytes),
		ready:    s.NewContainer(0),
		fifo:     s.NewStore(),
		dst:      dst,
	}
	s.Spawn("cable:"+linkID+"->"+dst.ID(), c.serve)
	return c
}

// feed admits a packet from the upstream endpoint. Admission reserves
// the packet's size against the buffer; a reservation that would exceed
// capacity drops the packet on the spot.
func (c *Cable) feed(pk Packet) {
	size := pk.Size()
	if !c.buffered.TryPut(size) {
		if d, ok := pk.(*DataPacket); ok {
			c.log.Event(c.sim.Now(), "packet_loss", c.linkID, d.FlowID, d.Number)
		}
		return
	}
	c.log.Event(c.sim.Now(), "buffer_diff", c.linkID, size)
	c.fifo.Put(pk)
	c.ready.Add(size)
}

// serve is the service loop: wait for work, serialize the head packet at
// the line rate, free its buffer bytes, then deliver it to the opposite
// endpoint one propagation delay later. FIFO order of admission is
// preserved end to end.
func (c *Cable) serve(p *sim.Proc) error {
	for {
		if err := c.ready.Get(p, 1); err != nil {
			return nil
		}
		v, err := c.fifo.Get(p)
		if err != nil {
			return nil
		}
		pk := v.(Packet)
		size := pk.Size()
		if size > 1 {
			if err := c.ready.Get(p, size-1); err != nil {
				return nil
			}
		}
		if err := p.Sleep(float64(size) * 8 / c.rateBps); err != nil {
			return nil
		}
		now := c.sim.Now()
		c.log.Event(now, "transmission", c.linkID, size)
		c.buffered.Take(size)
		c.log.Event(now, "buffer_diff", c.linkID, -size)

		delivered := pk
		c.sim.At(c.delay, func() {
			c.dst.Receive(delivered, c.linkID)
		})
	}
}
