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

// Router forwards packets by table lookup. Three maps make up the
// control plane, all keyed by host id:
//
//	forward: destination host -> port for data and ack forwarding
//	reverse: sonar source -> port the current round arrived on first
//	version: sonar source -> latest round observed
//
// Tables are written only by packet visitors and read by lookups, both
// inside the kernel, so no locking is required.
type Router struct {
	node
	sim     *sim.Simulation
	log     *trace.Logger
	forward map[string]string
	reverse map[string]string
	version map[string]int
}

// NewRouter builds a router with empty tables and no port limit.
func NewRouter(s *sim.Simulation, log *trace.Logger, id string) *Router {
	return &Router{
		node:    newNode(id, 0),
		sim:     s,
		log:     log,
		forward: make(map[string]string),
		reverse: make(map[string]string),
		version: make(map[string]int),
	}
}

// Receive dispatches into the packet's router visitor.
func (r *Router) Receive(pk Packet, from string) {
	pk.VisitRouter(r, from)
}

// Forward reports the forwarding entry for a destination host.
func (r *Router) Forward(dest string) (string, bool) {
	port, ok := r.forward[dest]
	return port, ok
}

// RoundOf reports the latest sonar round observed from src.
func (r *Router) RoundOf(src string) int {
	return r.version[src]
}

func (r *Router) sendTo(pk Packet, port string) {
	dev, ok := r.ports[port]
	if !ok {
		return
	}
	dev.Receive(pk, r.id)
}

func (r *Router) broadcastExcept(pk Packet, from string) {
	for _, id := range r.portOrder {
		if id == from {
			continue
		}
		r.ports[id].Receive(pk, r.id)
	}
}
