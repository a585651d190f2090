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

// Package netsim models the device graph of the simulator: hosts,
// routers, and full-duplex links whose cables buffer, serialize, and
// propagate packets in virtual time. Devices exchange packets by
// visitor dispatch; all activity runs inside a sim.Simulation kernel.
package netsim

import "fmt"

// Device is a vertex of the topology graph. A device receives packets
// from an attached peer, identified by the peer's id.
type Device interface {
	ID() string
	Receive(pk Packet, from string)
	endpoint() *node
}

// node carries the identity and port bookkeeping every device shares.
// Ports are kept both as a map for lookup and as an ordered slice so
// broadcasts iterate deterministically in attachment order.
type node struct {
	id        string
	ports     map[string]Device
	portOrder []string
	maxDegree int // 0 means unlimited
}

func newNode(id string, maxDegree int) node {
	return node{id: id, ports: make(map[string]Device), maxDegree: maxDegree}
}

func (n *node) ID() string { return n.id }

func (n *node) endpoint() *node { return n }

func (n *node) addPort(peer Device) error {
	if n.maxDegree > 0 && len(n.ports) >= n.maxDegree {
		return fmt.Errorf("device %q: too many attachments (max %d)", n.id, n.maxDegree)
	}
	id := peer.ID()
	if _, ok := n.ports[id]; ok {
		return fmt.Errorf("device %q: already attached to %q", n.id, id)
	}
	n.ports[id] = peer
	n.portOrder = append(n.portOrder, id)
	return nil
}

// Attach connects two devices bidirectionally, enforcing each side's
// degree limit.
func Attach(a, b Device) error {
	an, bn := a.endpoint(), b.endpoint()
	if err := an.addPort(b); err != nil {
		return err
	}
	if err := bn.addPort(a); err != nil {
		// Roll back the first half so a failed attach leaves no
		// dangling one-way edge.
		delete(an.ports, b.ID())
		an.portOrder = an.portOrder[:len(an.portOrder)-1]
		return err
	}
	return nil
}
