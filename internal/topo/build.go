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
	"fmt"

	"github.com/yingyuho/networksim/internal/flow"
	"github.com/yingyuho/networksim/internal/netsim"
	"github.com/yingyuho/networksim/internal/trace"
	"github.com/yingyuho/networksim/pkg/sim"
)

// Network is the built scenario: every device by id plus the flows, all
// registered with the simulation kernel and ready to run.
type Network struct {
	Hosts   map[string]*netsim.Host
	Routers map[string]*netsim.Router
	Links   map[string]*netsim.Link
	Flows   []*flow.Flow
}

// Build wires the parsed topology into a device graph and attaches the
// flows, all using the given congestion-control algorithm. Reference
// errors (duplicate ids, unknown endpoints, flows between non-hosts)
// are fatal here, before any event runs.
func Build(s *sim.Simulation, log *trace.Logger, t *Topology, algorithm string) (*Network, error) {
	n := &Network{
		Hosts:   make(map[string]*netsim.Host),
		Routers: make(map[string]*netsim.Router),
		Links:   make(map[string]*netsim.Link),
	}
	devices := make(map[string]netsim.Device)
	claim := func(id string) error {
		if _, ok := devices[id]; ok {
			return fmt.Errorf("duplicate device id %q", id)
		}
		return nil
	}

	for _, id := range t.Hosts {
		if err := claim(id); err != nil {
			return nil, err
		}
		h := netsim.NewHost(s, log, id)
		n.Hosts[id] = h
		devices[id] = h
	}
	for _, id := range t.Routers {
		if err := claim(id); err != nil {
			return nil, err
		}
		r := netsim.NewRouter(s, log, id)
		n.Routers[id] = r
		devices[id] = r
	}
	for _, ls := range t.Links {
		if err := claim(ls.ID); err != nil {
			return nil, err
		}
		a, ok := devices[ls.A]
		if !ok {
			return nil, fmt.Errorf("link %q: unknown endpoint %q", ls.ID, ls.A)
		}
		b, ok := devices[ls.B]
		if !ok {
			return nil, fmt.Errorf("link %q: unknown endpoint %q", ls.ID, ls.B)
		}
		l := netsim.NewLink(s, log, ls.ID, ls.RateMbps, ls.DelayMs, ls.BufferKB)
		if err := l.Connect(a, b); err != nil {
			return nil, fmt.Errorf("link %q: %w", ls.ID, err)
		}
		n.Links[ls.ID] = l
		devices[ls.ID] = l
	}
	for _, fs := range t.Flows {
		src, ok := n.Hosts[fs.Src]
		if !ok {
			return nil, fmt.Errorf("flow %q: source %q is not a host", fs.ID, fs.Src)
		}
		if _, ok := n.Hosts[fs.Dest]; !ok {
			return nil, fmt.Errorf("flow %q: destination %q is not a host", fs.ID, fs.Dest)
		}
		f, err := flow.New(s, log, flow.Config{
			ID:        fs.ID,
			Src:       fs.Src,
			Dest:      fs.Dest,
			DataMB:    fs.DataMB,
			Start:     fs.StartS,
			Algorithm: algorithm,
		})
		if err != nil {
			return nil, err
		}
		src.AttachFlow(f)
		n.Flows = append(n.Flows, f)
	}
	return n, nil
}
