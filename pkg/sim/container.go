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

package sim

// Container is a counting semaphore over an integer level. With a
// positive capacity the level stays in [0, capacity]; with capacity <= 0
// the container is unbounded above. Get(n) suspends while level < n;
// Put(n) suspends while level+n would exceed capacity. Waiters of each
// kind are served strictly FIFO: a large blocked request is not
// overtaken by a smaller later one.
type Container struct {
	s        *Simulation
	level    int
	capacity int
	getters  []*containerReq
	putters  []*containerReq
}

type containerReq struct {
	p *Proc
	n int
}

// NewContainer returns a container with the given capacity and level 0.
// capacity <= 0 means unbounded.
func (s *Simulation) NewContainer(capacity int) *Container {
	return &Container{s: s, capacity: capacity}
}

// Level returns the current level.
func (c *Container) Level() int {
	return c.level
}

// Capacity returns the configured capacity (0 for unbounded).
func (c *Container) Capacity() int {
	return c.capacity
}

// TryPut adds n to the level if it fits within capacity right now,
// without suspending. It reports whether the reservation succeeded.
// Callable from kernel context.
func (c *Container) TryPut(n int) bool {
	if n < 0 {
		panic("sim: negative container amount")
	}
	if c.capacity > 0 && c.level+n > c.capacity {
		return false
	}
	c.level += n
	c.drain()
	return true
}

// Add credits the container from kernel context. The container must be
// unbounded, or the amount must fit; exceeding capacity is a programming
// error since Add has no way to suspend.
func (c *Container) Add(n int) {
	if n < 0 {
		panic("sim: negative container amount")
	}
	if c.capacity > 0 && c.level+n > c.capacity {
		panic("sim: container overflow")
	}
	c.level += n
	c.drain()
}

// Take debits n from the level from kernel context. The caller must
// hold a prior reservation; a level below n is a programming error.
func (c *Container) Take(n int) {
	if n < 0 {
		panic("sim: negative container amount")
	}
	if c.level < n {
		panic("sim: container underflow")
	}
	c.level -= n
	c.drain()
}

// Get debits n from the level, suspending the calling task until the
// level is sufficient.
func (c *Container) Get(p *Proc, n int) error {
	if err := p.takePending(); err != nil {
		return err
	}
	if n < 0 {
		panic("sim: negative container amount")
	}
	if len(c.getters) == 0 && c.level >= n {
		c.level -= n
		c.drain()
		return nil
	}
	r := &containerReq{p: p, n: n}
	c.getters = append(c.getters, r)
	p.addCancel(func() { c.getters = removeReq(c.getters, r) })
	m := p.park()
	return m.err
}

// Put credits n to the level, suspending the calling task while the
// credit would exceed capacity.
func (c *Container) Put(p *Proc, n int) error {
	if err := p.takePending(); err != nil {
		return err
	}
	if n < 0 {
		panic("sim: negative container amount")
	}
	if len(c.putters) == 0 && (c.capacity <= 0 || c.level+n <= c.capacity) {
		c.level += n
		c.drain()
		return nil
	}
	r := &containerReq{p: p, n: n}
	c.putters = append(c.putters, r)
	p.addCancel(func() { c.putters = removeReq(c.putters, r) })
	m := p.park()
	return m.err
}

// drain serves blocked requests in FIFO order until no further progress
// is possible. Serving a getter may unblock a putter and vice versa, so
// the loop alternates until a full pass makes no progress.
func (c *Container) drain() {
	for {
		progress := false
		for len(c.getters) > 0 && c.getters[0].n <= c.level {
			r := c.getters[0]
			c.getters = c.getters[1:]
			c.level -= r.n
			r.p.unblock(resumeMsg{})
			progress = true
		}
		for len(c.putters) > 0 && (c.capacity <= 0 || c.level+c.putters[0].n <= c.capacity) {
			r := c.putters[0]
			c.putters = c.putters[1:]
			c.level += r.n
			r.p.unblock(resumeMsg{})
			progress = true
		}
		if !progress {
			return
		}
	}
}

func removeReq(reqs []*containerReq, r *containerReq) []*containerReq {
	for i, x := range reqs {
		if x == r {
			return append(reqs[:i], reqs[i+1:]...)
		}
	}
	return reqs
}
