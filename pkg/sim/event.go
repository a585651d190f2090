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

// Event is a one-shot rendezvous. Tasks wait on it; any component may
// succeed it exactly once with a value. Waiters registered before the
// event succeeds resume, in registration order, at the instant of the
// Succeed call.
type Event struct {
	s       *Simulation
	done    bool
	value   any
	waiters []*Proc
}

// NewEvent returns a fresh, untriggered event.
func (s *Simulation) NewEvent() *Event {
	return &Event{s: s}
}

// Done reports whether the event has succeeded.
func (e *Event) Done() bool {
	return e.done
}

// Value returns the value the event succeeded with, or nil before that.
func (e *Event) Value() any {
	return e.value
}

// Succeed triggers the event with the given value and wakes all waiting
// tasks. Succeeding an event twice is a programming error.
func (e *Event) Succeed(v any) {
	if e.done {
		panic("sim: event succeeded twice")
	}
	e.done = true
	e.value = v
	waiters := e.waiters
	e.waiters = nil
	for _, p := range waiters {
		p.unblock(resumeMsg{val: v, src: e})
	}
}

func (e *Event) addWaiter(p *Proc) {
	e.waiters = append(e.waiters, p)
	p.addCancel(func() { e.removeWaiter(p) })
}

func (e *Event) removeWaiter(p *Proc) {
	for i, w := range e.waiters {
		if w == p {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return
		}
	}
}
