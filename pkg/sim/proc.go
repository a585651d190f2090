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

// procState tracks where a task is in its lifecycle. Transitions are
// driven by the kernel (run, unblock) and by the task itself (park), and
// are synchronized through the resume/yield channel handoff, so no
// additional locking is needed.
type procState int

const (
	stateScheduled procState = iota // a resume is queued in the kernel
	stateRunning                    // the task holds control
	stateParked                     // suspended, waiting to be unblocked
	stateFinished                   // the task function returned
)

// Interrupted is the recoverable signal delivered to a task when another
// component calls Interrupt on it. Blocking primitives return it as the
// error; loops are expected to unwind cleanly when they see it.
type Interrupted struct {
	Cause any
}

func (e *Interrupted) Error() string {
	return "sim: task interrupted"
}

// IsInterrupt reports whether err is a task interruption.
func IsInterrupt(err error) bool {
	_, ok := err.(*Interrupted)
	return ok
}

// resumeMsg carries the result of a suspension back into the task.
type resumeMsg struct {
	val any
	err error
	src *Event
}

// Proc is a cooperative task. The function passed to Spawn runs on its
// own goroutine, but the kernel guarantees that it executes only while
// every other task is suspended, so task code may freely mutate shared
// simulation state between suspension points.
type Proc struct {
	sim     *Simulation
	name    string
	state   procState
	resume  chan resumeMsg
	yield   chan struct{}
	pending *Interrupted
	cancels []func()
	err     error
}

// Spawn creates a task and schedules its first resumption at the current
// instant. fn receives the Proc for use with the blocking primitives and
// should return nil on a clean exit (including after an interrupt).
func (s *Simulation) Spawn(name string, fn func(p *Proc) error) *Proc {
	p := &Proc{
		sim:    s,
		name:   name,
		state:  stateScheduled,
		resume: make(chan resumeMsg),
		yield:  make(chan struct{}),
	}
	go func() {
		<-p.resume
		p.err = fn(p)
		p.state = stateFinished
		p.yield <- struct{}{}
	}()
	s.schedule(s.now, func() { p.transfer(resumeMsg{}) })
	return p
}

// Name returns the label the task was spawned with.
func (p *Proc) Name() string {
	return p.name
}

// Err returns the value the task function returned, once finished.
func (p *Proc) Err() error {
	return p.err
}

// Done reports whether the task function has returned.
func (p *Proc) Done() bool {
	return p.state == stateFinished
}

// transfer hands control to the task and blocks the kernel until the
// task parks again or finishes.
func (p *Proc) transfer(m resumeMsg) {
	if p.state == stateFinished {
		return
	}
	p.state = stateRunning
	p.resume <- m
	<-p.yield
}

// park suspends the calling task until the kernel resumes it. Must only
// be called from the task's own goroutine.
func (p *Proc) park() resumeMsg {
	p.state = stateParked
	p.yield <- struct{}{}
	return <-p.resume
}

// unblock schedules a parked task to resume at the current instant with
// the given result. Registrations with other wait queues are withdrawn
// first. Calls on tasks that are not parked are ignored; this makes it
// safe for several wakeup paths to race within one instant.
func (p *Proc) unblock(m resumeMsg) {
	if p.state != stateParked {
		return
	}
	p.state = stateScheduled
	p.runCancels()
	p.sim.schedule(p.sim.now, func() { p.transfer(m) })
}

// Interrupt raises a recoverable signal in the task. A parked task is
// woken immediately with an *Interrupted error; a running or scheduled
// task receives the error at its next suspension point. Interrupting a
// finished task is a no-op.
func (p *Proc) Interrupt(cause any) {
	switch p.state {
	case stateParked:
		p.unblock(resumeMsg{err: &Interrupted{Cause: cause}})
	case stateRunning, stateScheduled:
		if p.pending == nil {
			p.pending = &Interrupted{Cause: cause}
		}
	case stateFinished:
	}
}

// takePending consumes a pending interrupt, if any. Every blocking
// primitive calls this on entry so an interrupt raised while the task
// was running is delivered at its next suspension point.
func (p *Proc) takePending() error {
	if p.pending != nil {
		err := p.pending
		p.pending = nil
		return err
	}
	return nil
}

func (p *Proc) addCancel(fn func()) {
	p.cancels = append(p.cancels, fn)
}

func (p *Proc) runCancels() {
	for _, fn := range p.cancels {
		fn()
	}
	p.cancels = nil
}

// Sleep suspends the task for d seconds of virtual time. It returns nil
// after the timeout elapses, or the *Interrupted error if the task was
// interrupted first.
func (p *Proc) Sleep(d float64) error {
	if err := p.takePending(); err != nil {
		return err
	}
	ev := p.sim.NewEvent()
	p.sim.At(d, func() {
		if !ev.done {
			ev.Succeed(nil)
		}
	})
	_, err := p.waitParked(ev)
	return err
}

// Wait suspends the task until ev succeeds and returns the event value.
// Waiting on an already-succeeded event returns its value without
// suspending.
func (p *Proc) Wait(ev *Event) (any, error) {
	if err := p.takePending(); err != nil {
		return nil, err
	}
	if ev.done {
		return ev.value, nil
	}
	return p.waitParked(ev)
}

// WaitAny suspends the task until the first of the given events
// succeeds, returning its index and value. The remaining registrations
// are withdrawn. An already-succeeded event wins immediately.
func (p *Proc) WaitAny(events ...*Event) (int, any, error) {
	if err := p.takePending(); err != nil {
		return -1, nil, err
	}
	for i, ev := range events {
		if ev.done {
			return i, ev.value, nil
		}
	}
	for _, ev := range events {
		ev.addWaiter(p)
	}
	m := p.park()
	if m.err != nil {
		return -1, nil, m.err
	}
	for i, ev := range events {
		if ev == m.src {
			return i, m.val, nil
		}
	}
	panic("sim: WaitAny resumed by unknown event")
}

func (p *Proc) waitParked(ev *Event) (any, error) {
	ev.addWaiter(p)
	m := p.park()
	if m.err != nil {
		return nil, m.err
	}
	return m.val, nil
}
