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

// Package flow implements the TCP-style sender: a sliding window over
// in-flight packets, retransmission alarms driven by a deadline heap,
// Jacobson/Karels RTT estimation, and pluggable congestion-control
// state machines (Tahoe, Reno, FAST, CUBIC).
package flow

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/yingyuho/networksim/internal/netsim"
	"github.com/yingyuho/networksim/internal/trace"
	"github.com/yingyuho/networksim/pkg/sim"
)

// initialRTO is the retransmission timeout used before the first RTT
// sample primes the estimator.
const initialRTO = 1.0

// Config describes one flow of the scenario.
type Config struct {
	ID        string
	Src       string
	Dest      string
	DataMB    float64
	Start     float64
	Algorithm string // tahoe | reno | fast | cubic
}

// deadline is one entry of the retransmission heap.
type deadline struct {
	expire float64
	number int
	sentAt float64
}

type deadlineHeap []deadline

func (h deadlineHeap) Len() int { return len(h) }
func (h deadlineHeap) Less(i, j int) bool {
	if h[i].expire != h[j].expire {
		return h[i].expire < h[j].expire
	}
	return h[i].number < h[j].number
}
func (h deadlineHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x any)   { *h = append(*h, x.(deadline)) }
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Flow is the sender state machine of one transfer. All state is owned
// by the flow's tasks and the ack handlers that run in the same kernel
// turn as the packet arrival, so no locking is involved.
type Flow struct {
	sim *sim.Simulation
	log *trace.Logger

	id         string
	src, dest  string
	numPackets int
	start      float64

	outbox *sim.Store
	win    *window
	cursor int

	// cwnd is real-valued; only whole-integer crossings move credits.
	// Raising it retires debt first, then releases into balance;
	// lowering it only accrues debt, because credits a sender already
	// consumed cannot be revoked.
	cwnd    float64
	balance *sim.Container
	debt    int

	retransmit []int
	deadlines  deadlineHeap
	alarm      *sim.Proc
	rto        float64
	est        *rttEstimator

	baseRTT float64
	currRTT float64

	lastAckNo int
	ndup      int

	ssthresh  float64
	ctrl      controller
	ctrlStart float64

	finished bool
	main     *sim.Proc
}

// New builds a flow and starts its sender task, which sleeps until the
// configured start time. The flow must still be attached to its source
// host to get packets on the wire.
func New(s *sim.Simulation, log *trace.Logger, cfg Config) (*Flow, error) {
	f := &Flow{
		sim:        s,
		log:        log,
		id:         cfg.ID,
		src:        cfg.Src,
		dest:       cfg.Dest,
		numPackets: int(math.Ceil(cfg.DataMB * 1e6 / netsim.DataPayloadSize)),
		start:      cfg.Start,
		outbox:     s.NewStore(),
		win:        newWindow(),
		cursor:     1,
		cwnd:       1,
		balance:    s.NewContainer(0),
		rto:        initialRTO,
		est:        newRTTEstimator(),
		baseRTT:    math.Inf(1),
		ssthresh:   math.Inf(1),
	}
	ctor, ok := controllers[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("flow %q: unknown congestion-control algorithm %q", cfg.ID, cfg.Algorithm)
	}
	f.balance.Add(1)
	f.setState(ctor(f))
	f.main = s.Spawn("flow:"+f.id, f.run)
	return f, nil
}

// ID implements netsim.Sender.
func (f *Flow) ID() string { return f.id }

// Outbox implements netsim.Sender.
func (f *Flow) Outbox() *sim.Store { return f.outbox }

// NumPackets returns the packet budget of the transfer.
func (f *Flow) NumPackets() int { return f.numPackets }

// Finished reports whether the final ack has been received.
func (f *Flow) Finished() bool { return f.finished }

// run is the main sending loop: acquire one window credit, pick the
// next packet number (retransmissions first), hand the packet to the
// host, and arm the retransmission alarm.
func (f *Flow) run(p *sim.Proc) error {
	if err := p.Sleep(f.start - f.sim.Now()); err != nil {
		return nil
	}
	f.log.Event(f.sim.Now(), "window_size", f.id, f.cwnd)
	for {
		if err := f.balance.Get(p, 1); err != nil {
			return nil
		}
		var j int
		switch {
		case len(f.retransmit) > 0:
			j = f.retransmit[0]
			f.retransmit = f.retransmit[1:]
			if j < f.win.offset {
				continue // acknowledged while queued
			}
		case f.cursor <= f.numPackets:
			j = f.cursor
			f.cursor++
		default:
			continue
		}

		now := f.sim.Now()
		rec := f.win.at(j)
		if rec == nil {
			rec = f.win.push(j, now)
		} else {
			rec.retransmit = true
			rec.sentAt = now
			f.log.Event(now, "retransmit", f.id, j)
		}
		f.outbox.Put(&netsim.DataPacket{
			Src:    f.src,
			Dest:   f.dest,
			FlowID: f.id,
			Number: j,
			SentAt: now,
		})
		heap.Push(&f.deadlines, deadline{expire: now + f.rto, number: j, sentAt: now})
		f.runAlarm()
	}
}

// HandleAck implements netsim.Sender. It runs in the same kernel turn
// as the ack's arrival at the source host.
func (f *Flow) HandleAck(ackNo int, echoTS float64, hasTS bool) {
	if f.finished {
		return
	}
	now := f.sim.Now()

	if ackNo == f.numPackets+1 {
		f.finished = true
		f.win.advance(ackNo)
		if f.cursor < f.win.offset {
			f.cursor = f.win.offset
		}
		f.log.Event(now, "finish", f.id)
		if f.alarm != nil {
			f.alarm.Interrupt(nil)
			f.alarm = nil
		}
		f.main.Interrupt(nil)
		return
	}

	pktNo := ackNo - 1
	if pktNo < f.win.offset {
		if pktNo != f.lastAckNo {
			return // stale ack from before the window moved on
		}
		f.ndup++
		f.log.Event(now, "dupack", ackNo, now)
		f.ctrl.onDupAck(pktNo, f.ndup)
		return
	}

	f.ndup = 0
	f.lastAckNo = pktNo
	rec := f.win.at(pktNo)
	if rec == nil {
		panic(fmt.Sprintf("flow %s: ack %d has no window record", f.id, ackNo))
	}
	rec.acked = true
	if hasTS {
		rec.sentAt = echoTS
	}
	rtt := now - rec.sentAt
	f.rto = f.est.update(rtt)
	f.log.Event(now, "packet_rtt", f.id, rtt)
	f.currRTT = rtt
	if rtt < f.baseRTT {
		f.baseRTT = rtt
	}

	oldOffset := f.win.offset
	f.win.advance(pktNo + 1)
	f.runAlarm()
	f.ctrl.onAck(rec)

	freed := minInt(pktNo+1, f.cursor) - oldOffset
	if freed < 1 {
		freed = 1
	}
	f.release(freed)
	// A cumulative jump past a rewound cursor (go-back resent the hole
	// and the receiver had the rest parked) pulls the cursor up with
	// the left edge. The credit math above deliberately used the old
	// cursor: packets inside the jump returned their credits when the
	// rewind released them.
	if f.cursor < f.win.offset {
		f.cursor = f.win.offset
	}
}

// release returns send credits through the debt-aware path: future
// credits first retire debt accrued by window reductions.
func (f *Flow) release(n int) {
	if n <= 0 {
		return
	}
	if f.debt > 0 {
		d := minInt(f.debt, n)
		f.debt -= d
		n -= d
	}
	if n > 0 {
		f.balance.Add(n)
	}
}

// setCwnd assigns the congestion window and reconciles credits. Only
// whole-integer crossings move credits; the fractional part waits for
// the next crossing.
func (f *Flow) setCwnd(w float64) {
	if w < 1 {
		w = 1
	}
	old := int(f.cwnd)
	f.cwnd = w
	f.log.Event(f.sim.Now(), "window_size", f.id, w)
	cur := int(w)
	switch {
	case cur > old:
		f.release(cur - old)
	case cur < old:
		f.debt += old - cur
	}
}

func (f *Flow) setSsthresh(v float64) {
	f.ssthresh = v
	f.log.Event(f.sim.Now(), "ssthresh", f.id, v)
}

// setState installs a congestion-control state and stamps its start
// time, used to ignore events caused by packets sent before the
// transition.
func (f *Flow) setState(c controller) {
	f.ctrl = c
	f.ctrlStart = f.sim.Now()
	f.log.Event(f.sim.Now(), "state", f.id, c.name())
}

// scheduleRetransmit queues packet j for resending ahead of new data.
func (f *Flow) scheduleRetransmit(j int) {
	f.retransmit = append(f.retransmit, j)
}

// goBack rewinds the send cursor to n (the window offset when n <= 0)
// and returns the credits the rewound packets were holding. Queued
// retransmissions at or past the new cursor are dropped; the rewind
// resends them anyway.
func (f *Flow) goBack(n int) {
	if n <= 0 || n < f.win.offset {
		n = f.win.offset
	}
	if n > f.cursor {
		n = f.cursor
	}
	old := f.cursor
	f.cursor = n
	kept := f.retransmit[:0]
	for _, j := range f.retransmit {
		if j < n {
			kept = append(kept, j)
		}
	}
	f.retransmit = kept
	f.release(old - n)
	f.runAlarm()
}

// runAlarm cancels the armed alarm, lazily drops stale deadlines, and
// arms a fresh task for the earliest live one. At most one alarm task
// exists at a time.
func (f *Flow) runAlarm() {
	if f.alarm != nil {
		f.alarm.Interrupt(nil)
		f.alarm = nil
	}
	for f.deadlines.Len() > 0 {
		top := f.deadlines[0]
		rec := f.win.at(top.number)
		stale := top.number < f.win.offset || top.number >= f.cursor || (rec != nil && rec.acked)
		if !stale {
			break
		}
		heap.Pop(&f.deadlines)
	}
	if f.deadlines.Len() == 0 {
		return
	}
	f.alarm = f.sim.Spawn("alarm:"+f.id, func(p *sim.Proc) error {
		// The heap may have changed between arming and this task's
		// first turn; the pending interrupt raised by the re-arm is
		// delivered by Sleep, but the empty case needs a guard.
		if f.deadlines.Len() == 0 {
			return nil
		}
		if err := p.Sleep(f.deadlines[0].expire - f.sim.Now()); err != nil {
			return nil
		}
		f.alarm = nil
		f.fireTimeout()
		return nil
	})
}

// fireTimeout handles an expired deadline: pop it, hand the record to
// the congestion controller, and re-arm.
func (f *Flow) fireTimeout() {
	if f.deadlines.Len() == 0 {
		return
	}
	dl := heap.Pop(&f.deadlines).(deadline)
	rec := f.win.at(dl.number)
	if rec == nil || rec.acked {
		panic(fmt.Sprintf("flow %s: timeout fired for settled packet %d", f.id, dl.number))
	}
	f.log.Event(f.sim.Now(), "timeout", dl.number)
	f.ctrl.onTimeout(rec)
	f.runAlarm()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
