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

package flow

import "math"

// TCP Reno: Tahoe's growth rules plus fast retransmit / fast recovery.
// Three duplicate acks retransmit the missing packet without draining
// the pipe; the inflated window deflates to ssthresh once the hole is
// acknowledged.

type renoSS struct {
	f *Flow
}

func (s *renoSS) name() string { return "ss" }

func (s *renoSS) onAck(rec *record) {
	f := s.f
	if rec.sentAt >= f.ctrlStart {
		f.setCwnd(f.cwnd + 1)
	}
	if f.cwnd >= f.ssthresh {
		f.setState(&renoCA{f: f})
	}
}

func (s *renoSS) onDupAck(pktNo, ndup int) {
	if ndup == 3 {
		enterFastRecovery(s.f, pktNo, func(f *Flow) controller { return &renoCA{f: f} })
	}
}

func (s *renoSS) onTimeout(rec *record) {
	collapse(s.f, rec, &renoSS{f: s.f})
}

type renoCA struct {
	f *Flow
}

func (s *renoCA) name() string { return "ca" }

func (s *renoCA) onAck(rec *record) {
	f := s.f
	f.setCwnd(f.cwnd + 1/f.cwnd)
}

func (s *renoCA) onDupAck(pktNo, ndup int) {
	if ndup == 3 {
		enterFastRecovery(s.f, pktNo, func(f *Flow) controller { return &renoCA{f: f} })
	}
}

func (s *renoCA) onTimeout(rec *record) {
	collapse(s.f, rec, &renoSS{f: s.f})
}

// enterFastRecovery reacts to the third duplicate ack: halve ssthresh,
// set the window to ssthresh plus the three duplicates already out of
// the network, retransmit the missing packet, and enter frfr. resume
// picks the state to return to once the hole is acknowledged, so FAST
// can reuse the machinery and come back to itself.
func enterFastRecovery(f *Flow, pktNo int, resume func(f *Flow) controller) {
	f.setSsthresh(math.Max(1, f.cwnd/2))
	f.setCwnd(f.ssthresh + 3)
	missing := pktNo + 1
	f.scheduleRetransmit(missing)
	f.setState(&renoFRFR{f: f, recover: missing, resume: resume})
}

// renoFRFR is fast retransmit / fast recovery. Each further duplicate
// inflates the window by one; the ack that covers the retransmitted
// packet deflates to ssthresh and resumes congestion avoidance; a
// partial ack or timeout gives up and collapses.
type renoFRFR struct {
	f       *Flow
	recover int
	resume  func(f *Flow) controller
}

func (s *renoFRFR) name() string { return "frfr" }

func (s *renoFRFR) onAck(rec *record) {
	f := s.f
	if rec.number >= s.recover {
		f.setCwnd(f.ssthresh)
		f.setState(s.resume(f))
		return
	}
	// Partial ack: recovery failed to cover the hole; deflate as a
	// timeout would, keeping ssthresh where fast retransmit set it.
	f.setCwnd(1)
	f.goBack(0)
	f.setState(s.restart())
}

// restart is the state a failed recovery collapses into: Reno slow
// start, or a fresh FAST state when recovery was entered from FAST.
func (s *renoFRFR) restart() controller {
	if next, ok := s.resume(s.f).(*fastState); ok {
		return next
	}
	return &renoSS{f: s.f}
}

func (s *renoFRFR) onDupAck(pktNo, ndup int) {
	f := s.f
	f.setCwnd(f.cwnd + 1)
}

func (s *renoFRFR) onTimeout(rec *record) {
	f := s.f
	f.setCwnd(1)
	f.goBack(0)
	f.setState(s.restart())
}
