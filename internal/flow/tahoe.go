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

// TCP Tahoe: slow start doubles the window every RTT, congestion
// avoidance grows it by one packet per RTT, and every loss signal
// (timeout or third duplicate ack) collapses the window to one and
// rewinds the sender.

type tahoeSS struct {
	f *Flow
}

func (s *tahoeSS) name() string { return "ss" }

func (s *tahoeSS) onAck(rec *record) {
	f := s.f
	// Acks for packets sent before the reset would double-count the
	// exponential growth.
	if rec.sentAt >= f.ctrlStart {
		f.setCwnd(f.cwnd + 1)
	}
	if f.cwnd >= f.ssthresh {
		f.setState(&tahoeCA{f: f})
	}
}

func (s *tahoeSS) onDupAck(pktNo, ndup int) {
	if ndup == 3 {
		collapse(s.f, lostAfter(s.f, pktNo), &tahoeSS{f: s.f})
	}
}

func (s *tahoeSS) onTimeout(rec *record) {
	collapse(s.f, rec, &tahoeSS{f: s.f})
}

type tahoeCA struct {
	f *Flow
}

func (s *tahoeCA) name() string { return "ca" }

func (s *tahoeCA) onAck(rec *record) {
	f := s.f
	f.setCwnd(f.cwnd + 1/f.cwnd)
}

func (s *tahoeCA) onDupAck(pktNo, ndup int) {
	if ndup == 3 {
		collapse(s.f, lostAfter(s.f, pktNo), &tahoeSS{f: s.f})
	}
}

func (s *tahoeCA) onTimeout(rec *record) {
	collapse(s.f, rec, &tahoeSS{f: s.f})
}
