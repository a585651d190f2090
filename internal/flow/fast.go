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

// FAST-TCP: a delay-based variant with a single active state. Every new
// cumulative ack nudges the window toward the equilibrium where alpha
// packets sit queued in the path; loss signals fall back to the Reno
// rules and return here afterwards.

const (
	fastGamma = 0.05
	fastAlpha = 3
)

type fastState struct {
	f          *Flow
	avgRTT     float64
	queueDelay float64
	primed     bool
}

func newFastState(f *Flow) controller {
	return &fastState{f: f}
}

func (s *fastState) name() string { return "fast" }

func (s *fastState) onAck(rec *record) {
	f := s.f
	if rec.sentAt < f.ctrlStart {
		return
	}
	w := math.Min(3/f.cwnd, 0.25)
	if !s.primed {
		s.avgRTT = f.currRTT
		s.primed = true
	} else {
		s.avgRTT = (1-w)*s.avgRTT + w*f.currRTT
	}
	s.queueDelay = s.avgRTT - f.baseRTT

	ratio := f.baseRTT / f.currRTT
	next := (1-fastGamma)*f.cwnd + fastGamma*(ratio*f.cwnd+fastAlpha)
	f.setCwnd(math.Min(2*f.cwnd, next))
}

func (s *fastState) onDupAck(pktNo, ndup int) {
	if ndup == 3 {
		enterFastRecovery(s.f, pktNo, newFastState)
	}
}

func (s *fastState) onTimeout(rec *record) {
	collapse(s.f, rec, newFastState(s.f))
}
