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

// CUBIC: window growth in congestion avoidance follows a cubic of the
// time since the state began, plateauing at the window where the last
// loss happened and probing beyond it afterwards.

const (
	cubicC    = 0.4
	cubicBeta = 0.8
)

type cubicSS struct {
	f      *Flow
	wMax   float64
	thresh float64
}

// newCubicSS derives the plateau from ssthresh when one is known; until
// the first loss both bounds are infinite and slow start simply runs.
func newCubicSS(f *Flow) *cubicSS {
	s := &cubicSS{f: f, wMax: math.Inf(1), thresh: math.Inf(1)}
	if !math.IsInf(f.ssthresh, 1) {
		s.wMax = f.ssthresh * 2
		s.thresh = s.wMax * (1 - cubicBeta)
	}
	return s
}

func (s *cubicSS) name() string { return "ss" }

func (s *cubicSS) onAck(rec *record) {
	f := s.f
	f.setCwnd(f.cwnd + 1)
	if f.cwnd >= s.thresh {
		f.setState(&cubicCA{f: f, wMax: s.wMax})
	}
}

func (s *cubicSS) onDupAck(pktNo, ndup int) {
	if ndup == 3 {
		cubicLoss(s.f, lostAfter(s.f, pktNo))
	}
}

func (s *cubicSS) onTimeout(rec *record) {
	cubicLoss(s.f, rec)
}

type cubicCA struct {
	f    *Flow
	wMax float64
}

func (s *cubicCA) name() string { return "ca" }

func (s *cubicCA) onAck(rec *record) {
	f := s.f
	k := math.Cbrt(s.wMax * cubicBeta / cubicC)
	t := f.sim.Now() - f.ctrlStart
	d := t - k
	f.setCwnd(math.Max(1, cubicC*d*d*d+s.wMax))
}

func (s *cubicCA) onDupAck(pktNo, ndup int) {
	if ndup == 3 {
		cubicLoss(s.f, lostAfter(s.f, pktNo))
	}
}

func (s *cubicCA) onTimeout(rec *record) {
	cubicLoss(s.f, rec)
}

// cubicLoss reacts to a loss signal like the Tahoe collapse, then
// re-enters slow start with the plateau derived from the new ssthresh.
func cubicLoss(f *Flow, rec *record) {
	halveSsthresh(f, rec)
	f.setCwnd(1)
	f.goBack(0)
	f.setState(newCubicSS(f))
}
