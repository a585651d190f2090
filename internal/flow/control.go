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

// controller is one state of a congestion-control variant. All four
// variants share the window/alarm/retransmission machinery; only these
// three event handlers differ. Transitions install a new controller via
// Flow.setState, which stamps the state's start time.
type controller interface {
	name() string
	onAck(rec *record)
	onDupAck(pktNo, ndup int)
	onTimeout(rec *record)
}

// controllers maps the CLI algorithm names to their initial states.
var controllers = map[string]func(f *Flow) controller{
	"tahoe": func(f *Flow) controller { return &tahoeSS{f: f} },
	"reno":  func(f *Flow) controller { return &renoSS{f: f} },
	"fast":  newFastState,
	"cubic": func(f *Flow) controller { return newCubicSS(f) },
}

// Algorithms lists the accepted congestion-control algorithm names.
func Algorithms() []string {
	return []string{"tahoe", "reno", "fast", "cubic"}
}

// halveSsthresh applies the shared loss reaction: if the lost packet
// was sent after the current state began, ssthresh drops to half the
// window. Losses of packets sent before the transition already paid.
func halveSsthresh(f *Flow, rec *record) {
	if rec == nil || rec.sentAt >= f.ctrlStart {
		f.setSsthresh(math.Max(1, f.cwnd/2))
	}
}

// collapse is the timeout reaction shared by Tahoe, Reno, and the
// variants that fall back to them: shrink to one packet, rewind the
// cursor to the left window edge, and restart in the given state.
func collapse(f *Flow, rec *record, next controller) {
	halveSsthresh(f, rec)
	f.setCwnd(1)
	f.goBack(0)
	f.setState(next)
}

// lostAfter returns the window record of the packet a dup-ack run says
// is missing: the one just above the duplicated cumulative ack.
func lostAfter(f *Flow, pktNo int) *record {
	return f.win.at(pktNo + 1)
}
