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

// rttEstimator is the Jacobson/Karels smoother:
//
//	a <- (1-b)a + b*rtt
//	d <- (1-b)d + b*|rtt - a|
//	rto = c*(a + n*d)
//
// The first sample initializes both the average and the deviation.
type rttEstimator struct {
	b, n, c  float64
	avg, dev float64
	primed   bool
}

func newRTTEstimator() *rttEstimator {
	return &rttEstimator{b: 0.1, n: 4, c: 1.25}
}

// update folds in one sample and returns the new retransmission timeout.
func (e *rttEstimator) update(rtt float64) float64 {
	if !e.primed {
		e.avg = rtt
		e.dev = rtt
		e.primed = true
	} else {
		e.avg = (1-e.b)*e.avg + e.b*rtt
		e.dev = (1-e.b)*e.dev + e.b*math.Abs(rtt-e.avg)
	}
	return e.c * (e.avg + e.n*e.dev)
}
