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

package netsim

import "container/heap"

// acker is the receive-side state of one flow on its destination host.
// It converts incoming data packet numbers into the next expected
// in-order sequence number. Out-of-order arrivals park in a min-heap
// until the gap below them fills.
type acker struct {
	expected int
	partial  intHeap
}

func newAcker() *acker {
	return &acker{expected: 1}
}

// input processes packet number n and returns the ack number to emit.
// A packet below the cumulative edge was already acknowledged; ok is
// false and no ack is owed. advanced reports whether n moved the edge,
// which gates the timestamp echo upstream.
func (a *acker) input(n int) (ackNo int, advanced, ok bool) {
	switch {
	case n < a.expected:
		return 0, false, false
	case n == a.expected:
		a.expected++
		for a.partial.Len() > 0 && a.partial[0] <= a.expected {
			if a.partial[0] == a.expected {
				a.expected++
			}
			heap.Pop(&a.partial)
		}
		return a.expected, true, true
	default:
		heap.Push(&a.partial, n)
		return a.expected, false, true
	}
}

type intHeap []int

func (h intHeap) Len() int            { return len(h) }
func (h intHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)         { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
