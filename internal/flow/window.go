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

import "fmt"

// record tracks one in-flight packet. sentAt is overwritten by the
// receiver's echoed timestamp on a cumulative ack so retransmissions do
// not skew the RTT estimate.
type record struct {
	number     int
	sentAt     float64
	acked      bool
	retransmit bool
}

// window is the sliding window of in-flight records: a deque plus a base
// index. Record i lives at records[i-offset]; advancing the offset drops
// the prefix in one slice operation. The offset never decreases.
type window struct {
	offset  int
	records []*record
}

func newWindow() *window {
	return &window{offset: 1}
}

// at returns the record for packet n, or nil when n lies outside
// [offset, offset+len).
func (w *window) at(n int) *record {
	if n < w.offset || n >= w.offset+len(w.records) {
		return nil
	}
	return w.records[n-w.offset]
}

// push appends a record at the right edge. Writing anywhere else is a
// consistency violation.
func (w *window) push(n int, sentAt float64) *record {
	if n != w.offset+len(w.records) {
		panic(fmt.Sprintf("flow: window write at %d, right edge is %d", n, w.offset+len(w.records)))
	}
	r := &record{number: n, sentAt: sentAt}
	w.records = append(w.records, r)
	return r
}

// advance moves the left edge to offset to, dropping the records below
// it. Moving backward is a consistency violation.
func (w *window) advance(to int) {
	if to < w.offset {
		panic(fmt.Sprintf("flow: window offset moving backward, %d -> %d", w.offset, to))
	}
	drop := to - w.offset
	if drop > len(w.records) {
		drop = len(w.records)
	}
	w.records = w.records[drop:]
	w.offset = to
}
