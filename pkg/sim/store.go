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

// Store is an unbounded FIFO of items. Put never suspends; Get suspends
// the calling task while the store is empty. An item put at time t is
// handed to the earliest blocked getter at the same instant, preserving
// FIFO order among getters.
type Store struct {
	s       *Simulation
	items   []any
	getters []*Proc
}

// NewStore returns an empty store.
func (s *Simulation) NewStore() *Store {
	return &Store{s: s}
}

// Len returns the number of buffered items (not counting items already
// promised to blocked getters).
func (st *Store) Len() int {
	return len(st.items)
}

// Put appends an item. If a task is blocked in Get, the item is handed
// to the earliest one instead of being buffered. Callable from task or
// kernel context.
func (st *Store) Put(v any) {
	if len(st.getters) > 0 {
		g := st.getters[0]
		st.getters = st.getters[1:]
		g.unblock(resumeMsg{val: v})
		return
	}
	st.items = append(st.items, v)
}

// Get removes and returns the head item, suspending the calling task
// while the store is empty.
func (st *Store) Get(p *Proc) (any, error) {
	if err := p.takePending(); err != nil {
		return nil, err
	}
	if len(st.items) > 0 {
		v := st.items[0]
		st.items = st.items[1:]
		return v, nil
	}
	st.getters = append(st.getters, p)
	p.addCancel(func() { st.removeGetter(p) })
	m := p.park()
	if m.err != nil {
		return nil, m.err
	}
	return m.val, nil
}

func (st *Store) removeGetter(p *Proc) {
	for i, g := range st.getters {
		if g == p {
			st.getters = append(st.getters[:i], st.getters[i+1:]...)
			return
		}
	}
}
