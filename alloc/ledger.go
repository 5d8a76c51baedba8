// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"fmt"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/aclements/go-pmualloc/pmu"
)

// A Ledger records which session owns each counter of a resource that is
// shared between sessions, such as the shared bank. It is safe for concurrent
// use.
type Ledger struct {
	mu     sync.Mutex
	owners map[int]uuid.UUID // slot -> session
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{owners: make(map[int]uuid.UUID)}
}

// Claim records id as the owner of every counter in slots. If any of them is
// owned by another session, Claim records nothing and returns an error that
// wraps ErrCounterUnavailable.
func (l *Ledger) Claim(id uuid.UUID, slots pmu.Mask) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, slot := range slots.Slots() {
		if owner, ok := l.owners[slot]; ok && owner != id {
			return &Error{Index: -1, Err: ErrCounterUnavailable,
				Detail: fmt.Sprintf("counter %d is owned by session %s", slot, owner)}
		}
	}
	for _, slot := range slots.Slots() {
		l.owners[slot] = id
	}
	return nil
}

// Release drops every counter owned by id and returns them.
func (l *Ledger) Release(id uuid.UUID) pmu.Mask {
	l.mu.Lock()
	defer l.mu.Unlock()
	var m pmu.Mask
	for slot, owner := range l.owners {
		if owner == id {
			m |= pmu.Bit(slot)
			delete(l.owners, slot)
		}
	}
	return m
}

// Reserved returns the counters owned by sessions other than id.
func (l *Ledger) Reserved(id uuid.UUID) pmu.Mask {
	l.mu.Lock()
	defer l.mu.Unlock()
	var m pmu.Mask
	for slot, owner := range l.owners {
		if owner != id {
			m |= pmu.Bit(slot)
		}
	}
	return m
}

// Owner returns the session that owns slot.
func (l *Ledger) Owner(slot int) (uuid.UUID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.owners[slot]
	return id, ok
}
