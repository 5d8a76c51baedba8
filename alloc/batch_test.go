// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"context"
	"errors"
	"testing"

	uuid "github.com/satori/go.uuid"
	"go.uber.org/multierr"

	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/pmu"
)

var (
	idA = uuid.FromStringOrNil("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	idB = uuid.FromStringOrNil("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	idC = uuid.FromStringOrNil("6ba7b812-9dad-11d1-80b4-00c04fd430c8")
)

func sharedCounters(p *Plan) pmu.Mask {
	if p == nil {
		return 0
	}
	return sharedSlots(p)
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	if err := l.Claim(idA, pmu.Bit(21)|pmu.Bit(22)); err != nil {
		t.Fatal(err)
	}
	// Claiming your own counters again is fine.
	if err := l.Claim(idA, pmu.Bit(22)); err != nil {
		t.Fatal(err)
	}
	err := l.Claim(idB, pmu.Bit(22)|pmu.Bit(23))
	testAllocErr(t, err, ErrCounterUnavailable, "counter unavailable: counter 22 is owned by session "+idA.String())
	if _, ok := l.Owner(23); ok {
		t.Errorf("failed claim recorded counter 23")
	}
	if got, want := l.Reserved(idB), pmu.Bit(21)|pmu.Bit(22); got != want {
		t.Errorf("Reserved(B) = %s, want %s", got, want)
	}
	if got := l.Reserved(idA); got != 0 {
		t.Errorf("Reserved(A) = %s, want {}", got)
	}
	if got, want := l.Release(idA), pmu.Bit(21)|pmu.Bit(22); got != want {
		t.Errorf("Release(A) = %s, want %s", got, want)
	}
	if err := l.Claim(idB, pmu.Bit(22)|pmu.Bit(23)); err != nil {
		t.Error(err)
	}
}

func TestPlanAll(t *testing.T) {
	ledger := NewLedger()
	sessions := []Session{
		{ID: idA, Privilege: ku, Requests: reqs("UNC_LLC_HITS", "LAST_LEVEL_CACHE_MISSES")},
		{ID: idB, Privilege: ku, Requests: reqs("UNC_LLC_HITS", "UNC_LLC_MISS")},
		{Privilege: ku, Requests: reqs("UNC_CLK_UNHALTED")},
	}
	plans, err := PlanAll(context.Background(), pmu.Nehalem, catalog.Builtin, sessions, ledger)
	if err != nil {
		t.Fatal(err)
	}
	if sessions[2].ID == uuid.Nil {
		t.Errorf("session without an ID was not given one")
	}
	// Per-thread counters are not shared between sessions, but the shared
	// bank is, so the second session moves past the first.
	want := []pmu.Mask{
		pmu.Bit(21),
		pmu.Bit(22) | pmu.Bit(23),
		pmu.Bit(pmu.SharedFixedSlot),
	}
	for i, p := range plans {
		if got := sharedCounters(p); got != want[i] {
			t.Errorf("session %d: got shared counters %s, want %s", i, got, want[i])
		}
	}
	if got := plans[0].Assignments[1].Counter; got != 0 {
		t.Errorf("session 0: got generic counter %d, want 0", got)
	}
	for slot, id := range map[int]uuid.UUID{21: idA, 22: idB, 23: idB, pmu.SharedFixedSlot: sessions[2].ID} {
		if got, _ := ledger.Owner(slot); got != id {
			t.Errorf("counter %d owned by %s, want %s", slot, got, id)
		}
	}

	// A session that no longer fits reports every failure.
	var many []Request
	for range 6 {
		many = append(many, Request{Event: "UNC_LLC_HITS"})
	}
	sessions = []Session{
		{ID: idC, Privilege: ku, Requests: many},
		{ID: idC, Privilege: User, Requests: reqs("UNC_LLC_MISS")},
	}
	plans, err = PlanAll(context.Background(), pmu.Nehalem, catalog.Builtin, sessions, ledger)
	if !errors.Is(err, ErrNoAssignment) || !errors.Is(err, ErrUnsupportedFilter) {
		t.Errorf("want NoAssignment and UnsupportedFilter, got %v", err)
	}
	if errs := multierr.Errors(err); len(errs) != 2 {
		t.Errorf("want 2 errors, got %d: %v", len(errs), err)
	} else if want := "session " + idC.String() + ": request 5 (UNC_LLC_HITS): no counter available: no free shared counter at or after 8"; errs[0].Error() != want {
		t.Errorf("want error %s, got error %s", want, errs[0])
	}
	if plans[0] != nil || plans[1] != nil {
		t.Errorf("failed sessions have plans")
	}
}

func TestPlanAllConflict(t *testing.T) {
	// Both sessions are planned before either commits, so the second finds
	// its counter taken and must be planned again.
	var eight []Request
	for range 8 {
		eight = append(eight, Request{Event: "UNC_LLC_HITS"})
	}
	ledger := NewLedger()
	sessions := []Session{
		{ID: idA, Privilege: ku, Requests: eight},
		{ID: idB, Privilege: ku, Requests: reqs("UNC_LLC_MISS")},
	}
	plans, err := PlanAll(context.Background(), pmu.Nehalem, catalog.Builtin, sessions, ledger)
	want := "session " + idB.String() + ": request 0 (UNC_LLC_MISS): no counter available: no free shared counter at or after 0 (counter unavailable: counter 21 is owned by session " + idA.String() + ")"
	testAllocErr(t, err, ErrNoAssignment, want)
	if plans[0] == nil || plans[1] != nil {
		t.Errorf("got plans %v, want only the first", plans)
	}
}

func TestPlanAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PlanAll(ctx, pmu.Nehalem, catalog.Builtin, []Session{{ID: idA, Privilege: ku, Requests: reqs("UNC_LLC_HITS")}}, NewLedger())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}
