// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/aclements/go-pmualloc/pmu"
)

// An Assignment places one request on a counter.
type Assignment struct {
	Pool pmu.Pool
	// Counter is the slot number of the counter.
	Counter int
}

func (a Assignment) String() string {
	return fmt.Sprintf("%s:%d", a.Pool, a.Counter)
}

// Assign places each request on a counter, given the constraints computed by
// Extract. cons must be index-aligned with reqs. Counters in reserved are
// never used.
//
// Requests are placed in four passes: requests with a single legal counter,
// generic or shared, then fixed counters, then the rest of the shared bank,
// and finally the generic counters, most constrained request first. Within a pass, the lowest free
// counter wins. Assign fails on the first request it cannot place.
func Assign(m *pmu.Model, reqs []Request, cons []Constraint, reserved pmu.Mask, opts ...Option) ([]Assignment, error) {
	if len(reqs) != len(cons) {
		panic("alloc.Assign: requests and constraints differ in length")
	}
	return assign(newConfig(opts), m, reqs, cons, reserved)
}

func assign(cfg *config, m *pmu.Model, reqs []Request, cons []Constraint, reserved pmu.Mask) ([]Assignment, error) {
	log := cfg.log.WithField("model", m.String())
	out := make([]Assignment, len(reqs))
	owner := make(map[int]int) // slot -> request
	assigned := make([]bool, len(reqs))
	used := reserved

	claim := func(i, slot int, pass string) {
		p, _ := m.Pool(slot)
		out[i] = Assignment{Pool: p, Counter: slot}
		owner[slot] = i
		assigned[i] = true
		used |= pmu.Bit(slot)
		log.WithFields(logrus.Fields{
			"pass":    pass,
			"request": i,
			"event":   reqs[i].Event,
			"counter": slot,
		}).Debug("assigned counter")
	}
	whyTaken := func(slot int) string {
		if j, ok := owner[slot]; ok {
			return fmt.Sprintf("claimed by request %d (%s)", j, reqs[j].Event)
		}
		return "reserved"
	}

	// Requests that can use only one counter go first. Two such requests for
	// the same counter are a hard conflict.
	for i, c := range cons {
		switch {
		case c.Kind == Exclusive:
			slot := c.Legal.Lowest()
			if used.Has(slot) {
				return nil, reqError(i, reqs[i].Event, ErrCounterUnavailable, "pmc%d is %s", slot, whyTaken(slot))
			}
			claim(i, slot, "exclusive")
		case c.Kind == Shared && c.Legal.Count() == 1:
			slot := c.Legal.Lowest()
			if used.Has(slot) {
				return nil, reqError(i, reqs[i].Event, ErrCounterUnavailable, "shared counter %d is %s", slot-pmu.FirstShared, whyTaken(slot))
			}
			claim(i, slot, "exclusive")
		}
	}

	// Fixed counters. Eligible requests whose filters fixed counters cannot
	// express fall back to the generic pass. FixedOnly requests never do.
	for i, c := range cons {
		if c.Kind != FixedEligible && c.Kind != FixedOnly {
			continue
		}
		compatible := reqs[i].Filters.fixedCompatible(m.FixedAnyThread)
		free := c.Fixed &^ used
		if compatible && free != 0 {
			claim(i, free.Lowest(), "fixed")
			continue
		}
		if c.Kind == FixedOnly {
			k := c.Fixed.Lowest()
			if !compatible {
				return nil, reqError(i, reqs[i].Event, ErrNoAssignment, "fixed counter %d cannot apply the requested filters", k-pmu.FirstFixed)
			}
			return nil, reqError(i, reqs[i].Event, ErrNoAssignment, "fixed counter %d is %s", k-pmu.FirstFixed, whyTaken(k))
		}
		log.WithFields(logrus.Fields{"request": i, "event": reqs[i].Event}).Debug("fixed counter unavailable, using generic counters")
	}

	// The shared bank is allocated independently, in request order, with a
	// cursor that only moves forward.
	cursor := pmu.FirstShared
	for i, c := range cons {
		switch c.Kind {
		case SharedFixed:
			slot := c.Legal.Lowest()
			if reqs[i].Filters != (Filters{}) {
				return nil, reqError(i, reqs[i].Event, ErrNoAssignment, "the shared fixed counter cannot apply filters")
			}
			if used.Has(slot) {
				return nil, reqError(i, reqs[i].Event, ErrNoAssignment, "the shared fixed counter is %s", whyTaken(slot))
			}
			claim(i, slot, "shared")
		case Shared:
			if assigned[i] {
				continue
			}
			slot := (c.Legal &^ used).LowestFrom(cursor)
			if slot < 0 {
				return nil, reqError(i, reqs[i].Event, ErrNoAssignment, "no free shared counter at or after %d", cursor-pmu.FirstShared)
			}
			claim(i, slot, "shared")
			cursor = slot + 1
		}
	}

	// Everything left goes on generic counters, requests with fewer legal
	// counters first. Ties keep request order.
	var order []int
	for i, c := range cons {
		if (c.Kind == Generic || c.Kind == FixedEligible) && !assigned[i] {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cons[a].Legal.Count() - cons[b].Legal.Count()
	})
	for _, i := range order {
		slot := (cons[i].Legal &^ used).Lowest()
		if slot < 0 {
			return nil, reqError(i, reqs[i].Event, ErrNoAssignment, "every counter in %s is taken", cons[i].Legal)
		}
		claim(i, slot, "generic")
	}
	return out, nil
}
