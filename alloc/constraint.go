// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"fmt"
	"slices"

	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/pmu"
)

// A Kind classifies a constraint by the allocation pass that places it.
type Kind uint8

const (
	// Generic may use any counter in Legal.
	Generic Kind = iota
	// Exclusive must use the single counter in Legal.
	Exclusive
	// FixedEligible prefers a counter in Fixed and falls back to Legal.
	FixedEligible
	// FixedOnly must use the single counter in Fixed.
	FixedOnly
	// Shared uses the shared bank counters in Legal.
	Shared
	// SharedFixed uses the shared bank's fixed counter.
	SharedFixed
)

var kindNames = [...]string{
	Generic:       "generic",
	Exclusive:     "exclusive",
	FixedEligible: "fixed-eligible",
	FixedOnly:     "fixed-only",
	Shared:        "shared",
	SharedFixed:   "shared-fixed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// A Constraint is the set of counters one request may be placed on.
type Constraint struct {
	Kind Kind
	// Legal is the set of generic or shared bank slots the request may use.
	Legal pmu.Mask
	// Fixed is the set of fixed counter slots the request may use.
	Fixed pmu.Mask
	// Precise is set if Legal has been limited to precise-capable counters.
	Precise bool
}

func (c Constraint) String() string {
	s := c.Kind.String()
	if c.Legal != 0 {
		s += " " + c.Legal.String()
	}
	if c.Fixed != 0 {
		s += " fixed" + c.Fixed.String()
	}
	if c.Precise {
		s += " precise"
	}
	return s
}

// Extract computes the placement constraint of req on model m. It starts from
// the event's placements and narrows them with those of every selected unit
// mask.
func Extract(m *pmu.Model, cat catalog.Catalog, req *Request) (Constraint, error) {
	fail := func(err error, f string, args ...any) (Constraint, error) {
		return Constraint{}, reqError(-1, req.Event, err, f, args...)
	}

	ev, err := cat.LookupEvent(m.Catalog, req.Event)
	if err != nil {
		return fail(ErrInvalidRequest, "%s", err)
	}
	ums := make([]*catalog.UnitMask, len(req.UnitMasks))
	for i, idx := range req.UnitMasks {
		if slices.Contains(req.UnitMasks[:i], idx) {
			return fail(ErrInvalidRequest, "unit mask %d selected twice", idx)
		}
		if ums[i], err = cat.LookupUnitMask(m.Catalog, req.Event, idx); err != nil {
			return fail(ErrInvalidRequest, "%s", err)
		}
	}

	if !ev.Revisions.Contains(m.Revision) {
		return fail(ErrUnsupportedOnRevision, "%s implements %s, not %s", ev.Name, ev.Revisions, m.Revision)
	}
	if ev.Erratum != "" && m.HasErratum(ev.Erratum) {
		return fail(ErrUnsupportedOnRevision, "%s is unreliable due to erratum %s", ev.Name, ev.Erratum)
	}
	for _, um := range ums {
		if !um.Revisions.Contains(m.Revision) {
			return fail(ErrUnsupportedOnRevision, "unit mask %s implements %s, not %s", um.Name, um.Revisions, m.Revision)
		}
	}

	if ev.NoCombo && len(ums) > 1 && !comboAllowed(ev, ums, req.Filters.Threshold) {
		return fail(ErrIllegalUnitMaskCombination, "%s accepts one unit mask, got %d", ev.Name, len(ums))
	}

	// Shared bank events number their counters from the start of the bank.
	var c Constraint
	base, offset := m.Generic, 0
	shared := ev.Has(catalog.SharedBank{})
	if shared {
		if m.Shared == 0 && m.SharedFixed == 0 {
			return fail(ErrConflictingPlacement, "%s has no shared counter bank", m.Name)
		}
		base, offset = m.Shared, pmu.FirstShared
	}
	c.Legal = base

	exclusive, fixedOnly := -1, -1
	apply := func(ps []catalog.Placement) error {
		for _, p := range ps {
			switch p := p.(type) {
			case catalog.Exclusive:
				slot := offset + p.Counter
				if !base.Has(slot) {
					return fmt.Errorf("%s has no counter %s", m.Name, p)
				}
				if exclusive >= 0 && exclusive != slot {
					return fmt.Errorf("%s and pmc%d both demanded", p, exclusive-offset)
				}
				exclusive = slot
				c.Legal &= pmu.Bit(slot)
			case catalog.CounterSet:
				set := pmu.Mask(uint64(p.Counters)<<offset) & base
				if set == 0 {
					return fmt.Errorf("%s has none of %s", m.Name, p)
				}
				c.Legal &= set
			case catalog.FixedOnly:
				var slot int
				if shared {
					if p.Fixed != 0 || m.SharedFixed == 0 {
						return fmt.Errorf("%s has no shared counter %s", m.Name, p)
					}
					slot = pmu.SharedFixedSlot
				} else {
					slot = pmu.FirstFixed + p.Fixed
					if !m.Fixed.Has(slot) {
						return fmt.Errorf("%s has no counter %s", m.Name, p)
					}
				}
				if fixedOnly >= 0 && fixedOnly != slot {
					return fmt.Errorf("%s conflicts with another fixed counter", p)
				}
				fixedOnly = slot
			}
		}
		return nil
	}
	if err := apply(ev.Placement); err != nil {
		return fail(ErrConflictingPlacement, "%s", err)
	}
	for _, um := range ums {
		if err := apply(um.Placement); err != nil {
			return fail(ErrConflictingPlacement, "unit mask %s: %s", um.Name, err)
		}
	}
	if exclusive >= 0 && fixedOnly >= 0 {
		return fail(ErrConflictingPlacement, "demands both pmc%d and fixed counter %d", exclusive-offset, fixedOnly-pmu.FirstFixed)
	}
	if fixedOnly < 0 && c.Legal == 0 {
		return fail(ErrConflictingPlacement, "no counter satisfies every placement")
	}

	if req.Precise {
		if !preciseCapable(ev, ums) {
			return fail(ErrPreciseUnsupported, "%s cannot be sampled precisely", ev.Name)
		}
		if fixedOnly >= 0 || shared {
			return fail(ErrPreciseUnsupported, "%s is not counted on a precise-capable counter", ev.Name)
		}
		c.Legal &= m.Precise
		c.Precise = true
		if c.Legal == 0 {
			return fail(ErrPreciseUnsupported, "no precise-capable counter is legal for %s", ev.Name)
		}
	}

	switch {
	case shared && fixedOnly >= 0:
		c.Kind, c.Legal = SharedFixed, pmu.Bit(fixedOnly)
	case shared:
		c.Kind = Shared
	case fixedOnly >= 0:
		c.Kind, c.Legal, c.Fixed = FixedOnly, 0, pmu.Bit(fixedOnly)
	default:
		if !c.Precise && exclusive < 0 && ev.Threshold == 0 && !ev.Edge && !ev.Invert {
			c.Fixed = fixedEligible(m, ev, ums)
		}
		switch {
		case c.Fixed != 0:
			c.Kind = FixedEligible
		case c.Legal.Count() == 1:
			c.Kind = Exclusive
		default:
			c.Kind = Generic
		}
	}
	return c, nil
}

// comboAllowed reports whether a NoCombo event may still combine ums. Some
// events accept several unit masks once a threshold is set, as long as the
// unit masks select disjoint bits.
func comboAllowed(ev *catalog.Event, ums []*catalog.UnitMask, threshold uint64) bool {
	if !ev.ComboWithThreshold {
		return false
	}
	if threshold == 0 && ev.Threshold == 0 {
		return false
	}
	var seen uint8
	for _, um := range ums {
		if um.Code&seen != 0 {
			return false
		}
		seen |= um.Code
	}
	return true
}

// preciseCapable reports whether an event can be sampled precisely with the
// selected unit masks: either the event as a whole is precise, or every
// selected unit mask is.
func preciseCapable(ev *catalog.Event, ums []*catalog.UnitMask) bool {
	if ev.Has(catalog.Precise{}) {
		return true
	}
	if len(ums) == 0 {
		return false
	}
	for _, um := range ums {
		if !um.Has(catalog.Precise{}) {
			return false
		}
	}
	return true
}

// fixedEligible returns the fixed counters that can count ev with the
// selected unit masks. An event-level placement holds only if no unit mask
// changes the encoding. Unit mask placements must agree.
func fixedEligible(m *pmu.Model, ev *catalog.Event, ums []*catalog.UnitMask) pmu.Mask {
	var fixed pmu.Mask
	for _, p := range ev.Placement {
		if p, ok := p.(catalog.FixedEligible); ok {
			fixed |= pmu.Bit(pmu.FirstFixed + p.Fixed)
		}
	}
	for _, um := range ums {
		var own pmu.Mask
		for _, p := range um.Placement {
			if p, ok := p.(catalog.FixedEligible); ok {
				own |= pmu.Bit(pmu.FirstFixed + p.Fixed)
			}
		}
		switch {
		case own != 0 && fixed == 0:
			fixed = own
		case own != 0:
			fixed &= own
		case um.Code != 0:
			return 0
		}
	}
	// Eligibility is optional, so counters the model lacks are dropped.
	return fixed & m.Fixed
}
