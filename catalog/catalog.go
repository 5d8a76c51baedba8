// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package catalog defines per-model tables of hardware events: their codes,
// unit masks, and the counters they may be placed on.
package catalog

import (
	"errors"
	"fmt"
	"math/bits"
	"reflect"
	"strconv"
	"strings"

	"github.com/aclements/go-pmualloc/pmu"
)

// An EventID names an event in a catalog.
type EventID string

// An Event describes one event of a PMU model.
type Event struct {
	Name string
	Desc string

	// Code is the event select value. UMask is the base unit mask, which is
	// combined with the codes of any selected unit masks.
	Code  uint16
	UMask uint8

	// Edge, Invert, and Threshold are baseline filter settings used when the
	// caller does not set the corresponding filter.
	Edge      bool
	Invert    bool
	Threshold uint8

	UnitMasks []UnitMask
	Placement []Placement

	// NoCombo forbids selecting more than one unit mask. ComboWithThreshold
	// lifts that restriction when the caller sets a count threshold and the
	// selected unit masks do not overlap.
	NoCombo            bool
	ComboWithThreshold bool

	// Fill lists defaults applied to the combined unit mask at encode time.
	Fill []Fill

	// Revisions is the range of hardware revisions that implement this
	// event. Erratum, if set, names an erratum that makes the event unusable.
	Revisions pmu.RevisionRange
	Erratum   string
}

// A UnitMask refines the scope of an event.
type UnitMask struct {
	Name      string
	Desc      string
	Code      uint8
	Placement []Placement
	Revisions pmu.RevisionRange
}

// UnitMaskIndex returns the index of the named unit mask of e. Names are
// matched case-insensitively.
func (e *Event) UnitMaskIndex(name string) (int, bool) {
	for i := range e.UnitMasks {
		if strings.EqualFold(e.UnitMasks[i].Name, name) {
			return i, true
		}
	}
	return -1, false
}

// Has reports whether e carries a placement of the same kind as p.
func (e *Event) Has(p Placement) bool {
	return hasPlacement(e.Placement, p)
}

// Has reports whether u carries a placement of the same kind as p.
func (u *UnitMask) Has(p Placement) bool {
	return hasPlacement(u.Placement, p)
}

func hasPlacement(ps []Placement, p Placement) bool {
	for _, q := range ps {
		if reflect.TypeOf(q) == reflect.TypeOf(p) {
			return true
		}
	}
	return false
}

// A Fill is a default for an under-specified part of the unit mask: if none
// of the bits in Mask are set, Value is ORed in. For example, an event that
// needs a non-empty cache state mask uses Fill{0x0f, 0x0f} to count every
// state when the caller picks none.
type Fill struct {
	Mask  uint8 `yaml:"mask"`
	Value uint8 `yaml:"value"`
}

var (
	// FillCacheStates selects every MESI state.
	FillCacheStates = Fill{0x0f, 0x0f}
	// FillCoreSelf counts only the local core when no core scope is given.
	FillCoreSelf = Fill{0xc0, 0x40}
)

// Apply applies every fill in fills to umask.
func Apply(fills []Fill, umask uint8) uint8 {
	for _, f := range fills {
		if umask&f.Mask == 0 {
			umask |= f.Value
		}
	}
	return umask
}

// A Placement restricts the counters an event may occupy. It is one of
// Exclusive, CounterSet, FixedEligible, FixedOnly, Precise, or SharedBank.
type Placement interface {
	isPlacement()
	String() string
}

// Exclusive places an event only on generic counter Counter. Counter numbers
// of shared-bank events count from the first counter of the bank.
type Exclusive struct{ Counter int }

// CounterSet places an event on any of Counters, numbered like Exclusive.
type CounterSet struct{ Counters pmu.Mask }

// FixedEligible allows an event to use fixed counter Fixed in addition to
// the generic counters.
type FixedEligible struct{ Fixed int }

// FixedOnly places an event only on fixed counter Fixed. For a shared-bank
// event, this names the shared bank's fixed counter.
type FixedOnly struct{ Fixed int }

// Precise marks an event as usable for precise sampling.
type Precise struct{}

// SharedBank places an event on the shared (uncore) bank.
type SharedBank struct{}

func (Exclusive) isPlacement()     {}
func (CounterSet) isPlacement()    {}
func (FixedEligible) isPlacement() {}
func (FixedOnly) isPlacement()     {}
func (Precise) isPlacement()       {}
func (SharedBank) isPlacement()    {}

func (p Exclusive) String() string     { return "pmc" + strconv.Itoa(p.Counter) }
func (p FixedEligible) String() string { return "fixed" + strconv.Itoa(p.Fixed) }
func (p FixedOnly) String() string     { return "fixed" + strconv.Itoa(p.Fixed) + "-only" }
func (Precise) String() string         { return "precise" }
func (SharedBank) String() string      { return "shared" }

func (p CounterSet) String() string {
	s := p.Counters.String()
	return "counters:" + s[1:len(s)-1]
}

// ParsePlacement parses the String form of a Placement.
func ParsePlacement(s string) (Placement, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	num := func(prefix, suffix string) (int, bool) {
		if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
			return 0, false
		}
		n, err := strconv.Atoi(s[len(prefix) : len(s)-len(suffix)])
		return n, err == nil && n >= 0
	}
	switch {
	case s == "precise":
		return Precise{}, nil
	case s == "shared":
		return SharedBank{}, nil
	case strings.HasPrefix(s, "counters:"):
		m, err := pmu.ParseMask(strings.TrimPrefix(s, "counters:"))
		if err != nil {
			return nil, err
		}
		if m == 0 {
			break
		}
		return CounterSet{m}, nil
	}
	if n, ok := num("pmc", ""); ok {
		return Exclusive{n}, nil
	}
	if n, ok := num("fixed", "-only"); ok {
		return FixedOnly{n}, nil
	}
	if n, ok := num("fixed", ""); ok {
		return FixedEligible{n}, nil
	}
	return nil, fmt.Errorf("unknown placement %q", s)
}

// Errors returned by catalog lookups. They are wrapped with the name that
// was not found.
var (
	ErrUnknownModel    = errors.New("no event table for model")
	ErrUnknownEvent    = errors.New("unknown event")
	ErrUnknownUnitMask = errors.New("unknown unit mask")
)

// A Catalog looks up events by model and name.
type Catalog interface {
	LookupEvent(model string, id EventID) (*Event, error)
	LookupUnitMask(model string, id EventID, index int) (*UnitMask, error)
}

// A Decoder maps an encoded event select and unit mask back to an event and
// its unit mask selection.
type Decoder interface {
	Decode(model string, code uint16, umask uint8) (EventID, []int, error)
}

func popcount(x uint8) int {
	return bits.OnesCount8(x)
}
