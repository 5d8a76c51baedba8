// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pmu describes the counter space and register layout of hardware
// performance-monitoring units.
//
// Counters are identified by slot number in a flat space shared by all
// counter pools of a model: generic counters are slots 0 and up, fixed
// counter k is slot FirstFixed+k, the shared bank's fixed counter is
// SharedFixedSlot, and shared bank generic counter j is slot FirstShared+j.
// Control registers are numbered in a separate index space (see the Ctl
// constants), since several counters may share one control register.
package pmu

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Control register indexes that do not correspond to a single counter.
const (
	CtlFixed        = 16 // Fixed counter control, shared by all fixed counters
	CtlPEBS         = 17 // Precise sampling enable
	CtlSharedGlobal = 18 // Shared bank global control
	CtlSharedFixed  = SharedFixedSlot
)

// A Pool is one of the disjoint sub-pools of a model's counter space.
type Pool uint8

const (
	PoolGeneric Pool = iota
	PoolFixed
	PoolShared
	PoolSharedFixed
)

func (p Pool) String() string {
	switch p {
	case PoolGeneric:
		return "generic"
	case PoolFixed:
		return "fixed"
	case PoolShared:
		return "shared"
	case PoolSharedFixed:
		return "shared-fixed"
	}
	return fmt.Sprintf("Pool(%d)", int(p))
}

// Vendor identifies the register conventions of a model.
type Vendor uint8

const (
	Intel Vendor = iota
	AMD
)

// A Model describes one PMU. Models returned by Lookup are shared and must
// not be modified; use the With methods to derive variants.
type Model struct {
	Name     string
	Vendor   Vendor
	Revision Revision
	Errata   []string

	// Catalog is the name of the event table for this model. Several models
	// may share a table.
	Catalog string

	// Counter sub-pools. Precise is a subset of Generic.
	Generic     Mask
	Fixed       Mask
	Precise     Mask
	Shared      Mask
	SharedFixed Mask

	// Register layouts. FixedCtrl describes the 4-bit field of one fixed
	// counter; counter k's field is shifted left by 4*k.
	Select          *Layout
	FixedCtrl       *Layout
	SharedSelect    *Layout
	SharedFixedCtrl *Layout

	// FixedAnyThread is set if fixed counters can count across sibling
	// threads.
	FixedAnyThread bool

	// MaxThreshold bounds the count threshold below the width of the cmask
	// field. Zero means the field width is the only bound.
	MaxThreshold uint64

	// GuestHostFrom is the first revision with guest/host filtering. Zero
	// means every revision that has the fields supports them.
	GuestHostFrom Revision

	// Register addresses. Generic selector i is at SelectBase+SelectStride*i
	// and its counter at CounterBase+CounterStride*i.
	SelectBase, SelectStride   uint32
	CounterBase, CounterStride uint32
	FixedCtrlAddr              uint32
	FixedCounterBase           uint32
	SharedSelectBase           uint32
	SharedCounterBase          uint32
	SharedFixedCtrlAddr        uint32
	SharedFixedCounterAddr     uint32
	SharedGlobalCtrlAddr       uint32
	PEBSEnableAddr             uint32
	PEBSPerCounter             bool

	// CorePMU and SharedPMU name the kernel PMUs under
	// /sys/bus/event_source/devices that drive the core and shared counters.
	CorePMU   string
	SharedPMU string
}

// Slots returns every counter slot of m.
func (m *Model) Slots() Mask {
	return m.Generic | m.Fixed | m.Shared | m.SharedFixed
}

// Pool returns the sub-pool containing slot.
func (m *Model) Pool(slot int) (Pool, bool) {
	switch {
	case m.Generic.Has(slot):
		return PoolGeneric, true
	case m.Fixed.Has(slot):
		return PoolFixed, true
	case m.SharedFixed.Has(slot):
		return PoolSharedFixed, true
	case m.Shared.Has(slot):
		return PoolShared, true
	}
	return 0, false
}

// PoolMask returns the slots of pool p.
func (m *Model) PoolMask(p Pool) Mask {
	switch p {
	case PoolGeneric:
		return m.Generic
	case PoolFixed:
		return m.Fixed
	case PoolShared:
		return m.Shared
	case PoolSharedFixed:
		return m.SharedFixed
	}
	return 0
}

// Layout returns the selector layout used by counters in pool p. Fixed
// counters report the generic selector layout, which is the encoding their
// event would have on a generic counter.
func (m *Model) Layout(p Pool) *Layout {
	switch p {
	case PoolShared, PoolSharedFixed:
		return m.SharedSelect
	}
	return m.Select
}

// Control returns the control register index and address that configure
// slot.
func (m *Model) Control(slot int) (index int, addr uint32, ok bool) {
	p, ok := m.Pool(slot)
	if !ok {
		return 0, 0, false
	}
	switch p {
	case PoolGeneric:
		return slot, m.SelectBase + m.SelectStride*uint32(slot), true
	case PoolFixed:
		return CtlFixed, m.FixedCtrlAddr, true
	case PoolSharedFixed:
		return CtlSharedFixed, m.SharedFixedCtrlAddr, true
	case PoolShared:
		return slot, m.SharedSelectBase + uint32(slot-FirstShared), true
	}
	return 0, 0, false
}

// Data returns the address of the counter register for slot and its index
// for the rdpmc instruction. rdpmc is -1 if the counter cannot be read that
// way.
func (m *Model) Data(slot int) (addr uint32, rdpmc int, ok bool) {
	p, ok := m.Pool(slot)
	if !ok {
		return 0, -1, false
	}
	switch p {
	case PoolGeneric:
		return m.CounterBase + m.CounterStride*uint32(slot), slot, true
	case PoolFixed:
		k := slot - FirstFixed
		return m.FixedCounterBase + uint32(k), 1<<30 | k, true
	case PoolSharedFixed:
		return m.SharedFixedCounterAddr, -1, true
	case PoolShared:
		return m.SharedCounterBase + uint32(slot-FirstShared), -1, true
	}
	return 0, -1, false
}

// HasErratum reports whether m is affected by the named erratum.
func (m *Model) HasErratum(name string) bool {
	return slices.Contains(m.Errata, name)
}

// SupportsGuestHost reports whether m can filter by guest or host mode.
func (m *Model) SupportsGuestHost() bool {
	if !m.Select.Has(FieldGuest) {
		return false
	}
	return m.GuestHostFrom == 0 || m.Revision == RevUnknown || m.Revision >= m.GuestHostFrom
}

// WithRevision returns a copy of m for hardware revision rev.
func (m *Model) WithRevision(rev Revision) *Model {
	m2 := *m
	m2.Revision = rev
	return &m2
}

// WithErrata returns a copy of m that is additionally affected by the named
// errata.
func (m *Model) WithErrata(names ...string) *Model {
	m2 := *m
	m2.Errata = append(slices.Clip(m.Errata), names...)
	return &m2
}

// WithoutErrata returns a copy of m with no errata.
func (m *Model) WithoutErrata() *Model {
	m2 := *m
	m2.Errata = nil
	return &m2
}

func (m *Model) String() string {
	if m.Revision != RevUnknown {
		return m.Name + "/" + m.Revision.String()
	}
	return m.Name
}

var models = map[string]*Model{}

func register(m *Model) *Model {
	if _, ok := models[m.Name]; ok {
		panic("duplicate model " + m.Name)
	}
	models[m.Name] = m
	return m
}

// Lookup returns the model called name. A name may carry a revision suffix,
// as in "amd64/fam10hb".
func Lookup(name string) (*Model, error) {
	base, rev, hasRev := strings.Cut(name, "/")
	m, ok := models[base]
	if !ok {
		return nil, fmt.Errorf("unknown PMU model %q (known: %s)", base, strings.Join(Names(), ", "))
	}
	if hasRev {
		r, err := ParseRevision(rev)
		if err != nil {
			return nil, err
		}
		m = m.WithRevision(r)
	}
	return m, nil
}

// Names returns the names of the built-in models.
func Names() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
