// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"errors"
	"fmt"

	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/pmu"
)

// A ControlRegister is a value to write to a control register.
type ControlRegister struct {
	// Index identifies the register within the model. For generic and shared
	// counters it is the counter's slot; registers shared by several counters
	// use the pmu.Ctl constants.
	Index   int
	Address uint32
	Value   uint64
}

func (r ControlRegister) String() string {
	return fmt.Sprintf("ctl%d(%#x)=%#016x", r.Index, r.Address, r.Value)
}

// A DataRegister is the counter register that accumulates a request's
// counts.
type DataRegister struct {
	Index   int
	Address uint32
	// RDPMC is the counter's index for the rdpmc instruction, or -1 if it
	// cannot be read that way.
	RDPMC int
}

func (r DataRegister) String() string {
	return fmt.Sprintf("pmd%d(%#x)", r.Index, r.Address)
}

// An Encoded is the register programming for one assigned request.
type Encoded struct {
	Control ControlRegister
	Data    DataRegister
	// Config is the selector value without the enable, interrupt, and
	// privilege bits, as expected by kernel interfaces that set those
	// themselves. It always uses the selector layout of the counter's bank,
	// even for fixed counters.
	Config uint64
	// Privilege is the effective privilege level.
	Privilege Privilege
}

// Encode computes the control register value that programs req on the
// counter a. If req selects no privilege level, defaultPriv is used.
//
// Unit masks that leave part of the event under-specified are completed
// from the event's fills, so encoding does not depend on the counter.
func Encode(m *pmu.Model, cat catalog.Catalog, req *Request, a Assignment, defaultPriv Privilege) (Encoded, error) {
	var enc Encoded
	fail := func(err error, f string, args ...any) (Encoded, error) {
		return Encoded{}, reqError(-1, req.Event, err, f, args...)
	}

	ev, err := cat.LookupEvent(m.Catalog, req.Event)
	if err != nil {
		return fail(ErrInvalidRequest, "%s", err)
	}
	umask := ev.UMask
	for _, idx := range req.UnitMasks {
		um, err := cat.LookupUnitMask(m.Catalog, req.Event, idx)
		if err != nil {
			return fail(ErrInvalidRequest, "%s", err)
		}
		umask |= um.Code
	}
	umask = catalog.Apply(ev.Fill, umask)

	priv := req.Privilege
	if priv == 0 {
		priv = defaultPriv
	}
	switch {
	case priv == 0:
		return fail(ErrInvalidRequest, "no privilege level selected")
	case priv&Hypervisor != 0:
		return fail(ErrUnsupportedFilter, "%s counters cannot filter hypervisor mode", m.Name)
	}
	enc.Privilege = priv

	// The catalog's edge and invert bits are part of the event definition.
	f := req.Filters
	edge := f.Edge || ev.Edge
	invert := f.Invert || ev.Invert
	threshold := f.Threshold
	if threshold == 0 {
		threshold = uint64(ev.Threshold)
	}

	ctlIndex, ctlAddr, ok := m.Control(a.Counter)
	if !ok {
		return fail(ErrInvalidRequest, "%s has no counter %d", m.Name, a.Counter)
	}
	if p, _ := m.Pool(a.Counter); p != a.Pool {
		return fail(ErrInvalidRequest, "counter %d is %s, not %s", a.Counter, p, a.Pool)
	}
	enc.Control = ControlRegister{Index: ctlIndex, Address: ctlAddr}
	enc.Data.Index = a.Counter
	enc.Data.Address, enc.Data.RDPMC, _ = m.Data(a.Counter)

	// The selector word. For fixed counters this is only used for Config.
	layout := m.Layout(a.Pool)
	var sel uint64
	if err := layout.Set(&sel, pmu.FieldEvent, uint64(ev.Code)); err != nil {
		return fail(ErrInvalidRequest, "event code: %s", err)
	}
	if err := layout.Set(&sel, pmu.FieldUmask, uint64(umask)); err != nil {
		return fail(ErrInvalidRequest, "unit mask: %s", err)
	}
	setFlag := func(on bool, name, what string) error {
		if !on {
			return nil
		}
		if !layout.Has(name) {
			return reqError(-1, req.Event, ErrUnsupportedFilter, "%s counters cannot %s", a.Pool, what)
		}
		return layout.Set(&sel, name, 1)
	}
	if err := setFlag(edge, pmu.FieldEdge, "detect edges"); err != nil {
		return Encoded{}, err
	}
	if err := setFlag(invert, pmu.FieldInvert, "invert the threshold"); err != nil {
		return Encoded{}, err
	}
	if threshold != 0 {
		if m.MaxThreshold != 0 && threshold > m.MaxThreshold {
			return fail(ErrFilterOutOfRange, "%s", &pmu.RangeError{Field: pmu.FieldCmask, Value: threshold, Max: m.MaxThreshold})
		}
		if err := layout.Set(&sel, pmu.FieldCmask, threshold); err != nil {
			var rerr *pmu.RangeError
			if errors.As(err, &rerr) {
				return fail(ErrFilterOutOfRange, "%s", err)
			}
			return fail(ErrUnsupportedFilter, "%s", err)
		}
	}
	if err := setFlag(f.AnyThread, pmu.FieldAnyThread, "count across threads"); err != nil {
		return Encoded{}, err
	}
	if err := setFlag(f.OccupancyReset, pmu.FieldOccReset, "reset occupancy"); err != nil {
		return Encoded{}, err
	}
	if f.Guest || f.Host {
		if !layout.Has(pmu.FieldGuest) {
			return fail(ErrUnsupportedFilter, "%s counters cannot filter guest or host mode", a.Pool)
		}
		if !m.SupportsGuestHost() {
			return fail(ErrUnsupportedOnRevision, "guest and host filtering needs revision %s or later", m.GuestHostFrom)
		}
		if err := setFlag(f.Guest, pmu.FieldGuest, "filter guest mode"); err != nil {
			return Encoded{}, err
		}
		if err := setFlag(f.Host, pmu.FieldHost, "filter host mode"); err != nil {
			return Encoded{}, err
		}
	}
	enc.Config = sel

	switch a.Pool {
	case pmu.PoolGeneric:
		if priv&User != 0 {
			layout.Set(&sel, pmu.FieldUser, 1)
		}
		if priv&Kernel != 0 {
			layout.Set(&sel, pmu.FieldOS, 1)
		}
		layout.Set(&sel, pmu.FieldInt, 1)
		layout.Set(&sel, pmu.FieldEnable, 1)
		enc.Control.Value = sel

	case pmu.PoolShared:
		if priv != Kernel|User {
			return fail(ErrUnsupportedFilter, "shared counters count at every privilege level, not only %s", priv)
		}
		layout.Set(&sel, pmu.FieldInt, 1)
		layout.Set(&sel, pmu.FieldEnable, 1)
		enc.Control.Value = sel

	case pmu.PoolFixed:
		if edge || invert || threshold != 0 || f.OccupancyReset || f.Guest || f.Host {
			return fail(ErrUnsupportedFilter, "fixed counters filter only by privilege and thread")
		}
		fl := m.FixedCtrl
		var v uint64
		if priv&Kernel != 0 {
			fl.Set(&v, pmu.FieldOS, 1)
		}
		if priv&User != 0 {
			fl.Set(&v, pmu.FieldUser, 1)
		}
		if f.AnyThread {
			if err := fl.Set(&v, pmu.FieldAnyThread, 1); err != nil {
				return fail(ErrUnsupportedFilter, "%s", err)
			}
		}
		fl.Set(&v, pmu.FieldPMI, 1)
		enc.Control.Value = v << (4 * (a.Counter - pmu.FirstFixed))

	case pmu.PoolSharedFixed:
		if priv != Kernel|User {
			return fail(ErrUnsupportedFilter, "shared counters count at every privilege level, not only %s", priv)
		}
		if edge || invert || threshold != 0 || f != (Filters{}) {
			return fail(ErrUnsupportedFilter, "the shared fixed counter takes no filters")
		}
		var v uint64
		m.SharedFixedCtrl.Set(&v, pmu.FieldEnable, 1)
		m.SharedFixedCtrl.Set(&v, pmu.FieldPMI, 1)
		enc.Control.Value = v
	}
	return enc, nil
}
