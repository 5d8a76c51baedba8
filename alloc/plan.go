// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/pmu"
)

// A Plan is the result of a successful allocation. Assignments, Controls,
// Data, Configs, and Privileges are index-aligned with the requests passed to
// Allocate. A Plan must not be modified.
type Plan struct {
	Model       *pmu.Model
	Assignments []Assignment
	Controls    []ControlRegister
	Data        []DataRegister
	Configs     []uint64
	Privileges  []Privilege

	// Globals are model-wide control registers needed by the plan, such as
	// the precise sampling enable and the shared bank's global control.
	Globals []ControlRegister
}

// Allocate assigns a counter to every request and encodes the registers that
// program them. Requests that select no privilege level count at
// defaultPriv. Counters in reserved are left alone.
//
// Allocate either succeeds for every request or returns an *Error for the
// first request that could not be satisfied.
func Allocate(m *pmu.Model, cat catalog.Catalog, reqs []Request, defaultPriv Privilege, reserved pmu.Mask, opts ...Option) (*Plan, error) {
	cfg := newConfig(opts)
	log := cfg.log.WithField("model", m.String())

	cons := make([]Constraint, len(reqs))
	for i := range reqs {
		c, err := Extract(m, cat, &reqs[i])
		if err != nil {
			return nil, withIndex(err, i, reqs[i].Event)
		}
		log.WithFields(logrus.Fields{"request": i, "event": reqs[i].Event}).Debugf("constraint %s", c)
		cons[i] = c
	}

	asg, err := assign(cfg, m, reqs, cons, reserved)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Model:       m,
		Assignments: asg,
		Controls:    make([]ControlRegister, len(reqs)),
		Data:        make([]DataRegister, len(reqs)),
		Configs:     make([]uint64, len(reqs)),
		Privileges:  make([]Privilege, len(reqs)),
	}
	for i := range reqs {
		enc, err := Encode(m, cat, &reqs[i], asg[i], defaultPriv)
		if err != nil {
			return nil, withIndex(err, i, reqs[i].Event)
		}
		p.Controls[i] = enc.Control
		p.Data[i] = enc.Data
		p.Configs[i] = enc.Config
		p.Privileges[i] = enc.Privilege
	}
	p.Globals = globals(m, reqs, asg)

	for i, r := range p.Controls {
		log.Debugf("%s %s -> %s %s", reqs[i].Event, asg[i], r, p.Data[i])
	}
	for _, r := range p.Globals {
		log.Debugf("global %s", r)
	}
	return p, nil
}

// globals computes the model-wide control registers for a plan.
func globals(m *pmu.Model, reqs []Request, asg []Assignment) []ControlRegister {
	var out []ControlRegister

	if m.PEBSEnableAddr != 0 {
		var v uint64
		for i, r := range reqs {
			if !r.Precise {
				continue
			}
			if m.PEBSPerCounter {
				v |= 1 << asg[i].Counter
			} else {
				v = 1
			}
		}
		if v != 0 {
			out = append(out, ControlRegister{Index: pmu.CtlPEBS, Address: m.PEBSEnableAddr, Value: v})
		}
	}

	if m.SharedGlobalCtrlAddr != 0 {
		var v uint64
		for _, a := range asg {
			switch a.Pool {
			case pmu.PoolShared:
				v |= 1 << (a.Counter - pmu.FirstShared)
			case pmu.PoolSharedFixed:
				v |= 1 << 32
			}
		}
		if v != 0 {
			out = append(out, ControlRegister{Index: pmu.CtlSharedGlobal, Address: m.SharedGlobalCtrlAddr, Value: v})
		}
	}
	return out
}

// Program returns the sequence of register writes that installs p. Requests
// that share a control register, such as several fixed counters, are merged
// into a single write. Global registers come last.
func (p *Plan) Program() []ControlRegister {
	var out []ControlRegister
	at := make(map[uint32]int)
	for _, r := range p.Controls {
		if i, ok := at[r.Address]; ok {
			out[i].Value |= r.Value
			continue
		}
		at[r.Address] = len(out)
		out = append(out, r)
	}
	return append(out, p.Globals...)
}

// Decode recovers the event and unit mask selection of request i from its
// encoded registers. Unit masks filled in by default decode as if they had
// been selected explicitly.
func (p *Plan) Decode(dec catalog.Decoder, i int) (catalog.EventID, []int, error) {
	if i < 0 || i >= len(p.Assignments) {
		return "", nil, fmt.Errorf("plan has no request %d", i)
	}
	a := p.Assignments[i]
	word := p.Controls[i].Value
	if a.Pool == pmu.PoolFixed || a.Pool == pmu.PoolSharedFixed {
		// These control registers do not carry the event.
		word = p.Configs[i]
	}
	layout := p.Model.Layout(a.Pool)
	code := layout.Get(word, pmu.FieldEvent)
	umask := layout.Get(word, pmu.FieldUmask)
	return dec.Decode(p.Model.Catalog, uint16(code), uint8(umask))
}
