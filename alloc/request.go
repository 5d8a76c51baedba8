// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alloc assigns hardware performance counters to event requests and
// encodes the control register values that program them.
//
// Allocation is a pure function of a PMU model, an event catalog, the
// requests, and a set of counters the caller has already reserved. It
// either assigns every request or fails as a whole.
package alloc

import (
	"fmt"
	"strings"

	"github.com/aclements/go-pmualloc/catalog"
)

// A Privilege is a set of privilege levels to count at.
type Privilege uint8

const (
	Kernel Privilege = 1 << iota
	User
	Hypervisor
)

func (p Privilege) String() string {
	if p == 0 {
		return "none"
	}
	var parts []string
	if p&Kernel != 0 {
		parts = append(parts, "k")
	}
	if p&User != 0 {
		parts = append(parts, "u")
	}
	if p&Hypervisor != 0 {
		parts = append(parts, "h")
	}
	return strings.Join(parts, "")
}

// ParsePrivilege parses a set of privilege levels written as the letters k,
// u, and h, such as "ku".
func ParsePrivilege(s string) (Privilege, error) {
	var p Privilege
	for _, c := range s {
		switch c {
		case 'k':
			p |= Kernel
		case 'u':
			p |= User
		case 'h':
			p |= Hypervisor
		default:
			return 0, fmt.Errorf("bad privilege level %q in %q", c, s)
		}
	}
	return p, nil
}

func (p Privilege) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Privilege) UnmarshalText(b []byte) error {
	if string(b) == "none" {
		*p = 0
		return nil
	}
	var err error
	*p, err = ParsePrivilege(string(b))
	return err
}

// Filters are per-request counting filters. A zero field means the event's
// baseline from the catalog. Edge and Invert can only add to the baseline:
// an event whose catalog entry sets them always counts with them set.
type Filters struct {
	Edge      bool
	Invert    bool
	Threshold uint64

	// AnyThread counts events of every hardware thread of the core.
	AnyThread bool
	// OccupancyReset resets the occupancy counter of a shared-bank event.
	OccupancyReset bool

	Guest bool
	Host  bool
}

// fixedCompatible reports whether f can be expressed on a fixed counter.
// Fixed counters filter only by privilege and, on some models, thread scope.
func (f *Filters) fixedCompatible(anyThread bool) bool {
	if f.Edge || f.Invert || f.Threshold != 0 || f.OccupancyReset || f.Guest || f.Host {
		return false
	}
	return anyThread || !f.AnyThread
}

// A Request asks for one event to be counted.
type Request struct {
	Event catalog.EventID
	// Privilege is the set of levels to count at. If empty, the call-wide
	// default is used.
	Privilege Privilege
	// UnitMasks are indexes into the event's unit masks.
	UnitMasks []int
	Filters   Filters
	// Precise asks for a counter capable of precise sampling.
	Precise bool
}
