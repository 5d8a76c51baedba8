// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

// AMD PerfEvtSel layout. The event select is 12 bits, split between bits 0-7
// and 32-35. Guest and host filtering appeared with family 10h.
var amdSelect = map[string]string{
	FieldEvent:  "config:0-7,32-35",
	FieldUmask:  "config:8-15",
	FieldUser:   "config:16",
	FieldOS:     "config:17",
	FieldEdge:   "config:18",
	FieldInt:    "config:20",
	FieldEnable: "config:22",
	FieldInvert: "config:23",
	FieldCmask:  "config:24-31",
	FieldGuest:  "config:40",
	FieldHost:   "config:41",
}

// AMD64 is the K7 through family 10h PMU with four generic counters.
var AMD64 = register(&Model{
	Name:    "amd64",
	Vendor:  AMD,
	Catalog: "amd64",

	Generic: Range(0, 4),

	Select:        mustLayout("PERFEVTSEL", amdSelect),
	MaxThreshold:  3,
	GuestHostFrom: RevFam10hB,

	SelectBase:    0xc0010000,
	SelectStride:  1,
	CounterBase:   0xc0010004,
	CounterStride: 1,

	CorePMU: "cpu",
})

// Fam15h is the AMD family 15h core PMU. Its six counters interleave selector
// and counter registers, so both use a stride of 2.
var Fam15h = register(&Model{
	Name:     "fam15h",
	Vendor:   AMD,
	Catalog:  "amd64",
	Revision: RevFam15hB,

	Generic: Range(0, 6),

	Select:        mustLayout("PERFEVTSEL", amdSelect),
	MaxThreshold:  3,
	GuestHostFrom: RevFam10hB,

	SelectBase:    0xc0010200,
	SelectStride:  2,
	CounterBase:   0xc0010201,
	CounterStride: 2,

	CorePMU: "cpu",
})
