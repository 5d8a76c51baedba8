// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

// Erratum names understood by the built-in event tables.
const (
	// ErratumAAJ80 makes mispredicted-branch counts unreliable on early
	// Nehalem parts.
	ErratumAAJ80 = "AAJ80"
)

// Intel architectural PERFEVTSEL layout. See Intel SDM Vol. 3B, "Architectural
// Performance Monitoring".
var intelSelect = map[string]string{
	FieldEvent:  "config:0-7",
	FieldUmask:  "config:8-15",
	FieldUser:   "config:16",
	FieldOS:     "config:17",
	FieldEdge:   "config:18",
	FieldPinCtl: "config:19",
	FieldInt:    "config:20",
	FieldEnable: "config:22",
	FieldInvert: "config:23",
	FieldCmask:  "config:24-31",
}

func withFields(base map[string]string, extra map[string]string) map[string]string {
	m := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		m[k] = v
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// Core is the Intel Core 2 PMU: two generic counters and three fixed
// counters. Only PMC0 supports precise sampling.
var Core = register(&Model{
	Name:    "core",
	Vendor:  Intel,
	Catalog: "core",

	Generic: Range(0, 2),
	Fixed:   Range(FirstFixed, 3),
	Precise: Bit(0),

	Select: mustLayout("PERFEVTSEL", intelSelect),
	FixedCtrl: mustLayout("FIXED_CTR_CTRL", map[string]string{
		FieldOS:   "config:0",
		FieldUser: "config:1",
		FieldPMI:  "config:3",
	}),

	SelectBase:       0x186,
	SelectStride:     1,
	CounterBase:      0xc1,
	CounterStride:    1,
	FixedCtrlAddr:    0x38d,
	FixedCounterBase: 0x309,
	PEBSEnableAddr:   0x3f1,

	CorePMU: "cpu",
})

// Nehalem is the Intel Core i7 PMU. It adds two generic counters, thread
// scoping on every counter, and a shared uncore bank with one fixed and eight
// generic counters.
var Nehalem = register(&Model{
	Name:    "nhm",
	Vendor:  Intel,
	Catalog: "nhm",
	Errata:  []string{ErratumAAJ80},

	Generic:     Range(0, 4),
	Fixed:       Range(FirstFixed, 3),
	Precise:     Range(0, 4),
	Shared:      Range(FirstShared, 8),
	SharedFixed: Bit(SharedFixedSlot),

	Select: mustLayout("PERFEVTSEL", withFields(intelSelect, map[string]string{
		FieldAnyThread: "config:21",
	})),
	FixedCtrl: mustLayout("FIXED_CTR_CTRL", map[string]string{
		FieldOS:        "config:0",
		FieldUser:      "config:1",
		FieldAnyThread: "config:2",
		FieldPMI:       "config:3",
	}),
	SharedSelect: mustLayout("UNC_PERFEVTSEL", map[string]string{
		FieldEvent:    "config:0-7",
		FieldUmask:    "config:8-15",
		FieldOccReset: "config:17",
		FieldEdge:     "config:18",
		FieldInt:      "config:20",
		FieldEnable:   "config:22",
		FieldInvert:   "config:23",
		FieldCmask:    "config:24-31",
	}),
	SharedFixedCtrl: mustLayout("UNC_FIXED_CTR_CTRL", map[string]string{
		FieldEnable: "config:0",
		FieldPMI:    "config:2",
	}),
	FixedAnyThread: true,

	SelectBase:             0x186,
	SelectStride:           1,
	CounterBase:            0xc1,
	CounterStride:          1,
	FixedCtrlAddr:          0x38d,
	FixedCounterBase:       0x309,
	SharedSelectBase:       0x3c0,
	SharedCounterBase:      0x3b0,
	SharedFixedCtrlAddr:    0x395,
	SharedFixedCounterAddr: 0x394,
	SharedGlobalCtrlAddr:   0x391,
	PEBSEnableAddr:         0x3f1,
	PEBSPerCounter:         true,

	CorePMU:   "cpu",
	SharedPMU: "uncore",
})
