// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import "github.com/aclements/go-pmualloc/pmu"

// builtinEvents maps a catalog name to a function that returns a fresh copy
// of its events. These are representative subsets of the vendor event
// lists, chosen to cover every placement rule of each model.
var builtinEvents = map[string]func() []Event{
	"core":  coreEvents,
	"nhm":   nhmEvents,
	"amd64": amd64Events,
}

// mesiUnitMasks returns the cache line state unit masks shared by many Intel
// cache events.
func mesiUnitMasks() []UnitMask {
	return []UnitMask{
		{Name: "MESI", Desc: "Any cacheline access", Code: 0x0f},
		{Name: "I_STATE", Desc: "Invalid cacheline", Code: 0x01},
		{Name: "S_STATE", Desc: "Shared cacheline", Code: 0x02},
		{Name: "E_STATE", Desc: "Exclusive cacheline", Code: 0x04},
		{Name: "M_STATE", Desc: "Modified cacheline", Code: 0x08},
	}
}

// coreScopeUnitMasks returns the core specificity unit masks of Core 2
// events that can count for either core of a package.
func coreScopeUnitMasks() []UnitMask {
	return []UnitMask{
		{Name: "SELF", Desc: "This core", Code: 0x40},
		{Name: "BOTH_CORES", Desc: "Both cores", Code: 0xc0},
	}
}

func concat(groups ...[]UnitMask) []UnitMask {
	var out []UnitMask
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func portUnitMasks(prefix string, n int) []UnitMask {
	var out []UnitMask
	for i := 0; i < n; i++ {
		out = append(out, UnitMask{Name: prefix + string(rune('0'+i)), Code: 1 << i})
	}
	return out
}

func coreEvents() []Event {
	pmc0 := []Placement{Exclusive{0}}
	pmc1 := []Placement{Exclusive{1}}
	precise := []Placement{Precise{}}
	return []Event{
		{Name: "UNHALTED_CORE_CYCLES", Code: 0x3c, Placement: []Placement{FixedEligible{1}},
			Desc: "Count core clock cycles whenever the clock signal on the specific core is running (not halted)"},
		{Name: "INSTRUCTIONS_RETIRED", Code: 0xc0, Placement: []Placement{FixedEligible{0}},
			Desc: "Count the number of instructions at retirement"},
		{Name: "UNHALTED_REFERENCE_CYCLES", Code: 0x3c, UMask: 0x01, Placement: []Placement{FixedOnly{2}},
			Desc: "Unhalted reference cycles"},
		{Name: "LAST_LEVEL_CACHE_REFERENCES", Code: 0x2e, UMask: 0x4f,
			Desc: "Count each request originating from the core to reference a cache line in the last level cache"},
		{Name: "LAST_LEVEL_CACHE_MISSES", Code: 0x2e, UMask: 0x41,
			Desc: "Count each cache miss condition for references to the last level cache"},
		{Name: "BRANCH_INSTRUCTIONS_RETIRED", Code: 0xc4,
			Desc: "Count branch instructions at retirement"},
		{Name: "MISPREDICTED_BRANCH_RETIRED", Code: 0xc5,
			Desc: "Count mispredicted branch instructions at retirement"},
		{Name: "RS_UOPS_DISPATCHED_CYCLES", Code: 0xa1, Placement: pmc0,
			Desc: "Cycles micro-ops dispatched for execution",
			UnitMasks: concat(portUnitMasks("PORT_", 6), []UnitMask{
				{Name: "ANY", Desc: "On any port", Code: 0x3f},
			})},
		{Name: "FP_COMP_OPS_EXE", Code: 0x10, Placement: pmc0,
			Desc: "Floating point computational micro-ops executed"},
		{Name: "FP_ASSIST", Code: 0x11, Placement: pmc1,
			Desc: "Floating point assists"},
		{Name: "MUL", Code: 0x12, Placement: pmc1,
			Desc: "Multiply operations executed"},
		{Name: "DIV", Code: 0x13, Placement: pmc1,
			Desc: "Divide operations executed"},
		{Name: "CYCLES_DIV_BUSY", Code: 0x14, Placement: pmc0,
			Desc: "Cycles the divider is busy"},
		{Name: "L2_LINES_IN", Code: 0x24, Fill: []Fill{FillCoreSelf},
			Desc: "L2 cache misses",
			UnitMasks: concat(coreScopeUnitMasks(), []UnitMask{
				{Name: "ANY", Desc: "All inclusive", Code: 0x30},
				{Name: "PREFETCH", Desc: "Hardware prefetch only", Code: 0x10},
			})},
		{Name: "L2_IFETCH", Code: 0x28, Fill: []Fill{FillCacheStates, FillCoreSelf},
			Desc:      "L2 cacheable instruction fetch requests",
			UnitMasks: concat(mesiUnitMasks(), coreScopeUnitMasks())},
		{Name: "L2_LD", Code: 0x29, Fill: []Fill{FillCacheStates, FillCoreSelf},
			Desc:      "L2 cache reads",
			UnitMasks: concat(mesiUnitMasks(), coreScopeUnitMasks())},
		{Name: "L2_ST", Code: 0x2a, Fill: []Fill{FillCacheStates, FillCoreSelf},
			Desc:      "L2 store requests",
			UnitMasks: concat(mesiUnitMasks(), coreScopeUnitMasks())},
		{Name: "CPU_CLK_UNHALTED", Code: 0x3c, NoCombo: true,
			Desc: "Core cycles when core is not halted",
			UnitMasks: []UnitMask{
				{Name: "CORE_P", Desc: "Core cycles when core is not halted", Code: 0x00},
				{Name: "REF", Desc: "Reference cycles. Only usable on the reference cycle fixed counter", Code: 0x01,
					Placement: []Placement{FixedOnly{2}}},
				{Name: "BUS", Desc: "Bus cycles when core is not halted", Code: 0x01},
				{Name: "NO_OTHER", Desc: "Bus cycles when core is active and the other is halted", Code: 0x02},
			}},
		{Name: "L1D_CACHE_LD", Code: 0x40, Fill: []Fill{FillCacheStates},
			Desc: "L1 cacheable data reads", UnitMasks: mesiUnitMasks()},
		{Name: "L1D_CACHE_ST", Code: 0x41, Fill: []Fill{FillCacheStates},
			Desc: "L1 cacheable data writes", UnitMasks: mesiUnitMasks()},
		{Name: "BUS_TRANS_ANY", Code: 0x70, Fill: []Fill{FillCoreSelf},
			Desc: "All bus transactions",
			UnitMasks: concat(coreScopeUnitMasks(), []UnitMask{
				{Name: "THIS_AGENT", Desc: "This agent", Code: 0x00},
				{Name: "ALL_AGENTS", Desc: "Any agent on the bus", Code: 0x20},
			})},
		{Name: "INST_RETIRED", Code: 0xc0,
			Desc: "Instructions retired",
			UnitMasks: []UnitMask{
				{Name: "ANY_P", Desc: "Instructions retired (precise event)", Code: 0x00, Placement: precise},
				{Name: "LOADS", Desc: "Instructions retired, which contain a load", Code: 0x01},
				{Name: "STORES", Desc: "Instructions retired, which contain a store", Code: 0x02},
				{Name: "OTHER", Desc: "Instructions retired, with no load or store operation", Code: 0x04},
			}},
		{Name: "X87_OPS_RETIRED", Code: 0xc1,
			Desc: "Retired floating-point instructions",
			UnitMasks: []UnitMask{
				{Name: "FXCH", Desc: "FXCH instructions retired", Code: 0x01},
				{Name: "ANY", Desc: "Retired floating-point computational operations (precise event)", Code: 0xfe, Placement: precise},
			}},
		{Name: "BR_INST_RETIRED", Code: 0xc4,
			Desc: "Retired branch instructions",
			UnitMasks: []UnitMask{
				{Name: "ANY", Desc: "Retired branch instructions", Code: 0x00},
				{Name: "PRED_NOT_TAKEN", Desc: "Retired branch instructions that were predicted not-taken", Code: 0x01},
				{Name: "MISPRED_NOT_TAKEN", Desc: "Retired branch instructions that were mispredicted not-taken", Code: 0x02},
				{Name: "PRED_TAKEN", Desc: "Retired branch instructions that were predicted taken", Code: 0x04},
				{Name: "MISPRED_TAKEN", Desc: "Retired branch instructions that were mispredicted taken", Code: 0x08},
				{Name: "TAKEN", Desc: "Retired taken branch instructions", Code: 0x0c},
			}},
		{Name: "BR_INST_RETIRED_MISPRED", Code: 0xc5, Placement: precise,
			Desc: "Retired mispredicted branch instructions (precise event)"},
		{Name: "MEM_LOAD_RETIRED", Code: 0xcb, Placement: pmc0, NoCombo: true,
			Desc: "Retired loads that miss the L1 data cache",
			UnitMasks: []UnitMask{
				{Name: "L1D_MISS", Desc: "Retired loads that miss the L1 data cache (precise event)", Code: 0x01, Placement: precise},
				{Name: "L1D_LINE_MISS", Desc: "L1 data cache line missed by retired loads (precise event)", Code: 0x02, Placement: precise},
				{Name: "L2_MISS", Desc: "Retired loads that miss the L2 cache (precise event)", Code: 0x04, Placement: precise},
				{Name: "L2_LINE_MISS", Desc: "L2 cache line missed by retired loads (precise event)", Code: 0x08, Placement: precise},
				{Name: "DTLB_MISS", Desc: "Retired loads that miss the DTLB (precise event)", Code: 0x10, Placement: precise},
			}},
		{Name: "SSE_PRE_EXEC", Code: 0x07, NoCombo: true,
			Desc: "Streaming SIMD Extensions (SSE) Prefetch instructions executed",
			UnitMasks: []UnitMask{
				{Name: "NTA", Desc: "Prefetch NTA instructions executed", Code: 0x00},
				{Name: "L1", Desc: "Prefetch T0 instructions executed", Code: 0x01},
				{Name: "L2", Desc: "PREFETCHT1 and PREFETCHT2 instructions executed", Code: 0x02},
				{Name: "STORES", Desc: "Weakly-ordered store instructions executed", Code: 0x03},
			}},
	}
}

func nhmEvents() []Event {
	pmc01 := []Placement{CounterSet{pmu.Bit(0) | pmu.Bit(1)}}
	precise := []Placement{Precise{}}
	shared := []Placement{SharedBank{}}
	channels := func() []UnitMask {
		return []UnitMask{
			{Name: "CH0", Desc: "Channel 0", Code: 0x01},
			{Name: "CH1", Desc: "Channel 1", Code: 0x02},
			{Name: "CH2", Desc: "Channel 2", Code: 0x04},
			{Name: "ANY", Desc: "Any channel", Code: 0x07},
		}
	}
	llc := func() []UnitMask {
		return []UnitMask{
			{Name: "READ", Desc: "Reads", Code: 0x01},
			{Name: "WRITE", Desc: "Writebacks", Code: 0x02},
			{Name: "ANY", Desc: "Reads and writebacks", Code: 0x03},
			{Name: "PROBE", Desc: "Probes", Code: 0x04},
		}
	}
	return []Event{
		{Name: "UNHALTED_CORE_CYCLES", Code: 0x3c, Placement: []Placement{FixedEligible{1}},
			Desc: "Count core clock cycles whenever the clock signal on the specific core is running (not halted)"},
		{Name: "INSTRUCTIONS_RETIRED", Code: 0xc0, Placement: []Placement{FixedEligible{0}},
			Desc: "Count the number of instructions at retirement"},
		{Name: "UNHALTED_REFERENCE_CYCLES", Code: 0x3c, UMask: 0x01, Placement: []Placement{FixedOnly{2}},
			Desc: "Unhalted reference cycles"},
		{Name: "LAST_LEVEL_CACHE_REFERENCES", Code: 0x2e, UMask: 0x4f,
			Desc: "Count each request originating from the core to reference a cache line in the last level cache"},
		{Name: "LAST_LEVEL_CACHE_MISSES", Code: 0x2e, UMask: 0x41,
			Desc: "Count each cache miss condition for references to the last level cache"},
		{Name: "BR_INST_RETIRED", Code: 0xc4, Placement: precise,
			Desc: "Retired branch instructions",
			UnitMasks: []UnitMask{
				{Name: "ALL_BRANCHES", Desc: "Retired branch instructions", Code: 0x04},
				{Name: "CONDITIONAL", Desc: "Retired conditional branch instructions", Code: 0x01},
				{Name: "NEAR_CALL", Desc: "Retired near call instructions", Code: 0x02},
			}},
		{Name: "BR_MISP_RETIRED", Code: 0xc5, Placement: precise, Erratum: pmu.ErratumAAJ80,
			Desc: "Mispredicted retired branch instructions",
			UnitMasks: []UnitMask{
				{Name: "ALL_BRANCHES", Desc: "Mispredicted retired branch instructions", Code: 0x04},
				{Name: "NEAR_CALL", Desc: "Mispredicted near retired calls", Code: 0x02},
			}},
		{Name: "L1D", Code: 0x51, Placement: pmc01,
			Desc: "L1D cache",
			UnitMasks: []UnitMask{
				{Name: "REPL", Desc: "L1 data cache lines allocated", Code: 0x01},
				{Name: "M_REPL", Desc: "L1D cache lines allocated in the M state", Code: 0x02},
				{Name: "M_EVICT", Desc: "L1D cache lines replaced in M state", Code: 0x04},
				{Name: "M_SNOOP_EVICT", Desc: "L1D snoop eviction of cache lines in M state", Code: 0x08},
			}},
		{Name: "L1D_CACHE_LD", Code: 0x40, Placement: pmc01, Fill: []Fill{FillCacheStates},
			Desc: "L1 data cache read requests", UnitMasks: mesiUnitMasks()},
		{Name: "L1D_CACHE_ST", Code: 0x41, Placement: pmc01, Fill: []Fill{FillCacheStates},
			Desc: "L1 data cache stores", UnitMasks: mesiUnitMasks()},
		{Name: "MEM_INST_RETIRED", Code: 0x0b, Placement: precise,
			Desc: "Memory instructions retired",
			UnitMasks: []UnitMask{
				{Name: "LOADS", Desc: "Instructions retired which contains a load", Code: 0x01},
				{Name: "STORES", Desc: "Instructions retired which contains a store", Code: 0x02},
			}},
		{Name: "MEM_LOAD_RETIRED", Code: 0xcb, Placement: precise,
			Desc: "Retired loads",
			UnitMasks: []UnitMask{
				{Name: "L1D_HIT", Desc: "Retired loads that hit the L1 data cache", Code: 0x01},
				{Name: "L2_HIT", Desc: "Retired loads that hit the L2 cache", Code: 0x02},
				{Name: "LLC_UNSHARED_HIT", Desc: "Retired loads that hit valid versions in the LLC cache", Code: 0x04},
				{Name: "OTHER_CORE_L2_HIT_HITM", Desc: "Retired loads that hit sibling core's L2 in modified or unmodified states", Code: 0x08},
				{Name: "LLC_MISS", Desc: "Retired loads that miss the LLC cache", Code: 0x10},
				{Name: "HIT_LFB", Desc: "Retired loads that miss L1D and hit a previously allocated LFB", Code: 0x40},
				{Name: "DTLB_MISS", Desc: "Retired loads that miss the DTLB", Code: 0x80},
			}},
		{Name: "INST_RETIRED", Code: 0xc0, Placement: precise,
			Desc: "Instructions retired",
			UnitMasks: []UnitMask{
				{Name: "ANY_P", Desc: "Instructions retired (general counter)", Code: 0x01},
				{Name: "X87", Desc: "Retired floating-point operations", Code: 0x02},
				{Name: "MMX", Desc: "Retired MMX instructions", Code: 0x04},
			}},
		{Name: "UOPS_ISSUED", Code: 0x0e, NoCombo: true, ComboWithThreshold: true,
			Desc: "Uops issued",
			UnitMasks: []UnitMask{
				{Name: "ANY", Desc: "Uops issued", Code: 0x01},
				{Name: "FUSED", Desc: "Fused Uops issued", Code: 0x02},
			}},
		{Name: "UOPS_ISSUED_STALL_CYCLES", Code: 0x0e, UMask: 0x01, Invert: true, Threshold: 1,
			Desc: "Cycles no uops were issued"},
		{Name: "UOPS_EXECUTED", Code: 0xb1, NoCombo: true, ComboWithThreshold: true,
			Desc: "Micro-ops executed",
			UnitMasks: []UnitMask{
				{Name: "PORT0", Desc: "Uops executed on port 0", Code: 0x01},
				{Name: "PORT1", Desc: "Uops executed on port 1", Code: 0x02},
				{Name: "PORT2_CORE", Desc: "Uops executed on port 2 (core count only)", Code: 0x04},
				{Name: "PORT3_CORE", Desc: "Uops executed on port 3 (core count only)", Code: 0x08},
				{Name: "PORT4_CORE", Desc: "Uops executed on port 4 (core count only)", Code: 0x10},
				{Name: "PORT5", Desc: "Uops executed on port 5", Code: 0x20},
				{Name: "PORT015", Desc: "Uops issued on ports 0, 1 or 5", Code: 0x40},
				{Name: "PORT234_CORE", Desc: "Uops issued on ports 2, 3 or 4 (core count only)", Code: 0x80},
			}},
		{Name: "ARITH", Code: 0x14, Placement: []Placement{Exclusive{0}},
			Desc: "Counts arithmetic multiply and divide operations",
			UnitMasks: []UnitMask{
				{Name: "CYCLES_DIV_BUSY", Desc: "Cycles the divider is busy", Code: 0x01},
				{Name: "MUL", Desc: "Multiply operations executed", Code: 0x02},
			}},
		{Name: "UNC_CLK_UNHALTED", Code: 0xff, Placement: []Placement{SharedBank{}, FixedOnly{0}},
			Desc: "Uncore clockticks"},
		{Name: "UNC_LLC_HITS", Code: 0x08, Placement: shared,
			Desc: "Number of LLC read hits", UnitMasks: llc()},
		{Name: "UNC_LLC_MISS", Code: 0x09, Placement: shared,
			Desc: "Number of LLC misses", UnitMasks: llc()},
		{Name: "UNC_QMC_NORMAL_READS", Code: 0x2c, Placement: shared,
			Desc: "Queue Memory Controller normal reads", UnitMasks: channels()},
		{Name: "UNC_QMC_WRITES_FULL", Code: 0x2f, Placement: shared,
			Desc: "Queue Memory Controller full cache line writes", UnitMasks: channels()},
		{Name: "UNC_GQ_CYCLES_FULL", Code: 0x00, Placement: shared,
			Desc: "Cycles Global Queue is full",
			UnitMasks: []UnitMask{
				{Name: "READ_TRACKER", Desc: "Cycles GQ read tracker is full", Code: 0x01},
				{Name: "WRITE_TRACKER", Desc: "Cycles GQ write tracker is full", Code: 0x02},
				{Name: "PEER_PROBE_TRACKER", Desc: "Cycles GQ peer probe tracker is full", Code: 0x04},
			}},
	}
}

func amd64Events() []Event {
	fam10h := pmu.RevisionRange{From: pmu.RevFam10hB}
	return []Event{
		{Name: "DISPATCHED_FPU", Code: 0x00,
			Desc: "Dispatched FPU Operations",
			UnitMasks: []UnitMask{
				{Name: "OPS_ADD", Desc: "Add pipe ops excluding load ops and SSE move ops", Code: 0x01},
				{Name: "OPS_MULTIPLY", Desc: "Multiply pipe ops excluding load ops and SSE move ops", Code: 0x02},
				{Name: "OPS_STORE", Desc: "Store pipe ops excluding load ops and SSE move ops", Code: 0x04},
				{Name: "OPS_ADD_PIPE_LOAD_OPS", Desc: "Add pipe load ops and SSE move ops", Code: 0x08},
				{Name: "OPS_MULTIPLY_PIPE_LOAD_OPS", Desc: "Multiply pipe load ops and SSE move ops", Code: 0x10},
				{Name: "OPS_STORE_PIPE_LOAD_OPS", Desc: "Store pipe load ops and SSE move ops", Code: 0x20},
				{Name: "ALL", Desc: "All sub-events selected", Code: 0x3f},
			}},
		{Name: "CYCLES_NO_FPU_OPS_RETIRED", Code: 0x01,
			Desc: "Cycles in which the FPU is Empty"},
		{Name: "DATA_CACHE_ACCESSES", Code: 0x40,
			Desc: "Data Cache Accesses"},
		{Name: "DATA_CACHE_MISSES", Code: 0x41,
			Desc: "Data Cache Misses"},
		{Name: "DATA_CACHE_REFILLS", Code: 0x42,
			Desc: "Data Cache Refills from L2 or Northbridge",
			UnitMasks: []UnitMask{
				{Name: "SYSTEM", Desc: "Refill from the Northbridge", Code: 0x01},
				{Name: "L2_SHARED", Desc: "Shared-state line from L2", Code: 0x02},
				{Name: "L2_EXCLUSIVE", Desc: "Exclusive-state line from L2", Code: 0x04},
				{Name: "L2_OWNED", Desc: "Owned-state line from L2", Code: 0x08},
				{Name: "L2_MODIFIED", Desc: "Modified-state line from L2", Code: 0x10},
				{Name: "ALL", Desc: "All sub-events selected", Code: 0x1f},
			}},
		{Name: "DCACHE_MISS_LOCKED_INSTRUCTIONS", Code: 0x4c, Revisions: pmu.RevisionRange{From: pmu.RevK8F},
			Desc: "DCACHE Misses by Locked Instructions",
			UnitMasks: []UnitMask{
				{Name: "DCACHE_MISSES_BY_LOCKED_INSTRUCTIONS", Desc: "Data cache misses by locked instructions", Code: 0x02},
			}},
		{Name: "CPU_CLK_UNHALTED", Code: 0x76,
			Desc: "CPU Clocks not Halted"},
		{Name: "L2_CACHE_MISS", Code: 0x7e,
			Desc: "L2 Cache Misses",
			UnitMasks: []UnitMask{
				{Name: "INSTRUCTIONS", Desc: "IC fill", Code: 0x01},
				{Name: "DATA", Desc: "DC fill (includes possible replays)", Code: 0x02},
				{Name: "TLB_WALK", Desc: "TLB page table walk", Code: 0x04},
				{Name: "DATA_PREFETCH", Desc: "Hardware prefetch from DC", Code: 0x08, Revisions: fam10h},
				{Name: "ALL", Desc: "All sub-events selected", Code: 0x07, Revisions: pmu.RevisionRange{Till: pmu.RevK8G}},
				{Name: "ALL_FAM10H", Desc: "All sub-events selected", Code: 0x0f, Revisions: fam10h},
			}},
		{Name: "INSTRUCTION_CACHE_FETCHES", Code: 0x80,
			Desc: "Instruction Cache Fetches"},
		{Name: "INSTRUCTION_CACHE_MISSES", Code: 0x81,
			Desc: "Instruction Cache Misses"},
		{Name: "RETIRED_INSTRUCTIONS", Code: 0xc0,
			Desc: "Retired Instructions"},
		{Name: "RETIRED_UOPS", Code: 0xc1,
			Desc: "Retired uops"},
		{Name: "RETIRED_BRANCH_INSTRUCTIONS", Code: 0xc2,
			Desc: "Retired Branch Instructions"},
		{Name: "RETIRED_MISPREDICTED_BRANCH_INSTRUCTIONS", Code: 0xc3,
			Desc: "Retired Mispredicted Branch Instructions"},
		{Name: "RETIRED_MMX_AND_FP_INSTRUCTIONS", Code: 0xcb,
			Desc: "Retired MMX/FP Instructions",
			UnitMasks: []UnitMask{
				{Name: "X87", Desc: "x87 instructions", Code: 0x01},
				{Name: "MMX_AND_3DNOW", Desc: "MMX and 3DNow! instructions", Code: 0x02},
				{Name: "PACKED_SSE_AND_SSE2", Desc: "SSE and SSE2 instructions", Code: 0x04},
				{Name: "ALL", Desc: "All sub-events selected", Code: 0x07},
			}},
		{Name: "DISPATCH_STALLS", Code: 0xd1,
			Desc: "Dispatch Stalls"},
		{Name: "MEMORY_CONTROLLER_REQUESTS", Code: 0x1f0, Revisions: fam10h,
			Desc: "Memory Controller Requests",
			UnitMasks: []UnitMask{
				{Name: "WRITE_REQUESTS", Desc: "Write requests sent to the DCT", Code: 0x01},
				{Name: "READ_REQUESTS", Desc: "Read requests (including prefetch requests) sent to the DCT", Code: 0x02},
				{Name: "PREFETCH_REQUESTS", Desc: "Prefetch requests sent to the DCT", Code: 0x04},
			}},
		{Name: "L3_CACHE_MISSES", Code: 0x4e1, Revisions: fam10h,
			Desc: "L3 Cache Misses",
			UnitMasks: []UnitMask{
				{Name: "READ_BLOCK_EXCLUSIVE", Desc: "Read Block Exclusive (Data cache read)", Code: 0x01},
				{Name: "READ_BLOCK_SHARED", Desc: "Read Block Shared (Instruction cache read)", Code: 0x02},
				{Name: "READ_BLOCK_MODIFY", Desc: "Read Block Modify", Code: 0x04},
			}},
	}
}
