// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package perf

import (
	"encoding/binary"
	"fmt"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/aclements/go-pmualloc/alloc"
	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/pmu"
)

func parsePlan(t *testing.T, m *pmu.Model, reqs ...string) *alloc.Plan {
	t.Helper()
	var rs []alloc.Request
	for _, s := range reqs {
		r, err := alloc.ParseRequest(m, catalog.Builtin, s)
		if err != nil {
			t.Fatal(err)
		}
		rs = append(rs, r)
	}
	p, err := alloc.Allocate(m, catalog.Builtin, rs, alloc.Kernel|alloc.User, 0)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestAttr(t *testing.T) {
	defer func(old func(string) (uint32, error)) { sysfsType = old }(sysfsType)
	sysfsType = func(name string) (uint32, error) {
		if name != "uncore" {
			return 0, fmt.Errorf("unknown PMU %q", name)
		}
		return 11, nil
	}

	p := parsePlan(t, pmu.Nehalem, "UNHALTED_CORE_CYCLES/u/", "INST_RETIRED:ANY_P/precise/", "UNC_LLC_HITS")
	test := func(i int, typ uint32, bits uint64) {
		t.Helper()
		attr, err := Attr(p, i)
		if err != nil {
			t.Errorf("request %d: %s", i, err)
			return
		}
		if attr.Type != typ || attr.Config != p.Configs[i] || attr.Bits != bits {
			t.Errorf("request %d: got type %d config %#x bits %#x, want type %d config %#x bits %#x",
				i, attr.Type, attr.Config, attr.Bits, typ, p.Configs[i], bits)
		}
		if attr.Size == 0 {
			t.Errorf("request %d: size not set", i)
		}
	}
	test(0, unix.PERF_TYPE_RAW, unix.PerfBitExcludeKernel|unix.PerfBitExcludeHv)
	test(1, unix.PERF_TYPE_RAW, unix.PerfBitExcludeHv|unix.PerfBitPreciseIPBit2)
	// The shared PMU takes no privilege filters.
	test(2, 11, 0)

	if _, err := Attr(p, 3); err == nil || err.Error() != "plan has no request 3" {
		t.Errorf("want error for request 3, got %v", err)
	}

	// Core enables precise sampling for its single precise counter.
	p = parsePlan(t, pmu.Core, "LAST_LEVEL_CACHE_MISSES", "INST_RETIRED:ANY_P/precise/")
	test(0, unix.PERF_TYPE_RAW, unix.PerfBitExcludeHv)
	test(1, unix.PERF_TYPE_RAW, unix.PerfBitExcludeHv|unix.PerfBitPreciseIPBit2)
}

func TestDecodeGroup(t *testing.T) {
	buf := make([]byte, 5*8)
	for i, v := range []uint64{2, 100, 50, 7, 9} {
		binary.NativeEndian.PutUint64(buf[i*8:], v)
	}

	cs := make([]Count, 4)
	if err := decodeGroup(buf, []int{1, 3}, cs); err != nil {
		t.Fatal(err)
	}
	want := []Count{{}, {7, 100, 50}, {}, {9, 100, 50}}
	for i := range want {
		if cs[i] != want[i] {
			t.Errorf("count %d: got %+v, want %+v", i, cs[i], want[i])
		}
	}
	if got := cs[1].Value(); got != 14 {
		t.Errorf("scaled value: got %f, want 14", got)
	}

	if err := decodeGroup(buf, []int{0}, cs); err == nil || err.Error() != "read returned 2 events, expected 1" {
		t.Errorf("want count mismatch error, got %v", err)
	}
}

func TestOpenPlanSharedNeedsCPU(t *testing.T) {
	defer func(old func(string) (uint32, error)) { sysfsType = old }(sysfsType)
	sysfsType = func(string) (uint32, error) { return 11, nil }

	p := parsePlan(t, pmu.Nehalem, "UNC_LLC_HITS")
	_, err := OpenPlan(TargetThisGoroutine, p)
	if want := "request 0: shared counters need a CPU target"; err == nil || err.Error() != want {
		t.Errorf("want error %s, got %v", want, err)
	}
}

// openLive opens a plan of architectural events that most x86 machines
// count, and skips the test if the kernel refuses.
func openLive(t *testing.T, reqs ...string) *Counter {
	t.Helper()
	p := parsePlan(t, pmu.Core, reqs...)
	c, err := OpenPlan(TargetThisGoroutine, p)
	if err != nil {
		t.Skipf("cannot open counters: %s", err)
	}
	return c
}

func TestOpenOne(t *testing.T) {
	c := openLive(t, "INSTRUCTIONS_RETIRED/u/")
	defer c.Close()

	doRead := func(min Count) Count {
		t.Helper()
		count, err := c.ReadOne()
		if err != nil {
			t.Fatal("read failed:", err)
		}
		t.Logf("read %+v", count)
		checkCount(t, count, min)
		return count
	}

	c1 := doRead(Count{})
	if c1.RawValue != 0 || c1.TimeEnabled != 0 {
		t.Fatal("counter is non-zero before starting")
	}

	t.Log("starting counter")
	c.Start()
	c2 := doRead(c1)

	t.Log("stopping counter")
	c.Stop()
	c3 := doRead(c2)
	c4 := doRead(c2)
	if c3 != c4 {
		t.Fatal("counter changed while stopped")
	}
}

func TestOpenGroup(t *testing.T) {
	c := openLive(t, "INSTRUCTIONS_RETIRED/u/", "UNHALTED_CORE_CYCLES/u/")
	defer c.Close()

	doRead := func(min [2]Count) [2]Count {
		t.Helper()
		var counts [2]Count
		err := c.ReadGroup(counts[:])
		if err != nil {
			t.Fatal("read failed:", err)
		}
		t.Logf("read %+v", counts)
		for i, count := range counts {
			checkCount(t, count, min[i])
		}
		return counts
	}

	c1s := doRead([2]Count{})
	for _, c1 := range c1s {
		if c1.RawValue != 0 || c1.TimeEnabled != 0 {
			t.Fatal("counter is non-zero before starting")
		}
	}

	t.Log("starting counter")
	c.Start()
	c2s := doRead(c1s)

	t.Log("stopping counter")
	c.Stop()
	c3 := doRead(c2s)
	c4 := doRead(c2s)
	if c3 != c4 {
		t.Fatal("counter changed while stopped")
	}

	c3x, err := c.ReadOne()
	if err != nil {
		t.Fatal(err)
	}
	if c3x != c3[0] {
		t.Fatalf("ReadOne returned %+v, expected %+v", c3x, c3[0])
	}
}

func checkCount(t *testing.T, count Count, min Count) {
	t.Helper()
	if count.TimeRunning > count.TimeEnabled {
		t.Fatal("TimeRunning > TimeEnabled")
	}
	if count.RawValue < min.RawValue {
		t.Fatal("RawValue decreased")
	}
	if count.TimeEnabled < min.TimeEnabled {
		t.Fatal("TimeEnabled decreased")
	}
	if count.TimeRunning < min.TimeRunning {
		t.Fatal("TimeRunning decreased")
	}
}
