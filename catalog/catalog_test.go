// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	"github.com/aclements/go-pmualloc/pmu"
)

func TestBuiltinTables(t *testing.T) {
	for _, name := range pmu.Names() {
		m, _ := pmu.Lookup(name)
		tab, err := Builtin.Table(m.Catalog)
		if err != nil {
			t.Errorf("model %s: %s", name, err)
			continue
		}
		if len(tab.Events()) == 0 {
			t.Errorf("model %s: empty table", name)
		}
	}
	if got, want := Builtin.Models(), []string{"amd64", "core", "nhm"}; !slices.Equal(got, want) {
		t.Errorf("Builtin.Models() = %v, want %v", got, want)
	}
}

func TestLookup(t *testing.T) {
	ev, err := Builtin.LookupEvent("core", "l2_ld")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Name != "L2_LD" || ev.Code != 0x29 {
		t.Errorf("got %+v", ev)
	}
	i, ok := ev.UnitMaskIndex("self")
	if !ok {
		t.Fatalf("no SELF unit mask")
	}
	um, err := Builtin.LookupUnitMask("core", "L2_LD", i)
	if err != nil || um.Code != 0x40 {
		t.Errorf("LookupUnitMask(SELF) = %+v, %v", um, err)
	}

	testErr := func(err error, sentinel error, want string) {
		t.Helper()
		if err == nil {
			t.Errorf("want error %s, got success", want)
			return
		}
		if !errors.Is(err, sentinel) {
			t.Errorf("error %s does not wrap %s", err, sentinel)
		}
		if err.Error() != want {
			t.Errorf("want error %s, got error %s", want, err)
		}
	}
	_, err = Builtin.LookupEvent("p4", "X")
	testErr(err, ErrUnknownModel, "no event table for model p4")
	_, err = Builtin.LookupEvent("core", "BAD")
	testErr(err, ErrUnknownEvent, `unknown event "BAD"`)
	_, err = Builtin.LookupUnitMask("core", "L2_LD", 42)
	testErr(err, ErrUnknownUnitMask, "unknown unit mask 42 of event L2_LD")
}

func TestPlacementString(t *testing.T) {
	for _, p := range []Placement{
		Exclusive{0},
		Exclusive{1},
		CounterSet{pmu.Bit(0) | pmu.Bit(1)},
		FixedEligible{1},
		FixedOnly{2},
		Precise{},
		SharedBank{},
	} {
		s := p.String()
		p2, err := ParsePlacement(s)
		if err != nil {
			t.Errorf("ParsePlacement(%q): %s", s, err)
			continue
		}
		if p2 != p {
			t.Errorf("ParsePlacement(%q) = %#v, want %#v", s, p2, p)
		}
	}
	for _, bad := range []string{"pmc", "pmc-1", "fixedx", "counters:", "everywhere"} {
		if _, err := ParsePlacement(bad); err == nil {
			t.Errorf("ParsePlacement(%q) succeeded", bad)
		}
	}
}

func TestFill(t *testing.T) {
	fills := []Fill{FillCacheStates, FillCoreSelf}
	for _, tc := range []struct{ in, want uint8 }{
		{0x00, 0x4f},
		{0x01, 0x41},
		{0xc0, 0xcf},
		{0xc8, 0xc8},
	} {
		if got := Apply(fills, tc.in); got != tc.want {
			t.Errorf("Apply(%#x) = %#x, want %#x", tc.in, got, tc.want)
		}
		// Filling is idempotent.
		if got := Apply(fills, Apply(fills, tc.in)); got != tc.want {
			t.Errorf("Apply(Apply(%#x)) = %#x, want %#x", tc.in, got, tc.want)
		}
	}
}

func TestDecode(t *testing.T) {
	test := func(model string, code uint16, umask uint8, wantID EventID, wantSel []int) {
		t.Helper()
		id, sel, err := Builtin.Decode(model, code, umask)
		if err != nil {
			t.Errorf("Decode(%s, %#x, %#x): %s", model, code, umask, err)
			return
		}
		if id != wantID || !slices.Equal(sel, wantSel) {
			t.Errorf("Decode(%s, %#x, %#x) = %s %v, want %s %v", model, code, umask, id, sel, wantID, wantSel)
		}
	}
	test("core", 0x3c, 0x00, "UNHALTED_CORE_CYCLES", nil)
	test("core", 0x3c, 0x01, "UNHALTED_REFERENCE_CYCLES", nil)
	test("core", 0x2e, 0x41, "LAST_LEVEL_CACHE_MISSES", nil)
	// S_STATE|E_STATE|SELF.
	test("core", 0x29, 0x46, "L2_LD", []int{2, 3, 5})
	// BOTH_CORES with E_STATE.
	test("core", 0x29, 0xc4, "L2_LD", []int{3, 6})
	// Everything defaulted: the wider MESI unit mask is preferred.
	test("core", 0x29, 0x4f, "L2_LD", []int{0, 5})
	test("amd64", 0x4e1, 0x03, "L3_CACHE_MISSES", []int{0, 1})
	test("nhm", 0x0e, 0x01, "UOPS_ISSUED_STALL_CYCLES", nil)

	if _, _, err := Builtin.Decode("core", 0x99, 0); err == nil || err.Error() != "unknown event with code 0x99 umask 0x0" {
		t.Errorf("Decode of unknown code: got %v", err)
	}
	// An unit mask bit that no unit mask or fill explains.
	if _, _, err := Builtin.Decode("amd64", 0xc0, 0x80); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Decode with stray unit mask bits: got %v", err)
	}
}

func TestNewTableErrors(t *testing.T) {
	testErr := func(events []Event, want string) {
		t.Helper()
		_, err := NewTable("test", events)
		if err == nil {
			t.Errorf("want error %s, got success", want)
			return
		}
		if err.Error() != want {
			t.Errorf("want error %s, got error %s", want, err)
		}
	}
	testErr([]Event{{Name: "A"}, {Name: "a"}}, "test: duplicate event a")
	testErr([]Event{{Name: "A", UnitMasks: []UnitMask{{Name: "X"}, {Name: "X"}}}},
		`test: event A: missing or duplicate unit mask name "X"`)
	testErr([]Event{{Name: "A", Placement: []Placement{CounterSet{}}}}, "test: event A: empty counter set")
	testErr([]Event{{Name: "A", Fill: []Fill{{Mask: 0x0f, Value: 0x10}}}},
		"test: event A: fill value 0x10 not a non-empty subset of mask 0xf")
	testErr([]Event{{Name: "A", UnitMasks: []UnitMask{{Name: "X", Placement: []Placement{Exclusive{-1}}}}}},
		"test: event A: unit mask X: bad placement pmc-1")
}

func TestPerfmon(t *testing.T) {
	data, err := os.ReadFile("testdata/perfmon.json")
	if err != nil {
		t.Fatal(err)
	}
	tab, err := ParsePerfmon("skl", data)
	if err != nil {
		t.Fatal(err)
	}
	want := []Event{
		{Name: "INST_RETIRED.ANY", Desc: "Instructions retired from execution.",
			Code: 0x00, UMask: 0x01, Placement: []Placement{FixedOnly{0}}},
		{Name: "INST_RETIRED.ANY_P", Desc: "Number of instructions retired. General Counter - architectural event",
			Code: 0xc0, Erratum: "SKL091, SKL044",
			Placement: []Placement{Precise{}, CounterSet{pmu.Range(0, 4)}}},
		{Name: "L1D_PEND_MISS.PENDING", Desc: "L1D miss outstandings duration in cycles",
			Code: 0x48, UMask: 0x01, Placement: []Placement{Exclusive{2}}},
		{Name: "L1D_PEND_MISS.PENDING_CYCLES", Desc: "Cycles with L1D load Misses outstanding.",
			Code: 0x48, UMask: 0x01, Threshold: 1, Placement: []Placement{CounterSet{pmu.Range(0, 4)}}},
		{Name: "UNC_CBO_CACHE_LOOKUP.ANY_MESI", Desc: "L3 Lookup any request that access cache and found line in MESI-state.",
			Code: 0x34, UMask: 0x8f, Placement: []Placement{SharedBank{}, CounterSet{pmu.Range(0, 2)}}},
		{Name: "UOPS_ISSUED.STALL_CYCLES", Desc: "Cycles when Resource Allocation Table (RAT) does not issue Uops to Reservation Station (RS) for the thread",
			Code: 0x0e, UMask: 0x01, Threshold: 1, Invert: true, Placement: []Placement{CounterSet{pmu.Range(0, 4)}}},
	}
	if got := tab.Events(); !reflect.DeepEqual(got, want) {
		t.Errorf("got events:\n%+v\nwant:\n%+v", got, want)
	}

	// The old bare array format.
	tab2, err := ParsePerfmon("skl", []byte(`[{"EventCode": "0x3C", "UMask": "0x00", "EventName": "CPU_CLK_UNHALTED.THREAD_P", "Counter": "0,1,2,3"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if ev, ok := tab2.Event("CPU_CLK_UNHALTED.THREAD_P"); !ok || ev.Code != 0x3c {
		t.Errorf("bare array: got %+v", tab2.Events())
	}

	_, err = ParsePerfmon("skl", []byte(`[{"EventCode": "0x1000", "EventName": "BIG"}]`))
	if err == nil || err.Error() != `perfmon event BIG: EventCode "0x1000" out of range` {
		t.Errorf("oversized event code: got %v", err)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	for _, model := range Builtin.Models() {
		tab, err := Builtin.Table(model)
		if err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		if err := WriteYAML(&buf, tab); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(t.TempDir(), model+".yaml")
		if err := os.WriteFile(path, buf.Bytes(), 0o666); err != nil {
			t.Fatal(err)
		}
		tab2, err := LoadFile(path, "")
		if err != nil {
			t.Fatal(err)
		}
		if tab2.Model() != model {
			t.Errorf("model %s read back as %s", model, tab2.Model())
		}
		if !reflect.DeepEqual(tab.Events(), tab2.Events()) {
			t.Errorf("model %s did not round-trip through YAML:\n%s", model, buf.String())
		}
	}
}

func TestParseYAML(t *testing.T) {
	const src = `
model: mini
events:
  - name: L2_LD
    code: 0x29
    fill: [{mask: 0x0f, value: 0x0f}]
    placement: ["counters:0-1", precise]
    revisions: {from: k8f}
    unit_masks:
      - name: I_STATE
        code: 0x01
      - name: REF
        code: 0x01
        placement: [fixed2-only]
`
	tab, err := ParseYAML("", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	ev, err := tab.LookupEvent("mini", "L2_LD")
	if err != nil {
		t.Fatal(err)
	}
	want := &Event{
		Name:      "L2_LD",
		Code:      0x29,
		Fill:      []Fill{FillCacheStates},
		Placement: []Placement{CounterSet{pmu.Range(0, 2)}, Precise{}},
		Revisions: pmu.RevisionRange{From: pmu.RevK8F},
		UnitMasks: []UnitMask{
			{Name: "I_STATE", Code: 0x01},
			{Name: "REF", Code: 0x01, Placement: []Placement{FixedOnly{2}}},
		},
	}
	if !reflect.DeepEqual(ev, want) {
		t.Errorf("got %+v, want %+v", ev, want)
	}

	for _, tc := range []struct{ src, want string }{
		{"events: []", "event table does not name a model"},
		{"model: x\nevents: [{name: A, placement: [pmc]}]", `event A: unknown placement "pmc"`},
		{"model: x\nevents: [{name: A, revisions: {from: k9}}]", `error decoding event table: unknown revision "k9"`},
	} {
		_, err := ParseYAML("", []byte(tc.src))
		if err == nil || err.Error() != tc.want {
			t.Errorf("ParseYAML(%q): want error %s, got %v", tc.src, tc.want, err)
		}
	}

	if _, err := LoadFile("testdata/perfmon.json", ""); err == nil {
		t.Errorf("LoadFile of perfmon JSON without a model succeeded")
	}
	if tab, err := LoadFile("testdata/perfmon.json", "skl"); err != nil || len(tab.Events()) != 6 {
		t.Errorf("LoadFile(perfmon.json) = %v, %v", tab, err)
	}
}
