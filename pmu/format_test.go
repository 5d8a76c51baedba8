// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"errors"
	"testing"
)

func TestParseField(t *testing.T) {
	test := func(s string, width int, bits uint64) {
		t.Helper()
		f, err := ParseField("f", s)
		if err != nil {
			t.Errorf("%s: unexpected error %s", s, err)
			return
		}
		if f.Width() != width {
			t.Errorf("%s: width %d, want %d", s, f.Width(), width)
		}
		if f.Bits() != bits {
			t.Errorf("%s: bits %#x, want %#x", s, f.Bits(), bits)
		}
		if got := f.String(); got+"\n" != s && got != s {
			t.Errorf("%s: String() = %s", s, got)
		}
	}
	testErr := func(s string, want string) {
		t.Helper()
		_, err := ParseField("f", s)
		if err == nil {
			t.Errorf("%s: want error %s, got success", s, want)
			return
		}
		if err.Error() != want {
			t.Errorf("%s: want error %s, got error %s", s, want, err)
		}
	}

	test("config:0-7", 8, 0xff)
	test("config:18", 1, 1<<18)
	test("config:24-31\n", 8, 0xff<<24)
	test("config:0-7,32-35", 12, 0xf000000ff)

	testErr("0-7", `error parsing format "0-7"`)
	testErr("config1:0-63", `error parsing format "config1:0-63": unsupported field config1`)
	testErr("config:0-x", `error parsing format "config:0-x": strconv.Atoi: parsing "x": invalid syntax`)
	testErr("config:7-0", `error parsing format "config:7-0": bad range 7-0`)
	testErr("config:60-64", `error parsing format "config:60-64": bad range 60-64`)
}

func TestFieldSet(t *testing.T) {
	event := mustField("event", "config:0-7,32-35")

	var word uint64
	if err := event.Set(&word, 0x1d4); err != nil {
		t.Fatal(err)
	}
	if want := uint64(0x1_0000_00d4); word != want {
		t.Errorf("after Set(0x1d4): word = %#x, want %#x", word, want)
	}
	if got := event.Get(word); got != 0x1d4 {
		t.Errorf("Get = %#x, want 0x1d4", got)
	}

	// Setting again must clear the old bits.
	event.Set(&word, 0x2)
	if word != 0x2 {
		t.Errorf("after Set(0x2): word = %#x, want 0x2", word)
	}

	err := event.Set(&word, 0x1000)
	var re *RangeError
	if !errors.As(err, &re) {
		t.Fatalf("Set(0x1000): got %v, want *RangeError", err)
	}
	if want := "parameter event=4096 not in range 0-4095"; err.Error() != want {
		t.Errorf("Set(0x1000): got error %s, want %s", err, want)
	}
	if word != 0x2 {
		t.Errorf("failed Set modified word to %#x", word)
	}

	edge := mustField("edge", "config:18")
	if err := edge.Set(&word, 2); err == nil || err.Error() != "parameter edge=2 not in range 0-1" {
		t.Errorf("edge=2: got error %v", err)
	}
}

func TestLayout(t *testing.T) {
	l := Core.Select
	var word uint64
	for _, f := range []struct {
		name string
		val  uint64
	}{
		{FieldEvent, 0x2e},
		{FieldUmask, 0x4f},
		{FieldUser, 1},
		{FieldOS, 1},
		{FieldInt, 1},
		{FieldEnable, 1},
		{FieldCmask, 2},
	} {
		if err := l.Set(&word, f.name, f.val); err != nil {
			t.Fatal(err)
		}
	}
	if want := uint64(0x02534f2e); word != want {
		t.Errorf("word = %#x, want %#x", word, want)
	}
	if err := l.Set(&word, FieldAnyThread, 1); err == nil || err.Error() != "PERFEVTSEL register has no any field" {
		t.Errorf("setting any on core: got %v", err)
	}
	if !Nehalem.Select.Has(FieldAnyThread) {
		t.Errorf("Nehalem selector missing any field")
	}
	if got := l.Get(word, FieldGuest); got != 0 {
		t.Errorf("Get of missing field = %d, want 0", got)
	}
}
