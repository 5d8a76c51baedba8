// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"embed"
	"io/fs"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

//go:embed testdata/pmufs
var testPMUFS embed.FS

func init() {
	// Switch to a baked-in fake PMU file system so we don't depend on the system.
	pmuDir = "testdata/pmufs"
	pmuFS, _ = fs.Sub(testPMUFS, pmuDir)
}

func TestSysfsType(t *testing.T) {
	for _, tc := range []struct {
		pmu  string
		want uint32
	}{
		{"cpu", 4},
		{"uncore", 7},
	} {
		got, err := SysfsType(tc.pmu)
		if err != nil || got != tc.want {
			t.Errorf("SysfsType(%q) = %d, %v; want %d", tc.pmu, got, err, tc.want)
		}
	}
	if _, err := SysfsType("bad"); err == nil || err.Error() != `unknown PMU "bad"` {
		t.Errorf("SysfsType(bad): got %v", err)
	}
}

func TestSysfsFormat(t *testing.T) {
	format, err := SysfsFormat("cpu")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := format["offcore_rsp"]; ok {
		t.Errorf("config1 field offcore_rsp should be skipped")
	}
	if f := format["cmask"]; f.String() != "config:24-31" {
		t.Errorf("cmask = %s", f)
	}
}

func TestVerify(t *testing.T) {
	if err := Nehalem.Verify(); err != nil {
		t.Errorf("nhm: %s", err)
	}
	if err := Core.Verify(); err != nil {
		t.Errorf("core: %s", err)
	}

	amd := *AMD64
	amd.CorePMU = "cpu_amd"
	if err := amd.Verify(); err != nil {
		t.Errorf("amd64: %s", err)
	}
	// The Intel layout has a single-range event field.
	amd.Select = Core.Select
	if err := amd.Verify(); err == nil || err.Error() != "cpu_amd: field event is config:0-7, kernel says config:0-7,32-35" {
		t.Errorf("Intel layout against AMD format: got %v", err)
	}

	bad := *Core
	bad.CorePMU = "cpu_bad"
	err := bad.Verify()
	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("want 2 mismatches, got %v", err)
	}
	for _, field := range []string{"edge", "umask"} {
		if !strings.Contains(err.Error(), "field "+field) {
			t.Errorf("mismatch of %s not reported in %s", field, err)
		}
	}

	missing := *Core
	missing.CorePMU = "nope"
	if err := missing.Verify(); err == nil || err.Error() != `unknown PMU "nope"` {
		t.Errorf("missing PMU: got %v", err)
	}
}
