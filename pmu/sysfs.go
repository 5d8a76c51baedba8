// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/aclements/go-pmualloc/internal/oncemap"
)

// The directory and fs.FS of the event source devices. These are variables so
// they can be stubbed by tests.
var (
	pmuDir = "/sys/bus/event_source/devices"
	pmuFS  = os.DirFS(pmuDir)
)

type sysfsPMU struct {
	typ    uint32
	format map[string]Field // Keyed by symbolic field name
}

// sysfsPMUs is a onceMap containing the kernel's description of each PMU.
var sysfsPMUs = oncemap.New(func(pmu string) (*sysfsPMU, error) {
	var desc sysfsPMU

	// Parse the PMU type.
	path := filepath.Join(pmu, "type")
	typStr, err := fs.ReadFile(pmuFS, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unknown PMU %q", pmu)
	} else if err != nil {
		return nil, fmt.Errorf("unknown PMU %q: %w", pmu, err)
	}
	typStr = bytes.TrimRight(typStr, "\n")
	num, err := strconv.ParseUint(string(typStr), 0, 32)
	if err != nil {
		return nil, fmt.Errorf("error parsing PMU %q type %q: %w", pmu, string(typStr), err)
	}
	desc.typ = uint32(num)

	// Parse format. Fields of words other than config (such as the offcore
	// response fields in config1) are not part of a selector register.
	desc.format = make(map[string]Field)
	err = forEachFile(filepath.Join(pmu, "format"), func(name string, data string) error {
		if !strings.HasPrefix(data, "config:") {
			return nil
		}
		f, err := ParseField(name, data)
		if err != nil {
			return err
		}
		desc.format[name] = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &desc, nil
})

// forEachFile calls f for each file under path in the pmuFS.
func forEachFile(path string, f func(name string, data string) error) error {
	ents, err := fs.ReadDir(pmuFS, path)
	if errors.Is(err, fs.ErrNotExist) {
		// Treat like an empty directory. Not every PMU publishes a format.
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading %s: %w", filepath.Join(pmuDir, path), err)
	}
	for _, ent := range ents {
		entPath := filepath.Join(path, ent.Name())
		b, err := fs.ReadFile(pmuFS, entPath)
		if err != nil {
			return fmt.Errorf("error reading %s: %w", filepath.Join(pmuDir, entPath), err)
		}
		if err := f(ent.Name(), string(b)); err != nil {
			return fmt.Errorf("%w (from %s)", err, filepath.Join(pmuDir, entPath))
		}
	}
	return nil
}

// SysfsType returns the perf_event_attr type number the kernel assigned to
// the named PMU.
func SysfsType(pmu string) (uint32, error) {
	desc, err := sysfsPMUs.Get(pmu)
	if err != nil {
		return 0, err
	}
	return desc.typ, nil
}

// SysfsFormat returns the selector fields the kernel publishes for the named
// PMU.
func SysfsFormat(pmu string) (map[string]Field, error) {
	desc, err := sysfsPMUs.Get(pmu)
	if err != nil {
		return nil, err
	}
	return desc.format, nil
}

// Verify checks m's selector layouts against the formats published by the
// running kernel. Only fields known to both are compared; the kernel does not
// publish privilege or enable bits, since it sets those itself. Every
// mismatch is reported.
func (m *Model) Verify() error {
	var err error
	check := func(pmu string, l *Layout) {
		if pmu == "" || l == nil {
			return
		}
		format, err2 := SysfsFormat(pmu)
		if err2 != nil {
			err = multierr.Append(err, err2)
			return
		}
		for _, name := range l.Names() {
			sys, ok := format[name]
			if !ok {
				continue
			}
			want, _ := l.Field(name)
			if !want.Equal(sys) {
				err = multierr.Append(err, fmt.Errorf("%s: field %s is %s, kernel says %s", pmu, name, want, sys))
			}
		}
	}
	check(m.CorePMU, m.Select)
	check(m.SharedPMU, m.SharedSelect)
	return err
}
