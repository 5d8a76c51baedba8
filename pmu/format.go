// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// A Field is a named bit field of a control register. A field may be split
// across several discontiguous bit ranges, in which case the low bits of the
// value go in the first range.
type Field struct {
	Name string
	bits []bitRange
}

type bitRange struct {
	shift int
	nBits int
}

// ParseField parses a bit range description in the form used by
// /sys/bus/event_source/devices/*/format/*, such as "config:0-7,32-35". Only
// the "config" word is supported, since that is the word written to the
// selector register.
func ParseField(name, s string) (Field, error) {
	// See https://www.kernel.org/doc/Documentation/ABI/testing/sysfs-bus-event_source-devices-format
	s = strings.TrimRight(s, "\n")
	word, ranges, ok := strings.Cut(s, ":")
	if !ok {
		return Field{}, fmt.Errorf("error parsing format %q", s)
	}
	if word != "config" {
		return Field{}, fmt.Errorf("error parsing format %q: unsupported field %s", s, word)
	}
	f := Field{Name: name}
	for _, r := range strings.Split(ranges, ",") {
		lo, hi, ok := strings.Cut(r, "-")
		shift, err := strconv.Atoi(lo)
		nBits := 1
		if ok {
			hiVal, err2 := strconv.Atoi(hi)
			if err == nil {
				err = err2
			}
			nBits = hiVal - shift + 1
		}
		if err != nil {
			return Field{}, fmt.Errorf("error parsing format %q: %w", s, err)
		}
		if shift < 0 || nBits <= 0 || shift+nBits > 64 {
			return Field{}, fmt.Errorf("error parsing format %q: bad range %s", s, r)
		}
		f.bits = append(f.bits, bitRange{shift, nBits})
	}
	return f, nil
}

func mustField(name, s string) Field {
	f, err := ParseField(name, s)
	if err != nil {
		panic(err)
	}
	return f
}

// Width returns the total number of bits in f.
func (f Field) Width() int {
	n := 0
	for _, r := range f.bits {
		n += r.nBits
	}
	return n
}

// Max returns the largest value that fits in f.
func (f Field) Max() uint64 {
	w := f.Width()
	if w >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<w - 1
}

// Bits returns the mask of register bits covered by f.
func (f Field) Bits() uint64 {
	var m uint64
	for _, r := range f.bits {
		m |= (uint64(1)<<r.nBits - 1) << r.shift
	}
	return m
}

// Set stores val into f's bits of *word. If val does not fit in f, Set
// returns a *RangeError and leaves *word unchanged.
func (f Field) Set(word *uint64, val uint64) error {
	if val > f.Max() {
		return &RangeError{f.Name, val, f.Max()}
	}
	x := val
	for _, r := range f.bits {
		max := uint64(1)<<r.nBits - 1
		*word &^= max << r.shift
		*word |= (x & max) << r.shift
		x >>= r.nBits
	}
	return nil
}

// Get extracts f's value from word.
func (f Field) Get(word uint64) uint64 {
	var val uint64
	shift := 0
	for _, r := range f.bits {
		max := uint64(1)<<r.nBits - 1
		val |= ((word >> r.shift) & max) << shift
		shift += r.nBits
	}
	return val
}

// String returns f in sysfs format syntax.
func (f Field) String() string {
	var s strings.Builder
	s.WriteString("config:")
	for i, r := range f.bits {
		if i > 0 {
			s.WriteByte(',')
		}
		if r.nBits == 1 {
			fmt.Fprintf(&s, "%d", r.shift)
		} else {
			fmt.Fprintf(&s, "%d-%d", r.shift, r.shift+r.nBits-1)
		}
	}
	return s.String()
}

// Equal reports whether f and g cover the same bits in the same order.
func (f Field) Equal(g Field) bool {
	if len(f.bits) != len(g.bits) {
		return false
	}
	for i := range f.bits {
		if f.bits[i] != g.bits[i] {
			return false
		}
	}
	return true
}

// A RangeError reports a value that does not fit in its field.
type RangeError struct {
	Field string
	Value uint64
	Max   uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("parameter %s=%d not in range 0-%d", e.Field, e.Value, e.Max)
}

// A Layout is the set of fields of one kind of control register.
type Layout struct {
	Name   string
	fields map[string]Field
}

// Field names used by the built-in layouts.
const (
	FieldEvent     = "event"
	FieldUmask     = "umask"
	FieldUser      = "usr"
	FieldOS        = "os"
	FieldEdge      = "edge"
	FieldPinCtl    = "pc"
	FieldInt       = "int"
	FieldAnyThread = "any"
	FieldEnable    = "en"
	FieldInvert    = "inv"
	FieldCmask     = "cmask"
	FieldOccReset  = "occ"
	FieldGuest     = "guest"
	FieldHost      = "host"
	FieldPMI       = "pmi"
)

// NewLayout builds a Layout from a map of field name to sysfs-style range
// description.
func NewLayout(name string, desc map[string]string) (*Layout, error) {
	l := &Layout{Name: name, fields: make(map[string]Field, len(desc))}
	for fname, s := range desc {
		f, err := ParseField(fname, s)
		if err != nil {
			return nil, fmt.Errorf("layout %s: %w", name, err)
		}
		l.fields[fname] = f
	}
	return l, nil
}

func mustLayout(name string, desc map[string]string) *Layout {
	l, err := NewLayout(name, desc)
	if err != nil {
		panic(err)
	}
	return l
}

// Field returns the named field of l.
func (l *Layout) Field(name string) (Field, bool) {
	if l == nil {
		return Field{}, false
	}
	f, ok := l.fields[name]
	return f, ok
}

// Has reports whether l has a field called name.
func (l *Layout) Has(name string) bool {
	_, ok := l.Field(name)
	return ok
}

// Set stores val into the named field of *word.
func (l *Layout) Set(word *uint64, name string, val uint64) error {
	f, ok := l.Field(name)
	if !ok {
		return fmt.Errorf("%s register has no %s field", l.Name, name)
	}
	return f.Set(word, val)
}

// Get returns the named field of word, or 0 if l has no such field.
func (l *Layout) Get(word uint64, name string) uint64 {
	f, ok := l.Field(name)
	if !ok {
		return 0
	}
	return f.Get(word)
}

// Names returns the field names of l in sorted order.
func (l *Layout) Names() []string {
	names := make([]string, 0, len(l.fields))
	for name := range l.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
