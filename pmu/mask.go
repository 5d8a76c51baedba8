// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"math/bits"
	"strconv"
	"strings"
)

// Slot numbers of the counter space. Generic counters start at slot 0.
const (
	FirstFixed       = 16 // Fixed-function counter k is slot FirstFixed+k
	SharedFixedSlot  = 20 // The shared bank's fixed counter
	FirstShared      = 21 // Shared bank generic counter j is slot FirstShared+j
	MaxSlots         = 64
	maxFixedCounters = SharedFixedSlot - FirstFixed
)

// A Mask is a set of counter slots.
type Mask uint64

// Bit returns the Mask containing only slot.
func Bit(slot int) Mask {
	if slot < 0 || slot >= MaxSlots {
		return 0
	}
	return 1 << slot
}

// Range returns the Mask of n consecutive slots starting at lo.
func Range(lo, n int) Mask {
	if n <= 0 {
		return 0
	}
	if n >= MaxSlots {
		return ^Mask(0) << lo
	}
	return Mask(1<<n-1) << lo
}

// Has reports whether slot is in m.
func (m Mask) Has(slot int) bool {
	return slot >= 0 && slot < MaxSlots && m&(1<<slot) != 0
}

// Count returns the number of slots in m.
func (m Mask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Lowest returns the lowest slot in m, or -1 if m is empty.
func (m Mask) Lowest() int {
	if m == 0 {
		return -1
	}
	return bits.TrailingZeros64(uint64(m))
}

// LowestFrom returns the lowest slot in m that is >= from, or -1.
func (m Mask) LowestFrom(from int) int {
	if from >= MaxSlots {
		return -1
	}
	if from > 0 {
		m &^= Range(0, from)
	}
	return m.Lowest()
}

// Slots returns the slots in m in ascending order.
func (m Mask) Slots() []int {
	var out []int
	for x := uint64(m); x != 0; x &= x - 1 {
		out = append(out, bits.TrailingZeros64(x))
	}
	return out
}

func (m Mask) String() string {
	var s strings.Builder
	s.WriteByte('{')
	for i, slot := range m.Slots() {
		if i > 0 {
			s.WriteByte(',')
		}
		s.WriteString(strconv.Itoa(slot))
	}
	s.WriteByte('}')
	return s.String()
}

// ParseMask parses a comma-separated list of slots or slot ranges, such as
// "0,2-3,16".
func ParseMask(s string) (Mask, error) {
	var m Mask
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for _, r := range strings.Split(s, ",") {
		lo, hi, ok := strings.Cut(strings.TrimSpace(r), "-")
		loVal, err := strconv.Atoi(lo)
		hiVal := loVal
		if ok && err == nil {
			hiVal, err = strconv.Atoi(hi)
		}
		if err != nil {
			return 0, &MaskError{s, "bad slot " + strconv.Quote(r)}
		}
		if loVal < 0 || hiVal >= MaxSlots || hiVal < loVal {
			return 0, &MaskError{s, "slot range " + strconv.Quote(r) + " out of range"}
		}
		m |= Range(loVal, hiVal-loVal+1)
	}
	return m, nil
}

// A MaskError is returned by ParseMask for malformed slot lists.
type MaskError struct {
	Input  string
	Reason string
}

func (e *MaskError) Error() string {
	return "error parsing counter list " + strconv.Quote(e.Input) + ": " + e.Reason
}
