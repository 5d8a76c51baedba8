// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// A Table is the immutable event table of one model.
type Table struct {
	model  string
	events []Event
	byName map[string]int
}

// NewTable checks events for consistency and returns a Table for model.
// Event names are unique and matched case-insensitively.
func NewTable(model string, events []Event) (*Table, error) {
	t := &Table{model: model, events: events, byName: make(map[string]int, len(events))}
	for i := range events {
		ev := &events[i]
		if err := checkEvent(ev); err != nil {
			return nil, fmt.Errorf("%s: event %s: %w", model, ev.Name, err)
		}
		key := strings.ToUpper(ev.Name)
		if _, ok := t.byName[key]; ok {
			return nil, fmt.Errorf("%s: duplicate event %s", model, ev.Name)
		}
		t.byName[key] = i
	}
	return t, nil
}

func checkEvent(ev *Event) error {
	if ev.Name == "" {
		return fmt.Errorf("missing name")
	}
	if err := checkPlacements(ev.Placement); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, um := range ev.UnitMasks {
		key := strings.ToUpper(um.Name)
		if um.Name == "" || seen[key] {
			return fmt.Errorf("missing or duplicate unit mask name %q", um.Name)
		}
		seen[key] = true
		if err := checkPlacements(um.Placement); err != nil {
			return fmt.Errorf("unit mask %s: %w", um.Name, err)
		}
	}
	for _, f := range ev.Fill {
		if f.Value&^f.Mask != 0 || f.Value == 0 {
			return fmt.Errorf("fill value %#x not a non-empty subset of mask %#x", f.Value, f.Mask)
		}
	}
	return nil
}

func checkPlacements(ps []Placement) error {
	for _, p := range ps {
		switch p := p.(type) {
		case Exclusive:
			if p.Counter < 0 {
				return fmt.Errorf("bad placement %s", p)
			}
		case CounterSet:
			if p.Counters == 0 {
				return fmt.Errorf("empty counter set")
			}
		case FixedEligible:
			if p.Fixed < 0 {
				return fmt.Errorf("bad placement %s", p)
			}
		case FixedOnly:
			if p.Fixed < 0 {
				return fmt.Errorf("bad placement %s", p)
			}
		case Precise, SharedBank:
		case nil:
			return fmt.Errorf("nil placement")
		}
	}
	return nil
}

// Model returns the name of the model t describes.
func (t *Table) Model() string {
	return t.model
}

// Events returns the events of t in table order. The caller must not modify
// the result.
func (t *Table) Events() []Event {
	return t.events
}

// Event returns the named event.
func (t *Table) Event(id EventID) (*Event, bool) {
	i, ok := t.byName[strings.ToUpper(string(id))]
	if !ok {
		return nil, false
	}
	return &t.events[i], true
}

func (t *Table) checkModel(model string) error {
	if model != t.model {
		return fmt.Errorf("%w %s", ErrUnknownModel, model)
	}
	return nil
}

func (t *Table) LookupEvent(model string, id EventID) (*Event, error) {
	if err := t.checkModel(model); err != nil {
		return nil, err
	}
	ev, ok := t.Event(id)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, id)
	}
	return ev, nil
}

func (t *Table) LookupUnitMask(model string, id EventID, index int) (*UnitMask, error) {
	ev, err := t.LookupEvent(model, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ev.UnitMasks) {
		return nil, fmt.Errorf("%w %d of event %s", ErrUnknownUnitMask, index, ev.Name)
	}
	return &ev.UnitMasks[index], nil
}

// Decode finds the event with event select code whose unit masks explain
// umask. When several events match, the one needing the fewest unit masks
// wins, then the earliest in the table. The selection is canonical: unit
// masks covering more bits are preferred, so a selection that spells out
// every bit of a wider unit mask decodes to the wider one.
func (t *Table) Decode(model string, code uint16, umask uint8) (EventID, []int, error) {
	if err := t.checkModel(model); err != nil {
		return "", nil, err
	}
	best := -1
	var bestSel []int
	for i := range t.events {
		ev := &t.events[i]
		if ev.Code != code || umask&ev.UMask != ev.UMask {
			continue
		}
		sel, ok := matchUnitMasks(ev, umask&^ev.UMask)
		if !ok {
			continue
		}
		if best == -1 || len(sel) < len(bestSel) {
			best, bestSel = i, sel
		}
	}
	if best == -1 {
		return "", nil, fmt.Errorf("%w with code %#x umask %#x", ErrUnknownEvent, code, umask)
	}
	return EventID(t.events[best].Name), bestSel, nil
}

func matchUnitMasks(ev *Event, rem uint8) ([]int, bool) {
	order := make([]int, 0, len(ev.UnitMasks))
	for i, um := range ev.UnitMasks {
		if um.Code != 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return popcount(ev.UnitMasks[order[a]].Code) > popcount(ev.UnitMasks[order[b]].Code)
	})
	var sel []int
	var used uint8
	for _, i := range order {
		c := ev.UnitMasks[i].Code
		if c&rem == c {
			sel = append(sel, i)
			rem &^= c
			used |= c
		}
	}
	// Whatever is left must come from a default fill.
	for _, f := range ev.Fill {
		if used&f.Mask == 0 && rem&f.Mask == f.Value {
			rem &^= f.Value
		}
	}
	if rem != 0 {
		return nil, false
	}
	slices.Sort(sel)
	return sel, true
}
