// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aclements/go-pmualloc/pmu"
)

// perfmonEvent is one entry of an Intel perfmon event file, as published at
// https://github.com/intel/perfmon. Every field is a string in the JSON.
type perfmonEvent struct {
	EventCode        string
	UMask            string
	EventName        string
	BriefDescription string
	Counter          string
	PEBS             string
	CounterMask      string
	Invert           string
	EdgeDetect       string
	Unit             string
	Errata           string
	Deprecated       string
}

type perfmonFile struct {
	Events []perfmonEvent
}

// ParsePerfmon parses an Intel perfmon JSON event file into a table for
// model. Both the current format (an object with an Events array) and the
// older bare array are accepted.
//
// Perfmon lists every event and unit mask combination as its own event, so
// the resulting events have no unit masks of their own. Entries that cannot
// be expressed as a single selector value, such as those needing an offcore
// response register, are skipped.
func ParsePerfmon(model string, data []byte) (*Table, error) {
	var list []perfmonEvent
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("[")) {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("error decoding perfmon events: %w", err)
		}
	} else {
		var f perfmonFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("error decoding perfmon events: %w", err)
		}
		list = f.Events
	}

	var events []Event
	seen := make(map[string]bool)
	for _, pe := range list {
		if pe.EventName == "" || pe.Deprecated == "1" || seen[pe.EventName] {
			continue
		}
		ev, ok, err := pe.toEvent()
		if err != nil {
			return nil, fmt.Errorf("perfmon event %s: %w", pe.EventName, err)
		}
		if !ok {
			continue
		}
		seen[pe.EventName] = true
		events = append(events, ev)
	}
	return NewTable(model, events)
}

func (pe *perfmonEvent) toEvent() (Event, bool, error) {
	if strings.Contains(pe.EventCode, ",") {
		// Multi-code events need auxiliary registers.
		return Event{}, false, nil
	}
	num := func(name, s string, max uint64) (uint64, error) {
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%s %q not a number", name, s)
		}
		if v > max {
			return 0, fmt.Errorf("%s %q out of range", name, s)
		}
		return v, nil
	}
	code, err := num("EventCode", pe.EventCode, 0xfff)
	if err != nil {
		return Event{}, false, err
	}
	umask, err := num("UMask", pe.UMask, 0xff)
	if err != nil {
		return Event{}, false, err
	}
	cmask, err := num("CounterMask", pe.CounterMask, 0xff)
	if err != nil {
		return Event{}, false, err
	}

	ev := Event{
		Name:      pe.EventName,
		Desc:      pe.BriefDescription,
		Code:      uint16(code),
		UMask:     uint8(umask),
		Threshold: uint8(cmask),
		Invert:    pe.Invert == "1",
		Edge:      pe.EdgeDetect == "1",
	}
	if pe.Errata != "" && pe.Errata != "null" && pe.Errata != "NA" {
		ev.Erratum = pe.Errata
	}
	if pe.Unit != "" && !strings.EqualFold(pe.Unit, "cpu") {
		ev.Placement = append(ev.Placement, SharedBank{})
	}
	if pe.PEBS != "" && pe.PEBS != "0" {
		ev.Placement = append(ev.Placement, Precise{})
	}

	counter := strings.TrimSpace(pe.Counter)
	switch {
	case counter == "":
	case strings.HasPrefix(counter, "Fixed counter "):
		k, err := strconv.Atoi(strings.TrimPrefix(counter, "Fixed counter "))
		if err != nil {
			return Event{}, false, fmt.Errorf("bad Counter %q", pe.Counter)
		}
		ev.Placement = append(ev.Placement, FixedOnly{k})
	case strings.EqualFold(counter, "Fixed"):
		ev.Placement = append(ev.Placement, FixedOnly{0})
	default:
		m, err := pmu.ParseMask(counter)
		if err != nil {
			return Event{}, false, fmt.Errorf("bad Counter %q: %w", pe.Counter, err)
		}
		if m.Count() == 1 {
			ev.Placement = append(ev.Placement, Exclusive{m.Lowest()})
		} else {
			ev.Placement = append(ev.Placement, CounterSet{m})
		}
	}
	return ev, true, nil
}
