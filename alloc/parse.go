// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/pmu"
)

// ParseRequest parses a request in the form EVENT[:UMASK...][/mod,.../].
// Modifiers are flags (u, k, h, edge, inv, any, occ, guest, host, precise)
// or k=v pairs (cmask=N). A flag may also be given as flag=0 or flag=1.
//
// Event and unit mask names are matched against model m's event table,
// ignoring case.
func ParseRequest(m *pmu.Model, cat catalog.Catalog, s string) (Request, error) {
	var req Request
	fail := func(f string, args ...any) (Request, error) {
		return Request{}, &Error{Index: -1, Event: req.Event, Err: ErrInvalidRequest, Detail: fmt.Sprintf(f, args...)}
	}

	name, mods, hasMods := strings.Cut(s, "/")
	if hasMods {
		if !strings.HasSuffix(mods, "/") || strings.Count(mods, "/") != 1 {
			return fail("request %q: modifiers must be enclosed in /.../", s)
		}
		mods = strings.TrimSuffix(mods, "/")
	}
	parts := strings.Split(name, ":")
	req.Event = catalog.EventID(parts[0])
	if parts[0] == "" {
		return fail("request %q: missing event name", s)
	}
	ev, err := cat.LookupEvent(m.Catalog, req.Event)
	if err != nil {
		return fail("%s", err)
	}
	req.Event = catalog.EventID(ev.Name)
	for _, u := range parts[1:] {
		idx, ok := ev.UnitMaskIndex(u)
		if !ok {
			return fail("event %s has no unit mask %q", ev.Name, u)
		}
		req.UnitMasks = append(req.UnitMasks, idx)
	}

	if mods == "" {
		return req, nil
	}
	params, err := parseParamList(mods)
	if err != nil {
		return fail("%s", err)
	}
	for _, p := range params {
		flag := func(dst *bool) error {
			if p.v > 1 {
				return fmt.Errorf("modifier %s=%d must be 0 or 1", p.k, p.v)
			}
			*dst = p.v == 1
			return nil
		}
		priv := func(bit Privilege) error {
			var on bool
			if err := flag(&on); err != nil {
				return err
			}
			if on {
				req.Privilege |= bit
			} else {
				req.Privilege &^= bit
			}
			return nil
		}
		var err error
		switch p.k {
		case "u":
			err = priv(User)
		case "k":
			err = priv(Kernel)
		case "h":
			err = priv(Hypervisor)
		case "edge", "e":
			err = flag(&req.Filters.Edge)
		case "inv", "i":
			err = flag(&req.Filters.Invert)
		case "cmask", "c":
			if p.kOnly {
				err = fmt.Errorf("modifier %s needs a value", p.k)
			}
			req.Filters.Threshold = p.v
		case "any", "t":
			err = flag(&req.Filters.AnyThread)
		case "occ":
			err = flag(&req.Filters.OccupancyReset)
		case "guest":
			err = flag(&req.Filters.Guest)
		case "host":
			err = flag(&req.Filters.Host)
		case "precise", "p":
			err = flag(&req.Precise)
		default:
			err = fmt.Errorf("unknown modifier %q", p.k)
		}
		if err != nil {
			return fail("request %q: %s", s, err)
		}
	}
	return req, nil
}

type eventParam struct {
	k     string
	v     uint64
	kOnly bool // Param was a lone key
}

// parseParamList parses a comma-separated list of k strings and k=v pairs. Lone
// keys are assumed to have value 1.
func parseParamList(list string) ([]eventParam, error) {
	// This follows the perf syntax for PMU event parameters. See
	// https://www.kernel.org/doc/Documentation/ABI/testing/sysfs-bus-event_source-devices-events.
	var params []eventParam
	errf := func(f string, args ...any) error {
		prefix := fmt.Sprintf("error parsing modifier list %q", list)
		return fmt.Errorf("%s: "+f, append([]any{prefix}, args...)...)
	}
	for _, s := range strings.Split(list, ",") {
		k, vs, ok := strings.Cut(s, "=")
		if k == "" {
			return nil, errf("missing modifier name in %q", s)
		}
		if !ok {
			params = append(params, eventParam{k, 1, true})
			continue
		}
		// The value can be decimal, hex, or octal.
		v, err := strconv.ParseUint(vs, 0, 64)
		if err != nil {
			return nil, errf("modifier %q not a number", s)
		}
		params = append(params, eventParam{k, v, false})
	}

	return params, nil
}
