// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"errors"
	"fmt"

	"github.com/aclements/go-pmualloc/catalog"
)

// Allocation failures. Every error returned by this package wraps exactly one
// of these, and can be tested with errors.Is.
var (
	// ErrConflictingPlacement means the selected unit masks of one request
	// demand incompatible counters.
	ErrConflictingPlacement = errors.New("conflicting placement")
	// ErrIllegalUnitMaskCombination means the event forbids combining the
	// selected unit masks.
	ErrIllegalUnitMaskCombination = errors.New("illegal unit mask combination")
	// ErrCounterUnavailable means a counter demanded exclusively is already
	// reserved or claimed by another request.
	ErrCounterUnavailable = errors.New("counter unavailable")
	// ErrNoAssignment means no legal counter is free.
	ErrNoAssignment = errors.New("no counter available")
	// ErrFilterOutOfRange means a filter value does not fit its field.
	ErrFilterOutOfRange = errors.New("filter out of range")
	// ErrUnsupportedOnRevision means the event, a unit mask, or a filter is
	// not implemented by the model's hardware revision.
	ErrUnsupportedOnRevision = errors.New("unsupported on this revision")

	// ErrInvalidRequest means the request itself is malformed, such as
	// naming an unknown event or selecting no privilege level.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnsupportedFilter means a filter cannot be expressed on the
	// assigned counter.
	ErrUnsupportedFilter = errors.New("unsupported filter")
	// ErrPreciseUnsupported means precise sampling was requested for an
	// event that cannot be sampled precisely.
	ErrPreciseUnsupported = errors.New("precise sampling unsupported")
)

// An Error reports the request that caused an allocation to fail.
type Error struct {
	// Index is the position of the request in the caller's list, or -1 if
	// the failure is not tied to a single request.
	Index int
	Event catalog.EventID
	// Err is one of the sentinel errors of this package.
	Err error
	// Detail optionally describes the failure further.
	Detail string
}

func (e *Error) Error() string {
	var s string
	if e.Index >= 0 {
		s = fmt.Sprintf("request %d (%s): %s", e.Index, e.Event, e.Err)
	} else {
		s = e.Err.Error()
	}
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

func reqError(i int, ev catalog.EventID, err error, f string, args ...any) *Error {
	return &Error{Index: i, Event: ev, Err: err, Detail: fmt.Sprintf(f, args...)}
}

// withIndex fills in the request index and event of an error produced
// without that context.
func withIndex(err error, i int, ev catalog.EventID) error {
	var e *Error
	if errors.As(err, &e) {
		e2 := *e
		e2.Index, e2.Event = i, ev
		return &e2
	}
	return err
}
