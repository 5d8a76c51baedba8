// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perfbench

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/aclements/go-pmualloc/alloc"
	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/perf"
	"github.com/aclements/go-pmualloc/pmu"
)

type countersOS struct {
	b  testingB
	bN int

	names    []string
	counter  *perf.Counter
	baseline []perf.Count
}

// printed records the metrics whose unit metadata has been printed.
var printed sync.Map

func printUnits(names []string) {
	newUnits := false
	for _, name := range names {
		if _, prev := printed.Swap(name, true); !prev {
			// Currently all events are better=lower.
			fmt.Printf("Unit %s/op better=lower\n", name)
			newUnits = true
		}
	}
	if newUnits {
		fmt.Printf("\n")
	}
}

// testingB is the *testing.B interface needed by Counters. Used for testing.
type testingB interface {
	ReportMetric(n float64, unit string)
	Logf(format string, args ...any)
	Cleanup(func())
}

var openErrors sync.Map

// logOnce reports msg through b, unless some benchmark already reported it.
func logOnce(b testingB, msg string) {
	// Only report each error once, to avoid flooding benchmark log.
	if _, prev := openErrors.Swap(msg, true); !prev {
		b.Logf("%s", msg)
	}
}

func openOS(b *testing.B, m *pmu.Model, reqs []string) *Counters {
	cs := open(b, b.N, m, reqs)
	printUnits(cs.names)
	return cs
}

func open(b testingB, bN int, m *pmu.Model, reqs []string) *Counters {
	cs := &Counters{countersOS{b: b, bN: bN}}

	var rs []alloc.Request
	for _, s := range reqs {
		r, err := alloc.ParseRequest(m, catalog.Builtin, s)
		if err != nil {
			logOnce(b, fmt.Sprintf("error parsing %s: %v", s, err))
			continue
		}
		rs = append(rs, r)
		cs.names = append(cs.names, s)
	}

	if len(rs) > 0 {
		p, err := alloc.Allocate(m, catalog.Builtin, rs, alloc.User, 0)
		if err == nil {
			cs.counter, err = perf.OpenPlan(perf.TargetThisGoroutine, p)
		}
		if err != nil {
			logOnce(b, fmt.Sprintf("error opening counters %v: %v", cs.names, err))
			cs.counter = nil
		}
	}
	if cs.counter == nil {
		cs.names = nil
	}
	cs.baseline = make([]perf.Count, len(cs.names))

	b.Cleanup(cs.close)

	// Start all of the counters.
	cs.Start()

	return cs
}

func (cs *Counters) startOS() {
	cs.counter.Start()
}

func (cs *Counters) stopOS() {
	cs.counter.Stop()
}

func (cs *Counters) resetOS() {
	// perf has a concept of resetting a counter, but it doesn't reset the
	// counter's timers, so instead we track our own baseline.
	cs.counter.ReadGroup(cs.baseline)
}

// read returns the counts since the last reset.
func (cs *Counters) read() ([]perf.Count, error) {
	vals := make([]perf.Count, len(cs.names))
	if err := cs.counter.ReadGroup(vals); err != nil {
		return nil, err
	}
	for i, base := range cs.baseline {
		vals[i].RawValue -= base.RawValue
		vals[i].TimeEnabled -= base.TimeEnabled
		vals[i].TimeRunning -= base.TimeRunning
	}
	return vals, nil
}

func (cs *Counters) totalOS(name string) (float64, bool) {
	i := slices.Index(cs.names, name)
	if i < 0 || cs.counter == nil {
		return 0, false
	}
	vals, err := cs.read()
	if err != nil {
		return 0, false
	}
	return vals[i].Value(), true
}

func (cs *Counters) close() {
	if cs.b == nil {
		return
	}

	cs.Stop()
	if cs.counter != nil {
		vals, err := cs.read()
		if err != nil {
			cs.b.Logf("error reading %v: %v", cs.names, err)
		} else {
			for i, val := range vals {
				if val.TimeRunning > 0 {
					cs.b.ReportMetric(val.Value()/float64(cs.bN), cs.names[i]+"/op")
				}
			}
		}
		cs.counter.Close()
	}
	cs.b = nil
}
