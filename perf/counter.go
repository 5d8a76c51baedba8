// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package perf opens the counters of an [alloc.Plan] through the Linux
// perf_event interface.
//
// The kernel does its own counter scheduling, so a plan is handed over as raw
// event configurations. The plan still guarantees the events fit on the
// hardware together, which lets them be opened as one group that is never
// multiplexed.
package perf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/aclements/go-pmualloc/alloc"
	"github.com/aclements/go-pmualloc/pmu"
)

// Target specifies what goroutine, thread, or CPU a [Counter] should monitor.
type Target interface {
	pidCPU() (pid, cpu int)
	open()
	close()
}

type targetThisGoroutine struct{}

func (targetThisGoroutine) pidCPU() (pid, cpu int) { return 0, -1 }
func (targetThisGoroutine) open()                  { runtime.LockOSThread() }
func (targetThisGoroutine) close()                 { runtime.UnlockOSThread() }

type targetCPU int

func (t targetCPU) pidCPU() (pid, cpu int) { return -1, int(t) }
func (targetCPU) open()                    {}
func (targetCPU) close()                   {}

var (
	// TargetThisGoroutine monitors the calling goroutine. This will call
	// [runtime.LockOSThread] on Open and [runtime.UnlockOSThread] on Close.
	//
	// Shared counters count for a whole package and cannot monitor a single
	// goroutine.
	TargetThisGoroutine = targetThisGoroutine{}
)

// TargetCPU monitors everything running on the given CPU. Monitoring a CPU
// usually requires privileges.
func TargetCPU(cpu int) Target {
	return targetCPU(cpu)
}

// sysfsType is a variable so tests can stub it.
var sysfsType = pmu.SysfsType

// Attr returns the perf_event_attr that programs request i of p.
//
// Requests on the per-thread counters use raw events of the core PMU.
// Requests on the shared bank use the model's shared PMU, which counts at
// every privilege level.
func Attr(p *alloc.Plan, i int) (unix.PerfEventAttr, error) {
	var attr unix.PerfEventAttr
	if i < 0 || i >= len(p.Assignments) {
		return attr, fmt.Errorf("plan has no request %d", i)
	}
	attr.Size = uint32(unsafe.Sizeof(attr))
	attr.Config = p.Configs[i]

	switch p.Assignments[i].Pool {
	case pmu.PoolShared, pmu.PoolSharedFixed:
		if p.Model.SharedPMU == "" {
			return attr, fmt.Errorf("model %s has no shared PMU", p.Model)
		}
		typ, err := sysfsType(p.Model.SharedPMU)
		if err != nil {
			return attr, err
		}
		attr.Type = typ
		return attr, nil
	}

	attr.Type = unix.PERF_TYPE_RAW
	priv := p.Privileges[i]
	if priv&alloc.User == 0 {
		attr.Bits |= unix.PerfBitExcludeUser
	}
	if priv&alloc.Kernel == 0 {
		attr.Bits |= unix.PerfBitExcludeKernel
	}
	if priv&alloc.Hypervisor == 0 {
		attr.Bits |= unix.PerfBitExcludeHv
	}
	if isPrecise(p, i) {
		attr.Bits |= unix.PerfBitPreciseIPBit2
	}
	return attr, nil
}

// isPrecise reports whether request i of p was enabled for precise sampling.
func isPrecise(p *alloc.Plan, i int) bool {
	a := p.Assignments[i]
	if a.Pool != pmu.PoolGeneric {
		return false
	}
	for _, g := range p.Globals {
		if g.Index != pmu.CtlPEBS {
			continue
		}
		if p.Model.PEBSPerCounter {
			return g.Value&(1<<a.Counter) != 0
		}
		return g.Value != 0 && a.Counter == p.Model.Precise.Lowest()
	}
	return false
}

// A group is a set of events opened under one leader.
type group struct {
	f       []*os.File
	reqs    []int // Plan request index of each event
	readBuf []byte
}

// A Counter reports the counts of every request of an [alloc.Plan].
type Counter struct {
	target Target

	// groups holds one group per kernel PMU.
	groups []*group
	nReqs  int

	running bool
}

// OpenPlan returns a new [Counter] that counts every request of p on the
// given [Target]. Callers are expected to call [Counter.Close] when done with
// this Counter.
//
// Requests on the same kernel PMU are opened as a group, which means they
// will all be scheduled onto the hardware at the same time.
//
// The counter is initially not running. Call [Counter.Start] to start it.
func OpenPlan(target Target, p *alloc.Plan) (*Counter, error) {
	if len(p.Assignments) == 0 {
		return nil, nil
	}

	attrs := make([]unix.PerfEventAttr, len(p.Assignments))
	for i := range attrs {
		var err error
		if attrs[i], err = Attr(p, i); err != nil {
			return nil, err
		}
	}

	pid, cpu := target.pidCPU()

	var c Counter
	c.target = target
	c.nReqs = len(attrs)

	success := false
	target.open()
	defer func() {
		if !success {
			c.closeFiles()
			target.close()
		}
	}()

	byType := make(map[uint32]*group)
	for i := range attrs {
		attr := &attrs[i]
		g := byType[attr.Type]
		if g == nil {
			g = new(group)
			byType[attr.Type] = g
			c.groups = append(c.groups, g)
		}

		leader := -1
		if len(g.f) == 0 {
			attr.Read_format = unix.PERF_FORMAT_TOTAL_TIME_ENABLED |
				unix.PERF_FORMAT_TOTAL_TIME_RUNNING |
				unix.PERF_FORMAT_GROUP
			attr.Bits |= unix.PerfBitDisabled
		} else {
			leader = int(g.f[0].Fd())
		}

		pid := pid
		if attr.Type != unix.PERF_TYPE_RAW {
			if cpu < 0 {
				return nil, fmt.Errorf("request %d: shared counters need a CPU target", i)
			}
			pid = -1
		}
		fd, err := unix.PerfEventOpen(attr, pid, cpu, leader, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, explainOpenError(err))
		}
		g.f = append(g.f, os.NewFile(uintptr(fd), "<perf-event>"))
		g.reqs = append(g.reqs, i)
	}

	// Allocate large enough read buffers.
	for _, g := range c.groups {
		g.readBuf = make([]byte, 3*8+len(g.f)*8)
	}

	success = true
	return &c, nil
}

func explainOpenError(err error) error {
	if errors.Is(err, syscall.EACCES) {
		const path = "/proc/sys/kernel/perf_event_paranoid"
		data, err2 := os.ReadFile(path)
		data = bytes.TrimSpace(data)
		if val, err3 := strconv.Atoi(string(data)); err2 != nil || err3 != nil || val > 0 {
			// We can't read it, or it's set to > 0.
			return fmt.Errorf("%w (consider: echo 0 | sudo tee %s)", err, path)
		}
	}
	return err
}

func (c *Counter) closeFiles() {
	for _, g := range c.groups {
		for _, f := range g.f {
			f.Close()
		}
	}
	c.groups = nil
}

// Close closes this counter and unlocks the goroutine from the OS thread.
func (c *Counter) Close() {
	if c == nil || c.groups == nil {
		return
	}
	c.closeFiles()
	c.target.close()
	c.target = nil
}

// Start the counter.
func (c *Counter) Start() {
	if c == nil || c.running {
		return
	}
	c.running = true
	for _, g := range c.groups {
		unix.IoctlSetInt(int(g.f[0].Fd()), unix.PERF_EVENT_IOC_ENABLE, unix.PERF_IOC_FLAG_GROUP)
	}
}

// Stop the counter.
func (c *Counter) Stop() {
	if c == nil || !c.running {
		return
	}
	for _, g := range c.groups {
		unix.IoctlSetInt(int(g.f[0].Fd()), unix.PERF_EVENT_IOC_DISABLE, unix.PERF_IOC_FLAG_GROUP)
	}
	c.running = false
}

// Count is the value of one request of a Counter.
type Count struct {
	RawValue uint64 // The number of events while this counter was running.

	// The plan's requests fit on the hardware, so TimeEnabled normally
	// equals TimeRunning. They differ if another user of the PMU forced
	// the kernel to multiplex, in which case the raw value should be scaled
	// under the assumption that the event is happening at a regular rate and
	// the sampled time is representative.

	TimeEnabled uint64 // Total time the Counter was started.
	TimeRunning uint64 // Total time the Counter was actually counting.
}

// Value returns the measured value of Count, scaled to account for time the
// counter was scheduled.
func (c Count) Value() float64 {
	raw := float64(c.RawValue)
	if c.TimeEnabled == c.TimeRunning {
		return raw
	}
	if c.TimeRunning == 0 {
		// Avoid divide by zero.
		return 0
	}
	return raw * (float64(c.TimeEnabled) / float64(c.TimeRunning))
}

// ReadOne returns the current value of the first request in c.
func (c *Counter) ReadOne() (Count, error) {
	if c == nil {
		return Count{}, nil
	}

	cs := make([]Count, c.nReqs)
	if err := c.ReadGroup(cs); err != nil {
		return Count{}, err
	}
	return cs[0], nil
}

// ReadGroup returns the current value of every request in c. cs is
// index-aligned with the plan's requests; requests beyond len(cs) are not
// reported.
func (c *Counter) ReadGroup(cs []Count) error {
	if c == nil {
		return nil
	}
	if c.groups == nil {
		return fmt.Errorf("Counter is closed")
	}

	for _, g := range c.groups {
		buf := g.readBuf
		if _, err := g.f[0].Read(buf); err != nil {
			return err
		}
		if err := decodeGroup(buf, g.reqs, cs); err != nil {
			return err
		}
	}
	return nil
}

// decodeGroup decodes a PERF_FORMAT_GROUP read of the requests reqs into cs.
func decodeGroup(buf []byte, reqs []int, cs []Count) error {
	nr := binary.NativeEndian.Uint64(buf[0:])
	if nr != uint64(len(reqs)) {
		return fmt.Errorf("read returned %d events, expected %d", nr, len(reqs))
	}

	timeEnabled := binary.NativeEndian.Uint64(buf[8:])
	timeRunning := binary.NativeEndian.Uint64(buf[16:])
	for j, i := range reqs {
		if i >= len(cs) {
			continue
		}
		cs[i].TimeEnabled = timeEnabled
		cs[i].TimeRunning = timeRunning
		cs[i].RawValue = binary.NativeEndian.Uint64(buf[24+j*8:])
	}
	return nil
}
