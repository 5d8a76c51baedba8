// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	uuid "github.com/satori/go.uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/pmu"
)

// A Session is one independent set of requests, typically for one monitored
// thread. Per-thread counters are virtualized by the kernel, so sessions only
// compete for counters of the shared bank.
type Session struct {
	ID        uuid.UUID
	Requests  []Request
	Privilege Privilege
	// Reserved are counters this session must not use.
	Reserved pmu.Mask
}

// PlanAll allocates every session concurrently and then records each plan's
// shared bank counters in ledger, in session order. A session whose shared
// counters were taken by an earlier session is planned again around them.
// Sessions with a zero ID are given a new one.
//
// The returned plans are index-aligned with sessions. A session that cannot
// be planned has a nil plan, and its error is combined into the returned
// error, which lists every failed session.
func PlanAll(ctx context.Context, m *pmu.Model, cat catalog.Catalog, sessions []Session, ledger *Ledger, opts ...Option) ([]*Plan, error) {
	cfg := newConfig(opts)
	for i := range sessions {
		if sessions[i].ID == uuid.Nil {
			sessions[i].ID = uuid.NewV4()
		}
	}

	plans := make([]*Plan, len(sessions))
	errs := make([]error, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range sessions {
		s := &sessions[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reserved := s.Reserved | ledger.Reserved(s.ID)
			plans[i], errs[i] = Allocate(m, cat, s.Requests, s.Privilege, reserved, opts...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var err error
	for i := range sessions {
		s := &sessions[i]
		log := cfg.log.WithField("session", s.ID.String())
		if errs[i] == nil {
			errs[i] = ledger.Claim(s.ID, sharedSlots(plans[i]))
			if errors.Is(errs[i], ErrCounterUnavailable) {
				log.Debugf("shared counters taken, planning again: %s", errs[i])
				claimErr := errs[i]
				reserved := s.Reserved | ledger.Reserved(s.ID)
				plans[i], errs[i] = Allocate(m, cat, s.Requests, s.Privilege, reserved, opts...)
				if errs[i] != nil {
					errs[i] = fmt.Errorf("%w (%s)", errs[i], claimErr)
				} else {
					errs[i] = ledger.Claim(s.ID, sharedSlots(plans[i]))
				}
			}
		}
		if errs[i] != nil {
			plans[i] = nil
			log.Debugf("planning failed: %s", errs[i])
			err = multierr.Append(err, fmt.Errorf("session %s: %w", s.ID, errs[i]))
		}
	}
	return plans, err
}

func sharedSlots(p *Plan) pmu.Mask {
	var m pmu.Mask
	for _, a := range p.Assignments {
		if a.Pool == pmu.PoolShared || a.Pool == pmu.PoolSharedFixed {
			m |= pmu.Bit(a.Counter)
		}
	}
	return m
}
