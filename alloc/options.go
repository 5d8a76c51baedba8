// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"io"

	"github.com/sirupsen/logrus"
)

type config struct {
	log logrus.FieldLogger
}

// An Option configures Allocate, Assign, and PlanAll.
type Option func(*config)

// WithLogger traces allocation decisions to log at debug level.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = log
	}
}

func newConfig(opts []Option) *config {
	c := new(config)
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = l
	}
	return c
}
