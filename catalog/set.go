// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"fmt"
	"sort"

	"github.com/aclements/go-pmualloc/internal/oncemap"
)

// A Set is a Catalog made of one table per model.
type Set struct {
	table func(model string) (*Table, error)
	names func() []string
}

// NewSet returns a catalog containing tables. If two tables describe the
// same model, the later one wins.
func NewSet(tables ...*Table) *Set {
	m := make(map[string]*Table, len(tables))
	for _, t := range tables {
		m[t.model] = t
	}
	return &Set{
		table: func(model string) (*Table, error) {
			t, ok := m[model]
			if !ok {
				return nil, fmt.Errorf("%w %s", ErrUnknownModel, model)
			}
			return t, nil
		},
		names: func() []string {
			names := make([]string, 0, len(m))
			for name := range m {
				names = append(names, name)
			}
			sort.Strings(names)
			return names
		},
	}
}

// Table returns the table for model.
func (s *Set) Table(model string) (*Table, error) {
	return s.table(model)
}

// Models returns the models s has tables for.
func (s *Set) Models() []string {
	return s.names()
}

func (s *Set) LookupEvent(model string, id EventID) (*Event, error) {
	t, err := s.table(model)
	if err != nil {
		return nil, err
	}
	return t.LookupEvent(model, id)
}

func (s *Set) LookupUnitMask(model string, id EventID, index int) (*UnitMask, error) {
	t, err := s.table(model)
	if err != nil {
		return nil, err
	}
	return t.LookupUnitMask(model, id, index)
}

func (s *Set) Decode(model string, code uint16, umask uint8) (EventID, []int, error) {
	t, err := s.table(model)
	if err != nil {
		return "", nil, err
	}
	return t.Decode(model, code, umask)
}

// builtinTables builds each built-in table on first use.
var builtinTables = oncemap.New(func(model string) (*Table, error) {
	gen, ok := builtinEvents[model]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownModel, model)
	}
	return NewTable(model, gen())
})

// Builtin is the catalog of built-in event tables. Its models are the
// Catalog names of the pmu package's models.
var Builtin = &Set{
	table: builtinTables.Get,
	names: func() []string {
		names := make([]string, 0, len(builtinEvents))
		for name := range builtinEvents {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	},
}
