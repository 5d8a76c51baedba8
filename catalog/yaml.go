// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/exp/mmap"
	"gopkg.in/yaml.v3"

	"github.com/aclements/go-pmualloc/pmu"
)

// yamlTable is the YAML form of a Table. Placements are written in their
// String form, such as "pmc0", "counters:0,1", "fixed2-only", or "shared".
type yamlTable struct {
	Model  string      `yaml:"model"`
	Events []yamlEvent `yaml:"events"`
}

type yamlEvent struct {
	Name               string            `yaml:"name"`
	Desc               string            `yaml:"desc,omitempty"`
	Code               uint16            `yaml:"code"`
	UMask              uint8             `yaml:"umask,omitempty"`
	Edge               bool              `yaml:"edge,omitempty"`
	Invert             bool              `yaml:"invert,omitempty"`
	Threshold          uint8             `yaml:"threshold,omitempty"`
	Placement          []string          `yaml:"placement,omitempty"`
	NoCombo            bool              `yaml:"nocombo,omitempty"`
	ComboWithThreshold bool              `yaml:"combo_with_threshold,omitempty"`
	Fill               []Fill            `yaml:"fill,omitempty"`
	Revisions          pmu.RevisionRange `yaml:"revisions,omitempty"`
	Erratum            string            `yaml:"erratum,omitempty"`
	UnitMasks          []yamlUnitMask    `yaml:"unit_masks,omitempty"`
}

type yamlUnitMask struct {
	Name      string            `yaml:"name"`
	Desc      string            `yaml:"desc,omitempty"`
	Code      uint8             `yaml:"code"`
	Placement []string          `yaml:"placement,omitempty"`
	Revisions pmu.RevisionRange `yaml:"revisions,omitempty"`
}

// ParseYAML parses a YAML event table. If model is not empty, it overrides
// the model named in the file.
func ParseYAML(model string, data []byte) (*Table, error) {
	var yt yamlTable
	if err := yaml.Unmarshal(data, &yt); err != nil {
		return nil, fmt.Errorf("error decoding event table: %w", err)
	}
	if model == "" {
		model = yt.Model
	}
	if model == "" {
		return nil, fmt.Errorf("event table does not name a model")
	}
	events := make([]Event, 0, len(yt.Events))
	for _, ye := range yt.Events {
		ev := Event{
			Name:               ye.Name,
			Desc:               ye.Desc,
			Code:               ye.Code,
			UMask:              ye.UMask,
			Edge:               ye.Edge,
			Invert:             ye.Invert,
			Threshold:          ye.Threshold,
			NoCombo:            ye.NoCombo,
			ComboWithThreshold: ye.ComboWithThreshold,
			Fill:               ye.Fill,
			Revisions:          ye.Revisions,
			Erratum:            ye.Erratum,
		}
		var err error
		if ev.Placement, err = parsePlacements(ye.Placement); err != nil {
			return nil, fmt.Errorf("event %s: %w", ye.Name, err)
		}
		for _, yu := range ye.UnitMasks {
			um := UnitMask{Name: yu.Name, Desc: yu.Desc, Code: yu.Code, Revisions: yu.Revisions}
			if um.Placement, err = parsePlacements(yu.Placement); err != nil {
				return nil, fmt.Errorf("event %s: unit mask %s: %w", ye.Name, yu.Name, err)
			}
			ev.UnitMasks = append(ev.UnitMasks, um)
		}
		events = append(events, ev)
	}
	return NewTable(model, events)
}

func parsePlacements(ss []string) ([]Placement, error) {
	var ps []Placement
	for _, s := range ss {
		p, err := ParsePlacement(s)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, nil
}

func placementStrings(ps []Placement) []string {
	var ss []string
	for _, p := range ps {
		ss = append(ss, p.String())
	}
	return ss
}

// WriteYAML writes t in the form read by ParseYAML.
func WriteYAML(w io.Writer, t *Table) error {
	yt := yamlTable{Model: t.model}
	for _, ev := range t.events {
		ye := yamlEvent{
			Name:               ev.Name,
			Desc:               ev.Desc,
			Code:               ev.Code,
			UMask:              ev.UMask,
			Edge:               ev.Edge,
			Invert:             ev.Invert,
			Threshold:          ev.Threshold,
			Placement:          placementStrings(ev.Placement),
			NoCombo:            ev.NoCombo,
			ComboWithThreshold: ev.ComboWithThreshold,
			Fill:               ev.Fill,
			Revisions:          ev.Revisions,
			Erratum:            ev.Erratum,
		}
		for _, um := range ev.UnitMasks {
			ye.UnitMasks = append(ye.UnitMasks, yamlUnitMask{
				Name:      um.Name,
				Desc:      um.Desc,
				Code:      um.Code,
				Placement: placementStrings(um.Placement),
				Revisions: um.Revisions,
			})
		}
		yt.Events = append(yt.Events, ye)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&yt); err != nil {
		return err
	}
	return enc.Close()
}

// LoadFile reads an event table from path. Files ending in .json are read as
// Intel perfmon event files and need model to be set. Other files are read
// as YAML tables, with model overriding the model they name.
func LoadFile(path, model string) (*Table, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data := make([]byte, r.Len())
	if _, err := r.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	var t *Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if model == "" {
			return nil, fmt.Errorf("%s: perfmon event files need a model name", path)
		}
		t, err = ParsePerfmon(model, data)
	default:
		t, err = ParseYAML(model, data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
