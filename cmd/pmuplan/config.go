// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"

	uuid "github.com/satori/go.uuid"
	"golang.org/x/exp/mmap"
	"gopkg.in/yaml.v3"

	"github.com/aclements/go-pmualloc/alloc"
	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/pmu"
)

// sessionsFile is the YAML form of a batch of sessions:
//
//	sessions:
//	  - id: 6ba7b810-9dad-11d1-80b4-00c04fd430c8
//	    plm: ku
//	    reserve: "0-1"
//	    requests: ["UNC_LLC_HITS:ANY", "INST_RETIRED:ANY_P/precise/"]
type sessionsFile struct {
	Sessions []sessionEntry `yaml:"sessions"`
}

type sessionEntry struct {
	ID        string          `yaml:"id"`
	Privilege alloc.Privilege `yaml:"plm"`
	Reserve   string          `yaml:"reserve"`
	Requests  []string        `yaml:"requests"`
}

// A session is a parsed session along with the request strings it came from.
type session struct {
	alloc.Session
	names []string
}

func loadSessions(path string, m *pmu.Model, cat catalog.Catalog, defaultPriv alloc.Privilege) ([]session, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data := make([]byte, r.Len())
	if _, err := r.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	ss, err := parseSessions(data, m, cat, defaultPriv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ss, nil
}

func parseSessions(data []byte, m *pmu.Model, cat catalog.Catalog, defaultPriv alloc.Privilege) ([]session, error) {
	var f sessionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Sessions) == 0 {
		return nil, fmt.Errorf("no sessions")
	}

	out := make([]session, len(f.Sessions))
	for i, ent := range f.Sessions {
		s := &out[i]
		if ent.ID != "" {
			id, err := uuid.FromString(ent.ID)
			if err != nil {
				return nil, fmt.Errorf("session %d: %w", i, err)
			}
			s.ID = id
		}
		s.Privilege = ent.Privilege
		if s.Privilege == 0 {
			s.Privilege = defaultPriv
		}
		mask, err := pmu.ParseMask(ent.Reserve)
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		s.Reserved = mask
		for _, str := range ent.Requests {
			r, err := alloc.ParseRequest(m, cat, str)
			if err != nil {
				return nil, fmt.Errorf("session %d: %w", i, err)
			}
			s.Requests = append(s.Requests, r)
			s.names = append(s.names, str)
		}
	}
	return out, nil
}
