// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	uuid "github.com/satori/go.uuid"

	"github.com/aclements/go-pmualloc/alloc"
	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/pmu"
)

const sessionsYAML = `
sessions:
  - id: 6ba7b810-9dad-11d1-80b4-00c04fd430c8
    requests: ["UNC_LLC_HITS:ANY", "INST_RETIRED:ANY_P/precise/"]
  - plm: u
    reserve: "0-1"
    requests: [LAST_LEVEL_CACHE_MISSES]
`

func TestParseSessions(t *testing.T) {
	ss, err := parseSessions([]byte(sessionsYAML), pmu.Nehalem, catalog.Builtin, alloc.Kernel|alloc.User)
	if err != nil {
		t.Fatal(err)
	}
	if len(ss) != 2 {
		t.Fatalf("got %d sessions, want 2", len(ss))
	}
	if want := uuid.FromStringOrNil("6ba7b810-9dad-11d1-80b4-00c04fd430c8"); ss[0].ID != want {
		t.Errorf("session 0: got ID %s, want %s", ss[0].ID, want)
	}
	if ss[0].Privilege != alloc.Kernel|alloc.User || ss[1].Privilege != alloc.User {
		t.Errorf("got privileges %s and %s, want ku and u", ss[0].Privilege, ss[1].Privilege)
	}
	if want := pmu.Range(0, 2); ss[1].Reserved != want {
		t.Errorf("session 1: got reserved %s, want %s", ss[1].Reserved, want)
	}
	if len(ss[0].Requests) != 2 || !ss[0].Requests[1].Precise || ss[0].names[0] != "UNC_LLC_HITS:ANY" {
		t.Errorf("session 0: got requests %+v (%q)", ss[0].Requests, ss[0].names)
	}

	testErr := func(data, want string) {
		t.Helper()
		_, err := parseSessions([]byte(data), pmu.Nehalem, catalog.Builtin, alloc.User)
		if err == nil || err.Error() != want {
			t.Errorf("want error %s, got %v", want, err)
		}
	}
	testErr("sessions: []", "no sessions")
	testErr("sessions: [{id: nope}]", "session 0: uuid: incorrect UUID length: nope")
	testErr("sessions: [{reserve: x}]", `session 0: error parsing counter list "x": bad slot "x"`)
	testErr("sessions: [{requests: [NOPE]}]", `session 0: invalid request: unknown event "NOPE"`)
	_, err = parseSessions([]byte("sessions: [{plm: kz}]"), pmu.Nehalem, catalog.Builtin, alloc.User)
	if err == nil || !strings.Contains(err.Error(), `bad privilege level 'z' in "kz"`) {
		t.Errorf("want privilege error, got %v", err)
	}
}

func TestWritePlan(t *testing.T) {
	names := []string{"LAST_LEVEL_CACHE_MISSES", "INSTRUCTIONS_RETIRED/u/"}
	var reqs []alloc.Request
	for _, name := range names {
		r, err := alloc.ParseRequest(pmu.Core, catalog.Builtin, name)
		if err != nil {
			t.Fatal(err)
		}
		reqs = append(reqs, r)
	}
	p, err := alloc.Allocate(pmu.Core, catalog.Builtin, reqs, alloc.Kernel|alloc.User, 0)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := writePlan(&buf, catalog.Builtin, names, p); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 1+len(names)+1+len(p.Program()) {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if f := strings.Fields(lines[1]); f[0] != names[0] || f[1] != "LAST_LEVEL_CACHE_MISSES" || f[2] != "generic:0" || f[3] != "ku" {
		t.Errorf("got request line %q", lines[1])
	}
	if f := strings.Fields(lines[2]); f[2] != "fixed:16" || f[3] != "u" {
		t.Errorf("got request line %q", lines[2])
	}
	for i, r := range p.Program() {
		if got, want := lines[1+len(names)+1+i], "\t"+r.String(); got != want {
			t.Errorf("program line %d: got %q, want %q", i, got, want)
		}
	}

	buf.Reset()
	ss := []session{{names: names}}
	if err := writeJSON(&buf, catalog.Builtin, ss, []*alloc.Plan{p, nil}); err != nil {
		t.Fatal(err)
	}
	var out []jsonPlan
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || len(out[0].Requests) != 2 || out[0].Requests[1].Privilege != alloc.User || out[0].Model != "core" {
		t.Errorf("got JSON %s", buf.String())
	}
}
