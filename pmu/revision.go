// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"fmt"
	"strings"
)

// A Revision is a hardware stepping. Revisions are ordered, so a range of
// revisions can be compared numerically.
type Revision uint8

const (
	RevUnknown Revision = iota
	RevK7
	RevK8B
	RevK8C
	RevK8D
	RevK8E
	RevK8F
	RevK8G
	RevFam10hB
	RevFam10hC
	RevFam10hD
	RevFam10hE
	RevFam15hB
)

var revNames = [...]string{
	RevUnknown: "unknown",
	RevK7:      "k7",
	RevK8B:     "k8b",
	RevK8C:     "k8c",
	RevK8D:     "k8d",
	RevK8E:     "k8e",
	RevK8F:     "k8f",
	RevK8G:     "k8g",
	RevFam10hB: "fam10hb",
	RevFam10hC: "fam10hc",
	RevFam10hD: "fam10hd",
	RevFam10hE: "fam10he",
	RevFam15hB: "fam15hb",
}

func (r Revision) String() string {
	if int(r) < len(revNames) {
		return revNames[r]
	}
	return fmt.Sprintf("Revision(%d)", int(r))
}

// ParseRevision parses a revision name such as "k8f" or "fam10hb".
func ParseRevision(s string) (Revision, error) {
	s = strings.ToLower(s)
	for r, name := range revNames {
		if name == s {
			return Revision(r), nil
		}
	}
	return 0, fmt.Errorf("unknown revision %q", s)
}

func (r Revision) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Revision) UnmarshalText(b []byte) error {
	rev, err := ParseRevision(string(b))
	if err != nil {
		return err
	}
	*r = rev
	return nil
}

// A RevisionRange is an inclusive range of revisions. A zero Till means
// there is no upper bound, and the zero RevisionRange contains every
// revision.
type RevisionRange struct {
	From Revision `yaml:"from,omitempty"`
	Till Revision `yaml:"till,omitempty"`
}

// Contains reports whether rev is in r. An unknown revision is in every
// range.
func (r RevisionRange) Contains(rev Revision) bool {
	if rev == RevUnknown {
		return true
	}
	if rev < r.From {
		return false
	}
	return r.Till == RevUnknown || rev <= r.Till
}

func (r RevisionRange) String() string {
	switch {
	case r.From == 0 && r.Till == 0:
		return "all"
	case r.Till == 0:
		return r.From.String() + "+"
	}
	return r.From.String() + "-" + r.Till.String()
}
