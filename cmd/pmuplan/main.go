// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pmuplan assigns performance counters to event requests and prints the
// register values that program them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/aclements/go-pmualloc/alloc"
	"github.com/aclements/go-pmualloc/catalog"
	"github.com/aclements/go-pmualloc/pmu"
)

var (
	archFlag    = flag.String("arch", "core", "PMU `model`, optionally with a revision, as in amd64/fam10hb")
	plmFlag     = flag.String("plm", "ku", "default privilege `levels` (k, u, h)")
	reserveFlag = flag.String("reserve", "", "counter `slots` to leave alone, as in 0,16-17")
	catalogFlag = flag.String("catalog", "", "read the event table from `file` (YAML, or perfmon .json)")
	configFlag  = flag.String("config", "", "plan the sessions in YAML `file` instead of the arguments")
	noErrata    = flag.Bool("no-errata", false, "assume the model has no errata")
	verboseFlag = flag.Bool("v", false, "trace allocation decisions")
	verifyFlag  = flag.Bool("verify", false, "check the model's register layouts against the running kernel")
	dumpFlag    = flag.Bool("dump", false, "print the model's event table as YAML and exit")
	jsonFlag    = flag.Bool("json", false, "print plans as JSON")
	listModels  = flag.Bool("models", false, "list the known models and exit")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Assigns performance counters to event requests and prints\n")
		fmt.Fprintf(flag.CommandLine.Output(), "the register values that program them.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] EVENT[:UMASK...][/mod,.../]...\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "       %s [flags] -config sessions.yaml\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func handleError(err error, usage bool) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if usage {
		flag.Usage()
	}
	os.Exit(1)
}

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *verboseFlag {
		log.SetLevel(logrus.DebugLevel)
	}

	if *listModels {
		for _, name := range pmu.Names() {
			fmt.Println(name)
		}
		return
	}

	m, err := pmu.Lookup(*archFlag)
	if err != nil {
		handleError(err, false)
	}
	if *noErrata {
		m = m.WithoutErrata()
	}

	cat := catalog.Builtin
	if *catalogFlag != "" {
		t, err := catalog.LoadFile(*catalogFlag, m.Catalog)
		if err != nil {
			handleError(err, false)
		}
		cat = catalog.NewSet(t)
	}

	if *verifyFlag {
		if err := m.Verify(); err != nil {
			for _, err := range multierr.Errors(err) {
				fmt.Fprintf(os.Stderr, "%s: %v\n", m, err)
			}
			os.Exit(1)
		}
		fmt.Printf("%s: register layouts match the kernel\n", m)
		if flag.NArg() == 0 && *configFlag == "" {
			return
		}
	}

	if *dumpFlag {
		t, err := cat.Table(m.Catalog)
		if err != nil {
			handleError(err, false)
		}
		if err := catalog.WriteYAML(os.Stdout, t); err != nil {
			handleError(err, false)
		}
		return
	}

	plm, err := alloc.ParsePrivilege(*plmFlag)
	if err != nil {
		handleError(err, true)
	}
	reserved, err := pmu.ParseMask(*reserveFlag)
	if err != nil {
		handleError(err, true)
	}

	var sessions []session
	if *configFlag != "" {
		if flag.NArg() != 0 {
			handleError(errors.New("-config takes no requests"), true)
		}
		sessions, err = loadSessions(*configFlag, m, cat, plm)
		if err != nil {
			handleError(err, false)
		}
	} else {
		if flag.NArg() == 0 {
			handleError(errors.New("no requests"), true)
		}
		var s session
		s.Privilege = plm
		for _, arg := range flag.Args() {
			r, err := alloc.ParseRequest(m, cat, arg)
			if err != nil {
				handleError(err, false)
			}
			s.Requests = append(s.Requests, r)
			s.names = append(s.names, arg)
		}
		sessions = []session{s}
	}
	for i := range sessions {
		sessions[i].Reserved |= reserved
	}

	batch := make([]alloc.Session, len(sessions))
	for i := range sessions {
		batch[i] = sessions[i].Session
	}
	plans, err := alloc.PlanAll(context.Background(), m, cat, batch, alloc.NewLedger(), alloc.WithLogger(log))
	for i := range sessions {
		sessions[i].ID = batch[i].ID
	}

	if *jsonFlag {
		if err := writeJSON(os.Stdout, cat, sessions, plans); err != nil {
			handleError(err, false)
		}
	} else {
		for i, p := range plans {
			if p == nil {
				continue
			}
			if len(plans) > 1 {
				fmt.Printf("session %s:\n", sessions[i].ID)
			}
			if err := writePlan(os.Stdout, cat, sessions[i].names, p); err != nil {
				handleError(err, false)
			}
		}
	}
	if err != nil {
		for _, err := range multierr.Errors(err) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// eventName formats the event and unit masks of request i of p, as recovered
// from its registers.
func eventName(cat *catalog.Set, p *alloc.Plan, i int) string {
	id, umasks, err := p.Decode(cat, i)
	if err != nil {
		return "?"
	}
	var b strings.Builder
	b.WriteString(string(id))
	for _, idx := range umasks {
		um, err := cat.LookupUnitMask(p.Model.Catalog, id, idx)
		if err != nil {
			return "?"
		}
		b.WriteString(":" + um.Name)
	}
	return b.String()
}

// writePlan prints one plan as a table of requests followed by the register
// writes that program it.
func writePlan(w io.Writer, cat *catalog.Set, names []string, p *alloc.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "REQUEST\tEVENT\tCOUNTER\tPLM\tCONTROL\tDATA\tRDPMC\n")
	for i, name := range names {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%#x=%#x\t%#x\t%d\n",
			name, eventName(cat, p, i), p.Assignments[i], p.Privileges[i],
			p.Controls[i].Address, p.Controls[i].Value, p.Data[i].Address, p.Data[i].RDPMC)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "program:\n")
	for _, r := range p.Program() {
		if _, err := fmt.Fprintf(w, "\t%s\n", r); err != nil {
			return err
		}
	}
	return nil
}

type jsonRequest struct {
	Request   string
	Event     string
	Counter   string
	Privilege alloc.Privilege
	Config    uint64
	Control   alloc.ControlRegister
	Data      alloc.DataRegister
}

type jsonPlan struct {
	Session  string
	Model    string
	Requests []jsonRequest
	Program  []alloc.ControlRegister
}

// writeJSON prints the successful plans as a JSON array.
func writeJSON(w io.Writer, cat *catalog.Set, sessions []session, plans []*alloc.Plan) error {
	out := []jsonPlan{}
	for i, p := range plans {
		if p == nil {
			continue
		}
		jp := jsonPlan{
			Session: sessions[i].ID.String(),
			Model:   p.Model.String(),
			Program: p.Program(),
		}
		for j, name := range sessions[i].names {
			jp.Requests = append(jp.Requests, jsonRequest{
				Request:   name,
				Event:     eventName(cat, p, j),
				Counter:   p.Assignments[j].String(),
				Privilege: p.Privileges[j],
				Config:    p.Configs[j],
				Control:   p.Controls[j],
				Data:      p.Data[j],
			})
		}
		out = append(out, jp)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(out)
}
