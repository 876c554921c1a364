/*
Command exthash loads a name list into an extensible hash table, prints the
table's statistics and answers lookups.

Usage:

	exthash [flags] [names.txt]
	exthash [flags] -load table.snap

Without a file argument, the name list is read from standard input.

Flags:

	-pagesize n    bytes per page (default 4096)
	-seed n        seed for the probe step shuffling
	-fold          make names case-insensitive
	-trace level   trace level for the table: Error, Info or Debug
	-o file        write a snapshot of the table to file
	-z             compress the snapshot
	-load file     read a snapshot instead of a name list
	-get name      print the value of a name (abbreviations are resolved)
	-complete pre  print all names starting with pre

----------------------------------------------------------------------

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer@com>

All rights reserved.

License information is available in the LICENSE file.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/npillmayer/exthash"
	"github.com/npillmayer/exthash/names"
	"github.com/npillmayer/exthash/names/textfile"
	"github.com/npillmayer/schuko/schukonf/koanfadapter"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
	"github.com/olekukonko/tablewriter"
	"github.com/pingcap/errors"
)

// tracer writes to trace with key 'exthash'
func tracer() tracing.Trace {
	return tracing.Select("exthash")
}

type flags struct {
	pageSize int
	seed     int
	fold     bool
	trace    string
	out      string
	compress bool
	load     string
	get      string
	complete string
}

func main() {
	var f flags
	flag.IntVar(&f.pageSize, "pagesize", 4096, "bytes per page")
	flag.IntVar(&f.seed, "seed", 1, "seed for the probe step shuffling")
	flag.BoolVar(&f.fold, "fold", false, "make names case-insensitive")
	flag.StringVar(&f.trace, "trace", "Error", "trace level: Error, Info or Debug")
	flag.StringVar(&f.out, "o", "", "write a snapshot to this file")
	flag.BoolVar(&f.compress, "z", false, "compress the snapshot")
	flag.StringVar(&f.load, "load", "", "read a snapshot instead of a name list")
	flag.StringVar(&f.get, "get", "", "print the value of a name")
	flag.StringVar(&f.complete, "complete", "", "print all names starting with a prefix")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [names.txt] | -load table.snap\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if (f.load != "" && flag.NArg() > 0) || flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(f, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "exthash: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags, args []string) error {
	opts, err := configure(f)
	if err != nil {
		return err
	}
	var tbl *names.Table
	switch {
	case f.load != "":
		tbl, err = loadSnapshot(f.load, opts, f.fold)
	case len(args) == 0:
		tbl, err = readNames("stdin", os.Stdin, opts, f.fold)
	default:
		tbl, err = loadNames(args[0], opts, f.fold)
	}
	if err != nil {
		return err
	}
	if _, err = tbl.HashTable().Validate(false); err != nil {
		return err
	}
	tbl.HashTable().TraceStats()
	if f.get != "" {
		lookup(tbl, f.get)
	}
	if f.complete != "" {
		for _, name := range tbl.Complete(f.complete) {
			fmt.Println(name)
		}
	}
	if f.get == "" && f.complete == "" {
		printStats(tbl)
	}
	if f.out != "" {
		return writeSnapshot(tbl.HashTable(), f.out, f.compress)
	}
	return nil
}

// configure sets up tracing and derives the table options from the
// command line.
func configure(f flags) (exthash.Options, error) {
	conf := koanfadapter.New(nil, "", nil)
	conf.InitDefaults()
	conf.Set("tracing.exthash", f.trace)
	conf.Set("tracing.root", "Error")
	conf.Set(exthash.ConfPageSize, f.pageSize)
	conf.Set(exthash.ConfSeed, f.seed)
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	if err := trace2go.ConfigureRoot(conf, "tracing", trace2go.ReplaceTracers(true)); err != nil {
		return exthash.Options{}, errors.Annotate(err, "configuring tracing")
	}
	tracing.SetTraceSelector(trace2go.Selector())
	return exthash.OptionsFromConfiguration(conf), nil
}

func loadNames(path string, opts exthash.Options, fold bool) (*names.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return readNames(path, file, opts, fold)
}

func readNames(path string, r io.Reader, opts exthash.Options, fold bool) (*names.Table, error) {
	reader := textfile.NewReader(bufio.NewReader(r))
	tbl, err := names.Load(filepath.Base(path), reader,
		names.WithFold(fold), names.WithTableOptions(opts))
	if err != nil {
		return nil, errors.Annotatef(err, "%s, line %d", path, reader.Line())
	}
	if id := reader.Identifier(); id != "" {
		tbl.Identifier = "names: " + id
	}
	return tbl, nil
}

func loadSnapshot(path string, opts exthash.Options, fold bool) (*names.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	raw, err := exthash.ReadSnapshot(bufio.NewReader(file), opts)
	if err != nil {
		return nil, errors.Annotatef(err, "reading snapshot %s", path)
	}
	tbl, err := names.FromTable(raw, names.WithFold(fold))
	if err != nil {
		return nil, err
	}
	tbl.Identifier = "snapshot: " + filepath.Base(path)
	return tbl, nil
}

func writeSnapshot(tbl *exthash.Table, path string, compress bool) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	w := bufio.NewWriter(file)
	if err = tbl.WriteSnapshot(w, exthash.SnapshotOptions{Compress: compress}); err != nil {
		file.Close()
		return errors.Annotatef(err, "writing snapshot %s", path)
	}
	if err = w.Flush(); err != nil {
		file.Close()
		return errors.Trace(err)
	}
	tracer().Infof("snapshot written to %s", path)
	return errors.Trace(file.Close())
}

func lookup(tbl *names.Table, name string) {
	full, ok := tbl.Match(name)
	if !ok {
		if c := tbl.Complete(name); len(c) > 1 {
			fmt.Printf("%s: ambiguous, %d candidates\n", name, len(c))
		} else {
			fmt.Printf("%s: not found\n", name)
		}
		return
	}
	value, _ := tbl.Get(full)
	fmt.Printf("%s\t%s\n", full, value)
}

func printStats(tbl *names.Table) {
	ht := tbl.HashTable()
	s, u := ht.GetStats(), ht.Usage()
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Table", "Entries", "Pages", "Depth", "Dir Slots", "Bytes Used", "Bytes Free", "Fill"})
	table.Append([]string{
		tbl.Identifier,
		strconv.Itoa(s.Entries),
		strconv.Itoa(s.Pages),
		strconv.Itoa(int(ht.Depth())),
		strconv.Itoa(u.DirSlots),
		strconv.Itoa(u.Allocated),
		strconv.Itoa(u.Free),
		strconv.FormatFloat(u.FillRatio(), 'f', 2, 64),
	})
	table.Render()
}
