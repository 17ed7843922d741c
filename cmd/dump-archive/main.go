package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/keibalab/racedata-ingester/internal/archive"
	"github.com/keibalab/racedata-ingester/internal/jvdata"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: dump-archive <file.zst> [central|regional]")
		os.Exit(1)
	}
	path := os.Args[1]
	feed := jvdata.FeedCentral
	if len(os.Args) > 2 && os.Args[2] == "regional" {
		feed = jvdata.FeedRegional
	}

	reg := jvdata.NewRegistry(feed)

	recNum := 0
	failed := 0
	n, err := archive.Replay(path, func(record []byte) error {
		recNum++
		fmt.Printf("=== record %d (%d bytes) ===\n", recNum, len(record))
		if !analyzeRecord(reg, record) {
			failed++
		}
		fmt.Println()
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Total records: %d (%d unparseable)\n", n, failed)
}

func analyzeRecord(reg *jvdata.Registry, record []byte) bool {
	kind, err := reg.Kind(record)
	if err != nil {
		fmt.Printf("  kind: %v\n", err)
		fmt.Printf("  head hex: %s\n", hex.EncodeToString(record[:min(32, len(record))]))
		return false
	}
	fmt.Printf("  kind: %s\n", kind)

	layout, ok := reg.Layout(kind)
	if ok {
		fmt.Printf("  layout length: %d (got %d)\n", layout.Length, len(record))
	}

	recs, err := reg.Parse(record)
	if err != nil {
		fmt.Printf("  parse error: %v\n", err)
		fmt.Printf("  head hex: %s\n", hex.EncodeToString(record[:min(64, len(record))]))
		return false
	}
	fmt.Printf("  rows: %d\n", len(recs))

	for i, rec := range recs {
		if i >= 5 && i < len(recs)-1 {
			if i == 5 {
				fmt.Printf("  ... (%d more rows) ...\n", len(recs)-6)
			}
			continue
		}
		label := "base"
		if rec.Group != "" {
			label = rec.Group
		}
		fmt.Printf("  --- row %d (%s) ---\n", i, label)
		if rec.Warnings > 0 {
			fmt.Printf("    warnings: %d fields nulled\n", rec.Warnings)
		}
		names := make([]string, 0, len(rec.Values))
		for name := range rec.Values {
			names = append(names, name)
		}
		sort.Strings(names)
		for j, name := range names {
			if j >= 12 {
				fmt.Printf("    ... (%d fields total)\n", len(names))
				break
			}
			fmt.Printf("    %-14s %s\n", name, rec.Values[name].String())
		}
	}
	return true
}
