package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/5IGI0/Masstuffy/internal/warc"
)

const pushRecordsHelp = `masstuffy push_records <source.warc> <slug>

Ingest every WARC record in source.warc into the named collection,
mirroring each one into the external index.
`

func pushRecords(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("push_records", flag.ExitOnError)
	fset.Usage = usage(fset, pushRecordsHelp)
	fset.Parse(args)
	if fset.NArg() != 2 {
		fset.Usage()
		return userErrorf("expected <source.warc> <slug>")
	}
	source, slug := fset.Arg(0), fset.Arg(1)

	root, idx, err := openEnv()
	if err != nil {
		return err
	}
	defer idx.Close()

	c, err := root.GetBySlug(slug)
	if err != nil {
		return userErrorf("collection %q doesn't exist", slug)
	}
	collUUID := c.Manifest().UUID

	f, err := os.Open(source)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	count := 0
	for {
		rec, err := warc.ReadRecord(br)
		if err != nil {
			return fmt.Errorf("parsing record %d: %w", count, err)
		}
		if rec == nil {
			break
		}
		if _, err := root.IngestWarc(ctx, collUUID, rec, idx); err != nil {
			return err
		}
		count++
	}
	fmt.Printf("pushed %d records into %s\n", count, slug)
	return nil
}
