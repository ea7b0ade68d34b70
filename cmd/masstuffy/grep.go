package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
)

const grepHelp = `masstuffy grep <pattern> [<pattern>...]

Scan every record body in every collection for regex matches and write one
CSV row per match: pattern, collection, match, start, end, record id, uri.
`

func grep(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("grep", flag.ExitOnError)
	fset.Usage = usage(fset, grepHelp)
	fset.Parse(args)
	if fset.NArg() == 0 {
		fset.Usage()
		return userErrorf("expected at least one pattern")
	}

	regs := make([]*regexp.Regexp, 0, fset.NArg())
	for _, p := range fset.Args() {
		re, err := regexp.Compile(p)
		if err != nil {
			return userErrorf("compiling %q: %v", p, err)
		}
		regs = append(regs, re)
	}

	root, idx, err := openEnv()
	if err != nil {
		return err
	}
	defer idx.Close()

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	for _, m := range root.ListCollections() {
		c, err := root.GetBySlug(m.Slug)
		if err != nil {
			continue
		}
		cr, err := c.IterCDX()
		if err != nil {
			// A collection that has never indexed a record has no CDX yet.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		for {
			row, err := cr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				cr.Close()
				return err
			}
			rec, err := c.GetRecord(ctx, row.Filename, row.Offset)
			if err != nil {
				cr.Close()
				return err
			}
			uri, _ := rec.TargetURI()
			for _, re := range regs {
				for _, loc := range re.FindAllIndex(rec.Body, -1) {
					if err := w.Write([]string{
						re.String(),
						m.Slug,
						string(rec.Body[loc[0]:loc[1]]),
						fmt.Sprintf("%d", loc[0]),
						fmt.Sprintf("%d", loc[1]),
						row.ID,
						uri,
					}); err != nil {
						cr.Close()
						return err
					}
				}
			}
		}
		cr.Close()
	}
	return nil
}
