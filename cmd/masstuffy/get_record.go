package main

import (
	"context"
	"flag"
	"os"
)

const getRecordHelp = `masstuffy get_record <record-id>

Fetch one record by its id (urn:uuid:..., without angle brackets) and write
its WARC serialization to stdout.
`

func getRecord(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("get_record", flag.ExitOnError)
	fset.Usage = usage(fset, getRecordHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		fset.Usage()
		return userErrorf("expected exactly one record id")
	}

	root, idx, err := openEnv()
	if err != nil {
		return err
	}
	defer idx.Close()

	row, err := idx.GetByID(ctx, fset.Arg(0))
	if err != nil {
		return err
	}
	c, err := root.GetByUUID(row.Collection)
	if err != nil {
		return err
	}
	rec, err := c.GetRecord(ctx, row.Filename, uint64(row.Offset))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(rec.Serialize())
	return err
}
