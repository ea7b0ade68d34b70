package main

import (
	"context"
	"flag"
	"fmt"
)

const createCollectionHelp = `masstuffy create_collection [-flags] <slug>

Create a collection. With -dict, records are stored Zstd-compressed against
the named dictionary; without it, raw WARC.

Example:
  % masstuffy create_collection -dict 70000 -level 9 crawl-2026
`

func createCollection(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("create_collection", flag.ExitOnError)
	var (
		dict  = fset.Uint("dict", 0, "dictionary id to compress against (0 = store raw WARC)")
		level = fset.Int("level", 0, "zstd compression level (0 = library default)")
		split = fset.Uint64("split", 0, "segment split threshold in bytes (0 = default 2^32-1)")
	)
	fset.Usage = usage(fset, createCollectionHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		fset.Usage()
		return userErrorf("expected exactly one slug argument")
	}
	slug := fset.Arg(0)

	root, _, err := openEnv()
	if err != nil {
		return err
	}

	var compression *string
	var dictID *uint32
	if *dict != 0 {
		algo := "zstd"
		id := uint32(*dict)
		compression = &algo
		dictID = &id
	}

	c, err := root.CreateCollection(ctx, slug, compression, dictID, *level, *split)
	if err != nil {
		return err
	}
	fmt.Printf("created collection %s (%s)\n", slug, c.Manifest().UUID)
	return nil
}
