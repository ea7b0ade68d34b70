package main

import (
	"context"
	"flag"
	"fmt"
)

const rotateCDXHelp = `masstuffy rotate_cdx <slug>

Compress a collection's active index.cdx into index.cdx.gz. Rotated rows
stay visible to readers; subsequent appends start a fresh index.cdx. Run
this while nothing is writing to the collection.
`

func rotateCDX(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("rotate_cdx", flag.ExitOnError)
	fset.Usage = usage(fset, rotateCDXHelp)
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

	c, err := root.GetBySlug(slug)
	if err != nil {
		return userErrorf("collection %q doesn't exist", slug)
	}
	if err := c.RotateCDX(); err != nil {
		return err
	}
	fmt.Printf("rotated cdx for %s\n", slug)
	return nil
}
