package main

import (
	"context"
	"flag"
	"fmt"
)

const rebuildHelp = `masstuffy rebuild -dict <id> <slug>

Re-encode an entire collection under a new dictionary, committing atomically
through the external index and the manifest. Safe to re-run after an
interrupted attempt.
`

func rebuild(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("rebuild", flag.ExitOnError)
	var (
		dictID = fset.Uint("dict", 0, "new dictionary id to re-encode against")
	)
	fset.Usage = usage(fset, rebuildHelp)
	fset.Parse(args)
	if fset.NArg() != 1 || *dictID == 0 {
		fset.Usage()
		return userErrorf("expected -dict <id> and exactly one slug argument")
	}
	slug := fset.Arg(0)

	root, idx, err := openEnv()
	if err != nil {
		return err
	}
	defer idx.Close()

	c, err := root.GetBySlug(slug)
	if err != nil {
		return userErrorf("collection %q doesn't exist", slug)
	}
	if err := c.Rebuild(ctx, uint32(*dictID), idx); err != nil {
		return err
	}
	fmt.Printf("rebuilt %s under dictionary %d\n", slug, *dictID)
	return nil
}
