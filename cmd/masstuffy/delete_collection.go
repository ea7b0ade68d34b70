package main

import (
	"context"
	"flag"
	"fmt"
)

const deleteCollectionHelp = `masstuffy delete_collection <slug>

Remove a collection's directory tree and every row it holds in the external
index. This is irreversible.
`

func deleteCollection(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("delete_collection", flag.ExitOnError)
	fset.Usage = usage(fset, deleteCollectionHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		fset.Usage()
		return userErrorf("expected exactly one slug argument")
	}
	slug := fset.Arg(0)

	root, idx, err := openEnv()
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := root.DeleteCollection(ctx, slug, idx); err != nil {
		return err
	}
	fmt.Printf("deleted collection %s\n", slug)
	return nil
}
