package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/5IGI0/Masstuffy/internal/index/sqlindex"
	"github.com/5IGI0/Masstuffy/internal/reposvc"
)

const initDBHelp = `masstuffy init_db

Create the external index schema the workdir's config.json points at.
`

func initDB(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("init_db", flag.ExitOnError)
	fset.Usage = usage(fset, initDBHelp)
	fset.Parse(args)

	cfg, err := reposvc.LoadConfig(filepath.Join(*rootDir, "config.json"))
	if err != nil {
		return err
	}
	idx, err := sqlindex.OpenFromConfig(cfg.Database)
	if err != nil {
		return err
	}
	defer idx.Close()
	fmt.Printf("index schema ready at %s\n", cfg.Database)
	return nil
}
