package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/5IGI0/Masstuffy/internal/reposvc"
)

const initFSHelp = `masstuffy init_fs [-flags]

Lay out a brand-new workdir at -root: config.json plus the repository,
dictionary and buffer directories.

Example:
  % masstuffy -root /srv/archive init_fs -listen :8080
`

func initFS(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("init_fs", flag.ExitOnError)
	var (
		listen   = fset.String("listen", "127.0.0.1:8080", "listen_addr to write into config.json")
		database = fset.String("database", "sqlite://./data/index.sqlite3", "external index connection string")
	)
	fset.Usage = usage(fset, initFSHelp)
	fset.Parse(args)

	if _, err := os.Stat(filepath.Join(*rootDir, "config.json")); err == nil {
		return userErrorf("%s already holds a config.json", *rootDir)
	}

	cfg := reposvc.DefaultConfig()
	cfg.ListenAddr = *listen
	cfg.Database = *database
	if err := reposvc.InitFS(*rootDir, cfg); err != nil {
		return err
	}
	fmt.Printf("initialized workdir at %s\n", *rootDir)
	return nil
}
