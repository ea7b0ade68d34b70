package main

import (
	"github.com/5IGI0/Masstuffy/internal/index/sqlindex"
	"github.com/5IGI0/Masstuffy/internal/reposvc"
)

// openEnv loads the workdir at -root and the external index its config
// points at. Every subcommand except init_fs and init_db goes through here.
func openEnv() (*reposvc.Root, *sqlindex.Store, error) {
	log, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	root, err := reposvc.Open(*rootDir, log)
	if err != nil {
		return nil, nil, err
	}
	idx, err := sqlindex.OpenFromConfig(root.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	return root, idx, nil
}
