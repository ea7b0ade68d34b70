// Command masstuffyd serves the Masstuffy HTTP API: it loads the workdir
// (filesystem root + external index from config.json) and listens until
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/5IGI0/Masstuffy/internal/auth"
	"github.com/5IGI0/Masstuffy/internal/httpapi"
	"github.com/5IGI0/Masstuffy/internal/index/sqlindex"
	"github.com/5IGI0/Masstuffy/internal/reposvc"
)

var (
	rootDir = flag.String("root", ".", "path to the masstuffy workdir (holding config.json)")
	listen  = flag.String("listen", "", "[host]:port listen address (overrides config.json's listen_addr)")
	debug   = flag.Bool("debug", false, "enable debug-level logging")
)

func interruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		// Subsequent signals terminate immediately, in case shutdown hangs.
		signal.Stop(sig)
		canc()
	}()
	return ctx, canc
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func run() error {
	flag.Parse()

	log, err := newLogger(*debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	root, err := reposvc.Open(*rootDir, log)
	if err != nil {
		return err
	}

	idx, err := sqlindex.OpenFromConfig(root.Config.Database)
	if err != nil {
		return err
	}
	defer idx.Close()

	addr := root.Config.ListenAddr
	if *listen != "" {
		addr = *listen
	}

	ctx, canc := interruptibleContext()
	defer canc()

	srv := httpapi.New(root, idx, auth.NewChecker(idx, root), log)
	return srv.Serve(ctx, addr)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "masstuffyd: %v\n", err)
		os.Exit(1)
	}
}
