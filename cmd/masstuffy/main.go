// Command masstuffy is the command-line front end of the repository: one
// subcommand per operation, dispatched from a verb table. Exit code 0 on
// success, 1 on user error, nonzero on fatal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

var (
	rootDir = flag.String("root", ".", "path to the masstuffy workdir (holding config.json)")
	debug   = flag.Bool("debug", false, "enable debug-level logging")
)

// userError marks a failure caused by the caller (unknown slug, bad flag
// value); main maps it to exit code 1 rather than a fatal nonzero.
type userError struct{ msg string }

func (e userError) Error() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return userError{msg: fmt.Sprintf(format, args...)}
}

func interruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		signal.Stop(sig)
		canc()
	}()
	return ctx, canc
}

func newLogger() (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if *debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func main() {
	flag.Parse()

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"init_fs":           {initFS},
		"init_db":           {initDB},
		"create_collection": {createCollection},
		"push_records":      {pushRecords},
		"get_record":        {getRecord},
		"generate_dict":     {generateDict},
		"search":            {search},
		"rebuild":           {rebuild},
		"rotate_cdx":        {rotateCDX},
		"delete_collection": {deleteCollection},
		"create_token":      {createToken},
		"list_tokens":       {listTokens},
		"delete_token":      {deleteToken},
		"grep":              {grep},
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "syntax: masstuffy [-flags] <command> [-flags] <args>\n")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Repository commands:\n")
		fmt.Fprintf(os.Stderr, "\tinit_fs           - lay out a new workdir\n")
		fmt.Fprintf(os.Stderr, "\tinit_db           - create the external index schema\n")
		fmt.Fprintf(os.Stderr, "\tcreate_collection - create a collection\n")
		fmt.Fprintf(os.Stderr, "\tdelete_collection - delete a collection and its index rows\n")
		fmt.Fprintf(os.Stderr, "\trebuild           - re-encode a collection under a new dictionary\n")
		fmt.Fprintf(os.Stderr, "\trotate_cdx        - compress a collection's active CDX index\n")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Record commands:\n")
		fmt.Fprintf(os.Stderr, "\tpush_records      - ingest WARC records from a file\n")
		fmt.Fprintf(os.Stderr, "\tget_record        - fetch one record by id\n")
		fmt.Fprintf(os.Stderr, "\tsearch            - search records by host/path/port\n")
		fmt.Fprintf(os.Stderr, "\tgrep              - scan record bodies for regex matches\n")
		fmt.Fprintf(os.Stderr, "\tgenerate_dict     - train a Zstd dictionary from a collection\n")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Token commands:\n")
		fmt.Fprintf(os.Stderr, "\tcreate_token, list_tokens, delete_token\n")
		os.Exit(2)
	}
	verb, args := args[0], args[1:]

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: masstuffy <command> [options]\n")
		os.Exit(2)
	}

	ctx, canc := interruptibleContext()
	defer canc()

	if err := v.fn(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "masstuffy %s: %v\n", verb, err)
		if _, ok := err.(userError); ok {
			os.Exit(1)
		}
		os.Exit(3)
	}
}
