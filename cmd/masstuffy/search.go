package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/5IGI0/Masstuffy/internal/cdx"
	"github.com/5IGI0/Masstuffy/internal/index"
	"github.com/5IGI0/Masstuffy/internal/urlkey"
)

const searchHelp = `masstuffy search [-flags]

Search the external index by host/path/port against the massaged URL form.
Prints one "identifier type date url" line per hit.

Example:
  % masstuffy search -host example.com -path /blog
`

func search(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("search", flag.ExitOnError)
	var (
		host      = fset.String("host", "", "partial host match (matches subdomains too)")
		hostExact = fset.String("host-exact", "", "exact host match")
		path      = fset.String("path", "", "path prefix match")
		pathExact = fset.String("path-exact", "", "exact path match")
		port      = fset.Uint("port", 0, "exact port match (0 = any)")
		limit     = fset.Int("limit", 100, "maximum number of hits")
	)
	fset.Usage = usage(fset, searchHelp)
	fset.Parse(args)

	p := urlkey.Pattern{}
	if *host != "" {
		p.Host = urlkey.HostPartial
		p.HostValue = *host
	}
	if *hostExact != "" {
		p.Host = urlkey.HostExact
		p.HostValue = *hostExact
	}
	if *path != "" {
		p.Path = urlkey.PathPartial
		p.PathValue = *path
	}
	if *pathExact != "" {
		p.Path = urlkey.PathExact
		p.PathValue = *pathExact
	}
	if *port != 0 {
		p16 := uint16(*port)
		p.Port = &p16
	}

	_, idx, err := openEnv()
	if err != nil {
		return err
	}
	defer idx.Close()

	rows, err := idx.Search(ctx, index.SearchQuery{
		HostPattern: urlkey.BuildRegexp(p),
		Limit:       *limit,
	})
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Printf("%s %s %s %s\n", row.Identifier, row.Type, cdx.FormatDate(row.Date), row.URL)
	}
	return nil
}
