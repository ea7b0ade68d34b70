package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/5IGI0/Masstuffy/internal/index"
)

const createTokenHelp = `masstuffy create_token [-flags]

Create a bearer token. Each of read/write/delete takes one of the grant
shapes: -<action>-any, -<action>-prefix <p>, or -<action>-list <a,b,c>;
unset actions default to none.

Example:
  % masstuffy create_token -comment crawler -read-any -write-prefix crawl-
`

// grantFlags gathers one action's three mutually exclusive grant flags.
type grantFlags struct {
	any    *bool
	prefix *string
	list   *string
}

func grantFlagsFor(fset *flag.FlagSet, action string) grantFlags {
	return grantFlags{
		any:    fset.Bool(action+"-any", false, "grant "+action+" on any collection"),
		prefix: fset.String(action+"-prefix", "", "grant "+action+" on slugs with this prefix"),
		list:   fset.String(action+"-list", "", "grant "+action+" on this comma-separated slug list"),
	}
}

func (g grantFlags) kindAndPerms() (string, string, error) {
	set := 0
	kind, perms := "none", ""
	if *g.any {
		set++
		kind = "any"
	}
	if *g.prefix != "" {
		set++
		kind, perms = "prefix", *g.prefix
	}
	if *g.list != "" {
		set++
		kind, perms = "list", *g.list
	}
	if set > 1 {
		return "", "", userErrorf("at most one grant shape per action")
	}
	return kind, perms, nil
}

func createToken(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("create_token", flag.ExitOnError)
	comment := fset.String("comment", "", "token's comment")
	read := grantFlagsFor(fset, "read")
	write := grantFlagsFor(fset, "write")
	del := grantFlagsFor(fset, "delete")
	fset.Usage = usage(fset, createTokenHelp)
	fset.Parse(args)

	t := index.Token{Comment: *comment}
	var err error
	if t.ReadKind, t.ReadPerms, err = read.kindAndPerms(); err != nil {
		return err
	}
	if t.WriteKind, t.WritePerms, err = write.kindAndPerms(); err != nil {
		return err
	}
	if t.DeleteKind, t.DeletePerms, err = del.kindAndPerms(); err != nil {
		return err
	}

	var raw [24]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return err
	}
	t.Token = hex.EncodeToString(raw[:])

	_, idx, err := openEnv()
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := idx.CreateToken(ctx, t); err != nil {
		return err
	}
	fmt.Println(t.Token)
	return nil
}

const listTokensHelp = `masstuffy list_tokens

List every bearer token with its per-action grants.
`

func listTokens(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("list_tokens", flag.ExitOnError)
	fset.Usage = usage(fset, listTokensHelp)
	fset.Parse(args)

	_, idx, err := openEnv()
	if err != nil {
		return err
	}
	defer idx.Close()

	tokens, err := idx.ListTokens(ctx)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		fmt.Printf("%s\tread=%s:%s\twrite=%s:%s\tdelete=%s:%s\t%s\n",
			t.Token,
			t.ReadKind, t.ReadPerms,
			t.WriteKind, t.WritePerms,
			t.DeleteKind, t.DeletePerms,
			t.Comment)
	}
	return nil
}

const deleteTokenHelp = `masstuffy delete_token <token>

Delete a bearer token.
`

func deleteToken(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("delete_token", flag.ExitOnError)
	fset.Usage = usage(fset, deleteTokenHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		fset.Usage()
		return userErrorf("expected exactly one token argument")
	}

	_, idx, err := openEnv()
	if err != nil {
		return err
	}
	defer idx.Close()

	return idx.DeleteToken(ctx, fset.Arg(0))
}
