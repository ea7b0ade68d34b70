package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/dict"

	"github.com/5IGI0/Masstuffy/internal/dictstore"
)

const generateDictHelp = `masstuffy generate_dict [-flags] <slug>

Train a Zstd dictionary from a collection's own records and register it in
the dictionary store. Samples are staged in a buffer directory under
data/buffer, which must not already exist (a leftover one means another
training run is, or was, in flight).

Example:
  % masstuffy generate_dict -num-sample 50000 crawl-2026
`

func generateDict(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("generate_dict", flag.ExitOnError)
	var (
		numSample   = fset.Int("num-sample", 10000, "number of records to sample")
		maxDictSize = fset.Int("max-dict-size", 5000000, "maximum dictionary size in bytes")
		label       = fset.String("label", "", "dictionary label (default <slug>_<timestamp>)")
	)
	fset.Usage = usage(fset, generateDictHelp)
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

	c, err := root.GetBySlug(slug)
	if err != nil {
		return userErrorf("collection %q doesn't exist", slug)
	}
	collUUID := c.Manifest().UUID

	bufPath, existed, err := root.GetBufferPath(fmt.Sprintf("gen_%s_dict", slug), true)
	if err != nil {
		return err
	}
	if existed {
		return userErrorf("buffer %s already exists (are you doing it twice?)", bufPath)
	}
	defer os.RemoveAll(bufPath)

	samples, err := root.SampleRecords(collUUID, *numSample)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return userErrorf("no sample found")
	}

	input := make([][]byte, 0, len(samples))
	for i, s := range samples {
		rec, err := c.GetRecord(ctx, s.Filename, s.Offset)
		if err != nil {
			return fmt.Errorf("record %s not found: %w", s.ID, err)
		}
		raw := rec.Serialize()
		if err := os.WriteFile(filepath.Join(bufPath, fmt.Sprintf("%d", i)), raw, 0644); err != nil {
			return err
		}
		input = append(input, raw)
	}

	d, err := dict.BuildZstdDict(input, dict.Options{
		MaxDictSize: *maxDictSize,
		HashBytes:   6,
	})
	if err != nil {
		return fmt.Errorf("training dictionary: %w", err)
	}

	// The trainer assigns its own dictionary id; if that id collides with a
	// registered one (or falls in a reserved range), rewrite bytes [4,8)
	// with a freshly allocated id before submitting.
	id, err := dictstore.SelfDescribedID(d)
	if err != nil {
		return err
	}
	id, err = root.AllocateDictID(id)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(d[4:8], id)

	if *label == "" {
		*label = fmt.Sprintf("%s_%s", slug, time.Now().UTC().Format("20060102150405"))
	}
	id, err = root.AddZstdDict(*label, d)
	if err != nil {
		return err
	}
	fmt.Printf("trained dictionary %d (%d bytes) from %d samples\n", id, len(d), len(input))
	return nil
}
