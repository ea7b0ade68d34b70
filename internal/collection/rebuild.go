package collection

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/cdx"
	"github.com/5IGI0/Masstuffy/internal/index"
)

// rebuildRow pairs a CDX row with its segment's position in the segment
// vector, so the iteration order below can sort by (segment, offset) with an
// integer comparison instead of comparing filename strings.
type rebuildRow struct {
	segIdx int
	offset uint64
	row    cdx.Record
}

func strPtr(s string) *string { return &s }

// Rebuild switches the collection to newDictID, re-encoding every record
// and committing atomically across the external index and the manifest.
// It is the state machine of spec.md §4.6, step for step; it is safe to
// re-run after a crash at any point before step 7f, because step 3 clears
// whatever a prior attempt left behind.
func (c *Collection) Rebuild(ctx context.Context, newDictID uint32, idx index.Client) error {
	oldManifest := c.Manifest()
	collUUID := oldManifest.UUID

	// Rebuilding onto the dictionary already in effect would make step 3's
	// residue cleanup destroy the live rows and segments.
	if oldManifest.DictID != nil && *oldManifest.DictID == newDictID {
		return xerrors.Errorf("rebuild %s: already encoded under dictionary %d", oldManifest.Slug, newDictID)
	}

	newDict, err := c.ds.Get(newDictID)
	if err != nil {
		return xerrors.Errorf("rebuild %s: loading new dictionary: %w", oldManifest.Slug, err)
	}

	// 1. Enumerate records via the current CDX, building a small vector of
	// distinct segment filenames so each row can carry an integer index
	// into it as its sort key.
	segOf := map[string]int{}
	var segNames []string
	var rows []rebuildRow

	cr, err := c.IterCDX()
	if err != nil {
		return xerrors.Errorf("rebuild %s: opening cdx: %w", oldManifest.Slug, err)
	}
	for {
		rec, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			cr.Close()
			return xerrors.Errorf("rebuild %s: reading cdx: %w", oldManifest.Slug, err)
		}
		si, ok := segOf[rec.Filename]
		if !ok {
			si = len(segNames)
			segOf[rec.Filename] = si
			segNames = append(segNames, rec.Filename)
		}
		rows = append(rows, rebuildRow{segIdx: si, offset: rec.Offset, row: rec})
	}
	cr.Close()

	// 2. Sort by (segment-index, offset) so the loop below reuses the
	// source segment's shared handle and seeks forward monotonically.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].segIdx != rows[j].segIdx {
			return rows[i].segIdx < rows[j].segIdx
		}
		return rows[i].offset < rows[j].offset
	})

	// 3. Clean partial-rebuild residue from a prior aborted attempt at this
	// same new dictionary: its index rows, its pending CDX, and its output
	// segments (identified by the new-dictionary filename suffix; their
	// rows are deleted just above, so the files hold nothing reachable).
	// Orphans from aborted rebuilds at *other* dictionaries are left in
	// place; only a directory scan by (dict_id, algo) suffix can find them
	// safely, and that is left for a later pass (see spec.md §9 weakness 3).
	if err := idx.DeleteRecords(ctx, collUUID, newDictID, "zstd"); err != nil {
		return xerrors.Errorf("rebuild %s: cleaning index residue: %w", oldManifest.Slug, err)
	}
	pendingPath := filepath.Join(c.dir, ".index.cdx")
	if err := os.Remove(pendingPath); err != nil && !os.IsNotExist(err) {
		return xerrors.Errorf("rebuild %s: removing stale .index.cdx: %w", oldManifest.Slug, err)
	}
	for n := 1; ; n++ {
		leftover := filepath.Join(c.dir, fmt.Sprintf("records.%d.%d.warc.zstd", n, newDictID))
		if _, statErr := os.Stat(leftover); statErr != nil {
			break
		}
		if err := c.fm.Unmanage(leftover); err != nil {
			c.log.Warnw("rebuild: failed to unmanage leftover segment", "path", leftover, "error", err)
		}
		if err := os.Remove(leftover); err != nil {
			return xerrors.Errorf("rebuild %s: removing leftover segment %s: %w", oldManifest.Slug, leftover, err)
		}
	}

	// 4. Open .index.cdx with create-new semantics: its existence here
	// would mean a still-live rebuild from another process.
	pendingFile, err := os.OpenFile(pendingPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return xerrors.Errorf("rebuild %s already in progress: %w", oldManifest.Slug, err)
	}
	pendingWriter := &pendingCDXWriter{f: pendingFile}

	// 5. Open the first output segment with create-new.
	outSegN := 1
	outName := fmt.Sprintf("records.%d.%d.warc.zstd", outSegN, newDictID)
	outPath := filepath.Join(c.dir, outName)
	if _, statErr := os.Stat(outPath); statErr == nil {
		pendingFile.Close()
		return xerrors.Errorf("rebuild %s: output segment %s already exists", oldManifest.Slug, outName)
	}
	var outSize int64

	level := levelFromManifest(oldManifest.Level)
	algo := "zstd"

	// 6. Iterate sorted records: decode each through the OLD dictionary (or
	// raw, if the collection was uncompressed), re-encode with the new
	// dictionary, roll to a new output segment on threshold, and emit both
	// a pending CDX line and an inactive index row.
	for _, rr := range rows {
		rec, err := c.GetRecord(ctx, rr.row.Filename, rr.row.Offset)
		if err != nil {
			c.log.Warnw("rebuild: skipping unreadable record",
				"collection", oldManifest.Slug, "id", rr.row.ID, "error", err)
			continue
		}

		encoded, err := encodeZstd(rec.Serialize(), newDict, level)
		if err != nil {
			c.log.Warnw("rebuild: skipping record that failed to re-encode",
				"collection", oldManifest.Slug, "id", rr.row.ID, "error", err)
			continue
		}

		if outSize > 0 && outSize+int64(len(encoded)) >= int64(oldManifest.SplitThreshold) {
			outSegN++
			outName = fmt.Sprintf("records.%d.%d.warc.zstd", outSegN, newDictID)
			outPath = filepath.Join(c.dir, outName)
			outSize = 0
		}

		offset, err := c.fm.Append(outPath, encoded)
		if err != nil {
			pendingFile.Close()
			return xerrors.Errorf("rebuild %s: writing new segment: %w", oldManifest.Slug, err)
		}
		outSize = offset + int64(len(encoded))

		newRow := rr.row
		newRow.Filename = outName
		newRow.Offset = uint64(offset)
		newRow.HasOffset = true
		newRow.RawSize = uint64(len(encoded))
		if err := pendingWriter.Append(newRow); err != nil {
			pendingFile.Close()
			return xerrors.Errorf("rebuild %s: writing pending cdx: %w", oldManifest.Slug, err)
		}

		date, err := cdx.ParseDate(newRow.Date)
		if err != nil {
			c.log.Warnw("rebuild: record carries an unparseable cdx date",
				"collection", oldManifest.Slug, "id", newRow.ID, "date", newRow.Date)
		}
		dictIDCopy := newDictID
		if err := idx.InsertRecord(ctx, collUUID, index.Row{
			Date:       date,
			Identifier: newRow.ID,
			Collection: collUUID,
			URL:        newRow.URL,
			Filename:   newRow.Filename,
			Offset:     int64(newRow.Offset),
			Size:       int64(newRow.RawSize),
			Type:       newRow.Type,
			Active:     false,
			DictID:     &dictIDCopy,
			DictAlgo:   &algo,
		}); err != nil {
			pendingFile.Close()
			return xerrors.Errorf("rebuild %s: inserting index row: %w", oldManifest.Slug, err)
		}
	}

	if err := pendingFile.Close(); err != nil {
		return xerrors.Errorf("rebuild %s: closing pending cdx: %w", oldManifest.Slug, err)
	}

	// 7. Commit.
	// 7a. Flip on the new rows, then delete every row that is not theirs.
	// Order matters: a crash between these two leaves both readable, never
	// neither. The sweep covers the uncompressed case too, where the old
	// rows carry no dictionary metadata at all and a delete keyed on the
	// old (dict_id, algo) pair could never match them.
	if err := idx.ActivateRecords(ctx, collUUID, newDictID, algo); err != nil {
		return xerrors.Errorf("rebuild %s: activating new records: %w", oldManifest.Slug, err)
	}
	if err := idx.DeleteRecordsExcept(ctx, collUUID, newDictID, algo); err != nil {
		return xerrors.Errorf("rebuild %s: deleting old records: %w", oldManifest.Slug, err)
	}

	// 7b. Write the new manifest.
	newManifest := oldManifest
	newManifest.Compression = strPtr("zstd")
	newManifest.DictID = &newDictID
	if err := SaveManifest(filepath.Join(c.dir, "manifest.json"), newManifest); err != nil {
		return xerrors.Errorf("rebuild %s: writing new manifest: %w", oldManifest.Slug, err)
	}
	c.mu.Lock()
	c.manifest = newManifest
	c.mu.Unlock()

	// 7c. Delete old segments in sequence N=1,2,..., stopping at the first
	// missing N (spec.md §9 weakness 3 notes this can leak a gap left by a
	// prior aborted rebuild; accepted here, same as the source).
	for n := 1; ; n++ {
		oldName := segmentName(oldManifest, n)
		oldPath := filepath.Join(c.dir, oldName)
		if _, statErr := os.Stat(oldPath); statErr != nil {
			break
		}
		if err := c.fm.Unmanage(oldPath); err != nil {
			c.log.Warnw("rebuild: failed to unmanage old segment", "path", oldPath, "error", err)
		}
		if err := os.Remove(oldPath); err != nil {
			c.log.Warnw("rebuild: failed to remove old segment", "path", oldPath, "error", err)
		}
	}

	// 7d. Invalidate the cached dictionary so the next read picks up the new one.
	c.invalidateDict()

	// 7e. Drop any rotated gzip index; the active CDX is about to replace it.
	gzPath := filepath.Join(c.dir, "index.cdx.gz")
	if err := os.Remove(gzPath); err != nil && !os.IsNotExist(err) {
		c.log.Warnw("rebuild: failed to remove rotated cdx", "path", gzPath, "error", err)
	}

	// 7f. Rename .index.cdx over index.cdx.
	if err := os.Rename(pendingPath, filepath.Join(c.dir, "index.cdx")); err != nil {
		return xerrors.Errorf("rebuild %s: committing new cdx: %w", oldManifest.Slug, err)
	}

	return nil
}

// pendingCDXWriter appends lines to the rebuild's .index.cdx file, which is
// opened create-new (not append-only like cdx.Writer) so Rebuild controls
// its own exclusivity.
type pendingCDXWriter struct {
	f *os.File
}

func (w *pendingCDXWriter) Append(r cdx.Record) error {
	if _, err := w.f.WriteString(r.String() + "\n"); err != nil {
		return xerrors.Errorf("appending pending cdx record: %w", err)
	}
	return nil
}
