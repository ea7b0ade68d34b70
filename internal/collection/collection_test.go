package collection

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/5IGI0/Masstuffy/internal/dictstore"
	"github.com/5IGI0/Masstuffy/internal/filemanager"
	"github.com/5IGI0/Masstuffy/internal/index"
	"github.com/5IGI0/Masstuffy/internal/warc"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// writeTestDict writes a raw-content dictionary file: no RFC 8878 magic,
// arbitrary history bytes, the id self-described at [4,8) as for every
// dictionary in the store.
func writeTestDict(t *testing.T, dir string, id uint32) {
	t.Helper()
	content := make([]byte, 256)
	for i := range content {
		content[i] = byte(i)
	}
	binary.LittleEndian.PutUint32(content[4:8], id)
	name := dictstore.FileName("test", id)
	if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
		t.Fatalf("writing test dictionary: %v", err)
	}
}

func newUncompressedCollection(t *testing.T, splitThreshold uint64) (*Collection, *filemanager.Manager) {
	t.Helper()
	dir := t.TempDir()
	fm := filemanager.New()
	dictDir := t.TempDir()
	ds, err := dictstore.Open(dictDir, testLogger())
	if err != nil {
		t.Fatalf("dictstore.Open: %v", err)
	}

	m := Manifest{
		UUID:           uuid.New().String(),
		Slug:           "test-collection",
		SplitThreshold: splitThreshold,
	}
	if err := SaveManifest(filepath.Join(dir, "manifest.json"), m); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	c, err := Open(dir, fm, ds, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c, fm
}

func newCompressedCollection(t *testing.T, dictID uint32) *Collection {
	t.Helper()
	dir := t.TempDir()
	fm := filemanager.New()
	dictDir := t.TempDir()
	writeTestDict(t, dictDir, dictID)
	ds, err := dictstore.Open(dictDir, testLogger())
	if err != nil {
		t.Fatalf("dictstore.Open: %v", err)
	}

	comp := "zstd"
	m := Manifest{
		UUID:           uuid.New().String(),
		Slug:           "test-collection-compressed",
		Compression:    &comp,
		DictID:         &dictID,
		SplitThreshold: DefaultSplitThreshold,
	}
	if err := SaveManifest(filepath.Join(dir, "manifest.json"), m); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	c, err := Open(dir, fm, ds, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c
}

func makeRecord(t *testing.T, uri, body string) *warc.Record {
	t.Helper()
	rec := warc.NewRecord("resource")
	rec.SetHeader("WARC-Target-URI", uri)
	rec.Body = []byte(body)
	return rec
}

// S1: round-trip one record through an uncompressed collection.
func TestAddAndGetRecordUncompressed(t *testing.T) {
	c, _ := newUncompressedCollection(t, DefaultSplitThreshold)
	ctx := context.Background()

	rec := makeRecord(t, "http://example.com/", "hello world")
	row, err := c.AddWarc(ctx, rec)
	if err != nil {
		t.Fatalf("AddWarc: %v", err)
	}

	got, err := c.GetRecord(ctx, row.Filename, row.Offset)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if string(got.Body) != "hello world" {
		t.Errorf("Body = %q, want %q", got.Body, "hello world")
	}
	gotID, _ := got.ID()
	wantID, _ := rec.ID()
	if gotID != wantID {
		t.Errorf("ID = %q, want %q", gotID, wantID)
	}
}

// S1 variant: round-trip one record through a compressed collection, with
// a streaming decoder positioned at a mid-segment offset.
func TestAddAndGetRecordCompressed(t *testing.T) {
	c := newCompressedCollection(t, 40000)
	ctx := context.Background()

	first, err := c.AddWarc(ctx, makeRecord(t, "http://example.com/a", "first body"))
	if err != nil {
		t.Fatalf("AddWarc first: %v", err)
	}
	second, err := c.AddWarc(ctx, makeRecord(t, "http://example.com/b", "second body, a little longer"))
	if err != nil {
		t.Fatalf("AddWarc second: %v", err)
	}

	got1, err := c.GetRecord(ctx, first.Filename, first.Offset)
	if err != nil {
		t.Fatalf("GetRecord first: %v", err)
	}
	if string(got1.Body) != "first body" {
		t.Errorf("first body = %q", got1.Body)
	}

	got2, err := c.GetRecord(ctx, second.Filename, second.Offset)
	if err != nil {
		t.Fatalf("GetRecord second: %v", err)
	}
	if string(got2.Body) != "second body, a little longer" {
		t.Errorf("second body = %q", got2.Body)
	}
}

// Invariant 7 / S2: no segment exceeds split_threshold by more than one
// record; once a segment would overflow, the next append lands in a new
// segment file.
func TestSegmentSplit(t *testing.T) {
	// Small enough that a handful of records force at least one split.
	c, fm := newUncompressedCollection(t, 200)
	ctx := context.Background()

	var rows []struct {
		name string
	}
	for i := 0; i < 10; i++ {
		row, err := c.AddWarc(ctx, makeRecord(t, fmt.Sprintf("http://example.com/%d", i), "0123456789"))
		if err != nil {
			t.Fatalf("AddWarc %d: %v", i, err)
		}
		rows = append(rows, struct{ name string }{row.Filename})
	}

	seen := map[string]bool{}
	for _, r := range rows {
		seen[r.name] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected records to span at least 2 segments, got names %v", seen)
	}

	for name := range seen {
		size, ok, err := fm.FileSize(filepath.Join(c.dir, name))
		if err != nil || !ok {
			t.Fatalf("FileSize(%s): %v, ok=%v", name, err, ok)
		}
		// Each segment may exceed the threshold by at most the last
		// record's size; every record here serializes to about 200 bytes,
		// so a segment holds one record and stays under threshold + 128.
		if size > 200+128 {
			t.Errorf("segment %s grew to %d bytes, want <= %d", name, size, 200+128)
		}
	}
}

// S5: rebuild from uncompressed to a new Zstd dictionary preserves every
// record's content and swaps the manifest and segment layout.
func TestRebuildPreservesContent(t *testing.T) {
	c, _ := newUncompressedCollection(t, DefaultSplitThreshold)
	ctx := context.Background()
	idx := newFakeIndex()

	const n = 25
	type origRecord struct {
		id   string
		body string
	}
	var originals []origRecord
	for i := 0; i < n; i++ {
		rec := makeRecord(t, fmt.Sprintf("http://example.com/%d", i), fmt.Sprintf("payload-%d", i))
		id, _ := rec.ID()
		if _, err := c.AddWarc(ctx, rec); err != nil {
			t.Fatalf("AddWarc %d: %v", i, err)
		}
		// Mirror the row the way the filesystem root's ingest path does
		// for an uncompressed collection: active, no dictionary metadata.
		idx.InsertRecord(ctx, c.Manifest().UUID, index.Row{
			Identifier: id,
			Active:     true,
		})
		originals = append(originals, origRecord{id: id, body: fmt.Sprintf("payload-%d", i)})
	}

	dictDir := t.TempDir()
	writeTestDict(t, dictDir, 50000)
	ds2, err := dictstore.Open(dictDir, testLogger())
	if err != nil {
		t.Fatalf("dictstore.Open: %v", err)
	}
	c.ds = ds2

	if err := c.Rebuild(ctx, 50000, idx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	m := c.Manifest()
	if m.Compression == nil || *m.Compression != "zstd" {
		t.Fatalf("manifest.Compression = %v, want zstd", m.Compression)
	}
	if m.DictID == nil || *m.DictID != 50000 {
		t.Fatalf("manifest.DictID = %v, want 50000", m.DictID)
	}
	if _, err := os.Stat(filepath.Join(c.dir, "records.1.warc")); !os.IsNotExist(err) {
		t.Errorf("old segment records.1.warc should have been removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.dir, "records.1.50000.warc.zstd")); err != nil {
		t.Errorf("expected new segment records.1.50000.warc.zstd to exist: %v", err)
	}

	// The old uncompressed rows (no dictionary metadata) must be swept at
	// commit; only the new dictionary's rows survive, all active.
	if got := idx.rowCount(c.Manifest().UUID); got != n {
		t.Errorf("index rows after rebuild = %d, want %d (stale dict-less rows must be swept)", got, n)
	}
	if got := idx.countForDict(c.Manifest().UUID, 50000); got != n {
		t.Errorf("index rows for new dict = %d, want %d", got, n)
	}
	if got := idx.activeCount(c.Manifest().UUID); got != n {
		t.Errorf("active index rows = %d, want %d", got, n)
	}

	cr, err := c.IterCDX()
	if err != nil {
		t.Fatalf("IterCDX: %v", err)
	}
	defer cr.Close()

	found := map[string]bool{}
	for {
		row, err := cr.Next()
		if err != nil {
			break
		}
		rec, err := c.GetRecord(ctx, row.Filename, row.Offset)
		if err != nil {
			t.Fatalf("GetRecord(%s, %d): %v", row.Filename, row.Offset, err)
		}
		found[row.ID] = true
		var want string
		for _, o := range originals {
			if o.id == row.ID {
				want = o.body
			}
		}
		if string(rec.Body) != want {
			t.Errorf("record %s body = %q, want %q", row.ID, rec.Body, want)
		}
	}
	if len(found) != n {
		t.Errorf("found %d records after rebuild, want %d", len(found), n)
	}
}

// S6: re-running rebuild after a simulated crash (stale pending CDX and
// stale inactive index rows left over from an interrupted attempt at the
// same new dictionary) completes without duplicating records in the
// external index, per spec.md §4.6 step 3's cleanup guarantee.
func TestRebuildRecovery(t *testing.T) {
	c, _ := newUncompressedCollection(t, DefaultSplitThreshold)
	ctx := context.Background()
	idx := newFakeIndex()

	const n = 10
	const newDictID = uint32(60000)
	for i := 0; i < n; i++ {
		rec := makeRecord(t, fmt.Sprintf("http://example.com/%d", i), fmt.Sprintf("payload-%d", i))
		if _, err := c.AddWarc(ctx, rec); err != nil {
			t.Fatalf("AddWarc %d: %v", i, err)
		}
	}

	dictDir := t.TempDir()
	writeTestDict(t, dictDir, newDictID)
	ds2, err := dictstore.Open(dictDir, testLogger())
	if err != nil {
		t.Fatalf("dictstore.Open: %v", err)
	}
	c.ds = ds2

	// Simulate a process killed mid-rebuild: the new output segment and
	// the pending CDX exist, and the index holds a handful of stale,
	// never-activated rows for the same new dictionary.
	stalePending := filepath.Join(c.dir, ".index.cdx")
	if err := os.WriteFile(stalePending, []byte("stale partial line\n"), 0644); err != nil {
		t.Fatalf("writing stale pending cdx: %v", err)
	}
	staleSegment := filepath.Join(c.dir, fmt.Sprintf("records.1.%d.warc.zstd", newDictID))
	if err := os.WriteFile(staleSegment, []byte("partial zstd frame"), 0644); err != nil {
		t.Fatalf("writing stale output segment: %v", err)
	}
	staleDictID := newDictID
	staleAlgo := "zstd"
	for i := 0; i < 3; i++ {
		idx.InsertRecord(ctx, c.Manifest().UUID, index.Row{
			Identifier: fmt.Sprintf("stale-%d", i),
			DictID:     &staleDictID,
			DictAlgo:   &staleAlgo,
		})
	}

	if err := c.Rebuild(ctx, newDictID, idx); err != nil {
		t.Fatalf("Rebuild after simulated crash: %v", err)
	}

	if got := idx.countForDict(c.Manifest().UUID, newDictID); got != n {
		t.Errorf("index rows for new dict = %d, want %d (stale rows must not survive)", got, n)
	}
	if got := idx.activeCount(c.Manifest().UUID); got != n {
		t.Errorf("active index rows = %d, want %d", got, n)
	}

	if _, err := os.Stat(stalePending); !os.IsNotExist(err) {
		t.Errorf(".index.cdx should have been renamed away, stat err = %v", err)
	}

	cr, err := c.IterCDX()
	if err != nil {
		t.Fatalf("IterCDX: %v", err)
	}
	defer cr.Close()
	count := 0
	for {
		row, err := cr.Next()
		if err != nil {
			break
		}
		// Every row must decode cleanly: the stale partial segment from the
		// interrupted attempt must have been replaced, not appended to.
		if _, err := c.GetRecord(ctx, row.Filename, row.Offset); err != nil {
			t.Errorf("GetRecord(%s, %d) after recovery: %v", row.Filename, row.Offset, err)
		}
		count++
	}
	if count != n {
		t.Errorf("records readable after recovery = %d, want %d", count, n)
	}
}
