package reposvc

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/5IGI0/Masstuffy/internal/warc"
	masstuffy "github.com/5IGI0/Masstuffy"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func newTestRoot(t *testing.T) *Root {
	t.Helper()
	dir := t.TempDir()
	if err := InitFS(dir, DefaultConfig()); err != nil {
		t.Fatalf("InitFS: %v", err)
	}
	r, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r
}

func TestCreateCollectionSlugUniqueness(t *testing.T) {
	r := newTestRoot(t)
	if _, err := r.CreateCollection(context.Background(), "x", nil, nil, 0, 0); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if _, err := r.CreateCollection(context.Background(), "x", nil, nil, 0, 0); err != ErrSlugTaken {
		t.Fatalf("CreateCollection duplicate slug: got %v, want ErrSlugTaken", err)
	}
}

func TestCreateCollectionVisibleByBothMaps(t *testing.T) {
	r := newTestRoot(t)
	c, err := r.CreateCollection(context.Background(), "y", nil, nil, 0, 0)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	m := c.Manifest()

	bySlug, err := r.GetBySlug("y")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	byUUID, err := r.GetByUUID(m.UUID)
	if err != nil {
		t.Fatalf("GetByUUID: %v", err)
	}
	if bySlug != byUUID {
		t.Error("slug map and uuid map hold different Collection instances for the same collection")
	}
}

func TestCreateCollectionSeedsWarcinfo(t *testing.T) {
	r := newTestRoot(t)
	c, err := r.CreateCollection(context.Background(), "seeded", nil, nil, 0, 0)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	m := c.Manifest()

	f, err := os.Open(filepath.Join(r.path, repositoryDir, m.UUID, "records.1.warc"))
	if err != nil {
		t.Fatalf("opening first segment: %v", err)
	}
	defer f.Close()

	rec, err := warc.ReadRecord(bufio.NewReader(f))
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	typ, err := rec.Type()
	if err != nil || typ != "warcinfo" {
		t.Errorf("first record type = %q (%v), want warcinfo", typ, err)
	}
	if !strings.Contains(string(rec.Body), `"slug":"seeded"`) {
		t.Errorf("warcinfo body does not self-describe the collection: %q", rec.Body)
	}

	// The warcinfo record is part of the segment stream but not of the CDX
	// index: a fresh collection's CDX is empty.
	cr, err := c.IterCDX()
	if err == nil {
		defer cr.Close()
		if _, err := cr.Next(); err == nil {
			t.Error("fresh collection's CDX should hold no rows")
		}
	}
}

func TestGetBufferPathRejectsTraversal(t *testing.T) {
	r := newTestRoot(t)
	for _, bad := range []string{"../escape", "a/b", "..", ""} {
		if _, _, err := r.GetBufferPath(bad, true); err == nil {
			t.Errorf("GetBufferPath(%q) accepted an invalid name", bad)
		}
	}

	path, existed, err := r.GetBufferPath("train-1", true)
	if err != nil {
		t.Fatalf("GetBufferPath: %v", err)
	}
	if existed {
		t.Error("freshly created buffer dir reported as already existing")
	}
	if filepath.Base(path) != "train-1" {
		t.Errorf("GetBufferPath returned %q, want basename train-1", path)
	}

	_, existed, err = r.GetBufferPath("train-1", false)
	if err != nil {
		t.Fatalf("GetBufferPath second call: %v", err)
	}
	if !existed {
		t.Error("second GetBufferPath call did not report the directory as existing")
	}
}

func TestAllocateDictIDAvoidsReservedRanges(t *testing.T) {
	r := newTestRoot(t)
	id, err := r.AllocateDictID(5) // inside the low reserved range
	if err != nil {
		t.Fatalf("AllocateDictID: %v", err)
	}
	if masstuffy.IsReservedDictID(id) {
		t.Errorf("AllocateDictID returned a reserved id %d", id)
	}

	id2, err := r.AllocateDictID(70000) // already outside reserved ranges, unused
	if err != nil {
		t.Fatalf("AllocateDictID: %v", err)
	}
	if id2 != 70000 {
		t.Errorf("AllocateDictID(70000) = %d, want 70000 unchanged (already free and unreserved)", id2)
	}
}

func TestDeleteCollectionRemovesBothMapEntries(t *testing.T) {
	r := newTestRoot(t)
	c, err := r.CreateCollection(context.Background(), "z", nil, nil, 0, 0)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	m := c.Manifest()

	if err := r.DeleteCollection(context.Background(), "z", nil); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if _, err := r.GetBySlug("z"); err != ErrNotFound {
		t.Errorf("GetBySlug after delete: got %v, want ErrNotFound", err)
	}
	if _, err := r.GetByUUID(m.UUID); err != ErrNotFound {
		t.Errorf("GetByUUID after delete: got %v, want ErrNotFound", err)
	}
}
