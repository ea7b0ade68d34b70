// Package collection implements Masstuffy's core storage engine: a
// collection is an append-only, segmented sequence of WARC records covered
// by a flat CDX index and an optional shared Zstd dictionary.
package collection

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/cdx"
	"github.com/5IGI0/Masstuffy/internal/dictstore"
	"github.com/5IGI0/Masstuffy/internal/filemanager"
	"github.com/5IGI0/Masstuffy/internal/warc"
)

// ErrNotFound is returned when a requested record cannot be located.
var ErrNotFound = xerrors.New("record not found")

// Collection owns one collection's manifest, its segment files, its CDX
// index and a lazily-loaded, shared dictionary. The file manager and
// dictionary store are shared process-wide across every Collection.
type Collection struct {
	dir string
	fm  *filemanager.Manager
	ds  *dictstore.Store
	log *zap.SugaredLogger

	mu       sync.RWMutex // guards manifest (swapped wholesale by Rebuild)
	manifest Manifest

	currentSegmentID int64 // atomic hint, see selectSegment

	dictMu    sync.Mutex
	dictBytes []byte // nil until first compressed I/O
	dictID    uint32 // valid iff dictBytes != nil
}

// Open loads dir/manifest.json and wires a Collection to the shared file
// manager and dictionary store. Invariant 3: if the manifest specifies
// compression, the referenced dictionary must already exist in ds.
func Open(dir string, fm *filemanager.Manager, ds *dictstore.Store, log *zap.SugaredLogger) (*Collection, error) {
	m, err := LoadManifest(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, err
	}
	if m.DictID != nil && !ds.Has(*m.DictID) {
		return nil, xerrors.Errorf("collection %s: missing dictionary %d", m.Slug, *m.DictID)
	}
	return &Collection{
		dir:              dir,
		fm:               fm,
		ds:               ds,
		log:              log,
		manifest:         m,
		currentSegmentID: 1,
	}, nil
}

// Manifest returns a copy of the current manifest.
func (c *Collection) Manifest() Manifest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manifest
}

// segmentName renders segment N's filename for manifest m.
func segmentName(m Manifest, n int) string {
	if m.Compression == nil {
		return fmt.Sprintf("records.%d.warc", n)
	}
	return fmt.Sprintf("records.%d.%d.warc.zstd", n, *m.DictID)
}

func (c *Collection) segmentPath(name string) string {
	return filepath.Join(c.dir, name)
}

// loadDict returns the manifest's dictionary bytes, loading and caching
// them on first compressed I/O. Returns (nil, nil) for an uncompressed
// collection.
func (c *Collection) loadDict() ([]byte, error) {
	c.mu.RLock()
	dictID := c.manifest.DictID
	c.mu.RUnlock()
	if dictID == nil {
		return nil, nil
	}

	c.dictMu.Lock()
	defer c.dictMu.Unlock()
	if c.dictBytes != nil && c.dictID == *dictID {
		return c.dictBytes, nil
	}
	b, err := c.ds.Get(*dictID)
	if err != nil {
		return nil, xerrors.Errorf("loading dictionary for collection %s: %w", c.manifest.Slug, err)
	}
	c.dictBytes = b
	c.dictID = *dictID
	return b, nil
}

// invalidateDict drops the cached dictionary, forcing the next read to
// reload (used after Rebuild swaps the manifest's dict_id).
func (c *Collection) invalidateDict() {
	c.dictMu.Lock()
	c.dictBytes = nil
	c.dictMu.Unlock()
}

// selectSegment finds a segment with room for incomingBytes more bytes,
// starting at the currentSegmentID hint. It is idempotent: it only reads
// sizes and opens no segment unnecessarily, so two racing appenders can
// each re-run it safely (spec.md §5, ordering guarantee 2).
func (c *Collection) selectSegment(m Manifest, incomingBytes int64) (name string, n int, err error) {
	n = int(atomic.LoadInt64(&c.currentSegmentID))
	if n < 1 {
		n = 1
	}
	for {
		name = segmentName(m, n)
		size, exists, err := c.fm.FileSize(c.segmentPath(name))
		if err != nil {
			return "", 0, err
		}
		if !exists {
			break
		}
		if size+incomingBytes < int64(m.SplitThreshold) {
			break
		}
		n++
	}
	atomic.StoreInt64(&c.currentSegmentID, int64(n))
	return name, n, nil
}

// encodeForStorage serializes and, if the collection is compressed,
// Zstd-encodes rec.
func (c *Collection) encodeForStorage(rec *warc.Record) ([]byte, error) {
	raw := rec.Serialize()
	m := c.Manifest()
	if m.Compression == nil {
		return raw, nil
	}
	dict, err := c.loadDict()
	if err != nil {
		return nil, err
	}
	return encodeZstd(raw, dict, levelFromManifest(m.Level))
}

// AddWarc serializes, optionally compresses, and appends rec to the active
// segment, then emits its CDX row.
func (c *Collection) AddWarc(ctx context.Context, rec *warc.Record) (cdx.Record, error) {
	encoded, err := c.encodeForStorage(rec)
	if err != nil {
		return cdx.Record{}, err
	}
	row, err := cdx.FromWarc(rec)
	if err != nil {
		return cdx.Record{}, err
	}
	row.RawSize = uint64(len(encoded))
	rows := []cdx.Record{row}
	if err := c.AddRawWarcs(ctx, encoded, rows); err != nil {
		return cdx.Record{}, err
	}
	return rows[0], nil
}

// WriteInfoRecord appends rec to the active segment without emitting a CDX
// row or touching the external index. It exists for the collection's first,
// self-describing warcinfo record, which is part of the segment stream but
// is not addressable through the index.
func (c *Collection) WriteInfoRecord(ctx context.Context, rec *warc.Record) error {
	encoded, err := c.encodeForStorage(rec)
	if err != nil {
		return err
	}
	m := c.Manifest()
	name, _, err := c.selectSegment(m, int64(len(encoded)))
	if err != nil {
		return err
	}
	if _, err := c.fm.Append(c.segmentPath(name), encoded); err != nil {
		return err
	}
	return nil
}

// AddRawWarcs appends a single already-encoded byte blob (the
// concatenation of one or more already-serialized, already-compressed
// records) to the active segment in one call, then fills in and writes a
// CDX row for each entry in rows in order. rows[i].RawSize must already be
// set to the byte length of the i-th record within raw; rows is mutated
// in place with Filename/Offset.
func (c *Collection) AddRawWarcs(ctx context.Context, raw []byte, rows []cdx.Record) error {
	if len(raw) == 0 || len(rows) == 0 {
		return nil
	}
	m := c.Manifest()
	name, _, err := c.selectSegment(m, int64(len(raw)))
	if err != nil {
		return err
	}

	base, err := c.fm.Append(c.segmentPath(name), raw)
	if err != nil {
		return err
	}

	cdxWriter, err := cdx.OpenWriter(filepath.Join(c.dir, "index.cdx"))
	if err != nil {
		return err
	}
	defer cdxWriter.Close()

	running := uint64(base)
	for i := range rows {
		rows[i].Filename = name
		rows[i].Offset = running
		rows[i].HasOffset = true
		running += rows[i].RawSize
		if err := cdxWriter.Append(rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetRecord fetches and decodes the record at (filename, offset). It
// returns ErrNotFound only if the reader finds EOF before a record header.
func (c *Collection) GetRecord(ctx context.Context, filename string, offset uint64) (*warc.Record, error) {
	m := c.Manifest()
	path := c.segmentPath(filename)

	if m.Compression == nil {
		h, err := c.fm.GetFile(path)
		if err != nil {
			return nil, err
		}
		defer h.Release()
		sr := h.SectionReader(int64(offset))
		rec, err := warc.ReadRecord(bufio.NewReader(sr))
		if err != nil {
			return nil, xerrors.Errorf("reading record at %s:%d: %w", filename, offset, err)
		}
		if rec == nil {
			return nil, ErrNotFound
		}
		return rec, nil
	}

	dict, err := c.loadDict()
	if err != nil {
		return nil, err
	}
	h, err := c.fm.GetFile(path)
	if err != nil {
		return nil, err
	}
	defer h.Release()
	sr := h.SectionReader(int64(offset))
	dec, err := zstdStreamDecoder(sr, dict)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	rec, err := warc.ReadRecord(bufio.NewReader(dec))
	if err != nil {
		return nil, xerrors.Errorf("reading compressed record at %s:%d: %w", filename, offset, err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// GetRawRecord reads exactly size bytes at (filename, offset) without
// decompression, for server-side passthrough of the on-disk bytes.
func (c *Collection) GetRawRecord(ctx context.Context, filename string, offset, size uint64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := c.fm.ReadAt(c.segmentPath(filename), int64(offset), buf)
	if err != nil {
		return nil, xerrors.Errorf("reading raw record at %s:%d: %w", filename, offset, err)
	}
	return buf[:n], nil
}

// IterCDX opens the collection's CDX index for iteration: the gzip-rotated
// part first (if present), then the active index.cdx, so rotated rows are
// never hidden from readers. The returned reader is restartable only by
// calling IterCDX again.
func (c *Collection) IterCDX() (*cdx.Reader, error) {
	path := filepath.Join(c.dir, "index.cdx")
	return cdx.OpenChain(path+".gz", path)
}

// RotateCDX compresses the active index.cdx into index.cdx.gz and removes
// the plain file; subsequent appends start a fresh index.cdx. The rotated
// rows stay visible through IterCDX's chain. Only one rotation can be
// outstanding; a rebuild consolidates everything back into a single
// index.cdx. Callers must quiesce appends for the duration.
func (c *Collection) RotateCDX() error {
	plain := filepath.Join(c.dir, "index.cdx")
	gz := plain + ".gz"
	if _, err := os.Stat(gz); err == nil {
		return xerrors.Errorf("collection %s: cdx already rotated", c.Manifest().Slug)
	}
	if err := cdx.RotateToGzip(plain, gz); err != nil {
		return err
	}
	if err := os.Remove(plain); err != nil {
		return xerrors.Errorf("removing rotated cdx: %w", err)
	}
	return nil
}

// Delete removes the collection's entire directory tree. The caller
// (reposvc.Root) is responsible for dropping the collection from its maps
// and deleting its external index rows.
func (c *Collection) Delete() error {
	return os.RemoveAll(c.dir)
}
