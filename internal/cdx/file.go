package cdx

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/warc"
)

// FromWarc builds a Record from a parsed WARC record. Filename/Offset/RawSize
// are left zero-valued; the caller fills them in once the segment write has
// succeeded (see collection.Collection.AddWarc).
func FromWarc(rec *warc.Record) (Record, error) {
	typ, err := rec.Type()
	if err != nil {
		return Record{}, xerrors.Errorf("cdx.FromWarc: %w", err)
	}
	id, err := rec.ID()
	if err != nil {
		return Record{}, xerrors.Errorf("cdx.FromWarc: %w", err)
	}
	date, err := rec.Date()
	if err != nil {
		return Record{}, xerrors.Errorf("cdx.FromWarc: %w", err)
	}
	url, _ := rec.TargetURI()
	return Record{
		URL:  url,
		Type: typ,
		ID:   id,
		Date: FormatDate(date),
	}, nil
}

// Reader iterates over the lines of one or more CDX files in sequence,
// plain or gzip-compressed (selected by the ".gz" extension). It is
// restartable only by calling Open/OpenChain again; it holds no state
// beyond the current read position.
type Reader struct {
	pending []string // files to read after the current one is exhausted
	f       *os.File
	zr      io.ReadCloser
	scn     *bufio.Scanner
}

// Open opens a single CDX file for line-oriented iteration.
func Open(path string) (*Reader, error) {
	return OpenChain(path)
}

// OpenChain opens the given files for iteration in order, skipping paths
// that do not exist. If none exist, the underlying not-exist error is
// returned so callers can distinguish "no index yet" from a read failure.
func OpenChain(paths ...string) (*Reader, error) {
	var existing []string
	var lastErr error
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			lastErr = err
			continue
		}
		existing = append(existing, p)
	}
	if len(existing) == 0 {
		return nil, xerrors.Errorf("opening cdx files %v: %w", paths, lastErr)
	}
	r := &Reader{pending: existing}
	if err := r.advance(); err != nil {
		return nil, err
	}
	return r, nil
}

// advance closes the current file (if any) and opens the next pending one.
func (r *Reader) advance() error {
	r.closeCurrent()
	path := r.pending[0]
	r.pending = r.pending[1:]

	f, err := os.Open(path)
	if err != nil {
		return xerrors.Errorf("opening cdx file %s: %w", path, err)
	}
	var src io.Reader = f
	var zr io.ReadCloser
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return xerrors.Errorf("opening gzip cdx file %s: %w", path, err)
		}
		zr = gz
		src = gz
	}
	r.f, r.zr, r.scn = f, zr, bufio.NewScanner(src)
	return nil
}

// Next returns the next parsed record, or io.EOF once every file in the
// chain is exhausted. Empty trailing lines are skipped.
func (r *Reader) Next() (Record, error) {
	for {
		for r.scn.Scan() {
			line := r.scn.Text()
			if line == "" {
				continue
			}
			rec, err := Parse(line)
			if err != nil {
				return Record{}, xerrors.Errorf("cdx reader: %w", err)
			}
			return rec, nil
		}
		if err := r.scn.Err(); err != nil {
			return Record{}, xerrors.Errorf("cdx reader: %w", err)
		}
		if len(r.pending) == 0 {
			return Record{}, io.EOF
		}
		if err := r.advance(); err != nil {
			return Record{}, err
		}
	}
}

func (r *Reader) closeCurrent() {
	if r.zr != nil {
		r.zr.Close()
		r.zr = nil
	}
	if r.f != nil {
		r.f.Close()
		r.f = nil
	}
}

// Close releases the underlying file (and gzip reader, if any).
func (r *Reader) Close() error {
	r.closeCurrent()
	return nil
}

// Writer appends CDX lines to an append-only file.
type Writer struct {
	f *os.File
}

// OpenWriter opens (creating if necessary) path for line-oriented append.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, xerrors.Errorf("opening cdx file for append %s: %w", path, err)
	}
	return &Writer{f: f}, nil
}

// Append writes one CDX line followed by a newline.
func (w *Writer) Append(r Record) error {
	if _, err := w.f.WriteString(r.String() + "\n"); err != nil {
		return xerrors.Errorf("appending cdx record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// RotateToGzip reads plain-text CDX lines from src and writes a
// gzip-compressed copy to dst using a parallel gzip writer (pgzip), since
// a rotated index.cdx.gz can grow to cover an entire collection's history.
func RotateToGzip(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return xerrors.Errorf("opening %s for rotation: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return xerrors.Errorf("creating %s: %w", dstPath, err)
	}
	zw := pgzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		return xerrors.Errorf("compressing %s: %w", srcPath, err)
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return xerrors.Errorf("flushing gzip writer: %w", err)
	}
	return dst.Close()
}
