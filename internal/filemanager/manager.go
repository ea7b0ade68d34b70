// Package filemanager implements a process-wide cache of append-open file
// handles with cached end-of-file sizes, shared by every collection so that
// appends are cheap: a stat before every write is measurable overhead once a
// collection has many segments, and caching end-of-file sizes turns "find
// the first segment with room" into an O(1) check plus a single open on
// cold start.
//
// Grounded on distr1-distri's internal/fuse package, which caches one
// *io.SectionReader per open inode behind a single mutex
// (fileReadersMu/fileReaders); this generalizes that idea from per-inode to
// per-path, adding a per-entry mutex and a cached file size.
package filemanager

import (
	"io"
	"os"
	"sync"

	"golang.org/x/xerrors"
)

type entry struct {
	mu   sync.Mutex
	f    *os.File
	size int64
	// haveSize is false until a stat or append has established the size;
	// "negative" (i.e. known-absent) files are cached with haveSize=true and
	// f==nil.
	haveSize bool
	exists   bool
}

// Manager is a process-wide cache from absolute path to an open read/write
// handle (the file is created only by Append) and its cached end-of-file size.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

func (m *Manager) entryFor(path string) *entry {
	m.mu.RLock()
	e, ok := m.entries[path]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[path]; ok {
		return e
	}
	e = &entry{}
	m.entries[path] = e
	return e
}

// openLocked opens the handle for e, populated with its current size.
// Only the append path may create the file: a read against a missing
// segment must fail rather than leave a fresh zero-byte file behind.
// e.mu must be held.
func (e *entry) openLocked(path string, create bool) error {
	if e.f != nil {
		return nil
	}
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return xerrors.Errorf("opening %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return xerrors.Errorf("stat %s: %w", path, err)
	}
	e.f = f
	e.size = fi.Size()
	e.haveSize = true
	e.exists = true
	return nil
}

// ReadAt reads len(buf) bytes from path at offset, opening the cached
// handle on a miss. Two concurrent ReadAt calls on the same path do not run
// in parallel: a single handle is shared and serialized by a per-entry
// mutex, so seeks stay correct but throughput on one segment is
// effectively sequential.
func (m *Manager) ReadAt(path string, offset int64, buf []byte) (int, error) {
	e := m.entryFor(path)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.openLocked(path, false); err != nil {
		return 0, err
	}
	n, err := e.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return n, xerrors.Errorf("reading %s at %d: %w", path, offset, err)
	}
	return n, err
}

// Handle is a shared, mutexed file handle positioned by the caller. It is
// used by callers (e.g. the Zstd streaming decoder) that need to
// seek-then-stream-read rather than a single ReadAt.
type Handle struct {
	e    *entry
	path string
}

// GetFile returns a shared handle guard for path, opening it on a miss. The
// caller must call Release when done; while held, no other caller can use
// the handle (same per-path mutex as ReadAt/Append).
func (m *Manager) GetFile(path string) (*Handle, error) {
	e := m.entryFor(path)
	e.mu.Lock()
	if err := e.openLocked(path, false); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	return &Handle{e: e, path: path}, nil
}

// SectionReader returns an io.SectionReader over the handle's file starting
// at offset, for exactly one record's worth of streaming reads.
func (h *Handle) SectionReader(offset int64) *io.SectionReader {
	return io.NewSectionReader(h.e.f, offset, h.e.size-offset)
}

// File returns the underlying *os.File, for callers that need raw
// ReadAt/Seek access while holding the handle.
func (h *Handle) File() *os.File {
	return h.e.f
}

// Release unlocks the handle, allowing other callers to use the path again.
// Callers must not hold a Handle across a long-running operation; doing so
// starves appends to that path.
func (h *Handle) Release() {
	h.e.mu.Unlock()
}

// Append writes b to the end of path, returning the offset at which the
// bytes now reside (i.e. the pre-append size). The write is followed by a
// flush so that readers sharing the handle observe the new bytes
// immediately.
func (m *Manager) Append(path string, b []byte) (int64, error) {
	e := m.entryFor(path)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.openLocked(path, true); err != nil {
		return 0, err
	}
	offset := e.size
	n, err := e.f.WriteAt(b, offset)
	if err != nil {
		return 0, xerrors.Errorf("appending to %s: %w", path, err)
	}
	if err := e.f.Sync(); err != nil {
		return 0, xerrors.Errorf("flushing %s: %w", path, err)
	}
	e.size += int64(n)
	return offset, nil
}

// FileSize returns the cached size of path, or ok=false if the path is
// known not to exist. On a cache miss it stats the file (caching either
// result, including absence).
func (m *Manager) FileSize(path string) (size int64, ok bool, err error) {
	e := m.entryFor(path)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.haveSize {
		return e.size, e.exists, nil
	}
	fi, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			e.haveSize = true
			e.exists = false
			return 0, false, nil
		}
		return 0, false, xerrors.Errorf("stat %s: %w", path, statErr)
	}
	e.haveSize = true
	e.exists = true
	e.size = fi.Size()
	return e.size, true, nil
}

// Unmanage drops the cached handle for path, closing it if open. It must be
// called before deleting a file the manager has touched, since an unlinked
// file whose descriptor is still cached leaks the handle until process
// exit on platforms where unlinked-but-open files remain live.
func (m *Manager) Unmanage(path string) error {
	m.mu.Lock()
	e, ok := m.entries[path]
	if ok {
		delete(m.entries, path)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f != nil {
		if err := e.f.Close(); err != nil {
			return xerrors.Errorf("closing %s: %w", path, err)
		}
		e.f = nil
	}
	return nil
}
