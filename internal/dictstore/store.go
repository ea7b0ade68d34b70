// Package dictstore implements a directory-backed registry of Zstd
// dictionaries, addressed by the 32-bit dictionary id self-described at
// bytes [4,8) of each dictionary's raw content. Dictionaries are large (up
// to a few MB) and are hot-path data for every read/write of a compressed
// collection, so loaded bytes are cached and shared; the cache must survive
// a hot-add triggered by the "generate_dict" workflow (Reload).
//
// Grounded directly on the original Rust implementation's DictStore
// (src/filesystem/dict_store.rs): a registry RWMutex guarding a
// map[id]->path, and a per-entry mutex guarding the lazily-loaded,
// reference-counted bytes.
package dictstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// ErrUnknownDict is returned when a requested dictionary id is not
// registered.
var ErrUnknownDict = xerrors.New("unknown dictionary id")

type dictEntry struct {
	path string

	mu    sync.Mutex
	bytes []byte // nil until first Get
}

// Store is a directory-backed, concurrency-safe dictionary registry.
type Store struct {
	dir   string
	log   *zap.SugaredLogger
	regMu sync.RWMutex
	byID  map[uint32]*dictEntry
}

// Open scans dir (expected to hold files named "<label>.<id>.zstdict") and
// builds the initial registry.
func Open(dir string, log *zap.SugaredLogger) (*Store, error) {
	s := &Store{dir: dir, log: log, byID: make(map[uint32]*dictEntry)}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rescans the directory, registering any new dictionaries. Duplicate
// ids pointing at different paths are fatal; malformed filenames are
// skipped with a warning. Safe to call concurrently with readers.
func (s *Store) Reload() ([]uint32, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, xerrors.Errorf("reading dictionary directory %s: %w", s.dir, err)
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()

	var added []uint32
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		parts := strings.Split(name, ".")
		if len(parts) != 3 {
			s.log.Warnw("invalid dictionary filename, ignored", "filename", name)
			continue
		}
		id64, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			s.log.Warnw("invalid dictionary id in filename, ignored", "filename", name, "error", err)
			continue
		}
		id := uint32(id64)
		path := filepath.Join(s.dir, name)

		if existing, ok := s.byID[id]; ok {
			if existing.path != path {
				return nil, xerrors.Errorf("duplicate dictionary id %d: %s and %s", id, existing.path, path)
			}
			continue
		}
		s.byID[id] = &dictEntry{path: path}
		added = append(added, id)
		s.log.Debugw("dictionary found", "id", id, "label", parts[0])
	}
	return added, nil
}

// Has reports whether id is a registered dictionary.
func (s *Store) Has(id uint32) bool {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// Get returns the dictionary's bytes, loading and caching them on first
// access. Readers after the first pay no disk cost.
func (s *Store) Get(id uint32) ([]byte, error) {
	s.regMu.RLock()
	e, ok := s.byID[id]
	s.regMu.RUnlock()
	if !ok {
		return nil, xerrors.Errorf("dictionary %d: %w", id, ErrUnknownDict)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bytes != nil {
		return e.bytes, nil
	}
	b, err := os.ReadFile(e.path)
	if err != nil {
		return nil, xerrors.Errorf("loading dictionary %d from %s: %w", id, e.path, err)
	}
	selfID, err := SelfDescribedID(b)
	if err != nil {
		return nil, xerrors.Errorf("dictionary %d at %s: %w", id, e.path, err)
	}
	if selfID != id {
		return nil, xerrors.Errorf("dictionary %s self-describes id %d, filename says %d", e.path, selfID, id)
	}
	e.bytes = b
	return b, nil
}

// SelfDescribedID reads the 32-bit little-endian id embedded at bytes
// [4,8) of a raw Zstd dictionary's content.
func SelfDescribedID(dict []byte) (uint32, error) {
	if len(dict) < 8 {
		return 0, xerrors.New("dictionary too short to contain a self-described id")
	}
	return binary.LittleEndian.Uint32(dict[4:8]), nil
}

// FileName renders the on-disk filename for a dictionary with the given
// label and id.
func FileName(label string, id uint32) string {
	return fmt.Sprintf("%s.%d.zstdict", label, id)
}
