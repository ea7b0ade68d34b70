package reposvc

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/cdx"
	"github.com/5IGI0/Masstuffy/internal/collection"
	"github.com/5IGI0/Masstuffy/internal/dictstore"
	"github.com/5IGI0/Masstuffy/internal/filemanager"
	"github.com/5IGI0/Masstuffy/internal/index"
	"github.com/5IGI0/Masstuffy/internal/warc"
	masstuffy "github.com/5IGI0/Masstuffy"
)

// ErrSlugTaken is returned by CreateCollection when the requested slug is
// already registered (spec.md §3, invariant 1).
var ErrSlugTaken = xerrors.New("slug already in use")

// ErrNotFound is returned by GetBySlug/GetByUUID for an unknown collection.
var ErrNotFound = xerrors.New("collection not found")

const (
	repositoryDir = "data/repository"
	dictDir       = "data/dict/zstd"
	bufferDir     = "data/buffer"
)

// Root owns the workdir: config, the shared file manager and dictionary
// store, and the dual (slug, uuid) collection registry. Creation and
// deletion are serialized by creatorMu; everything else is read-mostly
// behind per-map RWMutexes, matching spec.md §4.7 / §9 "shared mutable
// collection maps" guidance (both maps hold the same *collection.Collection
// pointer, never a copy).
type Root struct {
	path   string
	log    *zap.SugaredLogger
	Config Config

	FileManager *filemanager.Manager
	DictStore   *dictstore.Store

	creatorMu sync.Mutex

	slugsMu sync.RWMutex
	slugs   map[string]*collection.Collection

	uuidsMu sync.RWMutex
	uuids   map[string]*collection.Collection
}

// Open loads an existing workdir rooted at path: config.json, the
// dictionary store, and every collection under data/repository.
func Open(path string, log *zap.SugaredLogger) (*Root, error) {
	cfg, err := LoadConfig(filepath.Join(path, "config.json"))
	if err != nil {
		return nil, err
	}

	ds, err := dictstore.Open(filepath.Join(path, dictDir), log)
	if err != nil {
		return nil, xerrors.Errorf("opening dictionary store: %w", err)
	}

	r := &Root{
		path:        path,
		log:         log,
		Config:      cfg,
		FileManager: filemanager.New(),
		DictStore:   ds,
		slugs:       make(map[string]*collection.Collection),
		uuids:       make(map[string]*collection.Collection),
	}

	entries, err := os.ReadDir(filepath.Join(path, repositoryDir))
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, xerrors.Errorf("scanning repository directory: %w", err)
	}
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		dir := filepath.Join(path, repositoryDir, de.Name())
		c, err := collection.Open(dir, r.FileManager, r.DictStore, log)
		if err != nil {
			return nil, xerrors.Errorf("loading collection %s: %w", de.Name(), err)
		}
		m := c.Manifest()
		r.slugs[m.Slug] = c
		r.uuids[m.UUID] = c
	}
	return r, nil
}

// InitFS lays out a brand-new workdir at path: config.json, the repository,
// dictionary and buffer directories.
func InitFS(path string, cfg Config) error {
	for _, d := range []string{
		filepath.Join(path, repositoryDir),
		filepath.Join(path, dictDir),
		filepath.Join(path, bufferDir),
	} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return xerrors.Errorf("creating %s: %w", d, err)
		}
	}
	return SaveConfig(filepath.Join(path, "config.json"), cfg)
}

// CreateCollection creates a brand-new collection: allocates a uuid,
// validates slug uniqueness under the creator lock, writes its manifest,
// seeds the first segment with a self-describing warcinfo record and
// registers the collection in both maps.
func (r *Root) CreateCollection(ctx context.Context, slug string, compression *string, dictID *uint32, level int, splitThreshold uint64) (*collection.Collection, error) {
	r.creatorMu.Lock()
	defer r.creatorMu.Unlock()

	r.slugsMu.RLock()
	_, taken := r.slugs[slug]
	r.slugsMu.RUnlock()
	if taken {
		return nil, ErrSlugTaken
	}

	if compression != nil && dictID == nil {
		return nil, xerrors.New("compression requires a dict_id")
	}
	if compression != nil && !r.DictStore.Has(*dictID) {
		return nil, xerrors.Errorf("unknown dictionary %d", *dictID)
	}

	if splitThreshold == 0 {
		splitThreshold = collection.DefaultSplitThreshold
	}

	collUUID := uuid.New().String()
	dir := filepath.Join(r.path, repositoryDir, collUUID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, xerrors.Errorf("creating collection directory: %w", err)
	}

	m := collection.Manifest{
		UUID:           collUUID,
		Slug:           slug,
		Compression:    compression,
		Level:          level,
		DictID:         dictID,
		SplitThreshold: splitThreshold,
	}
	if err := collection.SaveManifest(filepath.Join(dir, "manifest.json"), m); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	c, err := collection.Open(dir, r.FileManager, r.DictStore, r.log)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	manifestJSON, err := json.Marshal(m)
	if err != nil {
		os.RemoveAll(dir)
		return nil, xerrors.Errorf("encoding manifest for warcinfo: %w", err)
	}
	info := warc.NewRecord("warcinfo")
	info.SetHeader("Content-Type", "application/warc-fields")
	info.Body = []byte(fmt.Sprintf(
		"format: WARC File Format 1.1\r\nsoftware: masstuffy/%s\r\nmasstuffy-collection-manifest: %s\r\n",
		masstuffy.Version, manifestJSON))
	if err := c.WriteInfoRecord(ctx, info); err != nil {
		os.RemoveAll(dir)
		return nil, xerrors.Errorf("writing warcinfo record: %w", err)
	}

	r.slugsMu.Lock()
	r.slugs[slug] = c
	r.slugsMu.Unlock()
	r.uuidsMu.Lock()
	r.uuids[collUUID] = c
	r.uuidsMu.Unlock()

	return c, nil
}

// GetBySlug looks up a collection by its human slug.
func (r *Root) GetBySlug(slug string) (*collection.Collection, error) {
	r.slugsMu.RLock()
	defer r.slugsMu.RUnlock()
	c, ok := r.slugs[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// GetByUUID looks up a collection by its uuid.
func (r *Root) GetByUUID(collUUID string) (*collection.Collection, error) {
	r.uuidsMu.RLock()
	defer r.uuidsMu.RUnlock()
	c, ok := r.uuids[collUUID]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// ListCollections returns every registered collection's manifest, sorted by
// slug for a stable listing order.
func (r *Root) ListCollections() []collection.Manifest {
	r.slugsMu.RLock()
	defer r.slugsMu.RUnlock()
	out := make([]collection.Manifest, 0, len(r.slugs))
	for _, c := range r.slugs {
		out = append(out, c.Manifest())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// DeleteCollection removes a collection's directory tree and both registry
// entries. The caller is responsible for deleting the collection's rows in
// the external index (spec.md §4.7).
func (r *Root) DeleteCollection(ctx context.Context, slug string, idx index.Client) error {
	r.creatorMu.Lock()
	defer r.creatorMu.Unlock()

	r.slugsMu.RLock()
	c, ok := r.slugs[slug]
	r.slugsMu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	m := c.Manifest()

	if err := c.Delete(); err != nil {
		return xerrors.Errorf("deleting collection %s: %w", slug, err)
	}

	r.slugsMu.Lock()
	delete(r.slugs, slug)
	r.slugsMu.Unlock()
	r.uuidsMu.Lock()
	delete(r.uuids, m.UUID)
	r.uuidsMu.Unlock()

	if idx != nil {
		if err := idx.DeleteCollection(ctx, m.UUID); err != nil {
			return xerrors.Errorf("deleting index rows for %s: %w", slug, err)
		}
	}
	return nil
}

// GetBufferPath resolves <root>/data/buffer/<name>/, rejecting names that
// contain a path separator or a ".." component so buffer directories can
// never escape the buffer tree. Returns whether the directory already
// existed.
func (r *Root) GetBufferPath(name string, create bool) (string, bool, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return "", false, xerrors.Errorf("invalid buffer name %q", name)
	}
	for _, part := range strings.Split(name, string(filepath.Separator)) {
		if part == ".." {
			return "", false, xerrors.Errorf("invalid buffer name %q", name)
		}
	}
	dir := filepath.Join(r.path, bufferDir, name)
	_, err := os.Stat(dir)
	existed := err == nil
	if !existed && !os.IsNotExist(err) {
		return "", false, xerrors.Errorf("stat %s: %w", dir, err)
	}
	if !existed && create {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", false, xerrors.Errorf("creating buffer dir %s: %w", dir, err)
		}
	}
	return dir, existed, nil
}

// AddZstdDict writes a new dictionary file named "<label>.<id>.zstdict",
// where id is the 32-bit value self-described at bytes [4,8) of raw, and
// triggers a dictionary store reload so the new id is immediately visible
// to every collection.
func (r *Root) AddZstdDict(label string, raw []byte) (uint32, error) {
	id, err := dictstore.SelfDescribedID(raw)
	if err != nil {
		return 0, err
	}
	if r.DictStore.Has(id) {
		return 0, xerrors.Errorf("dictionary id %d already in use", id)
	}
	path := filepath.Join(r.path, dictDir, dictstore.FileName(label, id))
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return 0, xerrors.Errorf("writing dictionary %s: %w", path, err)
	}
	if _, err := r.DictStore.Reload(); err != nil {
		return 0, xerrors.Errorf("reloading dictionary store: %w", err)
	}
	return id, nil
}

// SampleRecords returns up to n records from a collection's CDX index for
// dictionary-training, ordered by a deterministic hash of each record's id
// (spec.md §4.7, §9 open question 4: not uniformly random, but
// deterministic; a reservoir sampler would give better statistical quality
// but is not implemented here).
func (r *Root) SampleRecords(collUUID string, n int) ([]cdx.Record, error) {
	c, err := r.GetByUUID(collUUID)
	if err != nil {
		return nil, err
	}
	cr, err := c.IterCDX()
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	type scored struct {
		rec  cdx.Record
		hash uint32
	}
	var all []scored
	for {
		rec, err := cr.Next()
		if err != nil {
			break
		}
		h := fnv.New32a()
		h.Write([]byte(rec.ID))
		all = append(all, scored{rec: rec, hash: h.Sum32()})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].hash < all[j].hash })
	if n > len(all) {
		n = len(all)
	}
	out := make([]cdx.Record, n)
	for i := 0; i < n; i++ {
		out[i] = all[i].rec
	}
	return out, nil
}

// AllocateDictID picks a dictionary id outside both Zstd-reserved ranges and
// not already registered, starting from candidate (the id the Zstd trainer
// assigned) and searching forward through cryptographically random 32-bit
// values in [0x8000, 0x80000000) until a free one is found. Callers must
// then rewrite bytes [4,8) of the dictionary with the returned id before
// calling AddZstdDict.
func (r *Root) AllocateDictID(candidate uint32) (uint32, error) {
	if !dictIsReserved(candidate) && !r.DictStore.Has(candidate) {
		return candidate, nil
	}
	for i := 0; i < 1<<16; i++ {
		id, err := randomDictID()
		if err != nil {
			return 0, err
		}
		if !r.DictStore.Has(id) {
			return id, nil
		}
	}
	return 0, xerrors.New("could not allocate a free dictionary id")
}
