package collection

import (
	"encoding/json"
	"os"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// DefaultSplitThreshold is 2^32-1, the manifest's default segment split
// threshold when none is configured.
const DefaultSplitThreshold = uint64(1<<32) - 1

// Manifest is a collection's small, persisted configuration record.
// Compression is nil for raw WARC storage; when set it must be "zstd" and
// DictID must be present (spec.md §3, invariant 3).
type Manifest struct {
	UUID           string  `json:"uuid"`
	Slug           string  `json:"slug"`
	Compression    *string `json:"compression,omitempty"`
	Level          int     `json:"level,omitempty"`
	DictID         *uint32 `json:"dict_id,omitempty"`
	SplitThreshold uint64  `json:"split_threshold"`
}

// Validate enforces invariant 3: compression set iff dict_id is set.
func (m Manifest) Validate() error {
	hasComp := m.Compression != nil
	hasDict := m.DictID != nil
	if hasComp != hasDict {
		return xerrors.Errorf("manifest %s: compression and dict_id must be set together", m.Slug)
	}
	if hasComp && *m.Compression != "zstd" {
		return xerrors.Errorf("manifest %s: unsupported compression algorithm %q", m.Slug, *m.Compression)
	}
	return nil
}

// LoadManifest reads and validates a manifest.json file.
func LoadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, xerrors.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, xerrors.Errorf("parsing manifest %s: %w", path, err)
	}
	if m.SplitThreshold == 0 {
		m.SplitThreshold = DefaultSplitThreshold
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// SaveManifest writes m to path atomically (write-to-temp + rename), so a
// crash mid-write never leaves a torn manifest.json.
func SaveManifest(path string, m Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return xerrors.Errorf("encoding manifest: %w", err)
	}
	if err := renameio.WriteFile(path, b, 0644); err != nil {
		return xerrors.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}
