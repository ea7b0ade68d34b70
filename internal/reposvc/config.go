// Package reposvc implements the filesystem root: the workdir layout,
// config, and the collection registry keyed both by slug and by uuid. It
// wires together the process-wide file manager and dictionary store that
// every collection.Collection shares (spec.md §4.7).
package reposvc

import (
	"encoding/json"
	"os"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// PermKind is one of the four shapes a token's (or the anonymous default's)
// permission grant can take for a single action, mirroring the source's
// TokenPermission enum (src/permissions.rs).
type PermKind string

const (
	PermNone   PermKind = "none"
	PermAny    PermKind = "any"
	PermList   PermKind = "list"
	PermPrefix PermKind = "prefix"
)

// Config is the persisted root configuration, config.json.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	SecretKey  string `json:"secret_key"`
	Database   string `json:"database"`

	AnonymousReadPerms   string   `json:"anonymous_read_perms"`
	AnonymousReadKind    PermKind `json:"anonymous_read_perms_kind"`
	AnonymousWritePerms  string   `json:"anonymous_write_perms"`
	AnonymousWriteKind   PermKind `json:"anonymous_write_perms_kind"`
	AnonymousDeletePerms string   `json:"anonymous_delete_perms"`
	AnonymousDeleteKind  PermKind `json:"anonymous_delete_perms_kind"`
}

// DefaultConfig mirrors the source's Config::default(): listen on localhost,
// no anonymous access of any kind, and a sqlite database alongside the root.
func DefaultConfig() Config {
	return Config{
		ListenAddr:          "127.0.0.1:8080",
		Database:            "sqlite://./data/index.sqlite3",
		AnonymousReadKind:   PermNone,
		AnonymousWriteKind:  PermNone,
		AnonymousDeleteKind: PermNone,
	}
}

// Validate returns nil unless the config is structurally invalid, matching
// the source's permissive Config.validate() shape: most combinations are
// accepted, only outright nonsense is rejected.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return xerrors.New("config: listen_addr must not be empty")
	}
	for _, k := range []PermKind{c.AnonymousReadKind, c.AnonymousWriteKind, c.AnonymousDeleteKind} {
		switch k {
		case PermNone, PermAny, PermList, PermPrefix, "":
		default:
			return xerrors.Errorf("config: invalid anonymous permission kind %q", k)
		}
	}
	return nil
}

// LoadConfig reads and validates path (typically <root>/config.json).
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, xerrors.Errorf("reading config %s: %w", path, err)
	}
	c := DefaultConfig()
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, xerrors.Errorf("parsing config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// SaveConfig writes c to path atomically via write-to-temp + rename.
func SaveConfig(path string, c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return xerrors.Errorf("encoding config: %w", err)
	}
	if err := renameio.WriteFile(path, b, 0644); err != nil {
		return xerrors.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
