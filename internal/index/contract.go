// Package index declares the contract for the external relational index: a
// writable, keyed store over (collection, filename, offset, size) ranges,
// searchable by record id, by (url, timestamp) nearest-neighbor, and by
// massaged-URL host/path pattern. The core treats this store as a thin
// collaborator it writes through and reads from; spec.md §6 and §4.6
// describe its contract in full. This package defines that contract plus
// the row/token types; internal/index/sqlindex provides one concrete,
// swappable implementation.
package index

import (
	"context"
	"time"
)

// Row mirrors one record's entry in the external index, matching the
// original implementation's DBWarcRecord (src/database/structs.rs).
type Row struct {
	ID         int64
	Flags      int32
	Date       time.Time
	Identifier string
	Collection string // collection uuid
	URL        string // target URI, "" if the record has none
	Filename   string
	Offset     int64
	Size       int64
	Type       string
	Active     bool
	DictID     *uint32
	DictAlgo   *string
}

// SearchQuery describes a massaged-URL host/port/path search.
type SearchQuery struct {
	HostPattern string // already rendered by urlkey.BuildRegexp
	Limit       int
}

// Client is the contract the core writes through and reads from. Every
// method takes a context so the caller can cancel/time out a blocking
// network round trip to the external store.
type Client interface {
	// InsertRecord mirrors one CDX row into the index with the given
	// active flag and (if the collection is compressed) dictionary
	// metadata.
	InsertRecord(ctx context.Context, collUUID string, row Row) error

	// ActivateRecords flips the active bit on every row for
	// (collUUID, dictID, dictAlgo). Used by rebuild's commit step.
	ActivateRecords(ctx context.Context, collUUID string, dictID uint32, dictAlgo string) error

	// DeleteRecords removes every row for (collUUID, dictID, dictAlgo).
	DeleteRecords(ctx context.Context, collUUID string, dictID uint32, dictAlgo string) error

	// DeleteRecordsExcept removes every row for collUUID whose dictionary
	// pair differs from (dictID, dictAlgo), including rows with no
	// dictionary at all (an uncompressed collection mirrors its rows with
	// absent dictionary metadata). Used by rebuild's commit step, which
	// must sweep the old rows regardless of whether the collection was
	// compressed before.
	DeleteRecordsExcept(ctx context.Context, collUUID string, dictID uint32, dictAlgo string) error

	// DeleteCollection removes every row for collUUID, regardless of
	// dictionary.
	DeleteCollection(ctx context.Context, collUUID string) error

	// GetByID returns the active row for a record id, or ErrNotFound.
	GetByID(ctx context.Context, id string) (Row, error)

	// GetByURI returns the active, non-"request"-typed row for uri whose
	// date is nearest (minimum absolute epoch distance) to date.
	GetByURI(ctx context.Context, date time.Time, uri string) (Row, error)

	// Search returns up to q.Limit active rows whose massaged URL matches
	// q.HostPattern.
	Search(ctx context.Context, q SearchQuery) ([]Row, error)

	// GetSamples returns up to limit rows for collUUID; the order of the
	// returned rows is not specified.
	GetSamples(ctx context.Context, collUUID string, limit int) ([]Row, error)

	// Tokens CRUD, for the bearer-token permission surface (spec.md §6).
	CreateToken(ctx context.Context, t Token) error
	GetToken(ctx context.Context, token string) (Token, error)
	ListTokens(ctx context.Context) ([]Token, error)
	DeleteToken(ctx context.Context, token string) error
}

// Token is one bearer token's permission grant, matching the source's
// TokenInfo (src/permissions.rs).
type Token struct {
	Token   string
	Comment string

	ReadKind, WriteKind, DeleteKind string // "none" | "any" | "list" | "prefix"
	ReadPerms, WritePerms, DeletePerms string // comma-joined list, or a prefix
}
