// Package sqlindex is one concrete, swappable implementation of the
// index.Client contract, backed by modernc.org/sqlite (a pure-Go SQLite
// driver, already part of this corpus via FocuswithJustin-JuniperBible's
// core/sqlite package). The core treats the external relational index as a
// thin collaborator; this package exists so a runnable deployment has one
// wired implementation to exercise that contract end to end.
package sqlindex

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"
	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/index"
	"github.com/5IGI0/Masstuffy/internal/urlkey"
)

const schema = `
CREATE TABLE IF NOT EXISTS warc_records (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	flags        INTEGER NOT NULL DEFAULT 0,
	date         TEXT NOT NULL,
	identifier   TEXT NOT NULL,
	collection   TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	massaged_url TEXT NOT NULL DEFAULT '',
	filename     TEXT NOT NULL,
	offset       INTEGER NOT NULL,
	size         INTEGER NOT NULL,
	type         TEXT NOT NULL,
	active       INTEGER NOT NULL DEFAULT 0,
	dict_id      INTEGER,
	dict_algo    TEXT
);
CREATE INDEX IF NOT EXISTS warc_records_identifier ON warc_records(identifier, active);
CREATE INDEX IF NOT EXISTS warc_records_massaged_url ON warc_records(massaged_url, active);
CREATE INDEX IF NOT EXISTS warc_records_dict ON warc_records(collection, dict_id, dict_algo);

CREATE TABLE IF NOT EXISTS tokens (
	token       TEXT PRIMARY KEY,
	comment     TEXT NOT NULL DEFAULT '',
	read_kind   TEXT NOT NULL DEFAULT 'none',
	read_perms  TEXT NOT NULL DEFAULT '',
	write_kind  TEXT NOT NULL DEFAULT 'none',
	write_perms TEXT NOT NULL DEFAULT '',
	delete_kind TEXT NOT NULL DEFAULT 'none',
	delete_perms TEXT NOT NULL DEFAULT ''
);
`

// Store is a *sql.DB-backed index.Client.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at dsn, e.g.
// "file:./data/index.sqlite3?_pragma=busy_timeout(5000)", and ensures the
// schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, xerrors.Errorf("opening sqlite index %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time avoids SQLITE_BUSY under load
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, xerrors.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// OpenFromConfig opens the index described by a config.json "database"
// connection string. Only the "sqlite://<path>" scheme is understood by this
// implementation; a bare path is passed through as-is.
func OpenFromConfig(database string) (*Store, error) {
	return Open(strings.TrimPrefix(database, "sqlite://"))
}

var _ index.Client = (*Store)(nil)

func (s *Store) InsertRecord(ctx context.Context, collUUID string, row index.Row) error {
	massaged, err := urlkey.Massage(row.URL)
	if err != nil {
		massaged = "" // non-absolute URLs (e.g. warcinfo's empty URI) just aren't searchable
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO warc_records
			(flags, date, identifier, collection, url, massaged_url, filename, offset, size, type, active, dict_id, dict_algo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Flags, row.Date.UTC().Format(time.RFC3339), row.Identifier, collUUID,
		row.URL, massaged, row.Filename, row.Offset, row.Size, row.Type, row.Active,
		nullableUint32(row.DictID), nullableString(row.DictAlgo))
	if err != nil {
		return xerrors.Errorf("inserting record %s: %w", row.Identifier, err)
	}
	return nil
}

func (s *Store) ActivateRecords(ctx context.Context, collUUID string, dictID uint32, dictAlgo string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE warc_records SET active = 1 WHERE collection = ? AND dict_id = ? AND dict_algo = ?`,
		collUUID, dictID, dictAlgo)
	if err != nil {
		return xerrors.Errorf("activating records for %s/%d/%s: %w", collUUID, dictID, dictAlgo, err)
	}
	return nil
}

func (s *Store) DeleteRecords(ctx context.Context, collUUID string, dictID uint32, dictAlgo string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM warc_records WHERE collection = ? AND dict_id = ? AND dict_algo = ?`,
		collUUID, dictID, dictAlgo)
	if err != nil {
		return xerrors.Errorf("deleting records for %s/%d/%s: %w", collUUID, dictID, dictAlgo, err)
	}
	return nil
}

// DeleteRecordsExcept sweeps every row for collUUID that does not carry
// exactly (dictID, dictAlgo). "IS NOT" keeps the comparison NULL-aware:
// rows mirrored for an uncompressed collection store SQL NULLs, which a
// plain "<>" would never match.
func (s *Store) DeleteRecordsExcept(ctx context.Context, collUUID string, dictID uint32, dictAlgo string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM warc_records WHERE collection = ? AND (dict_id IS NOT ? OR dict_algo IS NOT ?)`,
		collUUID, dictID, dictAlgo)
	if err != nil {
		return xerrors.Errorf("deleting records for %s except %d/%s: %w", collUUID, dictID, dictAlgo, err)
	}
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, collUUID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM warc_records WHERE collection = ?`, collUUID)
	if err != nil {
		return xerrors.Errorf("deleting collection %s: %w", collUUID, err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (index.Row, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, flags, date, identifier, collection, url, filename, offset, size, type, active, dict_id, dict_algo
		FROM warc_records WHERE identifier = ? AND active = 1 LIMIT 1`, id)
	return scanRow(row)
}

// GetByURI returns the active, non-"request" row whose massaged URL equals
// uri's massaged form and whose date is nearest (minimum absolute epoch
// distance) to date.
func (s *Store) GetByURI(ctx context.Context, date time.Time, uri string) (index.Row, error) {
	massaged, err := urlkey.Massage(uri)
	if err != nil {
		return index.Row{}, xerrors.Errorf("massaging uri %q: %w", uri, err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, flags, date, identifier, collection, url, filename, offset, size, type, active, dict_id, dict_algo
		FROM warc_records WHERE massaged_url = ? AND active = 1 AND type <> 'request'`, massaged)
	if err != nil {
		return index.Row{}, xerrors.Errorf("querying by uri %q: %w", uri, err)
	}
	defer rows.Close()

	var best index.Row
	var bestDelta time.Duration
	found := false
	for rows.Next() {
		r, err := scanRowsRow(rows)
		if err != nil {
			return index.Row{}, err
		}
		delta := r.Date.Sub(date)
		if delta < 0 {
			delta = -delta
		}
		if !found || delta < bestDelta {
			best, bestDelta, found = r, delta, true
		}
	}
	if err := rows.Err(); err != nil {
		return index.Row{}, xerrors.Errorf("iterating rows for uri %q: %w", uri, err)
	}
	if !found {
		return index.Row{}, index.ErrNotFound
	}
	return best, nil
}

// Search returns up to q.Limit active rows whose massaged URL matches
// q.HostPattern, a regular expression already rendered by
// urlkey.BuildRegexp. SQLite has no built-in regex engine reachable from
// modernc.org/sqlite without a CGO extension, so matching is done in Go over
// the active row set; a real deployment with a large index would instead
// narrow this with a LIKE prefix derived from the pattern's literal prefix.
func (s *Store) Search(ctx context.Context, q index.SearchQuery) ([]index.Row, error) {
	re, err := compileSearchPattern(q.HostPattern)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, flags, date, identifier, collection, url, filename, offset, size, type, active, dict_id, dict_algo
		FROM warc_records WHERE active = 1`)
	if err != nil {
		return nil, xerrors.Errorf("searching: %w", err)
	}
	defer rows.Close()

	var out []index.Row
	for rows.Next() {
		r, err := scanRowsRow(rows)
		if err != nil {
			return nil, err
		}
		massaged, err := urlkey.Massage(r.URL)
		if err != nil {
			continue
		}
		if re.MatchString(massaged) {
			out = append(out, r)
			if q.Limit > 0 && len(out) >= q.Limit {
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Errorf("iterating search rows: %w", err)
	}
	return out, nil
}

func (s *Store) GetSamples(ctx context.Context, collUUID string, limit int) ([]index.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, flags, date, identifier, collection, url, filename, offset, size, type, active, dict_id, dict_algo
		FROM warc_records WHERE collection = ? AND active = 1 LIMIT ?`, collUUID, limit)
	if err != nil {
		return nil, xerrors.Errorf("sampling collection %s: %w", collUUID, err)
	}
	defer rows.Close()

	var out []index.Row
	for rows.Next() {
		r, err := scanRowsRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
