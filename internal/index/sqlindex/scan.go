package sqlindex

import (
	"database/sql"
	"regexp"
	"time"

	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/index"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInto(s rowScanner) (index.Row, error) {
	var (
		r        index.Row
		dateStr  string
		dictID   sql.NullInt64
		dictAlgo sql.NullString
	)
	if err := s.Scan(&r.ID, &r.Flags, &dateStr, &r.Identifier, &r.Collection, &r.URL,
		&r.Filename, &r.Offset, &r.Size, &r.Type, &r.Active, &dictID, &dictAlgo); err != nil {
		return index.Row{}, err
	}
	t, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return index.Row{}, xerrors.Errorf("parsing stored date %q: %w", dateStr, err)
	}
	r.Date = t
	if dictID.Valid {
		id := uint32(dictID.Int64)
		r.DictID = &id
	}
	if dictAlgo.Valid {
		r.DictAlgo = &dictAlgo.String
	}
	return r, nil
}

func scanRow(row *sql.Row) (index.Row, error) {
	r, err := scanInto(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return index.Row{}, index.ErrNotFound
		}
		return index.Row{}, xerrors.Errorf("scanning row: %w", err)
	}
	return r, nil
}

func scanRowsRow(rows *sql.Rows) (index.Row, error) {
	r, err := scanInto(rows)
	if err != nil {
		return index.Row{}, xerrors.Errorf("scanning row: %w", err)
	}
	return r, nil
}

func nullableUint32(v *uint32) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// compileSearchPattern compiles a pattern rendered by urlkey.BuildRegexp,
// anchoring it to match the whole massaged URL.
func compileSearchPattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, xerrors.Errorf("compiling search pattern %q: %w", pattern, err)
	}
	return re, nil
}
