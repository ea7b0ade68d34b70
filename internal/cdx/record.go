// Package cdx implements the textual, line-oriented CDX index used to
// locate WARC records by URL, type, id and date without scanning segment
// files. One line describes one record:
//
//	<url> <type> <record-id> <YYYYMMDDHHMMSS> <segment-filename> <offset> <raw-size>
//
// "-" is the on-disk sentinel for an absent optional field. The seventh
// (raw-size) field is always written by this implementation; older
// six-field lines are still accepted on read (spec.md §9, open question 1).
package cdx

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

const dateLayout = "20060102150405"

const sentinel = "-"

// Record is one CDX row, in memory.
type Record struct {
	URL      string // "" means absent
	Type     string
	ID       string // no angle brackets
	Date     string // 14-digit YYYYMMDDHHMMSS
	Filename string // "" means absent
	Offset   uint64
	HasOffset bool
	RawSize  uint64
}

// FormatDate renders t as the 14-digit CDX timestamp.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDate parses a 14-digit CDX timestamp as UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, xerrors.Errorf("parsing cdx date %q: %w", s, err)
	}
	return t, nil
}

// String renders one CDX line (without a trailing newline).
func (r Record) String() string {
	url := sentinel
	if r.URL != "" {
		url = r.URL
	}
	filename := sentinel
	if r.Filename != "" {
		filename = r.Filename
	}
	offset := sentinel
	if r.HasOffset {
		offset = strconv.FormatUint(r.Offset, 10)
	}
	return fmt.Sprintf("%s %s %s %s %s %s %d", url, r.Type, r.ID, r.Date, filename, offset, r.RawSize)
}

// Parse decodes one CDX line into a Record. It accepts the canonical
// seven-field form and, tolerantly, the legacy six-field form (RawSize
// defaults to 0 in that case).
func Parse(line string) (Record, error) {
	fields := strings.Split(line, " ")
	if len(fields) != 6 && len(fields) != 7 {
		return Record{}, xerrors.Errorf("cdx line has %d fields, want 6 or 7: %q", len(fields), line)
	}

	var r Record
	if fields[0] != sentinel {
		r.URL = fields[0]
	}
	r.Type = fields[1]
	r.ID = fields[2]
	r.Date = fields[3]
	if fields[4] != sentinel {
		r.Filename = fields[4]
	}
	if fields[5] != sentinel {
		off, err := strconv.ParseUint(fields[5], 10, 64)
		if err != nil {
			return Record{}, xerrors.Errorf("invalid cdx offset %q: %w", fields[5], err)
		}
		r.Offset = off
		r.HasOffset = true
	}
	if len(fields) == 7 {
		size, err := strconv.ParseUint(fields[6], 10, 64)
		if err != nil {
			return Record{}, xerrors.Errorf("invalid cdx raw-size %q: %w", fields[6], err)
		}
		r.RawSize = size
	}
	return r, nil
}
