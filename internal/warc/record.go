// Package warc implements a reader and writer for WARC 1.1 records as
// defined by the IIPC WARC specification: a version line, CRLF-terminated
// headers, a Content-Length-framed body and a fixed CRLF CRLF trailer.
package warc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

// uniqueHeaders may only ever hold a single value; setting them overwrites
// rather than appends.
var uniqueHeaders = map[string]bool{
	"WARC-Type":      true,
	"WARC-Record-ID": true,
	"WARC-Date":      true,
}

// Record is one in-memory WARC record. Header order is not canonical: two
// records with the same header multiset but different insertion order are
// considered equivalent (spec.md §9, open question 5).
type Record struct {
	headers map[string][]string
	order   []string // insertion order of keys, for deterministic serialize()
	Body    []byte
}

// NewRecord initializes a record with WARC-Type, a fresh WARC-Record-ID and
// WARC-Date set to the current instant.
func NewRecord(typ string) *Record {
	r := &Record{headers: make(map[string][]string)}
	r.SetHeader("WARC-Type", typ)
	r.SetHeader("WARC-Record-ID", fmt.Sprintf("<urn:uuid:%s>", uuid.New()))
	r.SetHeader("WARC-Date", time.Now().UTC().Format(time.RFC3339))
	return r
}

// SetHeader replaces all values of k. Content-Length can never be set this
// way; it is derived at Serialize time.
func (r *Record) SetHeader(k, v string) {
	if k == "Content-Length" {
		return
	}
	if _, seen := r.headers[k]; !seen {
		r.order = append(r.order, k)
	}
	r.headers[k] = []string{v}
}

// AddHeader appends v to k's value list, unless k is one of the unique
// headers (WARC-Type, WARC-Record-ID, WARC-Date), in which case it behaves
// like SetHeader.
func (r *Record) AddHeader(k, v string) {
	if k == "Content-Length" {
		return
	}
	if uniqueHeaders[k] {
		r.SetHeader(k, v)
		return
	}
	if _, seen := r.headers[k]; !seen {
		r.order = append(r.order, k)
	}
	r.headers[k] = append(r.headers[k], v)
}

// Headers returns the full header multimap. Callers must not mutate the
// returned slices.
func (r *Record) Headers() map[string][]string {
	return r.headers
}

// HeaderValues returns all values for k in insertion order, or nil if absent.
func (r *Record) HeaderValues(k string) []string {
	return r.headers[k]
}

// Header returns the first value for k, or "" with ok=false if absent.
func (r *Record) Header(k string) (string, bool) {
	v, ok := r.headers[k]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// Type returns WARC-Type, erroring if absent.
func (r *Record) Type() (string, error) {
	v, ok := r.Header("WARC-Type")
	if !ok {
		return "", xerrors.New("WARC-Type not found")
	}
	return v, nil
}

// ID returns WARC-Record-ID with the surrounding angle brackets stripped,
// erroring if absent.
func (r *Record) ID() (string, error) {
	v, ok := r.Header("WARC-Record-ID")
	if !ok {
		return "", xerrors.New("WARC-Record-ID not found")
	}
	if len(v) >= 2 && v[0] == '<' && v[len(v)-1] == '>' {
		v = v[1 : len(v)-1]
	}
	return v, nil
}

// Date returns WARC-Date parsed as RFC 3339, erroring if absent or malformed.
func (r *Record) Date() (time.Time, error) {
	v, ok := r.Header("WARC-Date")
	if !ok {
		return time.Time{}, xerrors.New("WARC-Date not found")
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, xerrors.Errorf("parsing WARC-Date %q: %w", v, err)
	}
	return t, nil
}

// TargetURI returns WARC-Target-URI, or "" with ok=false if absent. Unlike
// Type and ID, absence here is not an error: many record types (warcinfo)
// legitimately have no target URI.
func (r *Record) TargetURI() (string, bool) {
	return r.Header("WARC-Target-URI")
}
