package warc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

const (
	versionLine = "WARC/1.1\r\n"
	crlf        = "\r\n"
	trailer     = "\r\n\r\n"
)

// Serialize renders r as bytes: the version line, one "K: V\r\n" line per
// header value (multi-valued headers produce one line per value, in
// insertion order), a derived Content-Length line, the blank line that ends
// the header block, the body, and the fixed CRLFCRLF trailer.
func (r *Record) Serialize() []byte {
	var b strings.Builder
	b.WriteString(versionLine)
	for _, k := range r.order {
		for _, v := range r.headers[k] {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(r.Body))

	out := make([]byte, 0, b.Len()+len(r.Body)+len(trailer))
	out = append(out, b.String()...)
	out = append(out, r.Body...)
	out = append(out, trailer...)
	return out
}

type readState int

const (
	stateWaitingVersion readState = iota
	stateWaitingEndOfHeaders
)

// ReadRecord reads exactly one record from r, advancing r past it. It
// returns (nil, nil) on a clean EOF before any bytes of a new record were
// read, and a non-nil error for any other failure (including EOF in the
// middle of a record).
func ReadRecord(r *bufio.Reader) (*Record, error) {
	rec := &Record{headers: make(map[string][]string)}
	state := stateWaitingVersion
	var contentLen int
	haveContentLen := false

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				if state == stateWaitingVersion {
					return nil, nil
				}
				return nil, xerrors.New("unexpected end of file while reading warc headers")
			}
			return nil, xerrors.Errorf("reading warc line: %w", err)
		}

		if state == stateWaitingVersion {
			if line != versionLine {
				return nil, xerrors.Errorf("expected %q but found %q", versionLine, line)
			}
			state = stateWaitingEndOfHeaders
			continue
		}

		if line == crlf {
			break
		}

		idx := strings.Index(line, ": ")
		if idx < 0 {
			return nil, xerrors.Errorf("invalid header line: %q", strings.TrimRight(line, crlf))
		}
		key := line[:idx]
		value := line[idx+2 : len(line)-2] // strip trailing \r\n

		switch key {
		case "Content-Length":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, xerrors.Errorf("invalid Content-Length %q: %w", value, err)
			}
			contentLen = n
			haveContentLen = true
		case "WARC-Type":
			rec.SetHeader(key, value)
		default:
			rec.AddHeader(key, value)
		}
	}

	if haveContentLen {
		body := make([]byte, contentLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, xerrors.Errorf("reading body (%d bytes): %w", contentLen, err)
		}
		rec.Body = body

		var tail [4]byte
		if _, err := io.ReadFull(r, tail[:]); err != nil {
			return nil, xerrors.Errorf("reading trailer: %w", err)
		}
		if string(tail[:]) != trailer {
			return nil, xerrors.Errorf("invalid body trailer: %q", tail)
		}
	}

	return rec, nil
}
