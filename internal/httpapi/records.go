package httpapi

import (
	"bufio"
	"io"
	"net/http"

	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/auth"
	"github.com/5IGI0/Masstuffy/internal/cdx"
	"github.com/5IGI0/Masstuffy/internal/warc"
)

func (s *Server) handleGetByID(w http.ResponseWriter, r *http.Request) {
	flags := parseFlags(r.PathValue("flags"))
	id := r.PathValue("id")

	row, err := s.idx.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.root.GetByUUID(row.Collection)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.checker.CheckAccessToken(r.Context(), auth.Read, bearerToken(r), c.Manifest().Slug) {
		writeError(w, auth.ErrForbidden)
		return
	}
	writeRecord(w, r, c, row, flags)
}

func (s *Server) handleGetByURL(w http.ResponseWriter, r *http.Request) {
	flags := parseFlags(r.PathValue("flags"))
	dateStr := r.PathValue("date")
	url := r.PathValue("url")

	date, err := cdx.ParseDate(dateStr)
	if err != nil {
		writeError(w, xerrors.Errorf("invalid date %q: %v: %w", dateStr, err, errBadRequest))
		return
	}

	row, err := s.idx.GetByURI(r.Context(), date, url)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.root.GetByUUID(row.Collection)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.checker.CheckAccessToken(r.Context(), auth.Read, bearerToken(r), c.Manifest().Slug) {
		writeError(w, auth.ErrForbidden)
		return
	}
	writeRecord(w, r, c, row, flags)
}

// handlePushRecords ingests a stream of concatenated, already-serialized
// WARC records (POST /collection/{uuid}/records), writing and mirroring
// each one in turn.
func (s *Server) handlePushRecords(w http.ResponseWriter, r *http.Request) {
	collUUID := r.PathValue("uuid")
	c, err := s.root.GetByUUID(collUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	m := c.Manifest()
	if !s.checker.CheckAccessToken(r.Context(), auth.Write, bearerToken(r), m.Slug) {
		writeError(w, auth.ErrForbidden)
		return
	}

	br := bufio.NewReader(r.Body)
	count := 0
	for {
		rec, err := warc.ReadRecord(br)
		if err != nil {
			writeError(w, xerrors.Errorf("parsing warc record %d: %w", count, err))
			return
		}
		if rec == nil {
			break
		}
		if _, err := s.root.IngestWarc(r.Context(), collUUID, rec, s.idx); err != nil {
			writeError(w, err)
			return
		}
		count++
	}
	writeJSON(w, http.StatusOK, map[string]int{"ingested": count})
}

// rawIngestFlushThreshold is the buffering limit for the raw-ingest stream
// before it is flushed as one AddRawWarcs call (spec.md §6).
const rawIngestFlushThreshold = 50 << 20

// handlePushRawRecords ingests the mixed CDX-line/raw-bytes stream of
// POST /collection/{uuid}/raw_records: a CDX line, then exactly its
// raw_size bytes of pre-encoded record, repeated to EOF.
func (s *Server) handlePushRawRecords(w http.ResponseWriter, r *http.Request) {
	collUUID := r.PathValue("uuid")
	c, err := s.root.GetByUUID(collUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	m := c.Manifest()
	if !s.checker.CheckAccessToken(r.Context(), auth.Write, bearerToken(r), m.Slug) {
		writeError(w, auth.ErrForbidden)
		return
	}

	br := bufio.NewReader(r.Body)
	var buf []byte
	var rows []cdx.Record
	count := 0

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := s.root.IngestRawBatch(r.Context(), collUUID, buf, rows, s.idx); err != nil {
			return err
		}
		buf = nil
		rows = nil
		return nil
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				break
			}
			if err != io.EOF {
				writeError(w, xerrors.Errorf("reading cdx line: %w", err))
				return
			}
		}
		if line == "" {
			break
		}
		row, err := cdx.Parse(trimNewline(line))
		if err != nil {
			writeError(w, xerrors.Errorf("parsing cdx line: %v: %w", err, errBadRequest))
			return
		}

		body := make([]byte, row.RawSize)
		if _, err := io.ReadFull(br, body); err != nil {
			writeError(w, xerrors.Errorf("reading record body (%d bytes): %w", row.RawSize, err))
			return
		}

		buf = append(buf, body...)
		rows = append(rows, row)
		count++

		if len(buf) >= rawIngestFlushThreshold {
			if err := flush(); err != nil {
				writeError(w, err)
				return
			}
		}
	}
	if err := flush(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"ingested": count})
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
