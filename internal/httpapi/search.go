package httpapi

import (
	"net/http"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/auth"
	"github.com/5IGI0/Masstuffy/internal/cdx"
	"github.com/5IGI0/Masstuffy/internal/index"
	"github.com/5IGI0/Masstuffy/internal/urlkey"
)

// searchLimit caps GET /search result sets (spec.md §6).
const searchLimit = 100

// searchResult is the wire form of one search hit.
type searchResult struct {
	URI        string `json:"uri,omitempty"`
	Identifier string `json:"identifier"`
	Type       string `json:"type"`
	Collection string `json:"collection"`
	Date       string `json:"date"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	p := urlkey.Pattern{}
	if v := q.Get("host"); v != "" {
		p.Host = urlkey.HostPartial
		p.HostValue = v
	}
	if v := q.Get("host_exact"); v != "" {
		p.Host = urlkey.HostExact
		p.HostValue = v
	}
	if v := q.Get("path"); v != "" {
		p.Path = urlkey.PathPartial
		p.PathValue = v
	}
	if v := q.Get("path_exact"); v != "" {
		p.Path = urlkey.PathExact
		p.PathValue = v
	}
	if v := q.Get("port"); v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			writeError(w, xerrors.Errorf("invalid port %q: %w", v, errBadRequest))
			return
		}
		p16 := uint16(port)
		p.Port = &p16
	}

	rows, err := s.idx.Search(r.Context(), index.SearchQuery{
		HostPattern: urlkey.BuildRegexp(p),
		Limit:       searchLimit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// Permission is per collection: hits the token may not read are dropped
	// from the result set rather than failing the whole request.
	token := bearerToken(r)
	out := make([]searchResult, 0, len(rows))
	for _, row := range rows {
		c, err := s.root.GetByUUID(row.Collection)
		if err != nil {
			continue
		}
		if !s.checker.CheckAccessToken(r.Context(), auth.Read, token, c.Manifest().Slug) {
			continue
		}
		out = append(out, searchResult{
			URI:        row.URL,
			Identifier: row.Identifier,
			Type:       row.Type,
			Collection: row.Collection,
			Date:       cdx.FormatDate(row.Date),
		})
	}

	// Only json is implemented; it doubles as the fallback for an
	// unrecognized format parameter.
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDictionary(w http.ResponseWriter, r *http.Request) {
	id64, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		writeError(w, xerrors.Errorf("invalid dictionary id %q: %w", r.PathValue("id"), errBadRequest))
		return
	}
	dict, err := s.root.DictStore.Get(uint32(id64))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(dict)
}
