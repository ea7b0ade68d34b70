package httpapi

import (
	"encoding/json"
	"net/http"

	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/auth"
)

// CollectionInfo is the public, wire-format view of one collection's
// manifest, returned by GET /collections.
type CollectionInfo struct {
	UUID           string  `json:"uuid"`
	Slug           string  `json:"slug"`
	Compression    *string `json:"compression,omitempty"`
	DictID         *uint32 `json:"dict_id,omitempty"`
	SplitThreshold uint64  `json:"split_threshold"`
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	if !s.checker.CheckAccessToken(r.Context(), auth.Read, bearerToken(r), "") {
		writeError(w, auth.ErrForbidden)
		return
	}
	manifests := s.root.ListCollections()
	out := make([]CollectionInfo, 0, len(manifests))
	for _, m := range manifests {
		out = append(out, CollectionInfo{
			UUID:           m.UUID,
			Slug:           m.Slug,
			Compression:    m.Compression,
			DictID:         m.DictID,
			SplitThreshold: m.SplitThreshold,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createCollectionRequest struct {
	Slug     string  `json:"slug"`
	DictID   *uint32 `json:"dict_id,omitempty"`
	CompAlgo *string `json:"comp_algo,omitempty"`
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.Errorf("decoding request body: %v: %w", err, errBadRequest))
		return
	}
	if !s.checker.CheckAccessToken(r.Context(), auth.Write, bearerToken(r), req.Slug) {
		writeError(w, auth.ErrForbidden)
		return
	}
	if req.Slug == "" {
		writeError(w, xerrors.Errorf("slug must not be empty: %w", errBadRequest))
		return
	}

	c, err := s.root.CreateCollection(r.Context(), req.Slug, req.CompAlgo, req.DictID, 0, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	m := c.Manifest()
	writeJSON(w, http.StatusOK, CollectionInfo{
		UUID:           m.UUID,
		Slug:           m.Slug,
		Compression:    m.Compression,
		DictID:         m.DictID,
		SplitThreshold: m.SplitThreshold,
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>",
// returning "" when absent or malformed (the anonymous fallback).
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return ""
	}
	return h[len(prefix):]
}
