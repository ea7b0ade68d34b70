package httpapi

import (
	"fmt"
	"net/http"

	"github.com/5IGI0/Masstuffy/internal/collection"
	"github.com/5IGI0/Masstuffy/internal/index"
)

// writeRecord renders a fetched row per spec.md §6's flag semantics: 'r'
// returns the on-disk bytes untouched (no decompression, no header
// mirroring); otherwise the record is decoded and, for 'h', re-serialized
// with its WARC headers and trailer so the body is self-contained.
func writeRecord(w http.ResponseWriter, r *http.Request, c *collection.Collection, row index.Row, flags recordFlags) {
	if flags.raw {
		raw, err := c.GetRawRecord(r.Context(), row.Filename, uint64(row.Offset), uint64(row.Size))
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Warc-Dictionary-Id", dictIDHeader(row.DictID))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(raw)
		return
	}

	rec, err := c.GetRecord(r.Context(), row.Filename, uint64(row.Offset))
	if err != nil {
		writeError(w, err)
		return
	}

	for k, values := range rec.Headers() {
		for _, v := range values {
			w.Header().Add("Warc-Header-"+k, v)
		}
	}

	contentType := "application/octet-stream"
	if ct, ok := rec.Header("Content-Type"); ok {
		contentType = ct
	}
	if flags.headers {
		contentType = "application/warc"
	}
	if flags.download {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	w.WriteHeader(http.StatusOK)
	if flags.headers {
		w.Write(rec.Serialize())
	} else {
		w.Write(rec.Body)
	}
}

func dictIDHeader(id *uint32) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}
