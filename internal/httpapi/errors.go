package httpapi

import (
	"errors"
	"net/http"

	"github.com/5IGI0/Masstuffy/internal/auth"
	"github.com/5IGI0/Masstuffy/internal/collection"
	"github.com/5IGI0/Masstuffy/internal/dictstore"
	"github.com/5IGI0/Masstuffy/internal/index"
	"github.com/5IGI0/Masstuffy/internal/reposvc"
)

// writeError maps a core error to an HTTP status code and a plain-text
// body, per spec.md §7's error-kind table: not-found -> 404, permission
// denied -> 403, everything else recognized -> 400, unknown -> 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, collection.ErrNotFound),
		errors.Is(err, dictstore.ErrUnknownDict),
		errors.Is(err, reposvc.ErrNotFound),
		errors.Is(err, index.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reposvc.ErrSlugTaken):
		status = http.StatusBadRequest
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}

// errBadRequest is wrapped by handlers to signal a caller error (invalid
// slug, invalid flags, malformed body) without needing a new sentinel per
// call site.
var errBadRequest = errors.New("bad request")
