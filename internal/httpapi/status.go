package httpapi

import (
	"encoding/json"
	"net/http"

	masstuffy "github.com/5IGI0/Masstuffy"
)

type statusResponse struct {
	Repository string `json:"repository"`
	Version    string `json:"version"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Repository: r.Host,
		Version:    masstuffy.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
