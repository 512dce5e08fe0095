package export

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/rpattn/issueimport/internal/importer"
)

// Handler renders a posted batch result as a downloadable file.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the renderer with a POST endpoint.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var result importer.Result
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
	if err := h.service.Write(w, format, result); err != nil {
		// Headers are already out; the client sees a truncated file.
		log.Printf("failed to render export: %v", err)
	}
}
