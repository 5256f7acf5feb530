package catalog

import (
	"encoding/json"
	"net/http"
)

// Handler serves the published session types.
type Handler struct {
	catalog *Catalog
}

// NewHandler creates a catalog handler.
func NewHandler(c *Catalog) *Handler {
	if c == nil {
		c = Default()
	}
	return &Handler{catalog: c}
}

// ListResponse wraps the session type list.
type ListResponse struct {
	SessionTypes []SessionType `json:"session_types"`
}

// List handles GET /session-types.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListResponse{SessionTypes: h.catalog.All()})
}
