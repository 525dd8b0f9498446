package location

import (
	"net/http"

	"github.com/citizenvoice/platform/internal/shared/response"
	"github.com/go-chi/chi/v5"
)

// Handler serves the division lookups used by registration and leader forms
type Handler struct {
	table *Table
}

// NewHandler creates a new location handler
func NewHandler(table *Table) *Handler {
	return &Handler{table: table}
}

// Routes registers the location routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/provinces", h.list(0))
	r.Get("/districts", h.list(1))
	r.Get("/sectors", h.list(2))
	r.Get("/cells", h.list(3))
	r.Get("/villages", h.list(4))
	return r
}

var pathParams = []string{"province", "district", "sector", "cell"}

// list answers with the children of the first depth query parameters
func (h *Handler) list(depth int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		path := make([]string, depth)
		for i := range path {
			path[i] = q.Get(pathParams[i])
		}
		names := h.table.Children(path...)
		response.List(w, names, len(names))
	}
}
