package audit

import (
	"net/http"
	"strconv"

	"github.com/proxydesk/proxydesk/internal/api"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// List pages through the persisted event trail, newest first. Optional
// ?subject= filters to one event type.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(q.Get("page_size"))
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	records, total, err := h.repo.List(r.Context(), q.Get("subject"), size, (page-1)*size)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSONPaginated(w, http.StatusOK, records, int64(total), page, size)
}
