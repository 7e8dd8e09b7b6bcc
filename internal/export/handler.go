package export

import (
	"fmt"
	"net/http"
	"time"

	"github.com/proxydesk/proxydesk/internal/api"
	"github.com/proxydesk/proxydesk/internal/auth"
	"github.com/proxydesk/proxydesk/internal/quota"
)

const historyLimit = 1000

type Handler struct {
	tracker *quota.Tracker
}

func NewHandler(tracker *quota.Tracker) *Handler {
	return &Handler{tracker: tracker}
}

// Download streams the caller's claimed proxies as a file. ?format=txt
// (default) or xlsx; ?scope=today limits the export to the current day.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	entries, err := h.tracker.History(r.Context(), claims.UserID, historyLimit)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if r.URL.Query().Get("scope") == "today" {
		start := h.tracker.StartOfDay()
		filtered := entries[:0]
		for _, e := range entries {
			if !e.UsedAt.Before(start) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	now := time.Now()
	switch r.URL.Query().Get("format") {
	case "", "txt":
		urls := make([]string, len(entries))
		for i, e := range entries {
			urls[i] = e.ProxyURL
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", Filename("txt", now)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(TXT(urls))

	case "xlsx":
		buf, err := XLSX(entries)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", Filename("xlsx", now)))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)

	default:
		api.HandleError(w, api.NewBadRequestError("unsupported format"))
	}
}
