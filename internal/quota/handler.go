package quota

import (
	"net/http"
	"strconv"
	"time"

	"github.com/proxydesk/proxydesk/internal/api"
	"github.com/proxydesk/proxydesk/internal/auth"
	"github.com/proxydesk/proxydesk/internal/cooldown"
	"github.com/proxydesk/proxydesk/internal/users"
)

const defaultHistoryLimit = 100

type statusResponse struct {
	UsedToday  int            `json:"used_today"`
	DailyLimit int            `json:"daily_limit"`
	Remaining  int            `json:"remaining"`
	Cooldown   cooldown.State `json:"cooldown"`
}

type Handler struct {
	tracker *Tracker
	users   *users.Service
}

func NewHandler(tracker *Tracker, userSvc *users.Service) *Handler {
	return &Handler{tracker: tracker, users: userSvc}
}

// Status recomputes the caller's quota and cooldown picture.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	used, err := h.tracker.UsageToday(r.Context(), claims.UserID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, statusResponse{
		UsedToday:  used,
		DailyLimit: user.DailyLimit,
		Remaining:  max(user.DailyLimit-used, 0),
		Cooldown:   cooldown.Status(user.NextGenerationAt, time.Now()),
	})
}

// History returns the caller's most recent claimed proxies.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 1000 {
		limit = defaultHistoryLimit
	}

	entries, err := h.tracker.History(r.Context(), claims.UserID, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, entries)
}
