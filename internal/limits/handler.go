package limits

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/proxydesk/proxydesk/internal/api"
	"github.com/proxydesk/proxydesk/internal/auth"
	"github.com/proxydesk/proxydesk/internal/users"
)

type batchRequest struct {
	Updates []Update `json:"updates" validate:"required,min=1,max=500,dive"`
}

// quickRequest applies one limit pair to many users at once.
type quickRequest struct {
	UserIDs       []string `json:"user_ids" validate:"required,min=1,max=500,dive,uuid"`
	DailyLimit    int      `json:"daily_limit" validate:"min=0"`
	CooldownHours int      `json:"cooldown_hours" validate:"min=0"`
}

type Handler struct {
	editor   *Editor
	validate *validator.Validate
}

func NewHandler(editor *Editor) *Handler {
	return &Handler{
		editor:   editor,
		validate: validator.New(),
	}
}

// Batch applies per-user limit edits and reports the succeeded/failed
// split with 200 regardless of partial failures.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result := h.editor.Apply(r.Context(), claims.UserID, users.Role(claims.Role), req.Updates)
	api.JSON(w, http.StatusOK, result)
}

// Quick sets the same limit pair for a list of users.
func (h *Handler) Quick(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	var req quickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	updates := make([]Update, 0, len(req.UserIDs))
	for _, id := range req.UserIDs {
		updates = append(updates, Update{
			UserID:        id,
			DailyLimit:    req.DailyLimit,
			CooldownHours: req.CooldownHours,
		})
	}

	result := h.editor.Apply(r.Context(), claims.UserID, users.Role(claims.Role), updates)
	api.JSON(w, http.StatusOK, result)
}
