package users

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/proxydesk/proxydesk/internal/api"
	"github.com/proxydesk/proxydesk/internal/auth"
	"github.com/proxydesk/proxydesk/internal/cooldown"
)

type Handler struct {
	service  *Service
	validate *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
	}
}

// List returns the users visible to the caller: everyone for admins, users
// and managers for managers, just the caller's own row otherwise.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	visible, err := h.service.ListVisible(r.Context(), claims.UserID, Role(claims.Role))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, visible)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	user, err := h.service.GetByID(r.Context(), claims.UserID)
	if err != nil {
		api.HandleError(w, mapNotFound(err))
		return
	}
	api.JSON(w, http.StatusOK, user)
}

// UpdateLimits edits a single user's daily limit and cooldown period. Fields
// left out of the body keep their current value.
func (h *Handler) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	targetID := chi.URLParam(r, "id")

	var req UpdateLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}
	if req.DailyLimit == nil && req.CooldownHours == nil {
		api.HandleError(w, api.NewBadRequestError("no fields to update"))
		return
	}

	current, err := h.service.GetByID(r.Context(), targetID)
	if err != nil {
		api.HandleError(w, mapNotFound(err))
		return
	}
	daily := current.DailyLimit
	hours := current.CooldownHours
	if req.DailyLimit != nil {
		daily = *req.DailyLimit
	}
	if req.CooldownHours != nil {
		hours = *req.CooldownHours
	}

	user, err := h.service.UpdateLimits(r.Context(), Role(claims.Role), targetID, daily, hours)
	if err != nil {
		api.HandleError(w, mapNotFound(err))
		return
	}
	api.JSON(w, http.StatusOK, user)
}

// OverrideCooldown moves or clears a user's cooldown window.
func (h *Handler) OverrideCooldown(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	targetID := chi.URLParam(r, "id")

	var req OverrideCooldownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	user, err := h.service.OverrideCooldown(r.Context(), claims.UserID, Role(claims.Role), targetID, req.NextGenerationAt)
	if err != nil {
		api.HandleError(w, mapNotFound(err))
		return
	}
	api.JSON(w, http.StatusOK, user)
}

// CooldownStatus returns the current gate state for a user the caller may
// see.
func (h *Handler) CooldownStatus(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	targetID := chi.URLParam(r, "id")

	target, err := h.service.GetByID(r.Context(), targetID)
	if err != nil {
		api.HandleError(w, mapNotFound(err))
		return
	}
	if !Visible(Role(claims.Role), target.Role, claims.UserID == targetID) {
		api.HandleError(w, api.ErrRoleDenied)
		return
	}
	api.JSON(w, http.StatusOK, cooldown.Status(target.NextGenerationAt, time.Now()))
}

// CooldownStream pushes the caller's cooldown countdown over SSE, one event
// per second, closing once the gate opens.
func (h *Handler) CooldownStream(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	user, err := h.service.GetByID(r.Context(), claims.UserID)
	if err != nil {
		api.HandleError(w, mapNotFound(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)

	for st := range cooldown.Tick(r.Context(), user.NextGenerationAt, time.Second, nil) {
		payload, err := json.Marshal(st)
		if err != nil {
			return
		}
		// The server's write timeout would otherwise kill long countdowns.
		_ = rc.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if _, err := fmt.Fprintf(w, "event: cooldown\ndata: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

func mapNotFound(err error) error {
	if err == ErrNotFound {
		return api.NewNotFoundError("user not found")
	}
	return err
}
