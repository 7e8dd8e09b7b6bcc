package proxies

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/proxydesk/proxydesk/internal/api"
	"github.com/proxydesk/proxydesk/internal/auth"
	"github.com/proxydesk/proxydesk/internal/export"
	"github.com/proxydesk/proxydesk/internal/quota"
	"github.com/proxydesk/proxydesk/internal/users"
)

type claimRequest struct {
	Amount      int  `json:"amount" validate:"omitempty,min=1"`
	All         bool `json:"all"`
	AcceptFewer bool `json:"accept_fewer"`
}

type importRequest struct {
	Proxies string `json:"proxies" validate:"required"`
}

type Handler struct {
	claimer  *Claimer
	users    *users.Service
	validate *validator.Validate
}

func NewHandler(claimer *Claimer, userSvc *users.Service) *Handler {
	return &Handler{
		claimer:  claimer,
		users:    userSvc,
		validate: validator.New(),
	}
}

func (h *Handler) caller(r *http.Request) (*users.User, error) {
	claims := auth.GetUserClaims(r.Context())
	return h.users.GetByID(r.Context(), claims.UserID)
}

// Availability reports how many proxies the caller could claim right now.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	user, err := h.caller(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	avail, err := h.claimer.Availability(r.Context(), user)
	if err != nil {
		api.HandleError(w, mapClaimError(err))
		return
	}
	api.JSON(w, http.StatusOK, avail)
}

// Claim stages a batch of proxies. With "all": true the amount is ignored
// and everything still claimable today is staged.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	user, err := h.caller(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	var claim *StagedClaim
	if req.All {
		claim, err = h.claimer.ClaimAll(r.Context(), user, req.AcceptFewer)
	} else {
		claim, err = h.claimer.Claim(r.Context(), user, req.Amount)
	}
	if err != nil {
		api.HandleError(w, mapClaimError(err))
		return
	}
	api.JSON(w, http.StatusOK, claim)
}

// Staged returns the caller's pending claim.
func (h *Handler) Staged(w http.ResponseWriter, r *http.Request) {
	user, err := h.caller(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	claim, err := h.claimer.Staged(r.Context(), user)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if claim == nil {
		api.HandleError(w, api.NewNotFoundError("no staged claim"))
		return
	}
	api.JSON(w, http.StatusOK, claim)
}

// Finalize consumes the caller's staged claim. The default response is
// JSON; ?format=txt or ?format=xlsx streams the finalized batch as a
// download instead.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	user, err := h.caller(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json", "txt", "xlsx":
	default:
		api.HandleError(w, api.NewBadRequestError("format must be txt or xlsx"))
		return
	}

	result, err := h.claimer.Finalize(r.Context(), user)
	if err != nil {
		api.HandleError(w, mapClaimError(err))
		return
	}

	now := time.Now()
	switch format {
	case "txt":
		name := export.Filename("txt", now)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		_, _ = w.Write(export.TXT(result.URLs))
	case "xlsx":
		deliveries := make([]quota.Delivery, len(result.URLs))
		for i, url := range result.URLs {
			deliveries[i] = quota.NewDelivery(user.ID, url, now)
		}
		buf, err := export.XLSX(deliveries)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		name := export.Filename("xlsx", now)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		_, _ = w.Write(buf.Bytes())
	default:
		api.JSON(w, http.StatusOK, result)
	}
}

// Cancel drops the caller's staged claim.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, err := h.caller(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if err := h.claimer.Cancel(r.Context(), user); err != nil {
		api.HandleError(w, mapClaimError(err))
		return
	}
	api.JSONMessage(w, http.StatusOK, "claim cancelled")
}

// Import bulk-loads newline-separated proxy urls into the pool.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	inserted, skipped, err := h.claimer.Import(r.Context(), claims.UserID, req.Proxies)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int{"inserted": inserted, "skipped": skipped})
}

func mapClaimError(err error) error {
	var (
		cdErr    *InCooldownError
		limitErr *quota.LimitExceededError
		insErr   *InsufficientError
	)
	switch {
	case errors.As(err, &cdErr):
		return api.NewTooManyRequestsError(fmt.Sprintf(
			"in cooldown for another %s", cdErr.Remaining.Truncate(time.Second)))
	case errors.As(err, &limitErr):
		return api.NewBadRequestError(limitErr.Error())
	case errors.As(err, &insErr):
		return api.NewConflictError(insErr.Error())
	case errors.Is(err, ErrContention):
		return api.NewConflictError(ErrContention.Error())
	case errors.Is(err, ErrPoolEmpty):
		return api.NewConflictError(ErrPoolEmpty.Error())
	case errors.Is(err, quota.ErrInvalidAmount):
		return api.NewBadRequestError(quota.ErrInvalidAmount.Error())
	case errors.Is(err, ErrNoStagedClaim):
		return api.NewNotFoundError(ErrNoStagedClaim.Error())
	case errors.Is(err, users.ErrNotFound):
		return api.NewNotFoundError("user not found")
	}
	return err
}
