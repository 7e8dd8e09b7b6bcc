package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/proxydesk/proxydesk/internal/api"
)

// Account is the slice of a user record the auth flow needs.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Accounts abstracts the user store so this package stays free of a
// dependency on the users package.
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (Account, error)
	Authenticate(ctx context.Context, username, password string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type authResponse struct {
	Account Account    `json:"account"`
	Tokens  *TokenPair `json:"tokens"`
}

type Handler struct {
	service  *Service
	accounts Accounts
	validate *validator.Validate
}

func NewHandler(service *Service, accounts Accounts) *Handler {
	return &Handler{
		service:  service,
		accounts: accounts,
		validate: validator.New(),
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	account, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	tokens, err := h.service.GenerateTokens(account.ID, account.Username, account.Role)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, authResponse{Account: account, Tokens: tokens})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	account, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	tokens, err := h.service.GenerateTokens(account.ID, account.Username, account.Role)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, authResponse{Account: account, Tokens: tokens})
}

// Refresh rotates a refresh token. The account is re-read so the new access
// token carries the current role rather than the one at login time.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	userID, err := h.service.PeekRefreshToken(req.RefreshToken)
	if err != nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}
	account, err := h.accounts.GetByID(r.Context(), userID)
	if err != nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	tokens, err := h.service.RefreshTokens(req.RefreshToken, account.Username, account.Role)
	if err != nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}
	api.JSON(w, http.StatusOK, authResponse{Account: account, Tokens: tokens})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetUserClaims(r.Context())
	if err := h.service.Logout(claims.UserID); err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "logged out")
}
