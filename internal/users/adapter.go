package users

import (
	"context"

	"github.com/proxydesk/proxydesk/internal/auth"
)

// AccountsAdapter bridges the Service to the auth package's Accounts
// interface.
type AccountsAdapter struct {
	svc *Service
}

func NewAccountsAdapter(svc *Service) *AccountsAdapter {
	return &AccountsAdapter{svc: svc}
}

func toAccount(u *User) auth.Account {
	return auth.Account{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
		Role:     string(u.Role),
	}
}

func (a *AccountsAdapter) Register(ctx context.Context, username, email, password string) (auth.Account, error) {
	u, err := a.svc.Register(ctx, username, email, password)
	if err != nil {
		return auth.Account{}, err
	}
	return toAccount(u), nil
}

func (a *AccountsAdapter) Authenticate(ctx context.Context, username, password string) (auth.Account, error) {
	u, err := a.svc.Authenticate(ctx, username, password)
	if err != nil {
		return auth.Account{}, err
	}
	return toAccount(u), nil
}

func (a *AccountsAdapter) GetByID(ctx context.Context, id string) (auth.Account, error) {
	u, err := a.svc.GetByID(ctx, id)
	if err != nil {
		return auth.Account{}, err
	}
	return toAccount(u), nil
}
