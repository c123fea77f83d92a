package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/repository"
)

// AccountFinder ищет учётную запись по идентификатору независимо от её роли.
type AccountFinder interface {
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
}

// Validator проверяет предъявленный токен против текущего состояния учётной записи.
type Validator struct {
	issuer   *Issuer
	accounts AccountFinder
}

// NewValidator создаёт Validator.
func NewValidator(issuer *Issuer, accounts AccountFinder) *Validator {
	return &Validator{issuer: issuer, accounts: accounts}
}

// Authorize возвращает актуальную учётную запись владельца токена или *Error.
// Ошибки хранилища возвращаются как есть, чтобы не маскировать их под отказ в доступе.
func (v *Validator) Authorize(ctx context.Context, token string) (*model.Account, error) {
	claims, err := v.issuer.parse(token)
	if err != nil {
		return nil, err
	}

	account, err := v.accounts.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &Error{Reason: ReasonUnknownSubject}
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	if account.Blocked {
		return nil, &Error{Reason: ReasonBlocked}
	}
	if account.SessionVersion != claims.Version {
		return nil, &Error{Reason: ReasonStaleSession}
	}

	return account, nil
}
