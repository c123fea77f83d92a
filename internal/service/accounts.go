package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/auth"
	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/repository"
	"github.com/mmeshcher/marketplace/internal/validation"
)

// SignupInput содержит данные регистрации.
type SignupInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     model.Role
}

// Session содержит выданный токен вместе с профилем владельца.
type Session struct {
	Account   *model.Account
	Token     string
	ExpiresAt time.Time
}

// Signup регистрирует покупателя или продавца. Продавец создаётся в статусе pending.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)

	if !validation.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if phone != "" && !validation.IsValidPhone(phone) {
		return nil, fmt.Errorf("%w: phone is invalid", ErrInvalidInput)
	}

	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleVendor {
		return nil, fmt.Errorf("%w: role must be user or vendor", ErrInvalidInput)
	}

	hash, err := s.credentials.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}

	a := &model.Account{
		ID:             uuid.NewString(),
		Role:           role,
		Name:           strings.TrimSpace(in.Name),
		Email:          email,
		Phone:          phone,
		PasswordHash:   hash,
		SessionVersion: model.InitialSessionVersion,
		CreatedAt:      s.now().UTC(),
	}
	if role == model.RoleVendor {
		a.VendorStatus = model.VendorStatusPending
	}

	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("account registered", zap.String("accountID", a.ID), zap.String("role", string(a.Role)))
	return s.issue(a)
}

// Login выполняет вход по email или телефону.
func (s *Service) Login(ctx context.Context, identifier, password string) (*Session, error) {
	a, err := s.repo.GetAccountByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.credentials.Verify(a.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if a.Blocked {
		return nil, ErrAccountBlocked
	}
	if a.Role == model.RoleVendor && !a.IsActiveVendor() {
		return nil, fmt.Errorf("%w: status %s", ErrVendorNotActive, a.VendorStatus)
	}

	return s.issue(a)
}

func (s *Service) issue(a *model.Account) (*Session, error) {
	token, expiresAt, err := s.issuer.Issue(a.ID, a.Role, a.SessionVersion)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Account: a, Token: token, ExpiresAt: expiresAt}, nil
}

// EnsureAdmin создаёт администратора, если учётной записи с таким email ещё нет.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	existing, err := s.repo.GetAccountByIdentifier(ctx, email)
	switch {
	case err == nil:
		if existing.Role != model.RoleAdmin {
			return fmt.Errorf("account %s exists with role %s", email, existing.Role)
		}
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	hash, err := s.credentials.Hash(password)
	if err != nil {
		return fmt.Errorf("admin password: %w", err)
	}

	a := &model.Account{
		ID:             uuid.NewString(),
		Role:           model.RoleAdmin,
		Name:           "Administrator",
		Email:          email,
		PasswordHash:   hash,
		SessionVersion: model.InitialSessionVersion,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil
		}
		return err
	}

	s.logger.Info("admin account created", zap.String("accountID", a.ID))
	return nil
}

// normalizeEmail приводит email к виду, в котором он хранится и ищется.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
