// Package service реализует сценарии маркетплейса: учётные записи, оформление заказов,
// модерацию, финансы продавцов и уведомления.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/marketplace/internal/auth"
	"github.com/mmeshcher/marketplace/internal/coupon"
	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/repository"
	"github.com/mmeshcher/marketplace/internal/settlement"
)

var (
	// ErrForbidden возвращается, если у аутентифицированного пользователя нет нужной роли.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials возвращается при неверном идентификаторе или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountBlocked возвращается при входе заблокированной учётной записи.
	ErrAccountBlocked = errors.New("account is blocked")
	// ErrVendorNotActive возвращается, если продавец ещё не одобрен или отклонён.
	ErrVendorNotActive = errors.New("vendor account is not active")
	// ErrInvalidInput возвращается при некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidTransition возвращается при недопустимой смене статуса.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByIdentifier(ctx context.Context, identifier string) (*model.Account, error)
	SetBlocked(ctx context.Context, id string, blocked bool) (*model.Account, error)
	BumpSessionVersion(ctx context.Context, id string) (*model.Account, error)
	TransitionVendorStatus(ctx context.Context, id string, from, to model.VendorStatus, reason string) (*model.Account, error)

	GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error)

	coupon.Store
	settlement.Store

	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error)
	ListOrdersByVendor(ctx context.Context, vendorID string) ([]model.Order, error)
	UpdateVendorItemStatus(ctx context.Context, orderID, vendorID string, from, to model.ItemStatus) (*model.Order, error)

	CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error
	ListWithdrawalsByStatus(ctx context.Context, status model.WithdrawalStatus) ([]model.Withdrawal, error)
	CompleteWithdrawal(ctx context.Context, id string, verify repository.PayoutCheck) (*model.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, id, reason string) (*model.Withdrawal, error)

	ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, recipientID, id string) error
}

// Notifier добавляет уведомление получателю. Ошибки доставки не возвращаются.
type Notifier interface {
	Emit(ctx context.Context, recipientID, title, message, kind string)
}

// Options содержит настройки сервиса.
type Options struct {
	// AllowOverdraftPayouts разрешает подтверждать выплаты сверх доступного баланса.
	AllowOverdraftPayouts bool
	// PasswordCost задаёт стоимость bcrypt. Ноль означает bcrypt.DefaultCost.
	PasswordCost int
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	repo        Repository
	credentials *auth.Credentials
	issuer      *auth.Issuer
	coupons     *coupon.Ledger
	settlement  *settlement.Calculator
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

// NewService создаёт сервис поверх репозитория.
func NewService(repo Repository, issuer *auth.Issuer, notifier Notifier, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cost := opts.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Service{
		repo:        repo,
		credentials: auth.NewCredentials(cost),
		issuer:      issuer,
		coupons:     coupon.NewLedger(repo, time.Now),
		settlement:  settlement.NewCalculator(repo, opts.AllowOverdraftPayouts),
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) notify(ctx context.Context, recipientID, title, message, kind string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(ctx, recipientID, title, message, kind)
}

func requireRole(actor *model.Account, roles ...model.Role) error {
	if actor == nil {
		return ErrForbidden
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

func requireActiveVendor(actor *model.Account) error {
	if err := requireRole(actor, model.RoleVendor); err != nil {
		return err
	}
	if !actor.IsActiveVendor() {
		return ErrVendorNotActive
	}
	return nil
}
