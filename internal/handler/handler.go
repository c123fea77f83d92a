// Package handler содержит HTTP-обработчики API маркетплейса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/coupon"
	"github.com/mmeshcher/marketplace/internal/middleware"
	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/ratelimit"
	"github.com/mmeshcher/marketplace/internal/repository"
	"github.com/mmeshcher/marketplace/internal/service"
	"github.com/mmeshcher/marketplace/internal/settlement"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.Session, error)
	Login(ctx context.Context, identifier, password string) (*service.Session, error)

	Checkout(ctx context.Context, buyer *model.Account, in service.CheckoutInput) (*service.Receipt, error)
	ListOrders(ctx context.Context, buyer *model.Account) ([]model.Order, error)
	ListVendorOrders(ctx context.Context, vendor *model.Account) ([]model.Order, error)
	UpdateItemStatus(ctx context.Context, vendor *model.Account, orderID string, to model.ItemStatus) (*model.Order, error)

	ValidateCoupon(ctx context.Context, code string) (*model.Coupon, error)
	CreateCoupon(ctx context.Context, vendor *model.Account, spec coupon.Spec) (*model.Coupon, error)

	Block(ctx context.Context, actor *model.Account, id string) (*model.Account, error)
	Unblock(ctx context.Context, actor *model.Account, id string) (*model.Account, error)
	ForceLogout(ctx context.Context, actor *model.Account, id string) (*model.Account, error)
	ApproveVendor(ctx context.Context, actor *model.Account, id string) (*model.Account, error)
	RejectVendor(ctx context.Context, actor *model.Account, id, reason string) (*model.Account, error)

	VendorFinance(ctx context.Context, vendor *model.Account) (*service.Finance, error)
	RequestWithdrawal(ctx context.Context, vendor *model.Account, amount decimal.Decimal, method string) (*model.Withdrawal, error)
	ListPendingPayouts(ctx context.Context, actor *model.Account) ([]model.Withdrawal, error)
	ApprovePayout(ctx context.Context, actor *model.Account, id string) (*model.Withdrawal, error)
	RejectPayout(ctx context.Context, actor *model.Account, id, reason string) (*model.Withdrawal, error)

	Notifications(ctx context.Context, account *model.Account) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, account *model.Account, id string) error
}

// Options содержит настройки HTTP-слоя.
type Options struct {
	Limiter           ratelimit.Limiter
	LoginPolicy       ratelimit.Policy
	CheckoutPolicy    ratelimit.Policy
	AllowedOrigins    []string
	TrustProxyHeaders bool
}

// Handler реализует HTTP-обработчики API маркетплейса.
type Handler struct {
	service Service
	logger  *zap.Logger
	session *middleware.SessionGuard
	opts    Options
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, session *middleware.SessionGuard, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewMemoryLimiter(nil)
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	return &Handler{
		service: s,
		logger:  logger,
		session: session,
		opts:    opts,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeOptionalJSON допускает пустое тело запроса.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := decodeJSON(r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func badRequest(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
}

// writeError переводит ошибку бизнес-логики в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var couponErr *coupon.Error
	if errors.As(err, &couponErr) {
		status := http.StatusNotFound
		if couponErr.Reason == coupon.ReasonLimitExceeded {
			status = http.StatusConflict
		}
		http.Error(w, couponErr.Error(), status)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, service.ErrAccountBlocked),
		errors.Is(err, service.ErrVendorNotActive):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, service.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, settlement.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrAccountExists),
		errors.Is(err, repository.ErrCouponExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ratelimit.ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// currentAccount возвращает учётную запись из контекста или пишет 401.
func currentAccount(w http.ResponseWriter, r *http.Request) (*model.Account, bool) {
	a, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}
	return a, true
}
