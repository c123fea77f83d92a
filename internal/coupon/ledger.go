// Package coupon реализует учёт купонов: проверку, атомарное резервирование и компенсацию.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/repository"
	"github.com/mmeshcher/marketplace/internal/validation"
)

// Reason описывает причину отказа в применении купона.
type Reason string

const (
	ReasonNotFoundOrExpired Reason = "not_found_or_expired"
	ReasonLimitExceeded     Reason = "limit_exceeded"
)

// Error описывает ошибку применения купона.
type Error struct {
	Reason Reason
	Code   string
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonLimitExceeded:
		return fmt.Sprintf("coupon %s usage limit exceeded", e.Code)
	default:
		return fmt.Sprintf("coupon %s not found or expired", e.Code)
	}
}

// Is сравнивает ошибки по причине.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

var (
	// ErrNotFoundOrExpired используется как шаблон для errors.Is.
	ErrNotFoundOrExpired = &Error{Reason: ReasonNotFoundOrExpired}
	// ErrLimitExceeded используется как шаблон для errors.Is.
	ErrLimitExceeded = &Error{Reason: ReasonLimitExceeded}
	// ErrInvalidCoupon возвращается при создании купона с некорректными параметрами.
	ErrInvalidCoupon = errors.New("invalid coupon")
)

// Store описывает хранилище купонов. ReserveCoupon обязан проверять лимит и увеличивать счётчик атомарно.
type Store interface {
	CreateCoupon(ctx context.Context, c *model.Coupon) error
	FindActiveCoupon(ctx context.Context, code string, day time.Time) (*model.Coupon, error)
	ReserveCoupon(ctx context.Context, code string, day time.Time, vendorScope []string) (*model.Coupon, error)
	ReleaseCoupon(ctx context.Context, id string) error
}

// Ledger проверяет и резервирует купоны.
type Ledger struct {
	store Store
	now   func() time.Time
}

// NewLedger создаёт Ledger. now == nil означает time.Now.
func NewLedger(store Store, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, now: now}
}

// Validate проверяет купон без резервирования.
func (l *Ledger) Validate(ctx context.Context, code string) (*model.Coupon, error) {
	code = model.NormalizeCouponCode(code)

	c, err := l.store.FindActiveCoupon(ctx, code, l.now())
	if err != nil {
		return nil, l.translate(code, err)
	}
	if c.UsageCount >= c.UsageLimit {
		return nil, &Error{Reason: ReasonLimitExceeded, Code: code}
	}
	return c, nil
}

// Reserve проверяет купон и увеличивает счётчик использований одной атомарной операцией хранилища.
// vendorScope ограничивает купон продавцами заказа; nil отключает проверку.
func (l *Ledger) Reserve(ctx context.Context, code string, vendorScope []string) (*model.Coupon, error) {
	code = model.NormalizeCouponCode(code)

	c, err := l.store.ReserveCoupon(ctx, code, l.now(), vendorScope)
	if err != nil {
		return nil, l.translate(code, err)
	}
	return c, nil
}

// Release отменяет резервирование, если заказ не удалось сохранить.
func (l *Ledger) Release(ctx context.Context, c *model.Coupon) error {
	if err := l.store.ReleaseCoupon(ctx, c.ID); err != nil {
		return fmt.Errorf("release coupon %s: %w", c.Code, err)
	}
	return nil
}

// Spec содержит параметры нового купона.
type Spec struct {
	Code          string
	DiscountKind  model.DiscountKind
	DiscountValue decimal.Decimal
	UsageLimit    int
	ExpiresAt     time.Time
}

// Create создаёт купон продавца.
func (l *Ledger) Create(ctx context.Context, vendorID string, s Spec) (*model.Coupon, error) {
	code := model.NormalizeCouponCode(s.Code)
	if err := l.check(code, s); err != nil {
		return nil, err
	}

	c := &model.Coupon{
		ID:            uuid.NewString(),
		Code:          code,
		VendorID:      vendorID,
		DiscountKind:  s.DiscountKind,
		DiscountValue: s.DiscountValue,
		UsageLimit:    s.UsageLimit,
		ExpiresAt:     model.DateOf(s.ExpiresAt),
		Status:        model.CouponStatusActive,
	}
	if err := l.store.CreateCoupon(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (l *Ledger) check(code string, s Spec) error {
	if !validation.IsValidCouponCode(code) {
		return fmt.Errorf("%w: code must be 3-32 letters, digits, '-' or '_'", ErrInvalidCoupon)
	}

	switch s.DiscountKind {
	case model.DiscountPercentage:
		if !s.DiscountValue.IsPositive() || s.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: percentage must be in (0, 100]", ErrInvalidCoupon)
		}
	case model.DiscountFixed:
		if !s.DiscountValue.IsPositive() {
			return fmt.Errorf("%w: fixed discount must be positive", ErrInvalidCoupon)
		}
	default:
		return fmt.Errorf("%w: unknown discount kind %q", ErrInvalidCoupon, s.DiscountKind)
	}
	// в хранилище значение скидки лежит в сотых долях
	if !s.DiscountValue.Equal(s.DiscountValue.Round(2)) {
		return fmt.Errorf("%w: discount value allows at most two decimal places", ErrInvalidCoupon)
	}

	if s.UsageLimit < 1 {
		return fmt.Errorf("%w: usage limit must be at least 1", ErrInvalidCoupon)
	}
	if model.DateOf(s.ExpiresAt).Before(model.DateOf(l.now())) {
		return fmt.Errorf("%w: expiry date is in the past", ErrInvalidCoupon)
	}
	return nil
}

func (l *Ledger) translate(code string, err error) error {
	switch {
	case errors.Is(err, repository.ErrCouponNotFound):
		return &Error{Reason: ReasonNotFoundOrExpired, Code: code}
	case errors.Is(err, repository.ErrCouponLimitReached):
		return &Error{Reason: ReasonLimitExceeded, Code: code}
	default:
		return fmt.Errorf("coupon %s: %w", code, err)
	}
}
