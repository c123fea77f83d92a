package coupon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/repository"
)

var today = time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC)

func newLedger(t *testing.T) (*Ledger, *repository.MemoryStore) {
	t.Helper()

	store := repository.NewMemoryStore()
	return NewLedger(store, func() time.Time { return today }), store
}

func createCoupon(t *testing.T, l *Ledger, vendorID string, limit int, expires time.Time) *model.Coupon {
	t.Helper()

	c, err := l.Create(context.Background(), vendorID, Spec{
		Code:          "spring-10",
		DiscountKind:  model.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		UsageLimit:    limit,
		ExpiresAt:     expires,
	})
	require.NoError(t, err)
	return c
}

func TestReserve_ConcurrentRedemptionsRespectLimit(t *testing.T) {
	l, _ := newLedger(t)
	const limit, callers = 5, 40
	createCoupon(t, l, "v1", limit, today.AddDate(0, 1, 0))

	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		exceeded atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Reserve(context.Background(), "SPRING-10", []string{"v1"})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrLimitExceeded):
				exceeded.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(limit), ok.Load())
	assert.Equal(t, int32(callers-limit), exceeded.Load())
}

func TestReserve_CaseInsensitiveAndScoped(t *testing.T) {
	l, _ := newLedger(t)
	createCoupon(t, l, "v1", 2, today)

	c, err := l.Reserve(context.Background(), "  Spring-10 ", []string{"v2", "v1"})
	require.NoError(t, err)
	assert.Equal(t, "SPRING-10", c.Code)
	assert.Equal(t, 1, c.UsageCount)

	_, err = l.Reserve(context.Background(), "spring-10", []string{"v2"})
	assert.ErrorIs(t, err, ErrNotFoundOrExpired)
}

func TestReserve_ExpiredCoupon(t *testing.T) {
	l, store := newLedger(t)
	require.NoError(t, store.CreateCoupon(context.Background(), &model.Coupon{
		ID: "old", Code: "OLD", DiscountKind: model.DiscountFixed, DiscountValue: decimal.NewFromInt(1),
		UsageLimit: 10, ExpiresAt: today.AddDate(0, 0, -1), Status: model.CouponStatusActive,
	}))

	_, err := l.Reserve(context.Background(), "old", nil)
	var couponErr *Error
	require.True(t, errors.As(err, &couponErr))
	assert.Equal(t, ReasonNotFoundOrExpired, couponErr.Reason)
}

func TestValidate_DoesNotReserve(t *testing.T) {
	l, _ := newLedger(t)
	createCoupon(t, l, "", 1, today)

	for i := 0; i < 3; i++ {
		c, err := l.Validate(context.Background(), "spring-10")
		require.NoError(t, err)
		assert.Equal(t, 0, c.UsageCount)
	}

	reserved, err := l.Reserve(context.Background(), "spring-10", []string{"any"})
	require.NoError(t, err)

	_, err = l.Validate(context.Background(), "spring-10")
	assert.ErrorIs(t, err, ErrLimitExceeded)

	require.NoError(t, l.Release(context.Background(), reserved))
	_, err = l.Validate(context.Background(), "spring-10")
	assert.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	l, _ := newLedger(t)

	tests := []struct {
		name string
		spec Spec
	}{
		{name: "bad code", spec: Spec{Code: "x", DiscountKind: model.DiscountFixed, DiscountValue: decimal.NewFromInt(1), UsageLimit: 1, ExpiresAt: today}},
		{name: "percentage above 100", spec: Spec{Code: "BIG", DiscountKind: model.DiscountPercentage, DiscountValue: decimal.NewFromInt(101), UsageLimit: 1, ExpiresAt: today}},
		{name: "zero fixed", spec: Spec{Code: "ZERO", DiscountKind: model.DiscountFixed, DiscountValue: decimal.Zero, UsageLimit: 1, ExpiresAt: today}},
		{name: "unknown kind", spec: Spec{Code: "KIND", DiscountKind: "bogo", DiscountValue: decimal.NewFromInt(1), UsageLimit: 1, ExpiresAt: today}},
		{name: "percentage with three decimals", spec: Spec{Code: "FINE", DiscountKind: model.DiscountPercentage, DiscountValue: decimal.RequireFromString("12.345"), UsageLimit: 1, ExpiresAt: today}},
		{name: "fixed below a cent", spec: Spec{Code: "DUST", DiscountKind: model.DiscountFixed, DiscountValue: decimal.RequireFromString("0.001"), UsageLimit: 1, ExpiresAt: today}},
		{name: "zero limit", spec: Spec{Code: "LIMIT", DiscountKind: model.DiscountFixed, DiscountValue: decimal.NewFromInt(1), ExpiresAt: today}},
		{name: "past expiry", spec: Spec{Code: "PAST", DiscountKind: model.DiscountFixed, DiscountValue: decimal.NewFromInt(1), UsageLimit: 1, ExpiresAt: today.AddDate(0, 0, -1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Create(context.Background(), "v1", tt.spec)
			assert.ErrorIs(t, err, ErrInvalidCoupon)
		})
	}
}

func TestCreate_DuplicateActiveCode(t *testing.T) {
	l, _ := newLedger(t)
	createCoupon(t, l, "v1", 1, today)

	_, err := l.Create(context.Background(), "v2", Spec{
		Code: "SPRING-10", DiscountKind: model.DiscountFixed, DiscountValue: decimal.NewFromInt(3),
		UsageLimit: 1, ExpiresAt: today,
	})
	assert.ErrorIs(t, err, repository.ErrCouponExists)
}
