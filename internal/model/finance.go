package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind описывает способ расчёта скидки по купону.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

// CouponStatus описывает статус купона.
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusInactive CouponStatus = "inactive"
)

// Coupon описывает скидочный купон продавца. Пустой VendorID означает купон площадки.
type Coupon struct {
	ID            string
	Code          string
	VendorID      string
	DiscountKind  DiscountKind
	DiscountValue decimal.Decimal
	UsageCount    int
	UsageLimit    int
	ExpiresAt     time.Time
	Status        CouponStatus
	CreatedAt     time.Time
}

// AppliesTo сообщает, действует ли купон хотя бы для одного из продавцов.
func (c *Coupon) AppliesTo(vendorIDs []string) bool {
	if c.VendorID == "" {
		return true
	}
	for _, id := range vendorIDs {
		if id == c.VendorID {
			return true
		}
	}
	return false
}

// ActiveOn сообщает, действует ли купон в указанный календарный день.
func (c *Coupon) ActiveOn(day time.Time) bool {
	return c.Status == CouponStatusActive && !DateOf(c.ExpiresAt).Before(DateOf(day))
}

// NormalizeCouponCode приводит код купона к каноническому виду.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DateOf отбрасывает время суток, оставляя календарную дату в UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WithdrawalStatus описывает статус заявки на вывод средств.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

// Withdrawal описывает заявку продавца на выплату.
type Withdrawal struct {
	ID          string
	VendorID    string
	Amount      decimal.Decimal
	Method      string
	Status      WithdrawalStatus
	Reason      string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Notification описывает уведомление для получателя.
type Notification struct {
	ID          string
	RecipientID string
	Title       string
	Message     string
	Kind        string
	Read        bool
	CreatedAt   time.Time
}
