// Package settlement рассчитывает суммы заказа, комиссию площадки и баланс продавца.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace/internal/model"
)

// CommissionRate задаёт долю площадки от валовой выручки продавца.
var CommissionRate = decimal.RequireFromString("0.10")

// ErrInsufficientBalance возвращается, если сумма выплаты превышает доступный баланс продавца.
var ErrInsufficientBalance = errors.New("insufficient balance")

var hundred = decimal.NewFromInt(100)

// Quote содержит суммы заказа с учётом скидки.
type Quote struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Price считает подытог по позициям и применяет скидку купона c (может быть nil).
// Процентная скидка округляется до копеек, фиксированная не превышает подытог.
func Price(items []model.LineItem, c *model.Coupon) Quote {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount())
	}

	discount := decimal.Zero
	if c != nil {
		switch c.DiscountKind {
		case model.DiscountPercentage:
			discount = subtotal.Mul(c.DiscountValue).Div(hundred).Round(2)
		case model.DiscountFixed:
			discount = c.DiscountValue
		}
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}
	}

	return Quote{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

// Split делит валовую сумму на комиссию (округлённую до копеек) и чистую выручку.
func Split(gross decimal.Decimal) (commission, net decimal.Decimal) {
	commission = gross.Mul(CommissionRate).Round(2)
	return commission, gross.Sub(commission)
}

// Delta описывает вклад одного заказа в показатели продавца.
type Delta struct {
	VendorID   string
	Gross      decimal.Decimal
	Commission decimal.Decimal
	Net        decimal.Decimal
	Items      int
}

// Settle разбивает заказ по продавцам. Результат отсортирован по идентификатору продавца.
func Settle(o model.Order) []Delta {
	byVendor := make(map[string]*Delta)
	for _, it := range o.Items {
		d, ok := byVendor[it.VendorID]
		if !ok {
			d = &Delta{VendorID: it.VendorID, Gross: decimal.Zero}
			byVendor[it.VendorID] = d
		}
		d.Gross = d.Gross.Add(it.Amount())
		d.Items += it.Quantity
	}

	res := make([]Delta, 0, len(byVendor))
	for _, d := range byVendor {
		d.Commission, d.Net = Split(d.Gross)
		res = append(res, *d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].VendorID < res[j].VendorID })
	return res
}

// Store предоставляет историю продаж и выплат продавца.
type Store interface {
	ListVendorItems(ctx context.Context, vendorID string) ([]model.LineItem, error)
	ListWithdrawalsByVendor(ctx context.Context, vendorID string) ([]model.Withdrawal, error)
}

// Calculator выводит баланс продавца из полной истории заказов и выплат.
// Показатели не хранятся, а пересчитываются при каждом запросе.
type Calculator struct {
	store          Store
	allowOverdraft bool
}

// NewCalculator создаёт Calculator. allowOverdraft разрешает подтверждать выплаты сверх доступного баланса.
func NewCalculator(store Store, allowOverdraft bool) *Calculator {
	return &Calculator{store: store, allowOverdraft: allowOverdraft}
}

// Statement возвращает показатели продавца и историю его выплат.
func (c *Calculator) Statement(ctx context.Context, vendorID string) (model.Ledger, []model.Withdrawal, error) {
	return statement(ctx, c.store, vendorID)
}

func statement(ctx context.Context, store Store, vendorID string) (model.Ledger, []model.Withdrawal, error) {
	items, err := store.ListVendorItems(ctx, vendorID)
	if err != nil {
		return model.Ledger{}, nil, fmt.Errorf("list vendor items: %w", err)
	}
	withdrawals, err := store.ListWithdrawalsByVendor(ctx, vendorID)
	if err != nil {
		return model.Ledger{}, nil, fmt.Errorf("list withdrawals: %w", err)
	}

	gross := decimal.Zero
	for _, it := range items {
		gross = gross.Add(it.Amount())
	}
	commission, net := Split(gross)

	withdrawn, pending := decimal.Zero, decimal.Zero
	for _, w := range withdrawals {
		switch w.Status {
		case model.WithdrawalStatusCompleted:
			withdrawn = withdrawn.Add(w.Amount)
		case model.WithdrawalStatusPending:
			pending = pending.Add(w.Amount)
		}
	}

	return model.Ledger{
		Gross:      gross,
		Commission: commission,
		Net:        net,
		Withdrawn:  withdrawn,
		Pending:    pending,
		Available:  net.Sub(withdrawn),
	}, withdrawals, nil
}

// Ledger возвращает показатели продавца.
func (c *Calculator) Ledger(ctx context.Context, vendorID string) (model.Ledger, error) {
	l, _, err := c.Statement(ctx, vendorID)
	return l, err
}

// VerifyPayout проверяет, что подтверждение выплаты w не уведёт баланс продавца в минус.
func (c *Calculator) VerifyPayout(ctx context.Context, w model.Withdrawal) error {
	return c.VerifyPayoutFrom(ctx, c.store, w)
}

// VerifyPayoutFrom выполняет ту же проверку, читая историю продавца из history.
// Хранилище передаёт сюда представление своей транзакции, в которой удерживается блокировка продавца.
func (c *Calculator) VerifyPayoutFrom(ctx context.Context, history Store, w model.Withdrawal) error {
	if c.allowOverdraft {
		return nil
	}

	l, _, err := statement(ctx, history, w.VendorID)
	if err != nil {
		return err
	}
	if w.Amount.GreaterThan(l.Available) {
		return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientBalance,
			w.Amount.StringFixed(2), l.Available.StringFixed(2))
	}
	return nil
}
