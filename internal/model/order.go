package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus описывает статус исполнения позиции заказа.
type ItemStatus string

const (
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusShipped    ItemStatus = "shipped"
	ItemStatusDelivered  ItemStatus = "delivered"
	ItemStatusCancelled  ItemStatus = "cancelled"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemStatusProcessing: {ItemStatusShipped, ItemStatusCancelled},
	ItemStatusShipped:    {ItemStatusDelivered},
}

// CanTransitionTo проверяет допустимость перехода позиции в статус next.
func (s ItemStatus) CanTransitionTo(next ItemStatus) bool {
	for _, allowed := range itemTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid сообщает, является ли значение известным статусом позиции.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusProcessing, ItemStatusShipped, ItemStatusDelivered, ItemStatusCancelled:
		return true
	}
	return false
}

// OrderStatus описывает сводный статус заказа.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// LineItem описывает позицию заказа, принадлежащую одному продавцу.
type LineItem struct {
	ProductID string
	VendorID  string
	UnitPrice decimal.Decimal
	Quantity  int
	Status    ItemStatus
}

// Amount возвращает стоимость позиции: цена × количество.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order описывает заказ покупателя. Суммы фиксируются при создании и не пересчитываются.
type Order struct {
	ID         string
	BuyerID    string
	Items      []LineItem
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponID   string
	CouponCode string
	Status     OrderStatus
	CreatedAt  time.Time
}

// VendorIDs возвращает идентификаторы продавцов заказа без повторов в порядке появления.
func (o *Order) VendorIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.VendorID]; ok {
			continue
		}
		seen[it.VendorID] = struct{}{}
		ids = append(ids, it.VendorID)
	}
	return ids
}

// DeriveOrderStatus вычисляет сводный статус заказа по статусам позиций.
func DeriveOrderStatus(items []LineItem) OrderStatus {
	if len(items) == 0 {
		return OrderStatusProcessing
	}

	cancelled := 0
	for _, it := range items {
		switch it.Status {
		case ItemStatusProcessing, ItemStatusShipped:
			return OrderStatusProcessing
		case ItemStatusCancelled:
			cancelled++
		}
	}

	if cancelled == len(items) {
		return OrderStatusCancelled
	}
	return OrderStatusCompleted
}
