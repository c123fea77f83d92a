package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/coupon"
	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/notify"
	"github.com/mmeshcher/marketplace/internal/repository"
	"github.com/mmeshcher/marketplace/internal/settlement"
)

// ErrProductNotFound возвращается, если в корзине есть неизвестный товар.
var ErrProductNotFound = fmt.Errorf("product %w", repository.ErrNotFound)

// CartItem описывает позицию корзины.
type CartItem struct {
	ProductID string
	Quantity  int
}

// CheckoutInput содержит корзину и необязательный код купона.
type CheckoutInput struct {
	Items      []CartItem
	CouponCode string
}

// Receipt содержит результат оформления заказа.
type Receipt struct {
	Order      *model.Order
	Settlement []settlement.Delta
}

// Checkout оформляет заказ: фиксирует цены, резервирует купон, сохраняет заказ,
// считает доли продавцов и рассылает уведомления.
func (s *Service) Checkout(ctx context.Context, buyer *model.Account, in CheckoutInput) (*Receipt, error) {
	if buyer == nil {
		return nil, ErrForbidden
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidInput)
	}

	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity < 1 {
			return nil, fmt.Errorf("%w: each item needs a product id and a positive quantity", ErrInvalidInput)
		}
		ids = append(ids, it.ProductID)
	}

	products, err := s.repo.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	items := make([]model.LineItem, 0, len(in.Items))
	for _, it := range in.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		items = append(items, model.LineItem{
			ProductID: p.ID,
			VendorID:  p.VendorID,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
			Status:    model.ItemStatusProcessing,
		})
	}

	order := &model.Order{
		ID:        uuid.NewString(),
		BuyerID:   buyer.ID,
		Items:     items,
		Status:    model.OrderStatusProcessing,
		CreatedAt: s.now().UTC(),
	}

	var reserved *model.Coupon
	if strings.TrimSpace(in.CouponCode) != "" {
		reserved, err = s.coupons.Reserve(ctx, in.CouponCode, order.VendorIDs())
		if err != nil {
			return nil, err
		}
		order.CouponID = reserved.ID
		order.CouponCode = reserved.Code
	}

	quote := settlement.Price(items, reserved)
	order.Subtotal = quote.Subtotal
	order.Discount = quote.Discount
	order.Total = quote.Total

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		if reserved != nil {
			if relErr := s.coupons.Release(ctx, reserved); relErr != nil {
				s.logger.Error("failed to release coupon after order failure",
					zap.String("couponID", reserved.ID),
					zap.String("orderID", order.ID),
					zap.Error(relErr))
			}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	deltas := settlement.Settle(*order)
	for _, d := range deltas {
		s.logger.Info("order settled",
			zap.String("orderID", order.ID),
			zap.String("vendorID", d.VendorID),
			zap.String("gross", d.Gross.StringFixed(2)),
			zap.String("commission", d.Commission.StringFixed(2)),
			zap.String("net", d.Net.StringFixed(2)))
	}

	s.notify(ctx, buyer.ID, "Order placed",
		fmt.Sprintf("Your order %s for %s is being processed.", order.ID, order.Total.StringFixed(2)), notify.KindOrder)
	for _, d := range deltas {
		s.notify(ctx, d.VendorID, "New order",
			fmt.Sprintf("Order %s: %d item(s), gross %s, net %s.", order.ID, d.Items,
				d.Gross.StringFixed(2), d.Net.StringFixed(2)), notify.KindOrder)
	}

	return &Receipt{Order: order, Settlement: deltas}, nil
}

// ListOrders возвращает заказы покупателя.
func (s *Service) ListOrders(ctx context.Context, buyer *model.Account) ([]model.Order, error) {
	if buyer == nil {
		return nil, ErrForbidden
	}
	return s.repo.ListOrdersByBuyer(ctx, buyer.ID)
}

// ListVendorOrders возвращает заказы с позициями продавца. Чужие позиции не включаются.
func (s *Service) ListVendorOrders(ctx context.Context, vendor *model.Account) ([]model.Order, error) {
	if err := requireActiveVendor(vendor); err != nil {
		return nil, err
	}
	return s.repo.ListOrdersByVendor(ctx, vendor.ID)
}

// UpdateItemStatus меняет статус позиций продавца в заказе. Позиции других продавцов не затрагиваются.
func (s *Service) UpdateItemStatus(ctx context.Context, vendor *model.Account, orderID string, to model.ItemStatus) (*model.Order, error) {
	if err := requireActiveVendor(vendor); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown item status %q", ErrInvalidInput, to)
	}

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from, ok := vendorItemStatus(o, vendor.ID)
	if !ok {
		return nil, fmt.Errorf("order %s has no items of this vendor: %w", orderID, repository.ErrNotFound)
	}
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	updated, err := s.repo.UpdateVendorItemStatus(ctx, orderID, vendor.ID, from, to)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: items changed concurrently", ErrInvalidTransition)
		}
		return nil, err
	}

	s.notify(ctx, updated.BuyerID, "Order update",
		fmt.Sprintf("Items in order %s are now %s.", orderID, to), notify.KindOrderItem)
	return updated, nil
}

func vendorItemStatus(o *model.Order, vendorID string) (model.ItemStatus, bool) {
	for _, it := range o.Items {
		if it.VendorID == vendorID {
			return it.Status, true
		}
	}
	return "", false
}

// ValidateCoupon проверяет купон без резервирования.
func (s *Service) ValidateCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	return s.coupons.Validate(ctx, code)
}

// CreateCoupon создаёт купон продавца.
func (s *Service) CreateCoupon(ctx context.Context, vendor *model.Account, spec coupon.Spec) (*model.Coupon, error) {
	if err := requireActiveVendor(vendor); err != nil {
		return nil, err
	}
	c, err := s.coupons.Create(ctx, vendor.ID, spec)
	if err != nil {
		if errors.Is(err, coupon.ErrInvalidCoupon) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}
	s.logger.Info("coupon created", zap.String("couponID", c.ID), zap.String("vendorID", vendor.ID))
	return c, nil
}
