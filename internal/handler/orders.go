package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace/internal/coupon"
	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/service"
)

type checkoutRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	CouponCode string `json:"coupon_code"`
}

// Checkout оформляет заказ текущего покупателя.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	buyer, ok := currentAccount(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	in := service.CheckoutInput{CouponCode: req.CouponCode}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	receipt, err := h.service.Checkout(r.Context(), buyer, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrder(receipt.Order))
}

// ListOrders возвращает заказы текущего покупателя.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	buyer, ok := currentAccount(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), buyer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

// ValidateCoupon проверяет купон без резервирования.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.ValidateCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCoupon(c))
}

type createCouponRequest struct {
	Code          string          `json:"code"`
	DiscountKind  string          `json:"discount_kind"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	UsageLimit    int             `json:"usage_limit"`
	ExpiresAt     string          `json:"expires_at"`
}

// CreateCoupon создаёт купон текущего продавца.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	vendor, ok := currentAccount(w, r)
	if !ok {
		return
	}

	var req createCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	expires, err := time.Parse(dateLayout, req.ExpiresAt)
	if err != nil {
		http.Error(w, "expires_at must be a date in YYYY-MM-DD format", http.StatusBadRequest)
		return
	}

	c, err := h.service.CreateCoupon(r.Context(), vendor, coupon.Spec{
		Code:          req.Code,
		DiscountKind:  model.DiscountKind(req.DiscountKind),
		DiscountValue: req.DiscountValue,
		UsageLimit:    req.UsageLimit,
		ExpiresAt:     expires,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCoupon(c))
}

// VendorOrders возвращает заказы с позициями текущего продавца.
func (h *Handler) VendorOrders(w http.ResponseWriter, r *http.Request) {
	vendor, ok := currentAccount(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListVendorOrders(r.Context(), vendor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

type itemStatusRequest struct {
	Status string `json:"status"`
}

// UpdateItemStatus меняет статус позиций текущего продавца в заказе.
func (h *Handler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	vendor, ok := currentAccount(w, r)
	if !ok {
		return
	}

	var req itemStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	o, err := h.service.UpdateItemStatus(r.Context(), vendor, chi.URLParam(r, "id"), model.ItemStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrder(o))
}
