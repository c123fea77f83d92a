package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/service"
)

const dateLayout = "2006-01-02"

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type accountResponse struct {
	ID              string `json:"id"`
	Role            string `json:"role"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Blocked         bool   `json:"blocked"`
	VendorStatus    string `json:"vendor_status,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func toAccount(a *model.Account) accountResponse {
	return accountResponse{
		ID:              a.ID,
		Role:            string(a.Role),
		Name:            a.Name,
		Email:           a.Email,
		Phone:           a.Phone,
		Blocked:         a.Blocked,
		VendorStatus:    string(a.VendorStatus),
		RejectionReason: a.RejectionReason,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt string          `json:"expires_at"`
	Account   accountResponse `json:"account"`
}

func toSession(s *service.Session) sessionResponse {
	return sessionResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
		Account:   toAccount(s.Account),
	}
}

type itemResponse struct {
	ProductID string `json:"product_id"`
	VendorID  string `json:"vendor_id"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
}

type orderResponse struct {
	ID         string         `json:"id"`
	BuyerID    string         `json:"buyer_id"`
	Items      []itemResponse `json:"items"`
	Subtotal   string         `json:"subtotal"`
	Discount   string         `json:"discount"`
	Total      string         `json:"total"`
	CouponCode string         `json:"coupon_code,omitempty"`
	Status     string         `json:"status"`
	CreatedAt  string         `json:"created_at"`
}

func toOrder(o *model.Order) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResponse{
			ProductID: it.ProductID,
			VendorID:  it.VendorID,
			UnitPrice: money(it.UnitPrice),
			Quantity:  it.Quantity,
			Status:    string(it.Status),
		})
	}
	return orderResponse{
		ID:         o.ID,
		BuyerID:    o.BuyerID,
		Items:      items,
		Subtotal:   money(o.Subtotal),
		Discount:   money(o.Discount),
		Total:      money(o.Total),
		CouponCode: o.CouponCode,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
	}
}

func toOrders(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrder(&orders[i]))
	}
	return resp
}

type couponResponse struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	VendorID      string `json:"vendor_id,omitempty"`
	DiscountKind  string `json:"discount_kind"`
	DiscountValue string `json:"discount_value"`
	UsageCount    int    `json:"usage_count"`
	UsageLimit    int    `json:"usage_limit"`
	ExpiresAt     string `json:"expires_at"`
	Status        string `json:"status"`
}

func toCoupon(c *model.Coupon) couponResponse {
	return couponResponse{
		ID:            c.ID,
		Code:          c.Code,
		VendorID:      c.VendorID,
		DiscountKind:  string(c.DiscountKind),
		DiscountValue: c.DiscountValue.String(),
		UsageCount:    c.UsageCount,
		UsageLimit:    c.UsageLimit,
		ExpiresAt:     c.ExpiresAt.Format(dateLayout),
		Status:        string(c.Status),
	}
}

type withdrawalResponse struct {
	ID          string  `json:"id"`
	VendorID    string  `json:"vendor_id"`
	Amount      string  `json:"amount"`
	Method      string  `json:"method"`
	Status      string  `json:"status"`
	Reason      string  `json:"reason,omitempty"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}

func toWithdrawal(w *model.Withdrawal) withdrawalResponse {
	resp := withdrawalResponse{
		ID:        w.ID,
		VendorID:  w.VendorID,
		Amount:    money(w.Amount),
		Method:    w.Method,
		Status:    string(w.Status),
		Reason:    w.Reason,
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
	}
	if w.ProcessedAt != nil {
		s := w.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}

func toWithdrawals(list []model.Withdrawal) []withdrawalResponse {
	resp := make([]withdrawalResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toWithdrawal(&list[i]))
	}
	return resp
}

type ledgerResponse struct {
	Gross      string `json:"gross"`
	Commission string `json:"commission"`
	Net        string `json:"net"`
	Withdrawn  string `json:"withdrawn"`
	Pending    string `json:"pending"`
	Available  string `json:"available"`
}

type financeResponse struct {
	Ledger      ledgerResponse       `json:"ledger"`
	Withdrawals []withdrawalResponse `json:"withdrawals"`
}

func toFinance(f *service.Finance) financeResponse {
	return financeResponse{
		Ledger: ledgerResponse{
			Gross:      money(f.Ledger.Gross),
			Commission: money(f.Ledger.Commission),
			Net:        money(f.Ledger.Net),
			Withdrawn:  money(f.Ledger.Withdrawn),
			Pending:    money(f.Ledger.Pending),
			Available:  money(f.Ledger.Available),
		},
		Withdrawals: toWithdrawals(f.Withdrawals),
	}
}

type notificationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Kind      string `json:"kind"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func toNotifications(list []model.Notification) []notificationResponse {
	resp := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		resp = append(resp, notificationResponse{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Kind:      n.Kind,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp
}
