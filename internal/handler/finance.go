package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

// VendorFinance возвращает показатели продавца и историю выплат.
func (h *Handler) VendorFinance(w http.ResponseWriter, r *http.Request) {
	vendor, ok := currentAccount(w, r)
	if !ok {
		return
	}

	f, err := h.service.VendorFinance(r.Context(), vendor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toFinance(f))
}

type withdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

// Withdraw создаёт заявку продавца на выплату.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	vendor, ok := currentAccount(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	wd, err := h.service.RequestWithdrawal(r.Context(), vendor, req.Amount, req.Method)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWithdrawal(wd))
}
