package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/marketplace/internal/model"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

type accountAction func(ctx context.Context, actor *model.Account, id string) (*model.Account, error)

// moderate применяет действие администратора к учётной записи из пути запроса.
func (h *Handler) moderate(action accountAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := currentAccount(w, r)
		if !ok {
			return
		}

		a, err := action(r.Context(), admin, chi.URLParam(r, "id"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAccount(a))
	}
}

// Block блокирует учётную запись.
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	h.moderate(h.service.Block)(w, r)
}

// Unblock снимает блокировку.
func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.moderate(h.service.Unblock)(w, r)
}

// ForceLogout завершает все сессии учётной записи.
func (h *Handler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	h.moderate(h.service.ForceLogout)(w, r)
}

// ApproveVendor одобряет продавца.
func (h *Handler) ApproveVendor(w http.ResponseWriter, r *http.Request) {
	h.moderate(h.service.ApproveVendor)(w, r)
}

// RejectVendor отклоняет продавца. Причина передаётся в теле запроса и необязательна.
func (h *Handler) RejectVendor(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	h.moderate(func(ctx context.Context, actor *model.Account, id string) (*model.Account, error) {
		return h.service.RejectVendor(ctx, actor, id, req.Reason)
	})(w, r)
}

// ListPayouts возвращает заявки на выплату, ожидающие решения.
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAccount(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListPendingPayouts(r.Context(), admin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawals(list))
}

// ApprovePayout подтверждает выплату.
func (h *Handler) ApprovePayout(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAccount(w, r)
	if !ok {
		return
	}

	wd, err := h.service.ApprovePayout(r.Context(), admin, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawal(wd))
}

// RejectPayout отклоняет выплату.
func (h *Handler) RejectPayout(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAccount(w, r)
	if !ok {
		return
	}

	var req reasonRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	wd, err := h.service.RejectPayout(r.Context(), admin, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawal(wd))
}
