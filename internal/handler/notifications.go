package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Notifications возвращает уведомления текущей учётной записи.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}

	list, err := h.service.Notifications(r.Context(), a)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotifications(list))
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), a, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
