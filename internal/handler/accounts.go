package handler

import (
	"net/http"
	"strings"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/service"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Signup регистрирует покупателя или продавца и выдаёт токен.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	sess, err := h.service.Signup(r.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     model.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSession(sess))
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
}

func (req loginRequest) identifier() string {
	for _, v := range []string{req.Identifier, req.Email, req.Phone} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// Login выполняет вход по email или телефону.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	id := req.identifier()
	if id == "" || req.Password == "" {
		badRequest(w)
		return
	}

	sess, err := h.service.Login(r.Context(), id, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSession(sess))
}

// Me возвращает профиль текущей учётной записи.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAccount(a))
}
