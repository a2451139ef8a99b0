package http

import (
	"net/http"

	"github.com/azizikri/storefront/internal/usecase"
)

type RegisterRequest struct {
	Phone    string  `json:"phone" validate:"required,mobile"`
	Password string  `json:"password" validate:"required,min=6,max=64"`
	Username *string `json:"username" validate:"omitempty,min=3,max=32"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

type LoginRequest struct {
	// Account is a username, email or phone number.
	Account  string `json:"account" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.bind(w, r, &req) {
		return
	}

	session, err := h.svc.Auth.Register(r.Context(), usecase.RegisterInput{
		Phone:    req.Phone,
		Password: req.Password,
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, session, "registered")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.bind(w, r, &req) {
		return
	}

	session, err := h.svc.Auth.Login(r.Context(), req.Account, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, session, "logged in")
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.bind(w, r, &req) {
		return
	}

	session, err := h.svc.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, session, "token refreshed")
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Auth.Me(r.Context(), identity(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, user, "ok")
}
