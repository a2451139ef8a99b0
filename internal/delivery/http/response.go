package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/rs/zerolog/hlog"
)

type envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Errors    any       `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int64 `json:"totalPages"`
}

type pageData[T any] struct {
	Items      []T        `json:"items"`
	Pagination pagination `json:"pagination"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	body.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func created(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

func paginated[T any](w http.ResponseWriter, res domain.PageResult[T]) {
	items := res.Items
	if items == nil {
		items = []T{}
	}
	var pages int64
	if res.PageSize > 0 {
		pages = (res.Total + int64(res.PageSize) - 1) / int64(res.PageSize)
	}
	ok(w, pageData[T]{
		Items: items,
		Pagination: pagination{
			Total:      res.Total,
			Page:       res.Page,
			PageSize:   res.PageSize,
			TotalPages: pages,
		},
	}, "ok")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps err onto the error taxonomy. Unclassified errors are
// logged and reported as 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := domain.Message(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		if !h.exposeErrors {
			message = "internal server error"
		}
	}
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func (h *Handler) writeValidation(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "validation failed", Errors: fields})
}
