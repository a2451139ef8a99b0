package kafka

import (
	"errors"

	"github.com/azizikri/storefront/internal/domain"
)

const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

const (
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAlreadyClaimed = "ALREADY_CLAIMED"
	ErrCodeSoldOut        = "SOLD_OUT"
	ErrCodeInvalidState   = "INVALID_STATE"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

type ClaimRequest struct {
	SchemaVersion int    `json:"schema_version"`
	CorrelationID string `json:"correlation_id"`
	ReplyTo       string `json:"reply_to"`
	UserID        int64  `json:"user_id"`
	CouponID      int64  `json:"coupon_id"`
}

type ResponsePayload struct {
	SchemaVersion int                `json:"schema_version"`
	CorrelationID string             `json:"correlation_id"`
	Status        string             `json:"status"`
	ErrorCode     string             `json:"error_code,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	UserCoupon    *domain.UserCoupon `json:"user_coupon,omitempty"`
}

func successResponse(correlationID string, uc *domain.UserCoupon) *ResponsePayload {
	return &ResponsePayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: correlationID,
		Status:        StatusSuccess,
		UserCoupon:    uc,
	}
}

func errorResponse(correlationID, code, message string) *ResponsePayload {
	return &ResponsePayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: correlationID,
		Status:        StatusError,
		ErrorCode:     code,
		ErrorMessage:  message,
	}
}

// errorCode classifies a claim failure for the wire. Internal errors are the
// only retryable ones.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return ErrCodeAlreadyClaimed
	case errors.Is(err, domain.ErrSoldOut):
		return ErrCodeSoldOut
	case errors.Is(err, domain.ErrInvalidState):
		return ErrCodeInvalidState
	case errors.Is(err, domain.ErrInvalidInput):
		return ErrCodeInvalidRequest
	}
	return ErrCodeInternalError
}

// decodeError turns a reply error back into the domain error the direct
// path would have returned.
func decodeError(code, message string) error {
	switch code {
	case ErrCodeNotFound:
		return domain.Errorf(domain.ErrNotFound, "%s", message)
	case ErrCodeAlreadyClaimed:
		return domain.ErrAlreadyClaimed
	case ErrCodeSoldOut:
		return domain.ErrSoldOut
	case ErrCodeInvalidState:
		return domain.Errorf(domain.ErrInvalidState, "%s", message)
	case ErrCodeInvalidRequest:
		return domain.Errorf(domain.ErrInvalidInput, "%s", message)
	}
	return errors.New(message)
}
