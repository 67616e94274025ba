package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
)

// Stable machine-readable reason codes surfaced to clients. The storefront
// and admin console switch on these, never on message text.
const (
	codeValidationError       = "VALIDATION_ERROR"
	codeSessionOverlap        = "SESSION_OVERLAP"
	codeNotFound              = "NOT_FOUND"
	codeSessionNotActive      = "SESSION_NOT_ACTIVE"
	codeOutOfStock            = "OUT_OF_STOCK"
	codeUserLimitExceeded     = "USER_LIMIT_EXCEEDED"
	codeDuplicateRequest      = "DUPLICATE_REQUEST"
	codeTimeout               = "TIMEOUT"
	codeInvalidQuantity       = "INVALID_QUANTITY"
	codeCannotDeleteWithSales = "CANNOT_DELETE_WITH_SALES"
	codeNotCancellable        = "NOT_CANCELLABLE"
	codeAlreadyReleased       = "ALREADY_RELEASED"
	codeDuplicateProduct      = "DUPLICATE_PRODUCT"
	codeUnauthorized          = "UNAUTHORIZED"
	codeForbidden             = "FORBIDDEN"
	codeRateLimited           = "RATE_LIMITED"
	codeInternalError         = "INTERNAL_ERROR"
)

func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, codeInternalError

	switch {
	case errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrInvalidTimeRange),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidMaxPerUser),
		errors.Is(err, domain.ErrMissingField):
		status, code = http.StatusBadRequest, codeValidationError
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrQuantityBelowSold):
		status, code = http.StatusBadRequest, codeInvalidQuantity
	case errors.Is(err, domain.ErrSessionOverlap):
		status, code = http.StatusConflict, codeSessionOverlap
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrReservationNotFound):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrSessionNotActive):
		status, code = http.StatusConflict, codeSessionNotActive
	case errors.Is(err, domain.ErrOutOfStock):
		status, code = http.StatusGone, codeOutOfStock
	case errors.Is(err, domain.ErrUserLimitExceeded):
		status, code = http.StatusConflict, codeUserLimitExceeded
	case errors.Is(err, domain.ErrDuplicateRequest):
		status, code = http.StatusConflict, codeDuplicateRequest
	case errors.Is(err, domain.ErrLockTimeout):
		status, code = http.StatusServiceUnavailable, codeTimeout
	case errors.Is(err, domain.ErrCannotDeleteWithSales):
		status, code = http.StatusConflict, codeCannotDeleteWithSales
	case errors.Is(err, domain.ErrNotCancellable):
		status, code = http.StatusConflict, codeNotCancellable
	case errors.Is(err, domain.ErrAlreadyReleased):
		status, code = http.StatusConflict, codeAlreadyReleased
	case errors.Is(err, domain.ErrDuplicateProduct):
		status, code = http.StatusConflict, codeDuplicateProduct
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	c.JSON(status, gin.H{"error": message, "code": code})
}
