package httpapi

import (
	"errors"
	"net/http"

	"skyfire-equipment/internal/domain"
)

// statusFor 错误分类 → HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvariantViolation):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPersistenceFailure), errors.Is(err, domain.ErrCatalogLookupFailure):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrDerivationCycle):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
