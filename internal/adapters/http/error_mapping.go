package httpadapter

import (
	"net/http"

	"github.com/akazantsev/specqa/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsTimeout(err):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps backend details out of responses; 4xx messages
// are safe to forward.
func publicErrorMessage(err error, status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		return err.Error()
	case http.StatusGatewayTimeout:
		return "the request timed out, try a narrower question"
	case http.StatusServiceUnavailable:
		return "a backend dependency is unavailable, try again shortly"
	default:
		return "internal error"
	}
}
