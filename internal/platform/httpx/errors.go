package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

const problemBase = "https://odyssey-retail.dev/problems/"

// problemFor picks the response for err. Caller errors keep their message,
// anything else is reported without detail.
func problemFor(err error) ProblemDetail {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return ProblemDetail{Type: problemBase + "not-found", Title: "Not Found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return ProblemDetail{Type: problemBase + "duplicate-request", Title: "Duplicate Request", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, lock.ErrNotObtained):
		return ProblemDetail{Type: problemBase + "busy", Title: "Resource Busy", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, shared.ErrStateConflict):
		return ProblemDetail{Type: problemBase + "state-conflict", Title: "State Conflict", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, shared.ErrValidation):
		return ProblemDetail{Type: problemBase + "validation", Title: "Validation Failed", Status: http.StatusBadRequest, Detail: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return ProblemDetail{Title: "Timeout", Status: http.StatusServiceUnavailable}
	default:
		return ProblemDetail{Title: "Internal Error", Status: http.StatusInternalServerError}
	}
}

// RespondError maps domain errors to RFC7807 responses. Lock contention and
// timeouts carry Retry-After since the same request may succeed shortly.
func RespondError(w http.ResponseWriter, err error) {
	p := problemFor(err)
	if errors.Is(err, lock.ErrNotObtained) || p.Status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	JSON(w, p.Status, p)
}
