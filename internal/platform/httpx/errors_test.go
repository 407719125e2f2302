package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		status     int
		title      string
		retryAfter bool
	}{
		{"not found", fmt.Errorf("%w: order 9", shared.ErrNotFound), http.StatusNotFound, "Not Found", false},
		{"validation", fmt.Errorf("%w: quantity", shared.ErrValidation), http.StatusBadRequest, "Validation Failed", false},
		{"state", fmt.Errorf("%w: order paid", shared.ErrStateConflict), http.StatusConflict, "State Conflict", false},
		{"duplicate", shared.ErrIdempotencyConflict, http.StatusConflict, "Duplicate Request", false},
		{"busy", fmt.Errorf("%w: rows busy: %w", shared.ErrStateConflict, lock.ErrNotObtained), http.StatusConflict, "Resource Busy", true},
		{"timeout", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "Timeout", true},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "Internal Error", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)

			require.Equal(t, tc.status, rr.Code)
			var p ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
			require.Equal(t, tc.title, p.Title)
			require.Equal(t, tc.status, p.Status)
			if tc.retryAfter {
				require.Equal(t, "1", rr.Header().Get("Retry-After"))
			} else {
				require.Empty(t, rr.Header().Get("Retry-After"))
			}
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("password=hunter2"))
	require.NotContains(t, rr.Body.String(), "hunter2")
}
