package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFoundError("item %d not found", 7), http.StatusNotFound},
		{ForbiddenError("not yours"), http.StatusForbidden},
		{ConflictError("already moved"), http.StatusConflict},
		{ValidationError("bad input"), http.StatusBadRequest},
		{UnauthorizedError("who are you"), http.StatusUnauthorized},
		{ErrorRecordNotFound, http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAsAppError_PreservesWrappedKind(t *testing.T) {
	inner := ConflictError("session changed concurrently")
	wrapped := fmt.Errorf("confirming item: %w", inner)

	appErr := AsAppError(wrapped)
	if appErr.Kind != KindConflict {
		t.Errorf("kind = %s, want %s", appErr.Kind, KindConflict)
	}
	if appErr.Message != inner.Message {
		t.Errorf("message = %q, want %q", appErr.Message, inner.Message)
	}
}

func TestAsAppError_UnknownBecomesInternal(t *testing.T) {
	appErr := AsAppError(errors.New("boom"))
	if appErr.Kind != KindInternal {
		t.Errorf("kind = %s, want %s", appErr.Kind, KindInternal)
	}
}
