package services_test

import (
	"errors"
	"net/http"
	"testing"

	"trustlabel/internal/queue"
	"trustlabel/internal/services"
)

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	cause := errors.New("row missing")
	err := services.Wrap(queue.ErrNotFound, "queue-service", "assign", "validator lookup", cause)

	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected marker to survive wrapping: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to survive wrapping: %v", err)
	}
	want := "not found: queue-service: assign: validator lookup: row missing"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrPermissionDenied, "api", "", "admin role required", nil)
	if !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("expected marker: %v", err)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{queue.ErrNotFound, http.StatusNotFound},
		{queue.ErrInvalidTransition, http.StatusConflict},
		{queue.ErrConflict, http.StatusConflict},
		{services.ErrPermissionDenied, http.StatusForbidden},
		{services.ErrValidation, http.StatusBadRequest},
		{queue.ErrValidation, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := services.HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
	wrapped := services.Wrap(queue.ErrConflict, "queue-service", "assign", "stale version", nil)
	if got := services.HTTPStatus(wrapped); got != http.StatusConflict {
		t.Errorf("HTTPStatus(wrapped conflict) = %d", got)
	}
}
