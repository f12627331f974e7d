package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrNotFound, http.StatusTeapot, "x"), http.StatusTeapot},
		{"wrapped not found", fmt.Errorf("term: %w", ErrNotFound), http.StatusNotFound},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"invalid index", fmt.Errorf("load: %w", ErrInvalidIndex), http.StatusUnprocessableEntity},
		{"not loaded", ErrIndexNotLoaded, http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "limit %d", -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: limit -1", err.Error())
}
