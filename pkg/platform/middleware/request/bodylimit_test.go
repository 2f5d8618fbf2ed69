package request

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyLimit(t *testing.T) {
	t.Run("body at limit is readable", func(t *testing.T) {
		handler := BodyLimit(64)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Len(t, data, 64)
		}))

		req := httptest.NewRequest(http.MethodPost, "/validate-code", strings.NewReader(strings.Repeat("x", 64)))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	})

	t.Run("body over limit fails to read", func(t *testing.T) {
		var readErr error
		handler := BodyLimit(64)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, readErr = io.ReadAll(r.Body)
		}))

		req := httptest.NewRequest(http.MethodPost, "/validate-code", strings.NewReader(strings.Repeat("x", 65)))
		handler.ServeHTTP(httptest.NewRecorder(), req)

		var maxErr *http.MaxBytesError
		require.Error(t, readErr)
		assert.True(t, errors.As(readErr, &maxErr))
	})

	t.Run("non-positive limit uses default", func(t *testing.T) {
		handler := BodyLimit(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Len(t, data, int(DefaultMaxBodyBytes))
		}))

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", int(DefaultMaxBodyBytes))))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	})
}
