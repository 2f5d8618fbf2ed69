package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "merch/pkg/domain-errors"
)

type codeRequest struct {
	Code       string `json:"code"`
	normalized bool
}

func (r *codeRequest) Normalize() {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	r.normalized = true
}

func (r *codeRequest) Validate() error {
	if r.Code == "" {
		return errors.New("code is required")
	}
	return nil
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("normalizes before validating", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"code":"  demo123 "}`))
		w := httptest.NewRecorder()

		result, ok := DecodeAndPrepare[codeRequest](w, req, logger, ctx, "req-1", nil)

		require.True(t, ok)
		assert.True(t, result.normalized)
		assert.Equal(t, "DEMO123", result.Code)
	})

	t.Run("invalid JSON writes bad_request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{invalid`))
		w := httptest.NewRecorder()

		result, ok := DecodeAndPrepare[codeRequest](w, req, logger, ctx, "req-1", nil)

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeBody(t, w)["error"])
	})

	t.Run("plain validation error becomes validation_error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"code":"  "}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[codeRequest](w, req, logger, ctx, "req-1", nil)

		assert.False(t, ok)
		body := decodeBody(t, w)
		assert.Equal(t, "validation_error", body["error"])
		assert.Equal(t, "code is required", body["error_description"])
	})

	t.Run("custom error writer receives the domain error", func(t *testing.T) {
		var got error
		onErr := func(w http.ResponseWriter, err error) { got = err }
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`nope`))

		_, ok := DecodeAndPrepare[codeRequest](httptest.NewRecorder(), req, logger, ctx, "req-1", onErr)

		assert.False(t, ok)
		assert.True(t, dErrors.HasCode(got, dErrors.CodeBadRequest))
	})

	t.Run("oversized body is reported", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"`+strings.Repeat("A", 100)+`"}`))
		req.Body = http.MaxBytesReader(w, req.Body, 16)

		_, ok := DecodeJSON[codeRequest](w, req, logger, ctx, "req-1", nil)

		assert.False(t, ok)
		assert.Equal(t, "request body too large", decodeBody(t, w)["error_description"])
	})
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"claim used", dErrors.New(dErrors.CodeClaimUsed, "Code already used"), http.StatusBadRequest, "CLAIM_USED"},
		{"unauthorized", dErrors.New(dErrors.CodeUnauthorized, "admin token required"), http.StatusUnauthorized, "unauthorized"},
		{"submission", dErrors.New(dErrors.CodeSubmissionFailed, "reverted"), http.StatusBadGateway, "submission_failed"},
		{"foreign error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeBody(t, w)["error"])
		})
	}
}
