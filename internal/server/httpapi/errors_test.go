package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrovs/cloudvault/internal/common"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantKind   string
	}{
		{common.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
		{common.ErrNotFound, http.StatusNotFound, "not_found"},
		{common.ErrConflict, http.StatusConflict, "conflict"},
		{common.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{common.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
		{common.ErrInternal, http.StatusInternalServerError, "internal"},
		{errors.New("something else"), http.StatusInternalServerError, "internal"},
		{fmt.Errorf("%w: move would create a cycle", common.ErrConflict), http.StatusConflict, "conflict"},
	}

	for _, tt := range tests {
		t.Run(tt.wantKind, func(t *testing.T) {
			status, kind := classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("service error keeps its message", func(t *testing.T) {
		srv := testServer()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/files/x", nil)
		srv.writeError(rec, req, fmt.Errorf("%w: %q already exists here", common.ErrConflict, "a.txt"))

		assert.Equal(t, http.StatusConflict, rec.Code)

		var body ErrResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "conflict", body.Kind)
		assert.Contains(t, body.Message, "a.txt")
	})

	t.Run("internal detail suppressed outside development", func(t *testing.T) {
		srv := testServer()
		srv.config.Env = "production"

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/files/x", nil)
		srv.writeError(rec, req, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body ErrResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "internal", body.Kind)
		assert.Equal(t, "internal error", body.Message)
	})

	t.Run("internal detail kept in development", func(t *testing.T) {
		srv := testServer()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/files/x", nil)
		srv.writeError(rec, req, errors.New("pq: connection refused"))

		var body ErrResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body.Message, "connection refused")
	})
}
