package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
	"github.com/platinummonkey/jitaccess/pkg/observability"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"message": "success"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   apperr.Code
	}{
		{"bad request", apperr.BadRequestf("name is required"), http.StatusBadRequest, apperr.CodeBadRequest},
		{"wrapped not found", fmt.Errorf("lookup: %w", apperr.NotFoundf("missing")), http.StatusNotFound, apperr.CodeNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperr.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteAppError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestParseJSON(t *testing.T) {
	var dest struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"name": "test"}`))
	require.NoError(t, ParseJSON(req, &dest))
	assert.Equal(t, "test", dest.Name)

	req = httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{invalid}`))
	assert.Error(t, ParseJSON(req, &dest))

	req = httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"nmae": "typo"}`))
	assert.Error(t, ParseJSON(req, &dest), "unknown fields are rejected")
}

func TestParseJSONOrError(t *testing.T) {
	var dest map[string]string
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`nope`))
	w := httptest.NewRecorder()

	assert.False(t, ParseJSONOrError(w, req, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(apperr.CodeBadRequest))
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/permissions/abc", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "abc"})

	val, ok := ParsePathStringOrError(httptest.NewRecorder(), req, "id")
	assert.True(t, ok)
	assert.Equal(t, "abc", val)

	w := httptest.NewRecorder()
	_, ok = ParsePathStringOrError(w, req, "missing")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?limit=10&bad=ten&prefix=Adm", nil)

	limit, err := ParseQueryInt(req, "limit", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	limit, err = ParseQueryInt(req, "absent", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, limit)

	_, err = ParseQueryInt(req, "bad", 0)
	assert.Error(t, err)

	assert.Equal(t, "Adm", ParseQueryString(req, "prefix", ""))
	assert.Equal(t, "dflt", ParseQueryString(req, "absent", "dflt"))
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestLoggingAndRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	handler := Chain(
		RequestIDMiddleware,
		LoggingMiddleware(logger),
		RecoveryMiddleware(logger),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/explode", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "kaboom")
	assert.Contains(t, buf.String(), `"request_id":"req-9"`)
	assert.Contains(t, buf.String(), `"status":500`)
}

func TestContentTypeMiddleware(t *testing.T) {
	handler := ContentTypeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("x"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMaxBytesMiddleware(t *testing.T) {
	handler := MaxBytesMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var dest map[string]string
		if !ParseJSONOrError(w, r, &dest) {
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"way too long"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePageOrError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/permissions?cursor=abc", nil)
	params, ok := ParsePageOrError(httptest.NewRecorder(), req)
	require.True(t, ok)
	assert.Equal(t, PageParams{Limit: 50, Cursor: "abc"}, params)

	w := httptest.NewRecorder()
	_, ok = ParsePageOrError(w, httptest.NewRequest(http.MethodGet, "/permissions?limit=many", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
