package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		"validation":        http.StatusBadRequest,
		"unknown_reference": http.StatusNotFound,
		"not_found":         http.StatusNotFound,
		"identity_conflict": http.StatusConflict,
		"storage_conflict":  http.StatusConflict,
		"timeout":           http.StatusRequestTimeout,
		"internal":          http.StatusInternalServerError,
	}
	for class, want := range tests {
		assert.Equal(t, want, StatusFor(class), class)
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, "internal", errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = httptest.NewRecorder()
	Fail(rec, "validation", errors.New("missing email"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing email", body.Error)
	assert.Equal(t, "validation", body.Code)
}

func TestDecode(t *testing.T) {
	var dst struct{ Email string }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.False(t, Decode(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body is required")

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Email":"a@b.com"}`))
	assert.True(t, Decode(rec, req, &dst))
	assert.Equal(t, "a@b.com", dst.Email)
}
