package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteErrorDomain(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/groups/x/join", nil)

	WriteError(rec, req, apperr.Conflict("already a member"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "already a member", resp.Message)
}

func TestWriteErrorHidesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)

	WriteError(rec, req, errors.New("connection refused 10.0.0.3:27017"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, apperr.InternalMessage, resp.Message)
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, map[string]int{"memberCount": 1})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]interface{}{"memberCount": float64(1)}, resp.Data)
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Message string `json:"message"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, DecodeJSON(req, &body, false))
	assert.Equal(t, "hi", body.Message)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, DecodeJSON(req, &body, true))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	err := DecodeJSON(req, &body, true)
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
}

func TestPagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	p := ParsePageParams(req)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, MaxPageLimit, p.Limit)
	assert.Equal(t, int64(200), p.Skip())

	page := NewPage([]string{}, 250, p)
	assert.False(t, page.HasMore)
	page = NewPage([]string{}, 301, p)
	assert.True(t, page.HasMore)

	_, err := ParseCursorParams(httptest.NewRequest(http.MethodGet, "/?before=yesterday", nil))
	assert.Error(t, err)

	c, err := ParseCursorParams(httptest.NewRequest(http.MethodGet, "/?before=2024-05-01T10:00:00Z&limit=10", nil))
	require.NoError(t, err)
	require.NotNil(t, c.Before)
	assert.Equal(t, 10, c.Limit)
}

func TestPageIsBounded(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=100000000000000001&limit=100", nil)
	p := ParsePageParams(req)
	assert.Equal(t, MaxPage, p.Page)
	assert.Equal(t, int64((MaxPage-1)*MaxPageLimit), p.Skip())

	tests := []struct {
		name string
		p    PageParams
		want int64
	}{
		{"first page", PageParams{Page: 1, Limit: 20}, 0},
		{"zero page", PageParams{Page: 0, Limit: 20}, 0},
		{"negative limit", PageParams{Page: 3, Limit: -5}, 0},
		{"huge page", PageParams{Page: 100000000000000001, Limit: 100}, int64((MaxPage - 1) * MaxPageLimit)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Skip())
			assert.GreaterOrEqual(t, tt.p.Skip(), int64(0))
		})
	}
}
