package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/models"
)

type reportServiceMock struct {
	levels    *models.LevelTotals
	weekly    *models.WeeklyBreakdown
	hit       bool
	err       error
	lastScope dto.LevelScope
}

func (m *reportServiceMock) CountToday(context.Context) (*dto.VisitorCount, error) {
	return &dto.VisitorCount{VisitorCount: 3}, m.err
}

func (m *reportServiceMock) CountAllTime(context.Context) (*dto.TotalVisitors, error) {
	return &dto.TotalVisitors{TotalVisitors: 30}, m.err
}

func (m *reportServiceMock) CountCurrentlyInside(context.Context) (*dto.CurrentlyInside, error) {
	return &dto.CurrentlyInside{CurrentlyInside: 1}, m.err
}

func (m *reportServiceMock) CountByLevel(_ context.Context, scope dto.LevelScope) (*models.LevelTotals, bool, error) {
	m.lastScope = scope
	return m.levels, m.hit, m.err
}

func (m *reportServiceMock) WeeklyBreakdown(context.Context) (*models.WeeklyBreakdown, bool, error) {
	return m.weekly, m.hit, m.err
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withClaims(c *gin.Context, userID string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
}

func TestReportHandlerCounters(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/attendance/total-visitors-today", nil)
	handler.VisitorsToday(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"visitor_count":3}`, string(decode(t, w).Data))

	c, w = newGinContext(http.MethodGet, "/attendance/total-visitors", nil)
	handler.TotalVisitors(c)
	assert.JSONEq(t, `{"total_visitors":30}`, string(decode(t, w).Data))

	c, w = newGinContext(http.MethodGet, "/attendance/currently-inside", nil)
	handler.CurrentlyInside(c)
	assert.JSONEq(t, `{"currently_inside":1}`, string(decode(t, w).Data))
}

func TestReportHandlerByLevel(t *testing.T) {
	mock := &reportServiceMock{levels: &models.LevelTotals{College: 4, JHS: 2}, hit: true}
	handler := NewReportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/attendance/by-level?scope=today", nil)
	handler.ByLevel(c)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.JSONEq(t, `{"college":4,"jhs":2}`, string(env.Data))
	assert.Equal(t, dto.LevelScopeToday, mock.lastScope)
	assert.Equal(t, true, env.Meta["cache_hit"])

	c, _ = newGinContext(http.MethodGet, "/attendance/by-level", nil)
	handler.ByLevel(c)
	assert.Equal(t, dto.LevelScopeAll, mock.lastScope)
}

func TestReportHandlerByLevelRejectsUnknownScope(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{})
	c, w := newGinContext(http.MethodGet, "/attendance/by-level?scope=month", nil)
	handler.ByLevel(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "scope")
}

func TestReportHandlerWeekly(t *testing.T) {
	weekly := &models.WeeklyBreakdown{}
	handler := NewReportHandler(&reportServiceMock{weekly: weekly})
	c, w := newGinContext(http.MethodGet, "/attendance/weekly-attendance", nil)
	handler.Weekly(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"Monday":{"College":0,"JHS":0}`)
}
