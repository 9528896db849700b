package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type attendanceServiceMock struct {
	scan       *dto.ScanResult
	lookupErr  error
	exportReq  dto.ExportRequest
	listFilter models.AttendanceFilter
	scanned    dto.ScanRequest
}

func (m *attendanceServiceMock) Scan(_ context.Context, req dto.ScanRequest) (*dto.ScanResult, error) {
	m.scanned = req
	return m.scan, nil
}

func (m *attendanceServiceMock) Lookup(context.Context, dto.ScanRequest) (*dto.LookupResult, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return &dto.LookupResult{Student: dto.StudentSummary{Name: "Ana", Year: "Grade 8", Course: "JHS"}}, nil
}

func (m *attendanceServiceMock) ListScanned(_ context.Context, filter models.AttendanceFilter) (*dto.AttendanceLog, error) {
	m.listFilter = filter
	return &dto.AttendanceLog{Attendances: []models.AttendanceLogEntry{}}, nil
}

func (m *attendanceServiceMock) Export(_ context.Context, req dto.ExportRequest) (*dto.ExportFile, error) {
	m.exportReq = req
	return &dto.ExportFile{Filename: "attendance-20240501-080000.csv", ContentType: "text/csv", Payload: []byte("Name\n")}, nil
}

func TestAttendanceHandlerScan(t *testing.T) {
	mock := &attendanceServiceMock{scan: &dto.ScanResult{Student: &dto.ScannedStudent{
		Name: "Ana", Year: "Grade 8", Course: "JHS", Status: "Checked In", Outcome: models.ScanOutcomeCheckedIn,
	}}}
	handler := NewAttendanceHandler(mock)

	c, w := newGinContext(http.MethodPost, "/attendance/scan", []byte(`{"qr_data":"S-001"}`))
	handler.Scan(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S-001", mock.scanned.QRData)
	assert.Contains(t, string(decode(t, w).Data), `"alreadyScanned":false`)
}

func TestAttendanceHandlerScanUnknownCode(t *testing.T) {
	handler := NewAttendanceHandler(&attendanceServiceMock{scan: &dto.ScanResult{}})
	c, w := newGinContext(http.MethodPost, "/attendance/scan", []byte(`{"qr_data":"nope"}`))
	handler.Scan(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"student":null}`, string(decode(t, w).Data))
}

func TestAttendanceHandlerScanMalformedBody(t *testing.T) {
	handler := NewAttendanceHandler(&attendanceServiceMock{})
	c, w := newGinContext(http.MethodPost, "/attendance/scan", []byte(`{`))
	handler.Scan(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerLookupNotFound(t *testing.T) {
	handler := NewAttendanceHandler(&attendanceServiceMock{lookupErr: appErrors.Clone(appErrors.ErrNotFound, "Invalid QR Code")})
	c, w := newGinContext(http.MethodPost, "/attendance/lookup", []byte(`{"qr_data":"nope"}`))
	handler.Lookup(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendanceHandlerScannedPassesRange(t *testing.T) {
	mock := &attendanceServiceMock{}
	handler := NewAttendanceHandler(mock)
	c, w := newGinContext(http.MethodGet, "/attendance/scanned-codes-data?from=2024-05-01&to=2024-05-02", nil)
	handler.Scanned(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AttendanceFilter{From: "2024-05-01", To: "2024-05-02"}, mock.listFilter)
}

func TestAttendanceHandlerExport(t *testing.T) {
	mock := &attendanceServiceMock{}
	handler := NewAttendanceHandler(mock)
	c, w := newGinContext(http.MethodGet, "/attendance/export?format=csv&from=2024-05-01", nil)
	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportFormatCSV, mock.exportReq.Format)
	assert.Equal(t, "2024-05-01", mock.exportReq.From)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance-20240501-080000.csv")
	assert.Equal(t, "Name\n", w.Body.String())
}
