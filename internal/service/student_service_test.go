package service

import (
	"bytes"
	"context"
	"database/sql"
	"image/png"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type fakeStudentRepo struct {
	students map[string]*models.Student
}

func newFakeStudentRepo(seed ...models.Student) *fakeStudentRepo {
	repo := &fakeStudentRepo{students: make(map[string]*models.Student)}
	for i := range seed {
		s := seed[i]
		repo.students[s.ID] = &s
	}
	return repo
}

func (f *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	out := make([]models.Student, 0, len(f.students))
	for _, s := range f.students {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	for _, s := range f.students {
		if s.Code == code && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStudentRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	for _, s := range f.students {
		if strings.EqualFold(s.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStudentRepo) Count(ctx context.Context) (int, error) {
	return len(f.students), nil
}

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	copy := *student
	f.students[student.ID] = &copy
	return nil
}

func (f *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if _, ok := f.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *student
	f.students[student.ID] = &copy
	return nil
}

func (f *fakeStudentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.students, id)
	return nil
}

type fakeAuditWriter struct {
	logs []*models.AuditLog
}

func (f *fakeAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

var seededStudent = models.Student{ID: "stu-1", Code: "S-001", Name: "Ana Cruz", Course: "BSIT", Year: "1st year", Adviser: "Mr. Reyes"}

func newStudentService(t *testing.T) (*StudentService, *fakeStudentRepo, *fakeAuditWriter, *fakeInvalidator) {
	t.Helper()
	repo := newFakeStudentRepo(seededStudent)
	audit := &fakeAuditWriter{}
	cache := &fakeInvalidator{}
	return NewStudentService(repo, audit, cache, NewValidator(), zap.NewNop()), repo, audit, cache
}

func TestStudentCreateSanitisesAndAudits(t *testing.T) {
	svc, repo, audit, _ := newStudentService(t)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		Code:    " S-002 ",
		Name:    "  <b>Ben</b>   Lim ",
		Course:  "JHS",
		Year:    "Grade 7",
		Adviser: "Ms. Tan",
	}, "admin-1", models.RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "S-002", student.Code)
	assert.Equal(t, "Ben Lim", student.Name)
	assert.Len(t, repo.students, 2)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStudentCreate, audit.logs[0].Action)
	assert.Equal(t, "admin-1", *audit.logs[0].UserID)
}

func TestStudentCreateReportsMissingFields(t *testing.T) {
	svc, _, _, _ := newStudentService(t)

	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Only Name"}, "", models.RequestMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "The student id field is required.", appErr.Fields["student_id"])
	for _, field := range []string{"course", "year", "adviser"} {
		assert.Contains(t, appErr.Fields, field)
	}
	assert.NotContains(t, appErr.Fields, "name")
}

func TestStudentCreateDuplicateCode(t *testing.T) {
	svc, _, _, _ := newStudentService(t)

	_, err := svc.Create(context.Background(), CreateStudentRequest{Code: "S-001", Name: "X", Course: "Y", Year: "Z", Adviser: "W"}, "", models.RequestMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Contains(t, appErr.Fields, "student_id")
}

func TestStudentUpdatePartial(t *testing.T) {
	svc, repo, _, cache := newStudentService(t)
	year := "2nd year"

	student, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{Year: &year}, "", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "2nd year", student.Year)
	assert.Equal(t, "Ana Cruz", repo.students["stu-1"].Name)
	assert.Equal(t, []string{ReportCachePattern}, cache.patterns)
}

func TestStudentUpdateUnknown(t *testing.T) {
	svc, _, _, _ := newStudentService(t)
	name := "Ghost"

	_, err := svc.Update(context.Background(), "missing", UpdateStudentRequest{Name: &name}, "", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestStudentUpdateRejectsBlankField(t *testing.T) {
	svc, _, _, _ := newStudentService(t)
	blank := "   "

	_, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{Course: &blank}, "", models.RequestMeta{})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "course")
}

func TestStudentDeleteInvalidatesReports(t *testing.T) {
	svc, repo, audit, cache := newStudentService(t)

	removed, err := svc.Delete(context.Background(), "stu-1", "admin-1", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "S-001", removed.Code)
	assert.Empty(t, repo.students)
	assert.Equal(t, []string{ReportCachePattern}, cache.patterns)
	require.Len(t, audit.logs, 1)
	assert.NotEmpty(t, audit.logs[0].OldValues)

	_, err = svc.Delete(context.Background(), "stu-1", "admin-1", models.RequestMeta{})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestStudentCheckName(t *testing.T) {
	svc, _, _, _ := newStudentService(t)

	taken, err := svc.CheckName(context.Background(), dto.NameCheckRequest{Name: "ana cruz"})
	require.NoError(t, err)
	assert.Equal(t, dto.NameStatusError, taken.Status)

	free, err := svc.CheckName(context.Background(), dto.NameCheckRequest{Name: "New Kid"})
	require.NoError(t, err)
	assert.Equal(t, dto.NameStatusSuccess, free.Status)
	assert.Equal(t, "Name is available", free.Message)
}

func TestStudentQRCode(t *testing.T) {
	svc, _, _, _ := newStudentService(t)

	file, err := svc.QRCode(context.Background(), "stu-1", 128)
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.ContentType)
	img, err := png.Decode(bytes.NewReader(file.Payload))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}
