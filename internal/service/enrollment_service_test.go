package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantcert/plantcert-api/internal/models"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	existing  map[string]models.Enrollment
	created   *models.Enrollment
	progress  map[string]int
	statuses  map[string]models.EnrollmentStatus
	missingID string
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error) {
	if e, ok := m.existing[courseID+"|"+studentID]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = "new-enrollment"
	}
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateProgress(ctx context.Context, id string, progress int, status models.EnrollmentStatus) error {
	if id == m.missingID {
		return sql.ErrNoRows
	}
	if m.progress == nil {
		m.progress = make(map[string]int)
		m.statuses = make(map[string]models.EnrollmentStatus)
	}
	m.progress[id] = progress
	m.statuses[id] = status
	return nil
}

type mockCourseFinder struct {
	courses map[string]*models.Course
}

func (m *mockCourseFinder) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func publishedCourse(id string) *models.Course {
	return &models.Course{ID: id, Title: "Dumper Basics", Status: models.CourseStatusPublished, Active: true}
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	courses := &mockCourseFinder{courses: map[string]*models.Course{"course-1": publishedCourse("course-1")}}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{CourseID: "course-1", StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.NotNil(t, repo.created)
	assert.Equal(t, "stu-1", repo.created.StudentID)
}

func TestEnrollmentServiceEnrollRejectsDuplicate(t *testing.T) {
	repo := &mockEnrollmentRepo{
		existing: map[string]models.Enrollment{
			"course-1|stu-1": {ID: "enr-1", Status: models.EnrollmentStatusActive},
		},
	}
	courses := &mockCourseFinder{courses: map[string]*models.Course{"course-1": publishedCourse("course-1")}}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{CourseID: "course-1", StudentID: "stu-1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentServiceEnrollAllowsReenrollAfterDrop(t *testing.T) {
	repo := &mockEnrollmentRepo{
		existing: map[string]models.Enrollment{
			"course-1|stu-1": {ID: "enr-1", Status: models.EnrollmentStatusDropped},
		},
	}
	courses := &mockCourseFinder{courses: map[string]*models.Course{"course-1": publishedCourse("course-1")}}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{CourseID: "course-1", StudentID: "stu-1"})
	require.NoError(t, err)
}

func TestEnrollmentServiceEnrollRejectsDraftCourse(t *testing.T) {
	draft := &models.Course{ID: "course-2", Status: models.CourseStatusDraft, Active: true}
	repo := &mockEnrollmentRepo{}
	courses := &mockCourseFinder{courses: map[string]*models.Course{"course-2": draft}}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{CourseID: "course-2", StudentID: "stu-1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentServiceProgressCompletesAtHundred(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := NewEnrollmentService(repo, &mockCourseFinder{}, nil, nil)

	require.NoError(t, svc.UpdateProgress(context.Background(), "enr-1", ProgressRequest{ProgressPercentage: 100}))
	assert.Equal(t, models.EnrollmentStatusCompleted, repo.statuses["enr-1"])

	require.NoError(t, svc.UpdateProgress(context.Background(), "enr-1", ProgressRequest{ProgressPercentage: 40}))
	assert.Equal(t, models.EnrollmentStatusActive, repo.statuses["enr-1"])
}

func TestEnrollmentServiceProgressRejectsOutOfRange(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &mockCourseFinder{}, nil, nil)

	err := svc.UpdateProgress(context.Background(), "enr-1", ProgressRequest{ProgressPercentage: 120})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEnrollmentServiceProgressMissingEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{missingID: "ghost"}
	svc := NewEnrollmentService(repo, &mockCourseFinder{}, nil, nil)

	err := svc.UpdateProgress(context.Background(), "ghost", ProgressRequest{ProgressPercentage: 10})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
