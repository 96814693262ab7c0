package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantcert/plantcert-api/internal/models"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
)

type mockContentRepo struct {
	generations map[string]*models.ContentGeneration
	approved    map[string]string
}

func (m *mockContentRepo) Create(ctx context.Context, gen *models.ContentGeneration) error {
	if gen.ID == "" {
		gen.ID = "gen-1"
	}
	if m.generations == nil {
		m.generations = make(map[string]*models.ContentGeneration)
	}
	m.generations[gen.ID] = gen
	return nil
}

func (m *mockContentRepo) FindByID(ctx context.Context, id string) (*models.ContentGeneration, error) {
	if g, ok := m.generations[id]; ok {
		copied := *g
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockContentRepo) List(ctx context.Context, filter models.ContentFilter) ([]models.ContentGeneration, int, error) {
	var out []models.ContentGeneration
	for _, g := range m.generations {
		out = append(out, *g)
	}
	return out, len(out), nil
}

func (m *mockContentRepo) Approve(ctx context.Context, id, approvedBy string) error {
	g, ok := m.generations[id]
	if !ok {
		return sql.ErrNoRows
	}
	g.Approved = true
	g.ApprovedBy = &approvedBy
	if m.approved == nil {
		m.approved = make(map[string]string)
	}
	m.approved[id] = approvedBy
	return nil
}

func TestContentServiceGenerateLessonPlan(t *testing.T) {
	repo := &mockContentRepo{}
	svc := NewContentService(repo, nil, nil, nil, "")

	gen, err := svc.Generate(context.Background(), GenerateContentRequest{
		Topic:       "Forward Tipping Dumper",
		ContentType: models.ContentTypeLessonPlan,
	})
	require.NoError(t, err)
	assert.False(t, gen.Approved)
	assert.Equal(t, "plantcert-templater-v1", gen.ModelUsed)
	assert.True(t, strings.HasPrefix(gen.GeneratedContent, "# Lesson Plan: Forward Tipping Dumper"))
	assert.Contains(t, gen.GeneratedContent, "## Objectives")
}

func TestContentServiceGenerateRejectsUnknownType(t *testing.T) {
	svc := NewContentService(&mockContentRepo{}, nil, nil, nil, "")

	_, err := svc.Generate(context.Background(), GenerateContentRequest{
		Topic:       "Dumper",
		ContentType: "essay",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestContentServiceApprove(t *testing.T) {
	repo := &mockContentRepo{}
	audit := &mockAuditRepo{}
	svc := NewContentService(repo, audit, nil, nil, "")

	gen, err := svc.Generate(context.Background(), GenerateContentRequest{
		Topic:       "Dumper",
		ContentType: models.ContentTypeQuiz,
	})
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), gen.ID, "admin-1")
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.Equal(t, "admin-1", repo.approved[gen.ID])
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionContentApprove, audit.logs[0].Action)
}

func TestContentServiceApproveTwiceConflicts(t *testing.T) {
	repo := &mockContentRepo{}
	svc := NewContentService(repo, nil, nil, nil, "")

	gen, err := svc.Generate(context.Background(), GenerateContentRequest{
		Topic:       "Dumper",
		ContentType: models.ContentTypeSummary,
	})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), gen.ID, "admin-1")
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), gen.ID, "admin-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestContentServiceApproveMissing(t *testing.T) {
	svc := NewContentService(&mockContentRepo{}, nil, nil, nil, "")

	_, err := svc.Approve(context.Background(), "missing", "admin-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
