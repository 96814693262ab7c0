package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantcert/plantcert-api/internal/models"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
	"github.com/plantcert/plantcert-api/pkg/storage"
)

func newReportFixture(t *testing.T, repo *mockObservationRepo) *ReportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewReportService(repo, &staticCriteriaProvider{set: twoCriteriaSet()}, store, signer, nil, ReportServiceConfig{})
}

func finalizedRecord() *models.ObservationRecord {
	return &models.ObservationRecord{
		ID: "obs-1",
		Context: models.ObservationContext{
			CandidateName: "Jordan Field",
			EquipmentType: DefaultEquipmentType,
			Date:          "2026-08-30",
		},
		Ratings: []models.Rating{
			{CriteriaID: "safety_check", Score: 5, Notes: "clean"},
			{CriteriaID: "load_handling", Score: 4},
		},
		OverallRating: 4.5,
		PassFail:      models.VerdictPass,
		TotalCriteria: 2,
	}
}

func TestReportServiceEnqueueRejectsBadFormat(t *testing.T) {
	svc := newReportFixture(t, &mockObservationRepo{})

	_, err := svc.Enqueue(context.Background(), "obs-1", "xlsx", "inst-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestReportServiceEnqueueRejectsMissingObservation(t *testing.T) {
	svc := newReportFixture(t, &mockObservationRepo{})

	_, err := svc.Enqueue(context.Background(), "obs-1", models.ReportFormatCSV, "inst-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReportServiceRendersCSVExport(t *testing.T) {
	repo := &mockObservationRepo{records: map[string]*models.ObservationRecord{"obs-1": finalizedRecord()}}
	svc := newReportFixture(t, repo)

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Enqueue(ctx, "obs-1", models.ReportFormatCSV, "inst-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := svc.Status(job.ID)
		return err == nil && status.Status == models.ReportStatusFinished
	}, 5*time.Second, 10*time.Millisecond)

	status, err := svc.Status(job.ID)
	require.NoError(t, err)
	require.NotNil(t, status.DownloadURL)
	require.NotNil(t, status.ExpiresAt)

	token := strings.TrimPrefix(*status.DownloadURL, "/api/v1/reports/download/")
	f, _, err := svc.OpenDownload(token)
	require.NoError(t, err)
	defer f.Close()

	payload, err := io.ReadAll(f)
	require.NoError(t, err)
	content := string(payload)
	assert.Contains(t, content, "Criterion,Category,Description,Weight,Score,Notes")
	// each value must land in its own column
	assert.Contains(t, content, "safety_check,Safety & Preparation,,10,5,clean")
	assert.Contains(t, content, "load_handling,Equipment Operation,,10,4,")
}

func TestReportServiceDownloadRejectsTamperedToken(t *testing.T) {
	svc := newReportFixture(t, &mockObservationRepo{})

	_, _, err := svc.OpenDownload("not-a-valid-token")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestReportServiceFailedJobRecordsError(t *testing.T) {
	repo := &mockObservationRepo{records: map[string]*models.ObservationRecord{"obs-1": finalizedRecord()}}
	svc := newReportFixture(t, repo)

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Enqueue(ctx, "obs-1", models.ReportFormatPDF, "inst-1")
	require.NoError(t, err)

	// Drop the record before the worker picks up the job so rendering fails.
	repo.delete("obs-1")

	require.Eventually(t, func() bool {
		status, err := svc.Status(job.ID)
		return err == nil && status.Status != models.ReportStatusQueued && status.Status != models.ReportStatusProcessing
	}, 5*time.Second, 10*time.Millisecond)
}
