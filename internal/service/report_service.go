package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plantcert/plantcert-api/internal/models"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
	"github.com/plantcert/plantcert-api/pkg/export"
	"github.com/plantcert/plantcert-api/pkg/jobs"
	"github.com/plantcert/plantcert-api/pkg/storage"
)

type reportObservationLoader interface {
	FindByID(ctx context.Context, id string) (*models.ObservationRecord, error)
}

// ReportServiceConfig tunes the export worker pool.
type ReportServiceConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// ReportService renders observation exports asynchronously. Job state is held
// in memory; artifacts go to local storage behind signed download tokens.
type ReportService struct {
	observations reportObservationLoader
	criteria     criteriaProvider
	storage      *storage.LocalStorage
	signer       *storage.SignedURLSigner
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	queue        *jobs.Queue
	logger       *zap.Logger

	mu       sync.RWMutex
	jobsByID map[string]*models.ReportJob
}

// NewReportService constructs a ReportService and its backing queue. Call
// Start before enqueueing and Stop on shutdown.
func NewReportService(observations reportObservationLoader, criteria criteriaProvider, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReportService{
		observations: observations,
		criteria:     criteria,
		storage:      store,
		signer:       signer,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		logger:       logger,
		jobsByID:     make(map[string]*models.ReportJob),
	}
	s.queue = jobs.NewQueue("observation-reports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules an export of one finalized observation.
func (s *ReportService) Enqueue(ctx context.Context, observationID string, format models.ReportFormat, requestedBy string) (*models.ReportJob, error) {
	if format != models.ReportFormatCSV && format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	// Fail fast when the record does not exist.
	if _, err := s.observations.FindByID(ctx, observationID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "observation not found")
	}

	job := &models.ReportJob{
		ID:            uuid.NewString(),
		ObservationID: observationID,
		Format:        format,
		Status:        models.ReportStatusQueued,
		CreatedBy:     requestedBy,
		CreatedAt:     time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobsByID[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(format), Payload: observationID}); err != nil {
		s.fail(job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}
	return s.snapshot(job.ID), nil
}

// Status returns the current state of an export job.
func (s *ReportService) Status(jobID string) (*models.ReportJob, error) {
	job := s.snapshot(jobID)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	return job, nil
}

// OpenDownload validates a signed token and opens the artifact for streaming.
func (s *ReportService) OpenDownload(token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job := s.snapshot(jobID)
	if job == nil || job.Status != models.ReportStatusFinished {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report not available")
	}
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report artifact missing")
	}
	return f, relPath, nil
}

func (s *ReportService) process(ctx context.Context, job jobs.Job) error {
	observationID, _ := job.Payload.(string)
	s.setStatus(job.ID, models.ReportStatusProcessing)

	record, err := s.observations.FindByID(ctx, observationID)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	dataset := s.buildDataset(ctx, record)

	var payload []byte
	var filename string
	switch models.ReportFormat(job.Type) {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Observation Report", []export.InfoField{
			{Label: "Candidate", Value: record.Context.CandidateName},
			{Label: "Equipment", Value: record.Context.EquipmentType},
			{Label: "Date", Value: record.Context.Date},
			{Label: "Overall Rating", Value: strconv.FormatFloat(record.OverallRating, 'f', 2, 64)},
			{Label: "Result", Value: string(record.PassFail)},
		})
		filename = fmt.Sprintf("observation-%s.pdf", record.ID)
	default:
		payload, err = s.csv.Render(dataset)
		filename = fmt.Sprintf("observation-%s.csv", record.ID)
	}
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	url := "/api/v1/reports/download/" + token
	now := time.Now().UTC()
	s.mu.Lock()
	if j, ok := s.jobsByID[job.ID]; ok {
		j.Status = models.ReportStatusFinished
		j.DownloadURL = &url
		j.ExpiresAt = &expiresAt
		j.FinishedAt = &now
	}
	s.mu.Unlock()

	s.logger.Info("observation report rendered",
		zap.String("job_id", job.ID),
		zap.String("observation_id", record.ID),
		zap.String("format", job.Type))
	return nil
}

func (s *ReportService) buildDataset(ctx context.Context, record *models.ObservationRecord) export.Dataset {
	descriptions := map[string]models.Criterion{}
	if s.criteria != nil {
		if set, err := s.criteria.GetByEquipmentType(ctx, record.Context.EquipmentType); err == nil {
			for _, c := range set.Criteria {
				descriptions[c.ID] = c
			}
		}
	}

	rows := make([]map[string]string, 0, len(record.Ratings))
	for _, rating := range record.Ratings {
		c := descriptions[rating.CriteriaID]
		rows = append(rows, map[string]string{
			"Criterion":   rating.CriteriaID,
			"Category":    c.Category,
			"Description": c.Description,
			"Weight":      strconv.Itoa(c.Weight),
			"Score":       strconv.Itoa(rating.Score),
			"Notes":       rating.Notes,
		})
	}
	return export.Dataset{
		Headers: []string{"Criterion", "Category", "Description", "Weight", "Score", "Notes"},
		Rows:    rows,
	}
}

func (s *ReportService) snapshot(jobID string) *models.ReportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobsByID[jobID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func (s *ReportService) setStatus(jobID string, status models.ReportStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobsByID[jobID]; ok {
		job.Status = status
	}
}

func (s *ReportService) fail(jobID string, err error) {
	msg := err.Error()
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobsByID[jobID]; ok {
		job.Status = models.ReportStatusFailed
		job.ErrorMessage = &msg
		job.FinishedAt = &now
	}
}
