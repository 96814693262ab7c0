package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plantcert/plantcert-api/internal/models"
	"github.com/plantcert/plantcert-api/internal/scoring"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
)

type observationRepository interface {
	Create(ctx context.Context, record *models.ObservationRecord) error
	FindByID(ctx context.Context, id string) (*models.ObservationRecord, error)
	List(ctx context.Context, filter models.ObservationFilter) ([]models.ObservationRecord, int, error)
}

type observationAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type criteriaProvider interface {
	GetByEquipmentType(ctx context.Context, equipmentType string) (*models.CriteriaSet, error)
}

// StartObservationRequest opens a live assessment session.
type StartObservationRequest struct {
	CandidateID       string `json:"candidate_id" validate:"required"`
	CandidateName     string `json:"candidate_name" validate:"required"`
	EquipmentType     string `json:"equipment_type"`
	Location          string `json:"location"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	WeatherConditions string `json:"weather_conditions"`
}

// ScoreRequest updates one criterion's score on a live session.
type ScoreRequest struct {
	Score int    `json:"score"`
	Notes string `json:"notes"`
}

// NoteRequest appends a note entry to a live session.
type NoteRequest struct {
	Type             models.NoteType `json:"type"`
	Content          string          `json:"content" validate:"required"`
	EquipmentSection string          `json:"equipment_section"`
}

// FinalizeRequest closes the session and persists the snapshot.
type FinalizeRequest struct {
	EndTime         string `json:"end_time"`
	InstructorNotes string `json:"instructor_notes"`
}

type session struct {
	engine  *scoring.Engine
	context models.ObservationContext
	touched time.Time
}

// ObservationService runs live assessment sessions and persists finalized
// records. Sessions live in memory; finalized snapshots go to the database.
type ObservationService struct {
	repo      observationRepository
	audit     observationAuditRepository
	criteria  criteriaProvider
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService

	mu         sync.RWMutex
	sessions   map[string]*session
	sessionTTL time.Duration
}

// NewObservationService constructs an ObservationService.
func NewObservationService(repo observationRepository, audit observationAuditRepository, criteria criteriaProvider, validate *validator.Validate, logger *zap.Logger, sessionTTL time.Duration) *ObservationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if sessionTTL <= 0 {
		sessionTTL = 4 * time.Hour
	}
	return &ObservationService{
		repo:       repo,
		audit:      audit,
		criteria:   criteria,
		validator:  validate,
		logger:     logger,
		sessions:   make(map[string]*session),
		sessionTTL: sessionTTL,
	}
}

// SetMetrics wires verdict counters. Set after construction because the
// metrics service itself reads the live session count from this service.
func (s *ObservationService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// Start opens a new session for the instructor and returns its live summary.
func (s *ObservationService) Start(ctx context.Context, instructorID string, req StartObservationRequest) (*models.ObservationSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid observation payload")
	}

	equipmentType := req.EquipmentType
	if equipmentType == "" {
		equipmentType = DefaultEquipmentType
	}
	set, err := s.criteria.GetByEquipmentType(ctx, equipmentType)
	if err != nil {
		return nil, err
	}

	engine, err := scoring.New(set.Criteria)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidCriteria.Code, appErrors.ErrInvalidCriteria.Status, "unusable criteria catalog")
	}

	id := uuid.NewString()
	sess := &session{
		engine: engine,
		context: models.ObservationContext{
			CandidateID:       req.CandidateID,
			CandidateName:     req.CandidateName,
			InstructorID:      instructorID,
			EquipmentType:     equipmentType,
			Location:          req.Location,
			Date:              req.Date,
			StartTime:         req.StartTime,
			WeatherConditions: req.WeatherConditions,
		},
		touched: time.Now(),
	}

	s.mu.Lock()
	s.pruneLocked()
	s.sessions[id] = sess
	summary := s.summarize(id, sess)
	s.mu.Unlock()

	s.logger.Info("observation session started",
		zap.String("observation_id", id),
		zap.String("candidate_id", req.CandidateID),
		zap.String("equipment_type", equipmentType))

	return summary, nil
}

// SetScore records a criterion score on a live session.
func (s *ObservationService) SetScore(ctx context.Context, id, instructorID, criteriaID string, req ScoreRequest) (*models.ObservationSummary, error) {
	sess, err := s.lookup(id, instructorID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := sess.engine.SetScore(criteriaID, req.Score); err != nil {
		return nil, mapScoringError(err)
	}
	if req.Notes != "" {
		if err := sess.engine.SetNotes(criteriaID, req.Notes); err != nil {
			return nil, mapScoringError(err)
		}
	}
	sess.touched = time.Now()
	return s.summarize(id, sess), nil
}

// AddNote appends a timestamped note entry to a live session.
func (s *ObservationService) AddNote(ctx context.Context, id, instructorID string, req NoteRequest) (*models.ObservationNote, error) {
	sess, err := s.lookup(id, instructorID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	note, err := sess.engine.AddNote(req.Type, req.Content, req.EquipmentSection)
	if err != nil {
		return nil, mapScoringError(err)
	}
	sess.touched = time.Now()
	return &note, nil
}

// Snapshot returns the current live view of a session.
func (s *ObservationService) Snapshot(ctx context.Context, id, instructorID string) (*models.ObservationSummary, error) {
	sess, err := s.lookup(id, instructorID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summarize(id, sess), nil
}

// Finalize seals the session, persists the snapshot and removes the session
// from the registry.
func (s *ObservationService) Finalize(ctx context.Context, id, instructorID string, req FinalizeRequest) (*models.ObservationRecord, error) {
	sess, err := s.lookup(id, instructorID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess.context.EndTime = req.EndTime
	sess.context.InstructorNotes = req.InstructorNotes
	record, err := sess.engine.Finalize(sess.context)
	if err != nil {
		s.mu.Unlock()
		return nil, mapScoringError(err)
	}
	record.ID = id
	missing := sess.engine.MissingRequired()
	s.mu.Unlock()

	if len(missing) > 0 {
		s.logger.Warn("observation finalized with unrated required criteria",
			zap.String("observation_id", id),
			zap.Strings("criteria", missing))
	}

	if err := s.repo.Create(ctx, record); err != nil {
		// Leave the session sealed so a retry can persist the same snapshot.
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist observation")
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &instructorID,
			Action:     models.AuditActionObservationFinalize,
			Resource:   "observation",
			ResourceID: &record.ID,
			NewValues:  []byte(`{"verdict":"` + string(record.PassFail) + `"}`),
		}); err != nil {
			s.logger.Warn("failed to record finalize audit log", zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordVerdict(string(record.PassFail))
	}

	s.logger.Info("observation finalized",
		zap.String("observation_id", record.ID),
		zap.Float64("overall_rating", record.OverallRating),
		zap.String("verdict", string(record.PassFail)))

	return record, nil
}

// Reopen unseals a still-registered session for further edits. Persisted
// records are never modified; a reopened session produces a new revision.
func (s *ObservationService) Reopen(ctx context.Context, id, instructorID string) (*models.ObservationSummary, error) {
	sess, err := s.lookup(id, instructorID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.engine.Reopen()
	sess.touched = time.Now()
	return s.summarize(id, sess), nil
}

// Get loads one persisted observation record.
func (s *ObservationService) Get(ctx context.Context, id string) (*models.ObservationRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "observation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load observation")
	}
	return record, nil
}

// List returns persisted observation records.
func (s *ObservationService) List(ctx context.Context, filter models.ObservationFilter) ([]models.ObservationRecord, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list observations")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ActiveSessions reports the number of live sessions in the registry.
func (s *ObservationService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *ObservationService) lookup(id, instructorID string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "observation session not found")
	}
	if instructorID != "" && sess.context.InstructorID != instructorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another instructor")
	}
	return sess, nil
}

// summarize requires the caller to hold at least a read lock.
func (s *ObservationService) summarize(id string, sess *session) *models.ObservationSummary {
	e := sess.engine
	return &models.ObservationSummary{
		ID:                id,
		EquipmentType:     sess.context.EquipmentType,
		OverallRating:     e.OverallScore(),
		PassFail:          e.Verdict(),
		TotalCriteria:     e.TotalCriteria(),
		CompletedCriteria: e.CompletedCriteria(),
		Finalized:         e.Finalized(),
		Revision:          e.Revision(),
		Ratings:           e.Ratings(),
		Notes:             e.Notes(),
	}
}

// pruneLocked drops abandoned sessions past the TTL. Caller holds the write
// lock.
func (s *ObservationService) pruneLocked() {
	cutoff := time.Now().Add(-s.sessionTTL)
	for id, sess := range s.sessions {
		if sess.touched.Before(cutoff) {
			delete(s.sessions, id)
			s.logger.Warn("expired observation session dropped", zap.String("observation_id", id))
		}
	}
}

func mapScoringError(err error) error {
	switch {
	case errors.Is(err, scoring.ErrUnknownCriterion):
		return appErrors.Clone(appErrors.ErrUnknownCriterion, err.Error())
	case errors.Is(err, scoring.ErrInvalidScore):
		return appErrors.Clone(appErrors.ErrInvalidScore, err.Error())
	case errors.Is(err, scoring.ErrFinalized):
		return appErrors.Clone(appErrors.ErrFinalized, err.Error())
	case errors.Is(err, scoring.ErrEmptyNote):
		return appErrors.Clone(appErrors.ErrValidation, "note content is required")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "scoring failure")
	}
}
