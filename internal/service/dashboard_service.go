package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/plantcert/plantcert-api/internal/dto"
	"github.com/plantcert/plantcert-api/internal/models"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
)

type dashboardObservationRepository interface {
	List(ctx context.Context, filter models.ObservationFilter) ([]models.ObservationRecord, int, error)
	VerdictCounts(ctx context.Context, instructorID string) (map[models.Verdict]int, error)
}

type dashboardEnrollmentLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type dashboardCourseLister interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
}

type sessionCounter interface {
	ActiveSessions() int
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL           time.Duration
	RecentObservations int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Observations dashboardObservationRepository
	Enrollments  dashboardEnrollmentLister
	Courses      dashboardCourseLister
	Sessions     sessionCounter
	Cache        *CacheService
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// DashboardService composes instructor and student dashboard payloads.
type DashboardService struct {
	observations dashboardObservationRepository
	enrollments  dashboardEnrollmentLister
	courses      dashboardCourseLister
	sessions     sessionCounter
	cache        *CacheService
	logger       *zap.Logger
	now          func() time.Time
	cfg          DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentObservations <= 0 {
		cfg.RecentObservations = 10
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		observations: params.Observations,
		enrollments:  params.Enrollments,
		courses:      params.Courses,
		sessions:     params.Sessions,
		cache:        params.Cache,
		logger:       logger,
		now:          time.Now,
		cfg:          cfg,
	}
}

// Instructor builds the dashboard for one instructor.
func (s *DashboardService) Instructor(ctx context.Context, instructorID string) (*dto.InstructorDashboard, error) {
	cacheKey := "dashboard:instructor:" + instructorID
	if s.cache.Enabled() {
		var cached dto.InstructorDashboard
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			at := cached.GeneratedAt
			cached.CachedAt = &at
			return &cached, nil
		}
	}

	counts, err := s.observations.VerdictCounts(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate verdicts")
	}

	recent, _, err := s.observations.List(ctx, models.ObservationFilter{
		InstructorID: instructorID,
		Page:         1,
		PageSize:     s.cfg.RecentObservations,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent observations")
	}

	courses, _, err := s.courses.List(ctx, models.CourseFilter{InstructorID: instructorID, Page: 1, PageSize: 50})
	if err != nil {
		return nil, err
	}

	board := &dto.InstructorDashboard{
		GeneratedAt: s.now().UTC(),
		Verdicts: dto.VerdictBreakdown{
			Pass:        counts[models.VerdictPass],
			Conditional: counts[models.VerdictConditional],
			Fail:        counts[models.VerdictFail],
		},
		RecentObservations: recent,
		Courses:            courses,
	}
	if s.sessions != nil {
		board.ActiveSessions = s.sessions.ActiveSessions()
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, board, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache instructor dashboard", zap.Error(err))
		}
	}
	return board, nil
}

// Student builds the dashboard for one student.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*dto.StudentDashboard, error) {
	cacheKey := "dashboard:student:" + studentID
	if s.cache.Enabled() {
		var cached dto.StudentDashboard
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			at := cached.GeneratedAt
			cached.CachedAt = &at
			return &cached, nil
		}
	}

	enrollments, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{StudentID: studentID, Page: 1, PageSize: 100})
	if err != nil {
		return nil, err
	}

	completed := 0
	progressSum := 0
	for _, e := range enrollments {
		if e.Status == models.EnrollmentStatusCompleted {
			completed++
		}
		progressSum += e.ProgressPercentage
	}
	avgProgress := 0.0
	if len(enrollments) > 0 {
		avgProgress = math.Round(float64(progressSum)/float64(len(enrollments))*100) / 100
	}

	observations, _, err := s.observations.List(ctx, models.ObservationFilter{
		CandidateID: studentID,
		Page:        1,
		PageSize:    s.cfg.RecentObservations,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load observations")
	}

	board := &dto.StudentDashboard{
		GeneratedAt:      s.now().UTC(),
		Enrollments:      enrollments,
		CompletedCourses: completed,
		AverageProgress:  avgProgress,
		Observations:     observations,
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, board, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache student dashboard", zap.Error(err))
		}
	}
	return board, nil
}
