package dto

import (
	"time"

	"github.com/plantcert/plantcert-api/internal/models"
)

// VerdictBreakdown tallies finalized observations by outcome.
type VerdictBreakdown struct {
	Pass        int `json:"pass"`
	Conditional int `json:"conditional"`
	Fail        int `json:"fail"`
}

// InstructorDashboard aggregates an instructor's assessment activity.
type InstructorDashboard struct {
	GeneratedAt        time.Time                  `json:"generated_at"`
	ActiveSessions     int                        `json:"active_sessions"`
	Verdicts           VerdictBreakdown           `json:"verdicts"`
	RecentObservations []models.ObservationRecord `json:"recent_observations"`
	Courses            []models.CourseDetail      `json:"courses"`
	CachedAt           *time.Time                 `json:"cached_at,omitempty"`
}

// StudentDashboard aggregates a student's training progress.
type StudentDashboard struct {
	GeneratedAt      time.Time                  `json:"generated_at"`
	Enrollments      []models.EnrollmentDetail  `json:"enrollments"`
	CompletedCourses int                        `json:"completed_courses"`
	AverageProgress  float64                    `json:"average_progress"`
	Observations     []models.ObservationRecord `json:"observations"`
	CachedAt         *time.Time                 `json:"cached_at,omitempty"`
}
