package models

import "time"

// CourseStatus tracks publication state of a course.
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

// Course represents a training course in the catalog.
type Course struct {
	ID              string       `db:"id" json:"id"`
	Title           string       `db:"title" json:"title"`
	Description     string       `db:"description" json:"description"`
	Category        string       `db:"category" json:"category"`
	DurationHours   int          `db:"duration_hours" json:"duration_hours"`
	DifficultyLevel string       `db:"difficulty_level" json:"difficulty_level"`
	Status          CourseStatus `db:"status" json:"status"`
	InstructorID    *string      `db:"instructor_id" json:"instructor_id,omitempty"`
	Active          bool         `db:"active" json:"active"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with instructor and enrollment info.
type CourseDetail struct {
	Course
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	EnrolledCount  int    `db:"enrolled_count" json:"enrolled_count"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Category     string
	Status       CourseStatus
	InstructorID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
