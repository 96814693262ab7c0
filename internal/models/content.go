package models

import "time"

// ContentType enumerates the kinds of generated course material.
type ContentType string

const (
	ContentTypeLessonPlan ContentType = "lesson_plan"
	ContentTypeQuiz       ContentType = "quiz"
	ContentTypeSummary    ContentType = "summary"
)

// ContentGeneration stores one template-substitution generation run.
type ContentGeneration struct {
	ID               string      `db:"id" json:"id"`
	Prompt           string      `db:"prompt" json:"prompt"`
	GeneratedContent string      `db:"generated_content" json:"generated_content"`
	ModelUsed        string      `db:"model_used" json:"model_used"`
	ContentType      ContentType `db:"content_type" json:"content_type"`
	CourseID         *string     `db:"course_id" json:"course_id,omitempty"`
	Approved         bool        `db:"approved" json:"approved"`
	ApprovedBy       *string     `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

// ContentFilter scopes listing of generation records.
type ContentFilter struct {
	CourseID    string
	ContentType ContentType
	Approved    *bool
	Page        int
	PageSize    int
}
