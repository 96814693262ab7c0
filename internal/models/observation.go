package models

import "time"

// Criterion is one weighted, scorable requirement within an equipment observation.
// Criteria are static configuration for a given equipment type, not user-editable.
type Criterion struct {
	ID          string `db:"id" json:"id"`
	Category    string `db:"category" json:"category"`
	Description string `db:"description" json:"description"`
	Weight      int    `db:"weight" json:"weight"`
	Required    bool   `db:"required" json:"required"`
}

// CriteriaSet groups the criteria configured for one equipment type.
type CriteriaSet struct {
	ID            string      `db:"id" json:"id"`
	EquipmentType string      `db:"equipment_type" json:"equipment_type"`
	Criteria      []Criterion `json:"criteria"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// Rating is the mutable 0-5 score an instructor assigns to one criterion.
// Score 0 means "not yet rated"; 1-5 is an assessed value.
type Rating struct {
	CriteriaID string `db:"criteria_id" json:"criteria_id"`
	Score      int    `db:"score" json:"score"`
	Notes      string `db:"notes" json:"notes"`
}

// NoteType classifies an observation note entry.
type NoteType string

const (
	NotePositive   NoteType = "positive"
	NoteConcern    NoteType = "concern"
	NoteAdaptation NoteType = "adaptation"
	NoteGeneral    NoteType = "general"
)

// ValidNoteType reports whether the given type is one of the known categories.
func ValidNoteType(t NoteType) bool {
	switch t {
	case NotePositive, NoteConcern, NoteAdaptation, NoteGeneral:
		return true
	}
	return false
}

// ObservationNote is an append-only timestamped log entry, independent of the
// rating grid.
type ObservationNote struct {
	ID               string    `db:"id" json:"id"`
	Timestamp        time.Time `db:"timestamp" json:"timestamp"`
	Type             NoteType  `db:"type" json:"type"`
	Content          string    `db:"content" json:"content"`
	EquipmentSection string    `db:"equipment_section" json:"equipment_section,omitempty"`
}

// Verdict is the categorical outcome derived from the weighted overall score.
type Verdict string

const (
	VerdictPass        Verdict = "PASS"
	VerdictConditional Verdict = "CONDITIONAL"
	VerdictFail        Verdict = "FAIL"
	VerdictPending     Verdict = "pending"
)

// ObservationContext carries the identity fields captured when an instructor
// starts an assessment session.
type ObservationContext struct {
	CandidateID       string `db:"candidate_id" json:"candidate_id"`
	CandidateName     string `db:"candidate_name" json:"candidate_name"`
	InstructorID      string `db:"instructor_id" json:"instructor_id"`
	EquipmentType     string `db:"equipment_type" json:"equipment_type"`
	Location          string `db:"location" json:"location"`
	Date              string `db:"date" json:"date"`
	StartTime         string `db:"start_time" json:"start_time"`
	EndTime           string `db:"end_time" json:"end_time"`
	WeatherConditions string `db:"weather_conditions" json:"weather_conditions"`
	InstructorNotes   string `db:"instructor_notes" json:"instructor_notes"`
}

// ObservationRecord is the immutable snapshot produced when an observation is
// finalized. Derived fields are frozen at finalize time.
type ObservationRecord struct {
	ID                string             `db:"id" json:"id"`
	Context           ObservationContext `json:"context"`
	Ratings           []Rating           `json:"ratings"`
	Notes             []ObservationNote  `json:"notes"`
	OverallRating     float64            `db:"overall_rating" json:"overall_rating"`
	PassFail          Verdict            `db:"pass_fail" json:"pass_fail"`
	TotalCriteria     int                `db:"total_criteria" json:"total_criteria"`
	CompletedCriteria int                `db:"completed_criteria" json:"completed_criteria"`
	Revision          int                `db:"revision" json:"revision"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
}

// ObservationFilter scopes listing of persisted observation records.
type ObservationFilter struct {
	CandidateID   string
	InstructorID  string
	EquipmentType string
	PassFail      Verdict
	Page          int
	PageSize      int
}

// ObservationSummary is the live view of an in-progress session returned to
// the form while the instructor is still scoring.
type ObservationSummary struct {
	ID                string            `json:"id"`
	EquipmentType     string            `json:"equipment_type"`
	OverallRating     float64           `json:"overall_rating"`
	PassFail          Verdict           `json:"pass_fail"`
	TotalCriteria     int               `json:"total_criteria"`
	CompletedCriteria int               `json:"completed_criteria"`
	Finalized         bool              `json:"finalized"`
	Revision          int               `json:"revision"`
	Ratings           []Rating          `json:"ratings"`
	Notes             []ObservationNote `json:"notes"`
}
