package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/plantcert/plantcert-api/internal/models"
)

// ObservationRepository persists finalized observation records.
type ObservationRepository struct {
	db *sqlx.DB
}

// NewObservationRepository constructs a new repository.
func NewObservationRepository(db *sqlx.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

type observationRow struct {
	ID                string    `db:"id"`
	OverallRating     float64   `db:"overall_rating"`
	PassFail          string    `db:"pass_fail"`
	TotalCriteria     int       `db:"total_criteria"`
	CompletedCriteria int       `db:"completed_criteria"`
	Revision          int       `db:"revision"`
	CreatedAt         time.Time `db:"created_at"`
	models.ObservationContext
}

// Create writes the record header, ratings and notes in one transaction.
func (r *ObservationRepository) Create(ctx context.Context, record *models.ObservationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin observation tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	headerQuery := `INSERT INTO observations (id, candidate_id, candidate_name, instructor_id, equipment_type, location, date,
        start_time, end_time, weather_conditions, instructor_notes, overall_rating, pass_fail, total_criteria, completed_criteria, revision, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	if _, err := tx.ExecContext(ctx, headerQuery,
		record.ID,
		record.Context.CandidateID,
		record.Context.CandidateName,
		record.Context.InstructorID,
		record.Context.EquipmentType,
		record.Context.Location,
		record.Context.Date,
		record.Context.StartTime,
		record.Context.EndTime,
		record.Context.WeatherConditions,
		record.Context.InstructorNotes,
		record.OverallRating,
		string(record.PassFail),
		record.TotalCriteria,
		record.CompletedCriteria,
		record.Revision,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}

	ratingQuery := `INSERT INTO observation_ratings (observation_id, criteria_id, score, notes) VALUES ($1, $2, $3, $4)`
	for _, rating := range record.Ratings {
		if _, err := tx.ExecContext(ctx, ratingQuery, record.ID, rating.CriteriaID, rating.Score, rating.Notes); err != nil {
			return fmt.Errorf("insert observation rating: %w", err)
		}
	}

	noteQuery := `INSERT INTO observation_notes (id, observation_id, timestamp, type, content, equipment_section, position)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i, note := range record.Notes {
		if _, err := tx.ExecContext(ctx, noteQuery, note.ID, record.ID, note.Timestamp, string(note.Type), note.Content, note.EquipmentSection, i); err != nil {
			return fmt.Errorf("insert observation note: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit observation tx: %w", err)
	}
	return nil
}

// FindByID loads one record with ratings and notes.
func (r *ObservationRepository) FindByID(ctx context.Context, id string) (*models.ObservationRecord, error) {
	var row observationRow
	query := `SELECT id, candidate_id, candidate_name, instructor_id, equipment_type, location, date, start_time, end_time,
        weather_conditions, instructor_notes, overall_rating, pass_fail, total_criteria, completed_criteria, revision, created_at
FROM observations WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	record := rowToRecord(row)

	ratingsQuery := `SELECT criteria_id, score, notes FROM observation_ratings WHERE observation_id = $1 ORDER BY criteria_id ASC`
	if err := r.db.SelectContext(ctx, &record.Ratings, ratingsQuery, id); err != nil {
		return nil, fmt.Errorf("load observation ratings: %w", err)
	}

	notesQuery := `SELECT id, timestamp, type, content, equipment_section FROM observation_notes WHERE observation_id = $1 ORDER BY position ASC`
	if err := r.db.SelectContext(ctx, &record.Notes, notesQuery, id); err != nil {
		return nil, fmt.Errorf("load observation notes: %w", err)
	}
	return record, nil
}

// List returns observation record headers per provided filter.
func (r *ObservationRepository) List(ctx context.Context, filter models.ObservationFilter) ([]models.ObservationRecord, int, error) {
	base := "FROM observations"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.CandidateID != "" {
		where = append(where, fmt.Sprintf("candidate_id = $%d", len(args)+1))
		args = append(args, filter.CandidateID)
	}
	if filter.InstructorID != "" {
		where = append(where, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.EquipmentType != "" {
		where = append(where, fmt.Sprintf("equipment_type = $%d", len(args)+1))
		args = append(args, filter.EquipmentType)
	}
	if filter.PassFail != "" {
		where = append(where, fmt.Sprintf("pass_fail = $%d", len(args)+1))
		args = append(args, string(filter.PassFail))
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, candidate_id, candidate_name, instructor_id, equipment_type, location, date, start_time, end_time,
        weather_conditions, instructor_notes, overall_rating, pass_fail, total_criteria, completed_criteria, revision, created_at
%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var rows []observationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list observations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count observations: %w", err)
	}

	records := make([]models.ObservationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, *rowToRecord(row))
	}
	return records, total, nil
}

// VerdictCounts aggregates pass/conditional/fail totals for an instructor.
// An empty instructorID aggregates across all instructors.
func (r *ObservationRepository) VerdictCounts(ctx context.Context, instructorID string) (map[models.Verdict]int, error) {
	query := `SELECT pass_fail, COUNT(*) AS count FROM observations WHERE ($1 = '' OR instructor_id = $1) GROUP BY pass_fail`
	rows, err := r.db.QueryxContext(ctx, query, instructorID)
	if err != nil {
		return nil, fmt.Errorf("verdict counts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[models.Verdict]int)
	for rows.Next() {
		var verdict string
		var count int
		if err := rows.Scan(&verdict, &count); err != nil {
			return nil, fmt.Errorf("scan verdict count: %w", err)
		}
		counts[models.Verdict(verdict)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdict counts: %w", err)
	}
	return counts, nil
}

func rowToRecord(row observationRow) *models.ObservationRecord {
	return &models.ObservationRecord{
		ID:                row.ID,
		Context:           row.ObservationContext,
		OverallRating:     row.OverallRating,
		PassFail:          models.Verdict(row.PassFail),
		TotalCriteria:     row.TotalCriteria,
		CompletedCriteria: row.CompletedCriteria,
		Revision:          row.Revision,
		CreatedAt:         row.CreatedAt,
	}
}
