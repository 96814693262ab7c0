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

// ContentRepository stores generated course material.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository constructs a new repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create inserts one generation record.
func (r *ContentRepository) Create(ctx context.Context, gen *models.ContentGeneration) error {
	if gen.ID == "" {
		gen.ID = uuid.NewString()
	}
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO content_generations (id, prompt, generated_content, model_used, content_type, course_id, approved, created_at)
VALUES (:id, :prompt, :generated_content, :model_used, :content_type, :course_id, :approved, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, gen); err != nil {
		return fmt.Errorf("insert content generation: %w", err)
	}
	return nil
}

// FindByID loads one generation record.
func (r *ContentRepository) FindByID(ctx context.Context, id string) (*models.ContentGeneration, error) {
	var gen models.ContentGeneration
	query := `SELECT id, prompt, generated_content, model_used, content_type, course_id, approved, approved_by, approved_at, created_at
FROM content_generations WHERE id = $1`
	if err := r.db.GetContext(ctx, &gen, query, id); err != nil {
		return nil, err
	}
	return &gen, nil
}

// List returns generation records per provided filter.
func (r *ContentRepository) List(ctx context.Context, filter models.ContentFilter) ([]models.ContentGeneration, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.ContentType != "" {
		where = append(where, fmt.Sprintf("content_type = $%d", len(args)+1))
		args = append(args, string(filter.ContentType))
	}
	if filter.Approved != nil {
		where = append(where, fmt.Sprintf("approved = $%d", len(args)+1))
		args = append(args, *filter.Approved)
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

	query := fmt.Sprintf(`SELECT id, prompt, generated_content, model_used, content_type, course_id, approved, approved_by, approved_at, created_at
FROM content_generations WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, whereClause, size, offset)

	var generations []models.ContentGeneration
	if err := r.db.SelectContext(ctx, &generations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list content generations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM content_generations WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count content generations: %w", err)
	}
	return generations, total, nil
}

// Approve marks a generation as approved by the given reviewer.
func (r *ContentRepository) Approve(ctx context.Context, id, approvedBy string) error {
	query := `UPDATE content_generations SET approved = TRUE, approved_by = $2, approved_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, approvedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("approve content generation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve content generation rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("content generation %s not found", id)
	}
	return nil
}
