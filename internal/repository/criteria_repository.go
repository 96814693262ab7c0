package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/plantcert/plantcert-api/internal/models"
)

// CriteriaRepository loads equipment-specific observation criteria catalogs.
// Criteria are configuration data maintained outside the API; this repository
// is read-only.
type CriteriaRepository struct {
	db *sqlx.DB
}

// NewCriteriaRepository constructs a new repository.
func NewCriteriaRepository(db *sqlx.DB) *CriteriaRepository {
	return &CriteriaRepository{db: db}
}

// FindByEquipmentType loads the criteria set for an equipment type together
// with its criteria in configured order.
func (r *CriteriaRepository) FindByEquipmentType(ctx context.Context, equipmentType string) (*models.CriteriaSet, error) {
	var set models.CriteriaSet
	query := `SELECT id, equipment_type, created_at, updated_at FROM criteria_sets WHERE equipment_type = $1`
	if err := r.db.GetContext(ctx, &set, query, equipmentType); err != nil {
		return nil, err
	}

	criteriaQuery := `SELECT id, category, description, weight, required
FROM criteria WHERE criteria_set_id = $1 ORDER BY position ASC`
	if err := r.db.SelectContext(ctx, &set.Criteria, criteriaQuery, set.ID); err != nil {
		return nil, fmt.Errorf("load criteria for %s: %w", equipmentType, err)
	}
	if len(set.Criteria) == 0 {
		return nil, sql.ErrNoRows
	}
	return &set, nil
}

// ListEquipmentTypes returns the equipment types with configured criteria.
func (r *CriteriaRepository) ListEquipmentTypes(ctx context.Context) ([]string, error) {
	var types []string
	if err := r.db.SelectContext(ctx, &types, "SELECT equipment_type FROM criteria_sets ORDER BY equipment_type ASC"); err != nil {
		return nil, fmt.Errorf("list equipment types: %w", err)
	}
	return types, nil
}
