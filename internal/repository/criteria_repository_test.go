package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newCriteriaRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCriteriaRepositoryFindByEquipmentType(t *testing.T) {
	db, mock, cleanup := newCriteriaRepoMock(t)
	defer cleanup()
	repo := NewCriteriaRepository(db)

	now := time.Now()
	setRows := sqlmock.NewRows([]string{"id", "equipment_type", "created_at", "updated_at"}).
		AddRow("set-1", "Forward Tipping Dumper", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, equipment_type, created_at, updated_at FROM criteria_sets WHERE equipment_type = $1")).
		WithArgs("Forward Tipping Dumper").
		WillReturnRows(setRows)

	criteriaRows := sqlmock.NewRows([]string{"id", "category", "description", "weight", "required"}).
		AddRow("safety_check", "Safety & Preparation", "Pre-operation safety inspection completed", 10, true).
		AddRow("ppe_worn", "Safety & Preparation", "Appropriate PPE worn throughout", 8, true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM criteria WHERE criteria_set_id = $1 ORDER BY position ASC")).
		WithArgs("set-1").
		WillReturnRows(criteriaRows)

	set, err := repo.FindByEquipmentType(context.Background(), "Forward Tipping Dumper")
	require.NoError(t, err)
	require.Equal(t, "Forward Tipping Dumper", set.EquipmentType)
	require.Len(t, set.Criteria, 2)
	require.Equal(t, "safety_check", set.Criteria[0].ID)
	require.Equal(t, 10, set.Criteria[0].Weight)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCriteriaRepositoryFindByEquipmentTypeEmptySet(t *testing.T) {
	db, mock, cleanup := newCriteriaRepoMock(t)
	defer cleanup()
	repo := NewCriteriaRepository(db)

	now := time.Now()
	setRows := sqlmock.NewRows([]string{"id", "equipment_type", "created_at", "updated_at"}).
		AddRow("set-2", "Excavator", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, equipment_type, created_at, updated_at FROM criteria_sets WHERE equipment_type = $1")).
		WithArgs("Excavator").
		WillReturnRows(setRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM criteria WHERE criteria_set_id = $1 ORDER BY position ASC")).
		WithArgs("set-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "category", "description", "weight", "required"}))

	_, err := repo.FindByEquipmentType(context.Background(), "Excavator")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCriteriaRepositoryListEquipmentTypes(t *testing.T) {
	db, mock, cleanup := newCriteriaRepoMock(t)
	defer cleanup()
	repo := NewCriteriaRepository(db)

	rows := sqlmock.NewRows([]string{"equipment_type"}).
		AddRow("Excavator").
		AddRow("Forward Tipping Dumper")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT equipment_type FROM criteria_sets ORDER BY equipment_type ASC")).
		WillReturnRows(rows)

	types, err := repo.ListEquipmentTypes(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Excavator", "Forward Tipping Dumper"}, types)
	require.NoError(t, mock.ExpectationsWereMet())
}
