package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantcert/plantcert-api/internal/models"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
)

type mockCriteriaRepo struct {
	sets  map[string]*models.CriteriaSet
	types []string
}

func (m *mockCriteriaRepo) FindByEquipmentType(ctx context.Context, equipmentType string) (*models.CriteriaSet, error) {
	if set, ok := m.sets[equipmentType]; ok {
		return set, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCriteriaRepo) ListEquipmentTypes(ctx context.Context) ([]string, error) {
	return m.types, nil
}

type mapCriteriaCache struct {
	values map[string]interface{}
	sets   int
}

func (m *mapCriteriaCache) Get(ctx context.Context, key string, dest interface{}) error {
	if _, ok := m.values[key]; ok {
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (m *mapCriteriaCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.values == nil {
		m.values = make(map[string]interface{})
	}
	m.values[key] = value
	m.sets++
	return nil
}

func TestCriteriaServiceFallsBackToBuiltinCatalog(t *testing.T) {
	svc := NewCriteriaService(&mockCriteriaRepo{}, nil, 0, nil)

	set, err := svc.GetByEquipmentType(context.Background(), DefaultEquipmentType)
	require.NoError(t, err)
	assert.Equal(t, DefaultEquipmentType, set.EquipmentType)
	require.Len(t, set.Criteria, 14)

	totalWeight := 0
	for _, c := range set.Criteria {
		totalWeight += c.Weight
	}
	assert.Equal(t, 111, totalWeight)
}

func TestCriteriaServiceUnknownEquipment(t *testing.T) {
	svc := NewCriteriaService(&mockCriteriaRepo{}, nil, 0, nil)

	_, err := svc.GetByEquipmentType(context.Background(), "Tower Crane")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCriteriaServicePrefersConfiguredCatalog(t *testing.T) {
	repo := &mockCriteriaRepo{
		sets: map[string]*models.CriteriaSet{
			"Excavator": {
				EquipmentType: "Excavator",
				Criteria: []models.Criterion{
					{ID: "digging", Category: "Operation", Weight: 10, Required: true},
				},
			},
		},
	}
	svc := NewCriteriaService(repo, nil, 0, nil)

	set, err := svc.GetByEquipmentType(context.Background(), "Excavator")
	require.NoError(t, err)
	require.Len(t, set.Criteria, 1)
	assert.Equal(t, "digging", set.Criteria[0].ID)
}

func TestCriteriaServiceRejectsBadCatalog(t *testing.T) {
	repo := &mockCriteriaRepo{
		sets: map[string]*models.CriteriaSet{
			"Excavator": {
				EquipmentType: "Excavator",
				Criteria: []models.Criterion{
					{ID: "digging", Weight: 0},
				},
			},
		},
	}
	svc := NewCriteriaService(repo, nil, 0, nil)

	_, err := svc.GetByEquipmentType(context.Background(), "Excavator")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCriteria.Code, appErr.Code)
}

func TestCriteriaServiceCachesCatalog(t *testing.T) {
	cache := &mapCriteriaCache{}
	svc := NewCriteriaService(&mockCriteriaRepo{}, cache, time.Minute, nil)

	_, err := svc.GetByEquipmentType(context.Background(), DefaultEquipmentType)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from cache without another store write.
	_, err = svc.GetByEquipmentType(context.Background(), DefaultEquipmentType)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}

func TestCriteriaServiceListAlwaysIncludesDefault(t *testing.T) {
	svc := NewCriteriaService(&mockCriteriaRepo{types: []string{"Excavator"}}, nil, 0, nil)

	types, err := svc.ListEquipmentTypes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Excavator", DefaultEquipmentType}, types)
}
