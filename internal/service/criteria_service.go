package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/plantcert/plantcert-api/internal/models"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
)

// DefaultEquipmentType is the catalog shipped with the service. Deployments
// without a configured criteria_sets table still get a working assessment
// form for this machine.
const DefaultEquipmentType = "Forward Tipping Dumper"

type criteriaRepository interface {
	FindByEquipmentType(ctx context.Context, equipmentType string) (*models.CriteriaSet, error)
	ListEquipmentTypes(ctx context.Context) ([]string, error)
}

type criteriaCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CriteriaService serves the equipment-specific observation criteria catalogs.
type CriteriaService struct {
	repo     criteriaRepository
	cache    criteriaCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCriteriaService constructs a CriteriaService. The cache is optional.
func NewCriteriaService(repo criteriaRepository, cache criteriaCache, cacheTTL time.Duration, logger *zap.Logger) *CriteriaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &CriteriaService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// GetByEquipmentType returns the criteria for the given equipment type.
// The built-in Forward Tipping Dumper catalog is served when the database
// has no set configured for it.
func (s *CriteriaService) GetByEquipmentType(ctx context.Context, equipmentType string) (*models.CriteriaSet, error) {
	if equipmentType == "" {
		equipmentType = DefaultEquipmentType
	}

	cacheKey := "criteria:" + equipmentType
	if s.cache != nil {
		var cached models.CriteriaSet
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	set, err := s.repo.FindByEquipmentType(ctx, equipmentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if equipmentType == DefaultEquipmentType {
				set = defaultCriteriaSet()
			} else {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no criteria configured for %s", equipmentType))
			}
		} else {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load criteria")
		}
	}

	if err := ValidateCriteria(set.Criteria); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, set, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache criteria set", zap.String("equipment_type", equipmentType), zap.Error(err))
		}
	}
	return set, nil
}

// ListEquipmentTypes returns every equipment type with a criteria catalog,
// always including the built-in default.
func (s *CriteriaService) ListEquipmentTypes(ctx context.Context) ([]string, error) {
	types, err := s.repo.ListEquipmentTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list equipment types")
	}
	seen := false
	for _, t := range types {
		if t == DefaultEquipmentType {
			seen = true
			break
		}
	}
	if !seen {
		types = append(types, DefaultEquipmentType)
		sort.Strings(types)
	}
	return types, nil
}

// ValidateCriteria checks that a criteria list is usable for scoring.
func ValidateCriteria(criteria []models.Criterion) error {
	if len(criteria) == 0 {
		return appErrors.Clone(appErrors.ErrInvalidCriteria, "criteria list is empty")
	}
	seen := make(map[string]struct{}, len(criteria))
	for _, c := range criteria {
		if c.ID == "" {
			return appErrors.Clone(appErrors.ErrInvalidCriteria, "criterion has empty id")
		}
		if _, dup := seen[c.ID]; dup {
			return appErrors.Clone(appErrors.ErrInvalidCriteria, fmt.Sprintf("duplicate criterion id %s", c.ID))
		}
		seen[c.ID] = struct{}{}
		if c.Weight <= 0 {
			return appErrors.Clone(appErrors.ErrInvalidCriteria, fmt.Sprintf("criterion %s has non-positive weight", c.ID))
		}
	}
	return nil
}

func defaultCriteriaSet() *models.CriteriaSet {
	return &models.CriteriaSet{
		ID:            "builtin-forward-tipping-dumper",
		EquipmentType: DefaultEquipmentType,
		Criteria: []models.Criterion{
			{ID: "safety_check", Category: "Safety & Preparation", Description: "Pre-operation safety inspection completed", Weight: 10, Required: true},
			{ID: "ppe_worn", Category: "Safety & Preparation", Description: "Appropriate PPE worn throughout", Weight: 8, Required: true},
			{ID: "risk_assessment", Category: "Safety & Preparation", Description: "Site risk assessment conducted", Weight: 7, Required: true},
			{ID: "startup_procedure", Category: "Equipment Operation", Description: "Correct startup procedure followed", Weight: 8, Required: true},
			{ID: "controls_operation", Category: "Equipment Operation", Description: "Smooth and safe operation of controls", Weight: 9, Required: true},
			{ID: "maneuvering", Category: "Equipment Operation", Description: "Safe maneuvering in confined spaces", Weight: 10, Required: true},
			{ID: "load_handling", Category: "Equipment Operation", Description: "Proper load handling and transport", Weight: 12, Required: true},
			{ID: "site_awareness", Category: "Site Awareness", Description: "Awareness of site hazards and personnel", Weight: 9, Required: true},
			{ID: "communication", Category: "Site Awareness", Description: "Effective communication with ground workers", Weight: 6, Required: false},
			{ID: "traffic_management", Category: "Site Awareness", Description: "Adherence to site traffic management plan", Weight: 8, Required: true},
			{ID: "problem_solving", Category: "Problem Solving", Description: "Appropriate response to unexpected situations", Weight: 7, Required: false},
			{ID: "adaptation", Category: "Problem Solving", Description: "Adaptation to changing site conditions", Weight: 6, Required: false},
			{ID: "shutdown_procedure", Category: "Shutdown & Maintenance", Description: "Correct shutdown and parking procedure", Weight: 6, Required: true},
			{ID: "equipment_care", Category: "Shutdown & Maintenance", Description: "Post-operation checks and equipment care", Weight: 5, Required: true},
		},
	}
}
