package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/plantcert/plantcert-api/internal/models"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
)

type contentRepository interface {
	Create(ctx context.Context, gen *models.ContentGeneration) error
	FindByID(ctx context.Context, id string) (*models.ContentGeneration, error)
	List(ctx context.Context, filter models.ContentFilter) ([]models.ContentGeneration, int, error)
	Approve(ctx context.Context, id, approvedBy string) error
}

// GenerateContentRequest asks for one piece of course material.
type GenerateContentRequest struct {
	Topic       string             `json:"topic" validate:"required"`
	ContentType models.ContentType `json:"content_type" validate:"required,oneof=lesson_plan quiz summary"`
	CourseID    *string            `json:"course_id"`
}

// ContentService produces draft course material from fixed templates.
// Generated drafts are unusable until an instructor or admin approves them.
type ContentService struct {
	repo      contentRepository
	audit     observationAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
	modelName string
}

// NewContentService constructs a ContentService.
func NewContentService(repo contentRepository, audit observationAuditRepository, validate *validator.Validate, logger *zap.Logger, modelName string) *ContentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if modelName == "" {
		modelName = "plantcert-templater-v1"
	}
	return &ContentService{repo: repo, audit: audit, validator: validate, logger: logger, modelName: modelName}
}

// Generate renders the template for the requested content type and stores the
// run.
func (s *ContentService) Generate(ctx context.Context, req GenerateContentRequest) (*models.ContentGeneration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	gen := &models.ContentGeneration{
		Prompt:           req.Topic,
		GeneratedContent: renderTemplate(req.ContentType, req.Topic),
		ModelUsed:        s.modelName,
		ContentType:      req.ContentType,
		CourseID:         req.CourseID,
		Approved:         false,
	}
	if err := s.repo.Create(ctx, gen); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store generation")
	}

	s.logger.Info("content generated",
		zap.String("generation_id", gen.ID),
		zap.String("content_type", string(gen.ContentType)))
	return gen, nil
}

// List returns generation runs matching the filter.
func (s *ContentService) List(ctx context.Context, filter models.ContentFilter) ([]models.ContentGeneration, *models.Pagination, error) {
	generations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list generations")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return generations, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Approve marks a generation as reviewed and usable.
func (s *ContentService) Approve(ctx context.Context, id, approvedBy string) (*models.ContentGeneration, error) {
	gen, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "generation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation")
	}
	if gen.Approved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "generation already approved")
	}

	if err := s.repo.Approve(ctx, id, approvedBy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve generation")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &approvedBy,
			Action:     models.AuditActionContentApprove,
			Resource:   "content_generation",
			ResourceID: &id,
		}); err != nil {
			s.logger.Warn("failed to record approval audit log", zap.Error(err))
		}
	}

	return s.repo.FindByID(ctx, id)
}

func renderTemplate(contentType models.ContentType, topic string) string {
	switch contentType {
	case models.ContentTypeLessonPlan:
		return strings.Join([]string{
			fmt.Sprintf("# Lesson Plan: %s", topic),
			"",
			"## Objectives",
			fmt.Sprintf("- Understand the safe operation principles of %s", topic),
			"- Identify the relevant site hazards and control measures",
			"",
			"## Outline",
			"1. Pre-operation checks and PPE requirements",
			fmt.Sprintf("2. Core techniques for %s", topic),
			"3. Site awareness and communication",
			"4. Shutdown and equipment care",
			"",
			"## Assessment",
			"Practical observation against the weighted criteria for this equipment type.",
		}, "\n")
	case models.ContentTypeQuiz:
		return strings.Join([]string{
			fmt.Sprintf("# Quiz: %s", topic),
			"",
			fmt.Sprintf("1. Name three pre-operation checks required before using %s.", topic),
			"2. What PPE is mandatory on site for this activity?",
			"3. Describe the correct response to an unexpected obstruction.",
			"4. What steps make up the correct shutdown procedure?",
		}, "\n")
	case models.ContentTypeSummary:
		return strings.Join([]string{
			fmt.Sprintf("# Summary: %s", topic),
			"",
			fmt.Sprintf("Key points for %s: complete pre-operation checks, wear the required PPE,", topic),
			"maintain site awareness at all times, follow the traffic management plan,",
			"and finish with the full shutdown and equipment care routine.",
		}, "\n")
	default:
		return fmt.Sprintf("# %s\n\nNo template available for this content type.", topic)
	}
}
