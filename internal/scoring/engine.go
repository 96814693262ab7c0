package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/plantcert/plantcert-api/internal/models"
)

// Score bounds for a single criterion. Zero is the "not yet rated" sentinel
// and stays a valid internal state; the form only offers 1-5.
const (
	MinScore = 0
	MaxScore = 5
)

// Engine errors. All are local and synchronous; a failed call leaves the
// engine state unchanged.
var (
	ErrUnknownCriterion = errors.New("scoring: unknown criterion")
	ErrInvalidScore     = errors.New("scoring: score out of range")
	ErrFinalized        = errors.New("scoring: observation finalized")
	ErrEmptyNote        = errors.New("scoring: note content required")
)

// Policy holds the verdict thresholds. Both bounds are inclusive. The values
// are a fixed assessment policy, not tunable per equipment type.
type Policy struct {
	PassThreshold        float64
	ConditionalThreshold float64
}

// DefaultPolicy mirrors the thresholds used on observation certificates:
// >= 3.5 passes, >= 2.5 is conditional, anything below fails.
var DefaultPolicy = Policy{
	PassThreshold:        3.5,
	ConditionalThreshold: 2.5,
}

// Classify maps a weighted overall score onto a verdict.
func (p Policy) Classify(score float64) models.Verdict {
	switch {
	case score >= p.PassThreshold:
		return models.VerdictPass
	case score >= p.ConditionalThreshold:
		return models.VerdictConditional
	default:
		return models.VerdictFail
	}
}

// Engine turns a sparse set of per-criterion 0-5 scores into a weighted
// overall score and a categorical verdict. It is a plain in-memory object
// with no framework or I/O dependency; the HTTP layer wraps it in a session.
type Engine struct {
	criteria []models.Criterion
	index    map[string]int
	ratings  map[string]*models.Rating
	notes    []models.ObservationNote

	policy    Policy
	finalized bool
	revision  int

	now   func() time.Time
	newID func() string
}

// Option customises engine construction.
type Option func(*Engine)

// WithPolicy overrides the verdict policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock injects a time source for note timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator injects the note/record ID source.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// New builds an engine for the supplied criteria list. The criteria set is
// fixed for the lifetime of the engine. Construction fails on an empty list,
// a duplicate criterion ID or a non-positive weight.
func New(criteria []models.Criterion, opts ...Option) (*Engine, error) {
	if len(criteria) == 0 {
		return nil, fmt.Errorf("scoring: at least one criterion required")
	}

	e := &Engine{
		criteria: make([]models.Criterion, len(criteria)),
		index:    make(map[string]int, len(criteria)),
		ratings:  make(map[string]*models.Rating, len(criteria)),
		policy:   DefaultPolicy,
		revision: 1,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	copy(e.criteria, criteria)

	for i, criterion := range e.criteria {
		if criterion.ID == "" {
			return nil, fmt.Errorf("scoring: criterion %d has empty id", i)
		}
		if criterion.Weight <= 0 {
			return nil, fmt.Errorf("scoring: criterion %q has non-positive weight %d", criterion.ID, criterion.Weight)
		}
		if _, exists := e.index[criterion.ID]; exists {
			return nil, fmt.Errorf("scoring: duplicate criterion id %q", criterion.ID)
		}
		e.index[criterion.ID] = i
		e.ratings[criterion.ID] = &models.Rating{CriteriaID: criterion.ID}
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// SetScore replaces the stored score for a criterion. Score must be within
// [0,5]; 0 resets the criterion to unrated.
func (e *Engine) SetScore(criteriaID string, score int) error {
	if e.finalized {
		return ErrFinalized
	}
	rating, ok := e.ratings[criteriaID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCriterion, criteriaID)
	}
	if score < MinScore || score > MaxScore {
		return fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}
	rating.Score = score
	return nil
}

// SetNotes attaches free text to a criterion's rating.
func (e *Engine) SetNotes(criteriaID, text string) error {
	if e.finalized {
		return ErrFinalized
	}
	rating, ok := e.ratings[criteriaID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCriterion, criteriaID)
	}
	rating.Notes = text
	return nil
}

// AddNote appends an entry to the observation note log. Notes keep insertion
// order and are never removed by the engine.
func (e *Engine) AddNote(noteType models.NoteType, content, equipmentSection string) (models.ObservationNote, error) {
	if e.finalized {
		return models.ObservationNote{}, ErrFinalized
	}
	if strings.TrimSpace(content) == "" {
		return models.ObservationNote{}, ErrEmptyNote
	}
	if !models.ValidNoteType(noteType) {
		noteType = models.NoteGeneral
	}
	note := models.ObservationNote{
		ID:               e.newID(),
		Timestamp:        e.now(),
		Type:             noteType,
		Content:          content,
		EquipmentSection: equipmentSection,
	}
	e.notes = append(e.notes, note)
	return note, nil
}

// OverallScore computes the weighted average over ALL defined criteria.
// Unrated criteria contribute zero to the numerator, so an incomplete
// assessment is scored as if unaddressed items failed. The result is rounded
// half away from zero to two decimal places. Pure function of current state.
func (e *Engine) OverallScore() float64 {
	totalWeight := 0
	weighted := 0
	for _, criterion := range e.criteria {
		totalWeight += criterion.Weight
		weighted += e.ratings[criterion.ID].Score * criterion.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return round2(float64(weighted) / float64(totalWeight))
}

// Verdict classifies the current overall score under the engine policy.
func (e *Engine) Verdict() models.Verdict {
	return e.policy.Classify(e.OverallScore())
}

// TotalCriteria returns the number of defined criteria.
func (e *Engine) TotalCriteria() int {
	return len(e.criteria)
}

// CompletedCriteria counts ratings with a score above the unset sentinel.
func (e *Engine) CompletedCriteria() int {
	completed := 0
	for _, rating := range e.ratings {
		if rating.Score > 0 {
			completed++
		}
	}
	return completed
}

// MissingRequired lists required criteria that are still unrated. Advisory
// only; finalize does not block on it.
func (e *Engine) MissingRequired() []string {
	var missing []string
	for _, criterion := range e.criteria {
		if criterion.Required && e.ratings[criterion.ID].Score == 0 {
			missing = append(missing, criterion.ID)
		}
	}
	sort.Strings(missing)
	return missing
}

// Criteria returns the criteria list in definition order.
func (e *Engine) Criteria() []models.Criterion {
	out := make([]models.Criterion, len(e.criteria))
	copy(out, e.criteria)
	return out
}

// Ratings returns the rating set in criteria definition order.
func (e *Engine) Ratings() []models.Rating {
	out := make([]models.Rating, 0, len(e.criteria))
	for _, criterion := range e.criteria {
		out = append(out, *e.ratings[criterion.ID])
	}
	return out
}

// Notes returns a copy of the note log in insertion order.
func (e *Engine) Notes() []models.ObservationNote {
	out := make([]models.ObservationNote, len(e.notes))
	copy(out, e.notes)
	return out
}

// Finalized reports whether the engine has been sealed.
func (e *Engine) Finalized() bool {
	return e.finalized
}

// Revision returns the current revision counter, starting at 1.
func (e *Engine) Revision() int {
	return e.revision
}

// Finalize seals the engine and snapshots the derived fields into an
// immutable record. Further mutating calls fail with ErrFinalized until
// Reopen produces a new revision. Calling Finalize twice is an error.
func (e *Engine) Finalize(ctx models.ObservationContext) (*models.ObservationRecord, error) {
	if e.finalized {
		return nil, ErrFinalized
	}
	e.finalized = true

	record := &models.ObservationRecord{
		ID:                e.newID(),
		Context:           ctx,
		Ratings:           e.Ratings(),
		Notes:             e.Notes(),
		OverallRating:     e.OverallScore(),
		PassFail:          e.Verdict(),
		TotalCriteria:     e.TotalCriteria(),
		CompletedCriteria: e.CompletedCriteria(),
		Revision:          e.revision,
		CreatedAt:         e.now(),
	}
	return record, nil
}

// Reopen returns a finalized engine to the in-progress state as a new
// revision. The previously emitted record is unaffected; any further
// finalize produces a distinct record with a higher revision number.
func (e *Engine) Reopen() {
	if !e.finalized {
		return
	}
	e.finalized = false
	e.revision++
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
