package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantcert/plantcert-api/internal/models"
)

func equalWeightCriteria(n int) []models.Criterion {
	criteria := make([]models.Criterion, 0, n)
	for i := 0; i < n; i++ {
		criteria = append(criteria, models.Criterion{
			ID:          string(rune('a' + i)),
			Category:    "General",
			Description: "criterion",
			Weight:      1,
			Required:    i%2 == 0,
		})
	}
	return criteria
}

func TestEngineRejectsBadCriteria(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New([]models.Criterion{{ID: "a", Weight: 0}})
	assert.Error(t, err)

	_, err = New([]models.Criterion{{ID: "a", Weight: 1}, {ID: "a", Weight: 2}})
	assert.Error(t, err)
}

func TestZeroStateScoresAsFail(t *testing.T) {
	engine, err := New(equalWeightCriteria(5))
	require.NoError(t, err)

	assert.Equal(t, 0.0, engine.OverallScore())
	assert.Equal(t, models.VerdictFail, engine.Verdict())
	assert.Equal(t, 0, engine.CompletedCriteria())
}

func TestFullCreditScoresAsPass(t *testing.T) {
	criteria := equalWeightCriteria(5)
	engine, err := New(criteria)
	require.NoError(t, err)

	for _, criterion := range criteria {
		require.NoError(t, engine.SetScore(criterion.ID, 5))
	}

	assert.Equal(t, 5.0, engine.OverallScore())
	assert.Equal(t, models.VerdictPass, engine.Verdict())
	assert.Equal(t, 5, engine.CompletedCriteria())
}

func TestWeightedAverage(t *testing.T) {
	engine, err := New([]models.Criterion{
		{ID: "heavy", Weight: 10},
		{ID: "light", Weight: 10},
	})
	require.NoError(t, err)

	require.NoError(t, engine.SetScore("heavy", 5))
	require.NoError(t, engine.SetScore("light", 1))

	// (10*5 + 10*1) / 20 = 3.00, below the 3.5 pass bound.
	assert.Equal(t, 3.0, engine.OverallScore())
	assert.Equal(t, models.VerdictConditional, engine.Verdict())
}

func TestVerdictBoundariesAreInclusive(t *testing.T) {
	policy := DefaultPolicy

	assert.Equal(t, models.VerdictPass, policy.Classify(3.5))
	assert.Equal(t, models.VerdictConditional, policy.Classify(3.49))
	assert.Equal(t, models.VerdictConditional, policy.Classify(2.5))
	assert.Equal(t, models.VerdictFail, policy.Classify(2.49999))
	assert.Equal(t, models.VerdictFail, policy.Classify(0))

	// An engine state that lands exactly on the pass bound.
	engine, err := New([]models.Criterion{
		{ID: "a", Weight: 1},
		{ID: "b", Weight: 1},
	})
	require.NoError(t, err)
	require.NoError(t, engine.SetScore("a", 3))
	require.NoError(t, engine.SetScore("b", 4))
	assert.Equal(t, 3.5, engine.OverallScore())
	assert.Equal(t, models.VerdictPass, engine.Verdict())
}

func TestUnratedCriteriaCountAsZero(t *testing.T) {
	engine, err := New(equalWeightCriteria(14))
	require.NoError(t, err)

	require.NoError(t, engine.SetScore("a", 5))

	// 5/14, not 5.00: incomplete assessments are penalized, never excluded.
	assert.Equal(t, 0.36, engine.OverallScore())
	assert.Equal(t, models.VerdictFail, engine.Verdict())
	assert.Equal(t, 1, engine.CompletedCriteria())
	assert.Equal(t, 14, engine.TotalCriteria())
}

func TestOverallScoreIsIdempotent(t *testing.T) {
	engine, err := New(equalWeightCriteria(3))
	require.NoError(t, err)
	require.NoError(t, engine.SetScore("a", 4))

	first := engine.OverallScore()
	second := engine.OverallScore()
	assert.Equal(t, first, second)
}

func TestNoteLogKeepsInsertionOrder(t *testing.T) {
	engine, err := New(equalWeightCriteria(3))
	require.NoError(t, err)

	_, err = engine.AddNote(models.NotePositive, "A", "")
	require.NoError(t, err)
	require.NoError(t, engine.SetScore("a", 2))
	_, err = engine.AddNote(models.NoteConcern, "B", "Load Operations")
	require.NoError(t, err)
	require.NoError(t, engine.SetScore("b", 5))
	_, err = engine.AddNote(models.NoteGeneral, "C", "")
	require.NoError(t, err)

	record, err := engine.Finalize(models.ObservationContext{})
	require.NoError(t, err)

	require.Len(t, record.Notes, 3)
	assert.Equal(t, "A", record.Notes[0].Content)
	assert.Equal(t, "B", record.Notes[1].Content)
	assert.Equal(t, "C", record.Notes[2].Content)
}

func TestUnknownCriterionLeavesStateUnchanged(t *testing.T) {
	engine, err := New(equalWeightCriteria(3))
	require.NoError(t, err)
	require.NoError(t, engine.SetScore("a", 4))

	before := engine.Ratings()

	err = engine.SetScore("does-not-exist", 3)
	assert.ErrorIs(t, err, ErrUnknownCriterion)
	err = engine.SetNotes("does-not-exist", "text")
	assert.ErrorIs(t, err, ErrUnknownCriterion)

	assert.Equal(t, before, engine.Ratings())
}

func TestInvalidScoreRejected(t *testing.T) {
	engine, err := New(equalWeightCriteria(3))
	require.NoError(t, err)

	assert.ErrorIs(t, engine.SetScore("a", 6), ErrInvalidScore)
	assert.ErrorIs(t, engine.SetScore("a", -1), ErrInvalidScore)

	// resetting to the unset sentinel is legal
	require.NoError(t, engine.SetScore("a", 3))
	require.NoError(t, engine.SetScore("a", 0))
	assert.Equal(t, 0, engine.CompletedCriteria())
}

func TestFinalizeSnapshotsAndSeals(t *testing.T) {
	ts := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)
	ids := 0
	engine, err := New(equalWeightCriteria(2),
		WithClock(func() time.Time { return ts }),
		WithIDGenerator(func() string { ids++; return string(rune('0' + ids)) }),
	)
	require.NoError(t, err)

	require.NoError(t, engine.SetScore("a", 4))
	require.NoError(t, engine.SetScore("b", 4))
	require.NoError(t, engine.SetNotes("a", "smooth operation"))

	record, err := engine.Finalize(models.ObservationContext{CandidateName: "J. Mills", EquipmentType: "Forward Tipping Dumper"})
	require.NoError(t, err)
	assert.Equal(t, 4.0, record.OverallRating)
	assert.Equal(t, models.VerdictPass, record.PassFail)
	assert.Equal(t, 2, record.CompletedCriteria)
	assert.Equal(t, 2, record.TotalCriteria)
	assert.Equal(t, 1, record.Revision)
	assert.Equal(t, ts, record.CreatedAt)

	// sealed: every mutating call is rejected
	assert.ErrorIs(t, engine.SetScore("a", 1), ErrFinalized)
	assert.ErrorIs(t, engine.SetNotes("a", "late edit"), ErrFinalized)
	_, err = engine.AddNote(models.NoteGeneral, "late note", "")
	assert.ErrorIs(t, err, ErrFinalized)
	_, err = engine.Finalize(models.ObservationContext{})
	assert.ErrorIs(t, err, ErrFinalized)

	// the emitted record does not track later engine state
	engine.Reopen()
	require.NoError(t, engine.SetScore("a", 1))
	assert.Equal(t, 4.0, record.OverallRating)
}

func TestReopenProducesNewRevision(t *testing.T) {
	engine, err := New(equalWeightCriteria(2))
	require.NoError(t, err)
	require.NoError(t, engine.SetScore("a", 5))
	require.NoError(t, engine.SetScore("b", 5))

	first, err := engine.Finalize(models.ObservationContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Revision)
	assert.True(t, engine.Finalized())

	engine.Reopen()
	assert.False(t, engine.Finalized())
	require.NoError(t, engine.SetScore("b", 1))

	second, err := engine.Finalize(models.ObservationContext{})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Revision)
	assert.Equal(t, 3.0, second.OverallRating)
}

func TestMissingRequired(t *testing.T) {
	engine, err := New([]models.Criterion{
		{ID: "safety_check", Weight: 10, Required: true},
		{ID: "communication", Weight: 6, Required: false},
		{ID: "ppe_worn", Weight: 8, Required: true},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ppe_worn", "safety_check"}, engine.MissingRequired())

	require.NoError(t, engine.SetScore("safety_check", 4))
	assert.Equal(t, []string{"ppe_worn"}, engine.MissingRequired())
}
