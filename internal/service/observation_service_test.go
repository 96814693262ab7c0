package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantcert/plantcert-api/internal/models"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
)

type mockObservationRepo struct {
	mu        sync.Mutex
	records   map[string]*models.ObservationRecord
	createErr error
}

func (m *mockObservationRepo) Create(ctx context.Context, record *models.ObservationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if m.records == nil {
		m.records = make(map[string]*models.ObservationRecord)
	}
	m.records[record.ID] = record
	return nil
}

func (m *mockObservationRepo) FindByID(ctx context.Context, id string) (*models.ObservationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockObservationRepo) List(ctx context.Context, filter models.ObservationFilter) ([]models.ObservationRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ObservationRecord
	for _, r := range m.records {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockObservationRepo) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
}

func (m *mockObservationRepo) setCreateErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

type mockAuditRepo struct {
	logs []models.AuditLog
}

func (m *mockAuditRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

type staticCriteriaProvider struct {
	set *models.CriteriaSet
	err error
}

func (p *staticCriteriaProvider) GetByEquipmentType(ctx context.Context, equipmentType string) (*models.CriteriaSet, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.set, nil
}

func twoCriteriaSet() *models.CriteriaSet {
	return &models.CriteriaSet{
		EquipmentType: DefaultEquipmentType,
		Criteria: []models.Criterion{
			{ID: "safety_check", Category: "Safety & Preparation", Weight: 10, Required: true},
			{ID: "load_handling", Category: "Equipment Operation", Weight: 10, Required: true},
		},
	}
}

func newObservationFixture(t *testing.T) (*ObservationService, *mockObservationRepo, *mockAuditRepo) {
	t.Helper()
	repo := &mockObservationRepo{}
	audit := &mockAuditRepo{}
	svc := NewObservationService(repo, audit, &staticCriteriaProvider{set: twoCriteriaSet()}, nil, nil, 0)
	return svc, repo, audit
}

func startSession(t *testing.T, svc *ObservationService) string {
	t.Helper()
	summary, err := svc.Start(context.Background(), "inst-1", StartObservationRequest{
		CandidateID:   "cand-1",
		CandidateName: "Jordan Field",
	})
	require.NoError(t, err)
	return summary.ID
}

func TestObservationServiceStartDefaultsEquipment(t *testing.T) {
	svc, _, _ := newObservationFixture(t)

	summary, err := svc.Start(context.Background(), "inst-1", StartObservationRequest{
		CandidateID:   "cand-1",
		CandidateName: "Jordan Field",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultEquipmentType, summary.EquipmentType)
	assert.Equal(t, 2, summary.TotalCriteria)
	assert.Equal(t, 0, summary.CompletedCriteria)
	assert.Equal(t, models.VerdictFail, summary.PassFail)
	assert.Equal(t, 1, svc.ActiveSessions())
}

func TestObservationServiceStartRejectsMissingCandidate(t *testing.T) {
	svc, _, _ := newObservationFixture(t)

	_, err := svc.Start(context.Background(), "inst-1", StartObservationRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestObservationServiceSetScoreUpdatesSummary(t *testing.T) {
	svc, _, _ := newObservationFixture(t)
	id := startSession(t, svc)

	summary, err := svc.SetScore(context.Background(), id, "inst-1", "safety_check", ScoreRequest{Score: 5, Notes: "clean checks"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CompletedCriteria)
	assert.InDelta(t, 2.5, summary.OverallRating, 0.0001)
	assert.Equal(t, models.VerdictConditional, summary.PassFail)
}

func TestObservationServiceSetScoreUnknownCriterion(t *testing.T) {
	svc, _, _ := newObservationFixture(t)
	id := startSession(t, svc)

	_, err := svc.SetScore(context.Background(), id, "inst-1", "hoisting", ScoreRequest{Score: 4})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnknownCriterion.Code, appErr.Code)
}

func TestObservationServiceScoreForeignInstructor(t *testing.T) {
	svc, _, _ := newObservationFixture(t)
	id := startSession(t, svc)

	_, err := svc.SetScore(context.Background(), id, "inst-2", "safety_check", ScoreRequest{Score: 4})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestObservationServiceFinalizePersistsAndAudits(t *testing.T) {
	svc, repo, audit := newObservationFixture(t)
	id := startSession(t, svc)

	_, err := svc.SetScore(context.Background(), id, "inst-1", "safety_check", ScoreRequest{Score: 5})
	require.NoError(t, err)
	_, err = svc.SetScore(context.Background(), id, "inst-1", "load_handling", ScoreRequest{Score: 4})
	require.NoError(t, err)
	_, err = svc.AddNote(context.Background(), id, "inst-1", NoteRequest{Type: models.NotePositive, Content: "good load control"})
	require.NoError(t, err)

	record, err := svc.Finalize(context.Background(), id, "inst-1", FinalizeRequest{EndTime: "10:30"})
	require.NoError(t, err)
	assert.Equal(t, id, record.ID)
	assert.InDelta(t, 4.5, record.OverallRating, 0.0001)
	assert.Equal(t, models.VerdictPass, record.PassFail)
	assert.Len(t, record.Notes, 1)
	assert.Equal(t, "10:30", record.Context.EndTime)

	require.Contains(t, repo.records, id)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionObservationFinalize, audit.logs[0].Action)

	// Session is gone once persisted.
	assert.Equal(t, 0, svc.ActiveSessions())
	_, err = svc.Snapshot(context.Background(), id, "inst-1")
	require.Error(t, err)
}

func TestObservationServiceFinalizeKeepsSessionOnPersistFailure(t *testing.T) {
	svc, repo, _ := newObservationFixture(t)
	id := startSession(t, svc)
	repo.setCreateErr(errors.New("db down"))

	_, err := svc.Finalize(context.Background(), id, "inst-1", FinalizeRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, svc.ActiveSessions())

	// After the store recovers, reopening and finalizing again succeeds.
	// The reopen starts a new revision even though the first snapshot
	// never reached the store.
	repo.setCreateErr(nil)
	_, err = svc.Reopen(context.Background(), id, "inst-1")
	require.NoError(t, err)
	record, err := svc.Finalize(context.Background(), id, "inst-1", FinalizeRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, record.Revision)
}

func TestObservationServiceReopenOnlyCountsAfterFinalize(t *testing.T) {
	svc, repo, _ := newObservationFixture(t)
	id := startSession(t, svc)

	summary, err := svc.Snapshot(context.Background(), id, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Revision)

	// Reopening a session that was never sealed is a no-op.
	summary, err = svc.Reopen(context.Background(), id, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Revision)
	assert.False(t, summary.Finalized)

	// Once sealed, reopening starts the next revision.
	repo.setCreateErr(errors.New("db down"))
	_, err = svc.Finalize(context.Background(), id, "inst-1", FinalizeRequest{})
	require.Error(t, err)
	summary, err = svc.Reopen(context.Background(), id, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Revision)
	assert.False(t, summary.Finalized)
}

func TestObservationServiceConcurrentSessions(t *testing.T) {
	svc, _, _ := newObservationFixture(t)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := svc.Start(context.Background(), "inst-1", StartObservationRequest{
				CandidateID:   "cand-1",
				CandidateName: "Jordan Field",
			})
			if !assert.NoError(t, err) {
				return
			}
			_, err = svc.SetScore(context.Background(), summary.ID, "inst-1", "safety_check", ScoreRequest{Score: 4})
			assert.NoError(t, err)
			_, err = svc.Snapshot(context.Background(), summary.ID, "inst-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, svc.ActiveSessions())
}

func TestObservationServiceGetMissingRecord(t *testing.T) {
	svc, _, _ := newObservationFixture(t)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
