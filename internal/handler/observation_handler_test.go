package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantcert/plantcert-api/internal/middleware"
	"github.com/plantcert/plantcert-api/internal/models"
	"github.com/plantcert/plantcert-api/internal/service"
)

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error map[string]interface{} `json:"error"`
}

type fakeObservationRepo struct {
	records map[string]*models.ObservationRecord
}

func (f *fakeObservationRepo) Create(_ context.Context, record *models.ObservationRecord) error {
	if f.records == nil {
		f.records = map[string]*models.ObservationRecord{}
	}
	f.records[record.ID] = record
	return nil
}

func (f *fakeObservationRepo) FindByID(_ context.Context, id string) (*models.ObservationRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, assert.AnError
	}
	return record, nil
}

func (f *fakeObservationRepo) List(context.Context, models.ObservationFilter) ([]models.ObservationRecord, int, error) {
	return nil, 0, nil
}

type fakeAuditRepo struct{}

func (fakeAuditRepo) CreateAuditLog(context.Context, *models.AuditLog) error { return nil }

type fakeCriteriaProvider struct{}

func (fakeCriteriaProvider) GetByEquipmentType(_ context.Context, equipmentType string) (*models.CriteriaSet, error) {
	return &models.CriteriaSet{
		EquipmentType: equipmentType,
		Criteria: []models.Criterion{
			{ID: "safety_check", Category: "Safety & Preparation", Description: "Pre-start safety checks", Weight: 10, Required: true},
			{ID: "maneuvering", Category: "Equipment Operation", Description: "Controlled maneuvering", Weight: 10, Required: true},
		},
	}, nil
}

func newTestObservationHandler() *ObservationHandler {
	svc := service.NewObservationService(&fakeObservationRepo{}, fakeAuditRepo{}, fakeCriteriaProvider{}, nil, nil, 0)
	return NewObservationHandler(svc)
}

func authedContext(t *testing.T, rec *httptest.ResponseRecorder, method, target string, body interface{}) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "instructor-1", Role: models.RoleInstructor})
	return c
}

func TestObservationHandlerStart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestObservationHandler()

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/observations", map[string]string{
		"candidate_id":   "cand-1",
		"candidate_name": "Jamie Field",
		"equipment_type": "Forward Tipping Dumper",
	})

	handler.Start(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data["id"])
	assert.Equal(t, "Forward Tipping Dumper", envelope.Data["equipment_type"])
	assert.Equal(t, float64(2), envelope.Data["total_criteria"])
	assert.Equal(t, float64(0), envelope.Data["completed_criteria"])
}

func TestObservationHandlerStartRejectsMissingCandidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestObservationHandler()

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/observations", map[string]string{
		"candidate_name": "Jamie Field",
	})

	handler.Start(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestObservationHandlerStartRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestObservationHandler()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/observations", bytes.NewReader(nil))

	handler.Start(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestObservationHandlerScoreAndSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestObservationHandler()

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/observations", map[string]string{
		"candidate_id":   "cand-1",
		"candidate_name": "Jamie Field",
	})
	handler.Start(c)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id, _ := created.Data["id"].(string)
	require.NotEmpty(t, id)

	rec = httptest.NewRecorder()
	c = authedContext(t, rec, http.MethodPut, "/observations/"+id+"/scores/safety_check", map[string]interface{}{
		"score": 4,
		"notes": "solid walkaround",
	})
	c.Params = gin.Params{{Key: "id", Value: id}, {Key: "criteriaId", Value: "safety_check"}}

	handler.SetScore(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var scored responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scored))
	// safety_check 4 counts, maneuvering unrated counts as zero: 40/20 = 2.0
	assert.InDelta(t, 2.0, scored.Data["overall_rating"], 0.001)
	assert.Equal(t, string(models.VerdictFail), scored.Data["pass_fail"])
	assert.Equal(t, float64(1), scored.Data["completed_criteria"])
}

func TestObservationHandlerScoreUnknownCriterion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestObservationHandler()

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/observations", map[string]string{
		"candidate_id":   "cand-1",
		"candidate_name": "Jamie Field",
	})
	handler.Start(c)
	var created responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id, _ := created.Data["id"].(string)

	rec = httptest.NewRecorder()
	c = authedContext(t, rec, http.MethodPut, "/observations/"+id+"/scores/winching", map[string]interface{}{"score": 3})
	c.Params = gin.Params{{Key: "id", Value: id}, {Key: "criteriaId", Value: "winching"}}

	handler.SetScore(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestObservationHandlerFinalize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestObservationHandler()

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/observations", map[string]string{
		"candidate_id":   "cand-1",
		"candidate_name": "Jamie Field",
	})
	handler.Start(c)
	var created responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id, _ := created.Data["id"].(string)

	for _, criterion := range []string{"safety_check", "maneuvering"} {
		rec = httptest.NewRecorder()
		c = authedContext(t, rec, http.MethodPut, "/observations/"+id+"/scores/"+criterion, map[string]interface{}{"score": 4})
		c.Params = gin.Params{{Key: "id", Value: id}, {Key: "criteriaId", Value: criterion}}
		handler.SetScore(c)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	c = authedContext(t, rec, http.MethodPost, "/observations/"+id+"/finalize", map[string]string{
		"end_time":         "15:30",
		"instructor_notes": "ready for reassessment next term",
	})
	c.Params = gin.Params{{Key: "id", Value: id}}

	handler.Finalize(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var finalized responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &finalized))
	assert.Equal(t, string(models.VerdictPass), finalized.Data["pass_fail"])
	assert.InDelta(t, 4.0, finalized.Data["overall_rating"], 0.001)

	// the session is gone once persisted
	rec = httptest.NewRecorder()
	c = authedContext(t, rec, http.MethodGet, "/observations/"+id, nil)
	c.Params = gin.Params{{Key: "id", Value: id}}
	handler.Snapshot(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
