package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ohsansi/olimpiada-api/internal/models"
	"github.com/ohsansi/olimpiada-api/internal/repository"
	appErrors "github.com/ohsansi/olimpiada-api/pkg/errors"
)

type mockEvaluationStore struct {
	evaluations       map[string]*models.Evaluation
	saved             []repository.SaveScoreParams
	phaseClosed       bool
	missingEnrollment bool
	// requests receives resolve directives, mirroring the repository
	// committing both in one transaction.
	requests *mockChangeRequestStore
}

func (m *mockEvaluationStore) Save(ctx context.Context, params repository.SaveScoreParams) (*models.Evaluation, bool, error) {
	if m.phaseClosed {
		return nil, false, repository.ErrPhaseClosed
	}
	if m.missingEnrollment {
		return nil, false, repository.ErrEnrollmentNotFound
	}
	// A failed resolve rolls the whole write back, so nothing is
	// recorded.
	if params.Resolve != nil {
		if err := m.requests.Resolve(ctx, *params.Resolve); err != nil {
			return nil, false, repository.ErrRequestResolved
		}
	}
	m.saved = append(m.saved, params)
	if m.evaluations == nil {
		m.evaluations = make(map[string]*models.Evaluation)
	}
	key := params.EnrollmentID + ":" + params.EvaluatorID + ":" + string(params.Phase)
	if existing, ok := m.evaluations[key]; ok {
		existing.Score = params.Score
		existing.Observations = params.Observations
		return existing, true, nil
	}
	evaluation := &models.Evaluation{
		ID:           "ev-" + key,
		EnrollmentID: params.EnrollmentID,
		EvaluatorID:  params.EvaluatorID,
		Phase:        params.Phase,
		Score:        params.Score,
		Observations: params.Observations,
	}
	m.evaluations[key] = evaluation
	return evaluation, false, nil
}

func (m *mockEvaluationStore) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	for _, evaluation := range m.evaluations {
		if evaluation.ID == id {
			return evaluation, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEvaluationStore) List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, error) {
	var result []models.Evaluation
	for _, evaluation := range m.evaluations {
		if filter.EnrollmentID != "" && filter.EnrollmentID != evaluation.EnrollmentID {
			continue
		}
		if filter.EvaluatorID != "" && filter.EvaluatorID != evaluation.EvaluatorID {
			continue
		}
		result = append(result, *evaluation)
	}
	return result, nil
}

type mockChangeLogReader struct {
	entries map[string][]models.ChangeLogEntry
}

func (m *mockChangeLogReader) ListByRecord(ctx context.Context, tableName, recordID string) ([]models.ChangeLogEntry, error) {
	return m.entries[recordID], nil
}

type mockAuditLogger struct {
	logs []*models.AuditLog
}

func (m *mockAuditLogger) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func evaluatorPrincipal(id string) models.Principal {
	return models.Principal{UserID: id, Role: models.RoleEvaluator}
}

func coordinatorPrincipal(id string) models.Principal {
	return models.Principal{UserID: id, Role: models.RoleCoordinator}
}

func TestScoreServiceSaveInsert(t *testing.T) {
	store := &mockEvaluationStore{}
	audit := &mockAuditLogger{}
	svc := NewScoreService(store, &mockChangeLogReader{}, audit, nil, validator.New(), zap.NewNop())

	evaluation, err := svc.SaveScore(context.Background(), SaveScoreRequest{EnrollmentID: "en-1", Score: 85.5}, evaluatorPrincipal("eval-1"))
	require.NoError(t, err)
	assert.Equal(t, "en-1", evaluation.EnrollmentID)
	assert.Equal(t, "eval-1", evaluation.EvaluatorID)
	assert.Equal(t, 85.5, evaluation.Score)

	require.Len(t, store.saved, 1)
	assert.Equal(t, models.PhaseClassification, store.saved[0].Phase)
	assert.Equal(t, "eval-1", store.saved[0].ActorID)
	assert.Len(t, audit.logs, 1)
}

func TestScoreServiceSaveRejectsOutOfRange(t *testing.T) {
	store := &mockEvaluationStore{}
	svc := NewScoreService(store, &mockChangeLogReader{}, nil, nil, validator.New(), zap.NewNop())

	for _, score := range []float64{-0.5, 100.1, 150} {
		_, err := svc.SaveScore(context.Background(), SaveScoreRequest{EnrollmentID: "en-1", Score: score}, evaluatorPrincipal("eval-1"))
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrInvalidScore.Code, appErr.Code)
	}
	assert.Empty(t, store.saved)
}

func TestScoreServiceSaveBoundsInclusive(t *testing.T) {
	store := &mockEvaluationStore{}
	svc := NewScoreService(store, &mockChangeLogReader{}, nil, nil, validator.New(), zap.NewNop())

	for _, score := range []float64{0, 100} {
		_, err := svc.SaveScore(context.Background(), SaveScoreRequest{EnrollmentID: "en-1", Score: score}, evaluatorPrincipal("eval-1"))
		require.NoError(t, err)
	}
}

func TestScoreServiceSaveForbidsWritingForOthers(t *testing.T) {
	store := &mockEvaluationStore{}
	svc := NewScoreService(store, &mockChangeLogReader{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.SaveScore(context.Background(), SaveScoreRequest{EnrollmentID: "en-1", EvaluatorID: "eval-2", Score: 50}, evaluatorPrincipal("eval-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Coordinators may write on behalf of an evaluator.
	_, err = svc.SaveScore(context.Background(), SaveScoreRequest{EnrollmentID: "en-1", EvaluatorID: "eval-2", Score: 50}, coordinatorPrincipal("coord-1"))
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "eval-2", store.saved[0].EvaluatorID)
	assert.Equal(t, "coord-1", store.saved[0].ActorID)
}

func TestScoreServiceSaveClosedPhase(t *testing.T) {
	store := &mockEvaluationStore{phaseClosed: true}
	svc := NewScoreService(store, &mockChangeLogReader{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.SaveScore(context.Background(), SaveScoreRequest{EnrollmentID: "en-1", Score: 70}, evaluatorPrincipal("eval-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyClosed.Code, appErrors.FromError(err).Code)
}

func TestScoreServiceSaveMissingEnrollment(t *testing.T) {
	store := &mockEvaluationStore{missingEnrollment: true}
	svc := NewScoreService(store, &mockChangeLogReader{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.SaveScore(context.Background(), SaveScoreRequest{EnrollmentID: "ghost", Score: 70}, evaluatorPrincipal("eval-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScoreServiceHistory(t *testing.T) {
	store := &mockEvaluationStore{evaluations: map[string]*models.Evaluation{
		"en-1:eval-1:clasificacion": {ID: "ev-1", EnrollmentID: "en-1", EvaluatorID: "eval-1", Phase: models.PhaseClassification, Score: 80},
	}}
	changelog := &mockChangeLogReader{entries: map[string][]models.ChangeLogEntry{
		"ev-1": {
			{Field: "score", OldValue: "70", NewValue: "80", UserID: "eval-1"},
		},
	}}
	svc := NewScoreService(store, changelog, nil, nil, validator.New(), zap.NewNop())

	entries, err := svc.History(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "70", entries[0].OldValue)

	_, err = svc.History(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
