package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohsansi/olimpiada-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func newEvaluationRepo(db *sqlx.DB) *EvaluationRepository {
	return NewEvaluationRepository(db, NewChangeLogRepository(db), NewChangeRequestRepository(db))
}

func expectPhaseLock(mock sqlmock.Sqlmock, status string) {
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fases_estado")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT f.status FROM fases_estado f")).
		WithArgs("en-1", "clasificacion").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(status))
}

func TestEvaluationRepositorySaveInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newEvaluationRepo(db)

	mock.ExpectBegin()
	expectPhaseLock(mock, "abierta")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, enrollment_id, evaluator_id, phase, score")).
		WithArgs("en-1", "eval-1", "clasificacion").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO evaluaciones")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	evaluation, updated, err := repo.Save(context.Background(), SaveScoreParams{
		EnrollmentID: "en-1", EvaluatorID: "eval-1", Score: 85, ActorID: "eval-1", Phase: models.PhaseClassification,
	})
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, 85.0, evaluation.Score)
	assert.Equal(t, models.PhaseClassification, evaluation.Phase)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositorySaveUpdateLogsChange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newEvaluationRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	expectPhaseLock(mock, "abierta")
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "evaluator_id", "phase", "score", "observations", "evaluated_at", "created_at", "updated_at"}).
		AddRow("ev-1", "en-1", "eval-1", "clasificacion", 60.0, "", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, enrollment_id, evaluator_id, phase, score")).
		WithArgs("en-1", "eval-1", "clasificacion").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registro_cambios")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluaciones SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	evaluation, updated, err := repo.Save(context.Background(), SaveScoreParams{
		EnrollmentID: "en-1", EvaluatorID: "eval-1", Score: 75, Observations: "revised", ActorID: "coord-1", Phase: models.PhaseClassification,
	})
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, "ev-1", evaluation.ID)
	assert.Equal(t, 75.0, evaluation.Score)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A final-round save targets its own row and never touches the
// classification evaluation for the same enrollment and evaluator.
func TestEvaluationRepositorySaveFinalRoundInsertsOwnRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newEvaluationRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fases_estado")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT f.status FROM fases_estado f")).
		WithArgs("en-1", "final").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("abierta"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, enrollment_id, evaluator_id, phase, score")).
		WithArgs("en-1", "eval-1", "final").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO evaluaciones")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	evaluation, updated, err := repo.Save(context.Background(), SaveScoreParams{
		EnrollmentID: "en-1", EvaluatorID: "eval-1", Score: 90, ActorID: "eval-1", Phase: models.PhaseFinal,
	})
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, models.PhaseFinal, evaluation.Phase)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositorySaveClosedPhase(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newEvaluationRepo(db)

	mock.ExpectBegin()
	expectPhaseLock(mock, "cerrada")
	mock.ExpectRollback()

	_, _, err := repo.Save(context.Background(), SaveScoreParams{
		EnrollmentID: "en-1", EvaluatorID: "eval-1", Score: 85, ActorID: "eval-1", Phase: models.PhaseClassification,
	})
	require.ErrorIs(t, err, ErrPhaseClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositorySaveMissingEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newEvaluationRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fases_estado")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT f.status FROM fases_estado f")).
		WithArgs("ghost", "clasificacion").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	_, _, err := repo.Save(context.Background(), SaveScoreParams{
		EnrollmentID: "ghost", EvaluatorID: "eval-1", Score: 85, ActorID: "eval-1", Phase: models.PhaseClassification,
	})
	require.ErrorIs(t, err, ErrEnrollmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositorySaveWithResolveDirective(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newEvaluationRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	expectPhaseLock(mock, "abierta")
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "evaluator_id", "phase", "score", "observations", "evaluated_at", "created_at", "updated_at"}).
		AddRow("ev-1", "en-1", "eval-1", "clasificacion", 60.0, "", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, enrollment_id, evaluator_id, phase, score")).
		WithArgs("en-1", "eval-1", "clasificacion").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registro_cambios")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluaciones SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE solicitudes_cambio")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, updated, err := repo.Save(context.Background(), SaveScoreParams{
		EnrollmentID: "en-1", EvaluatorID: "eval-1", Score: 75, ActorID: "coord-1", Phase: models.PhaseClassification,
		Resolve: &ResolveParams{ID: "cr-1", Status: models.ChangeRequestStatusApproved, ReviewedBy: "coord-1", ReviewedAt: now},
	})
	require.NoError(t, err)
	assert.True(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

// When the directive's request is no longer pending, the whole write rolls
// back and no change-log entry survives.
func TestEvaluationRepositorySaveResolveDirectiveLoses(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newEvaluationRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	expectPhaseLock(mock, "abierta")
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "evaluator_id", "phase", "score", "observations", "evaluated_at", "created_at", "updated_at"}).
		AddRow("ev-1", "en-1", "eval-1", "clasificacion", 60.0, "", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, enrollment_id, evaluator_id, phase, score")).
		WithArgs("en-1", "eval-1", "clasificacion").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registro_cambios")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluaciones SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE solicitudes_cambio")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := repo.Save(context.Background(), SaveScoreParams{
		EnrollmentID: "en-1", EvaluatorID: "eval-1", Score: 75, ActorID: "coord-2", Phase: models.PhaseClassification,
		Resolve: &ResolveParams{ID: "cr-1", Status: models.ChangeRequestStatusApproved, ReviewedBy: "coord-2", ReviewedAt: now},
	})
	require.ErrorIs(t, err, ErrRequestResolved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newEvaluationRepo(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "evaluator_id", "phase", "score", "observations", "evaluated_at", "created_at", "updated_at"}).
		AddRow("ev-1", "en-1", "eval-1", "clasificacion", 85.0, "", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, enrollment_id, evaluator_id, phase, score")).
		WithArgs("en-1", "eval-1", "clasificacion").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.EvaluationFilter{
		EnrollmentID: "en-1", EvaluatorID: "eval-1", Phase: models.PhaseClassification,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ev-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
