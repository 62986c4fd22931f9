package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohsansi/olimpiada-api/internal/models"
)

func classifyAtSixty(enrollment models.EnrollmentScore) ClosureOutcome {
	score := 0.0
	if enrollment.Score != nil {
		score = *enrollment.Score
	}
	status := models.EnrollmentStatusEliminated
	if score >= 60 {
		status = models.EnrollmentStatusClassified
	}
	return ClosureOutcome{EnrollmentID: enrollment.ID, Status: status, FinalScore: score}
}

func snapshotRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "participant_id", "area_id", "level_id", "status", "created_at", "updated_at", "score"}).
		AddRow("en-1", "p-1", "mat", "5s", "activo", now, now, 80.0).
		AddRow("en-2", "p-2", "mat", "5s", "activo", now, now, 40.0)
}

// The guard flip comes first and the score snapshot is read inside the
// same transaction, so a save committing mid-closure is either fenced
// out or included.
func TestResultRepositoryPersistClosureSnapshotAfterGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResultRepository(db, NewEnrollmentRepository(db))
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fases_estado")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("AVG(ev.score) AS score")).
		WithArgs("mat", "5s", "activo", "clasificacion").
		WillReturnRows(snapshotRows(now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inscripciones_area SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resultados_finales")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inscripciones_area SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resultados_finales")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	outcomes, err := repo.PersistClosure(context.Background(), ClosureParams{
		AreaID:   "mat",
		LevelID:  "5s",
		Phase:    models.PhaseClassification,
		ClosedBy: "coord-1",
	}, classifyAtSixty)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, models.EnrollmentStatusClassified, outcomes[0].Status)
	assert.Equal(t, 80.0, outcomes[0].FinalScore)
	assert.Equal(t, models.EnrollmentStatusEliminated, outcomes[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryPersistClosureAlreadyClosed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResultRepository(db, NewEnrollmentRepository(db))

	// Guard upsert hits a row that is already cerrada: zero rows affected,
	// everything rolls back before the snapshot is even read.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fases_estado")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.PersistClosure(context.Background(), ClosureParams{
		AreaID:   "mat",
		LevelID:  "5s",
		Phase:    models.PhaseClassification,
		ClosedBy: "coord-1",
	}, classifyAtSixty)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryPersistClosureNoEnrollments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResultRepository(db, NewEnrollmentRepository(db))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fases_estado")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("AVG(ev.score) AS score")).
		WithArgs("mat", "5s", "activo", "clasificacion").
		WillReturnRows(sqlmock.NewRows([]string{"id", "participant_id", "area_id", "level_id", "status", "created_at", "updated_at", "score"}))
	mock.ExpectRollback()

	_, err := repo.PersistClosure(context.Background(), ClosureParams{
		AreaID:   "mat",
		LevelID:  "5s",
		Phase:    models.PhaseClassification,
		ClosedBy: "coord-1",
	}, classifyAtSixty)
	require.ErrorIs(t, err, ErrNoEnrollments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryPersistClosureRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResultRepository(db, NewEnrollmentRepository(db))
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fases_estado")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("AVG(ev.score) AS score")).
		WithArgs("mat", "5s", "activo", "clasificacion").
		WillReturnRows(snapshotRows(now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inscripciones_area SET")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.PersistClosure(context.Background(), ClosureParams{
		AreaID:   "mat",
		LevelID:  "5s",
		Phase:    models.PhaseClassification,
		ClosedBy: "coord-1",
	}, classifyAtSixty)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositorySeedFinalPhase(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResultRepository(db, NewEnrollmentRepository(db))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (enrollment_id, phase) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "en-1", "final", "sin_medalla", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (enrollment_id, phase) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "en-2", "final", "sin_medalla", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.SeedFinalPhase(context.Background(), []string{"en-1", "en-2"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryRefreshScores(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResultRepository(db, NewEnrollmentRepository(db))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE resultados_finales rf")).
		WithArgs("mat", "5s", "final", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.RefreshScores(context.Background(), "mat", "5s", models.PhaseFinal)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryListStandings(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResultRepository(db, NewEnrollmentRepository(db))
	rows := sqlmock.NewRows([]string{"enrollment_id", "participant_id", "position", "medal", "final_score"}).
		AddRow("en-1", "p-1", nil, "sin_medalla", 95.0).
		AddRow("en-2", "p-2", nil, "sin_medalla", 88.0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT rf.enrollment_id, e.participant_id")).
		WithArgs("mat", "5s", "clasificacion").
		WillReturnRows(rows)

	standings, err := repo.ListStandings(context.Background(), "mat", "5s", models.PhaseClassification)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, "en-1", standings[0].EnrollmentID)
	assert.Equal(t, 95.0, standings[0].FinalScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryUpdatePlacements(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResultRepository(db, NewEnrollmentRepository(db))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE resultados_finales SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE resultados_finales SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdatePlacements(context.Background(), models.PhaseClassification, []Placement{
		{EnrollmentID: "en-1", Position: 1, Medal: models.MedalGold},
		{EnrollmentID: "en-2", Position: 2, Medal: models.MedalSilver},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
