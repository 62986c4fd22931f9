package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohsansi/olimpiada-api/internal/models"
)

func TestEnrollmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "participant_id", "area_id", "level_id", "status", "created_at", "updated_at"}).
		AddRow("en-1", "p-1", "mat", "5s", "activo", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, participant_id, area_id, level_id")).
		WithArgs("mat", "5s", "activo").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.EnrollmentFilter{
		AreaID: "mat", LevelID: "5s", Status: models.EnrollmentStatusActive,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "en-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListWithScores(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "participant_id", "area_id", "level_id", "status", "created_at", "updated_at", "score"}).
		AddRow("en-1", "p-1", "mat", "5s", "activo", now, now, 72.5).
		AddRow("en-2", "p-2", "mat", "5s", "activo", now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("AVG(ev.score) AS score")).
		WithArgs("mat", "5s", "activo", "clasificacion").
		WillReturnRows(rows)

	scored, err := repo.ListWithScores(context.Background(), db, "mat", "5s", models.PhaseClassification)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	require.NotNil(t, scored[0].Score)
	assert.Equal(t, 72.5, *scored[0].Score)
	assert.Nil(t, scored[1].Score) // never evaluated
	require.NoError(t, mock.ExpectationsWereMet())
}
