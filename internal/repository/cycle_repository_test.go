package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

func TestCycleRepositoryGetReturnsNoRowsUnchanged(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCycleRepository(db)
	mock.ExpectQuery("SELECT id, semester, academic_year").
		WithArgs(models.CycleSettingsID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCycleRepositoryUpsertBumpsVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCycleRepository(db)
	mock.ExpectQuery("INSERT INTO cycle_settings").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(7))

	settings := models.DefaultCycleSettings("2025-2026", time.Now().UTC())
	require.NoError(t, repo.Upsert(context.Background(), settings))
	assert.Equal(t, int64(7), settings.Version)
	assert.Equal(t, models.CycleSettingsID, settings.ID)
	assert.False(t, settings.UpdatedAt.IsZero())
}
