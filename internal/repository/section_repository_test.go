package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func sectionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "program", "academic_year", "name", "capacity", "current_count", "created_at"})
}

func TestSectionRepositoryIncrementCountClaimsSeat(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectExec("UPDATE sections SET current_count = current_count \\+ 1").
		WithArgs("section-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.IncrementCount(context.Background(), db, "section-1")
	require.NoError(t, err)
	assert.True(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryIncrementCountGuardRejectsFullSection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectExec("UPDATE sections SET current_count = current_count \\+ 1").
		WithArgs("section-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.IncrementCount(context.Background(), db, "section-1")
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestSectionRepositoryDecrementCountGuardRejectsEmptySection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectExec("UPDATE sections SET current_count = current_count - 1").
		WithArgs("section-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.DecrementCount(context.Background(), db, "section-1")
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestSectionRepositoryListOpen(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	rows := sectionRows().
		AddRow("section-1", "STEM", "2025-2026", "BLOCK 1", 40, 12, time.Now()).
		AddRow("section-2", "STEM", "2025-2026", "BLOCK 2", 40, 0, time.Now())
	mock.ExpectQuery("SELECT id, program, academic_year, name, capacity, current_count, created_at").
		WithArgs("STEM", "2025-2026").
		WillReturnRows(rows)

	sections, err := repo.ListOpen(context.Background(), db, "STEM", "2025-2026")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "BLOCK 1", sections[0].Name)
}

func TestSectionRepositoryCountSiblingsFiltersBySemesterTag(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM sections WHERE program = \\$1 AND academic_year = \\$2 AND name NOT LIKE \\$3").
		WithArgs("STEM", "2025-2026", "%-S2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	count, err := repo.CountSiblings(context.Background(), db, "STEM", "2025-2026", models.SemesterFirst)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM sections WHERE program = \\$1 AND academic_year = \\$2 AND name LIKE \\$3").
		WithArgs("STEM", "2025-2026", "%-S2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	count, err = repo.CountSiblings(context.Background(), db, "STEM", "2025-2026", models.SemesterSecond)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSectionRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectExec("INSERT INTO sections").
		WillReturnResult(sqlmock.NewResult(1, 1))

	section := &models.Section{Program: "STEM", AcademicYear: "2025-2026", Name: "BLOCK 1", Capacity: 40}
	require.NoError(t, repo.Create(context.Background(), db, section))
	assert.NotEmpty(t, section.ID)
	assert.False(t, section.CreatedAt.IsZero())
}
