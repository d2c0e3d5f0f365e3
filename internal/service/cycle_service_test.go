package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enroll-api/internal/dto"
	"github.com/noah-isme/sma-enroll-api/internal/models"
	appErrors "github.com/noah-isme/sma-enroll-api/pkg/errors"
)

type cycleRepoStub struct {
	settings *models.CycleSettings
	getErr   error
	upserts  int
}

func (s *cycleRepoStub) Get(ctx context.Context) (*models.CycleSettings, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.settings == nil {
		return nil, sql.ErrNoRows
	}
	copied := *s.settings
	return &copied, nil
}

func (s *cycleRepoStub) Upsert(ctx context.Context, settings *models.CycleSettings) error {
	s.upserts++
	settings.Version++
	copied := *settings
	s.settings = &copied
	return nil
}

type broadcasterStub struct {
	events []models.CycleNotification
}

func (b *broadcasterStub) Publish(event models.CycleNotification) {
	b.events = append(b.events, event)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newCycleServiceForTest(repo *cycleRepoStub, broadcaster *broadcasterStub, now time.Time) *CycleService {
	return NewCycleService(repo, broadcaster, nil, nil, nil, nil).WithClock(fixedClock(now))
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func TestCycleServiceCurrentCreatesDefaults(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	repo := &cycleRepoStub{}
	broadcaster := &broadcasterStub{}
	svc := newCycleServiceForTest(repo, broadcaster, now)

	settings, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.CycleSettingsID, settings.ID)
	assert.Equal(t, models.SemesterFirst, settings.Semester)
	assert.Equal(t, "2025-2026", settings.AcademicYear)
	assert.False(t, settings.IsOpen)
	assert.Equal(t, 1, repo.upserts)

	// The freshly created record is announced like any later change.
	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, models.SemesterFirst, broadcaster.events[0].Semester)
	assert.False(t, broadcaster.events[0].IsOpen)
}

func TestCycleServiceNormalizeClosesWindowAndStampsTermOnce(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	closesAt := now.Add(-time.Minute)
	openedAt := closesAt.Add(-time.Hour)
	repo := &cycleRepoStub{settings: &models.CycleSettings{
		ID:                      models.CycleSettingsID,
		Semester:                models.SemesterFirst,
		AcademicYear:            "2025-2026",
		IsOpen:                  true,
		OpenedAt:                timePtr(openedAt),
		ClosesAt:                timePtr(closesAt),
		OpenDurationSeconds:     int64Ptr(3600),
		Semester1PlannedMonths:  int64Ptr(4),
		Semester1PlannedSeconds: int64Ptr(30),
	}}
	broadcaster := &broadcasterStub{}
	svc := newCycleServiceForTest(repo, broadcaster, now)

	require.NoError(t, svc.Normalize(context.Background()))

	settings := repo.settings
	assert.False(t, settings.IsOpen)
	assert.Nil(t, settings.OpenedAt)
	assert.Nil(t, settings.ClosesAt)
	require.NotNil(t, settings.Semester1StartedAt)
	assert.Equal(t, closesAt, *settings.Semester1StartedAt)
	require.NotNil(t, settings.Semester1EndsAt)
	assert.Equal(t, closesAt.AddDate(0, 4, 0).Add(30*time.Second), *settings.Semester1EndsAt)
	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, AdminAudience, broadcaster.events[0].Audience)

	// A second call must not restamp the term or persist again.
	upserts := repo.upserts
	require.NoError(t, svc.Normalize(context.Background()))
	assert.Equal(t, upserts, repo.upserts)
	assert.Equal(t, closesAt, *repo.settings.Semester1StartedAt)
	assert.Len(t, broadcaster.events, 1)
}

func TestCycleServiceNormalizeRollsIntoSecondSemester(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	started := now.AddDate(0, -4, 0)
	ended := now.Add(-time.Hour)
	repo := &cycleRepoStub{settings: &models.CycleSettings{
		ID:                 models.CycleSettingsID,
		Semester:           models.SemesterFirst,
		AcademicYear:       "2025-2026",
		Semester1StartedAt: timePtr(started),
		Semester1EndsAt:    timePtr(ended),
	}}
	svc := newCycleServiceForTest(repo, &broadcasterStub{}, now)

	require.NoError(t, svc.Normalize(context.Background()))
	assert.Equal(t, models.SemesterSecond, repo.settings.Semester)
	assert.Equal(t, "2025-2026", repo.settings.AcademicYear)
	assert.False(t, repo.settings.IsOpen)
}

func TestCycleServiceNormalizeRollsIntoNextAcademicYear(t *testing.T) {
	now := time.Date(2026, 6, 20, 8, 0, 0, 0, time.UTC)
	repo := &cycleRepoStub{settings: &models.CycleSettings{
		ID:                 models.CycleSettingsID,
		Semester:           models.SemesterSecond,
		AcademicYear:       "2025-2026",
		Semester1StartedAt: timePtr(now.AddDate(0, -9, 0)),
		Semester1EndsAt:    timePtr(now.AddDate(0, -5, 0)),
		Semester2StartedAt: timePtr(now.AddDate(0, -4, 0)),
		Semester2EndsAt:    timePtr(now.Add(-time.Hour)),
	}}
	svc := newCycleServiceForTest(repo, &broadcasterStub{}, now)

	require.NoError(t, svc.Normalize(context.Background()))

	settings := repo.settings
	assert.Equal(t, "2026-2027", settings.AcademicYear)
	assert.Equal(t, models.SemesterFirst, settings.Semester)
	assert.Nil(t, settings.Semester1StartedAt)
	assert.Nil(t, settings.Semester1EndsAt)
	assert.Nil(t, settings.Semester2StartedAt)
	assert.Nil(t, settings.Semester2EndsAt)
	assert.Nil(t, settings.Semester1PlannedMonths)
	assert.Nil(t, settings.Semester2PlannedMonths)
}

func TestCycleServiceNormalizeChainsCloseAndRollover(t *testing.T) {
	// The window closed long ago and the stamped term has already elapsed by
	// the time the driver catches up: one call applies both transitions.
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	closesAt := now.AddDate(0, -5, 0)
	repo := &cycleRepoStub{settings: &models.CycleSettings{
		ID:                      models.CycleSettingsID,
		Semester:                models.SemesterFirst,
		AcademicYear:            "2025-2026",
		IsOpen:                  true,
		OpenedAt:                timePtr(closesAt.Add(-time.Hour)),
		ClosesAt:                timePtr(closesAt),
		Semester1PlannedMonths:  int64Ptr(4),
		Semester1PlannedSeconds: nil,
	}}
	broadcaster := &broadcasterStub{}
	svc := newCycleServiceForTest(repo, broadcaster, now)

	require.NoError(t, svc.Normalize(context.Background()))
	assert.Equal(t, models.SemesterSecond, repo.settings.Semester)
	require.NotNil(t, repo.settings.Semester1StartedAt)
	assert.Equal(t, 1, repo.upserts)
	assert.Len(t, broadcaster.events, 1)
}

func TestCycleServiceOpenEnrollment(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		settings *models.CycleSettings
		req      dto.OpenEnrollmentRequest
		wantErr  *appErrors.Error
	}{
		{
			name: "opens first semester",
			req:  dto.OpenEnrollmentRequest{Semester: models.SemesterFirst, EnrollSeconds: 3600, PlannedMonths: 4},
		},
		{
			name:    "rejects unknown semester",
			req:     dto.OpenEnrollmentRequest{Semester: "3rd", EnrollSeconds: 3600, PlannedMonths: 4},
			wantErr: appErrors.ErrValidation,
		},
		{
			name:    "rejects non-positive window",
			req:     dto.OpenEnrollmentRequest{Semester: models.SemesterFirst, EnrollSeconds: 0, PlannedMonths: 4},
			wantErr: appErrors.ErrValidation,
		},
		{
			name:    "rejects zero planned duration",
			req:     dto.OpenEnrollmentRequest{Semester: models.SemesterFirst, EnrollSeconds: 3600},
			wantErr: appErrors.ErrValidation,
		},
		{
			name:    "rejects inactive semester",
			req:     dto.OpenEnrollmentRequest{Semester: models.SemesterSecond, EnrollSeconds: 3600, PlannedMonths: 4},
			wantErr: appErrors.ErrValidation,
		},
		{
			name: "rejects started semester",
			settings: &models.CycleSettings{
				ID:                 models.CycleSettingsID,
				Semester:           models.SemesterFirst,
				AcademicYear:       "2025-2026",
				Semester1StartedAt: timePtr(now.Add(-time.Hour)),
			},
			req:     dto.OpenEnrollmentRequest{Semester: models.SemesterFirst, EnrollSeconds: 3600, PlannedMonths: 4},
			wantErr: appErrors.ErrPreconditionFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &cycleRepoStub{settings: tc.settings}
			broadcaster := &broadcasterStub{}
			svc := newCycleServiceForTest(repo, broadcaster, now)

			settings, err := svc.OpenEnrollment(context.Background(), tc.req)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, appErrors.HasCode(err, tc.wantErr))
				return
			}
			require.NoError(t, err)
			assert.True(t, settings.IsOpen)
			require.NotNil(t, settings.ClosesAt)
			assert.Equal(t, now.Add(time.Duration(tc.req.EnrollSeconds)*time.Second), *settings.ClosesAt)
			require.NotNil(t, settings.Semester1PlannedMonths)
			assert.Equal(t, tc.req.PlannedMonths, *settings.Semester1PlannedMonths)
			assert.NotEmpty(t, broadcaster.events)
		})
	}
}

func TestCycleServiceReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	repo := &cycleRepoStub{settings: &models.CycleSettings{
		ID:                 models.CycleSettingsID,
		Semester:           models.SemesterSecond,
		AcademicYear:       "2025-2026",
		IsOpen:             true,
		Semester1StartedAt: timePtr(now.AddDate(0, -6, 0)),
	}}
	svc := newCycleServiceForTest(repo, &broadcasterStub{}, now)

	settings, err := svc.Reset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SemesterFirst, settings.Semester)
	assert.Equal(t, "2026-2027", settings.AcademicYear)
	assert.False(t, settings.IsOpen)
	assert.Nil(t, settings.Semester1StartedAt)
}

func TestNextAcademicYear(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-2026", NextAcademicYear("2024-2025", now))
	assert.Equal(t, "2026-2027", NextAcademicYear("2025-2026", now))
	assert.Equal(t, "2026-2027", NextAcademicYear("not-a-year", now))
	assert.Equal(t, "2026-2027", NextAcademicYear("", now))
}
