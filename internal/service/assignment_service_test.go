package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enroll-api/internal/dto"
	"github.com/noah-isme/sma-enroll-api/internal/models"
	appErrors "github.com/noah-isme/sma-enroll-api/pkg/errors"
)

type sectionStoreStub struct {
	mu             sync.Mutex
	sections       []*models.Section
	calls          []string
	incrementFails bool
}

func (s *sectionStoreStub) ListOpen(ctx context.Context, exec sqlx.ExtContext, program, academicYear string) ([]models.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []models.Section
	for _, section := range s.sections {
		if section.Program == program && section.AcademicYear == academicYear && section.CurrentCount < section.Capacity {
			open = append(open, *section)
		}
	}
	return open, nil
}

func (s *sectionStoreStub) CountSiblings(ctx context.Context, exec sqlx.ExtContext, program, academicYear string, sem models.Semester) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, section := range s.sections {
		if section.Program == program && section.AcademicYear == academicYear && section.MatchesSemester(sem) {
			count++
		}
	}
	return count, nil
}

func (s *sectionStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, section *models.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if section.ID == "" {
		section.ID = fmt.Sprintf("section-%d", len(s.sections)+1)
	}
	copied := *section
	s.sections = append(s.sections, &copied)
	s.calls = append(s.calls, "create:"+section.ID)
	return nil
}

func (s *sectionStoreStub) IncrementCount(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "increment:"+id)
	if s.incrementFails {
		return false, nil
	}
	for _, section := range s.sections {
		if section.ID == id && section.CurrentCount < section.Capacity {
			section.CurrentCount++
			return true, nil
		}
	}
	return false, nil
}

func (s *sectionStoreStub) DecrementCount(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "decrement:"+id)
	for _, section := range s.sections {
		if section.ID == id && section.CurrentCount > 0 {
			section.CurrentCount--
			return true, nil
		}
	}
	return false, nil
}

func (s *sectionStoreStub) find(id string) *models.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, section := range s.sections {
		if section.ID == id {
			return section
		}
	}
	return nil
}

type enrollmentStoreStub struct {
	mu      sync.Mutex
	records map[string]*models.SectionEnrollment
	calls   []string
}

func (s *enrollmentStoreStub) FindByStudent(ctx context.Context, exec sqlx.ExtContext, studentUsername string) (*models.SectionEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[studentUsername]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (s *enrollmentStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.SectionEnrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = map[string]*models.SectionEnrollment{}
	}
	copied := *enrollment
	s.records[enrollment.StudentUsername] = &copied
	s.calls = append(s.calls, "create:"+enrollment.StudentUsername)
	return nil
}

func (s *enrollmentStoreStub) Repoint(ctx context.Context, exec sqlx.ExtContext, id, sectionID string, enrolledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.ID == id {
			record.SectionID = sectionID
			record.EnrolledAt = enrolledAt
		}
	}
	s.calls = append(s.calls, "repoint:"+id)
	return nil
}

func (s *enrollmentStoreStub) Touch(ctx context.Context, exec sqlx.ExtContext, id string, enrolledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "touch:"+id)
	return nil
}

type roomStoreStub struct {
	mu      sync.Mutex
	count   int
	created []models.Room
}

func (s *roomStoreStub) Count(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}

func (s *roomStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.created = append(s.created, *room)
	return nil
}

type catalogStub struct {
	codes []string
}

func (s *catalogStub) ListCodes(ctx context.Context, exec sqlx.ExtContext, program, academicYear string, sem models.Semester) ([]string, error) {
	return s.codes, nil
}

type assignmentFixture struct {
	svc         *AssignmentService
	mock        sqlmock.Sqlmock
	sections    *sectionStoreStub
	enrollments *enrollmentStoreStub
	rooms       *roomStoreStub
	meetings    *meetingStoreStub
	schedRooms  *roomListerStub
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	sections := &sectionStoreStub{}
	enrollments := &enrollmentStoreStub{}
	rooms := &roomStoreStub{}
	meetings := &meetingStoreStub{}
	schedRooms := &roomListerStub{rooms: []models.Room{{ID: "room-1"}, {ID: "room-2"}}}

	allocator := NewRoomAllocator(meetings, nil)
	scheduler := NewScheduleService(meetings, schedRooms, allocator, nil, nil)
	svc := NewAssignmentService(db, sections, enrollments, rooms, &catalogStub{codes: []string{"MATH", "BIO"}}, scheduler, nil, AssignmentDefaults{
		RoomCount:       2,
		RoomCapacity:    30,
		SectionCapacity: 2,
	}, nil, nil)

	return &assignmentFixture{
		svc:         svc,
		mock:        mock,
		sections:    sections,
		enrollments: enrollments,
		rooms:       rooms,
		meetings:    meetings,
		schedRooms:  schedRooms,
	}
}

func assignRequest(student string) dto.AssignSectionRequest {
	return dto.AssignSectionRequest{
		StudentUsername: student,
		Program:         "STEM",
		AcademicYear:    "2025-2026",
		Semester:        models.SemesterFirst,
	}
}

func TestAssignStudentFreshEnrollment(t *testing.T) {
	fx := newAssignmentFixture(t)
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	section, err := fx.svc.AssignStudentToSection(context.Background(), assignRequest("alice"))
	require.NoError(t, err)
	require.NotNil(t, section)
	assert.Equal(t, "BLOCK 1", section.Name)

	stored := fx.sections.find(section.ID)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.CurrentCount)
	assert.Len(t, fx.rooms.created, 2)
	assert.NotEmpty(t, fx.meetings.meetings)
	require.Contains(t, fx.enrollments.records, "alice")
	assert.Equal(t, section.ID, fx.enrollments.records["alice"].SectionID)
	require.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestAssignStudentSecondSemesterNamesSection(t *testing.T) {
	fx := newAssignmentFixture(t)
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	req := assignRequest("alice")
	req.Semester = models.SemesterSecond
	section, err := fx.svc.AssignStudentToSection(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "BLOCK 1-S2", section.Name)
}

func TestAssignStudentIdempotentRepeat(t *testing.T) {
	fx := newAssignmentFixture(t)
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	first, err := fx.svc.AssignStudentToSection(context.Background(), assignRequest("alice"))
	require.NoError(t, err)
	second, err := fx.svc.AssignStudentToSection(context.Background(), assignRequest("alice"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, fx.sections.find(first.ID).CurrentCount)
	assert.Contains(t, fx.enrollments.calls, "touch:"+fx.enrollments.records["alice"].ID)
}

func TestAssignStudentTransferIncrementsTargetFirst(t *testing.T) {
	fx := newAssignmentFixture(t)
	old := &models.Section{ID: "section-old", Program: "STEM", AcademicYear: "2025-2026", Name: "BLOCK 9", Capacity: 2, CurrentCount: 2}
	fx.sections.sections = append(fx.sections.sections, old)
	fx.enrollments.records = map[string]*models.SectionEnrollment{
		"alice": {ID: "alice@section-old", StudentUsername: "alice", SectionID: "section-old"},
	}
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	section, err := fx.svc.AssignStudentToSection(context.Background(), assignRequest("alice"))
	require.NoError(t, err)
	assert.NotEqual(t, "section-old", section.ID)

	var increments, decrements []int
	for i, call := range fx.sections.calls {
		switch call {
		case "increment:" + section.ID:
			increments = append(increments, i)
		case "decrement:section-old":
			decrements = append(decrements, i)
		}
	}
	require.Len(t, increments, 1)
	require.Len(t, decrements, 1)
	assert.Less(t, increments[0], decrements[0], "target must be incremented before the old section is released")
	assert.Equal(t, 1, fx.sections.find("section-old").CurrentCount)
	assert.Equal(t, section.ID, fx.enrollments.records["alice"].SectionID)
}

func TestAssignStudentCapacityExceededAborts(t *testing.T) {
	fx := newAssignmentFixture(t)
	fx.sections.sections = append(fx.sections.sections, &models.Section{
		ID: "section-1", Program: "STEM", AcademicYear: "2025-2026", Name: "BLOCK 1", Capacity: 2, CurrentCount: 1,
	})
	fx.meetings.meetings = append(fx.meetings.meetings, models.Meeting{SectionID: "section-1", RoomID: "room-1", DayOfWeek: 1, Slot: 1})
	fx.sections.incrementFails = true
	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err := fx.svc.AssignStudentToSection(context.Background(), assignRequest("alice"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCapacityExceeded))
	assert.Equal(t, 1, fx.sections.find("section-1").CurrentCount)
	require.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestAssignStudentFailsWithoutSchedule(t *testing.T) {
	fx := newAssignmentFixture(t)
	// A pre-existing open section with no meetings, and no rooms for the
	// generator to book.
	fx.sections.sections = append(fx.sections.sections, &models.Section{
		ID: "section-1", Program: "STEM", AcademicYear: "2025-2026", Name: "BLOCK 1", Capacity: 2,
	})
	fx.schedRooms.rooms = nil
	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err := fx.svc.AssignStudentToSection(context.Background(), assignRequest("alice"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNoSchedule))
	assert.NotContains(t, fx.enrollments.records, "alice")
}

func TestAssignStudentLegacyUntaggedFallback(t *testing.T) {
	fx := newAssignmentFixture(t)
	legacy := &models.Section{ID: "section-legacy", Program: "STEM", AcademicYear: "2025-2026", Name: "BLOCK 1", Capacity: 2}
	fx.sections.sections = append(fx.sections.sections, legacy)
	fx.meetings.meetings = append(fx.meetings.meetings, models.Meeting{SectionID: "section-legacy", RoomID: "room-1", DayOfWeek: 1, Slot: 1})

	// First semester accepts the untagged section.
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	section, err := fx.svc.AssignStudentToSection(context.Background(), assignRequest("alice"))
	require.NoError(t, err)
	assert.Equal(t, "section-legacy", section.ID)

	// Second semester must not fall back to it.
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	req := assignRequest("bob")
	req.Semester = models.SemesterSecond
	section, err = fx.svc.AssignStudentToSection(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "section-legacy", section.ID)
	assert.Equal(t, "BLOCK 1-S2", section.Name)
}

func TestAssignStudentConcurrentCapacityInvariant(t *testing.T) {
	const students = 5

	sections := &sectionStoreStub{}
	enrollments := &enrollmentStoreStub{}
	rooms := &roomStoreStub{count: 1}
	meetings := &meetingStoreStub{}
	schedRooms := &roomListerStub{rooms: []models.Room{{ID: "room-1"}, {ID: "room-2"}, {ID: "room-3"}}}

	seed := &models.Section{ID: "section-1", Program: "STEM", AcademicYear: "2025-2026", Name: "BLOCK 1", Capacity: 2}
	sections.sections = append(sections.sections, seed)
	meetings.meetings = append(meetings.meetings, models.Meeting{SectionID: "section-1", RoomID: "room-1", DayOfWeek: 1, Slot: 1})

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []error
	successes := 0

	for i := 0; i < students; i++ {
		student := fmt.Sprintf("student-%d", i)
		rawDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { rawDB.Close() })
		mock.MatchExpectationsInOrder(false)
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
		db := sqlx.NewDb(rawDB, "sqlmock")

		allocator := NewRoomAllocator(meetings, nil)
		scheduler := NewScheduleService(meetings, schedRooms, allocator, nil, nil)
		svc := NewAssignmentService(db, sections, enrollments, rooms, &catalogStub{codes: []string{"MATH"}}, scheduler, nil, AssignmentDefaults{SectionCapacity: 2}, nil, nil)

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AssignStudentToSection(context.Background(), assignRequest(student))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			successes++
		}()
	}
	wg.Wait()

	for _, err := range failures {
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCapacityExceeded), "unexpected failure: %v", err)
	}
	assert.Equal(t, students, successes+len(failures))

	total := 0
	sections.mu.Lock()
	for _, section := range sections.sections {
		assert.GreaterOrEqual(t, section.CurrentCount, 0)
		assert.LessOrEqual(t, section.CurrentCount, section.Capacity)
		total += section.CurrentCount
	}
	sections.mu.Unlock()
	assert.Equal(t, successes, total)
	assert.Len(t, enrollments.records, successes)
}
