package campus

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedCourse(t *testing.T, s Store, code, faculty string) Course {
	t.Helper()
	c, err := s.CreateCourse(t.Context(), NewCourse{
		Code: code, Title: "Course " + code, AttendanceNeeded: true, Credits: 4, FacultyID: faculty, Now: t0,
	})
	require.NoError(t, err)
	return c
}

func TestMemoryStore_Courses(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()

	c := seedCourse(t, s, " cs101 ", "fac-1")
	assert.Equal(t, "CS101", c.Code)
	assert.Len(t, c.ID, 26)

	_, err := s.CreateCourse(ctx, NewCourse{Code: "CS101", Title: "Dup", Credits: 3, FacultyID: "fac-2"})
	assert.True(t, IsConflict(err))

	for name, in := range map[string]NewCourse{
		"no code":      {Title: "T", Credits: 3, FacultyID: "f"},
		"space code":   {Code: "CS 1", Title: "T", Credits: 3, FacultyID: "f"},
		"no title":     {Code: "X1", Credits: 3, FacultyID: "f"},
		"zero credits": {Code: "X1", Title: "T", FacultyID: "f"},
		"no faculty":   {Code: "X1", Title: "T", Credits: 3},
		"long desc":    {Code: "X1", Title: "T", Description: strings.Repeat("d", 501), Credits: 3, FacultyID: "f"},
		"ftp link":     {Code: "X1", Title: "T", ResourceLink: "ftp://files.example.edu/x", Credits: 3, FacultyID: "f"},
		"bare link":    {Code: "X1", Title: "T", ResourceLink: "lms/cs101", Credits: 3, FacultyID: "f"},
	} {
		_, err := s.CreateCourse(ctx, in)
		assert.True(t, IsInvalidInput(err), name)
	}

	seedCourse(t, s, "MA201", "fac-2")
	seedCourse(t, s, "AB100", "fac-1")

	all, err := s.ListCourses(ctx, CourseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"AB100", "CS101", "MA201"}, []string{all[0].Code, all[1].Code, all[2].Code})

	mine, err := s.ListCourses(ctx, CourseFilter{FacultyID: "fac-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	got, err := s.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = s.GetCourse(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "course not found", Message(err))
}

func TestMemoryStore_EnrollAndDeleteCascade(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()
	c := seedCourse(t, s, "CS101", "fac-1")

	_, err := s.Enroll(ctx, "missing", "stu-1", t0)
	assert.True(t, IsNotFound(err))

	_, err = s.Enroll(ctx, c.ID, "stu-1", t0)
	require.NoError(t, err)
	_, err = s.Enroll(ctx, c.ID, "stu-2", t0.Add(time.Minute))
	require.NoError(t, err)
	_, err = s.Enroll(ctx, c.ID, "stu-1", t0)
	assert.True(t, IsConflict(err))

	ok, err := s.IsEnrolled(ctx, c.ID, "stu-1")
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := s.ListEnrollments(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "stu-1", list[0].StudentID)

	enrolled, err := s.ListCourses(ctx, CourseFilter{StudentID: "stu-2"})
	require.NoError(t, err)
	assert.Len(t, enrolled, 1)

	_, err = s.MarkAttendance(ctx, NewAttendance{CourseID: c.ID, StudentID: "stu-1", Date: "2026-03-01", Present: true, MarkedBy: "fac-1"})
	require.NoError(t, err)
	_, err = s.PublishResult(ctx, NewResult{CourseID: c.ID, StudentID: "stu-1", Marks: 71, PublishedBy: "fac-1"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteCourse(ctx, c.ID))
	assert.True(t, IsNotFound(s.DeleteCourse(ctx, c.ID)))

	att, err := s.ListAttendance(ctx, AttendanceFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Empty(t, att)
	res, err := s.ListResults(ctx, ResultFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Empty(t, res)

	// The code is free again.
	seedCourse(t, s, "CS101", "fac-1")
}

func TestMemoryStore_AttendanceUpsert(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()
	c := seedCourse(t, s, "CS101", "fac-1")

	first, err := s.MarkAttendance(ctx, NewAttendance{CourseID: c.ID, StudentID: "stu-1", Date: "2026-03-01", Present: false, MarkedBy: "fac-1", Now: t0})
	require.NoError(t, err)
	second, err := s.MarkAttendance(ctx, NewAttendance{CourseID: c.ID, StudentID: "stu-1", Date: "2026-03-01", Present: true, MarkedBy: "fac-1", Now: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = s.MarkAttendance(ctx, NewAttendance{CourseID: c.ID, StudentID: "stu-1", Date: "2026-03-02", Present: false, MarkedBy: "fac-1"})
	require.NoError(t, err)

	list, err := s.ListAttendance(ctx, AttendanceFilter{CourseID: c.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Present)
	assert.Equal(t, "2026-03-02", list[1].Date)

	day, err := s.ListAttendance(ctx, AttendanceFilter{Date: "2026-03-02"})
	require.NoError(t, err)
	assert.Len(t, day, 1)

	_, err = s.MarkAttendance(ctx, NewAttendance{CourseID: c.ID, StudentID: "stu-1", Date: "March 1", MarkedBy: "fac-1"})
	assert.True(t, IsInvalidInput(err))
	_, err = s.MarkAttendance(ctx, NewAttendance{CourseID: "missing", StudentID: "stu-1", Date: "2026-03-01", MarkedBy: "fac-1"})
	assert.True(t, IsNotFound(err))
}

func TestMemoryStore_CourseDetails(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()

	c, err := s.CreateCourse(ctx, NewCourse{
		Code:         "LIT200",
		Title:        "Reading Club",
		Description:  "  Weekly discussion.  ",
		ResourceLink: " https://lms.example.edu/lit200 ",
		Credits:      2,
		FacultyID:    "fac-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Weekly discussion.", c.Description)
	assert.Equal(t, "https://lms.example.edu/lit200", c.ResourceLink)
	assert.False(t, c.AttendanceNeeded)

	_, err = s.Enroll(ctx, c.ID, "stu-1", t0)
	require.NoError(t, err)
	_, err = s.MarkAttendance(ctx, NewAttendance{CourseID: c.ID, StudentID: "stu-1", Date: "2026-03-01", MarkedBy: "fac-1"})
	assert.True(t, IsConflict(err), "got %v", err)
	assert.Equal(t, "attendance is not tracked for this course", Message(err))

	list, err := s.ListAttendance(ctx, AttendanceFilter{CourseID: c.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStore_MarkAttendanceBatch(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()
	tracked := seedCourse(t, s, "CS101", "fac-1")
	untrackedCourse, err := s.CreateCourse(ctx, NewCourse{Code: "ART1", Title: "Sketching", Credits: 1, FacultyID: "fac-1"})
	require.NoError(t, err)

	rec := func(course, student string, present bool) NewAttendance {
		return NewAttendance{CourseID: course, StudentID: student, Date: "2026-03-01", Present: present, MarkedBy: "fac-1", Now: t0}
	}

	out, err := s.MarkAttendanceBatch(ctx, []NewAttendance{
		rec(tracked.ID, "stu-1", true),
		rec(tracked.ID, "stu-2", false),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0].ID, out[1].ID)

	// A bad record anywhere leaves the earlier ones untouched.
	for name, batch := range map[string][]NewAttendance{
		"untracked course": {rec(tracked.ID, "stu-1", false), rec(untrackedCourse.ID, "stu-1", true)},
		"missing course":   {rec(tracked.ID, "stu-1", false), rec("missing", "stu-1", true)},
		"duplicate":        {rec(tracked.ID, "stu-1", false), rec(tracked.ID, "stu-1", true)},
		"bad date":         {rec(tracked.ID, "stu-1", false), {CourseID: tracked.ID, StudentID: "stu-3", Date: "soon", MarkedBy: "fac-1"}},
	} {
		_, err := s.MarkAttendanceBatch(ctx, batch)
		require.Error(t, err, name)
	}
	_, err = s.MarkAttendanceBatch(ctx, nil)
	assert.True(t, IsInvalidInput(err))

	list, err := s.ListAttendance(ctx, AttendanceFilter{CourseID: tracked.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Present, "stu-1 must still be present")
	assert.Equal(t, out[0].ID, list[0].ID)
}

func TestMemoryStore_Fees(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()

	late, err := s.CreateFee(ctx, NewFee{StudentID: "stu-1", Description: "Library", AmountCents: 500, DueDate: "2026-05-01", Now: t0})
	require.NoError(t, err)
	early, err := s.CreateFee(ctx, NewFee{StudentID: "stu-1", Description: "Tuition", AmountCents: 150000, DueDate: "2026-04-01", Now: t0})
	require.NoError(t, err)
	_, err = s.CreateFee(ctx, NewFee{StudentID: "stu-2", Description: "Tuition", AmountCents: 150000, DueDate: "2026-04-01", Now: t0})
	require.NoError(t, err)

	mine, err := s.ListFees(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, early.ID, mine[0].ID)
	assert.Equal(t, late.ID, mine[1].ID)

	all, err := s.ListFees(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	paid, err := s.PayFee(ctx, early.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, t0.Add(time.Hour), *paid.PaidAt)

	_, err = s.PayFee(ctx, early.ID, t0)
	assert.True(t, IsConflict(err))
	_, err = s.PayFee(ctx, "missing", t0)
	assert.True(t, IsNotFound(err))

	for name, in := range map[string]NewFee{
		"no student":  {Description: "x", AmountCents: 1, DueDate: "2026-01-01"},
		"no amount":   {StudentID: "s", Description: "x", DueDate: "2026-01-01"},
		"bad date":    {StudentID: "s", Description: "x", AmountCents: 1, DueDate: "soon"},
		"description": {StudentID: "s", AmountCents: 1, DueDate: "2026-01-01"},
	} {
		_, err := s.CreateFee(ctx, in)
		assert.True(t, IsInvalidInput(err), name)
	}
}

func TestMemoryStore_Results(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()
	c := seedCourse(t, s, "CS101", "fac-1")

	r, err := s.PublishResult(ctx, NewResult{CourseID: c.ID, StudentID: "stu-1", Marks: 84, PublishedBy: "fac-1", Now: t0})
	require.NoError(t, err)
	assert.Equal(t, "A", r.Grade)

	_, err = s.PublishResult(ctx, NewResult{CourseID: c.ID, StudentID: "stu-1", Marks: 10, PublishedBy: "fac-1"})
	assert.True(t, IsConflict(err))

	explicit, err := s.PublishResult(ctx, NewResult{CourseID: c.ID, StudentID: "stu-2", Marks: 50, Grade: "b", PublishedBy: "fac-1"})
	require.NoError(t, err)
	assert.Equal(t, "B", explicit.Grade)

	for name, in := range map[string]NewResult{
		"marks high": {CourseID: c.ID, StudentID: "s", Marks: 101, PublishedBy: "f"},
		"marks low":  {CourseID: c.ID, StudentID: "s", Marks: -1, PublishedBy: "f"},
		"bad grade":  {CourseID: c.ID, StudentID: "s", Marks: 50, Grade: "Z", PublishedBy: "f"},
	} {
		_, err := s.PublishResult(ctx, in)
		assert.True(t, IsInvalidInput(err), name)
	}

	updated, err := s.UpdateResult(ctx, r.ID, ResultUpdate{Marks: 95, Now: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "A+", updated.Grade)
	assert.Equal(t, t0, updated.PublishedAt)
	assert.Equal(t, t0.Add(time.Hour), updated.UpdatedAt)

	got, err := s.GetResult(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 95, got.Marks)

	_, err = s.UpdateResult(ctx, "missing", ResultUpdate{Marks: 1})
	assert.True(t, IsNotFound(err))

	list, err := s.ListResults(ctx, ResultFilter{CourseID: c.ID})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	s := NewMemoryStore()
	_, err := s.ListCourses(ctx, CourseFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}
