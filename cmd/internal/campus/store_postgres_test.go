package campus

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	courseColumns = []string{
		"id", "code", "title", "description", "resource_link", "attendance_needed",
		"credits", "faculty_id", "created_at",
	}
	feeColumns    = []string{"id", "student_id", "description", "amount_cents", "due_date", "paid", "paid_at", "created_at"}
	resultColumns = []string{"id", "course_id", "student_id", "marks", "grade", "published_by", "published_at", "updated_at"}
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)

	s, err := NewPostgresStore(mock, "")
	require.NoError(t, err)
	return s, mock
}

func TestNewPostgresStore(t *testing.T) {
	_, err := NewPostgresStore(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresStore(mock, "bad-schema")
	require.Error(t, err)
}

func TestPostgresStore_CreateCourse(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr func(error) bool
	}{
		{name: "success"},
		{
			name:    "duplicate code",
			err:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "uq_courses_code"},
			wantErr: IsConflict,
		},
		{
			name:    "unknown faculty",
			err:     &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation},
			wantErr: IsInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			exp := mock.ExpectExec(`INSERT INTO "campus"."courses"`).
				WithArgs(pgxmock.AnyArg(), "CS101", "Intro", "", (*string)(nil), true, 4, "fac-1", t0)
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			c, err := s.CreateCourse(t.Context(), NewCourse{
				Code: "cs101", Title: "Intro", AttendanceNeeded: true, Credits: 4, FacultyID: "fac-1", Now: t0,
			})
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "CS101", c.Code)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_GetCourse(t *testing.T) {
	s, mock := newMockStore(t)
	link := "https://lms.example.edu/cs101"

	mock.ExpectQuery(`SELECT .+ FROM "campus"."courses" c WHERE c.id = \$1`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows(courseColumns).
			AddRow("c1", "CS101", "Intro", "Basics", &link, true, 4, "fac-1", t0))
	mock.ExpectQuery(`SELECT .+ FROM "campus"."courses"`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCourse(t.Context(), "c1")
	require.NoError(t, err)
	assert.Equal(t, Course{
		ID: "c1", Code: "CS101", Title: "Intro", Description: "Basics", ResourceLink: link,
		AttendanceNeeded: true, Credits: 4, FacultyID: "fac-1", CreatedAt: t0,
	}, c)

	_, err = s.GetCourse(t.Context(), "nope")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCourses(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM "campus"."courses" c.+"campus"."enrollments" e`).
		WithArgs("", "stu-1").
		WillReturnRows(pgxmock.NewRows(courseColumns).
			AddRow("c1", "CS101", "Intro", "", nil, true, 4, "fac-1", t0).
			AddRow("c2", "MA201", "Algebra", "", nil, false, 3, "fac-2", t0))

	list, err := s.ListCourses(t.Context(), CourseFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "MA201", list[1].Code)
	assert.False(t, list[1].AttendanceNeeded)
	assert.Empty(t, list[1].ResourceLink)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCourse(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM "campus"."courses"`).WithArgs("c1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM "campus"."courses"`).WithArgs("c2").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteCourse(t.Context(), "c1"))
	assert.True(t, IsNotFound(s.DeleteCourse(t.Context(), "c2")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Enroll(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "campus"."enrollments"`).
		WithArgs("c1", "stu-1", t0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO "campus"."enrollments"`).
		WithArgs("c1", "stu-1", t0).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "enrollments_pkey"})
	mock.ExpectExec(`INSERT INTO "campus"."enrollments"`).
		WithArgs("gone", "stu-1", t0).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})

	e, err := s.Enroll(t.Context(), "c1", "stu-1", t0)
	require.NoError(t, err)
	assert.Equal(t, Enrollment{CourseID: "c1", StudentID: "stu-1", EnrolledAt: t0}, e)

	_, err = s.Enroll(t.Context(), "c1", "stu-1", t0)
	assert.True(t, IsConflict(err))

	_, err = s.Enroll(t.Context(), "gone", "stu-1", t0)
	assert.True(t, IsNotFound(err))

	_, err = s.Enroll(t.Context(), "", "stu-1", t0)
	assert.True(t, IsInvalidInput(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IsEnrolledAndList(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("c1", "stu-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT course_id, student_id, enrolled_at FROM "campus"."enrollments"`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"course_id", "student_id", "enrolled_at"}).
			AddRow("c1", "stu-1", t0))

	ok, err := s.IsEnrolled(t.Context(), "c1", "stu-1")
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := s.ListEnrollments(t.Context(), "c1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

const (
	courseGateSQL = `SELECT attendance_needed FROM "campus"."courses" WHERE id = \$1 FOR SHARE`
	attendanceSQL = `INSERT INTO "campus"."attendance" .+ ON CONFLICT \(course_id, student_id, day\)`
)

func TestPostgresStore_MarkAttendance(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(courseGateSQL).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"attendance_needed"}).AddRow(true))
	mock.ExpectQuery(attendanceSQL).
		WithArgs(pgxmock.AnyArg(), "c1", "stu-1", "2026-03-01", true, "fac-1", t0).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("existing-id"))
	mock.ExpectCommit()

	a, err := s.MarkAttendance(t.Context(), NewAttendance{
		CourseID: "c1", StudentID: "stu-1", Date: "2026-03-01", Present: true, MarkedBy: "fac-1", Now: t0,
	})
	require.NoError(t, err)
	assert.Equal(t, "existing-id", a.ID)
	assert.Equal(t, "2026-03-01", a.Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkAttendanceBatch(t *testing.T) {
	batch := []NewAttendance{
		{CourseID: "c1", StudentID: "stu-1", Date: "2026-03-01", Present: true, MarkedBy: "fac-1", Now: t0},
		{CourseID: "c1", StudentID: "stu-2", Date: "2026-03-01", Present: false, MarkedBy: "fac-1", Now: t0},
	}
	gateRows := func(needed bool) *pgxmock.Rows {
		return pgxmock.NewRows([]string{"attendance_needed"}).AddRow(needed)
	}

	t.Run("commits every record", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(courseGateSQL).WithArgs("c1").WillReturnRows(gateRows(true))
		mock.ExpectQuery(attendanceSQL).
			WithArgs(pgxmock.AnyArg(), "c1", "stu-1", "2026-03-01", true, "fac-1", t0).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("a1"))
		mock.ExpectQuery(attendanceSQL).
			WithArgs(pgxmock.AnyArg(), "c1", "stu-2", "2026-03-01", false, "fac-1", t0).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("a2"))
		mock.ExpectCommit()

		out, err := s.MarkAttendanceBatch(t.Context(), batch)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "a2", out[1].ID)
		assert.False(t, out[1].Present)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when a later row fails", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(courseGateSQL).WithArgs("c1").WillReturnRows(gateRows(true))
		mock.ExpectQuery(attendanceSQL).
			WithArgs(pgxmock.AnyArg(), "c1", "stu-1", "2026-03-01", true, "fac-1", t0).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("a1"))
		mock.ExpectQuery(attendanceSQL).
			WithArgs(pgxmock.AnyArg(), "c1", "stu-2", "2026-03-01", false, "fac-1", t0).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := s.MarkAttendanceBatch(t.Context(), batch)
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("untracked course", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(courseGateSQL).WithArgs("c1").WillReturnRows(gateRows(false))
		mock.ExpectRollback()

		_, err := s.MarkAttendanceBatch(t.Context(), batch)
		assert.True(t, IsConflict(err), "got %v", err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing course", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(courseGateSQL).WithArgs("c1").WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := s.MarkAttendanceBatch(t.Context(), batch)
		assert.True(t, IsNotFound(err), "got %v", err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate record never opens a transaction", func(t *testing.T) {
		s, mock := newMockStore(t)
		_, err := s.MarkAttendanceBatch(t.Context(), []NewAttendance{batch[0], batch[0]})
		assert.True(t, IsInvalidInput(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_ListAttendance(t *testing.T) {
	s, mock := newMockStore(t)

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM "campus"."attendance"`).
		WithArgs("", "stu-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "course_id", "student_id", "day", "present", "marked_by", "marked_at"}).
			AddRow("a1", "c1", "stu-1", day, true, "fac-1", t0))

	list, err := s.ListAttendance(t.Context(), AttendanceFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2026-03-01", list[0].Date)

	_, err = s.ListAttendance(t.Context(), AttendanceFilter{Date: "yesterday"})
	assert.True(t, IsInvalidInput(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PayFee(t *testing.T) {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	paidAt := t0.Add(time.Hour)

	t.Run("success", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`UPDATE "campus"."fees" SET paid = true`).
			WithArgs("f1", paidAt).
			WillReturnRows(pgxmock.NewRows(feeColumns).AddRow("f1", "stu-1", "Tuition", int64(1000), due, true, &paidAt, t0))

		f, err := s.PayFee(t.Context(), "f1", paidAt)
		require.NoError(t, err)
		assert.True(t, f.Paid)
		assert.Equal(t, "2026-04-01", f.DueDate)
		require.NotNil(t, f.PaidAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already paid", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`UPDATE "campus"."fees"`).WithArgs("f1", paidAt).WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`SELECT .+ FROM "campus"."fees" WHERE id = \$1`).
			WithArgs("f1").
			WillReturnRows(pgxmock.NewRows(feeColumns).AddRow("f1", "stu-1", "Tuition", int64(1000), due, true, &t0, t0))

		_, err := s.PayFee(t.Context(), "f1", paidAt)
		assert.True(t, IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`UPDATE "campus"."fees"`).WithArgs("f9", paidAt).WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`SELECT .+ FROM "campus"."fees"`).WithArgs("f9").WillReturnError(pgx.ErrNoRows)

		_, err := s.PayFee(t.Context(), "f9", paidAt)
		assert.True(t, IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		s, mock := newMockStore(t)
		boom := errors.New("boom")
		mock.ExpectQuery(`UPDATE "campus"."fees"`).WithArgs("f1", paidAt).WillReturnError(boom)

		_, err := s.PayFee(t.Context(), "f1", paidAt)
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_CreateAndListFees(t *testing.T) {
	s, mock := newMockStore(t)
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO "campus"."fees"`).
		WithArgs(pgxmock.AnyArg(), "stu-1", "Tuition", int64(1000), "2026-04-01", t0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM "campus"."fees"\s+WHERE \(\$1 = '' OR student_id = \$1\)`).
		WithArgs("stu-1").
		WillReturnRows(pgxmock.NewRows(feeColumns).AddRow("f1", "stu-1", "Tuition", int64(1000), due, false, (*time.Time)(nil), t0))

	f, err := s.CreateFee(t.Context(), NewFee{StudentID: "stu-1", Description: "Tuition", AmountCents: 1000, DueDate: "2026-04-01", Now: t0})
	require.NoError(t, err)
	assert.False(t, f.Paid)

	list, err := s.ListFees(t.Context(), "stu-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].PaidAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Results(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "campus"."results"`).
		WithArgs(pgxmock.AnyArg(), "c1", "stu-1", 72, "B", "fac-1", t0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO "campus"."results"`).
		WithArgs(pgxmock.AnyArg(), "c1", "stu-1", 72, "B", "fac-1", t0).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "uq_results_course_student"})
	mock.ExpectQuery(`UPDATE "campus"."results" SET marks = \$2`).
		WithArgs("r1", 91, "A+", t0).
		WillReturnRows(pgxmock.NewRows(resultColumns).AddRow("r1", "c1", "stu-1", 91, "A+", "fac-1", t0, t0))
	mock.ExpectQuery(`UPDATE "campus"."results"`).
		WithArgs("r9", 91, "A+", t0).
		WillReturnError(pgx.ErrNoRows)

	in := NewResult{CourseID: "c1", StudentID: "stu-1", Marks: 72, PublishedBy: "fac-1", Now: t0}
	r, err := s.PublishResult(t.Context(), in)
	require.NoError(t, err)
	assert.Equal(t, "B", r.Grade)

	_, err = s.PublishResult(t.Context(), in)
	assert.True(t, IsConflict(err))

	u, err := s.UpdateResult(t.Context(), "r1", ResultUpdate{Marks: 91, Now: t0})
	require.NoError(t, err)
	assert.Equal(t, "A+", u.Grade)

	_, err = s.UpdateResult(t.Context(), "r9", ResultUpdate{Marks: 91, Now: t0})
	assert.True(t, IsNotFound(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}
