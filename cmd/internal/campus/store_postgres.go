package campus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campus/cmd/internal/pgutil"
)

// PostgresStore implements Store over the campus schema. The pool is owned
// by the caller.
type PostgresStore struct {
	db     pgutil.DB
	schema string
}

func NewPostgresStore(db pgutil.DB, schema string) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("campus: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = pgutil.DefaultSchema
	}
	if !pgutil.ValidIdent(schema) {
		return nil, fmt.Errorf("campus: invalid schema identifier")
	}
	return &PostgresStore{db: db, schema: schema}, nil
}

func (s *PostgresStore) table(name string) string { return pgutil.Ident(s.schema, name) }

type rowScanner interface {
	Scan(dest ...any) error
}

// ---- courses ----

const courseCols = `c.id, c.code, c.title, c.description, c.resource_link, c.attendance_needed,
	c.credits, c.faculty_id, c.created_at`

func scanCourse(r rowScanner) (Course, error) {
	var (
		c    Course
		link *string
	)
	err := r.Scan(&c.ID, &c.Code, &c.Title, &c.Description, &link, &c.AttendanceNeeded,
		&c.Credits, &c.FacultyID, &c.CreatedAt)
	if link != nil {
		c.ResourceLink = *link
	}
	return c, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PostgresStore) CreateCourse(ctx context.Context, in NewCourse) (Course, error) {
	const op = "campus.CreateCourse"
	in, err := prepareCourse(op, in)
	if err != nil {
		return Course{}, err
	}
	id, err := newID(in.Now)
	if err != nil {
		return Course{}, err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO `+s.table("courses")+`
		   (id, code, title, description, resource_link, attendance_needed, credits, faculty_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, in.Code, in.Title, in.Description, nullable(in.ResourceLink), in.AttendanceNeeded,
		in.Credits, in.FacultyID, in.Now,
	)
	if err != nil {
		if _, ok := pgutil.UniqueViolation(err); ok {
			return Course{}, conflict(op, "course code already exists")
		}
		if pgutil.IsForeignKeyViolation(err) {
			return Course{}, invalid(op, "faculty does not exist")
		}
		return Course{}, err
	}
	return in.course(id), nil
}

func (s *PostgresStore) GetCourse(ctx context.Context, id string) (Course, error) {
	c, err := scanCourse(s.db.QueryRow(ctx,
		`SELECT `+courseCols+` FROM `+s.table("courses")+` c WHERE c.id = $1`, strings.TrimSpace(id)))
	if err != nil {
		if pgutil.IsNoRows(err) {
			return Course{}, notFound("campus.GetCourse", "course")
		}
		return Course{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListCourses(ctx context.Context, f CourseFilter) ([]Course, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+courseCols+` FROM `+s.table("courses")+` c
		  WHERE ($1 = '' OR c.faculty_id = $1)
		    AND ($2 = '' OR EXISTS (
		          SELECT 1 FROM `+s.table("enrollments")+` e
		           WHERE e.course_id = c.id AND e.student_id = $2))
		  ORDER BY c.code`,
		f.FacultyID, f.StudentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Course, 0, 8)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCourse relies on ON DELETE CASCADE for dependent rows.
func (s *PostgresStore) DeleteCourse(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM `+s.table("courses")+` WHERE id = $1`, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("campus.DeleteCourse", "course")
	}
	return nil
}

// ---- enrollments ----

func (s *PostgresStore) Enroll(ctx context.Context, courseID, studentID string, now time.Time) (Enrollment, error) {
	const op = "campus.Enroll"
	courseID, studentID = strings.TrimSpace(courseID), strings.TrimSpace(studentID)
	if courseID == "" || studentID == "" {
		return Enrollment{}, invalid(op, "course_id and student_id are required")
	}
	now = nowOr(now)

	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.table("enrollments")+` (course_id, student_id, enrolled_at) VALUES ($1, $2, $3)`,
		courseID, studentID, now,
	)
	if err != nil {
		if _, ok := pgutil.UniqueViolation(err); ok {
			return Enrollment{}, conflict(op, "student already enrolled")
		}
		if pgutil.IsForeignKeyViolation(err) {
			return Enrollment{}, notFound(op, "course")
		}
		return Enrollment{}, err
	}
	return Enrollment{CourseID: courseID, StudentID: studentID, EnrolledAt: now}, nil
}

func (s *PostgresStore) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+s.table("enrollments")+` WHERE course_id = $1 AND student_id = $2)`,
		courseID, studentID,
	).Scan(&ok)
	return ok, err
}

func (s *PostgresStore) ListEnrollments(ctx context.Context, courseID string) ([]Enrollment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT course_id, student_id, enrolled_at FROM `+s.table("enrollments")+`
		  WHERE course_id = $1 ORDER BY enrolled_at, student_id`,
		courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Enrollment, 0, 16)
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.CourseID, &e.StudentID, &e.EnrolledAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- attendance ----

func (s *PostgresStore) MarkAttendance(ctx context.Context, in NewAttendance) (Attendance, error) {
	out, err := s.markAttendance(ctx, "campus.MarkAttendance", []NewAttendance{in})
	if err != nil {
		return Attendance{}, err
	}
	return out[0], nil
}

func (s *PostgresStore) MarkAttendanceBatch(ctx context.Context, in []NewAttendance) ([]Attendance, error) {
	return s.markAttendance(ctx, "campus.MarkAttendanceBatch", in)
}

// markAttendance runs in one transaction. The course rows are held FOR SHARE
// so attendance_needed cannot flip under the batch.
func (s *PostgresStore) markAttendance(ctx context.Context, op string, in []NewAttendance) ([]Attendance, error) {
	recs, err := prepareBatch(op, in)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	checked := make(map[string]struct{}, 1)
	out := make([]Attendance, 0, len(recs))
	for _, rec := range recs {
		if _, ok := checked[rec.CourseID]; !ok {
			var needed bool
			err := tx.QueryRow(ctx,
				`SELECT attendance_needed FROM `+s.table("courses")+` WHERE id = $1 FOR SHARE`,
				rec.CourseID,
			).Scan(&needed)
			if err != nil {
				if pgutil.IsNoRows(err) {
					return nil, notFound(op, "course")
				}
				return nil, err
			}
			if !needed {
				return nil, untracked(op)
			}
			checked[rec.CourseID] = struct{}{}
		}

		id, err := newID(rec.Now)
		if err != nil {
			return nil, err
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO `+s.table("attendance")+` (id, course_id, student_id, day, present, marked_by, marked_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (course_id, student_id, day)
			 DO UPDATE SET present = EXCLUDED.present, marked_by = EXCLUDED.marked_by, marked_at = EXCLUDED.marked_at
			 RETURNING id`,
			id, rec.CourseID, rec.StudentID, rec.Date, rec.Present, rec.MarkedBy, rec.Now,
		).Scan(&id)
		if err != nil {
			if pgutil.IsForeignKeyViolation(err) {
				return nil, notFound(op, "student")
			}
			return nil, err
		}
		out = append(out, Attendance{
			ID:        id,
			CourseID:  rec.CourseID,
			StudentID: rec.StudentID,
			Date:      rec.Date,
			Present:   rec.Present,
			MarkedBy:  rec.MarkedBy,
			MarkedAt:  rec.Now,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListAttendance(ctx context.Context, f AttendanceFilter) ([]Attendance, error) {
	var day *string
	if f.Date != "" {
		d, ok := ParseDate(f.Date)
		if !ok {
			return nil, invalid("campus.ListAttendance", "date must be YYYY-MM-DD")
		}
		day = &d
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, course_id, student_id, day, present, marked_by, marked_at
		   FROM `+s.table("attendance")+`
		  WHERE ($1 = '' OR course_id = $1)
		    AND ($2 = '' OR student_id = $2)
		    AND ($3::date IS NULL OR day = $3::date)
		  ORDER BY day, course_id, student_id`,
		f.CourseID, f.StudentID, day,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Attendance, 0, 16)
	for rows.Next() {
		var (
			a Attendance
			d time.Time
		)
		if err := rows.Scan(&a.ID, &a.CourseID, &a.StudentID, &d, &a.Present, &a.MarkedBy, &a.MarkedAt); err != nil {
			return nil, err
		}
		a.Date = d.Format(DateLayout)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- fees ----

const feeCols = `id, student_id, description, amount_cents, due_date, paid, paid_at, created_at`

func scanFee(r rowScanner) (Fee, error) {
	var (
		f   Fee
		due time.Time
	)
	if err := r.Scan(&f.ID, &f.StudentID, &f.Description, &f.AmountCents, &due, &f.Paid, &f.PaidAt, &f.CreatedAt); err != nil {
		return Fee{}, err
	}
	f.DueDate = due.Format(DateLayout)
	return f, nil
}

func (s *PostgresStore) CreateFee(ctx context.Context, in NewFee) (Fee, error) {
	const op = "campus.CreateFee"
	in, err := prepareFee(op, in)
	if err != nil {
		return Fee{}, err
	}
	id, err := newID(in.Now)
	if err != nil {
		return Fee{}, err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO `+s.table("fees")+` (id, student_id, description, amount_cents, due_date, paid, created_at)
		 VALUES ($1, $2, $3, $4, $5, false, $6)`,
		id, in.StudentID, in.Description, in.AmountCents, in.DueDate, in.Now,
	)
	if err != nil {
		if pgutil.IsForeignKeyViolation(err) {
			return Fee{}, invalid(op, "student does not exist")
		}
		return Fee{}, err
	}
	return Fee{
		ID:          id,
		StudentID:   in.StudentID,
		Description: in.Description,
		AmountCents: in.AmountCents,
		DueDate:     in.DueDate,
		CreatedAt:   in.Now,
	}, nil
}

func (s *PostgresStore) GetFee(ctx context.Context, id string) (Fee, error) {
	f, err := scanFee(s.db.QueryRow(ctx,
		`SELECT `+feeCols+` FROM `+s.table("fees")+` WHERE id = $1`, strings.TrimSpace(id)))
	if err != nil {
		if pgutil.IsNoRows(err) {
			return Fee{}, notFound("campus.GetFee", "fee")
		}
		return Fee{}, err
	}
	return f, nil
}

func (s *PostgresStore) ListFees(ctx context.Context, studentID string) ([]Fee, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+feeCols+` FROM `+s.table("fees")+`
		  WHERE ($1 = '' OR student_id = $1)
		  ORDER BY due_date, id`,
		studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Fee, 0, 8)
	for rows.Next() {
		f, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// PayFee marks an unpaid fee paid. Paying twice is a conflict.
func (s *PostgresStore) PayFee(ctx context.Context, id string, now time.Time) (Fee, error) {
	const op = "campus.PayFee"
	id = strings.TrimSpace(id)

	f, err := scanFee(s.db.QueryRow(ctx,
		`UPDATE `+s.table("fees")+` SET paid = true, paid_at = $2
		  WHERE id = $1 AND NOT paid
		  RETURNING `+feeCols,
		id, nowOr(now),
	))
	if err == nil {
		return f, nil
	}
	if !pgutil.IsNoRows(err) {
		return Fee{}, err
	}

	if _, err := s.GetFee(ctx, id); err != nil {
		if IsNotFound(err) {
			return Fee{}, notFound(op, "fee")
		}
		return Fee{}, err
	}
	return Fee{}, conflict(op, "fee already paid")
}

// ---- results ----

const resultCols = `id, course_id, student_id, marks, grade, published_by, published_at, updated_at`

func scanResult(r rowScanner) (Result, error) {
	var out Result
	err := r.Scan(&out.ID, &out.CourseID, &out.StudentID, &out.Marks, &out.Grade, &out.PublishedBy, &out.PublishedAt, &out.UpdatedAt)
	return out, err
}

func (s *PostgresStore) PublishResult(ctx context.Context, in NewResult) (Result, error) {
	const op = "campus.PublishResult"
	in, err := prepareResult(op, in)
	if err != nil {
		return Result{}, err
	}
	id, err := newID(in.Now)
	if err != nil {
		return Result{}, err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO `+s.table("results")+` (id, course_id, student_id, marks, grade, published_by, published_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		id, in.CourseID, in.StudentID, in.Marks, in.Grade, in.PublishedBy, in.Now,
	)
	if err != nil {
		if _, ok := pgutil.UniqueViolation(err); ok {
			return Result{}, conflict(op, "result already published")
		}
		if pgutil.IsForeignKeyViolation(err) {
			return Result{}, notFound(op, "course")
		}
		return Result{}, err
	}
	return Result{
		ID:          id,
		CourseID:    in.CourseID,
		StudentID:   in.StudentID,
		Marks:       in.Marks,
		Grade:       in.Grade,
		PublishedBy: in.PublishedBy,
		PublishedAt: in.Now,
		UpdatedAt:   in.Now,
	}, nil
}

func (s *PostgresStore) GetResult(ctx context.Context, id string) (Result, error) {
	r, err := scanResult(s.db.QueryRow(ctx,
		`SELECT `+resultCols+` FROM `+s.table("results")+` WHERE id = $1`, strings.TrimSpace(id)))
	if err != nil {
		if pgutil.IsNoRows(err) {
			return Result{}, notFound("campus.GetResult", "result")
		}
		return Result{}, err
	}
	return r, nil
}

func (s *PostgresStore) UpdateResult(ctx context.Context, id string, in ResultUpdate) (Result, error) {
	const op = "campus.UpdateResult"
	grade, err := prepareGrade(op, in.Marks, in.Grade)
	if err != nil {
		return Result{}, err
	}

	r, err := scanResult(s.db.QueryRow(ctx,
		`UPDATE `+s.table("results")+` SET marks = $2, grade = $3, updated_at = $4
		  WHERE id = $1
		  RETURNING `+resultCols,
		strings.TrimSpace(id), in.Marks, grade, nowOr(in.Now),
	))
	if err != nil {
		if pgutil.IsNoRows(err) {
			return Result{}, notFound(op, "result")
		}
		return Result{}, err
	}
	return r, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, f ResultFilter) ([]Result, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+resultCols+` FROM `+s.table("results")+`
		  WHERE ($1 = '' OR course_id = $1)
		    AND ($2 = '' OR student_id = $2)
		  ORDER BY course_id, student_id`,
		f.CourseID, f.StudentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, 8)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
