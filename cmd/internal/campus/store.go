package campus

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"campus/cmd/identity/ids"
)

const (
	maxCredits     = 40
	maxTitleLen    = 200
	maxDescription = 500
	maxLinkLen     = 2048
)

type NewCourse struct {
	Code             string
	Title            string
	Description      string
	ResourceLink     string
	AttendanceNeeded bool
	Credits          int
	FacultyID        string
	Now              time.Time
}

// CourseFilter narrows ListCourses. Empty fields match everything.
type CourseFilter struct {
	FacultyID string
	StudentID string
}

type NewAttendance struct {
	CourseID  string
	StudentID string
	Date      string
	Present   bool
	MarkedBy  string
	Now       time.Time
}

type AttendanceFilter struct {
	CourseID  string
	StudentID string
	Date      string
}

type NewFee struct {
	StudentID   string
	Description string
	AmountCents int64
	DueDate     string
	Now         time.Time
}

// NewResult publishes marks. An empty Grade is derived from Marks.
type NewResult struct {
	CourseID    string
	StudentID   string
	Marks       int
	Grade       string
	PublishedBy string
	Now         time.Time
}

type ResultUpdate struct {
	Marks int
	Grade string
	Now   time.Time
}

type ResultFilter struct {
	CourseID  string
	StudentID string
}

// Store is the campus records persistence boundary.
type Store interface {
	CreateCourse(ctx context.Context, in NewCourse) (Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	ListCourses(ctx context.Context, f CourseFilter) ([]Course, error)
	// DeleteCourse removes the course with its enrollments, attendance and results.
	DeleteCourse(ctx context.Context, id string) error

	Enroll(ctx context.Context, courseID, studentID string, now time.Time) (Enrollment, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	ListEnrollments(ctx context.Context, courseID string) ([]Enrollment, error)

	// MarkAttendance upserts on (course, student, date); re-marking overwrites.
	// Courses without AttendanceNeeded reject marking with a conflict.
	MarkAttendance(ctx context.Context, in NewAttendance) (Attendance, error)
	// MarkAttendanceBatch applies every record or none of them.
	MarkAttendanceBatch(ctx context.Context, in []NewAttendance) ([]Attendance, error)
	ListAttendance(ctx context.Context, f AttendanceFilter) ([]Attendance, error)

	CreateFee(ctx context.Context, in NewFee) (Fee, error)
	GetFee(ctx context.Context, id string) (Fee, error)
	// ListFees lists one student's fees, or all fees when studentID is empty.
	ListFees(ctx context.Context, studentID string) ([]Fee, error)
	PayFee(ctx context.Context, id string, now time.Time) (Fee, error)

	PublishResult(ctx context.Context, in NewResult) (Result, error)
	GetResult(ctx context.Context, id string) (Result, error)
	UpdateResult(ctx context.Context, id string, in ResultUpdate) (Result, error)
	ListResults(ctx context.Context, f ResultFilter) ([]Result, error)
}

func newID(now time.Time) (string, error) { return ids.NewULID(now) }

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func prepareCourse(op string, in NewCourse) (NewCourse, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ResourceLink = strings.TrimSpace(in.ResourceLink)
	in.FacultyID = strings.TrimSpace(in.FacultyID)
	in.Now = nowOr(in.Now)

	switch {
	case in.Code == "" || strings.ContainsAny(in.Code, " \t\n"):
		return NewCourse{}, invalid(op, "course code is required and must not contain spaces")
	case in.Title == "" || utf8.RuneCountInString(in.Title) > maxTitleLen:
		return NewCourse{}, invalid(op, "title is required")
	case utf8.RuneCountInString(in.Description) > maxDescription:
		return NewCourse{}, invalid(op, "description is too long")
	case in.ResourceLink != "" && !validLink(in.ResourceLink):
		return NewCourse{}, invalid(op, "resource_link must be an http(s) URL")
	case in.Credits <= 0 || in.Credits > maxCredits:
		return NewCourse{}, invalid(op, "credits out of range")
	case in.FacultyID == "":
		return NewCourse{}, invalid(op, "faculty_id is required")
	}
	return in, nil
}

func (in NewCourse) course(id string) Course {
	return Course{
		ID:               id,
		Code:             in.Code,
		Title:            in.Title,
		Description:      in.Description,
		ResourceLink:     in.ResourceLink,
		AttendanceNeeded: in.AttendanceNeeded,
		Credits:          in.Credits,
		FacultyID:        in.FacultyID,
		CreatedAt:        in.Now,
	}
}

func validLink(s string) bool {
	if len(s) > maxLinkLen {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func prepareAttendance(op string, in NewAttendance) (NewAttendance, error) {
	in.CourseID = strings.TrimSpace(in.CourseID)
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.MarkedBy = strings.TrimSpace(in.MarkedBy)
	in.Now = nowOr(in.Now)

	date, ok := ParseDate(in.Date)
	if !ok {
		return NewAttendance{}, invalid(op, "date must be YYYY-MM-DD")
	}
	in.Date = date

	if in.CourseID == "" || in.StudentID == "" || in.MarkedBy == "" {
		return NewAttendance{}, invalid(op, "course_id, student_id and marker are required")
	}
	return in, nil
}

// prepareBatch validates every record and rejects a (course, student, date)
// that appears twice.
func prepareBatch(op string, in []NewAttendance) ([]NewAttendance, error) {
	if len(in) == 0 {
		return nil, invalid(op, "no attendance records")
	}
	out := make([]NewAttendance, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, rec := range in {
		rec, err := prepareAttendance(op, rec)
		if err != nil {
			return nil, err
		}
		k := key(rec.CourseID, rec.StudentID, rec.Date)
		if _, dup := seen[k]; dup {
			return nil, invalid(op, "duplicate student_id "+rec.StudentID)
		}
		seen[k] = struct{}{}
		out = append(out, rec)
	}
	return out, nil
}

func untracked(op string) error { return conflict(op, "attendance is not tracked for this course") }

func prepareFee(op string, in NewFee) (NewFee, error) {
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.Description = strings.TrimSpace(in.Description)
	in.Now = nowOr(in.Now)

	date, ok := ParseDate(in.DueDate)
	if !ok {
		return NewFee{}, invalid(op, "due_date must be YYYY-MM-DD")
	}
	in.DueDate = date

	switch {
	case in.StudentID == "":
		return NewFee{}, invalid(op, "student_id is required")
	case in.Description == "" || utf8.RuneCountInString(in.Description) > maxDescription:
		return NewFee{}, invalid(op, "description is required")
	case in.AmountCents <= 0:
		return NewFee{}, invalid(op, "amount must be positive")
	}
	return in, nil
}

func prepareGrade(op string, marks int, grade string) (string, error) {
	if marks < 0 || marks > 100 {
		return "", invalid(op, "marks must be between 0 and 100")
	}
	grade = strings.ToUpper(strings.TrimSpace(grade))
	if grade == "" {
		return GradeFor(marks), nil
	}
	if !ValidGrade(grade) {
		return "", invalid(op, "unknown grade")
	}
	return grade, nil
}

func prepareResult(op string, in NewResult) (NewResult, error) {
	in.CourseID = strings.TrimSpace(in.CourseID)
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.PublishedBy = strings.TrimSpace(in.PublishedBy)
	in.Now = nowOr(in.Now)

	if in.CourseID == "" || in.StudentID == "" || in.PublishedBy == "" {
		return NewResult{}, invalid(op, "course_id, student_id and publisher are required")
	}
	grade, err := prepareGrade(op, in.Marks, in.Grade)
	if err != nil {
		return NewResult{}, err
	}
	in.Grade = grade
	return in, nil
}
