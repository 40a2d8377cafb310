package campus

import (
	"math"
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire and storage form of calendar dates.
const DateLayout = "2006-01-02"

// Course is a catalogue entry. ResourceLink is empty when the course has
// none. Attendance can only be marked when AttendanceNeeded is set.
type Course struct {
	ID               string
	Code             string
	Title            string
	Description      string
	ResourceLink     string
	AttendanceNeeded bool
	Credits          int
	FacultyID        string
	CreatedAt        time.Time
}

type Enrollment struct {
	CourseID   string
	StudentID  string
	EnrolledAt time.Time
}

// Attendance is one student's presence in one course on one date.
type Attendance struct {
	ID        string
	CourseID  string
	StudentID string
	Date      string
	Present   bool
	MarkedBy  string
	MarkedAt  time.Time
}

// Fee amounts are integer cents.
type Fee struct {
	ID          string
	StudentID   string
	Description string
	AmountCents int64
	DueDate     string
	Paid        bool
	PaidAt      *time.Time
	CreatedAt   time.Time
}

type Result struct {
	ID          string
	CourseID    string
	StudentID   string
	Marks       int
	Grade       string
	PublishedBy string
	PublishedAt time.Time
	UpdatedAt   time.Time
}

// AttendanceSummary aggregates a student's attendance in one course.
type AttendanceSummary struct {
	CourseID   string
	Total      int
	Present    int
	Percentage float64
}

var gradeBands = []struct {
	min   int
	grade string
}{
	{90, "A+"},
	{80, "A"},
	{70, "B"},
	{60, "C"},
	{50, "D"},
	{40, "E"},
	{0, "F"},
}

// GradeFor derives the letter grade for marks in 0..100.
func GradeFor(marks int) string {
	for _, b := range gradeBands {
		if marks >= b.min {
			return b.grade
		}
	}
	return "F"
}

// ValidGrade reports whether g is one of the letter grades GradeFor produces.
func ValidGrade(g string) bool {
	for _, b := range gradeBands {
		if b.grade == g {
			return true
		}
	}
	return false
}

// ParseDate validates a YYYY-MM-DD date and returns it in canonical form.
func ParseDate(s string) (string, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format(DateLayout), true
}

// SummarizeAttendance groups records by course, ordered by course id.
// Percentage is rounded to two decimals.
func SummarizeAttendance(records []Attendance) []AttendanceSummary {
	byCourse := make(map[string]*AttendanceSummary)
	for _, r := range records {
		s, ok := byCourse[r.CourseID]
		if !ok {
			s = &AttendanceSummary{CourseID: r.CourseID}
			byCourse[r.CourseID] = s
		}
		s.Total++
		if r.Present {
			s.Present++
		}
	}

	out := make([]AttendanceSummary, 0, len(byCourse))
	for _, s := range byCourse {
		if s.Total > 0 {
			s.Percentage = math.Round(float64(s.Present)*10000/float64(s.Total)) / 100
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out
}
