package api

import (
	"time"

	"campus/cmd/identity"
	"campus/cmd/internal/campus"
)

// AttendanceNeeded defaults to true when omitted.
type createCourseRequest struct {
	Code             string `json:"code"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	ResourceLink     string `json:"resource_link"`
	AttendanceNeeded *bool  `json:"attendance_needed"`
	Credits          int    `json:"credits"`
	FacultyID        string `json:"faculty_id"`
}

type enrollRequest struct {
	StudentID string `json:"student_id"`
}

type createFeeRequest struct {
	StudentID   string `json:"student_id"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	DueDate     string `json:"due_date"`
}

type attendanceRecord struct {
	StudentID string `json:"student_id"`
	Present   bool   `json:"present"`
}

type markAttendanceRequest struct {
	CourseID string             `json:"course_id"`
	Date     string             `json:"date"`
	Records  []attendanceRecord `json:"records"`
}

type publishResultRequest struct {
	CourseID  string `json:"course_id"`
	StudentID string `json:"student_id"`
	Marks     *int   `json:"marks"`
	Grade     string `json:"grade"`
}

type updateResultRequest struct {
	Marks *int   `json:"marks"`
	Grade string `json:"grade"`
}

type courseResponse struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ResourceLink     string    `json:"resource_link,omitempty"`
	AttendanceNeeded bool      `json:"attendance_needed"`
	Credits          int       `json:"credits"`
	FacultyID        string    `json:"faculty_id"`
	CreatedAt        time.Time `json:"created_at"`
}

type enrollmentResponse struct {
	CourseID   string    `json:"course_id"`
	StudentID  string    `json:"student_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

type studentResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	RollNumber *string   `json:"roll_number,omitempty"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

type attendanceResponse struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	StudentID string    `json:"student_id"`
	Date      string    `json:"date"`
	Present   bool      `json:"present"`
	MarkedBy  string    `json:"marked_by"`
	MarkedAt  time.Time `json:"marked_at"`
}

type attendanceSummaryResponse struct {
	CourseID   string  `json:"course_id"`
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Percentage float64 `json:"percentage"`
}

type feeResponse struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	Description string     `json:"description"`
	AmountCents int64      `json:"amount_cents"`
	DueDate     string     `json:"due_date"`
	Paid        bool       `json:"paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type resultResponse struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	StudentID   string    `json:"student_id"`
	Marks       int       `json:"marks"`
	Grade       string    `json:"grade"`
	PublishedBy string    `json:"published_by"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCourse(c campus.Course) courseResponse {
	return courseResponse{
		ID:               c.ID,
		Code:             c.Code,
		Title:            c.Title,
		Description:      c.Description,
		ResourceLink:     c.ResourceLink,
		AttendanceNeeded: c.AttendanceNeeded,
		Credits:          c.Credits,
		FacultyID:        c.FacultyID,
		CreatedAt:        c.CreatedAt,
	}
}

func toCourses(in []campus.Course) []courseResponse {
	out := make([]courseResponse, 0, len(in))
	for _, c := range in {
		out = append(out, toCourse(c))
	}
	return out
}

func toStudent(u identity.Identity, e campus.Enrollment) studentResponse {
	return studentResponse{ID: u.ID, Name: u.Name, Email: u.Email, RollNumber: u.RollNumber, EnrolledAt: e.EnrolledAt}
}

func toAttendance(a campus.Attendance) attendanceResponse {
	return attendanceResponse{
		ID: a.ID, CourseID: a.CourseID, StudentID: a.StudentID, Date: a.Date,
		Present: a.Present, MarkedBy: a.MarkedBy, MarkedAt: a.MarkedAt,
	}
}

func toAttendanceList(in []campus.Attendance) []attendanceResponse {
	out := make([]attendanceResponse, 0, len(in))
	for _, a := range in {
		out = append(out, toAttendance(a))
	}
	return out
}

func toSummaries(in []campus.AttendanceSummary) []attendanceSummaryResponse {
	out := make([]attendanceSummaryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, attendanceSummaryResponse(s))
	}
	return out
}

func toFee(f campus.Fee) feeResponse {
	return feeResponse{
		ID: f.ID, StudentID: f.StudentID, Description: f.Description, AmountCents: f.AmountCents,
		DueDate: f.DueDate, Paid: f.Paid, PaidAt: f.PaidAt, CreatedAt: f.CreatedAt,
	}
}

func toFees(in []campus.Fee) []feeResponse {
	out := make([]feeResponse, 0, len(in))
	for _, f := range in {
		out = append(out, toFee(f))
	}
	return out
}

func toResult(r campus.Result) resultResponse {
	return resultResponse{
		ID: r.ID, CourseID: r.CourseID, StudentID: r.StudentID, Marks: r.Marks, Grade: r.Grade,
		PublishedBy: r.PublishedBy, PublishedAt: r.PublishedAt, UpdatedAt: r.UpdatedAt,
	}
}

func toResults(in []campus.Result) []resultResponse {
	out := make([]resultResponse, 0, len(in))
	for _, r := range in {
		out = append(out, toResult(r))
	}
	return out
}
