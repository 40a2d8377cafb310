package campus

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu sync.RWMutex

	courses      map[string]Course
	courseByCode map[string]string
	enrollments  map[string]map[string]Enrollment // course -> student
	attendance   map[string]Attendance
	attendanceBy map[string]string // course|student|date -> id
	fees         map[string]Fee
	results      map[string]Result
	resultBy     map[string]string // course|student -> id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courses:      make(map[string]Course),
		courseByCode: make(map[string]string),
		enrollments:  make(map[string]map[string]Enrollment),
		attendance:   make(map[string]Attendance),
		attendanceBy: make(map[string]string),
		fees:         make(map[string]Fee),
		results:      make(map[string]Result),
		resultBy:     make(map[string]string),
	}
}

func key(parts ...string) string { return strings.Join(parts, "|") }

func (s *MemoryStore) CreateCourse(ctx context.Context, in NewCourse) (Course, error) {
	const op = "campus.CreateCourse"
	if err := ctx.Err(); err != nil {
		return Course{}, err
	}
	in, err := prepareCourse(op, in)
	if err != nil {
		return Course{}, err
	}
	id, err := newID(in.Now)
	if err != nil {
		return Course{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.courseByCode[in.Code]; exists {
		return Course{}, conflict(op, "course code already exists")
	}
	c := in.course(id)
	s.courses[id] = c
	s.courseByCode[in.Code] = id
	return c, nil
}

func (s *MemoryStore) GetCourse(ctx context.Context, id string) (Course, error) {
	if err := ctx.Err(); err != nil {
		return Course{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[strings.TrimSpace(id)]
	if !ok {
		return Course{}, notFound("campus.GetCourse", "course")
	}
	return c, nil
}

func (s *MemoryStore) ListCourses(ctx context.Context, f CourseFilter) ([]Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Course, 0, len(s.courses))
	for _, c := range s.courses {
		if f.FacultyID != "" && c.FacultyID != f.FacultyID {
			continue
		}
		if f.StudentID != "" {
			if _, ok := s.enrollments[c.ID][f.StudentID]; !ok {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *MemoryStore) DeleteCourse(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[id]
	if !ok {
		return notFound("campus.DeleteCourse", "course")
	}
	delete(s.courses, id)
	delete(s.courseByCode, c.Code)
	delete(s.enrollments, id)
	for k, aid := range s.attendanceBy {
		if s.attendance[aid].CourseID == id {
			delete(s.attendance, aid)
			delete(s.attendanceBy, k)
		}
	}
	for k, rid := range s.resultBy {
		if s.results[rid].CourseID == id {
			delete(s.results, rid)
			delete(s.resultBy, k)
		}
	}
	return nil
}

func (s *MemoryStore) Enroll(ctx context.Context, courseID, studentID string, now time.Time) (Enrollment, error) {
	const op = "campus.Enroll"
	if err := ctx.Err(); err != nil {
		return Enrollment{}, err
	}
	courseID, studentID = strings.TrimSpace(courseID), strings.TrimSpace(studentID)
	if courseID == "" || studentID == "" {
		return Enrollment{}, invalid(op, "course_id and student_id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[courseID]; !ok {
		return Enrollment{}, notFound(op, "course")
	}
	byStudent := s.enrollments[courseID]
	if byStudent == nil {
		byStudent = make(map[string]Enrollment)
		s.enrollments[courseID] = byStudent
	}
	if _, exists := byStudent[studentID]; exists {
		return Enrollment{}, conflict(op, "student already enrolled")
	}
	e := Enrollment{CourseID: courseID, StudentID: studentID, EnrolledAt: nowOr(now)}
	byStudent[studentID] = e
	return e, nil
}

func (s *MemoryStore) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.enrollments[courseID][studentID]
	return ok, nil
}

func (s *MemoryStore) ListEnrollments(ctx context.Context, courseID string) ([]Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Enrollment, 0, len(s.enrollments[courseID]))
	for _, e := range s.enrollments[courseID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EnrolledAt.Equal(out[j].EnrolledAt) {
			return out[i].EnrolledAt.Before(out[j].EnrolledAt)
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

func (s *MemoryStore) MarkAttendance(ctx context.Context, in NewAttendance) (Attendance, error) {
	out, err := s.markAttendance(ctx, "campus.MarkAttendance", []NewAttendance{in})
	if err != nil {
		return Attendance{}, err
	}
	return out[0], nil
}

func (s *MemoryStore) MarkAttendanceBatch(ctx context.Context, in []NewAttendance) ([]Attendance, error) {
	return s.markAttendance(ctx, "campus.MarkAttendanceBatch", in)
}

// markAttendance checks every record under the lock before writing any.
func (s *MemoryStore) markAttendance(ctx context.Context, op string, in []NewAttendance) ([]Attendance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs, err := prepareBatch(op, in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Attendance, 0, len(recs))
	for _, rec := range recs {
		c, ok := s.courses[rec.CourseID]
		if !ok {
			return nil, notFound(op, "course")
		}
		if !c.AttendanceNeeded {
			return nil, untracked(op)
		}
		id, exists := s.attendanceBy[key(rec.CourseID, rec.StudentID, rec.Date)]
		if !exists {
			if id, err = newID(rec.Now); err != nil {
				return nil, err
			}
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

	for _, a := range out {
		s.attendance[a.ID] = a
		s.attendanceBy[key(a.CourseID, a.StudentID, a.Date)] = a.ID
	}
	return out, nil
}

func (s *MemoryStore) ListAttendance(ctx context.Context, f AttendanceFilter) ([]Attendance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Attendance, 0)
	for _, a := range s.attendance {
		if (f.CourseID != "" && a.CourseID != f.CourseID) ||
			(f.StudentID != "" && a.StudentID != f.StudentID) ||
			(f.Date != "" && a.Date != f.Date) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].CourseID != out[j].CourseID {
			return out[i].CourseID < out[j].CourseID
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

func (s *MemoryStore) CreateFee(ctx context.Context, in NewFee) (Fee, error) {
	const op = "campus.CreateFee"
	if err := ctx.Err(); err != nil {
		return Fee{}, err
	}
	in, err := prepareFee(op, in)
	if err != nil {
		return Fee{}, err
	}
	id, err := newID(in.Now)
	if err != nil {
		return Fee{}, err
	}

	f := Fee{
		ID:          id,
		StudentID:   in.StudentID,
		Description: in.Description,
		AmountCents: in.AmountCents,
		DueDate:     in.DueDate,
		CreatedAt:   in.Now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fees[id] = f
	return f, nil
}

func (s *MemoryStore) GetFee(ctx context.Context, id string) (Fee, error) {
	if err := ctx.Err(); err != nil {
		return Fee{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.fees[strings.TrimSpace(id)]
	if !ok {
		return Fee{}, notFound("campus.GetFee", "fee")
	}
	return f, nil
}

func (s *MemoryStore) ListFees(ctx context.Context, studentID string) ([]Fee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Fee, 0)
	for _, f := range s.fees {
		if studentID != "" && f.StudentID != studentID {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate != out[j].DueDate {
			return out[i].DueDate < out[j].DueDate
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) PayFee(ctx context.Context, id string, now time.Time) (Fee, error) {
	const op = "campus.PayFee"
	if err := ctx.Err(); err != nil {
		return Fee{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fees[strings.TrimSpace(id)]
	if !ok {
		return Fee{}, notFound(op, "fee")
	}
	if f.Paid {
		return Fee{}, conflict(op, "fee already paid")
	}
	paidAt := nowOr(now)
	f.Paid, f.PaidAt = true, &paidAt
	s.fees[f.ID] = f
	return f, nil
}

func (s *MemoryStore) PublishResult(ctx context.Context, in NewResult) (Result, error) {
	const op = "campus.PublishResult"
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	in, err := prepareResult(op, in)
	if err != nil {
		return Result{}, err
	}
	id, err := newID(in.Now)
	if err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[in.CourseID]; !ok {
		return Result{}, notFound(op, "course")
	}
	k := key(in.CourseID, in.StudentID)
	if _, exists := s.resultBy[k]; exists {
		return Result{}, conflict(op, "result already published")
	}
	r := Result{
		ID:          id,
		CourseID:    in.CourseID,
		StudentID:   in.StudentID,
		Marks:       in.Marks,
		Grade:       in.Grade,
		PublishedBy: in.PublishedBy,
		PublishedAt: in.Now,
		UpdatedAt:   in.Now,
	}
	s.results[id] = r
	s.resultBy[k] = id
	return r, nil
}

func (s *MemoryStore) GetResult(ctx context.Context, id string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[strings.TrimSpace(id)]
	if !ok {
		return Result{}, notFound("campus.GetResult", "result")
	}
	return r, nil
}

func (s *MemoryStore) UpdateResult(ctx context.Context, id string, in ResultUpdate) (Result, error) {
	const op = "campus.UpdateResult"
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	grade, err := prepareGrade(op, in.Marks, in.Grade)
	if err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[strings.TrimSpace(id)]
	if !ok {
		return Result{}, notFound(op, "result")
	}
	r.Marks, r.Grade, r.UpdatedAt = in.Marks, grade, nowOr(in.Now)
	s.results[r.ID] = r
	return r, nil
}

func (s *MemoryStore) ListResults(ctx context.Context, f ResultFilter) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Result, 0)
	for _, r := range s.results {
		if (f.CourseID != "" && r.CourseID != f.CourseID) || (f.StudentID != "" && r.StudentID != f.StudentID) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CourseID != out[j].CourseID {
			return out[i].CourseID < out[j].CourseID
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}
