package api

import (
	"fmt"
	"net/http"
	"strings"

	"campus/cmd/internal/campus"
	"campus/cmd/internal/httpx"
	"campus/cmd/internal/notify"
)

// Upper bound on records in one attendance submission.
const maxAttendanceRecords = 500

func (h *Handler) handleFacultyCourses(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListCourses(r.Context(), campus.CourseFilter{FacultyID: principal(r).ID})
	if err != nil {
		h.writeStoreError(w, "campus.course.list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"courses": toCourses(list)})
}

func (h *Handler) handleCourseStudents(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownCourse(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	enrollments, err := h.store.ListEnrollments(r.Context(), c.ID)
	if err != nil {
		h.writeStoreError(w, "campus.enrollment.list.fail", err)
		return
	}

	out := make([]studentResponse, 0, len(enrollments))
	for _, e := range enrollments {
		u, err := h.ids.GetByID(r.Context(), e.StudentID)
		if err != nil {
			h.log.Error("campus.enrollment.identity.fail", "err", err, "student_id", e.StudentID)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		out = append(out, toStudent(u, e))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"course": toCourse(c), "students": out})
}

func (h *Handler) handleCourseAttendance(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownCourse(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	list, err := h.store.ListAttendance(r.Context(), campus.AttendanceFilter{
		CourseID: c.ID,
		Date:     strings.TrimSpace(r.URL.Query().Get("date")),
	})
	if err != nil {
		h.writeStoreError(w, "campus.attendance.list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"attendance": toAttendanceList(list),
		"summary":    toSummaries(campus.SummarizeAttendance(list)),
	})
}

func (h *Handler) handleCourseResults(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownCourse(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	list, err := h.store.ListResults(r.Context(), campus.ResultFilter{CourseID: c.ID})
	if err != nil {
		h.writeStoreError(w, "campus.result.list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"results": toResults(list)})
}

// handleMarkAttendance records one date for several students of one course.
// Every student must be enrolled. The batch is written in one store call and
// notifications go out only after it succeeds.
func (h *Handler) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req markAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	date, ok := campus.ParseDate(req.Date)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}
	if len(req.Records) == 0 || len(req.Records) > maxAttendanceRecords {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("records must hold 1..%d entries", maxAttendanceRecords))
		return
	}

	c, ok := h.ownCourse(w, r, req.CourseID)
	if !ok {
		return
	}

	seen := make(map[string]struct{}, len(req.Records))
	for _, rec := range req.Records {
		sid := strings.TrimSpace(rec.StudentID)
		if _, dup := seen[sid]; dup {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "duplicate student_id "+sid)
			return
		}
		seen[sid] = struct{}{}

		enrolled, err := h.store.IsEnrolled(r.Context(), c.ID, sid)
		if err != nil {
			h.writeStoreError(w, "campus.enrollment.check.fail", err)
			return
		}
		if !enrolled {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "student "+sid+" is not enrolled in "+c.Code)
			return
		}
	}

	if !c.AttendanceNeeded {
		httpx.WriteError(w, http.StatusConflict, "conflict", "attendance is not tracked for "+c.Code)
		return
	}

	marker := principal(r).ID
	now := h.now()
	batch := make([]campus.NewAttendance, 0, len(req.Records))
	for _, rec := range req.Records {
		batch = append(batch, campus.NewAttendance{
			CourseID:  c.ID,
			StudentID: strings.TrimSpace(rec.StudentID),
			Date:      date,
			Present:   rec.Present,
			MarkedBy:  marker,
			Now:       now,
		})
	}
	marked, err := h.store.MarkAttendanceBatch(r.Context(), batch)
	if err != nil {
		h.writeStoreError(w, "campus.attendance.mark.fail", err)
		return
	}

	out := make([]attendanceResponse, 0, len(marked))
	for _, a := range marked {
		resp := toAttendance(a)
		h.notifier.Notify(a.StudentID, notify.TypeAttendanceMarked, map[string]any{
			"course_code": c.Code,
			"attendance":  resp,
		})
		out = append(out, resp)
	}

	h.log.Info("campus.attendance.marked", "course_id", c.ID, "date", date, "count", len(out), "by", marker)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"attendance": out})
}

func (h *Handler) handlePublishResult(w http.ResponseWriter, r *http.Request) {
	var req publishResultRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Marks == nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "marks is required")
		return
	}

	c, ok := h.ownCourse(w, r, req.CourseID)
	if !ok {
		return
	}

	sid := strings.TrimSpace(req.StudentID)
	enrolled, err := h.store.IsEnrolled(r.Context(), c.ID, sid)
	if err != nil {
		h.writeStoreError(w, "campus.enrollment.check.fail", err)
		return
	}
	if !enrolled {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "student is not enrolled in "+c.Code)
		return
	}

	res, err := h.store.PublishResult(r.Context(), campus.NewResult{
		CourseID:    c.ID,
		StudentID:   sid,
		Marks:       *req.Marks,
		Grade:       req.Grade,
		PublishedBy: principal(r).ID,
		Now:         h.now(),
	})
	if err != nil {
		h.writeStoreError(w, "campus.result.publish.fail", err)
		return
	}

	resp := toResult(res)
	h.notifier.Notify(res.StudentID, notify.TypeResultPublished, map[string]any{"course_code": c.Code, "result": resp})
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"result": resp})
}

func (h *Handler) handleUpdateResult(w http.ResponseWriter, r *http.Request) {
	var req updateResultRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Marks == nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "marks is required")
		return
	}

	existing, err := h.store.GetResult(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, "campus.result.get.fail", err)
		return
	}
	c, ok := h.ownCourse(w, r, existing.CourseID)
	if !ok {
		return
	}

	res, err := h.store.UpdateResult(r.Context(), existing.ID, campus.ResultUpdate{
		Marks: *req.Marks,
		Grade: req.Grade,
		Now:   h.now(),
	})
	if err != nil {
		h.writeStoreError(w, "campus.result.update.fail", err)
		return
	}

	resp := toResult(res)
	h.notifier.Notify(res.StudentID, notify.TypeResultPublished, map[string]any{"course_code": c.Code, "result": resp})
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"result": resp})
}
