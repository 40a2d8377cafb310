package api

import (
	"net/http"

	"campus/cmd/internal/campus"
	"campus/cmd/internal/httpx"
)

func (h *Handler) handleStudentCourses(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListCourses(r.Context(), campus.CourseFilter{StudentID: principal(r).ID})
	if err != nil {
		h.writeStoreError(w, "campus.course.list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"courses": toCourses(list)})
}

func (h *Handler) handleStudentAttendance(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAttendance(r.Context(), campus.AttendanceFilter{StudentID: principal(r).ID})
	if err != nil {
		h.writeStoreError(w, "campus.attendance.list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"attendance": toAttendanceList(list),
		"summary":    toSummaries(campus.SummarizeAttendance(list)),
	})
}

func (h *Handler) handleStudentFees(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListFees(r.Context(), principal(r).ID)
	if err != nil {
		h.writeStoreError(w, "campus.fee.list.fail", err)
		return
	}

	var outstanding int64
	for _, f := range list {
		if !f.Paid {
			outstanding += f.AmountCents
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"fees": toFees(list), "outstanding_cents": outstanding})
}

func (h *Handler) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListResults(r.Context(), campus.ResultFilter{StudentID: principal(r).ID})
	if err != nil {
		h.writeStoreError(w, "campus.result.list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"results": toResults(list)})
}
