package api

import (
	"net/http"
	"strings"

	"campus/cmd/identity"
	"campus/cmd/internal/campus"
	"campus/cmd/internal/httpx"
	"campus/cmd/internal/notify"
)

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, ok := h.requireRole(r.Context(), w, req.FacultyID, identity.RoleFaculty, "faculty_id"); !ok {
		return
	}

	tracked := true
	if req.AttendanceNeeded != nil {
		tracked = *req.AttendanceNeeded
	}
	c, err := h.store.CreateCourse(r.Context(), campus.NewCourse{
		Code:             req.Code,
		Title:            req.Title,
		Description:      req.Description,
		ResourceLink:     req.ResourceLink,
		AttendanceNeeded: tracked,
		Credits:          req.Credits,
		FacultyID:        strings.TrimSpace(req.FacultyID),
		Now:              h.now(),
	})
	if err != nil {
		h.writeStoreError(w, "campus.course.create.fail", err)
		return
	}

	h.log.Info("campus.course.created", "course_id", c.ID, "code", c.Code, "by", principal(r).ID)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"course": toCourse(c)})
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListCourses(r.Context(), campus.CourseFilter{
		FacultyID: strings.TrimSpace(r.URL.Query().Get("faculty_id")),
	})
	if err != nil {
		h.writeStoreError(w, "campus.course.list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"courses": toCourses(list)})
}

func (h *Handler) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteCourse(r.Context(), id); err != nil {
		h.writeStoreError(w, "campus.course.delete.fail", err)
		return
	}
	h.log.Info("campus.course.deleted", "course_id", id, "by", principal(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if !h.decode(w, r, &req) {
		return
	}
	stu, ok := h.requireRole(r.Context(), w, req.StudentID, identity.RoleStudent, "student_id")
	if !ok {
		return
	}

	e, err := h.store.Enroll(r.Context(), r.PathValue("id"), stu.ID, h.now())
	if err != nil {
		h.writeStoreError(w, "campus.enroll.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"enrollment": enrollmentResponse(e)})
}

func (h *Handler) handleCreateFee(w http.ResponseWriter, r *http.Request) {
	var req createFeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	stu, ok := h.requireRole(r.Context(), w, req.StudentID, identity.RoleStudent, "student_id")
	if !ok {
		return
	}

	f, err := h.store.CreateFee(r.Context(), campus.NewFee{
		StudentID:   stu.ID,
		Description: req.Description,
		AmountCents: req.AmountCents,
		DueDate:     req.DueDate,
		Now:         h.now(),
	})
	if err != nil {
		h.writeStoreError(w, "campus.fee.create.fail", err)
		return
	}

	resp := toFee(f)
	h.notifier.Notify(f.StudentID, notify.TypeFeeCreated, resp)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"fee": resp})
}

func (h *Handler) handleListFees(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListFees(r.Context(), strings.TrimSpace(r.URL.Query().Get("student_id")))
	if err != nil {
		h.writeStoreError(w, "campus.fee.list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"fees": toFees(list)})
}

func (h *Handler) handlePayFee(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.PayFee(r.Context(), r.PathValue("id"), h.now())
	if err != nil {
		h.writeStoreError(w, "campus.fee.pay.fail", err)
		return
	}
	h.log.Info("campus.fee.paid", "fee_id", f.ID, "by", principal(r).ID)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"fee": toFee(f)})
}
