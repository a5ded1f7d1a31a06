package attendancehandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/attendance"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/platform/clock"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

type Handler struct {
	Tracker *attendance.Tracker
	Clock   clock.Clock
}

func NewHandler(tracker *attendance.Tracker, clk clock.Clock) *Handler {
	return &Handler{Tracker: tracker, Clock: clk}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/attendance", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAttendanceWrite)).Post("/check-in", h.handleCheckIn)
		r.With(middleware.RequirePermission(auth.PermAttendanceWrite)).Post("/check-out", h.handleCheckOut)
		r.With(middleware.RequirePermission(auth.PermAttendanceRead)).Get("/today", h.handleToday)
		r.With(middleware.RequirePermission(auth.PermAttendanceRead)).Get("/my-attendance", h.handleMyAttendance)
		r.With(middleware.RequirePermission(auth.PermAttendanceRead)).Get("/employees/{employeeID}", h.handleEmployeeAttendance)
		r.With(middleware.RequirePermission(auth.PermAttendanceManage)).Put("/{employeeID}/{date}/notes", h.handleNotes)
	})
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	rec, err := h.Tracker.CheckIn(r.Context(), user)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Created(w, rec, requestID)
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	res, err := h.Tracker.CheckOut(r.Context(), user)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, res, requestID)
}

func (h *Handler) handleToday(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	rec, err := h.Tracker.Today(r.Context(), user)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, rec, requestID)
}

// monthYear defaults to the current business month.
func (h *Handler) monthYear(r *http.Request, v *shared.Validator) (int, int) {
	today := h.Clock.Today()
	month := shared.QueryInt(r, v, "month", int(today.Month))
	year := shared.QueryInt(r, v, "year", today.Year)
	return month, year
}

func (h *Handler) handleMyAttendance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	v := shared.NewValidator()
	month, year := h.monthYear(r, v)
	if v.Reject(w, requestID) {
		return
	}
	view, err := h.Tracker.MyRecords(r.Context(), user, month, year)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	if view.Records == nil {
		view.Records = []attendance.Record{}
	}
	api.Success(w, view, requestID)
}

func (h *Handler) handleEmployeeAttendance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	v := shared.NewValidator()
	month, year := h.monthYear(r, v)
	if v.Reject(w, requestID) {
		return
	}
	view, err := h.Tracker.EmployeeRecords(r.Context(), user, chi.URLParam(r, "employeeID"), month, year)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	if view.Records == nil {
		view.Records = []attendance.Record{}
	}
	api.Success(w, view, requestID)
}

type notesPayload struct {
	Notes string `json:"notes" validate:"max=1000"`
}

func (h *Handler) handleNotes(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload notesPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	day, _ := v.Date("date", chi.URLParam(r, "date"))
	if v.Reject(w, requestID) {
		return
	}

	rec, err := h.Tracker.SetNotes(r.Context(), user, chi.URLParam(r, "employeeID"), day, payload.Notes)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, rec, requestID)
}
