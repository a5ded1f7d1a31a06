package reportshandler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/reports"
	"hrdesk/internal/platform/clock"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

type Handler struct {
	Service *reports.Service
	Clock   clock.Clock
}

func NewHandler(service *reports.Service, clk clock.Clock) *Handler {
	return &Handler{Service: service, Clock: clk}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermReportsRead))
		r.Get("/attendance/monthly", h.handleMonthly)
		r.Get("/attendance/today", h.handleToday)
		r.Get("/leave/usage", h.handleLeaveUsage)
	})
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	today := h.Clock.Today()
	v := shared.NewValidator()
	month := shared.QueryInt(r, v, "month", int(today.Month))
	year := shared.QueryInt(r, v, "year", today.Year)
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "pdf" {
		v.Add("format", "must be json or pdf")
	}
	if v.Reject(w, requestID) {
		return
	}

	report, err := h.Service.MonthlyAttendance(r.Context(), user, month, year)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	if format != "pdf" {
		api.Success(w, report, requestID)
		return
	}

	pdf, err := reports.RenderMonthlyPDF(report)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=attendance-%04d-%02d.pdf", year, month))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) handleToday(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	summary, err := h.Service.Today(r.Context(), user)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, summary, requestID)
}

func (h *Handler) handleLeaveUsage(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	v := shared.NewValidator()
	year := shared.QueryInt(r, v, "year", h.Clock.Today().Year)
	if v.Reject(w, requestID) {
		return
	}
	usage, err := h.Service.LeaveUsage(r.Context(), user, year)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, usage, requestID)
}
