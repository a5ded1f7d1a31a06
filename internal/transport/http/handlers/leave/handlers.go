package leavehandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/leave"
	"hrdesk/internal/platform/clock"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

type Handler struct {
	Lifecycle   *leave.Lifecycle
	Ledger      *leave.Ledger
	Clock       clock.Clock
	Idempotency func(http.Handler) http.Handler
}

func NewHandler(lifecycle *leave.Lifecycle, ledger *leave.Ledger, clk clock.Clock, idempotency func(http.Handler) http.Handler) *Handler {
	if idempotency == nil {
		idempotency = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{Lifecycle: lifecycle, Ledger: ledger, Clock: clk, Idempotency: idempotency}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leaves", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveWrite), h.Idempotency).Post("/apply", h.handleApply)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/my-leaves", h.handleMyLeaves)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/balance", h.handleBalance)
		r.With(middleware.RequirePermission(auth.PermLeaveReadAll)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/{applicationID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove)).Put("/{applicationID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove)).Put("/{applicationID}/reject", h.handleReject)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite)).Delete("/{applicationID}/cancel", h.handleCancel)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Post("/{applicationID}/comments", h.handleComment)
	})
}

type applyPayload struct {
	LeaveType string `json:"leaveType" validate:"required,max=64"`
	FromDate  string `json:"fromDate"`
	ToDate    string `json:"toDate"`
	Reason    string `json:"reason" validate:"required,max=2000"`
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload applyPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	payload.Reason = strings.TrimSpace(payload.Reason)
	v.Struct(payload)
	from, _ := v.Date("fromDate", payload.FromDate)
	to, _ := v.Date("toDate", payload.ToDate)
	if v.Reject(w, requestID) {
		return
	}

	app, err := h.Lifecycle.Apply(r.Context(), user, leave.ApplyInput{
		LeaveType: payload.LeaveType,
		FromDate:  from,
		ToDate:    to,
		Reason:    payload.Reason,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Created(w, app, requestID)
}

func (h *Handler) handleMyLeaves(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	v := shared.NewValidator()
	year := shared.QueryInt(r, v, "year", 0)
	if v.Reject(w, requestID) {
		return
	}

	apps, err := h.Lifecycle.MyApplications(r.Context(), user, r.URL.Query().Get("status"), year)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	if apps == nil {
		apps = []leave.Application{}
	}
	api.Success(w, apps, requestID)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	summary, err := h.Ledger.Summary(r.Context(), user.EmployeeID, h.Clock.Today().Year)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, summary, requestID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	v := shared.NewValidator()
	year := shared.QueryInt(r, v, "year", 0)
	if v.Reject(w, requestID) {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	list, err := h.Lifecycle.List(r.Context(), user, leave.ApplicationFilter{
		EmployeeID: r.URL.Query().Get("employeeId"),
		Status:     r.URL.Query().Get("status"),
		Year:       year,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	if list.Items == nil {
		list.Items = []leave.Application{}
	}
	api.Success(w, list, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	app, err := h.Lifecycle.Get(r.Context(), user, chi.URLParam(r, "applicationID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, app, requestID)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	app, err := h.Lifecycle.Approve(r.Context(), user, chi.URLParam(r, "applicationID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, app, requestID)
}

type rejectPayload struct {
	Reason string `json:"reason" validate:"max=2000"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload rejectPayload
	if r.ContentLength != 0 && !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	app, err := h.Lifecycle.Reject(r.Context(), user, chi.URLParam(r, "applicationID"), strings.TrimSpace(payload.Reason))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, app, requestID)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	res, err := h.Lifecycle.Cancel(r.Context(), user, chi.URLParam(r, "applicationID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	if res.Deleted {
		api.Success(w, map[string]bool{"deleted": true}, requestID)
		return
	}
	api.Success(w, res.Application, requestID)
}

type commentPayload struct {
	Text string `json:"text" validate:"required,max=2000"`
}

func (h *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload commentPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	payload.Text = strings.TrimSpace(payload.Text)
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	app, err := h.Lifecycle.AddComment(r.Context(), user, chi.URLParam(r, "applicationID"), payload.Text)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Created(w, app, requestID)
}
