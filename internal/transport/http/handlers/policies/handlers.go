package policieshandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/leave"
	"hrdesk/internal/domain/policy"
	"hrdesk/internal/platform/jobs"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

type Handler struct {
	Policies    *policy.Service
	Provisioner *leave.Provisioner
	Jobs        *jobs.Service
	Audit       *audit.Recorder
	Category    string
}

func NewHandler(policies *policy.Service, provisioner *leave.Provisioner, jobsSvc *jobs.Service, rec *audit.Recorder, category string) *Handler {
	return &Handler{Policies: policies, Provisioner: provisioner, Jobs: jobsSvc, Audit: rec, Category: category}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/policies", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPolicyRead)).Get("/active", h.handleActive)
		r.With(middleware.RequirePermission(auth.PermPolicyManage)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermPolicyManage)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermPolicyManage)).Get("/{policyID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermPolicyManage)).Put("/{policyID}/activate", h.handleActivate)
		r.With(middleware.RequirePermission(auth.PermBalanceManage)).Post("/{policyID}/apply", h.handleApply)
		r.With(middleware.RequirePermission(auth.PermBalanceManage)).Post("/{policyID}/rollover", h.handleRollover)
	})
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	category := r.URL.Query().Get("category")
	if category == "" {
		category = h.Category
	}
	p, err := h.Policies.Active(r.Context(), category)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, p, requestID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	list, err := h.Policies.List(r.Context())
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	if list == nil {
		list = []policy.Policy{}
	}
	api.Success(w, list, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p, err := h.Policies.Get(r.Context(), chi.URLParam(r, "policyID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, p, requestID)
}

type createPayload struct {
	Name                  string                  `json:"name" validate:"required,max=200"`
	Category              string                  `json:"category" validate:"max=64"`
	LeaveTypes            []policy.LeaveTypeQuota `json:"leaveTypes" validate:"required,min=1,dive"`
	WorkingHoursPerDay    float64                 `json:"workingHoursPerDay" validate:"gte=0,lte=24"`
	HalfDayThresholdHours float64                 `json:"halfDayThresholdHours" validate:"gte=0,lte=24"`
	GraceTimeMinutes      int                     `json:"graceTimeMinutes" validate:"gte=0,lte=720"`
	WorkdayStart          string                  `json:"workdayStart"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload createPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	created, err := h.Policies.Create(r.Context(), policy.Policy{
		Name:                  payload.Name,
		Category:              payload.Category,
		LeaveTypes:            payload.LeaveTypes,
		WorkingHoursPerDay:    payload.WorkingHoursPerDay,
		HalfDayThresholdHours: payload.HalfDayThresholdHours,
		GraceTimeMinutes:      payload.GraceTimeMinutes,
		WorkdayStart:          payload.WorkdayStart,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	h.Audit.Record(r.Context(), user, audit.ActionPolicyCreate, audit.EntityPolicy, created.ID, nil, created)
	api.Created(w, created, requestID)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	p, err := h.Policies.Activate(r.Context(), chi.URLParam(r, "policyID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	h.Audit.Record(r.Context(), user, audit.ActionPolicyActivate, audit.EntityPolicy, p.ID, nil, map[string]string{"category": p.Category})
	api.Success(w, p, requestID)
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	h.runBatch(w, r, jobs.JobPolicyApply, h.Provisioner.ApplyPolicyToAllEmployees)
}

func (h *Handler) handleRollover(w http.ResponseWriter, r *http.Request) {
	h.runBatch(w, r, jobs.JobPolicyRollover, h.Provisioner.RolloverAll)
}

type batchFunc func(ctx context.Context, actor auth.Actor, policyID string) (leave.BatchResult, error)

// runBatch executes a provisioning batch as a recorded job run. Per-employee
// failures are part of a successful response.
func (h *Handler) runBatch(w http.ResponseWriter, r *http.Request, jobType string, fn batchFunc) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	policyID := chi.URLParam(r, "policyID")

	out, err := h.Jobs.RunNow(r.Context(), jobType, func(ctx context.Context) (any, error) {
		return fn(ctx, user, policyID)
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, out, requestID)
}
