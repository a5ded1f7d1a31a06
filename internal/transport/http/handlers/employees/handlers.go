package employeeshandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/leave"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

// Handler exposes HR balance administration for a single employee.
type Handler struct {
	Ledger      *leave.Ledger
	Provisioner *leave.Provisioner
}

func NewHandler(ledger *leave.Ledger, provisioner *leave.Provisioner) *Handler {
	return &Handler{Ledger: ledger, Provisioner: provisioner}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees/{employeeID}", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermBalanceManage))
		r.Post("/initialize-leaves", h.handleInitialize)
		r.Post("/rollover-leaves", h.handleRollover)
		r.Get("/leave-balance", h.handleGetBalance)
		r.Put("/leave-balance", h.handleSetBalance)
	})
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	balances, err := h.Provisioner.Reinitialize(r.Context(), user, chi.URLParam(r, "employeeID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, balances, requestID)
}

func (h *Handler) handleRollover(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	balances, err := h.Provisioner.RolloverEmployee(r.Context(), user, chi.URLParam(r, "employeeID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, balances, requestID)
}

func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	balances, err := h.Ledger.Balances(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	if balances == nil {
		balances = []leave.Balance{}
	}
	api.Success(w, balances, requestID)
}

type balancePayload struct {
	LeaveType      string `json:"leaveType" validate:"required,max=64"`
	Total          *int   `json:"total" validate:"required,gte=0"`
	Used           *int   `json:"used" validate:"required,gte=0"`
	CarriedForward int    `json:"carriedForward" validate:"gte=0"`
}

func (h *Handler) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload balancePayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	payload.LeaveType = strings.ToLower(strings.TrimSpace(payload.LeaveType))
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	balances, err := h.Ledger.SetManual(r.Context(), user, chi.URLParam(r, "employeeID"), payload.LeaveType, leave.ManualBalance{
		Total:          *payload.Total,
		Used:           *payload.Used,
		CarriedForward: payload.CarriedForward,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, balances, requestID)
}
