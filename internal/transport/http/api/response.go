package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"hrdesk/internal/domain/apperr"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("write json failed", zap.Error(err))
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnknownLeaveType, apperr.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case apperr.KindStateConflict, apperr.KindAlreadyCheckedIn, apperr.KindNoOpenSession:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// FailError renders a domain error. Internal errors are logged and reported
// with a generic message.
func FailError(w http.ResponseWriter, err error, requestID string) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("request_id", requestID), zap.Error(err))
		Fail(w, status, string(apperr.KindInternal), "internal server error", requestID)
		return
	}
	var detailed interface{ Details() map[string]any }
	if errors.As(err, &detailed) {
		FailWithDetails(w, status, string(kind), err.Error(), detailed.Details(), requestID)
		return
	}
	Fail(w, status, string(kind), err.Error(), requestID)
}
