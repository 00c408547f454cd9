package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"
	"go.uber.org/zap"

	"github.com/campus-logistics/delivery-tracker-api/internal/app/authz"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/deliveries"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/session"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/staff"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/observability"
)

type ErrorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestId nullable.Nullable[string]         `json:"requestId,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(map[string]any(details))
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestId = nullable.NewNullableWithValue(rid)
	}
	writeJSON(w, status, er)
}

// appError is the shape shared by every application package's Error type.
type appError struct {
	status  int
	code    string
	message string
	details map[string]any
}

func asAppError(err error) (appError, bool) {
	if ae := (*authz.Error)(nil); errors.As(err, &ae) {
		return appError{ae.Status, ae.Code, ae.Message, ae.Details}, true
	}
	if ae := (*session.Error)(nil); errors.As(err, &ae) {
		return appError{ae.Status, ae.Code, ae.Message, ae.Details}, true
	}
	if ae := (*deliveries.Error)(nil); errors.As(err, &ae) {
		return appError{ae.Status, ae.Code, ae.Message, ae.Details}, true
	}
	if ae := (*staff.Error)(nil); errors.As(err, &ae) {
		return appError{ae.Status, ae.Code, ae.Message, ae.Details}, true
	}
	return appError{}, false
}

// writeAppError maps application errors to the envelope. Anything else is an internal
// error: it is logged and reported, and the client only sees INTERNAL.
func writeAppError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if ae, ok := asAppError(err); ok {
		writeError(w, r, ae.status, ae.code, ae.message, ae.details)
		return
	}
	log.Error("request failed",
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("requestId", middleware.GetReqID(r.Context())),
	)
	observability.CaptureErr(err)
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}
