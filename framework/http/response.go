package http

import (
	"encoding/json"
	"net/http"

	"github.com/km-arc/go-appcontext/framework/errors"
	"github.com/km-arc/go-appcontext/framework/validation"
)

// ── Response ─────────────────────────────────────────────────────────────────

// Response wraps http.ResponseWriter with JSON helpers.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// ── JSON responses ────────────────────────────────────────────────────────────

// JSON sends a JSON response.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, envelope{"data": v})
}

// Accepted sends 202 JSON: {"data": v}
func (res *Response) Accepted(v any) {
	res.JSON(http.StatusAccepted, envelope{"data": v})
}

// Error sends a JSON error response.
//
//	res.Error(http.StatusNotFound, "component not found")
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"message": message})
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	res.Error(http.StatusNotFound, first(message, "Not found."))
}

// ValidationError sends 422 with the field error bag.
//
//	res.ValidationError(validator.Errors())
func (res *Response) ValidationError(errs *validation.Errors) {
	res.JSON(http.StatusUnprocessableEntity, errs)
}

// FromError maps a context failure onto a status code and sends it.
// Validation failures become 422 with their bag.
func (res *Response) FromError(err error) {
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		res.ValidationError(verrs)
		return
	}
	res.Error(StatusOf(err), err.Error())
}

// StatusOf returns the HTTP status a context failure maps to.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrAmbiguous):
		return http.StatusConflict
	case errors.Is(err, errors.ErrIllegalState):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrFormat), errors.Is(err, errors.ErrTypeMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
