package offers

import (
	"encoding/json"
	"errors"
	"net/http"
)

// StatusClientClosedRequest is returned when the caller went away mid-request.
const StatusClientClosedRequest = 499

type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title,omitempty"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	writeProblem(w, status, title, err.Error())
}

// StatusFor maps a service error to an HTTP status code and problem title.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, "invalid argument"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrUnsupportedPolicy):
		return http.StatusUnprocessableEntity, "offer type misconfigured"
	case errors.Is(err, ErrCancelled):
		return StatusClientClosedRequest, "request cancelled"
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrDecode):
		return http.StatusBadGateway, "valuation service failure"
	case errors.Is(err, ErrConcurrencyConflict):
		return http.StatusConflict, "concurrent update"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
