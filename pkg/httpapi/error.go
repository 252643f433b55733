package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorEnvelope is the body of every JSON error response.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// StatusCoder is implemented by errors that know how they surface over HTTP.
type StatusCoder interface {
	HTTPStatus() int
	ErrorCode() string
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// WriteErr renders err through its StatusCoder when it has one. Anything else
// is an internal error whose text is not exposed.
func WriteErr(w http.ResponseWriter, err error, fallbackCode string) error {
	var sc StatusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() > 0 {
		return WriteError(w, sc.HTTPStatus(), sc.ErrorCode(), err.Error(), nil)
	}
	return WriteError(w, http.StatusInternalServerError, fallbackCode, "internal error", nil)
}
