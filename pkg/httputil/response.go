package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Code  apperr.Code `json:"code"`
	Error string      `json:"error"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteAppError writes err with the status matching its apperr code.
// Uncategorized errors are internal.
func WriteAppError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	WriteErrorResponse(w, apperr.HTTPStatus(code), code, err.Error())
}

// WriteErrorResponse writes an error body with an explicit status and code
func WriteErrorResponse(w http.ResponseWriter, status int, code apperr.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Code: code, Error: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusBadRequest, apperr.CodeBadRequest, message)
}

// WriteNotFoundError writes a not found error (404)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusNotFound, apperr.CodeNotFound, message)
}

// WriteInternalError writes an internal server error (500)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteErrorResponse(w, http.StatusInternalServerError, apperr.CodeInternal, err.Error())
}

// WriteCreated writes a successful creation response (201 Created)
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK)
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no body (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteJSONOrError writes JSON on success or an internal error on failure
func WriteJSONOrError(w http.ResponseWriter, status int, data interface{}, errMsg string) {
	if err := WriteJSON(w, status, data); err != nil {
		WriteInternalError(w, fmt.Errorf("%s: %w", errMsg, err))
	}
}
