// Package handlers serves Boffo operations over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"boffo/internal/folio"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Advice string `json:"advice,omitempty"`
}

// CodeNeedCredentials tells the client to POST /session before retrying.
const CodeNeedCredentials = "NEED_CREDENTIALS"

// StatusFor maps an operation error to the HTTP status and error code the
// client sees.
func StatusFor(err error) (int, string) {
	if errors.Is(err, folio.ErrNeedCredentials) {
		return http.StatusUnauthorized, CodeNeedCredentials
	}
	kind := folio.KindOf(err)
	switch kind {
	case folio.KindConfig:
		return http.StatusBadRequest, kind.Code()
	case folio.KindAuth:
		return http.StatusUnauthorized, kind.Code()
	case folio.KindNotFound:
		return http.StatusNotFound, kind.Code()
	case folio.KindCapacity:
		return http.StatusRequestEntityTooLarge, kind.Code()
	case folio.KindDataIntegrity:
		return http.StatusUnprocessableEntity, kind.Code()
	case folio.KindTransient:
		return http.StatusServiceUnavailable, kind.Code()
	case folio.KindUnreachable:
		return http.StatusBadGateway, kind.Code()
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// WriteError reports err with the status its kind maps to.
func WriteError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("handlers: unclassified error: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := ErrorResponse{
		Error:  err.Error(),
		Code:   code,
		Advice: folio.Advice(err),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// sendErrorResponse reports a malformed request.
func sendErrorResponse(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := ErrorResponse{
		Error: message,
		Code:  code,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("handlers: failed to encode response: %v", err)
	}
}

func writeData(w http.ResponseWriter, data any, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, map[string]any{
		"data": data,
		"meta": meta,
	})
}
