package handlers

import (
	"encoding/json"
	"net/http"

	"boffo/internal/boffo"
	"boffo/internal/folio"
)

// SessionHandler manages the stored FOLIO login and the output field
// selection.
type SessionHandler struct {
	Service *boffo.Service
}

func NewSessionHandler(svc *boffo.Service) *SessionHandler {
	return &SessionHandler{Service: svc}
}

type loginRequest struct {
	ServerURL string `json:"serverUrl"`
	TenantID  string `json:"tenantId"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

type fieldsRequest struct {
	Flags   []bool   `json:"flags,omitempty"`
	Enabled []string `json:"enabled,omitempty"`
}

func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	state, err := h.Service.SessionState(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	writeData(w, map[string]string{"state": state.String()}, nil)
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendErrorResponse(w, "invalid JSON", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}
	err := h.Service.Login(r.Context(), folio.LoginRequest{
		ServerURL: in.ServerURL,
		TenantID:  in.TenantID,
		Username:  in.Username,
		Password:  in.Password,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	h.State(w, r)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Logout(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) ListFields(w http.ResponseWriter, r *http.Request) {
	descs, err := h.Service.FieldDescriptors(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	writeData(w, descs, nil)
}

// UpdateFields takes either one flag per field, in ListFields order, or the
// names of the fields to enable.
func (h *SessionHandler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	var in fieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendErrorResponse(w, "invalid JSON", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}

	var err error
	switch {
	case in.Flags != nil && in.Enabled != nil:
		sendErrorResponse(w, "send either flags or enabled, not both", "INVALID_REQUEST", http.StatusBadRequest)
		return
	case in.Flags != nil:
		err = h.Service.SetFieldSelections(r.Context(), in.Flags)
	case in.Enabled != nil:
		err = h.Service.SetEnabledFieldNames(r.Context(), in.Enabled)
	default:
		sendErrorResponse(w, "flags or enabled is required", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}
	if err != nil {
		WriteError(w, err)
		return
	}
	h.ListFields(w, r)
}
