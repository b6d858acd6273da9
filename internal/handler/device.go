// internal/handler/device.go
package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/dangerclosesec/lockity/internal/service"
	"github.com/go-chi/chi/v5"
)

type DeviceHandler struct {
	tokens  *service.DeviceTokenService
	logs    *service.LockerLogService
	lockers *service.LockerService
}

func NewDeviceHandler(tokens *service.DeviceTokenService, logs *service.LockerLogService, lockers *service.LockerService) *DeviceHandler {
	return &DeviceHandler{tokens: tokens, logs: logs, lockers: lockers}
}

// Config returns the access table a locker loads at boot.
func (h *DeviceHandler) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.lockers.DeviceConfig(r.Context(), chi.URLParam(r, "serialNumber"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "", cfg)
}

// RegisterToken adds a push notification target for the caller.
func (h *DeviceHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in service.RegisterDeviceInput
	if !decode(w, r, &in) {
		return
	}
	in.UserID = userID

	token, err := h.tokens.Register(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, "Device token registered", token)
}

type removeTokenRequest struct {
	Token string `json:"device_token"`
}

func (h *DeviceHandler) RemoveToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req removeTokenRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.tokens.Remove(r.Context(), userID, req.Token); err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Device token removed", nil)
}

// IngestLogs accepts one locker log or an array of logs from one locker.
// Persistence happens after the response.
func (h *DeviceHandler) IngestLogs(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var entries []service.LockerLogInput
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &entries)
	} else {
		var one service.LockerLogInput
		err = json.Unmarshal(trimmed, &one)
		entries = append(entries, one)
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	logs, err := h.logs.IngestBatch(r.Context(), entries)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusAccepted, "Locker logs accepted", logs)
}
