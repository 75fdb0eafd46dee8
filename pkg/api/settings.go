package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/usher/pkg/models"
	"github.com/psantana5/usher/pkg/plex"
	"github.com/psantana5/usher/pkg/store"
)

// validateTimeout bounds the connection probe so a dead server does not
// hold the request open for the full client timeout.
const validateTimeout = 10 * time.Second

// ListSettings returns all settings with secret values masked
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.ListSettings()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list settings: %v", err), http.StatusInternalServerError)
		return
	}

	masked := make([]models.Setting, 0, len(settings))
	for _, s := range settings {
		masked = append(masked, s.Masked())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"settings": masked,
		"count":    len(masked),
	})
}

// GetSetting returns a single setting. Secret values stay masked here
// too; the daemon reads secrets from the store directly, never through
// the HTTP surface.
func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	setting, err := h.store.GetSetting(vars["key"])
	if errors.Is(err, store.ErrSettingNotFound) {
		http.Error(w, "Setting not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get setting: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(setting.Masked())
}

// PutSetting creates or updates a setting
func (h *Handler) PutSetting(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := vars["key"]

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := models.ValidateSetting(key, req.Value); err != nil {
		http.Error(w, fmt.Sprintf("Invalid setting: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.store.SetSetting(key, req.Value); err != nil {
		http.Error(w, fmt.Sprintf("Failed to store setting: %v", err), http.StatusInternalServerError)
		return
	}

	setting, err := h.store.GetSetting(key)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read back setting: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("Setting %s updated", key)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(setting.Masked())
}

// ValidateSettings dials the media server and reports whether it
// answered and whether the token was accepted. The body may carry
// server_url and server_api_key to probe values before saving them;
// anything omitted falls back to the stored settings. Nothing in the
// body is persisted.
func (h *Handler) ValidateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerURL    string `json:"server_url"`
		ServerAPIKey string `json:"server_api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	stored, err := h.store.GetSettings(models.SettingServerURL, models.SettingServerAPIKey)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read settings: %v", err), http.StatusInternalServerError)
		return
	}

	serverURL := req.ServerURL
	if serverURL == "" {
		serverURL = stored[models.SettingServerURL]
	}
	token := req.ServerAPIKey
	if token == "" {
		token = stored[models.SettingServerAPIKey]
	}
	if serverURL == "" || token == "" {
		http.Error(w, "Plex connection not configured", http.StatusConflict)
		return
	}

	client, err := plex.NewClient(plex.Config{
		ServerURL: serverURL,
		Token:     token,
		Timeout:   validateTimeout,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid connection settings: %v", err), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), validateTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	identity, err := client.Identity(ctx)
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"reachable": false,
			"error":     err.Error(),
		})
		return
	}

	result := map[string]interface{}{
		"reachable":          true,
		"token_valid":        true,
		"machine_identifier": identity.MachineIdentifier,
		"version":            identity.Version,
		"claimed":            identity.Claimed,
	}
	// The identity endpoint answers unauthenticated, so prove the token
	// separately against an endpoint that checks it.
	if err := client.Verify(ctx); err != nil {
		result["token_valid"] = false
		result["error"] = err.Error()
	}
	json.NewEncoder(w).Encode(result)
}
