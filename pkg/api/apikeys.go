package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/psantana5/usher/pkg/auth"
	"github.com/psantana5/usher/pkg/models"
	"github.com/psantana5/usher/pkg/store"
)

// CreateAPIKey issues a new credential. The raw key appears in this
// response only; listings never include it again.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req models.APIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "Key name is required", http.StatusBadRequest)
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleViewer
	}
	if !role.IsValid() {
		http.Error(w, fmt.Sprintf("Unknown role %q", role), http.StatusBadRequest)
		return
	}

	raw, err := auth.GenerateKey()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate key: %v", err), http.StatusInternalServerError)
		return
	}

	key := &models.APIKey{
		Name: req.Name,
		Key:  raw,
		Role: role,
	}
	if err := h.store.CreateAPIKey(key); err != nil {
		http.Error(w, fmt.Sprintf("Failed to store key: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("Created API key %s (%s, role %s)", key.ID, key.Name, key.Role)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(key)
}

// ListAPIKeys returns all keys with the raw key material stripped
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list keys: %v", err), http.StatusInternalServerError)
		return
	}

	out := make([]*models.APIKey, 0, len(keys))
	for _, k := range keys {
		masked := *k
		masked.Key = ""
		out = append(out, &masked)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"keys":  out,
		"count": len(out),
	})
}

// DeleteAPIKey revokes a credential. Requests already in flight with
// the key finish; new ones are rejected.
func (h *Handler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	err := h.store.DeleteAPIKey(vars["id"])
	if errors.Is(err, store.ErrAPIKeyNotFound) {
		http.Error(w, "API key not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to delete key: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("Revoked API key %s", vars["id"])
	w.WriteHeader(http.StatusNoContent)
}
