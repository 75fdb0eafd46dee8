package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/psantana5/usher/pkg/plex"
	"github.com/psantana5/usher/pkg/store"
)

// ListUsers returns all tracked members
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list users: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// GetUser returns a single member by id
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := h.store.GetUser(vars["id"])
	if errors.Is(err, store.ErrUserNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get user: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// DeleteUser removes a member. By default the member is also removed
// from the Plex account; ?remote=false deletes the local row only, in
// which case the next sync will re-import the member if it still holds
// upstream access.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := h.store.GetUser(vars["id"])
	if errors.Is(err, store.ErrUserNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get user: %v", err), http.StatusInternalServerError)
		return
	}

	remote := true
	if v := r.URL.Query().Get("remote"); v != "" {
		parsed, perr := strconv.ParseBool(v)
		if perr != nil {
			http.Error(w, "Invalid remote parameter, expected true or false", http.StatusBadRequest)
			return
		}
		remote = parsed
	}

	if remote {
		client, cerr := h.clients(r.Context())
		if errors.Is(cerr, plex.ErrNotConfigured) {
			http.Error(w, "Plex connection not configured, use ?remote=false to delete the local record only", http.StatusConflict)
			return
		}
		if cerr != nil {
			http.Error(w, fmt.Sprintf("Failed to reach plex: %v", cerr), http.StatusBadGateway)
			return
		}
		if err := client.RemoveUser(r.Context(), user.PlexID); err != nil {
			http.Error(w, fmt.Sprintf("Failed to remove user from plex account: %v", err), http.StatusBadGateway)
			return
		}
	}

	if err := h.store.DeleteUser(user.ID); err != nil {
		http.Error(w, fmt.Sprintf("Failed to delete user: %v", err), http.StatusInternalServerError)
		return
	}

	if h.recorder != nil {
		if n, cerr := h.store.CountUsers(); cerr == nil {
			h.recorder.SetUserCount(n)
		}
	}

	log.Printf("Deleted user %s (%s, remote=%t)", user.ID, user.Username, remote)
	w.WriteHeader(http.StatusNoContent)
}
