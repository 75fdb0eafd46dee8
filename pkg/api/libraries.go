package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/psantana5/usher/pkg/models"
	"github.com/psantana5/usher/pkg/plex"
)

// ListLibraries returns the library sections captured by the last scan
func (h *Handler) ListLibraries(w http.ResponseWriter, r *http.Request) {
	libraries, err := h.store.ListLibraries()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list libraries: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"libraries": libraries,
		"count":     len(libraries),
	})
}

// ScanLibraries fetches the section list from the media server and
// replaces the stored snapshot with it.
func (h *Handler) ScanLibraries(w http.ResponseWriter, r *http.Request) {
	client, err := h.clients(r.Context())
	if errors.Is(err, plex.ErrNotConfigured) {
		http.Error(w, "Plex connection not configured", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to reach plex: %v", err), http.StatusBadGateway)
		return
	}

	sections, err := client.Sections(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch library sections: %v", err), http.StatusBadGateway)
		return
	}

	now := time.Now().UTC()
	libraries := make([]models.Library, 0, len(sections))
	for _, s := range sections {
		libraries = append(libraries, models.Library{
			Key:       s.Key,
			Title:     s.Title,
			Type:      s.Type,
			Agent:     s.Agent,
			ScannedAt: now,
		})
	}

	if err := h.store.ReplaceLibraries(libraries); err != nil {
		http.Error(w, fmt.Sprintf("Failed to store libraries: %v", err), http.StatusInternalServerError)
		return
	}

	if h.recorder != nil {
		h.recorder.SetLibraryCount(len(libraries))
	}

	log.Printf("Library scan captured %d sections", len(libraries))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"libraries": libraries,
		"count":     len(libraries),
	})
}
