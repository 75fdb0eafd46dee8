package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/psantana5/usher/pkg/models"
	"github.com/psantana5/usher/pkg/store"
	"github.com/psantana5/usher/pkg/sync"
)

// defaultRunsLimit caps the history listing when the caller gives none
const defaultRunsLimit = 20

// TriggerSync starts a reconciliation pass in the background and
// returns the pending run.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		http.Error(w, "Sync engine not running", http.StatusServiceUnavailable)
		return
	}

	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = models.TriggerManual
	}
	if trigger != models.TriggerManual && trigger != models.TriggerScheduled {
		http.Error(w, fmt.Sprintf("Unknown trigger %q", trigger), http.StatusBadRequest)
		return
	}

	run, err := h.engine.Trigger(trigger)
	if errors.Is(err, sync.ErrSyncInProgress) {
		http.Error(w, "A sync run is already in progress", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to start sync: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("Sync run #%d started (%s)", run.SequenceNumber, trigger)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(run)
}

// ListSyncRuns returns recent runs, newest first
func (h *Handler) ListSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListSyncRuns(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list sync runs: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetSyncRun returns one run by UUID or sequence number
func (h *Handler) GetSyncRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	run, err := h.getRunByIDOrSequence(vars["id"])
	if errors.Is(err, store.ErrSyncRunNotFound) {
		http.Error(w, "Sync run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get sync run: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// GetSyncRunEvents returns the state transition history of a run
func (h *Handler) GetSyncRunEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	run, err := h.getRunByIDOrSequence(vars["id"])
	if errors.Is(err, store.ErrSyncRunNotFound) {
		http.Error(w, "Sync run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get sync run: %v", err), http.StatusInternalServerError)
		return
	}

	events, err := h.store.ListSyncEvents(run.ID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list sync events: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": run.ID,
		"events": events,
		"count":  len(events),
	})
}

// CancelSyncRun stops an in-flight or orphaned run
func (h *Handler) CancelSyncRun(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		http.Error(w, "Sync engine not running", http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(r)

	run, err := h.getRunByIDOrSequence(vars["id"])
	if errors.Is(err, store.ErrSyncRunNotFound) {
		http.Error(w, "Sync run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get sync run: %v", err), http.StatusInternalServerError)
		return
	}

	cancelled, err := h.engine.Cancel(run.ID)
	if errors.Is(err, sync.ErrRunFinished) {
		http.Error(w, "Sync run already finished", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to cancel sync run: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("Sync run #%d cancelled", cancelled.SequenceNumber)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cancelled)
}
