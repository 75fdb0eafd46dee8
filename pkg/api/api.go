// Package api exposes the membership service over HTTP: users,
// libraries, settings, sync runs and API keys.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/usher/pkg/metrics"
	"github.com/psantana5/usher/pkg/models"
	"github.com/psantana5/usher/pkg/plex"
	"github.com/psantana5/usher/pkg/rbac"
	"github.com/psantana5/usher/pkg/store"
	"github.com/psantana5/usher/pkg/sync"
)

// Config holds the handler's collaborators. Engine, Scheduler and
// Recorder are optional; handlers answer 503 or omit fields when they
// are absent.
type Config struct {
	Store     store.Store
	Engine    *sync.Engine
	Scheduler *sync.Scheduler
	Clients   sync.ClientFactory
	Recorder  *metrics.Recorder
	Version   string
}

// Handler serves the HTTP API
type Handler struct {
	store     store.Store
	engine    *sync.Engine
	scheduler *sync.Scheduler
	clients   sync.ClientFactory
	recorder  *metrics.Recorder
	version   string
	startTime time.Time
}

// NewHandler creates an API handler
func NewHandler(cfg Config) *Handler {
	if cfg.Clients == nil {
		st := cfg.Store
		cfg.Clients = func(ctx context.Context) (*plex.Client, error) {
			return plex.FromSettings(st)
		}
	}
	return &Handler{
		store:     cfg.Store,
		engine:    cfg.Engine,
		scheduler: cfg.Scheduler,
		clients:   cfg.Clients,
		recorder:  cfg.Recorder,
		version:   cfg.Version,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers all API routes. Specific routes are
// registered before parameterized routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/status", h.Status).Methods("GET")

	// User routes
	r.Handle("/users", h.require(models.PermUserRead, h.ListUsers)).Methods("GET")
	r.Handle("/users/{id}", h.require(models.PermUserRead, h.GetUser)).Methods("GET")
	r.Handle("/users/{id}", h.require(models.PermUserDelete, h.DeleteUser)).Methods("DELETE")

	// Library routes
	r.Handle("/libraries", h.require(models.PermLibraryRead, h.ListLibraries)).Methods("GET")
	r.Handle("/libraries/scan", h.require(models.PermLibraryScan, h.ScanLibraries)).Methods("POST")

	// Settings routes (register /settings/validate before /settings/{key})
	r.Handle("/settings", h.require(models.PermSettingsRead, h.ListSettings)).Methods("GET")
	r.Handle("/settings/validate", h.require(models.PermSettingsRead, h.ValidateSettings)).Methods("POST")
	r.Handle("/settings/{key}", h.require(models.PermSettingsRead, h.GetSetting)).Methods("GET")
	r.Handle("/settings/{key}", h.require(models.PermSettingsWrite, h.PutSetting)).Methods("PUT")

	// Sync routes
	r.Handle("/sync", h.require(models.PermSyncTrigger, h.TriggerSync)).Methods("POST")
	r.Handle("/sync/runs", h.require(models.PermSyncRead, h.ListSyncRuns)).Methods("GET")
	r.Handle("/sync/runs/{id}", h.require(models.PermSyncRead, h.GetSyncRun)).Methods("GET")
	r.Handle("/sync/runs/{id}/events", h.require(models.PermSyncRead, h.GetSyncRunEvents)).Methods("GET")
	r.Handle("/sync/runs/{id}/cancel", h.require(models.PermSyncTrigger, h.CancelSyncRun)).Methods("POST")

	// API key routes
	r.Handle("/apikeys", h.require(models.PermAPIKeyCreate, h.CreateAPIKey)).Methods("POST")
	r.Handle("/apikeys", h.require(models.PermAPIKeyRead, h.ListAPIKeys)).Methods("GET")
	r.Handle("/apikeys/{id}", h.require(models.PermAPIKeyRevoke, h.DeleteAPIKey)).Methods("DELETE")
}

func (h *Handler) require(perm models.Permission, fn http.HandlerFunc) http.Handler {
	return rbac.RequirePermission(perm)(fn)
}

// getRunByIDOrSequence retrieves a sync run by UUID or by its short
// sequence number.
func (h *Handler) getRunByIDOrSequence(idOrSeq string) (*models.SyncRun, error) {
	if seq, err := strconv.Atoi(idOrSeq); err == nil && seq > 0 {
		return h.store.GetSyncRunBySequence(seq)
	}
	return h.store.GetSyncRun(idOrSeq)
}
