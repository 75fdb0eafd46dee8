package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/usher/pkg/api"
	"github.com/psantana5/usher/pkg/auth"
	"github.com/psantana5/usher/pkg/logging"
	"github.com/psantana5/usher/pkg/models"
	"github.com/psantana5/usher/pkg/plex"
	"github.com/psantana5/usher/pkg/retry"
	"github.com/psantana5/usher/pkg/store"
	usersync "github.com/psantana5/usher/pkg/sync"
)

const bootstrapKey = "usher_test_bootstrap_key"

// fakePlex imitates the handful of Plex endpoints the API touches:
// account users, friend removal, library sections and identity.
type fakePlex struct {
	srv *httptest.Server

	mu      sync.Mutex
	friends map[string]bool
	removed []string
}

func newFakePlex(t *testing.T) *fakePlex {
	t.Helper()
	f := &fakePlex{friends: map[string]bool{}}

	m := http.NewServeMux()
	m.HandleFunc("/identity", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<MediaContainer machineIdentifier="srv-abc123" version="1.41.0.8992" claimed="1"/>`)
	})
	m.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<MediaContainer size="2">`+
			`<Directory key="1" title="Movies" type="movie" agent="tv.plex.agents.movie"/>`+
			`<Directory key="2" title="TV Shows" type="show" agent="tv.plex.agents.series"/>`+
			`</MediaContainer>`)
	})
	m.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<MediaContainer size="2">`+
			`<User id="101" username="alice" email="alice@example.com" home="0"/>`+
			`<User id="201" title="kiddo" home="1"/>`+
			`</MediaContainer>`)
	})
	m.HandleFunc("/api/friends/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/friends/")
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.friends[id] {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		delete(f.friends, id)
		f.removed = append(f.removed, id)
	})
	m.HandleFunc("/api/home/users/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	f.srv = httptest.NewServer(m)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePlex) addFriend(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.friends[id] = true
}

func (f *fakePlex) removedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakePlex) factory() usersync.ClientFactory {
	return func(ctx context.Context) (*plex.Client, error) {
		return plex.NewClient(plex.Config{
			ServerURL:  f.srv.URL,
			AccountURL: f.srv.URL,
			Token:      "secret",
			Timeout:    5 * time.Second,
		})
	}
}

// newRouter wires the handler behind the same middleware shape the
// daemon uses: every route except /health requires an API key.
func newRouter(st store.Store, cfg api.Config) *mux.Router {
	cfg.Store = st
	handler := api.NewHandler(cfg)

	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			auth.Middleware(st, bootstrapKey)(next).ServeHTTP(w, r)
		})
	})
	handler.RegisterRoutes(router)
	return router
}

func doRequest(router *mux.Router, method, target, body, key string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if key != "" {
		req.Header.Set("X-Api-Key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
}

func seedUser(t *testing.T, st store.Store, username, plexID string) *models.User {
	t.Helper()
	user := &models.User{Username: username, PlexID: plexID}
	if err := st.CreateUser(user); err != nil {
		t.Fatalf("Failed to seed user %s: %v", username, err)
	}
	return user
}

func waitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHealthWithoutKey(t *testing.T) {
	st := store.NewMemoryStore()
	router := newRouter(st, api.Config{Version: "test"})

	w := doRequest(router, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Response: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %q", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("Expected version in health body, got %q", resp["version"])
	}

	// Everything else requires a key
	if w := doRequest(router, "GET", "/status", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for /status without key, got %d", w.Code)
	}
	if w := doRequest(router, "GET", "/users", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for /users without key, got %d", w.Code)
	}
}

func TestStatus(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "101")
	router := newRouter(st, api.Config{Version: "1.2.3"})

	w := doRequest(router, "GET", "/status", "", bootstrapKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Response: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	decodeBody(t, w, &resp)
	if resp["version"] != "1.2.3" {
		t.Errorf("Expected version 1.2.3, got %v", resp["version"])
	}
	if users, ok := resp["users"].(float64); !ok || users != 1 {
		t.Errorf("Expected 1 user, got %v", resp["users"])
	}
	if _, ok := resp["sync"].(map[string]interface{}); !ok {
		t.Errorf("Expected sync section in status, got %v", resp["sync"])
	}
}

func TestUserEndpoints(t *testing.T) {
	st := store.NewMemoryStore()
	fake := newFakePlex(t)
	fake.addFriend("101")
	router := newRouter(st, api.Config{Clients: fake.factory()})

	alice := seedUser(t, st, "alice", "101")
	bob := seedUser(t, st, "bob", "102")

	t.Run("List", func(t *testing.T) {
		w := doRequest(router, "GET", "/users", "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp struct {
			Users []models.User `json:"users"`
			Count int           `json:"count"`
		}
		decodeBody(t, w, &resp)
		if resp.Count != 2 {
			t.Errorf("Expected 2 users, got %d", resp.Count)
		}
	})

	t.Run("Get", func(t *testing.T) {
		w := doRequest(router, "GET", "/users/"+alice.ID, "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var got models.User
		decodeBody(t, w, &got)
		if got.Username != "alice" {
			t.Errorf("Expected username alice, got %q", got.Username)
		}

		if w := doRequest(router, "GET", "/users/does-not-exist", "", bootstrapKey); w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for unknown user, got %d", w.Code)
		}
	})

	t.Run("InvalidRemoteParam", func(t *testing.T) {
		w := doRequest(router, "DELETE", "/users/"+bob.ID+"?remote=sideways", "", bootstrapKey)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for bad remote parameter, got %d", w.Code)
		}
	})

	t.Run("DeleteLocalOnly", func(t *testing.T) {
		w := doRequest(router, "DELETE", "/users/"+bob.ID+"?remote=false", "", bootstrapKey)
		if w.Code != http.StatusNoContent {
			t.Fatalf("Expected status 204, got %d. Response: %s", w.Code, w.Body.String())
		}
		if len(fake.removedIDs()) != 0 {
			t.Errorf("Expected no plex removals for a local delete, got %v", fake.removedIDs())
		}
		if _, err := st.GetUser(bob.ID); err != store.ErrUserNotFound {
			t.Errorf("Expected local row gone, got err %v", err)
		}
	})

	t.Run("DeleteRemote", func(t *testing.T) {
		w := doRequest(router, "DELETE", "/users/"+alice.ID, "", bootstrapKey)
		if w.Code != http.StatusNoContent {
			t.Fatalf("Expected status 204, got %d. Response: %s", w.Code, w.Body.String())
		}
		removed := fake.removedIDs()
		if len(removed) != 1 || removed[0] != "101" {
			t.Errorf("Expected plex removal of 101, got %v", removed)
		}
		if w := doRequest(router, "GET", "/users/"+alice.ID, "", bootstrapKey); w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 after delete, got %d", w.Code)
		}
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		w := doRequest(router, "DELETE", "/users/does-not-exist", "", bootstrapKey)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})
}

// A remote delete with no stored connection settings must refuse
// rather than silently fall back to a local-only delete.
func TestDeleteUserUnconfigured(t *testing.T) {
	st := store.NewMemoryStore()
	router := newRouter(st, api.Config{})
	user := seedUser(t, st, "alice", "101")

	w := doRequest(router, "DELETE", "/users/"+user.ID, "", bootstrapKey)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d. Response: %s", w.Code, w.Body.String())
	}
	if _, err := st.GetUser(user.ID); err != nil {
		t.Errorf("Expected local row untouched, got err %v", err)
	}
}

func TestRolePermissions(t *testing.T) {
	st := store.NewMemoryStore()
	router := newRouter(st, api.Config{})

	viewer := &models.APIKey{Name: "viewer", Key: "usher_viewer_key", Role: models.RoleViewer}
	if err := st.CreateAPIKey(viewer); err != nil {
		t.Fatalf("Failed to create viewer key: %v", err)
	}
	operator := &models.APIKey{Name: "operator", Key: "usher_operator_key", Role: models.RoleOperator}
	if err := st.CreateAPIKey(operator); err != nil {
		t.Fatalf("Failed to create operator key: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"ViewerCanListUsers", "GET", "/users", viewer.Key, http.StatusOK},
		{"ViewerCanListSettings", "GET", "/settings", viewer.Key, http.StatusOK},
		{"ViewerCannotDeleteUser", "DELETE", "/users/someone", viewer.Key, http.StatusForbidden},
		{"ViewerCannotTriggerSync", "POST", "/sync", viewer.Key, http.StatusForbidden},
		{"ViewerCannotListKeys", "GET", "/apikeys", viewer.Key, http.StatusForbidden},
		{"OperatorCanListUsers", "GET", "/users", operator.Key, http.StatusOK},
		{"OperatorCannotListKeys", "GET", "/apikeys", operator.Key, http.StatusForbidden},
		{"AdminCanListKeys", "GET", "/apikeys", bootstrapKey, http.StatusOK},
		{"UnknownKeyRejected", "GET", "/users", "usher_not_a_real_key", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.method, tt.path, "", tt.key)
			if w.Code != tt.want {
				t.Errorf("%s %s: expected %d, got %d. Response: %s",
					tt.method, tt.path, tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestSettingsEndpoints(t *testing.T) {
	st := store.NewMemoryStore()
	router := newRouter(st, api.Config{})

	t.Run("PutInvalidURL", func(t *testing.T) {
		w := doRequest(router, "PUT", "/settings/server_url", `{"value":"not a url"}`, bootstrapKey)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d. Response: %s", w.Code, w.Body.String())
		}
	})

	t.Run("PutBadBody", func(t *testing.T) {
		w := doRequest(router, "PUT", "/settings/server_url", `{`, bootstrapKey)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("PutServerURL", func(t *testing.T) {
		w := doRequest(router, "PUT", "/settings/server_url", `{"value":"http://plex.local:32400"}`, bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d. Response: %s", w.Code, w.Body.String())
		}
		var got models.Setting
		decodeBody(t, w, &got)
		if got.Value != "http://plex.local:32400" {
			t.Errorf("Expected URL echoed back, got %q", got.Value)
		}
	})

	t.Run("PutSecretComesBackMasked", func(t *testing.T) {
		w := doRequest(router, "PUT", "/settings/server_api_key", `{"value":"usher-plex-token-123"}`, bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d. Response: %s", w.Code, w.Body.String())
		}
		var got models.Setting
		decodeBody(t, w, &got)
		if strings.Contains(got.Value, "token") {
			t.Errorf("Secret value leaked: %q", got.Value)
		}
		if !strings.Contains(got.Value, "*") {
			t.Errorf("Expected masked value, got %q", got.Value)
		}
	})

	t.Run("ListMasksSecrets", func(t *testing.T) {
		w := doRequest(router, "GET", "/settings", "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp struct {
			Settings []models.Setting `json:"settings"`
			Count    int              `json:"count"`
		}
		decodeBody(t, w, &resp)
		if resp.Count != 2 {
			t.Fatalf("Expected 2 settings, got %d", resp.Count)
		}
		for _, s := range resp.Settings {
			if s.Key == models.SettingServerAPIKey && strings.Contains(s.Value, "token") {
				t.Errorf("Secret value leaked in list: %q", s.Value)
			}
		}
	})

	t.Run("GetMasked", func(t *testing.T) {
		w := doRequest(router, "GET", "/settings/server_api_key", "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var got models.Setting
		decodeBody(t, w, &got)
		if strings.Contains(got.Value, "token") {
			t.Errorf("Secret value leaked: %q", got.Value)
		}
	})

	t.Run("GetUnknown", func(t *testing.T) {
		w := doRequest(router, "GET", "/settings/no_such_key", "", bootstrapKey)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})
}

// TestValidateSettings also proves /settings/validate is matched ahead
// of the /settings/{key} routes.
func TestValidateSettings(t *testing.T) {
	fake := newFakePlex(t)

	t.Run("Unconfigured", func(t *testing.T) {
		st := store.NewMemoryStore()
		router := newRouter(st, api.Config{})
		w := doRequest(router, "POST", "/settings/validate", "", bootstrapKey)
		if w.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d. Response: %s", w.Code, w.Body.String())
		}
	})

	t.Run("BodyOverride", func(t *testing.T) {
		st := store.NewMemoryStore()
		router := newRouter(st, api.Config{})
		body := fmt.Sprintf(`{"server_url":%q,"server_api_key":"secret"}`, fake.srv.URL)
		w := doRequest(router, "POST", "/settings/validate", body, bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d. Response: %s", w.Code, w.Body.String())
		}
		var resp map[string]interface{}
		decodeBody(t, w, &resp)
		if resp["reachable"] != true {
			t.Errorf("Expected reachable, got %v", resp)
		}
		if resp["token_valid"] != true {
			t.Errorf("Expected valid token, got %v", resp)
		}
		if resp["machine_identifier"] != "srv-abc123" {
			t.Errorf("Expected machine identifier, got %v", resp["machine_identifier"])
		}
	})

	t.Run("StoredSettings", func(t *testing.T) {
		st := store.NewMemoryStore()
		if err := st.SetSetting(models.SettingServerURL, fake.srv.URL); err != nil {
			t.Fatal(err)
		}
		if err := st.SetSetting(models.SettingServerAPIKey, "secret"); err != nil {
			t.Fatal(err)
		}
		router := newRouter(st, api.Config{})
		w := doRequest(router, "POST", "/settings/validate", "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d. Response: %s", w.Code, w.Body.String())
		}
		var resp map[string]interface{}
		decodeBody(t, w, &resp)
		if resp["reachable"] != true {
			t.Errorf("Expected reachable, got %v", resp)
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		dead := httptest.NewServer(http.NewServeMux())
		deadURL := dead.URL
		dead.Close()

		st := store.NewMemoryStore()
		router := newRouter(st, api.Config{})
		body := fmt.Sprintf(`{"server_url":%q,"server_api_key":"secret"}`, deadURL)
		w := doRequest(router, "POST", "/settings/validate", body, bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d. Response: %s", w.Code, w.Body.String())
		}
		var resp map[string]interface{}
		decodeBody(t, w, &resp)
		if resp["reachable"] != false {
			t.Errorf("Expected unreachable, got %v", resp)
		}
		if msg, _ := resp["error"].(string); msg == "" {
			t.Error("Expected an error message")
		}
	})
}

func TestLibraryEndpoints(t *testing.T) {
	st := store.NewMemoryStore()
	fake := newFakePlex(t)
	router := newRouter(st, api.Config{Clients: fake.factory()})

	t.Run("EmptyBeforeScan", func(t *testing.T) {
		w := doRequest(router, "GET", "/libraries", "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		decodeBody(t, w, &resp)
		if resp.Count != 0 {
			t.Errorf("Expected no libraries before first scan, got %d", resp.Count)
		}
	})

	t.Run("Scan", func(t *testing.T) {
		w := doRequest(router, "POST", "/libraries/scan", "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d. Response: %s", w.Code, w.Body.String())
		}
		var resp struct {
			Libraries []models.Library `json:"libraries"`
			Count     int              `json:"count"`
		}
		decodeBody(t, w, &resp)
		if resp.Count != 2 {
			t.Fatalf("Expected 2 libraries, got %d", resp.Count)
		}
		if resp.Libraries[0].Title != "Movies" || resp.Libraries[1].Title != "TV Shows" {
			t.Errorf("Unexpected titles: %+v", resp.Libraries)
		}
		if resp.Libraries[0].ScannedAt.IsZero() {
			t.Error("Expected scan timestamp to be set")
		}
	})

	t.Run("ListAfterScan", func(t *testing.T) {
		w := doRequest(router, "GET", "/libraries", "", bootstrapKey)
		var resp struct {
			Count int `json:"count"`
		}
		decodeBody(t, w, &resp)
		if resp.Count != 2 {
			t.Errorf("Expected 2 libraries, got %d", resp.Count)
		}
	})

	t.Run("ScanUnconfigured", func(t *testing.T) {
		bare := newRouter(store.NewMemoryStore(), api.Config{})
		w := doRequest(bare, "POST", "/libraries/scan", "", bootstrapKey)
		if w.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d. Response: %s", w.Code, w.Body.String())
		}
	})
}

func TestSyncLifecycle(t *testing.T) {
	st := store.NewMemoryStore()
	fake := newFakePlex(t)

	engine := usersync.NewEngine(usersync.Config{
		Workers: 2,
		Timeout: 5 * time.Second,
		Retry: retry.Config{
			MaxRetries:     1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			Multiplier:     2.0,
		},
	}, usersync.Deps{
		Store:   st,
		Clients: fake.factory(),
		Logger:  logging.NewLogger(logging.FATAL, false),
	})
	defer engine.Close(context.Background())

	router := newRouter(st, api.Config{Engine: engine, Clients: fake.factory()})

	w := doRequest(router, "POST", "/sync", "", bootstrapKey)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d. Response: %s", w.Code, w.Body.String())
	}
	var run models.SyncRun
	decodeBody(t, w, &run)
	if run.SequenceNumber != 1 {
		t.Errorf("Expected sequence 1, got %d", run.SequenceNumber)
	}
	if run.Status != models.SyncRunPending {
		t.Errorf("Expected pending run, got %s", run.Status)
	}

	// The run executes in the background; poll through the API
	waitFor(t, 5*time.Second, "run never completed", func() bool {
		w := doRequest(router, "GET", "/sync/runs/1", "", bootstrapKey)
		if w.Code != http.StatusOK {
			return false
		}
		var got models.SyncRun
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			return false
		}
		return got.Status == models.SyncRunCompleted
	})

	t.Run("GetByUUID", func(t *testing.T) {
		w := doRequest(router, "GET", "/sync/runs/"+run.ID, "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var got models.SyncRun
		decodeBody(t, w, &got)
		if got.Imported != 2 {
			t.Errorf("Expected 2 imported users, got %d", got.Imported)
		}
	})

	t.Run("Events", func(t *testing.T) {
		w := doRequest(router, "GET", "/sync/runs/1/events", "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d. Response: %s", w.Code, w.Body.String())
		}
		var resp struct {
			RunID  string             `json:"run_id"`
			Events []models.SyncEvent `json:"events"`
			Count  int                `json:"count"`
		}
		decodeBody(t, w, &resp)
		if resp.RunID != run.ID {
			t.Errorf("Expected run id %s, got %s", run.ID, resp.RunID)
		}
		if resp.Count < 2 {
			t.Fatalf("Expected at least 2 events, got %d", resp.Count)
		}
		if last := resp.Events[len(resp.Events)-1]; last.To != models.SyncRunCompleted {
			t.Errorf("Expected final transition to completed, got %s", last.To)
		}
	})

	t.Run("History", func(t *testing.T) {
		w := doRequest(router, "GET", "/sync/runs?limit=5", "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp struct {
			Runs  []models.SyncRun `json:"runs"`
			Count int              `json:"count"`
		}
		decodeBody(t, w, &resp)
		if resp.Count != 1 {
			t.Errorf("Expected 1 run in history, got %d", resp.Count)
		}
	})

	t.Run("BadLimit", func(t *testing.T) {
		w := doRequest(router, "GET", "/sync/runs?limit=many", "", bootstrapKey)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("CancelFinished", func(t *testing.T) {
		w := doRequest(router, "POST", "/sync/runs/1/cancel", "", bootstrapKey)
		if w.Code != http.StatusConflict {
			t.Errorf("Expected 409 cancelling a finished run, got %d. Response: %s", w.Code, w.Body.String())
		}
	})

	t.Run("UnknownRun", func(t *testing.T) {
		w := doRequest(router, "GET", "/sync/runs/999", "", bootstrapKey)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})

	t.Run("BadTrigger", func(t *testing.T) {
		w := doRequest(router, "POST", "/sync", `{"trigger":"cosmic"}`, bootstrapKey)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d. Response: %s", w.Code, w.Body.String())
		}
	})
}

func TestSyncWithoutEngine(t *testing.T) {
	st := store.NewMemoryStore()
	router := newRouter(st, api.Config{})

	if w := doRequest(router, "POST", "/sync", "", bootstrapKey); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
	if w := doRequest(router, "POST", "/sync/runs/1/cancel", "", bootstrapKey); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	st := store.NewMemoryStore()
	router := newRouter(st, api.Config{})

	w := doRequest(router, "POST", "/apikeys", `{"name":"ci","role":"viewer"}`, bootstrapKey)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Response: %s", w.Code, w.Body.String())
	}
	var created models.APIKey
	decodeBody(t, w, &created)
	if created.ID == "" {
		t.Error("Expected an id on the created key")
	}
	if !strings.HasPrefix(created.Key, auth.KeyPrefix) {
		t.Errorf("Expected key with %q prefix, got %q", auth.KeyPrefix, created.Key)
	}
	if created.Role != models.RoleViewer {
		t.Errorf("Expected viewer role, got %s", created.Role)
	}

	t.Run("FreshKeyAuthenticates", func(t *testing.T) {
		if w := doRequest(router, "GET", "/users", "", created.Key); w.Code != http.StatusOK {
			t.Errorf("Expected 200 with fresh key, got %d", w.Code)
		}
	})

	t.Run("ListHidesRawKey", func(t *testing.T) {
		w := doRequest(router, "GET", "/apikeys", "", bootstrapKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp struct {
			Keys  []models.APIKey `json:"keys"`
			Count int             `json:"count"`
		}
		decodeBody(t, w, &resp)
		if resp.Count != 1 {
			t.Fatalf("Expected 1 key, got %d", resp.Count)
		}
		if resp.Keys[0].Key != "" {
			t.Errorf("Raw key leaked in listing: %q", resp.Keys[0].Key)
		}
	})

	t.Run("Revoke", func(t *testing.T) {
		w := doRequest(router, "DELETE", "/apikeys/"+created.ID, "", bootstrapKey)
		if w.Code != http.StatusNoContent {
			t.Fatalf("Expected status 204, got %d", w.Code)
		}
		if w := doRequest(router, "GET", "/users", "", created.Key); w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 with revoked key, got %d", w.Code)
		}
		if w := doRequest(router, "DELETE", "/apikeys/"+created.ID, "", bootstrapKey); w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 revoking twice, got %d", w.Code)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		if w := doRequest(router, "POST", "/apikeys", `{"role":"admin"}`, bootstrapKey); w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for missing name, got %d", w.Code)
		}
		if w := doRequest(router, "POST", "/apikeys", `{"name":"x","role":"emperor"}`, bootstrapKey); w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for unknown role, got %d", w.Code)
		}
	})
}
