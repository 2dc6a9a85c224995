package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"condor-raat/api"
	"condor-raat/config"
	"condor-raat/core/auth"
	"condor-raat/core/raat"
	"condor-raat/core/raat/filestore"
	"condor-raat/core/rbac"
	"condor-raat/core/store"
	"condor-raat/core/utils"
	"condor-raat/core/workers"
)

type apiEnv struct {
	ts      *httptest.Server
	users   store.UsersStore
	workers store.WorkersStore
	cfg     *config.AppConfig
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	logger := utils.NewLogger()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
		Pepper:   "test-pepper",
		Storage:  config.StorageConfig{Driver: "local", Dir: filepath.Join(t.TempDir(), "files")},
	}
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	if err := store.ApplyMigrations(ctx, db, cfg.DBDriver, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)
	incidents := store.NewIncidentsStore(db)
	workersStore := store.NewWorkersStore(db)
	policy, err := rbac.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	files, err := filestore.New(ctx, cfg.Storage)
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	workersSvc := workers.NewService(workersStore)
	raatSvc := raat.NewService(cfg.RAAT, incidents, workersSvc, files, audits, logger)

	server := api.NewServer(api.ServerDeps{
		Cfg:      cfg,
		DB:       db,
		Users:    users,
		Sessions: auth.NewSessionManager(sessions, cfg, logger),
		Policy:   policy,
		Audits:   audits,
		RAAT:     raatSvc,
		Workers:  workersSvc,
		Logger:   logger,
	})
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return &apiEnv{ts: ts, users: users, workers: workersStore, cfg: cfg}
}

func (e *apiEnv) seedUser(t *testing.T, tenantID int64, username, password string, roles ...string) {
	t.Helper()
	ph := auth.MustHashPassword(password, e.cfg.Pepper)
	u := &store.User{
		TenantID:     tenantID,
		Username:     username,
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
		Roles:        roles,
		Active:       true,
	}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func (e *apiEnv) seedWorker(t *testing.T, tenantID int64, rut, name string) int64 {
	t.Helper()
	w := &store.Worker{
		TenantID:     tenantID,
		RUT:          rut,
		FullName:     name,
		Position:     "operator",
		HireDate:     time.Now().UTC().AddDate(-1, 0, 0),
		ContractType: "indefinido",
		Insurer:      "ACHS",
		Active:       true,
	}
	if err := e.workers.Create(context.Background(), w); err != nil {
		t.Fatalf("seed worker: %v", err)
	}
	return w.ID
}

func (e *apiEnv) login(t *testing.T, username, password string) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{Jar: jar}
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := client.Post(e.ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	return client
}

func doJSON(t *testing.T, client *http.Client, method, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func createPayload(workerID int64) map[string]any {
	return map[string]any{
		"event_date":  time.Now().UTC().Format("2006-01-02"),
		"event_time":  "10:30",
		"location":    "bodega central",
		"kind":        "workplace_accident",
		"worker_id":   workerID,
		"description": "caida desde escalera",
	}
}

func TestIncidentLifecycleOverAPI(t *testing.T) {
	env := newAPIEnv(t)
	env.seedUser(t, 1, "inspector", "clave123", "inspector")
	workerID := env.seedWorker(t, 1, "11.111.111-1", "Ana Rojas")
	client := env.login(t, "inspector", "clave123")

	resp, body := doJSON(t, client, http.MethodPost, env.ts.URL+"/api/raat/incidents", createPayload(workerID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d body=%v", resp.StatusCode, body)
	}
	item := body["item"].(map[string]any)
	if item["accident_number"].(float64) != 1 {
		t.Fatalf("accident_number = %v", item["accident_number"])
	}
	incidentID := int64(item["id"].(float64))
	base := fmt.Sprintf("%s/api/raat/incidents/%d", env.ts.URL, incidentID)

	resp, body = doJSON(t, client, http.MethodGet, env.ts.URL+"/api/raat/incidents", nil)
	if resp.StatusCode != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("list status = %d body=%v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, client, http.MethodPut, base, map[string]any{"description": "golpe con estanteria"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, client, http.MethodPost, base+"/notification", map[string]any{"reference": "DIAT-2026-001"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notification status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, client, http.MethodPost, base+"/notification", map[string]any{"reference": "DIAT-2026-002"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("conflicting reference status = %d, want 409", resp.StatusCode)
	}

	resp, _ = doJSON(t, client, http.MethodPost, base+"/close", map[string]any{"status": "closed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, client, http.MethodPut, base, map[string]any{"description": "tarde"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("update after close status = %d, want 409", resp.StatusCode)
	}
	resp, _ = doJSON(t, client, http.MethodPost, base+"/close", map[string]any{"status": "consolidated"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second close status = %d, want 409", resp.StatusCode)
	}

	resp, body = doJSON(t, client, http.MethodGet, env.ts.URL+"/api/raat/statistics", nil)
	if resp.StatusCode != http.StatusOK || body["total"].(float64) != 1 {
		t.Fatalf("statistics status = %d body=%v", resp.StatusCode, body)
	}
}

func TestValidationAndNotFoundStatuses(t *testing.T) {
	env := newAPIEnv(t)
	env.seedUser(t, 1, "inspector", "clave123", "inspector")
	workerID := env.seedWorker(t, 1, "11.111.111-1", "Ana Rojas")
	client := env.login(t, "inspector", "clave123")

	payload := createPayload(workerID)
	payload["description"] = ""
	resp, _ := doJSON(t, client, http.MethodPost, env.ts.URL+"/api/raat/incidents", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing description status = %d, want 400", resp.StatusCode)
	}

	payload = createPayload(9999)
	resp, _ = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/raat/incidents", payload)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown worker status = %d, want 422", resp.StatusCode)
	}

	resp, _ = doJSON(t, client, http.MethodGet, env.ts.URL+"/api/raat/incidents/777", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing incident status = %d, want 404", resp.StatusCode)
	}
}

func TestAttachmentUploadAndAdminOnlyRemoval(t *testing.T) {
	env := newAPIEnv(t)
	env.seedUser(t, 1, "inspector", "clave123", "inspector")
	env.seedUser(t, 1, "boss", "clave456", "admin")
	workerID := env.seedWorker(t, 1, "11.111.111-1", "Ana Rojas")
	inspector := env.login(t, "inspector", "clave123")

	resp, body := doJSON(t, inspector, http.MethodPost, env.ts.URL+"/api/raat/incidents", createPayload(workerID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	incidentID := int64(body["item"].(map[string]any)["id"].(float64))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "informe.pdf")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write([]byte("pdf-bytes"))
	mw.WriteField("description", "informe medico")
	mw.Close()
	uploadURL := fmt.Sprintf("%s/api/raat/incidents/%d/attachments", env.ts.URL, incidentID)
	req, _ := http.NewRequest(http.MethodPost, uploadURL, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	upResp, err := inspector.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	raw, _ := io.ReadAll(upResp.Body)
	upResp.Body.Close()
	if upResp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d body=%s", upResp.StatusCode, raw)
	}
	var upBody map[string]any
	_ = json.Unmarshal(raw, &upBody)
	attID := int64(upBody["item"].(map[string]any)["id"].(float64))
	attURL := fmt.Sprintf("%s/api/raat/attachments/%d", env.ts.URL, attID)

	dlResp, err := inspector.Get(attURL + "/download")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	content, _ := io.ReadAll(dlResp.Body)
	dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK || string(content) != "pdf-bytes" {
		t.Fatalf("download status = %d content=%q", dlResp.StatusCode, content)
	}

	// Removal is admin-only; the inspector role stops at raat.manage.
	resp, _ = doJSON(t, inspector, http.MethodDelete, attURL, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("inspector delete status = %d, want 403", resp.StatusCode)
	}
	admin := env.login(t, "boss", "clave456")
	resp, _ = doJSON(t, admin, http.MethodDelete, attURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, admin, http.MethodDelete, attURL, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestRouteGuards(t *testing.T) {
	env := newAPIEnv(t)
	env.seedUser(t, 1, "viewer", "clave123", "viewer")
	workerID := env.seedWorker(t, 1, "11.111.111-1", "Ana Rojas")

	anon := &http.Client{}
	resp, _ := doJSON(t, anon, http.MethodGet, env.ts.URL+"/api/raat/incidents", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous list status = %d, want 401", resp.StatusCode)
	}

	viewer := env.login(t, "viewer", "clave123")
	resp, _ = doJSON(t, viewer, http.MethodGet, env.ts.URL+"/api/raat/incidents", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("viewer list status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, viewer, http.MethodPost, env.ts.URL+"/api/raat/incidents", createPayload(workerID))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer create status = %d, want 403", resp.StatusCode)
	}
	resp, _ = doJSON(t, viewer, http.MethodGet, env.ts.URL+"/api/workers", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("viewer workers status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, viewer, http.MethodGet, env.ts.URL+"/api/audit", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer audit status = %d, want 403", resp.StatusCode)
	}
}

func TestHealthAndAuthEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.seedUser(t, 1, "boss", "clave456", "admin")

	resp, body := doJSON(t, &http.Client{}, http.MethodGet, env.ts.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, &http.Client{}, http.MethodPost, env.ts.URL+"/api/auth/login",
		map[string]string{"username": "boss", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}

	client := env.login(t, "boss", "clave456")
	resp, body = doJSON(t, client, http.MethodGet, env.ts.URL+"/api/auth/me", nil)
	if resp.StatusCode != http.StatusOK || body["username"] != "boss" {
		t.Fatalf("me = %d %v", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/auth/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, client, http.MethodGet, env.ts.URL+"/api/auth/me", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d, want 401", resp.StatusCode)
	}
}
