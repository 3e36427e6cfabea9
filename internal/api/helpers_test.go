package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kdimtricp/listenlog/internal/database"
	"github.com/kdimtricp/listenlog/internal/model"
	"github.com/kdimtricp/listenlog/internal/observe"
	"github.com/kdimtricp/listenlog/internal/session"
	"github.com/kdimtricp/listenlog/internal/storage"
	"go.opentelemetry.io/otel/metric/noop"
)

type TestServer struct {
	Server      *httptest.Server
	ModelServer *httptest.Server
	App         *App
	ExportDir   string
}

func setupTestServer(t *testing.T) *TestServer {
	t.Helper()
	tempDir := t.TempDir()

	modelServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/commands/metadata.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"wordLabels":["up","down","left"]}`))
	}))
	t.Cleanup(modelServer.Close)

	db, err := database.NewDB(database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(tempDir, "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	exportDir := filepath.Join(tempDir, "exports")
	localStorage, err := storage.NewLocalStorage(exportDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	repo := database.NewModelRepository(db)
	clock := func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.Local) }
	manager := session.NewManager(
		session.Options{RecentSize: 10, TimestampLayout: "3:04:05 PM", Now: clock},
		model.NewLoader(5*time.Second),
		repo,
		metrics,
	)

	app := &App{
		Sessions:      manager,
		Metrics:       metrics,
		Catalog:       repo,
		Storage:       localStorage,
		DB:            db,
		ListenOptions: model.DefaultListenOptions(),
		RecentModels:  5,
	}

	server := httptest.NewServer(NewRouter(app))
	t.Cleanup(server.Close)

	return &TestServer{
		Server:      server,
		ModelServer: modelServer,
		App:         app,
		ExportDir:   exportDir,
	}
}

func (ts *TestServer) createSession(t *testing.T) string {
	t.Helper()
	resp, err := http.Post(ts.Server.URL+"/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode session: %v", err)
	}
	return body["id"]
}

func (ts *TestServer) loadModel(t *testing.T, id, modelURL string) (*http.Response, loadResponse) {
	t.Helper()
	resp, err := http.PostForm(ts.Server.URL+"/sessions/"+id+"/model", url.Values{"url": {modelURL}})
	if err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}
	defer resp.Body.Close()

	var body loadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode load response: %v", err)
	}
	return resp, body
}

func (ts *TestServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(ts.Server.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	return resp, string(body)
}

func (ts *TestServer) do(t *testing.T, method, path string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, ts.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	return resp, string(body)
}

func (ts *TestServer) wsURL(id string) string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/sessions/" + id + "/stream"
}
