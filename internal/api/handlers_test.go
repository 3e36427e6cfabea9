package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/kdimtricp/listenlog/internal/models"
	"github.com/kdimtricp/listenlog/internal/session"
)

func TestPingHandler(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.get(t, "/ping")
	if resp.StatusCode != http.StatusOK || body != "pong" {
		t.Errorf("Expected 200 pong, got %d %q", resp.StatusCode, body)
	}
}

func TestHomeHandler(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "No detections yet...") {
		t.Error("Expected empty log placeholder on page")
	}
	if !strings.Contains(body, `data-session="`) {
		t.Error("Expected session ID on page")
	}
	if ts.App.Sessions.Len() != 1 {
		t.Errorf("Expected page load to create a session, have %d", ts.App.Sessions.Len())
	}
}

func TestStaticAssets(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.get(t, "/static/app.js")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "speechCommands.create") {
		t.Error("Unexpected app.js content")
	}
}

func TestUnknownSession(t *testing.T) {
	ts := setupTestServer(t)

	paths := []string{"/sessions/nope/", "/sessions/nope/log", "/sessions/nope/log.csv", "/sessions/nope/status"}
	for _, p := range paths {
		resp, _ := ts.get(t, p)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", p, resp.StatusCode)
		}
	}
}

func TestLoadModelHandler(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("Success", func(t *testing.T) {
		id := ts.createSession(t)
		resp, body := ts.loadModel(t, id, ts.ModelServer.URL+"/commands")

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}
		if body.Model == nil || body.Model.ModelURL != ts.ModelServer.URL+"/commands/model.json" {
			t.Errorf("Unexpected model info %+v", body.Model)
		}
		if !body.State.ModelLoaded || !body.State.Listening {
			t.Errorf("Expected loaded and listening, got %+v", body.State)
		}
		if body.ListenOptions.ProbabilityThreshold != 0.5 {
			t.Errorf("Unexpected listen options %+v", body.ListenOptions)
		}

		_, listBody := ts.get(t, "/models")
		var list []models.Model
		if err := json.Unmarshal([]byte(listBody), &list); err != nil {
			t.Fatalf("Failed to decode models: %v", err)
		}
		if len(list) != 1 || list[0].BaseURL != ts.ModelServer.URL+"/commands/" {
			t.Errorf("Unexpected catalog %+v", list)
		}
	})

	t.Run("Empty URL", func(t *testing.T) {
		id := ts.createSession(t)
		resp, body := ts.loadModel(t, id, "")

		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("Expected status 422, got %d", resp.StatusCode)
		}
		if body.State.Status.Kind != session.StatusError || body.State.Status.Message != "Please paste your model URL" {
			t.Errorf("Unexpected status %+v", body.State.Status)
		}
	})

	t.Run("Bad model", func(t *testing.T) {
		id := ts.createSession(t)
		resp, body := ts.loadModel(t, id, ts.ModelServer.URL+"/missing")

		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("Expected status 422, got %d", resp.StatusCode)
		}
		if !strings.HasPrefix(body.State.Status.Message, "Error loading model: ") {
			t.Errorf("Unexpected status %+v", body.State.Status)
		}

		_, partial := ts.get(t, "/sessions/"+id+"/status")
		if !strings.Contains(partial, `class="status error"`) {
			t.Errorf("Unexpected status partial %q", partial)
		}
	})
}

func TestStartStopHandlers(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.createSession(t)

	resp, _ := ts.do(t, http.MethodPost, "/sessions/"+id+"/listen")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 before model load, got %d", resp.StatusCode)
	}

	ts.loadModel(t, id, ts.ModelServer.URL+"/commands")

	resp, body := ts.do(t, http.MethodPost, "/sessions/"+id+"/stop")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var state session.State
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if state.Listening || state.Status.Message != "Stopped listening" {
		t.Errorf("Unexpected state after stop %+v", state)
	}

	resp, _ = ts.do(t, http.MethodPost, "/sessions/"+id+"/listen")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 on restart, got %d", resp.StatusCode)
	}
}

func TestExportAndClear(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.createSession(t)
	ts.loadModel(t, id, ts.ModelServer.URL+"/commands")

	resp, _ := ts.get(t, "/sessions/"+id+"/log.csv")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204 for empty log, got %d", resp.StatusCode)
	}

	sess, err := ts.App.Sessions.Get(id)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if _, err := sess.Observe([]float64{0.1, 0.7, 0.2}); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	resp, body := ts.get(t, "/sessions/"+id+"/log.csv")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="listening-log-2026-10-19.csv"` {
		t.Errorf("Unexpected Content-Disposition %q", got)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
		t.Errorf("Unexpected Content-Type %q", resp.Header.Get("Content-Type"))
	}
	if body != "Timestamp,Label,Confidence\n9:30:00 AM,down,70.0" {
		t.Errorf("Unexpected CSV %q", body)
	}

	entries, err := os.ReadDir(ts.ExportDir)
	if err != nil {
		t.Fatalf("Failed to read export dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 archived export, got %d", len(entries))
	}

	_, partial := ts.get(t, "/sessions/"+id+"/log")
	if !strings.Contains(partial, "9:30:00 AM — down (70.0%)") {
		t.Errorf("Unexpected log partial %q", partial)
	}

	resp, partial = ts.do(t, http.MethodDelete, "/sessions/"+id+"/log")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("HX-Trigger") != "logCleared" {
		t.Errorf("Expected HX-Trigger logCleared, got %q", resp.Header.Get("HX-Trigger"))
	}
	if !strings.Contains(partial, "No detections yet...") {
		t.Errorf("Unexpected partial after clear %q", partial)
	}

	resp, _ = ts.get(t, "/sessions/"+id+"/log.csv")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204 after clear, got %d", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.createSession(t)

	resp, _ := ts.do(t, http.MethodDelete, "/sessions/"+id+"/")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	resp, _ = ts.get(t, "/sessions/"+id+"/")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	for _, p := range []string{"/healthz", "/readyz"} {
		resp, body := ts.get(t, p)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d (%s)", p, resp.StatusCode, body)
		}
	}
}
