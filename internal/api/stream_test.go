package api

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type streamReply struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	Label          string `json:"label"`
	Confidence     float64
	ConfidenceText string `json:"confidenceText"`
	Color          string `json:"color"`
	Recent         []struct {
		Timestamp  string `json:"timestamp"`
		Label      string `json:"label"`
		Confidence string `json:"confidence"`
	} `json:"recent"`
	HasContent bool `json:"hasContent"`
}

func dialStream(t *testing.T, ts *TestServer, id string) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, ts.wsURL(id), nil)
	if err != nil {
		t.Fatalf("Failed to dial stream: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn, ctx
}

func exchange(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) streamReply {
	t.Helper()
	if err := wsjson.Write(ctx, conn, v); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	var reply streamReply
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	return reply
}

func TestStreamHandler(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.createSession(t)
	ts.loadModel(t, id, ts.ModelServer.URL+"/commands")

	conn, ctx := dialStream(t, ts, id)

	reply := exchange(t, ctx, conn, map[string]any{"scores": []float64{0.1, 0.7, 0.2}})
	if reply.Type != "tick" {
		t.Fatalf("Expected tick, got %+v", reply)
	}
	if reply.Label != "down" || reply.ConfidenceText != "70.0% confidence" {
		t.Errorf("Unexpected tick %+v", reply)
	}
	if reply.Color != "rgb(236, 210, 238)" {
		t.Errorf("Unexpected color %s", reply.Color)
	}
	if !reply.HasContent || len(reply.Recent) != 1 || reply.Recent[0].Confidence != "70.0" {
		t.Errorf("Unexpected recent view %+v", reply.Recent)
	}

	reply = exchange(t, ctx, conn, map[string]any{"scores": []float64{0.5}})
	if reply.Type != "error" || reply.Message == "" {
		t.Errorf("Expected error reply for mismatched scores, got %+v", reply)
	}

	reply = exchange(t, ctx, conn, map[string]any{"scores": []float64{0.8, 0.1, 0.1}})
	if reply.Type != "tick" || reply.Label != "up" {
		t.Errorf("Expected stream to survive a bad tick, got %+v", reply)
	}
	if len(reply.Recent) != 2 || reply.Recent[0].Label != "up" {
		t.Errorf("Expected newest first, got %+v", reply.Recent)
	}
}

func TestStreamHandler_NotListening(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.createSession(t)

	conn, ctx := dialStream(t, ts, id)

	reply := exchange(t, ctx, conn, map[string]any{"scores": []float64{1}})
	if reply.Type != "error" {
		t.Errorf("Expected error before model load, got %+v", reply)
	}
}

func TestStreamHandler_InvalidJSON(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.createSession(t)
	ts.loadModel(t, id, ts.ModelServer.URL+"/commands")

	conn, ctx := dialStream(t, ts, id)

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	var reply streamReply
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if reply.Type != "error" {
		t.Errorf("Expected error reply, got %+v", reply)
	}
}
