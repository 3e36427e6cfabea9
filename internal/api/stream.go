package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/kdimtricp/listenlog/internal/session"
)

type scoresMessage struct {
	Scores []float64 `json:"scores"`
}

type tickMessage struct {
	Type string `json:"type"`
	session.Tick
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StreamHandler upgrades to a websocket and handles one score vector per
// message, in order. Each message gets either a tick or an error reply;
// a bad tick never closes the stream.
func (app *App) StreamHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", sess.ID, "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	metricsCtx := context.WithoutCancel(ctx)
	app.Metrics.ActiveStreams.Add(metricsCtx, 1)
	defer app.Metrics.ActiveStreams.Add(metricsCtx, -1)

	slog.Debug("stream opened", "session_id", sess.ID)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				slog.Debug("stream closed", "session_id", sess.ID)
			default:
				if !errors.Is(err, context.Canceled) {
					slog.Debug("stream read ended", "session_id", sess.ID, "err", err)
				}
			}
			return
		}

		reply := app.handleStreamMessage(ctx, sess, typ, data)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			slog.Debug("stream write failed", "session_id", sess.ID, "err", err)
			return
		}
	}
}

func (app *App) handleStreamMessage(ctx context.Context, sess *session.Session, typ websocket.MessageType, data []byte) any {
	if typ != websocket.MessageText {
		return errorMessage{Type: "error", Message: "expected a text message"}
	}

	var msg scoresMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorMessage{Type: "error", Message: "invalid message: " + err.Error()}
	}

	tick, err := app.Sessions.Observe(ctx, sess, msg.Scores)
	if err != nil {
		return errorMessage{Type: "error", Message: err.Error()}
	}
	return tickMessage{Type: "tick", Tick: tick}
}
