package api

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/listenlog/internal/database"
	"github.com/kdimtricp/listenlog/internal/detection"
	"github.com/kdimtricp/listenlog/internal/model"
	"github.com/kdimtricp/listenlog/internal/models"
	"github.com/kdimtricp/listenlog/internal/observe"
	"github.com/kdimtricp/listenlog/internal/session"
	"github.com/kdimtricp/listenlog/internal/storage"
	"github.com/kdimtricp/listenlog/web"
)

var templates = template.Must(template.ParseFS(web.Templates, "templates/*.html"))

type ModelCatalog interface {
	ListRecent(ctx context.Context, limit int) ([]models.Model, error)
}

type App struct {
	Sessions *session.Manager
	Metrics  *observe.Metrics

	// Catalog, Storage and DB are optional. Without Storage exports are
	// only downloaded, never archived.
	Catalog ModelCatalog
	Storage storage.Storage
	DB      *database.DB

	ListenOptions   model.ListenOptions
	DefaultModelURL string
	RecentModels    int
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	sess := app.Sessions.Create(r.Context())

	opts, err := json.Marshal(app.ListenOptions)
	if err != nil {
		http.Error(w, "Error encoding listen options", http.StatusInternalServerError)
		return
	}

	data := struct {
		Title           string
		SessionID       string
		DefaultModelURL string
		ListenOptions   string
		RecentModels    []models.Model
		Status          session.Status
		Recent          []detection.Record
	}{
		Title:           "Listening with AI",
		SessionID:       sess.ID,
		DefaultModelURL: app.DefaultModelURL,
		ListenOptions:   string(opts),
		RecentModels:    app.recentModels(r.Context()),
		Status:          sess.Status(),
		Recent:          sess.Recent(),
	}

	if err := templates.ExecuteTemplate(w, "base", data); err != nil {
		slog.Error("failed to render page", "err", err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}

func (app *App) recentModels(ctx context.Context) []models.Model {
	if app.Catalog == nil || app.RecentModels <= 0 {
		return nil
	}
	list, err := app.Catalog.ListRecent(ctx, app.RecentModels)
	if err != nil {
		slog.Warn("failed to list recent models", "err", err)
		return nil
	}
	return list
}

func (app *App) ListModelsHandler(w http.ResponseWriter, r *http.Request) {
	list := app.recentModels(r.Context())
	if list == nil {
		list = []models.Model{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (app *App) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := app.Sessions.Create(r.Context())
	writeJSON(w, http.StatusCreated, map[string]string{"id": sess.ID})
}

func (app *App) SessionStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()).State())
}

func (app *App) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	app.Sessions.Remove(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

type loadResponse struct {
	State         session.State       `json:"state"`
	Model         *model.Info         `json:"model,omitempty"`
	ListenOptions model.ListenOptions `json:"listenOptions"`
}

func (app *App) LoadModelHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	info, err := app.Sessions.LoadModel(r.Context(), sess, r.FormValue("url"))
	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, loadResponse{
		State:         sess.State(),
		Model:         info,
		ListenOptions: app.ListenOptions,
	})
}

func (app *App) StartHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := sess.Start(); err != nil {
		writeJSON(w, http.StatusConflict, sess.State())
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (app *App) StopHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.Stop()
	writeJSON(w, http.StatusOK, sess.State())
}

func (app *App) StatusPartialHandler(w http.ResponseWriter, r *http.Request) {
	app.renderPartial(w, "status", sessionFrom(r.Context()).Status())
}

func (app *App) LogPartialHandler(w http.ResponseWriter, r *http.Request) {
	app.renderPartial(w, "log", sessionFrom(r.Context()).Recent())
}

func (app *App) ClearLogHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.ClearLog()

	w.Header().Set("HX-Trigger", "logCleared")
	app.renderPartial(w, "log", sess.Recent())
}

// ExportHandler downloads the whole log as CSV. An empty log yields 204.
func (app *App) ExportHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	csv, ok := sess.Export()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	filename := sess.ExportFilename()

	if app.Storage != nil {
		name, err := app.Storage.SaveFile(strings.NewReader(csv), storage.FileInfo{
			Filename:    filename,
			ContentType: "text/csv",
			Size:        int64(len(csv)),
		})
		log := observe.Logger(r.Context())
		if err != nil {
			log.Warn("failed to archive export", "session_id", sess.ID, "err", err)
		} else {
			log.Info("archived export", "session_id", sess.ID, "file", name)
		}
	}
	app.Metrics.LogExports.Add(r.Context(), 1)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write([]byte(csv))
}

func (app *App) renderPartial(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("failed to render partial", "template", name, "err", err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}
