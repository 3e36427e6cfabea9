package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kdimtricp/listenlog/internal/health"
	"github.com/kdimtricp/listenlog/internal/observe"
	"github.com/kdimtricp/listenlog/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(app.Metrics))

	app.healthHandler().Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", app.HomeHandler)
	r.Get("/ping", PingHandler)
	r.Get("/models", app.ListModelsHandler)

	r.Post("/sessions", app.CreateSessionHandler)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Use(app.SessionCtx)

		r.Get("/", app.SessionStateHandler)
		r.Delete("/", app.DeleteSessionHandler)
		r.Post("/model", app.LoadModelHandler)
		r.Post("/listen", app.StartHandler)
		r.Post("/stop", app.StopHandler)
		r.Get("/status", app.StatusPartialHandler)
		r.Get("/log", app.LogPartialHandler)
		r.Delete("/log", app.ClearLogHandler)
		r.Get("/log.csv", app.ExportHandler)
		r.Get("/stream", app.StreamHandler)
	})

	fileServer := http.FileServer(http.FS(web.Static()))
	r.Handle("/static/*", http.StripPrefix("/static", fileServer))

	return r
}

func (app *App) healthHandler() *health.Handler {
	if app.DB == nil {
		return health.New()
	}
	return health.New(health.Checker{Name: "database", Check: app.DB.Ping})
}
