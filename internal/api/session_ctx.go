package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/listenlog/internal/session"
)

type sessionKey struct{}

// SessionCtx resolves the {id} URL parameter to a live session or answers 404.
func (app *App) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := app.Sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}
