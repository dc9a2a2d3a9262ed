package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"quiz-battle-service/internal/app"
)

type RouterOptions struct {
	JWTSecret      string
	AllowedOrigins []string
}

// NewRouter wires the REST and websocket surfaces behind CORS and identity middleware.
func NewRouter(service *app.BattleService, logger zerolog.Logger, opts RouterOptions) http.Handler {
	return newRouter(NewBattleHandler(service, logger), NewWSHandler(service, logger), logger, opts)
}

func newRouter(battles *BattleHandler, ws *WSHandler, logger zerolog.Logger, opts RouterOptions) http.Handler {
	router := mux.NewRouter()
	router.Use(RequestID(logger))

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(IdentityMiddleware(opts.JWTSecret))
	api.HandleFunc("/battles", battles.Challenge).Methods(http.MethodPost)
	api.HandleFunc("/battles/{id}", battles.Get).Methods(http.MethodGet)
	api.HandleFunc("/battles/{id}/accept", battles.Accept).Methods(http.MethodPost)
	api.HandleFunc("/battles/{id}/decline", battles.Decline).Methods(http.MethodPost)
	api.HandleFunc("/battles/{id}/complete", battles.Complete).Methods(http.MethodPost)
	api.HandleFunc("/challenges/pending", battles.PendingChallenges).Methods(http.MethodGet)
	api.HandleFunc("/inbox", battles.Inbox).Methods(http.MethodGet)
	api.HandleFunc("/inbox/{id}/read", battles.MarkRead).Methods(http.MethodPost)

	wsRouter := router.PathPrefix("/ws").Subrouter()
	wsRouter.Use(IdentityMiddleware(opts.JWTSecret))
	wsRouter.HandleFunc("/battles/{id}", ws.ServeWS).Methods(http.MethodGet)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "X-User-ID", "X-User-Name", "X-User-Avatar"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return corsMiddleware.Handler(router)
}

const requestIDKey contextKey = "request_id"

// RequestID tags each request with an id and logs its start and completion. Websocket
// upgrades are logged when the connection closes.
func RequestID(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			reqLogger := logger.With().Str("request_id", requestID).Logger()
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			ctx = reqLogger.WithContext(ctx)

			reqLogger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("request started")

			next.ServeHTTP(w, r.WithContext(ctx))

			duration := time.Since(start)
			reqLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int64("duration_ms", duration.Milliseconds()).
				Msg("request completed")
		})
	}
}
