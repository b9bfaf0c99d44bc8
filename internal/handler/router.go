/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file defines the main Router: global middleware (CORS, request IDs, logging,
panic recovery), identity extraction for the API and the per-IP rate limits on
posting messages and opening streams.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"inboxchat/internal/pkg/auth/jwt"
	"inboxchat/internal/pkg/limiter"
	"inboxchat/internal/pkg/logx"
	"inboxchat/internal/pkg/resp"
)

// Router builds the routing table. ctx bounds the background work of the rate limiters.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	cfg := deps.Config

	messageLimiter := limiter.NewIPRateLimiter(ctx, "message", rate.Limit(cfg.MessageRate), cfg.MessageBurst)
	streamLimiter := limiter.NewIPRateLimiter(ctx, "stream", rate.Limit(cfg.StreamRate), cfg.StreamBurst)

	allowedOrigins := make(map[string]struct{})
	for _, origin := range cfg.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := cfg.AllowedOrigins
	if cfg.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r := chi.NewRouter()

	r.Use(c.Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"status": "ok",
			"online": len(deps.Hub.Online()),
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(cfg.JWTSecret))

		api.Post("/auth", HandleAuth(deps))
		api.Post("/auth/logout", HandleLogout(deps))

		api.Get("/friends", HandleFriends(deps))

		api.Get("/chats", HandleGetMessages(deps))
		api.With(messageLimiter.Middleware).Post("/chats", HandlePostMessage(deps))

		api.With(streamLimiter.Middleware).Get("/stream", HandleStream(deps))
		api.With(streamLimiter.Middleware).Get("/stream/ws", HandleStreamWS(deps, wsUpgrader))

		api.Route("/files", func(files chi.Router) {
			files.Post("/presign-upload", HandlePresignUploadURL(deps))
			files.Get("/presign-download", HandlePresignDownloadURL(deps))
		})
	})

	return r
}
