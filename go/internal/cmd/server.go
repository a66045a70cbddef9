package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/focusflow/go/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *config.Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	// Register services
	registerServices(mux, services)

	// Add health check and metrics endpoints
	mux.Handle("GET /health", services.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(services.Registry, promhttp.HandlerOpts{}))

	// Resolve the caller, then wrap with CORS
	handler := c.Handler(services.Identity.Middleware(mux))

	// Setup HTTP/2 server
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	// REST
	services.Sessions.RegisterRoutes(mux)
	services.Users.RegisterRoutes(mux)
	services.Activity.RegisterRoutes(mux)
	services.Tips.RegisterRoutes(mux)
	services.Identity.RegisterRoutes(mux)

	// Connect RPC
	mux.Handle(services.SessionsRPC.Handler())
	mux.Handle(services.UsersRPC.Handler())

	// WebSocket
	services.WebSocket.RegisterRoutes(mux)
}
