package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusflow/go/internal/activity"
	"github.com/mcdev12/focusflow/go/internal/config"
	"github.com/mcdev12/focusflow/go/internal/health"
	"github.com/mcdev12/focusflow/go/internal/hub"
	"github.com/mcdev12/focusflow/go/internal/identity"
	"github.com/mcdev12/focusflow/go/internal/natsconn"
	"github.com/mcdev12/focusflow/go/internal/sessions"
	"github.com/mcdev12/focusflow/go/internal/tips"
	"github.com/mcdev12/focusflow/go/internal/users"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// Services holds everything the HTTP server routes to
type Services struct {
	Identity    *identity.Provider
	Registry    *prometheus.Registry
	Sessions    *sessions.Handler
	SessionsRPC *sessions.Service
	Users       *users.Handler
	UsersRPC    *users.Service
	Activity    *activity.Handler
	Tips        *tips.Handler
	WebSocket   *hub.WebSocketHandler
	Health      *health.Checker

	closers []func()
}

// Close stops background components in reverse order of start
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupServices(ctx context.Context, cfg *config.Config, stores *Stores) (*Services, error) {
	// Wire up dependency injection chain
	// Repository layer → App layer → Facade → Service layer
	logger := log.Logger
	clock := clockwork.NewRealClock()
	services := &Services{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	services.Registry = registry

	// NATS is optional and shared by the hub relay and the activity stream
	var nc *nats.Conn
	if cfg.NATS.Enabled() {
		natsCfg := natsconn.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		conn, err := natsconn.Connect(natsCfg)
		if err != nil {
			return nil, err
		}
		nc = conn
		services.closers = append(services.closers, func() { _ = nc.Drain() })
	}

	// Hub
	sessionHub := hub.New(hub.Config{SubscriberBuffer: cfg.WebSocket.SubscriberBuffer}, clock, hub.NewMetrics(registry), logger)
	if cfg.NATS.Relay {
		relay := hub.NewRelay(nc, sessionHub, cfg.NATS.RelayPrefix, logger)
		if err := relay.Start(); err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to start hub relay: %w", err)
		}
		services.closers = append(services.closers, relay.Stop)
	}

	// Identity and users
	identityProvider := identity.NewProvider(identity.Config{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}, clock, logger)
	services.Identity = identityProvider

	userApp := users.NewApp(stores.Users, clock, logger)
	services.Users = users.NewHandler(userApp, logger)
	services.UsersRPC = users.NewService(userApp)

	// Activity
	var publisher activity.Publisher
	if cfg.NATS.ActivityStream {
		streamCfg := activity.DefaultStreamConfig()
		streamCfg.StreamName = cfg.NATS.StreamName
		streamCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		jsPublisher, err := activity.NewJetStreamPublisher(ctx, nc, streamCfg, logger)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to set up activity stream: %w", err)
		}
		publisher = jsPublisher
	}
	activityApp := activity.NewApp(stores.Activity, publisher, clock, logger)
	services.Activity = activity.NewHandler(activityApp, logger)

	// Sessions
	sessionApp := sessions.NewApp(stores.Sessions, sessionHub, sessions.NewCodeGenerator(nil, stores.Sessions), clock, logger)
	sessionApp.AddObserver(sessions.NewMetrics(registry))
	facade := sessions.NewFacade(sessionApp, userApp, activityApp, sessions.FacadeConfig{
		RetryAttempts: cfg.Retry.Attempts,
		RetryBase:     cfg.Retry.Base,
	}, logger)
	services.Sessions = sessions.NewHandler(facade, logger)
	services.SessionsRPC = sessions.NewService(facade)

	// Websocket
	wsCfg := hub.DefaultConnectionConfig()
	wsCfg.WriteTimeout = cfg.WebSocket.WriteTimeout
	wsCfg.ReadTimeout = cfg.WebSocket.ReadTimeout
	wsCfg.PingInterval = cfg.WebSocket.PingInterval
	wsCfg.MaxMessageSize = cfg.WebSocket.MaxMessageSize
	services.WebSocket = hub.NewWebSocketHandler(sessionHub, facade, wsCfg, logger)

	// Tips
	catalog := tips.Default()
	if cfg.TipsFile != "" {
		loaded, err := tips.Load(cfg.TipsFile)
		if err != nil {
			services.Close()
			return nil, err
		}
		catalog = loaded
	}
	services.Tips = tips.NewHandler(catalog, activityApp, logger)

	// Health
	checker := health.NewChecker()
	for name, ping := range stores.pings {
		checker.AddDatabase(name, ping)
	}
	checker.SetNATS(nc)
	checker.SetSubscriberCount(func() int { return sessionHub.Stats().Subscribers })
	services.Health = checker

	return services, nil
}
