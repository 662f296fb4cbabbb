package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wabroadcast/internal/middleware"
	"wabroadcast/internal/models"
	"wabroadcast/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	cfg      *models.Config
	devices  *service.DeviceSessionService
	dispatch *service.DispatchService
	server   *http.Server
}

func NewServer(cfg *models.Config, devices *service.DeviceSessionService, dispatch *service.DispatchService, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		cfg:      cfg,
		devices:  devices,
		dispatch: dispatch,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/devices", s.handleCreateDevice()).Methods(http.MethodPost)
	api.HandleFunc("/devices", s.handleListDevices()).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", s.handleDeviceStatus()).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", s.handleDeleteDevice()).Methods(http.MethodDelete)
	api.HandleFunc("/devices/{id}/pair", s.handleRequestPairing()).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}/disconnect", s.handleDisconnectDevice()).Methods(http.MethodPost)

	api.HandleFunc("/messages", s.handleComposeMessage()).Methods(http.MethodPost)
	api.HandleFunc("/messages", s.handleListMessages()).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id}", s.handleGetMessage()).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id}/dispatch", s.handleDispatchMessage()).Methods(http.MethodPost)

	// Signed callbacks from the session gateway.
	events := s.router.PathPrefix("/callbacks").Subrouter()
	events.Use(middleware.CallbackObservabilityMiddleware(s.logger, "gateway"))
	events.HandleFunc("/devices/{id}/events", s.handlePairingEvent()).Methods(http.MethodPost)
	events.HandleFunc("/messages/{id}/result", s.handleDispatchResult()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.WithError(err).Warn("Failed to write health response")
		}
	}
}
