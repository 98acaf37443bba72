package myhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fleet-dash/internal/config"
	"fleet-dash/internal/hub-service/adapters/driven/bm"
	"fleet-dash/internal/hub-service/adapters/driven/db"
	"fleet-dash/internal/hub-service/adapters/driver/myhttp/handle"
	"fleet-dash/internal/hub-service/adapters/driver/myhttp/middleware"
	"fleet-dash/internal/hub-service/adapters/driver/myhttp/ws"
	"fleet-dash/internal/hub-service/core/ports/driven"
	"fleet-dash/internal/hub-service/core/services"
	"fleet-dash/internal/mylogger"
)

const WaitTime = 10

type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	srv    *http.Server
	mylog  mylogger.Logger
	db     *db.DataBase
	bus    driven.ILocationBus
	relay  context.CancelFunc
	ctx    context.Context
	appCtx context.Context
	mu     sync.Mutex
	wg     sync.WaitGroup
}

func NewServer(ctx, appCtx context.Context, mylog mylogger.Logger, cfg *config.Config) *Server {
	return &Server{
		ctx:    ctx,
		appCtx: appCtx,
		cfg:    cfg,
		mylog:  mylog,
		mux:    http.NewServeMux(),
	}
}

// Run connects the database and the location bus, then serves until ctx is done.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	if err := s.initializeDatabase(); err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	mylog.Action("db_connected").Info("Successful database connection")

	if err := s.initializeBus(); err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}

	relay := s.Configure()

	relayCtx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.relay = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := relay.Run(relayCtx); err != nil {
			s.mylog.Action("relay_stopped").Error("Location relay stopped", err)
		}
	}()

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%v", s.cfg.Hub.Port),
		Handler: s.mux,
	}
	s.mu.Unlock()

	mylog = mylog.WithGroup("details").With("port", s.cfg.Hub.Port)
	mylog.Info("server is running")

	return s.startHTTPServer()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")

	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, WaitTime*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	if s.relay != nil {
		s.relay()
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.mylog.Action("mb_close_failed").Error("Failed to close location bus", err)
		}
	}
	s.wg.Wait()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.mylog.Action("db_close_failed").Error("Failed to close database", err)
			return fmt.Errorf("db close: %w", err)
		}
		s.mylog.Action("db_closed").Info("Database closed")
	}

	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) startHTTPServer() error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Configure wires repositories, services and handlers, and registers the routes.
func (s *Server) Configure() *services.RelayService {
	driverRepo := db.NewDriverRepository(s.db)
	wsManager := ws.NewWebSocketManager(s.mylog)

	authService := services.NewAuthService(s.cfg.App.JwtSecret)
	registryService := services.NewRegistryService(driverRepo, s.mylog)
	loginService := services.NewLoginService(driverRepo, authService, s.mylog)
	relayService := services.NewRelayService(driverRepo, s.bus, wsManager, s.mylog)

	driverHandler := handle.NewDriverHandler(registryService, loginService, s.mylog)
	wsHandler := handle.NewWebSocketHandler(wsManager, authService, relayService, s.mylog)

	operatorOnly := middleware.NewAuthMiddleware(authService, services.RoleOperator)

	prefix := s.cfg.App.APIPrefix
	s.mux.Handle("POST "+prefix+"/drivers/register/driver", operatorOnly.Wrap(driverHandler.Register()))
	s.mux.Handle("GET "+prefix+"/drivers/all/driver", operatorOnly.Wrap(driverHandler.List()))
	s.mux.Handle("DELETE "+prefix+"/drivers/remove/{id}", operatorOnly.Wrap(driverHandler.Remove()))
	s.mux.Handle("POST "+prefix+"/drivers/login", driverHandler.Login())
	s.mux.Handle("GET "+s.cfg.App.WSPath, wsHandler.Handle())
	s.mux.Handle("GET /health", handle.Health(s.alive))

	return relayService
}

func (s *Server) alive(ctx context.Context) bool {
	if s.db == nil || s.db.IsAlive(ctx) != nil {
		return false
	}
	if b, ok := s.bus.(interface{ IsAlive() bool }); ok {
		return b.IsAlive()
	}
	return true
}

func (s *Server) initializeDatabase() error {
	database, err := db.ConnectDB(s.ctx, s.cfg.DB, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = database
	return nil
}

func (s *Server) initializeBus() error {
	if !s.cfg.RabbitMq.Enabled {
		s.bus = bm.NewLocalBus()
		s.mylog.Action("mb_local").Info("RabbitMQ disabled, relaying positions in process")
		return nil
	}
	rabbit, err := bm.New(s.cfg.RabbitMq, s.mylog)
	if err != nil {
		return err
	}
	s.bus = rabbit
	return nil
}
