package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/scumcal/pkg/auth"
	"github.com/dougsko/scumcal/pkg/client"
	"github.com/dougsko/scumcal/pkg/config"
	"github.com/dougsko/scumcal/pkg/engine"
	"github.com/dougsko/scumcal/pkg/logging"
)

// CalDaemon runs the calibration engine behind its Unix socket and serves
// the HTTP API from socket calls
type CalDaemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Core components
	coreEngine   *engine.CoreEngine
	socketClient *client.SocketClient
	verifier     *auth.Verifier
	router       *gin.Engine
	webServer    *http.Server

	socketPath string
}

// NewCalDaemon creates a new daemon instance
func NewCalDaemon(cfg *config.Config) (*CalDaemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	socketPath := cfg.API.UnixSocket
	if socketPath == "" {
		socketPath = "/tmp/scumcal.sock"
	}

	daemon := &CalDaemon{
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		socketPath:   socketPath,
		socketClient: client.NewSocketClient(socketPath),
	}

	if cfg.Web.AuthSecret != "" {
		verifier, err := auth.NewVerifier(cfg.Web.AuthSecret)
		if err != nil {
			cancel()
			return nil, err
		}
		daemon.verifier = verifier
	}

	coreEngine, err := engine.NewCoreEngine(cfg, socketPath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create core engine: %w", err)
	}
	daemon.coreEngine = coreEngine

	if err := daemon.setupWebServer(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup web server: %w", err)
	}

	return daemon, nil
}

// Start starts the daemon
func (d *CalDaemon) Start() error {
	logging.Info("DAEMON", "Starting scumcald daemon...")

	// Start core engine first
	if err := d.coreEngine.Start(); err != nil {
		return fmt.Errorf("failed to start core engine: %w", err)
	}

	// Wait a moment for socket to be ready
	time.Sleep(100 * time.Millisecond)

	if !d.socketClient.IsConnected() {
		return fmt.Errorf("failed to connect to core engine socket")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logging.Infof("DAEMON", "Starting web server on %s", d.webServer.Addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("DAEMON", "Web server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the daemon gracefully
func (d *CalDaemon) Stop() error {
	logging.Info("DAEMON", "Stopping daemon...")

	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Warnf("DAEMON", "Web server shutdown error: %v", err)
		}
	}

	if d.coreEngine != nil {
		if err := d.coreEngine.Stop(); err != nil {
			logging.Warnf("DAEMON", "Core engine shutdown error: %v", err)
		}
	}

	d.wg.Wait()

	logging.Info("DAEMON", "Daemon stopped")
	return nil
}

// setupWebServer initializes the router and HTTP server
func (d *CalDaemon) setupWebServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/healthz", d.handleHealth)

	api := router.Group("/api/v1")
	if d.verifier != nil {
		api.Use(d.verifier.RequireAuth())
	}
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/channels", d.handleGetChannels)
		api.GET("/channels/:channel", d.handleGetChannel)
		api.GET("/channels/:channel/plan", d.handleGetPlan)
		api.GET("/events", d.handleGetEvents)
		api.GET("/ws", d.handleEventsWebSocket)

		control := api.Group("", auth.RequireScope(auth.ScopeControl))
		control.POST("/recalibrate", d.handleRecalibrate)
		control.PUT("/feedback", d.handleSetFeedback)
	}

	d.router = router
	d.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port),
		Handler: router,
	}

	return nil
}
