package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/example/lanshare/modules/transfer"
	"github.com/gin-gonic/gin"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Module implements an HTTP server using the Gin framework.
type Module struct {
	port           int
	server         *http.Server
	engine         *gin.Engine
	handlers       *Handlers
	transferModule *transfer.Module
	logger         types.Logger
	maxUploadSize  int64
}

// Compile-time interface checks
var _ mono.Module = (*Module)(nil)

// NewModule creates a new HTTP server module.
func NewModule(port int, maxUploadSize int64, logger types.Logger) *Module {
	return &Module{
		port:          port,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "http-server"
}

// SetTransferModule sets the transfer module dependency.
func (m *Module) SetTransferModule(transferModule *transfer.Module) {
	m.transferModule = transferModule
}

// Start initializes and starts the HTTP server.
func (m *Module) Start(ctx context.Context) error {
	if m.transferModule == nil {
		return fmt.Errorf("transfer module not set")
	}

	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	// Create Gin engine
	m.engine = gin.New()

	// Add middleware
	m.engine.Use(gin.Recovery())
	m.engine.Use(m.requestIDMiddleware())
	m.engine.Use(m.loggingMiddleware())
	m.engine.Use(m.corsMiddleware())

	// Set max multipart memory
	m.engine.MaxMultipartMemory = m.maxUploadSize

	// Create handlers
	m.handlers = NewHandlers(m.transferModule.Service())

	// Register routes
	registerRoutes(m.engine, m.handlers)

	// Create HTTP server. Write timeout stays generous: downloads of large
	// files stream for a while.
	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", m.port),
		Handler:           m.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		m.logger.Info("HTTP server starting", "port", m.port)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (m *Module) Stop(ctx context.Context) error {
	if m.server != nil {
		m.logger.Info("Shutting down HTTP server")
		return m.server.Shutdown(ctx)
	}
	return nil
}

// registerRoutes sets up all HTTP routes.
func registerRoutes(engine *gin.Engine, h *Handlers) {
	// Health check
	engine.GET("/health", h.HealthCheck)

	// API routes
	api := engine.Group("/api")
	{
		api.GET("/files", h.ListFiles)
		api.GET("/download/:filename", h.DownloadFile)
		api.POST("/upload", h.UploadFile)
		api.POST("/upload-multiple", h.UploadMultipleFiles)
		api.DELETE("/files/:filename", h.DeleteFile)
		api.DELETE("/files", h.DeleteMultipleFiles)
		api.GET("/status", h.Status)
	}
}

// requestIDMiddleware assigns each request a correlation ID.
func (m *Module) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// loggingMiddleware provides request logging.
func (m *Module) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		m.logger.Info("HTTP request",
			"request_id", c.GetString("request_id"),
			"method", method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware adds CORS headers for browser access on the local network.
func (m *Module) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
