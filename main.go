package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	httpservermod "github.com/example/lanshare/modules/httpserver"
	transfermod "github.com/example/lanshare/modules/transfer"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration from environment
	host := getEnv("HOST", "0.0.0.0")
	httpPort := getEnvInt("HTTP_PORT", 8000)
	storagePath := getEnv("STORAGE_PATH", "./uploads")
	chunkSize := getEnvInt("CHUNK_SIZE", transfermod.DefaultChunkSize)
	zstdLevel := getEnvInt("ZSTD_LEVEL", transfermod.DefaultCompressionLevel)
	maxUploadSize := getEnvInt64("MAX_UPLOAD_SIZE", 10*1024*1024*1024) // 10GB default

	log.Println("=== LAN File Transfer ===")
	log.Printf("HTTP Port: %d", httpPort)
	log.Printf("Storage Path: %s", storagePath)
	log.Printf("Chunk Size: %d bytes", chunkSize)
	log.Printf("Zstd Level: %d", zstdLevel)
	log.Printf("Max Upload Size: %d bytes", maxUploadSize)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Transfer configuration, built once and passed into constructors
	cfg := transfermod.Config{
		Root:             storagePath,
		ChunkSize:        chunkSize,
		CompressionLevel: zstdLevel,
		AdvertisedURL:    fmt.Sprintf("http://%s:%d", host, httpPort),
	}

	// Create modules
	transferModule := transfermod.NewModule(cfg, app.Logger())
	httpServerModule := httpservermod.NewModule(httpPort, maxUploadSize, app.Logger())

	// Wire up dependencies
	httpServerModule.SetTransferModule(transferModule)

	// Register modules
	app.Register(transferModule)
	app.Register(httpServerModule)

	// Start the application
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	log.Println("=== Application Started ===")
	log.Printf("API available at http://localhost:%d", httpPort)
	log.Println("Endpoints:")
	log.Println("  GET    /health                   - Health check")
	log.Println("  GET    /api/files                - List files")
	log.Println("  GET    /api/download/:filename   - Download a file (zstd by default)")
	log.Println("  POST   /api/upload               - Upload a file")
	log.Println("  POST   /api/upload-multiple      - Upload multiple files")
	log.Println("  DELETE /api/files/:filename      - Delete a file")
	log.Println("  DELETE /api/files                - Delete multiple files")
	log.Println("  GET    /api/status               - Server status")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")

	// Setup graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	// Wait for shutdown signal
	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvInt64 returns environment variable as int64 or default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int64 value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}
