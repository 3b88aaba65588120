package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module wires the transfer service into the application lifecycle.
type Module struct {
	cfg     Config
	service *Service
	logger  types.Logger
}

// Compile-time interface checks
var _ mono.Module = (*Module)(nil)

// NewModule creates a new transfer module.
func NewModule(cfg Config, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "transfer"
}

// Start ensures the storage root exists and builds the service.
func (m *Module) Start(ctx context.Context) error {
	root, err := filepath.Abs(m.cfg.Root)
	if err != nil {
		return fmt.Errorf("resolve storage path %s: %w", m.cfg.Root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create storage path %s: %w", root, err)
	}

	m.cfg.Root = root
	m.service = NewService(m.cfg)

	m.logger.Info("Transfer module started",
		"storage_path", root,
		"chunk_size", m.cfg.ChunkSize,
		"compression_level", m.cfg.CompressionLevel,
	)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("Transfer module stopped")
	return nil
}

// Service returns the transfer service instance.
func (m *Module) Service() *Service {
	return m.service
}
