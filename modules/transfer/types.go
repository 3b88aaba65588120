package transfer

import (
	"fmt"
	"io"
)

// Defaults for streamed I/O.
const (
	DefaultChunkSize        = 64 * 1024
	DefaultCompressionLevel = 3
)

// Config holds the transfer service configuration. It is constructed once at
// startup and passed into constructors; there is no ambient global state.
type Config struct {
	// Root is the storage directory under which all managed files live.
	Root string
	// ChunkSize bounds how many bytes are read per I/O step.
	ChunkSize int
	// CompressionLevel is the zstd level used for compressed downloads.
	CompressionLevel int
	// AdvertisedURL is the base URL reported by the status endpoint.
	AdvertisedURL string
}

// withDefaults fills in zero-valued tunables.
func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.CompressionLevel <= 0 {
		c.CompressionLevel = DefaultCompressionLevel
	}
	return c
}

// FileInfo describes a stored file as returned by listings.
type FileInfo struct {
	Name      string  `json:"name"`
	Size      int64   `json:"size"`
	SizeHuman string  `json:"size_human"`
	Modified  float64 `json:"modified"`
	Type      string  `json:"type"`
}

// UploadResult is the per-file outcome of an upload attempt.
type UploadResult struct {
	Success   bool   `json:"success"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size,omitempty"`
	SizeHuman string `json:"size_human,omitempty"`
	Type      string `json:"type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DeleteResult is the per-file outcome of a delete attempt.
type DeleteResult struct {
	Filename string `json:"filename"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// BatchSummary aggregates per-item outcomes of a batch operation. Byte totals
// cover successes only; for deletes they report the bytes freed.
type BatchSummary struct {
	Total          int    `json:"total"`
	Successful     int    `json:"successful"`
	Failed         int    `json:"failed"`
	TotalSize      int64  `json:"total_size"`
	TotalSizeHuman string `json:"total_size_human"`
}

// StatusInfo describes the server state reported by the status endpoint.
type StatusInfo struct {
	Status         string `json:"status"`
	URL            string `json:"url"`
	UploadsDir     string `json:"uploads_dir"`
	FileCount      int    `json:"file_count"`
	TotalSize      int64  `json:"total_size"`
	TotalSizeHuman string `json:"total_size_human"`
	Uptime         string `json:"uptime"`
}

// UploadItem is a single entry of a batch upload. Open is called inside the
// per-item worker so request bodies are consumed concurrently.
type UploadItem struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Download describes an open download stream. The caller owns Stream and must
// close it.
type Download struct {
	Name       string
	Size       int64
	Compressed bool
	Stream     *ChunkStream
}

// formatSize renders a byte count in human-readable form.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
