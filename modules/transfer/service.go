package transfer

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/example/lanshare/domain/file"
)

// Service orchestrates uploads, downloads, deletes and listings over the
// storage root. The filesystem is the single source of truth: no in-memory
// index is kept and every operation re-reads the directory state it needs.
type Service struct {
	cfg     Config
	paths   *PathResolver
	started time.Time
}

// NewService creates a transfer service for the given configuration.
func NewService(cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:     cfg,
		paths:   NewPathResolver(cfg.Root),
		started: time.Now(),
	}
}

// Resolver exposes the service's path resolver.
func (s *Service) Resolver() *PathResolver {
	return s.paths
}

// List enumerates regular, non-hidden files directly under the storage root,
// ordered by modification time descending. Per-entry stat calls run
// concurrently; entries that disappear mid-listing are skipped.
func (s *Service) List(ctx context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.cfg.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, err
	}

	infos := make([]*FileInfo, len(entries))
	var wg sync.WaitGroup

	for i, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		wg.Add(1)
		go func(idx int, entry os.DirEntry) {
			defer wg.Done()

			info, err := entry.Info()
			if err != nil || !info.Mode().IsRegular() {
				return
			}
			infos[idx] = &FileInfo{
				Name:      info.Name(),
				Size:      info.Size(),
				SizeHuman: formatSize(info.Size()),
				Modified:  float64(info.ModTime().Unix()),
				Type:      string(domain.CategoryForName(info.Name())),
			}
		}(i, entry)
	}

	wg.Wait()

	files := make([]FileInfo, 0, len(entries))
	for _, info := range infos {
		if info != nil {
			files = append(files, *info)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Modified > files[j].Modified
	})

	return files, nil
}

// Upload stores the reader's content under a collision-free variant of name,
// copying in chunk-size steps so memory use stays independent of file size.
// Failures are reported as a rejected outcome, never as a panic or partial
// silent state; a partially written file is removed.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader) UploadResult {
	dst, finalName, err := s.paths.CreateExclusive(name)
	if err != nil {
		if errors.Is(err, ErrInvalidFilename) {
			return UploadResult{Success: false, Error: "No filename provided"}
		}
		return UploadResult{Success: false, Filename: name, Error: shortError(err)}
	}

	buf := make([]byte, s.cfg.ChunkSize)
	written, err := io.CopyBuffer(dst, r, buf)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(s.paths.Path(finalName))
		return UploadResult{Success: false, Filename: finalName, Error: shortError(err)}
	}

	return UploadResult{
		Success:   true,
		Filename:  finalName,
		Size:      written,
		SizeHuman: formatSize(written),
		Type:      string(domain.CategoryForName(finalName)),
	}
}

// UploadBatch runs Upload over all items concurrently. Items are independent;
// one item's failure never aborts the rest. The call returns once every item
// has finished.
func (s *Service) UploadBatch(ctx context.Context, items []UploadItem) ([]UploadResult, BatchSummary) {
	results := make([]UploadResult, len(items))
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, item UploadItem) {
			defer wg.Done()

			rc, err := item.Open()
			if err != nil {
				results[idx] = UploadResult{Success: false, Filename: item.Name, Error: "Failed to read file"}
				return
			}
			defer rc.Close()

			results[idx] = s.Upload(ctx, item.Name, rc)
		}(i, item)
	}

	wg.Wait()

	var summary BatchSummary
	summary.Total = len(results)
	for _, r := range results {
		if r.Success {
			summary.Successful++
			summary.TotalSize += r.Size
		} else {
			summary.Failed++
		}
	}
	summary.TotalSizeHuman = formatSize(summary.TotalSize)

	return results, summary
}

// Download resolves name and opens a compressed or raw stream over its
// content. The caller owns the returned stream and must close it.
func (s *Service) Download(ctx context.Context, name string, compressed bool) (*Download, error) {
	path, err := s.paths.ResolveForRead(name)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !stat.Mode().IsRegular() {
		return nil, ErrNotRegularFile
	}

	var stream *ChunkStream
	if compressed {
		stream, err = OpenCompressedStream(path, s.cfg.ChunkSize, s.cfg.CompressionLevel)
	} else {
		stream, err = OpenRawStream(path, s.cfg.ChunkSize)
	}
	if err != nil {
		return nil, err
	}

	base, _ := s.paths.Sanitize(name)
	return &Download{
		Name:       base,
		Size:       stat.Size(),
		Compressed: compressed,
		Stream:     stream,
	}, nil
}

// Delete removes the named file and reports the bytes freed. Deleting an
// absent file returns ErrNotFound and has no side effects, so repeated calls
// are safe.
func (s *Service) Delete(ctx context.Context, name string) (int64, error) {
	path, err := s.paths.ResolveForRead(name)
	if err != nil {
		return 0, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if !stat.Mode().IsRegular() {
		return 0, ErrNotRegularFile
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	return stat.Size(), nil
}

// DeleteBatch deletes all names concurrently, isolating per-item failures.
func (s *Service) DeleteBatch(ctx context.Context, names []string) ([]DeleteResult, BatchSummary) {
	results := make([]DeleteResult, len(names))
	sizes := make([]int64, len(names))
	var wg sync.WaitGroup

	for i, name := range names {
		wg.Add(1)
		go func(idx int, name string) {
			defer wg.Done()

			size, err := s.Delete(ctx, name)
			if err != nil {
				results[idx] = DeleteResult{Filename: name, Success: false, Error: deleteErrorMessage(err)}
				return
			}
			sizes[idx] = size
			results[idx] = DeleteResult{Filename: name, Success: true}
		}(i, name)
	}

	wg.Wait()

	var summary BatchSummary
	summary.Total = len(results)
	for i, r := range results {
		if r.Success {
			summary.Successful++
			summary.TotalSize += sizes[i]
		} else {
			summary.Failed++
		}
	}
	summary.TotalSizeHuman = formatSize(summary.TotalSize)

	return results, summary
}

// Status reports storage statistics derived from a fresh directory scan.
func (s *Service) Status(ctx context.Context) (StatusInfo, error) {
	var fileCount int
	var totalSize int64

	entries, err := os.ReadDir(s.cfg.Root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return StatusInfo{}, err
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		fileCount++
		if info, err := entry.Info(); err == nil {
			totalSize += info.Size()
		}
	}

	return StatusInfo{
		Status:         "online",
		URL:            s.cfg.AdvertisedURL,
		UploadsDir:     s.cfg.Root,
		FileCount:      fileCount,
		TotalSize:      totalSize,
		TotalSizeHuman: formatSize(totalSize),
		Uptime:         time.Since(s.started).Round(time.Second).String(),
	}, nil
}

// deleteErrorMessage maps delete errors to the short diagnostics carried in
// batch results.
func deleteErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "File not found"
	case errors.Is(err, ErrAccessDenied):
		return "Access denied"
	case errors.Is(err, ErrInvalidFilename):
		return "Invalid filename"
	case errors.Is(err, ErrNotRegularFile):
		return "Not a file"
	default:
		return shortError(err)
	}
}

// shortError keeps diagnostics to a single line.
func shortError(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
