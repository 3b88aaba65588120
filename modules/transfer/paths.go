package transfer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PathResolver turns client-supplied filenames into safe on-disk paths inside
// the storage root. Every read path is re-verified on each call; nothing is
// cached, since the filesystem may change between requests.
type PathResolver struct {
	root string
}

// NewPathResolver creates a resolver for the given storage root.
func NewPathResolver(root string) *PathResolver {
	return &PathResolver{root: root}
}

// Sanitize reduces a client-supplied name to its final path segment. Both `/`
// and `\` are treated as separators so names from any client OS are handled.
// Names that reduce to nothing return ErrInvalidFilename.
func (r *PathResolver) Sanitize(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = filepath.Base(filepath.Clean(name))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", ErrInvalidFilename
	}
	return name, nil
}

// CreateExclusive sanitizes rawName and atomically creates a new file under the
// storage root, appending a numeric counter before the extension (name_1.ext,
// name_2.ext, ...) until an unused name is found. O_EXCL guarantees that two
// concurrent uploads of the same name never share a destination.
func (r *PathResolver) CreateExclusive(rawName string) (*os.File, string, error) {
	base, err := r.Sanitize(rawName)
	if err != nil {
		return nil, "", err
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// Dotfiles like ".env" have no stem; keep the whole name intact.
		stem, ext = ext, ""
	}

	name := base
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(r.root, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", name, err)
		}
		name = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}

// ResolveForRead builds the on-disk path for rawName, canonicalizes it
// (resolving symlinks and dot segments) and verifies it stays inside the
// storage root. Returns ErrNotFound for absent files and ErrAccessDenied for
// paths that escape the root.
func (r *PathResolver) ResolveForRead(rawName string) (string, error) {
	base, err := r.Sanitize(rawName)
	if err != nil {
		return "", err
	}

	root, err := filepath.EvalSymlinks(r.root)
	if err != nil {
		return "", fmt.Errorf("resolve storage root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(filepath.Join(root, base))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("resolve %s: %w", base, err)
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrAccessDenied
	}

	return resolved, nil
}

// Path returns the uncanonicalized location of name under the storage root.
func (r *PathResolver) Path(name string) string {
	return filepath.Join(r.root, name)
}
