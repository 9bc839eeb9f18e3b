package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem stores objects below a root directory and serves them from a public base URL.
type FileSystem struct {
	root       string
	publicBase string
}

// NewFileSystem creates the root directory if needed.
func NewFileSystem(root, publicBase string) (*FileSystem, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("filesystem backend requires a root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create asset root: %w", err)
	}
	return &FileSystem{root: root, publicBase: publicBase}, nil
}

func (f *FileSystem) Name() string { return "filesystem" }

// Put writes data atomically (temp file + rename) under key.
func (f *FileSystem) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(f.root, filepath.FromSlash(key))
	if !strings.HasPrefix(target, filepath.Clean(f.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("key %q escapes asset root", key)
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return "", fmt.Errorf("rename into place: %w", err)
	}

	return PublicURL(f.publicBase, key), nil
}

// PublicURL joins a public base (absolute URL or path) with an object key.
func PublicURL(base, key string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	return base + "/" + strings.TrimLeft(key, "/")
}
