package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalDisk writes under one directory. Every file operation goes through
// an os.Root, so a key can never reach outside it, symlinks included.
type LocalDisk struct {
	dir     string
	root    *os.Root
	baseURL string
}

// NewLocalDisk opens dir, creating it when missing. Files are published
// under baseURL, which is normally the app's /storage mount.
func NewLocalDisk(dir, baseURL string) (*LocalDisk, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage/local: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage/local: create %s: %w", abs, err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("storage/local: open %s: %w", abs, err)
	}
	return &LocalDisk{dir: abs, root: root, baseURL: baseURL}, nil
}

// Dir is the absolute directory images land in.
func (d *LocalDisk) Dir() string { return d.dir }

// Put streams r into a temporary sibling and renames it over key.
func (d *LocalDisk) Put(ctx context.Context, key string, r io.Reader, _ string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	name := filepath.FromSlash(key)
	if dir := path.Dir(key); dir != "." {
		if err := d.root.MkdirAll(filepath.FromSlash(dir), 0o755); err != nil {
			return fmt.Errorf("storage/local: mkdir %s: %w", dir, err)
		}
	}

	tmp := name + ".part-" + uuid.NewString()[:8]
	f, err := d.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage/local: create %s: %w", key, err)
	}
	_, err = io.Copy(f, readerWithContext{ctx, r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = d.root.Rename(tmp, name)
	}
	if err != nil {
		_ = d.root.Remove(tmp)
		return fmt.Errorf("storage/local: write %s: %w", key, err)
	}
	return nil
}

func (d *LocalDisk) Delete(_ context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := d.root.Remove(filepath.FromSlash(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage/local: delete %s: %w", key, err)
	}
	return nil
}

func (d *LocalDisk) URL(key string) string { return joinURL(d.baseURL, key) }

// Handler serves stored files below prefix. Directory listings and
// in-progress uploads are hidden.
func (d *LocalDisk) Handler(prefix string) http.Handler {
	files := http.FileServerFS(d.root.FS())
	return http.StripPrefix(prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p == "" || strings.HasSuffix(p, "/") || strings.Contains(path.Base(p), ".part-") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	}))
}

func (d *LocalDisk) Close() error { return d.root.Close() }

// readerWithContext stops a long copy once ctx is done.
type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (rc readerWithContext) Read(p []byte) (int, error) {
	if err := rc.ctx.Err(); err != nil {
		return 0, err
	}
	return rc.r.Read(p)
}
