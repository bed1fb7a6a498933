package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/foodie/config"
	"github.com/shashiranjanraj/foodie/pkg/logger"
)

var (
	mu      sync.RWMutex
	current Disk
)

// Connect builds the disk named by STORAGE_DISK. An s3 disk that cannot be
// configured degrades to local storage with a warning; a local disk that
// cannot be opened is fatal.
func Connect(ctx context.Context) error {
	var d Disk
	switch name := config.StorageDefault(); name {
	case "s3":
		s3d, err := NewS3Disk(ctx, S3ConfigFromEnv())
		if err == nil {
			d = s3d
			break
		}
		logger.Warn("storage: s3 unavailable, falling back to local", "error", err)
		fallthrough
	case "local":
		local, err := NewLocalDisk(config.StorageLocalRoot(), config.StorageURL())
		if err != nil {
			return err
		}
		d = local
	default:
		return fmt.Errorf("storage: unknown disk %q", name)
	}

	Use(d)
	logger.Info("storage ready", "disk", fmt.Sprintf("%T", d))
	return nil
}

// Use installs d as the default disk.
func Use(d Disk) {
	mu.Lock()
	current = d
	mu.Unlock()
}

// Default returns the disk installed by Connect or Use, nil before either.
func Default() Disk {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
