package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/sevasetu/internal/directory"
	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
)

// SupplierMirror is the Redis side of the directory. Implemented by redisstore.Store.
type SupplierMirror interface {
	SaveSuppliersMany(ctx context.Context, suppliers []*domain.Supplier) error
	GetUsageStats(ctx context.Context) (map[string]int64, error)
	FlushCache(ctx context.Context) error
}

// DirectoryReloader handles periodic reloading of the supplier directory
type DirectoryReloader struct {
	loader        *directory.Loader
	store         SupplierMirror
	index         *directory.Index
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewDirectoryReloader creates a new directory reloader. store may be nil.
func NewDirectoryReloader(
	loader *directory.Loader,
	store SupplierMirror,
	idx *directory.Index,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *DirectoryReloader {
	return &DirectoryReloader{
		loader:        loader,
		store:         store,
		index:         idx,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the directory once, then keeps reloading it in the background.
// An invalid directory at start is fatal for the caller.
func (dr *DirectoryReloader) Start(ctx context.Context) error {
	if err := dr.Reload(ctx); err != nil {
		return fmt.Errorf("initial directory load failed: %w", err)
	}

	ticker := time.NewTicker(dr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := dr.Reload(ctx); err != nil {
					dr.logger.Error("failed to reload directory", logger.Error(err))
				}
			case <-dr.manualTrigger:
				dr.logger.Info("manual directory reload triggered")
				if err := dr.Reload(ctx); err != nil {
					dr.logger.Error("failed to reload directory", logger.Error(err))
				}
			case <-dr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (dr *DirectoryReloader) Stop() {
	close(dr.stopCh)
}

// Reload parses the directory file and swaps the index. A file that fails
// to load or map leaves the previous index in place.
func (dr *DirectoryReloader) Reload(ctx context.Context) error {
	source := dr.loader.Path()
	if source == "" {
		source = "embedded"
	}
	dr.logger.Debug("reloading supplier directory", logger.String("source", source))

	file, err := dr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load directory: %w", err)
	}

	suppliers, err := directory.Map(file)
	if err != nil {
		return fmt.Errorf("failed to map directory: %w", err)
	}

	dr.index.Replace(suppliers)
	dr.logger.Info("supplier directory loaded",
		logger.String("source", source),
		logger.Int("count", len(suppliers)))

	if dr.store == nil {
		return nil
	}

	// Redis is best effort, the memory index is the primary source
	if err := dr.store.SaveSuppliersMany(ctx, suppliers); err != nil {
		dr.logger.Warn("failed to save suppliers to redis", logger.Error(err))
	}
	if err := dr.store.FlushCache(ctx); err != nil {
		dr.logger.Warn("failed to flush redirect cache", logger.Error(err))
	}
	if stats, err := dr.store.GetUsageStats(ctx); err != nil {
		dr.logger.Warn("failed to load usage counters", logger.Error(err))
	} else {
		dr.index.SetCounters(stats)
	}

	return nil
}
