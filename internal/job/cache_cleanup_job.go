package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type CacheStore interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// CacheCleanupJob expires embedding cache rows older than the retention
// window. The cache is append-only otherwise, so this is the only deletion
// path.
type CacheCleanupJob struct {
	store         CacheStore
	retentionDays int
}

func NewCacheCleanupJob(store CacheStore, retentionDays int) *CacheCleanupJob {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CacheCleanupJob{store: store, retentionDays: retentionDays}
}

func (j *CacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-time.Duration(j.retentionDays) * 24 * time.Hour).Unix()
	deleted, err := j.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("expired embedding cache entries", zap.Int64("deleted", deleted))
	}
	return nil
}
