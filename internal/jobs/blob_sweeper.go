// Package jobs holds the scheduled maintenance tasks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/storage"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// BlobSweeper deletes stored images that no row references, e.g. after a
// crash between upload and insert.
type BlobSweeper struct {
	DB    *gorm.DB
	Store storage.Store
	Grace time.Duration

	now func() time.Time
}

func NewBlobSweeper(db *gorm.DB, store storage.Store, grace time.Duration) *BlobSweeper {
	return &BlobSweeper{DB: db, Store: store, Grace: grace, now: time.Now}
}

// referencedURLs collects every image URL the database still points at.
func (s *BlobSweeper) referencedURLs(ctx context.Context) (map[string]struct{}, error) {
	refs := map[string]struct{}{}
	columns := []struct {
		model  any
		column string
	}{
		{&models.Elder{}, "avatar_url"},
		{&models.ElderCardRow{}, "avatar_url"},
		{&models.ElderCardRow{}, "product_image"},
		{&models.Product{}, "image_url"},
		{&models.Profile{}, "avatar_url"},
	}
	for _, c := range columns {
		var urls []string
		err := s.DB.WithContext(ctx).
			Model(c.model).
			Where(c.column+" IS NOT NULL AND "+c.column+" <> ''").
			Pluck(c.column, &urls).Error
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", c.column, err)
		}
		for _, u := range urls {
			refs[u] = struct{}{}
		}
	}
	return refs, nil
}

// Sweep removes unreferenced blobs older than the grace period and
// returns how many were deleted.
func (s *BlobSweeper) Sweep(ctx context.Context) (int, error) {
	objects, err := s.Store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list blobs: %w", err)
	}
	refs, err := s.referencedURLs(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.Grace)
	deleted := 0
	for _, o := range objects {
		if o.ModTime.After(cutoff) {
			continue
		}
		if _, ok := refs[o.URL]; ok {
			continue
		}
		if err := s.Store.Delete(ctx, o.Key); err != nil {
			zap.L().Warn("sweep blob", zap.String("key", o.Key), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Schedule registers the sweep on a new cron and starts it. The caller
// stops the returned scheduler on shutdown.
func Schedule(spec string, sweeper *BlobSweeper) (*cron.Cron, error) {
	sched := cron.New(cron.WithParser(cronParser))
	_, err := sched.AddFunc(spec, func() {
		defer func() {
			if err := recover(); err != nil {
				zap.S().Error(err)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		n, err := sweeper.Sweep(ctx)
		if err != nil {
			zap.L().Error("blob sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			zap.L().Info("blob sweep done", zap.Int("deleted", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule blob sweep %q: %w", spec, err)
	}
	sched.Start()
	return sched, nil
}
