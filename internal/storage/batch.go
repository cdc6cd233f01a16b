package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Batch records the blobs written while handling one request so they can
// be removed if the matching database write fails.
type Batch struct {
	store Store
	keys  []string
}

func NewBatch(s Store) *Batch {
	return &Batch{store: s}
}

// PutImage stores f like the package-level PutImage. A nil f is a no-op
// returning "".
func (b *Batch) PutImage(ctx context.Context, dir string, owner uuid.UUID, kind string, f *File) (string, error) {
	if f == nil {
		return "", nil
	}
	url, key, err := PutImage(ctx, b.store, dir, owner, kind, f)
	if err != nil {
		return "", err
	}
	b.keys = append(b.keys, key)
	return url, nil
}

func (b *Batch) Keys() []string {
	return append([]string(nil), b.keys...)
}

// Rollback deletes every blob in the batch. It runs even when ctx is
// already cancelled.
func (b *Batch) Rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, k := range b.keys {
		if err := b.store.Delete(ctx, k); err != nil && !errors.Is(err, ErrNotFound) {
			zap.L().Warn("rollback upload", zap.String("key", k), zap.Error(err))
		}
	}
	b.keys = nil
}

// DeleteURL removes the blob behind a public URL, ignoring URLs the store
// did not produce. Failures are logged only.
func DeleteURL(ctx context.Context, s Store, url string) {
	key, ok := s.KeyFromURL(url)
	if !ok {
		return
	}
	if err := s.Delete(context.WithoutCancel(ctx), key); err != nil && !errors.Is(err, ErrNotFound) {
		zap.L().Warn("delete replaced blob", zap.String("key", key), zap.Error(err))
		return
	}
	zap.L().Debug("deleted replaced blob", zap.String("key", key))
}
