package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saan-app/saan_be/internal/db/dbtest"
	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/storage"
)

func put(t *testing.T, s *storage.LocalStore, key string, age time.Duration) string {
	t.Helper()
	url, err := s.Put(context.Background(), key, strings.NewReader("img"))
	require.NoError(t, err)
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(s.Root(), filepath.FromSlash(key)), mod, mod))
	return url
}

func TestSweepDeletesOnlyOldOrphans(t *testing.T) {
	gdb := dbtest.Open(t)
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	owner := uuid.New()
	elderURL := put(t, store, "elders/u/avatar-1.jpg", 2*time.Hour)
	productURL := put(t, store, "products/u/image-1.jpg", 2*time.Hour)
	put(t, store, "products/u/image-2.jpg", 2*time.Hour)      // orphan
	put(t, store, "elder-cards/u/avatar-3.jpg", time.Minute) // orphan, still in flight

	elder := models.Elder{VolunteerID: owner, FirstName: "Somsri", AvatarURL: elderURL}
	require.NoError(t, gdb.Create(&elder).Error)
	require.NoError(t, gdb.Create(&models.Product{
		ElderID: elder.ID, VolunteerID: owner, OwnerRole: models.RoleVolunteer,
		Name: "basket", ImageURL: productURL,
	}).Error)

	sweeper := NewBlobSweeper(gdb, store, time.Hour)
	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	objs, err := store.List(context.Background())
	require.NoError(t, err)
	var keys []string
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{
		"elders/u/avatar-1.jpg",
		"products/u/image-1.jpg",
		"elder-cards/u/avatar-3.jpg",
	}, keys)

	// the in-flight upload goes once it ages past the grace period
	sweeper.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	_, err := Schedule("every tuesday", NewBlobSweeper(nil, nil, time.Hour))
	assert.Error(t, err)

	sched, err := Schedule("@every 1h", NewBlobSweeper(nil, nil, time.Hour))
	require.NoError(t, err)
	sched.Stop()
}
