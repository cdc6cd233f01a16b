package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/saan-app/saan_be/internal/db/dbtest"
	"github.com/saan-app/saan_be/internal/models"
)

func TestFeedNewestFirstAndSkipsMalformed(t *testing.T) {
	gdb := dbtest.Open(t)
	svc := NewMatchingService(gdb)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cards := sampleCards()
	for i := range cards {
		cards[i].CreatedAt = base.Add(time.Duration(i) * time.Hour)
		row := cards[i].Row()
		require.NoError(t, gdb.Create(&row).Error)
	}

	name := "stray"
	bad := models.ElderCardRow{
		TaskType:            models.TaskPostProduct,
		Name:                "mixed",
		ProductName:         &name,
		ProductDescriptions: datatypes.NewJSONSlice([]string{"basket"}),
		CreatedAt:           base.Add(10 * time.Hour),
	}
	require.NoError(t, gdb.Create(&bad).Error)

	got, err := svc.Feed(context.Background(), Criteria{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{cards[2].ID, cards[1].ID, cards[0].ID}, cardIDs(got))

	got, err = svc.Feed(context.Background(), Criteria{Query: "basket", MaxDistanceKM: 80})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{cards[2].ID, cards[0].ID}, cardIDs(got))
}

func TestCardResolvesDistance(t *testing.T) {
	gdb := dbtest.Open(t)
	svc := NewMatchingService(gdb)

	lat, lng := 19.0, 99.0
	card := models.ElderCard{
		ID: uuid.New(), Name: "Grandma Somsri", Latitude: &lat, Longitude: &lng,
		Details: models.PostProduct{},
	}
	row := card.Row()
	require.NoError(t, gdb.Create(&row).Error)

	got, err := svc.Card(context.Background(), card.ID, &Point{Lat: 18.0, Lng: 99.0})
	require.NoError(t, err)
	assert.InDelta(t, 111.19, got.DistanceKM, 0.05)

	_, err = svc.Card(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, ErrCardNotFound)
}
