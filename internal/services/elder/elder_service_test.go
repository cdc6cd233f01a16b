package elder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/saan-app/saan_be/internal/db/dbtest"
	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/session"
	"github.com/saan-app/saan_be/internal/storage"
	"github.com/saan-app/saan_be/internal/utils"
)

func newService(t *testing.T) *ElderService {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	return NewElderService(dbtest.Open(t), store)
}

func broker() session.Session {
	return session.Session{UserID: uuid.New(), Email: "b@example.com", Role: models.RoleBroker}
}

func img(name string) *storage.File {
	return &storage.File{Name: name, Size: 3, Reader: strings.NewReader("img")}
}

func blobs(t *testing.T, s storage.Store) int {
	t.Helper()
	objs, err := s.List(context.Background())
	require.NoError(t, err)
	return len(objs)
}

func TestCreateElderAndOwnership(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	sess := broker()
	age := 78

	e, err := svc.CreateElder(ctx, sess, ElderInput{FirstName: " Somsri ", LastName: "Kaew", Age: &age}, img("a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "Somsri Kaew", e.FullName())
	assert.NotEmpty(t, e.AvatarURL)

	got, err := svc.GetElder(ctx, sess, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	_, err = svc.GetElder(ctx, broker(), e.ID)
	assert.ErrorIs(t, err, ErrElderNotFound)

	list, err := svc.ListElders(ctx, broker())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateElderValidation(t *testing.T) {
	svc := newService(t)
	age := 200

	_, err := svc.CreateElder(context.Background(), broker(), ElderInput{Age: &age}, img("a.jpg"))
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "first_name")
	assert.Contains(t, ve.Fields, "age")
	assert.Zero(t, blobs(t, svc.Store))
}

func TestCreatePackCardWithImages(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	sess := broker()

	card, err := svc.CreateCard(ctx, sess, CardInput{
		Card: models.ElderCard{
			Name:     "Uncle Prasert",
			Location: "Lamphun",
			Details:  models.PackProduct{Name: "rice crackers", Price: 159},
		},
		Avatar:       img("a.png"),
		ProductImage: img("p.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, card.VolunteerID)
	assert.NotEmpty(t, card.AvatarURL)

	pack, ok := card.Details.(models.PackProduct)
	require.True(t, ok)
	assert.NotEmpty(t, pack.ImageURL)
	assert.Equal(t, 2, blobs(t, svc.Store))

	got, err := svc.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.Details, got.Details)

	mine, err := svc.ListCards(ctx, sess)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, card.ID, mine[0].ID)
}

func TestCreateCardRejectsProductImageOnPostCard(t *testing.T) {
	svc := newService(t)

	_, err := svc.CreateCard(context.Background(), broker(), CardInput{
		Card: models.ElderCard{
			Name:    "Grandma Somsri",
			Details: models.PostProduct{Descriptions: []string{"basket"}},
		},
		ProductImage: img("p.png"),
	})
	assert.ErrorIs(t, err, models.ErrInvalidCard)
	assert.Zero(t, blobs(t, svc.Store))
}

func TestCreateCardRollsBackImagesWhenInsertFails(t *testing.T) {
	svc := newService(t)

	require.NoError(t, svc.DB.Callback().Create().Before("gorm:create").
		Register("test:fail_cards", func(tx *gorm.DB) {
			if tx.Statement.Table == "elder_cards" {
				_ = tx.AddError(errors.New("insert refused"))
			}
		}))

	_, err := svc.CreateCard(context.Background(), broker(), CardInput{
		Card: models.ElderCard{
			Name:    "Uncle Prasert",
			Details: models.PackProduct{Name: "rice crackers", Price: 159},
		},
		Avatar:       img("a.png"),
		ProductImage: img("p.png"),
	})
	require.Error(t, err)
	assert.Zero(t, blobs(t, svc.Store))

	var n int64
	require.NoError(t, svc.DB.Model(&models.ElderCardRow{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateCardRollsBackFirstImageWhenSecondIsBad(t *testing.T) {
	svc := newService(t)

	_, err := svc.CreateCard(context.Background(), broker(), CardInput{
		Card: models.ElderCard{
			Name:    "Uncle Prasert",
			Details: models.PackProduct{Name: "rice crackers", Price: 159},
		},
		Avatar:       img("a.png"),
		ProductImage: img("p.gif"),
	})
	assert.ErrorIs(t, err, storage.ErrUnsupportedImage)
	assert.Zero(t, blobs(t, svc.Store))
}

func TestGetCardNotFound(t *testing.T) {
	svc := newService(t)
	_, err := svc.GetCard(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrCardNotFound)
}
