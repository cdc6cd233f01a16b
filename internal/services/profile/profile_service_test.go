package profile

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saan-app/saan_be/internal/db/dbtest"
	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/session"
	"github.com/saan-app/saan_be/internal/storage"
	"github.com/saan-app/saan_be/internal/utils"
)

func newService(t *testing.T) (*ProfileService, session.Session) {
	t.Helper()
	gdb := dbtest.Open(t)
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	u := models.User{Email: "new@example.com", IsActive: true}
	require.NoError(t, gdb.Create(&u).Error)
	_, err = CreateForUser(gdb, u.ID, " New User ")
	require.NoError(t, err)

	return NewProfileService(gdb, store), session.Session{UserID: u.ID, Email: u.Email}
}

func validInput(role models.Role) RoleInput {
	return RoleInput{
		Role:     role,
		Phone:    "081-234 5678",
		Province: "Chiang Mai",
		District: "Mueang",
	}
}

func TestCreateForUserStartsWithoutRole(t *testing.T) {
	svc, sess := newService(t)
	p, err := svc.Get(context.Background(), sess.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUnset, p.Role)
	assert.Equal(t, "New User", p.FullName)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestRegisterRoleOnce(t *testing.T) {
	svc, sess := newService(t)
	ctx := context.Background()

	in := validInput(" Volunteer ")
	in.FullName = "Nok"
	p, err := svc.RegisterRole(ctx, sess, in, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVolunteer, p.Role)
	assert.Equal(t, "0812345678", p.Phone)
	assert.Equal(t, "Nok", p.FullName)

	_, err = svc.RegisterRole(ctx, sess, validInput(models.RoleBroker), nil)
	assert.ErrorIs(t, err, ErrRoleAlreadySet)

	p, err = svc.Get(ctx, sess.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVolunteer, p.Role)
}

func TestRegisterRoleStoresAvatar(t *testing.T) {
	svc, sess := newService(t)
	img := &storage.File{Name: "me.png", Size: 3, Reader: strings.NewReader("png")}

	p, err := svc.RegisterRole(context.Background(), sess, validInput(models.RoleBroker), img)
	require.NoError(t, err)
	key, ok := svc.Store.KeyFromURL(p.AvatarURL)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(key, "profiles/"+sess.UserID.String()+"/"))
}

func TestRegisterRoleValidation(t *testing.T) {
	svc, sess := newService(t)

	_, err := svc.RegisterRole(context.Background(), sess, RoleInput{Role: "admin", Phone: "12ab"}, nil)
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve)
	for _, field := range []string{"role", "phone", "province", "district"} {
		assert.Contains(t, ve.Fields, field)
	}

	_, err = svc.RegisterRole(context.Background(), session.Session{}, validInput(models.RoleBroker), nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
