package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/saan-app/saan_be/internal/db/dbtest"
	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/session"
)

type sentEvent struct {
	UserID uuid.UUID
	Type   string
	Data   any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, eventType string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{UserID: userID, Type: eventType, Data: data})
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *TaskService
	db       *gorm.DB
	redis    *miniredis.Miniredis
	notifier *recordingNotifier
	creator  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gdb := dbtest.Open(t)
	n := &recordingNotifier{}
	svc := NewTaskService(gdb, NewSelectionStore(rdb), n)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	return &fixture{svc: svc, db: gdb, redis: mr, notifier: n, creator: uuid.New()}
}

func (f *fixture) card(t *testing.T, details models.CardDetails) models.ElderCard {
	t.Helper()
	card := models.ElderCard{
		ID:          uuid.New(),
		VolunteerID: f.creator,
		Name:        "Grandma Somsri",
		Location:    "Chiang Mai",
		Details:     details,
	}
	row := card.Row()
	require.NoError(t, f.db.Create(&row).Error)
	return card
}

func (f *fixture) packCard(t *testing.T) models.ElderCard {
	return f.card(t, models.PackProduct{Name: "rice crackers", Price: 159})
}

func (f *fixture) postCard(t *testing.T) models.ElderCard {
	return f.card(t, models.PostProduct{Descriptions: []string{"handwoven basket"}})
}

func (f *fixture) taskCount(t *testing.T, cardID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.VolunteerTask{}).Where("elder_id = ?", cardID).Count(&n).Error)
	return n
}

func volunteer() session.Session {
	return session.Session{UserID: uuid.New(), Email: "v@example.com", Role: models.RoleVolunteer}
}

func TestSubmitPackCardFromDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.packCard(t)
	sess := volunteer()

	sel, err := f.svc.Toggle(ctx, sess, card.ID, "pack_item")
	require.NoError(t, err)
	assert.Equal(t, []string{"pack_item"}, sel.Labels())

	view, err := f.svc.Submit(ctx, sess, card.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, card.ID, view.ElderID)
	assert.Equal(t, sess.UserID, view.VolunteerID)
	assert.Equal(t, models.TaskStatusActive, view.Status)
	assert.Equal(t, models.StagePending, view.Stage)

	var rows []models.VolunteerTask
	require.NoError(t, f.db.Where("elder_id = ?", card.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"pack_item"}, []string(rows[0].SelectedTasks))
	assert.Equal(t, models.TaskStatusActive, rows[0].Status)

	// draft is consumed
	after, err := f.svc.Selection(ctx, sess, card.ID)
	require.NoError(t, err)
	assert.True(t, after.Empty())

	assert.Equal(t, []string{EventTaskClaimed}, f.notifier.types())
	assert.Equal(t, f.creator, f.notifier.events[0].UserID)
}

func TestSubmitWithoutSelectionWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.postCard(t)

	_, err := f.svc.Submit(ctx, volunteer(), card.ID, nil)
	assert.ErrorIs(t, err, ErrEmptySelection)

	_, err = f.svc.Submit(ctx, session.Session{}, card.ID, []string{"post_item"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.Zero(t, f.taskCount(t, card.ID))
	assert.Empty(t, f.notifier.types())
}

func TestSubmitUnknownCard(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), volunteer(), uuid.New(), []string{"post_item"})
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestSubmitRejectsSecondActiveClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.postCard(t)

	_, err := f.svc.Submit(ctx, volunteer(), card.ID, []string{"post_item", "add_item"})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, volunteer(), card.ID, []string{"post_item"})
	assert.ErrorIs(t, err, ErrCardClaimed)
	assert.EqualValues(t, 1, f.taskCount(t, card.ID))
}

func TestSubmitConcurrentClaimsOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.postCard(t)

	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Submit(ctx, volunteer(), card.ID, []string{"post_item"})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrCardClaimed)
	}
	assert.Equal(t, 1, ok)
	assert.EqualValues(t, 1, f.taskCount(t, card.ID))
}

func TestSubmitGuardBlocksDuplicateRequest(t *testing.T) {
	f := newFixture(t)
	card := f.postCard(t)
	sess := volunteer()

	require.NoError(t, f.redis.Set(guardKey(sess.UserID, card.ID), "other"))

	_, err := f.svc.Submit(context.Background(), sess, card.ID, []string{"post_item"})
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.Zero(t, f.taskCount(t, card.ID))

	// a foreign guard is left alone
	got, err := f.redis.Get(guardKey(sess.UserID, card.ID))
	require.NoError(t, err)
	assert.Equal(t, "other", got)
}

func TestPackTaskShipsThenCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.packCard(t)
	sess := volunteer()

	view, err := f.svc.Submit(ctx, sess, card.ID, []string{"pack_item"})
	require.NoError(t, err)

	// cannot complete before shipping
	_, err = f.svc.MarkComplete(ctx, sess, view.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	shipped, err := f.svc.MarkShipped(ctx, sess, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageShipped, shipped.Stage)
	assert.Equal(t, models.TaskStatusActive, shipped.Status)
	require.NotNil(t, shipped.ShippedAt)

	done, err := f.svc.MarkComplete(ctx, sess, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, done.Status)
	assert.Equal(t, models.StageComplete, done.Stage)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Card)
	assert.Equal(t, card.ID, done.Card.ID)

	assert.Equal(t, []string{EventTaskClaimed, EventTaskShipped, EventTaskCompleted}, f.notifier.types())

	// finished claims free the card
	_, err = f.svc.Submit(ctx, volunteer(), card.ID, []string{"pack_item"})
	require.NoError(t, err)
}

func TestIllegalTransitionsLeaveTaskUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.postCard(t)
	sess := volunteer()

	view, err := f.svc.Submit(ctx, sess, card.ID, []string{"post_item"})
	require.NoError(t, err)

	// post tasks never ship
	_, err = f.svc.MarkShipped(ctx, sess, view.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.MarkComplete(ctx, sess, view.ID)
	require.NoError(t, err)

	var before models.VolunteerTask
	require.NoError(t, f.db.First(&before, "id = ?", view.ID).Error)

	_, err = f.svc.MarkComplete(ctx, sess, view.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.MarkShipped(ctx, sess, view.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var after models.VolunteerTask
	require.NoError(t, f.db.First(&after, "id = ?", view.ID).Error)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Stage, after.Stage)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestTasksAreOwnerScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.postCard(t)
	owner := volunteer()

	view, err := f.svc.Submit(ctx, owner, card.ID, []string{"post_item"})
	require.NoError(t, err)

	stranger := volunteer()
	_, err = f.svc.Get(ctx, stranger, view.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = f.svc.MarkComplete(ctx, stranger, view.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	list, err := f.svc.List(ctx, stranger, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := volunteer()

	first, err := f.svc.Submit(ctx, sess, f.postCard(t).ID, []string{"post_item"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, sess, f.packCard(t).ID, []string{"pack_item"})
	require.NoError(t, err)
	_, err = f.svc.MarkComplete(ctx, sess, first.ID)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, sess, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, v := range all {
		assert.NotNil(t, v.Card)
	}

	done, err := f.svc.List(ctx, sess, models.TaskStatusDone)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, first.ID, done[0].ID)

	active, err := f.svc.List(ctx, sess, models.TaskStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, models.TaskPackProduct, active[0].Card.TaskType())
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"", "active", "done"} {
		got, err := ParseStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatus(raw), got)
	}
	_, err := ParseStatus("shipped")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
