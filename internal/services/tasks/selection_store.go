package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saan-app/saan_be/internal/models"
)

var ErrSubmitInFlight = errors.New("a submission for this card is already in progress")

const (
	draftTTL = 24 * time.Hour
	guardTTL = 30 * time.Second
)

// SelectionStore keeps draft selections and the per-card submit guard in Redis.
type SelectionStore struct {
	RDB *redis.Client
}

func NewSelectionStore(rdb *redis.Client) *SelectionStore {
	return &SelectionStore{RDB: rdb}
}

func draftKey(userID, cardID uuid.UUID) string {
	return fmt.Sprintf("selection:%s:%s", userID, cardID)
}

func guardKey(userID, cardID uuid.UUID) string {
	return fmt.Sprintf("task-submit:%s:%s", userID, cardID)
}

func (s *SelectionStore) Load(ctx context.Context, userID, cardID uuid.UUID, tt models.TaskType) (Selection, error) {
	sel := NewSelection(tt)

	raw, err := s.RDB.Get(ctx, draftKey(userID, cardID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sel, nil
	}
	if err != nil {
		return sel, err
	}

	var labels []string
	if err := json.Unmarshal(raw, &labels); err != nil {
		// unreadable draft, start over
		zap.L().Warn("discarding corrupt selection draft", zap.Stringer("card_id", cardID), zap.Error(err))
		return sel, nil
	}
	for _, l := range labels {
		if !sel.Contains(l) {
			_ = sel.Toggle(l)
		}
	}
	return sel, nil
}

func (s *SelectionStore) Save(ctx context.Context, userID, cardID uuid.UUID, sel Selection) error {
	if sel.Empty() {
		return s.Clear(ctx, userID, cardID)
	}
	b, err := json.Marshal(sel.Labels())
	if err != nil {
		return err
	}
	return s.RDB.Set(ctx, draftKey(userID, cardID), b, draftTTL).Err()
}

func (s *SelectionStore) Clear(ctx context.Context, userID, cardID uuid.UUID) error {
	return s.RDB.Del(ctx, draftKey(userID, cardID)).Err()
}

// Acquire takes the submit guard for (user, card). The returned release
// must be called once the submission finishes.
func (s *SelectionStore) Acquire(ctx context.Context, userID, cardID uuid.UUID) (func(), error) {
	key := guardKey(userID, cardID)
	token := uuid.NewString()

	ok, err := s.RDB.SetNX(ctx, key, token, guardTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubmitInFlight
	}

	return func() {
		// only delete our own guard; it may have expired and been retaken
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cur, err := s.RDB.Get(rctx, key).Result(); err == nil && cur == token {
			_ = s.RDB.Del(rctx, key).Err()
		}
	}, nil
}
