package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/saan-app/saan_be/internal/db"
	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/session"
)

var (
	ErrUnauthenticated   = errors.New("login required")
	ErrCardNotFound      = errors.New("elder card not found")
	ErrCardClaimed       = errors.New("elder card already has an active volunteer")
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("task cannot move to that stage")
	ErrInvalidStatus     = errors.New("unknown task status")
)

// Event names sent to the card creator.
const (
	EventTaskClaimed   = "task_claimed"
	EventTaskShipped   = "task_shipped"
	EventTaskCompleted = "task_completed"
)

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, data any) error
}

// TaskView is a task with its card, as listed to the volunteer.
type TaskView struct {
	models.VolunteerTask
	Card *models.ElderCard `json:"elder_card,omitempty"`
}

type TaskService struct {
	DB         *gorm.DB
	Selections *SelectionStore
	Notifier   Notifier

	now func() time.Time
}

func NewTaskService(db *gorm.DB, selections *SelectionStore, notifier Notifier) *TaskService {
	return &TaskService{DB: db, Selections: selections, Notifier: notifier, now: time.Now}
}

func (s *TaskService) loadCard(ctx context.Context, id uuid.UUID) (models.ElderCard, error) {
	var row models.ElderCardRow
	if err := s.DB.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ElderCard{}, ErrCardNotFound
		}
		return models.ElderCard{}, err
	}
	return row.Card()
}

// Selection returns the caller's draft selection for a card.
func (s *TaskService) Selection(ctx context.Context, sess session.Session, cardID uuid.UUID) (Selection, error) {
	if !sess.Authenticated() {
		return Selection{}, ErrUnauthenticated
	}
	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return Selection{}, err
	}
	return s.Selections.Load(ctx, sess.UserID, cardID, card.TaskType())
}

// Toggle flips one label in the caller's draft selection and persists it.
func (s *TaskService) Toggle(ctx context.Context, sess session.Session, cardID uuid.UUID, label string) (Selection, error) {
	sel, err := s.Selection(ctx, sess, cardID)
	if err != nil {
		return Selection{}, err
	}
	if err := sel.Toggle(label); err != nil {
		return Selection{}, err
	}
	if err := s.Selections.Save(ctx, sess.UserID, cardID, sel); err != nil {
		return Selection{}, fmt.Errorf("save selection: %w", err)
	}
	return sel, nil
}

// Submit claims a card for the caller with the given labels, or with the
// stored draft when labels is empty. It writes exactly one row or none.
func (s *TaskService) Submit(ctx context.Context, sess session.Session, cardID uuid.UUID, labels []string) (*TaskView, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}

	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	if len(labels) == 0 {
		draft, err := s.Selections.Load(ctx, sess.UserID, cardID, card.TaskType())
		if err != nil {
			return nil, fmt.Errorf("load selection: %w", err)
		}
		labels = draft.Labels()
	}

	labels, err = NormalizeLabels(card.TaskType(), labels)
	if err != nil {
		return nil, err
	}

	release, err := s.Selections.Acquire(ctx, sess.UserID, cardID)
	if err != nil {
		return nil, err
	}
	defer release()

	task := models.VolunteerTask{
		ElderID:       cardID,
		VolunteerID:   sess.UserID,
		SelectedTasks: datatypes.NewJSONSlice(labels),
		Status:        models.TaskStatusActive,
		Stage:         models.StagePending,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&models.VolunteerTask{}).
			Where("elder_id = ? AND status = ?", cardID, models.TaskStatusActive).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrCardClaimed
		}

		if err := tx.Create(&task).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return ErrCardClaimed
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrCardClaimed) {
			zap.L().Error("create volunteer task", zap.Stringer("card_id", cardID), zap.Error(err))
		}
		return nil, err
	}

	if err := s.Selections.Clear(ctx, sess.UserID, cardID); err != nil {
		zap.L().Warn("clear selection draft", zap.Error(err))
	}

	view := &TaskView{VolunteerTask: task, Card: &card}
	s.notify(ctx, card.VolunteerID, EventTaskClaimed, view)
	return view, nil
}

func (s *TaskService) notify(ctx context.Context, userID uuid.UUID, eventType string, view *TaskView) {
	if s.Notifier == nil {
		return
	}
	data := map[string]any{
		"task_id":      view.ID,
		"elder_id":     view.ElderID,
		"volunteer_id": view.VolunteerID,
		"status":       view.Status,
		"stage":        view.Stage,
	}
	if err := s.Notifier.Notify(ctx, userID, eventType, data); err != nil {
		zap.L().Warn("notify task event", zap.String("event", eventType), zap.Error(err))
	}
}

// ParseStatus accepts "", "active" or "done"; "" means every status.
func ParseStatus(raw string) (models.TaskStatus, error) {
	switch models.TaskStatus(raw) {
	case "", models.TaskStatusActive, models.TaskStatusDone:
		return models.TaskStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// List returns the caller's tasks, newest first.
func (s *TaskService) List(ctx context.Context, sess session.Session, status models.TaskStatus) ([]TaskView, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}

	q := s.DB.WithContext(ctx).
		Preload("Card").
		Where("volunteer_id = ?", sess.UserID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var rows []models.VolunteerTask
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	out := make([]TaskView, 0, len(rows))
	for _, t := range rows {
		out = append(out, toView(t))
	}
	return out, nil
}

func (s *TaskService) Get(ctx context.Context, sess session.Session, id uuid.UUID) (*TaskView, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}

	var t models.VolunteerTask
	if err := s.DB.WithContext(ctx).
		Preload("Card").
		First(&t, "id = ? AND volunteer_id = ?", id, sess.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	v := toView(t)
	return &v, nil
}

func toView(t models.VolunteerTask) TaskView {
	v := TaskView{VolunteerTask: t}
	if t.Card != nil {
		if card, err := t.Card.Card(); err == nil {
			v.Card = &card
		} else {
			zap.L().Warn("task card is malformed", zap.Stringer("task_id", t.ID), zap.Error(err))
		}
	}
	v.VolunteerTask.Card = nil
	return v
}

// MarkShipped moves a pack_product task from pending to shipped.
func (s *TaskService) MarkShipped(ctx context.Context, sess session.Session, id uuid.UUID) (*TaskView, error) {
	view, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if view.Card == nil || view.Card.TaskType() != models.TaskPackProduct {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	err = s.transition(ctx, sess, id, models.TaskStatusActive, models.StagePending, map[string]any{
		"stage":      models.StageShipped,
		"shipped_at": now,
		"updated_at": now,
	})
	if err != nil {
		return nil, err
	}
	return s.reloadAndNotify(ctx, sess, id, view.Card.VolunteerID, EventTaskShipped)
}

// MarkComplete finishes a task: post_product from pending, pack_product
// only after it has shipped.
func (s *TaskService) MarkComplete(ctx context.Context, sess session.Session, id uuid.UUID) (*TaskView, error) {
	view, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if view.Card == nil {
		return nil, ErrInvalidTransition
	}

	from := models.StagePending
	if view.Card.TaskType() == models.TaskPackProduct {
		from = models.StageShipped
	}

	now := s.now()
	err = s.transition(ctx, sess, id, models.TaskStatusActive, from, map[string]any{
		"status":       models.TaskStatusDone,
		"stage":        models.StageComplete,
		"completed_at": now,
		"updated_at":   now,
	})
	if err != nil {
		return nil, err
	}
	return s.reloadAndNotify(ctx, sess, id, view.Card.VolunteerID, EventTaskCompleted)
}

// transition applies updates only if the row is still in (status, stage),
// so of two concurrent writers exactly one succeeds.
func (s *TaskService) transition(ctx context.Context, sess session.Session, id uuid.UUID, status models.TaskStatus, stage models.TaskStage, updates map[string]any) error {
	res := s.DB.WithContext(ctx).
		Model(&models.VolunteerTask{}).
		Where("id = ? AND volunteer_id = ? AND status = ? AND stage = ?", id, sess.UserID, status, stage).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (s *TaskService) reloadAndNotify(ctx context.Context, sess session.Session, id, creator uuid.UUID, event string) (*TaskView, error) {
	view, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, creator, event, view)
	return view, nil
}
