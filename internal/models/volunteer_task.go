// internal/models/volunteer_task.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusActive TaskStatus = "active"
	TaskStatusDone   TaskStatus = "done"
)

// TaskStage tracks progress inside a status: an active task is pending or
// shipped, a done task is always complete.
type TaskStage string

const (
	StagePending  TaskStage = "pending"
	StageShipped  TaskStage = "shipped"
	StageComplete TaskStage = "complete"
)

// VolunteerTask is a volunteer's claim on an ElderCard. At most one active
// claim may exist per card (idx_volunteer_tasks_active_claim).
type VolunteerTask struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ElderID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_volunteer_tasks_active_claim,where:status = 'active'" json:"elder_id"`
	VolunteerID uuid.UUID `gorm:"type:uuid;not null;index" json:"volunteer_id"`

	SelectedTasks datatypes.JSONSlice[string] `json:"selected_tasks"`

	Status TaskStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Stage  TaskStage  `gorm:"type:varchar(20);not null;default:'pending'" json:"stage"`

	ShippedAt   *time.Time `json:"shipped_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Card *ElderCardRow `gorm:"foreignKey:ElderID" json:"-"`
}

func (t *VolunteerTask) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
