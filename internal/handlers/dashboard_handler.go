package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/session"
)

type DashboardHandler struct {
	DB *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{DB: db}
}

// Stats returns the counters shown on the home screen. A failed counter
// is logged and reported as zero.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	s := session.From(c)
	tx := h.DB.WithContext(c.UserContext())

	count := func(name string, q *gorm.DB) int64 {
		var n int64
		if err := q.Count(&n).Error; err != nil {
			zap.L().Warn("dashboard counter", zap.String("counter", name), zap.Stringer("user_id", s.UserID), zap.Error(err))
		}
		return n
	}

	elders := count("elders", tx.Model(&models.Elder{}).Where("volunteer_id = ?", s.UserID))
	products := count("products", tx.Model(&models.Product{}).Where("volunteer_id = ?", s.UserID))
	cards := count("cards", tx.Model(&models.ElderCardRow{}).Where("volunteer_id = ?", s.UserID))

	// my cards that someone is currently working on
	claimed := count("claimed_cards", tx.Model(&models.VolunteerTask{}).
		Joins("JOIN elder_cards ON elder_cards.id = volunteer_tasks.elder_id").
		Where("elder_cards.volunteer_id = ?", s.UserID).
		Where("volunteer_tasks.status = ?", models.TaskStatusActive))

	data := fiber.Map{
		"elders":        elders,
		"products":      products,
		"elder_cards":   cards,
		"claimed_cards": claimed,
	}

	if s.Role == models.RoleVolunteer {
		data["active_tasks"] = count("active_tasks", tx.Model(&models.VolunteerTask{}).
			Where("volunteer_id = ? AND status = ?", s.UserID, models.TaskStatusActive))
		data["done_tasks"] = count("done_tasks", tx.Model(&models.VolunteerTask{}).
			Where("volunteer_id = ? AND status = ?", s.UserID, models.TaskStatusDone))
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}
