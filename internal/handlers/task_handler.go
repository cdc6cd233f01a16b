package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saan-app/saan_be/internal/services/tasks"
	"github.com/saan-app/saan_be/internal/session"
)

type TaskHandler struct {
	Tasks *tasks.TaskService
}

func NewTaskHandler(t *tasks.TaskService) *TaskHandler {
	return &TaskHandler{Tasks: t}
}

func (h *TaskHandler) List(c *fiber.Ctx) error {
	status, err := tasks.ParseStatus(c.Query("status"))
	if err != nil {
		return serviceError(c, err)
	}
	list, err := h.Tasks.List(c.UserContext(), session.From(c), status)
	if err != nil {
		return serviceError(c, err)
	}
	page, limit := pageParams(c)
	items, meta := paginate(list, page, limit)
	return c.JSON(fiber.Map{"success": true, "data": items, "meta": meta})
}

func (h *TaskHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.Tasks.Get(c.UserContext(), session.From(c), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": t})
}

func (h *TaskHandler) Ship(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.Tasks.MarkShipped(c.UserContext(), session.From(c), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "task shipped", "data": t})
}

func (h *TaskHandler) Complete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.Tasks.MarkComplete(c.UserContext(), session.From(c), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "task completed", "data": t})
}
