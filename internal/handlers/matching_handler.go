package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saan-app/saan_be/internal/services/matching"
	"github.com/saan-app/saan_be/internal/services/tasks"
	"github.com/saan-app/saan_be/internal/session"
)

type MatchingHandler struct {
	Matching *matching.MatchingService
	Tasks    *tasks.TaskService
}

func NewMatchingHandler(m *matching.MatchingService, t *tasks.TaskService) *MatchingHandler {
	return &MatchingHandler{Matching: m, Tasks: t}
}

// Feed lists cards through the filter pipeline. The normalized criteria
// are echoed so a client can drop responses to superseded filters.
func (h *MatchingHandler) Feed(c *fiber.Ctx) error {
	crit, err := matching.ParseCriteria(
		c.Query("task_type"),
		c.Query("distance"),
		c.Query("q"),
		c.Query("lat"),
		c.Query("lng"),
	)
	if err != nil {
		return serviceError(c, err)
	}

	cands, err := h.Matching.Feed(c.UserContext(), crit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":  false,
			"message":  "failed to load cards",
			"data":     []matching.Candidate{},
			"criteria": crit,
		})
	}

	page, limit := pageParams(c)
	items, meta := paginate(cands, page, limit)
	return c.JSON(fiber.Map{
		"success":  true,
		"data":     items,
		"meta":     meta,
		"criteria": crit,
	})
}

func (h *MatchingHandler) Card(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	crit, err := matching.ParseCriteria("", "", "", c.Query("lat"), c.Query("lng"))
	if err != nil {
		return serviceError(c, err)
	}

	cand, err := h.Matching.Card(c.UserContext(), id, crit.Origin)
	if err != nil {
		return serviceError(c, err)
	}

	sel, err := h.Tasks.Selection(c.UserContext(), session.From(c), id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"card":        cand.Card,
			"distance_km": cand.DistanceKM,
			"labels":      tasks.DefaultLabels[cand.Card.TaskType()],
			"selected":    sel.Labels(),
		},
	})
}

type toggleReq struct {
	Label string `json:"label"`
}

func (h *MatchingHandler) ToggleSelection(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req toggleReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	sel, err := h.Tasks.Toggle(c.UserContext(), session.From(c), id, req.Label)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"task_type": sel.TaskType(),
			"selected":  sel.Labels(),
		},
	})
}

type submitReq struct {
	Labels []string `json:"selected_tasks"`
}

// Submit claims the card. An empty body submits the stored selection.
func (h *MatchingHandler) Submit(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req submitReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid body")
		}
	}

	task, err := h.Tasks.Submit(c.UserContext(), session.From(c), id, req.Labels)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "task accepted",
		"data":    task,
	})
}
