package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/services/product"
	"github.com/saan-app/saan_be/internal/session"
	"github.com/saan-app/saan_be/internal/utils"
)

type ProductHandler struct {
	Products *product.ProductService
	IDs      *utils.IDCodec
}

func NewProductHandler(products *product.ProductService, ids *utils.IDCodec) *ProductHandler {
	return &ProductHandler{Products: products, IDs: ids}
}

type productReq struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
	Price       string `json:"price" form:"price"`
}

// productJSON replaces the row id with its public token.
func (h *ProductHandler) productJSON(p models.Product) (fiber.Map, error) {
	pid, err := h.IDs.Encode(p.ID)
	if err != nil {
		return nil, err
	}
	out := fiber.Map{
		"id":           pid,
		"elder_id":     p.ElderID,
		"volunteer_id": p.VolunteerID,
		"owner_role":   p.OwnerRole,
		"name":         p.Name,
		"description":  p.Description,
		"price":        p.Price,
		"image_url":    p.ImageURL,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}
	if p.Elder != nil {
		out["elder"] = fiber.Map{
			"id":         p.Elder.ID,
			"name":       p.Elder.FullName(),
			"province":   p.Elder.Province,
			"district":   p.Elder.District,
			"avatar_url": p.Elder.AvatarURL,
		}
	}
	return out, nil
}

func (h *ProductHandler) productID(c *fiber.Ctx) (uint, error) {
	id, err := h.IDs.Decode(c.Params("id"))
	if err != nil {
		return 0, fiber.NewError(fiber.StatusNotFound, "product not found")
	}
	return id, nil
}

func (h *ProductHandler) ListByElder(c *fiber.Ctx) error {
	elderID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.Products.ListByElder(c.UserContext(), session.From(c), elderID)
	if err != nil {
		return serviceError(c, err)
	}

	page, limit := pageParams(c)
	list, meta := paginate(list, page, limit)

	items := make([]fiber.Map, 0, len(list))
	for _, p := range list {
		m, err := h.productJSON(p)
		if err != nil {
			return fail500(c, "failed to encode product id", err)
		}
		items = append(items, m)
	}
	return c.JSON(fiber.Map{"success": true, "data": items, "meta": meta})
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	elderID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req productReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	image, closeImage, err := formImage(c, "image")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid image upload")
	}
	defer closeImage()

	p, err := h.Products.Create(c.UserContext(), session.From(c), elderID, product.Input{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	}, image)
	if err != nil {
		return serviceError(c, err)
	}

	m, err := h.productJSON(*p)
	if err != nil {
		return fail500(c, "failed to encode product id", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "product created",
		"data":    m,
	})
}

// GetDetail is public.
func (h *ProductHandler) GetDetail(c *fiber.Ctx) error {
	id, err := h.productID(c)
	if err != nil {
		return err
	}
	p, err := h.Products.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err)
	}
	m, err := h.productJSON(*p)
	if err != nil {
		return fail500(c, "failed to encode product id", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": m})
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, err := h.productID(c)
	if err != nil {
		return err
	}
	var req productReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	image, closeImage, err := formImage(c, "image")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid image upload")
	}
	defer closeImage()

	p, err := h.Products.Update(c.UserContext(), session.From(c), id, product.Input{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	}, image)
	if err != nil {
		return serviceError(c, err)
	}

	m, err := h.productJSON(*p)
	if err != nil {
		return fail500(c, "failed to encode product id", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "product updated",
		"data":    m,
	})
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, err := h.productID(c)
	if err != nil {
		return err
	}
	if err := h.Products.Delete(c.UserContext(), session.From(c), id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "product deleted",
	})
}
