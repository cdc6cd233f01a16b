package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/services/elder"
	"github.com/saan-app/saan_be/internal/session"
	"github.com/saan-app/saan_be/internal/utils"
)

type ElderHandler struct {
	Elders *elder.ElderService
}

func NewElderHandler(elders *elder.ElderService) *ElderHandler {
	return &ElderHandler{Elders: elders}
}

type elderReq struct {
	FirstName   string `json:"first_name" form:"first_name"`
	LastName    string `json:"last_name" form:"last_name"`
	Age         string `json:"age" form:"age"`
	Phone       string `json:"phone" form:"phone"`
	Province    string `json:"province" form:"province"`
	District    string `json:"district" form:"district"`
	Subdistrict string `json:"subdistrict" form:"subdistrict"`
}

func (h *ElderHandler) List(c *fiber.Ctx) error {
	out, err := h.Elders.ListElders(c.UserContext(), session.From(c))
	if err != nil {
		return serviceError(c, err)
	}
	page, limit := pageParams(c)
	items, meta := paginate(out, page, limit)
	return c.JSON(fiber.Map{"success": true, "data": items, "meta": meta})
}

func (h *ElderHandler) Create(c *fiber.Ctx) error {
	var req elderReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	errs := utils.FieldErrors{}
	age := optionalInt(errs, "age", strings.TrimSpace(req.Age))
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	avatar, closeAvatar, err := formImage(c, "avatar")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid avatar upload")
	}
	defer closeAvatar()

	e, err := h.Elders.CreateElder(c.UserContext(), session.From(c), elder.ElderInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Age:         age,
		Phone:       req.Phone,
		Province:    req.Province,
		District:    req.District,
		Subdistrict: req.Subdistrict,
	}, avatar)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "elder created",
		"data":    e,
	})
}

func (h *ElderHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	e, err := h.Elders.GetElder(c.UserContext(), session.From(c), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": e})
}

type elderCardReq struct {
	TaskType   string `json:"task_type" form:"task_type"`
	Name       string `json:"name" form:"name"`
	Phone      string `json:"phone" form:"phone"`
	Location   string `json:"location" form:"location"`
	DistanceKM string `json:"distance_km" form:"distance_km"`
	Latitude   string `json:"latitude" form:"latitude"`
	Longitude  string `json:"longitude" form:"longitude"`

	ProductDescriptions []string `json:"product_descriptions" form:"product_descriptions"`

	ProductName   string `json:"product_name" form:"product_name"`
	ProductPrice  string `json:"product_price" form:"product_price"`
	MarketShare   string `json:"market_share" form:"market_share"`
	ProductDetail string `json:"product_detail" form:"product_detail"`
}

// card turns the flat form into the tagged card, collecting field errors.
func (r elderCardReq) card() (models.ElderCard, utils.FieldErrors) {
	errs := utils.FieldErrors{}
	card := models.ElderCard{
		Name:       strings.TrimSpace(r.Name),
		Phone:      strings.TrimSpace(r.Phone),
		Location:   strings.TrimSpace(r.Location),
		DistanceKM: optionalFloat(errs, "distance_km", strings.TrimSpace(r.DistanceKM)),
		Latitude:   optionalFloat(errs, "latitude", strings.TrimSpace(r.Latitude)),
		Longitude:  optionalFloat(errs, "longitude", strings.TrimSpace(r.Longitude)),
	}
	if card.Name == "" {
		errs.Add("name", "name is required")
	}

	switch models.TaskType(strings.TrimSpace(r.TaskType)) {
	case models.TaskPostProduct:
		descs := make([]string, 0, len(r.ProductDescriptions))
		for _, d := range r.ProductDescriptions {
			if d = strings.TrimSpace(d); d != "" {
				descs = append(descs, d)
			}
		}
		card.Details = models.PostProduct{Descriptions: descs}

	case models.TaskPackProduct:
		pack := models.PackProduct{
			Name:        strings.TrimSpace(r.ProductName),
			MarketShare: optionalFloat(errs, "market_share", strings.TrimSpace(r.MarketShare)),
			Detail:      strings.TrimSpace(r.ProductDetail),
		}
		if pack.Name == "" {
			errs.Add("product_name", "product name is required")
		}
		if price := optionalFloat(errs, "product_price", strings.TrimSpace(r.ProductPrice)); price != nil {
			pack.Price = *price
		} else if strings.TrimSpace(r.ProductPrice) == "" {
			errs.Add("product_price", "product price is required")
		}
		card.Details = pack

	default:
		errs.Add("task_type", "task_type must be post_product or pack_product")
	}
	return card, errs
}

func (h *ElderHandler) CreateCard(c *fiber.Ctx) error {
	var req elderCardReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	card, errs := req.card()
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	avatar, closeAvatar, err := formImage(c, "avatar")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid avatar upload")
	}
	defer closeAvatar()

	productImage, closeImage, err := formImage(c, "product_image")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid product image upload")
	}
	defer closeImage()

	created, err := h.Elders.CreateCard(c.UserContext(), session.From(c), elder.CardInput{
		Card:         card,
		Avatar:       avatar,
		ProductImage: productImage,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "elder card created",
		"data":    created,
	})
}

func (h *ElderHandler) ListCards(c *fiber.Ctx) error {
	out, err := h.Elders.ListCards(c.UserContext(), session.From(c))
	if err != nil {
		return serviceError(c, err)
	}
	page, limit := pageParams(c)
	items, meta := paginate(out, page, limit)
	return c.JSON(fiber.Map{"success": true, "data": items, "meta": meta})
}

func (h *ElderHandler) GetCard(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	card, err := h.Elders.GetCard(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": card})
}
