package handlers

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/services/elder"
	"github.com/saan-app/saan_be/internal/services/matching"
	"github.com/saan-app/saan_be/internal/services/otp"
	"github.com/saan-app/saan_be/internal/services/product"
	"github.com/saan-app/saan_be/internal/services/profile"
	"github.com/saan-app/saan_be/internal/services/tasks"
	"github.com/saan-app/saan_be/internal/storage"
	"github.com/saan-app/saan_be/internal/utils"
)

func validationFail(c *fiber.Ctx, errs utils.FieldErrors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "validation error",
		"errors":  errs,
	})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func fail500(c *fiber.Ctx, message string, err error) error {
	zap.L().Error(message, zap.String("path", c.Path()), zap.Error(err))
	return fail(c, fiber.StatusInternalServerError, message)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tasks.ErrUnauthenticated),
		errors.Is(err, elder.ErrUnauthenticated),
		errors.Is(err, product.ErrUnauthenticated),
		errors.Is(err, profile.ErrUnauthenticated):
		return fiber.StatusUnauthorized

	case errors.Is(err, matching.ErrInvalidCriteria),
		errors.Is(err, tasks.ErrEmptySelection),
		errors.Is(err, tasks.ErrTooManyLabels),
		errors.Is(err, tasks.ErrEmptyLabel),
		errors.Is(err, tasks.ErrInvalidStatus),
		errors.Is(err, models.ErrInvalidCard),
		errors.Is(err, models.ErrUnknownTaskType),
		errors.Is(err, profile.ErrInvalidRole),
		errors.Is(err, otp.ErrInvalidPurpose),
		errors.Is(err, otp.ErrCodeExpired),
		errors.Is(err, otp.ErrCodeMismatch),
		errors.Is(err, otp.ErrTooManyTries),
		errors.Is(err, utils.ErrInvalidPublicID),
		storage.IsClientError(err):
		return fiber.StatusBadRequest

	case errors.Is(err, matching.ErrCardNotFound),
		errors.Is(err, tasks.ErrCardNotFound),
		errors.Is(err, tasks.ErrTaskNotFound),
		errors.Is(err, elder.ErrElderNotFound),
		errors.Is(err, elder.ErrCardNotFound),
		errors.Is(err, product.ErrElderNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, profile.ErrProfileNotFound):
		return fiber.StatusNotFound

	case errors.Is(err, tasks.ErrCardClaimed),
		errors.Is(err, tasks.ErrSubmitInFlight),
		errors.Is(err, tasks.ErrInvalidTransition),
		errors.Is(err, profile.ErrRoleAlreadySet):
		return fiber.StatusConflict

	case errors.Is(err, otp.ErrResendTooSoon):
		return fiber.StatusTooManyRequests
	}
	return fiber.StatusInternalServerError
}

// serviceError renders err in the response envelope. Validation errors
// keep their per-field messages.
func serviceError(c *fiber.Ctx, err error) error {
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		return validationFail(c, ve.Fields)
	}

	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		return fail500(c, "internal server error", err)
	}
	return fail(c, status, err.Error())
}

// ErrorHandler renders errors that escape handlers and middleware.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		zap.L().Error("unhandled error", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		return fail(c, code, "internal server error")
	}
	return fail(c, code, err.Error())
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// formImage opens an optional multipart image. The returned close func is
// always safe to call.
func formImage(c *fiber.Ctx, field string) (*storage.File, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		// missing field or non-multipart body
		return nil, noop, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	return &storage.File{Name: fh.Filename, Size: fh.Size, Reader: f}, func() { _ = f.Close() }, nil
}

// optionalFloat parses a form number; "" means absent.
func optionalFloat(fe utils.FieldErrors, field, raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		fe.Add(field, field+" must be a number")
		return nil
	}
	return &v
}

func optionalInt(fe utils.FieldErrors, field, raw string) *int {
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		fe.Add(field, field+" must be a whole number")
		return nil
	}
	return &v
}

// pageParams reads page/limit with the defaults used by every list endpoint.
func pageParams(c *fiber.Ctx) (page, limit int) {
	page = c.QueryInt("page", 1)
	limit = c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func paginate[T any](items []T, page, limit int) ([]T, fiber.Map) {
	total := len(items)
	totalPages := (total + limit - 1) / limit
	// compare pages before multiplying so a huge page cannot overflow
	start := total
	if page <= totalPages {
		start = (page - 1) * limit
	}
	end := start + limit
	if end > total {
		end = total
	}
	return items[start:end], fiber.Map{
		"page":        page,
		"limit":       limit,
		"total":       total,
		"total_pages": totalPages,
	}
}
