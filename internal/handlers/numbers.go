package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/telephony/internal/middleware"
	"github.com/example/telephony/internal/services"
	"github.com/example/telephony/internal/utils"
)

// NumberHandler serves the virtual phone number endpoints. Every handler
// passes the caller's identity down explicitly.
type NumberHandler struct {
	numbers *services.NumberService
}

// NewNumberHandler constructs NumberHandler.
func NewNumberHandler(numbers *services.NumberService) *NumberHandler {
	return &NumberHandler{numbers: numbers}
}

// ListNumbers returns the caller's numbers, all of them unless page or limit is given.
func (h *NumberHandler) ListNumbers(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	filter := services.ListFilter{Status: c.Query("status")}
	pg, paged := utils.ParsePagination(c)
	if paged {
		filter.Limit = pg.Limit
		filter.Offset = pg.Offset
	}

	items, total, err := h.numbers.List(c.UserContext(), userID, filter)
	if err != nil {
		return err
	}

	pagination := fiber.Map{"total_items": total}
	if paged {
		pagination["current_page"] = pg.Page
		pagination["items_per_page"] = pg.Limit
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       items,
		"pagination": pagination,
	})
}

// CreateNumber stores a number owned by the caller.
func (h *NumberHandler) CreateNumber(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.NumberInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	number, err := h.numbers.Create(c.UserContext(), userID, req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": number})
}

// GetNumber returns one of the caller's numbers.
func (h *NumberHandler) GetNumber(c *fiber.Ctx) error {
	userID, id, err := ownerAndID(c)
	if err != nil {
		return err
	}

	number, err := h.numbers.Get(c.UserContext(), userID, id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": number})
}

// UpdateNumber replaces all writable fields of one of the caller's numbers.
func (h *NumberHandler) UpdateNumber(c *fiber.Ctx) error {
	userID, id, err := ownerAndID(c)
	if err != nil {
		return err
	}

	var req services.NumberInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	number, err := h.numbers.Update(c.UserContext(), userID, id, req)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": number})
}

// PatchNumber updates the supplied fields of one of the caller's numbers.
func (h *NumberHandler) PatchNumber(c *fiber.Ctx) error {
	userID, id, err := ownerAndID(c)
	if err != nil {
		return err
	}

	var req services.NumberPatch
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	number, err := h.numbers.Patch(c.UserContext(), userID, id, req)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": number})
}

// DeleteNumber removes one of the caller's numbers.
func (h *NumberHandler) DeleteNumber(c *fiber.Ctx) error {
	userID, id, err := ownerAndID(c)
	if err != nil {
		return err
	}

	if err := h.numbers.Delete(c.UserContext(), userID, id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func ownerAndID(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	return userID, id, nil
}
