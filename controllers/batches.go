package controllers

import (
	"errors"
	"strconv"
	"tutorlink_go/store"

	"github.com/gofiber/fiber/v2"
)

// BatchController exposes read-only reference data for pickers and
// report filters.
type BatchController struct {
	refs store.ReferenceRepository
}

func NewBatchController(refs store.ReferenceRepository) *BatchController {
	return &BatchController{refs: refs}
}

// List returns all batches
func (bc *BatchController) List(c *fiber.Ctx) error {
	batches, err := bc.refs.ListBatches(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch batches",
		})
	}
	return c.JSON(fiber.Map{"batches": batches, "total": len(batches)})
}

// Get returns one batch with its course, teacher, and roster
func (bc *BatchController) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid batch ID",
		})
	}

	batch, err := bc.refs.GetBatch(c.UserContext(), uint(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Batch not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch batch",
		})
	}
	return c.JSON(fiber.Map{"batch": batch})
}
