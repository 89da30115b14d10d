package controllers

import (
	"strconv"
	"tutorlink_go/storage"

	"github.com/gofiber/fiber/v2"
)

// ExportArchiveController serves the history of archived attendance exports.
type ExportArchiveController struct {
	archiver *storage.ExportArchiver
}

func NewExportArchiveController(archiver *storage.ExportArchiver) *ExportArchiveController {
	return &ExportArchiveController{archiver: archiver}
}

// List returns archive metadata, newest first
func (ec *ExportArchiveController) List(c *fiber.Ctx) error {
	archives, err := ec.archiver.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list export archives",
		})
	}
	return c.JSON(fiber.Map{"archives": archives, "total": len(archives)})
}

// Download streams an archived workbook from S3
func (ec *ExportArchiveController) Download(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid archive ID",
		})
	}

	reader, fileName, err := ec.archiver.Download(uint(id))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Archive not available",
		})
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	return c.SendStream(reader)
}
