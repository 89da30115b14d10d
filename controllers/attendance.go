package controllers

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
	"tutorlink_go/middleware"
	"tutorlink_go/services"
	"tutorlink_go/storage"
	"tutorlink_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type AttendanceController struct {
	ledger   *services.AttendanceLedger
	reports  *services.ReportEngine
	archiver *storage.ExportArchiver
}

func NewAttendanceController(ledger *services.AttendanceLedger, reports *services.ReportEngine, archiver *storage.ExportArchiver) *AttendanceController {
	return &AttendanceController{ledger: ledger, reports: reports, archiver: archiver}
}

// MarkRequest represents the attendance mark request body
type MarkRequest struct {
	IdempotencyKey string               `json:"idempotencyKey"`
	Attendances    []services.MarkEntry `json:"attendances" validate:"required,min=1,dive"`
}

// Mark records attendance for a call. Safe to retry: the same
// idempotency key always returns the same row.
func (ac *AttendanceController) Mark(c *fiber.Ctx) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}
	id, err := callID(c)
	if err != nil {
		return err
	}

	var req MarkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	// Header wins over body so proxies can inject retry-safe keys
	key := c.Get("Idempotency-Key")
	if key == "" {
		key = req.IdempotencyKey
	}

	att, err := ac.ledger.Mark(c.UserContext(), caller, id, key, req.Attendances)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "MARK", "attendance", id, fiber.Map{"entries": len(req.Attendances)})

	return c.JSON(fiber.Map{"attendance": att})
}

// Record returns the attendance row for a call, if any
func (ac *AttendanceController) Record(c *fiber.Ctx) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}
	id, err := callID(c)
	if err != nil {
		return err
	}

	att, err := ac.ledger.Record(c.UserContext(), caller, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"attendance": att})
}

// Query returns role-shaped attendance views over an inclusive date range
func (ac *AttendanceController) Query(c *fiber.Ctx) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}
	f, err := parseReportFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := ac.reports.Query(c.UserContext(), caller, f)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(result)
}

// Pivot returns the student x date matrix. A missing cell means no record,
// not an absence.
func (ac *AttendanceController) Pivot(c *fiber.Ctx) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}
	f, err := parseReportFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	pivot, err := ac.reports.Pivot(c.UserContext(), caller, f)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(pivot)
}

// Export streams an XLSX workbook of the filtered records and archives a
// copy to S3 in the background.
func (ac *AttendanceController) Export(c *fiber.Ctx) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}
	f, err := parseReportFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sheets, err := ac.reports.ExportSheets(c.UserContext(), caller, f)
	if err != nil {
		return serviceError(c, err)
	}

	workbook, err := services.BuildWorkbook(sheets)
	if err != nil {
		logrus.WithError(err).Error("failed to build export workbook")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build export"})
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		logrus.WithError(err).Error("failed to serialize export workbook")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build export"})
	}

	fileName := fmt.Sprintf("attendance_%s.xlsx", time.Now().Format("20060102_150405"))

	if ac.archiver != nil {
		rowCount := 0
		for _, s := range sheets {
			if len(s.Rows) > 0 {
				rowCount += len(s.Rows) - 1 // minus header
			}
		}
		from, to := time.Time{}, time.Time{}
		if f.FromDate != nil {
			from = *f.FromDate
		}
		if f.ToDate != nil {
			to = *f.ToDate
		}
		data := make([]byte, buf.Len())
		copy(data, buf.Bytes())
		go ac.archiver.Archive(fileName, from, to, rowCount, data)
	}

	middleware.LogActivity(c, "EXPORT", "attendance", 0, fiber.Map{"sheets": len(sheets)})

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	return c.Send(buf.Bytes())
}

func parseReportFilter(c *fiber.Ctx) (services.ReportFilter, error) {
	var f services.ReportFilter

	from, err := utils.ParseDateParam(c.Query("from"))
	if err != nil {
		return f, err
	}
	to, err := utils.ParseDateParam(c.Query("to"))
	if err != nil {
		return f, err
	}
	f.FromDate, f.ToDate = from, to

	uintParam := func(name string) (*uint, error) {
		v := c.Query(name)
		if v == "" {
			return nil, nil
		}
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid %s", name)
		}
		u := uint(id)
		return &u, nil
	}

	if f.BatchID, err = uintParam("batchId"); err != nil {
		return f, err
	}
	if f.StudentID, err = uintParam("studentId"); err != nil {
		return f, err
	}
	if f.CallID, err = uintParam("callId"); err != nil {
		return f, err
	}
	if f.TeacherID, err = uintParam("teacherId"); err != nil {
		return f, err
	}
	return f, nil
}
