package controllers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
	"tutorlink_go/middleware"
	"tutorlink_go/models"
	"tutorlink_go/services"
	"tutorlink_go/store"
	"tutorlink_go/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type CallController struct {
	calls *services.CallStore
}

func NewCallController(calls *services.CallStore) *CallController {
	return &CallController{calls: calls}
}

// CreateCallRequest represents the create call request body
type CreateCallRequest struct {
	TeacherID       uint     `json:"teacherId" validate:"required"`
	CourseID        uint     `json:"courseId" validate:"required"`
	BatchID         uint     `json:"batchId" validate:"required"`
	LessonID        *uint    `json:"lessonId"`
	Date            string   `json:"date" validate:"required"`
	StartTime       string   `json:"startTime" validate:"required"`
	EndTime         string   `json:"endTime" validate:"required"`
	DurationMin     int      `json:"durationMin"`
	Timezone        string   `json:"timezone"`
	MeetingLink     string   `json:"meetingLink"`
	MeetingPassword string   `json:"meetingPassword"`
	Days            []string `json:"days"`
	Repeat          bool     `json:"repeat"`
}

// Create schedules a new call
func (cc *CallController) Create(c *fiber.Ctx) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}

	var req CreateCallRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date, expected YYYY-MM-DD"})
	}

	call := &models.ScheduledCall{
		TeacherID:       req.TeacherID,
		CourseID:        req.CourseID,
		BatchID:         req.BatchID,
		LessonID:        req.LessonID,
		Date:            date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMin:     req.DurationMin,
		Timezone:        req.Timezone,
		MeetingLink:     req.MeetingLink,
		MeetingPassword: req.MeetingPassword,
		Repeat:          req.Repeat,
	}
	if len(req.Days) > 0 {
		if b, err := json.Marshal(req.Days); err == nil {
			call.Days = models.JSON(b)
		}
	}

	created, err := cc.calls.Create(c.UserContext(), caller, call)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "calls", created.ID, fiber.Map{"batchId": created.BatchID})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": created})
}

// List returns calls visible to the caller, optionally filtered
func (cc *CallController) List(c *fiber.Ctx) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}

	var f store.CallFilter
	from, err := utils.ParseDateParam(c.Query("from"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	to, err := utils.ParseDateParam(c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	f.FromDate, f.ToDate = from, to
	if v := c.Query("batchId"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			b := uint(id)
			f.BatchID = &b
		}
	}
	if v := c.Query("teacherId"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			t := uint(id)
			f.TeacherID = &t
		}
	}

	calls, err := cc.calls.List(c.UserContext(), caller, f)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"calls": calls, "total": len(calls)})
}

// Get returns a single call
func (cc *CallController) Get(c *fiber.Ctx) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}
	id, err := callID(c)
	if err != nil {
		return err
	}

	call, err := cc.calls.Get(c.UserContext(), caller, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"call": call})
}

// RescheduleRequest represents the reschedule request body
type RescheduleRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// Reschedule moves a pending call to a new slot, snapshotting the old one
func (cc *CallController) Reschedule(c *fiber.Ctx) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}
	id, err := callID(c)
	if err != nil {
		return err
	}

	var req RescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date, expected YYYY-MM-DD"})
	}

	call, err := cc.calls.Reschedule(c.UserContext(), caller, id, date, req.StartTime, req.EndTime)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "RESCHEDULE", "calls", id, fiber.Map{"newDate": req.Date})

	return c.JSON(fiber.Map{"call": call})
}

// Cancel marks a pending call cancelled
func (cc *CallController) Cancel(c *fiber.Ctx) error {
	return cc.transition(c, "CANCEL", cc.calls.Cancel)
}

// Complete marks a pending call completed
func (cc *CallController) Complete(c *fiber.Ctx) error {
	return cc.transition(c, "COMPLETE", cc.calls.Complete)
}

func (cc *CallController) transition(c *fiber.Ctx, action string, fn func(ctx context.Context, caller services.Caller, callID uint) (*models.ScheduledCall, error)) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}
	id, err := callID(c)
	if err != nil {
		return err
	}

	call, err := fn(c.UserContext(), caller, id)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, action, "calls", id, nil)

	return c.JSON(fiber.Map{"call": call})
}

// Delete soft-deletes a call with no recorded attendance
func (cc *CallController) Delete(c *fiber.Ctx) error {
	caller, err := middleware.CurrentCaller(c)
	if err != nil {
		return err
	}
	id, err := callID(c)
	if err != nil {
		return err
	}

	if err := cc.calls.SoftDelete(c.UserContext(), caller, id); err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "DELETE", "calls", id, nil)

	return c.JSON(fiber.Map{"message": "Call deleted successfully"})
}

func callID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid call id")
	}
	return uint(id), nil
}
