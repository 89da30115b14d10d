package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tutorlink_go/models"
	"tutorlink_go/services/notifications"
	"tutorlink_go/services/websocket"
	"tutorlink_go/store"
)

// AttendanceNotifier fans out post-mark events: a stored notification for
// every student on the call plus a live event for connected staff clients.
type AttendanceNotifier struct {
	roster   store.ReferenceRepository
	notifier *notifications.Service
	hub      *websocket.Hub
}

func NewAttendanceNotifier(roster store.ReferenceRepository, notifier *notifications.Service, hub *websocket.Hub) *AttendanceNotifier {
	return &AttendanceNotifier{roster: roster, notifier: notifier, hub: hub}
}

// AttendanceMarked runs outside the ledger transaction. Failures here are
// logged and swallowed; the attendance row is already committed.
func (an *AttendanceNotifier) AttendanceMarked(att *models.Attendance, call *models.ScheduledCall) {
	if att == nil || call == nil {
		return
	}

	present := 0
	for _, e := range att.Entries {
		if e.Status == models.AttendancePresent {
			present++
		}
	}

	if an.notifier != nil {
		studentIDs, err := an.roster.EnrolledStudentIDs(context.Background(), call.BatchID)
		if err != nil {
			logrus.WithError(err).WithField("callId", call.ID).Error("attendance notify: roster lookup failed")
		} else if len(studentIDs) > 0 {
			n := notifications.QueuedWithData(
				"Attendance recorded",
				fmt.Sprintf("Attendance for your class on %s has been recorded", call.Date.Format("2006-01-02")),
				"success",
				map[string]interface{}{"callId": call.ID, "attendanceUuid": att.UUID},
			)
			if err := an.notifier.EnqueueOrCreate(studentIDs, n); err != nil {
				logrus.WithError(err).WithField("callId", call.ID).Error("attendance notify: enqueue failed")
			}
		}
	}

	if an.hub != nil {
		an.hub.BroadcastToStaff(websocket.Event{
			Type: "attendance_marked",
			Data: map[string]interface{}{
				"callId":    call.ID,
				"batchId":   att.BatchID,
				"teacherId": att.TeacherID,
				"date":      att.Date.Format("2006-01-02"),
				"present":   present,
				"total":     len(att.Entries),
			},
		})
	}
}
