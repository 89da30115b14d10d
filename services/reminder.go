package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"tutorlink_go/models"
	"tutorlink_go/services/notifications"
	"tutorlink_go/store"
)

// ReminderScheduler sends upcoming-call reminders to enrolled students and
// teachers, plus a daily digest. It never mutates call state.
type ReminderScheduler struct {
	calls    store.CallRepository
	roster   store.ReferenceRepository
	notifier *notifications.Service
	cron     *cron.Cron
}

func NewReminderScheduler(calls store.CallRepository, roster store.ReferenceRepository, notifier *notifications.Service) *ReminderScheduler {
	return &ReminderScheduler{
		calls:    calls,
		roster:   roster,
		notifier: notifier,
		cron:     cron.New(),
	}
}

// Start registers the cron entries and begins running them in the background.
func (rs *ReminderScheduler) Start() {
	// Upcoming calls check every 15 minutes
	if _, err := rs.cron.AddFunc("*/15 * * * *", rs.checkUpcomingCalls); err != nil {
		logrus.WithError(err).Error("failed to register upcoming-call reminder job")
	}
	// Daily schedule digest at 07:00 server time
	if _, err := rs.cron.AddFunc("0 7 * * *", rs.sendDailyDigest); err != nil {
		logrus.WithError(err).Error("failed to register daily digest job")
	}
	// Stale call sweep at 22:00: calls past their date still marked scheduled
	if _, err := rs.cron.AddFunc("0 22 * * *", rs.flagStaleCalls); err != nil {
		logrus.WithError(err).Error("failed to register stale call sweep")
	}
	rs.cron.Start()
	logrus.Info("Reminder scheduler started")
}

// Stop halts the cron runner, waiting for running jobs to finish.
func (rs *ReminderScheduler) Stop() {
	ctx := rs.cron.Stop()
	<-ctx.Done()
}

// checkUpcomingCalls notifies participants of calls starting in roughly
// 30 or 60 minutes. The 15-minute tick with a ±7m window keeps each call
// to at most one reminder per horizon.
func (rs *ReminderScheduler) checkUpcomingCalls() {
	ctx := context.Background()
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	calls, err := rs.calls.List(ctx, store.CallFilter{FromDate: &today, ToDate: &today})
	if err != nil {
		logrus.WithError(err).Error("reminder: listing today's calls failed")
		return
	}

	for _, call := range calls {
		if call.Status != models.CallScheduled && call.Status != models.CallRescheduled {
			continue
		}
		start, err := callStartAt(call)
		if err != nil {
			continue
		}
		until := time.Until(start)
		for _, horizon := range []time.Duration{30 * time.Minute, 60 * time.Minute} {
			if until > horizon-7*time.Minute && until <= horizon+7*time.Minute {
				rs.sendUpcomingReminder(ctx, call, horizon)
			}
		}
	}
}

func (rs *ReminderScheduler) sendUpcomingReminder(ctx context.Context, call models.ScheduledCall, in time.Duration) {
	studentIDs, err := rs.roster.EnrolledStudentIDs(ctx, call.BatchID)
	if err != nil {
		logrus.WithError(err).WithField("callId", call.ID).Error("reminder: roster lookup failed")
		return
	}
	recipients := append(studentIDs, call.TeacherID)

	mins := int(in.Minutes())
	n := notifications.QueuedWithData(
		"Upcoming class",
		fmt.Sprintf("Your class starts in %d minutes (%s)", mins, call.StartTime),
		"info",
		map[string]interface{}{"callId": call.ID, "startsInMinutes": mins},
	)
	if err := rs.notifier.EnqueueOrCreate(recipients, n); err != nil {
		logrus.WithError(err).WithField("callId", call.ID).Error("reminder: enqueue failed")
	}
}

// sendDailyDigest tells each teacher how many calls they have today.
func (rs *ReminderScheduler) sendDailyDigest() {
	ctx := context.Background()
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	calls, err := rs.calls.List(ctx, store.CallFilter{FromDate: &today, ToDate: &today})
	if err != nil {
		logrus.WithError(err).Error("reminder: daily digest query failed")
		return
	}

	perTeacher := make(map[uint]int)
	for _, call := range calls {
		if call.Status == models.CallScheduled || call.Status == models.CallRescheduled {
			perTeacher[call.TeacherID]++
		}
	}
	for teacherID, count := range perTeacher {
		n := notifications.Queued(
			"Today's schedule",
			fmt.Sprintf("You have %d class(es) scheduled today", count),
			"info",
		)
		if err := rs.notifier.EnqueueOrCreate([]uint{teacherID}, n); err != nil {
			logrus.WithError(err).WithField("teacherId", teacherID).Error("reminder: digest enqueue failed")
		}
	}
}

// flagStaleCalls alerts teachers about past calls still sitting in a
// pending status so attendance does not go unrecorded.
func (rs *ReminderScheduler) flagStaleCalls() {
	ctx := context.Background()
	now := time.Now()
	yesterday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(-24 * time.Hour)
	weekAgo := yesterday.Add(-6 * 24 * time.Hour)

	calls, err := rs.calls.List(ctx, store.CallFilter{FromDate: &weekAgo, ToDate: &yesterday})
	if err != nil {
		logrus.WithError(err).Error("reminder: stale sweep query failed")
		return
	}

	for _, call := range calls {
		if call.Status != models.CallScheduled && call.Status != models.CallRescheduled {
			continue
		}
		n := notifications.QueuedWithData(
			"Attendance pending",
			fmt.Sprintf("Your class on %s has no recorded outcome yet", call.Date.Format("2006-01-02")),
			"warning",
			map[string]interface{}{"callId": call.ID},
		)
		if err := rs.notifier.EnqueueOrCreate([]uint{call.TeacherID}, n); err != nil {
			logrus.WithError(err).WithField("callId", call.ID).Error("reminder: stale enqueue failed")
		}
	}
}

// callStartAt combines a call's date and HH:MM start time in local time.
func callStartAt(call models.ScheduledCall) (time.Time, error) {
	t, err := time.Parse("15:04", call.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	d := call.Date
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.Local), nil
}
