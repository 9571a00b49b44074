package jobs

import (
	"context"
	"time"

	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/robfig/cron/v3"
)

// Reminder sends whatever reminders are due and reports how many went out.
type Reminder interface {
	SendReminders(ctx context.Context) (int, error)
}

// ReminderJob is a cron.Job that nudges participants of accepted
// appointments starting within the hour.
type ReminderJob struct {
	reminders Reminder
	timeout   time.Duration
	log       *logger.Logger
}

func NewReminderJob(reminders Reminder, timeout time.Duration, log *logger.Logger) *ReminderJob {
	return &ReminderJob{
		reminders: reminders,
		timeout:   timeout,
		log:       log.With("job", "AppointmentReminders"),
	}
}

func (j *ReminderJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	sent, err := j.reminders.SendReminders(ctx)
	if err != nil {
		j.log.Error("reminder run failed", "error", err)
		return
	}
	if sent > 0 {
		j.log.Info("reminders sent", "appointments", sent)
	}
}

// Schedule registers job on c under the standard five-field cron spec.
// Overlapping runs are skipped rather than queued.
func Schedule(c *cron.Cron, spec string, job cron.Job, log *logger.Logger) (cron.EntryID, error) {
	wrapped := cron.NewChain(
		cron.Recover(cron.DiscardLogger),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	).Then(job)
	id, err := c.AddJob(spec, wrapped)
	if err != nil {
		return 0, err
	}
	log.Info("cron job scheduled", "spec", spec)
	return id, nil
}
