package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mymoney/internal/core"
)

// SchedulerStore is the slice of the persistent store the bill scheduler
// needs. *storage.SQLiteRepository satisfies it; tests use fakes.
type SchedulerStore interface {
	ListActiveRecurringTemplates(ctx context.Context) ([]core.BillTemplate, error)
	FindInstancesInRange(ctx context.Context, templateID string, from, to core.Date) ([]core.BillInstance, error)
	InsertInstance(ctx context.Context, inst core.BillInstance) (core.BillInstance, error)
	InsertNotification(ctx context.Context, n core.NotificationRecord) (core.NotificationRecord, error)
	HasReminderOnDay(ctx context.Context, templateID string, day core.Date) (bool, error)
	GetPushToken(ctx context.Context, userID string) (string, error)
}

// Pusher delivers a push notification to a device token. Delivery is
// best-effort: a failed send is logged and never fails the run.
type Pusher interface {
	Send(ctx context.Context, token, title, body string) error
}

// TemplateFailure records one template the run could not fully process.
type TemplateFailure struct {
	TemplateID string
	Title      string
	Err        error
}

// RunReport summarizes a single scheduler invocation.
type RunReport struct {
	TemplatesSeen    int
	InstancesCreated int
	RemindersSent    int
	Failures         []TemplateFailure
}

// Err returns the aggregated error for the run, or nil if every template
// was processed cleanly.
func (r RunReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("template %s (%s): %w", f.TemplateID, f.Title, f.Err))
	}
	return errors.Join(errs...)
}

// BillScheduler materializes monthly bill instances from recurring templates
// and fires reminder notifications on each template's lead day.
//
// The job is deterministic for a given day: re-running it with the same data
// creates no second instance for a cycle and no second reminder for a day.
type BillScheduler struct {
	store  SchedulerStore
	pusher Pusher
}

// NewBillScheduler creates a scheduler. pusher may be nil, in which case
// reminders are recorded in the store but not pushed.
func NewBillScheduler(store SchedulerStore, pusher Pusher) *BillScheduler {
	return &BillScheduler{store: store, pusher: pusher}
}

// Run processes every active recurring template once for the given day.
// A template fetch failure aborts the whole run; any later failure is
// confined to its template and collected in the report.
func (s *BillScheduler) Run(ctx context.Context, today time.Time) (RunReport, error) {
	var report RunReport

	templates, err := s.store.ListActiveRecurringTemplates(ctx)
	if err != nil {
		return report, fmt.Errorf("list recurring templates: %w", err)
	}
	report.TemplatesSeen = len(templates)

	slog.InfoContext(ctx, "Processing recurring bill templates",
		"total_active", len(templates),
		"processing_date", today.Format("2006-01-02"))

	for _, tpl := range templates {
		if err := ctx.Err(); err != nil {
			// Store went away or the run was abandoned; instances already
			// created this iteration remain valid.
			return report, fmt.Errorf("run abandoned: %w", err)
		}
		s.processTemplate(ctx, tpl, today, &report)
	}

	slog.InfoContext(ctx, "Recurring bill processing complete",
		"templates_seen", report.TemplatesSeen,
		"instances_created", report.InstancesCreated,
		"reminders_sent", report.RemindersSent,
		"failures", len(report.Failures))

	return report, report.Err()
}

func (s *BillScheduler) processTemplate(ctx context.Context, tpl core.BillTemplate, today time.Time, report *RunReport) {
	due := DueDateFor(tpl.DayOfMonth, today)

	// Duplicate check runs against the due date's own month, so a rollover
	// near a month boundary looks at the cycle actually being generated.
	from, to := MonthWindow(due)
	existing, err := s.store.FindInstancesInRange(ctx, tpl.ID, from, to)
	if err != nil {
		s.fail(ctx, report, tpl, fmt.Errorf("find existing instances: %w", err))
		return
	}

	if len(existing) == 0 {
		_, err := s.store.InsertInstance(ctx, core.BillInstance{
			TemplateID: tpl.ID,
			UserID:     tpl.UserID,
			Title:      tpl.Title,
			Amount:     tpl.Amount,
			DueDate:    due,
			Status:     core.StatusPending,
		})
		switch {
		case errors.Is(err, core.ErrDuplicateInstance):
			// Lost a race with a concurrent run; the cycle is covered.
			slog.InfoContext(ctx, "Instance already created by a concurrent run",
				"template_id", tpl.ID, "due_date", due.String())
		case err != nil:
			s.fail(ctx, report, tpl, fmt.Errorf("create instance: %w", err))
			return
		default:
			report.InstancesCreated++
		}
	}

	s.remind(ctx, tpl, due, today, report)
}

// remind fires the template's reminder when its lead day is today. Reminder
// failures never undo the instance creation that already happened.
func (s *BillScheduler) remind(ctx context.Context, tpl core.BillTemplate, due core.Date, today time.Time, report *RunReport) {
	remindDay := ReminderDate(due, tpl.RemindBeforeDays)
	if !remindDay.Equal(core.DateOf(today).Time) {
		return
	}

	sent, err := s.store.HasReminderOnDay(ctx, tpl.ID, remindDay)
	if err != nil {
		s.fail(ctx, report, tpl, fmt.Errorf("check reminder: %w", err))
		return
	}
	if sent {
		slog.DebugContext(ctx, "Reminder already sent today",
			"template_id", tpl.ID, "remind_date", remindDay.String())
		return
	}

	title := fmt.Sprintf("Upcoming bill: %s", tpl.Title)
	body := fmt.Sprintf("%s of %s is due on %s.", tpl.Title, tpl.Amount.Display(), due.String())

	_, err = s.store.InsertNotification(ctx, core.NotificationRecord{
		UserID:      tpl.UserID,
		Title:       title,
		Description: body,
		Type:        core.NotificationInfo,
		TemplateID:  tpl.ID,
		RemindDate:  remindDay,
	})
	if errors.Is(err, core.ErrDuplicateReminder) {
		return
	}
	if err != nil {
		s.fail(ctx, report, tpl, fmt.Errorf("create reminder notification: %w", err))
		return
	}
	report.RemindersSent++

	s.push(ctx, tpl, title, body)
}

// push attempts best-effort delivery; every failure path only logs.
func (s *BillScheduler) push(ctx context.Context, tpl core.BillTemplate, title, body string) {
	if s.pusher == nil {
		return
	}

	token, err := s.store.GetPushToken(ctx, tpl.UserID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to look up push token",
			"template_id", tpl.ID, "user_id", tpl.UserID, "error", err)
		return
	}
	if token == "" {
		slog.DebugContext(ctx, "No push token for user", "user_id", tpl.UserID)
		return
	}

	if err := s.pusher.Send(ctx, token, title, body); err != nil {
		slog.WarnContext(ctx, "Push delivery failed",
			"template_id", tpl.ID, "user_id", tpl.UserID, "error", err)
	}
}

func (s *BillScheduler) fail(ctx context.Context, report *RunReport, tpl core.BillTemplate, err error) {
	slog.ErrorContext(ctx, "Failed to process bill template",
		"template_id", tpl.ID,
		"title", tpl.Title,
		"error", err)
	report.Failures = append(report.Failures, TemplateFailure{
		TemplateID: tpl.ID,
		Title:      tpl.Title,
		Err:        err,
	})
}
