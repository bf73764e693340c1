package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mymoney/internal/core"
)

type fakeStore struct {
	templates []core.BillTemplate
	listErr   error

	instances     map[string][]core.BillInstance
	insertErrFor  map[string]error
	notifications []core.NotificationRecord
	notifErrFor   map[string]error
	tokens        map[string]string
}

func newFakeStore(templates ...core.BillTemplate) *fakeStore {
	return &fakeStore{
		templates:    templates,
		instances:    make(map[string][]core.BillInstance),
		insertErrFor: make(map[string]error),
		notifErrFor:  make(map[string]error),
		tokens:       make(map[string]string),
	}
}

func (f *fakeStore) ListActiveRecurringTemplates(context.Context) ([]core.BillTemplate, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.templates, nil
}

func (f *fakeStore) FindInstancesInRange(_ context.Context, templateID string, from, to core.Date) ([]core.BillInstance, error) {
	var found []core.BillInstance
	for _, inst := range f.instances[templateID] {
		if !inst.DueDate.Before(from.Time) && !inst.DueDate.After(to.Time) {
			found = append(found, inst)
		}
	}
	return found, nil
}

func (f *fakeStore) InsertInstance(_ context.Context, inst core.BillInstance) (core.BillInstance, error) {
	if err := f.insertErrFor[inst.TemplateID]; err != nil {
		return core.BillInstance{}, err
	}
	for _, existing := range f.instances[inst.TemplateID] {
		if existing.DueDate.Year() == inst.DueDate.Year() && existing.DueDate.Month() == inst.DueDate.Month() {
			return core.BillInstance{}, core.ErrDuplicateInstance
		}
	}
	f.instances[inst.TemplateID] = append(f.instances[inst.TemplateID], inst)
	return inst, nil
}

func (f *fakeStore) InsertNotification(_ context.Context, n core.NotificationRecord) (core.NotificationRecord, error) {
	if err := f.notifErrFor[n.TemplateID]; err != nil {
		return core.NotificationRecord{}, err
	}
	for _, existing := range f.notifications {
		if n.TemplateID != "" && existing.TemplateID == n.TemplateID && existing.RemindDate.Equal(n.RemindDate.Time) {
			return core.NotificationRecord{}, core.ErrDuplicateReminder
		}
	}
	f.notifications = append(f.notifications, n)
	return n, nil
}

func (f *fakeStore) HasReminderOnDay(_ context.Context, templateID string, day core.Date) (bool, error) {
	for _, existing := range f.notifications {
		if existing.TemplateID == templateID && existing.RemindDate.Equal(day.Time) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetPushToken(_ context.Context, userID string) (string, error) {
	token, ok := f.tokens[userID]
	if !ok {
		return "", core.ErrNotFound
	}
	return token, nil
}

type fakePusher struct {
	sent    []string
	sendErr error
}

func (p *fakePusher) Send(_ context.Context, token, title, body string) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, token+": "+title)
	return nil
}

func schedulerTemplate(id string, dayOfMonth, remindBefore int) core.BillTemplate {
	return core.BillTemplate{
		ID:               id,
		UserID:           "user-1",
		Title:            "Electricity",
		Category:         "Utilities",
		Amount:           core.Money{Cents: 120000},
		DayOfMonth:       dayOfMonth,
		IsRecurring:      true,
		RemindBeforeDays: remindBefore,
	}
}

func TestBillScheduler_CreatesInstanceForCurrentCycle(t *testing.T) {
	store := newFakeStore(schedulerTemplate("tpl-1", 15, 0))
	sched := NewBillScheduler(store, nil)

	today := time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)
	report, err := sched.Run(context.Background(), today)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.InstancesCreated != 1 {
		t.Fatalf("instances created = %d, want 1", report.InstancesCreated)
	}

	instances := store.instances["tpl-1"]
	if len(instances) != 1 {
		t.Fatalf("stored instances = %d, want 1", len(instances))
	}
	if got := instances[0].DueDate.String(); got != "2024-06-15" {
		t.Errorf("due date = %s, want 2024-06-15", got)
	}
	if instances[0].Status != core.StatusPending {
		t.Errorf("status = %s, want pending", instances[0].Status)
	}
}

func TestBillScheduler_RollsOverPastDueDay(t *testing.T) {
	store := newFakeStore(schedulerTemplate("tpl-1", 15, 0))
	sched := NewBillScheduler(store, nil)

	today := time.Date(2024, time.June, 20, 8, 0, 0, 0, time.UTC)
	if _, err := sched.Run(context.Background(), today); err != nil {
		t.Fatalf("Run: %v", err)
	}

	instances := store.instances["tpl-1"]
	if len(instances) != 1 {
		t.Fatalf("stored instances = %d, want 1", len(instances))
	}
	if got := instances[0].DueDate.String(); got != "2024-07-15" {
		t.Errorf("due date = %s, want 2024-07-15", got)
	}
}

func TestBillScheduler_Idempotent(t *testing.T) {
	store := newFakeStore(schedulerTemplate("tpl-1", 20, 5))
	pusher := &fakePusher{}
	store.tokens["user-1"] = "ExponentPushToken[abc]"
	sched := NewBillScheduler(store, pusher)

	// The 15th is exactly the reminder day for a bill due on the 20th.
	today := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := sched.Run(context.Background(), today); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if n := len(store.instances["tpl-1"]); n != 1 {
		t.Errorf("instances after 3 runs = %d, want 1", n)
	}
	if n := len(store.notifications); n != 1 {
		t.Errorf("notifications after 3 runs = %d, want 1", n)
	}
	if n := len(pusher.sent); n != 1 {
		t.Errorf("pushes after 3 runs = %d, want 1", n)
	}
}

func TestBillScheduler_PartialFailureIsolation(t *testing.T) {
	a := schedulerTemplate("tpl-a", 15, 0)
	b := schedulerTemplate("tpl-b", 15, 0)
	b.Title = "Water"
	store := newFakeStore(a, b)
	store.insertErrFor["tpl-a"] = errors.New("disk full")
	sched := NewBillScheduler(store, nil)

	today := time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)
	report, err := sched.Run(context.Background(), today)
	if err == nil {
		t.Fatal("Run returned nil error despite a failed template")
	}
	if !strings.Contains(err.Error(), "tpl-a") || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("aggregate error missing failure detail: %v", err)
	}

	if len(store.instances["tpl-b"]) != 1 {
		t.Error("healthy template was blocked by the failing one")
	}
	if report.InstancesCreated != 1 {
		t.Errorf("instances created = %d, want 1", report.InstancesCreated)
	}
	if len(report.Failures) != 1 || report.Failures[0].TemplateID != "tpl-a" {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestBillScheduler_FetchFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("store unavailable")
	sched := NewBillScheduler(store, nil)

	_, err := sched.Run(context.Background(), time.Now())
	if err == nil || !strings.Contains(err.Error(), "store unavailable") {
		t.Fatalf("Run = %v, want fetch error", err)
	}
}

func TestBillScheduler_ReminderFiresOnlyOnLeadDay(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		want  int
	}{
		{name: "five days before", today: time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC), want: 1},
		{name: "six days before", today: time.Date(2024, time.June, 14, 8, 0, 0, 0, time.UTC), want: 0},
		{name: "four days before", today: time.Date(2024, time.June, 16, 8, 0, 0, 0, time.UTC), want: 0},
		{name: "due date itself", today: time.Date(2024, time.June, 20, 8, 0, 0, 0, time.UTC), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(schedulerTemplate("tpl-1", 20, 5))
			sched := NewBillScheduler(store, nil)

			report, err := sched.Run(context.Background(), tt.today)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if report.RemindersSent != tt.want {
				t.Errorf("reminders = %d, want %d", report.RemindersSent, tt.want)
			}
		})
	}
}

func TestBillScheduler_PushFailureDoesNotFailRun(t *testing.T) {
	store := newFakeStore(schedulerTemplate("tpl-1", 20, 5))
	store.tokens["user-1"] = "ExponentPushToken[abc]"
	pusher := &fakePusher{sendErr: errors.New("gateway timeout")}
	sched := NewBillScheduler(store, pusher)

	today := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	report, err := sched.Run(context.Background(), today)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RemindersSent != 1 {
		t.Errorf("reminders = %d, want 1 (notification is durable even if push fails)", report.RemindersSent)
	}
	if len(store.notifications) != 1 {
		t.Errorf("notifications = %d, want 1", len(store.notifications))
	}
}

func TestBillScheduler_MissingTokenSkipsPush(t *testing.T) {
	store := newFakeStore(schedulerTemplate("tpl-1", 20, 5))
	pusher := &fakePusher{}
	sched := NewBillScheduler(store, pusher)

	today := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	if _, err := sched.Run(context.Background(), today); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pusher.sent) != 0 {
		t.Errorf("push sent without a token: %v", pusher.sent)
	}
	if len(store.notifications) != 1 {
		t.Errorf("notifications = %d, want 1", len(store.notifications))
	}
}

func TestBillScheduler_NotificationFailureSkipsOnlyReminder(t *testing.T) {
	store := newFakeStore(schedulerTemplate("tpl-1", 20, 5))
	store.notifErrFor["tpl-1"] = errors.New("insert failed")
	sched := NewBillScheduler(store, nil)

	today := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	report, err := sched.Run(context.Background(), today)
	if err == nil {
		t.Fatal("Run = nil, want reminder failure surfaced")
	}
	// The instance was still created before the reminder step failed.
	if report.InstancesCreated != 1 {
		t.Errorf("instances created = %d, want 1", report.InstancesCreated)
	}
	if report.RemindersSent != 0 {
		t.Errorf("reminders = %d, want 0", report.RemindersSent)
	}
}

func TestBillScheduler_ExistingInstanceStillReminds(t *testing.T) {
	store := newFakeStore(schedulerTemplate("tpl-1", 20, 5))
	sched := NewBillScheduler(store, nil)

	// First run on the 10th creates the instance but sends no reminder.
	if _, err := sched.Run(context.Background(), time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(store.notifications) != 0 {
		t.Fatalf("reminder fired early: %+v", store.notifications)
	}

	// Second run on the lead day finds the instance and fires the reminder.
	report, err := sched.Run(context.Background(), time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.InstancesCreated != 0 {
		t.Errorf("instances created on second run = %d, want 0", report.InstancesCreated)
	}
	if report.RemindersSent != 1 {
		t.Errorf("reminders = %d, want 1", report.RemindersSent)
	}
}
