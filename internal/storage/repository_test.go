package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mymoney/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedTemplate(t *testing.T, repo *SQLiteRepository, userID string) core.BillTemplate {
	t.Helper()
	tpl, err := repo.CreateBillTemplate(context.Background(), core.BillTemplate{
		UserID:           userID,
		Title:            "Rent",
		Category:         "Housing",
		Amount:           core.Money{Cents: 1500000},
		DayOfMonth:       15,
		IsRecurring:      true,
		RemindBeforeDays: 5,
	})
	if err != nil {
		t.Fatalf("CreateBillTemplate: %v", err)
	}
	return tpl
}

func TestCreateAndListTemplates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tpl := seedTemplate(t, repo, "user-1")
	if tpl.ID == "" {
		t.Fatal("template ID not assigned")
	}

	// A stopped template must not show up in the scheduler's listing.
	stopped := seedTemplate(t, repo, "user-2")
	if err := repo.StopRecurring(ctx, "user-2", stopped.ID); err != nil {
		t.Fatalf("StopRecurring: %v", err)
	}

	active, err := repo.ListActiveRecurringTemplates(ctx)
	if err != nil {
		t.Fatalf("ListActiveRecurringTemplates: %v", err)
	}
	if len(active) != 1 || active[0].ID != tpl.ID {
		t.Fatalf("active templates = %+v, want only %s", active, tpl.ID)
	}
	if active[0].RemindBeforeDays != 5 || active[0].DayOfMonth != 15 {
		t.Errorf("template fields lost in round trip: %+v", active[0])
	}
}

func TestStopRecurring_UnknownTemplate(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.StopRecurring(context.Background(), "user-1", "missing")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("StopRecurring = %v, want %v", err, core.ErrNotFound)
	}
}

func TestInsertInstance_DuplicateCycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repo, "user-1")

	inst := core.BillInstance{
		TemplateID: tpl.ID,
		UserID:     tpl.UserID,
		Title:      tpl.Title,
		Amount:     tpl.Amount,
		DueDate:    core.NewDate(2024, time.June, 15),
		Status:     core.StatusPending,
	}
	if _, err := repo.InsertInstance(ctx, inst); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// Same template, same month, different day: still the same cycle.
	inst.DueDate = core.NewDate(2024, time.June, 20)
	if _, err := repo.InsertInstance(ctx, inst); !errors.Is(err, core.ErrDuplicateInstance) {
		t.Fatalf("second insert = %v, want %v", err, core.ErrDuplicateInstance)
	}

	// Next month is a new cycle.
	inst.DueDate = core.NewDate(2024, time.July, 15)
	if _, err := repo.InsertInstance(ctx, inst); err != nil {
		t.Fatalf("next month insert: %v", err)
	}
}

func TestFindInstancesInRange_Boundaries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repo, "user-1")

	for _, due := range []core.Date{
		core.NewDate(2024, time.May, 31),
		core.NewDate(2024, time.June, 1),
		core.NewDate(2024, time.June, 30),
		core.NewDate(2024, time.July, 1),
	} {
		_, err := repo.InsertInstance(ctx, core.BillInstance{
			TemplateID: tpl.ID,
			UserID:     tpl.UserID,
			Title:      tpl.Title,
			Amount:     tpl.Amount,
			DueDate:    due,
			Status:     core.StatusPending,
		})
		if err != nil {
			t.Fatalf("insert %s: %v", due, err)
		}
	}

	got, err := repo.FindInstancesInRange(ctx, tpl.ID,
		core.NewDate(2024, time.June, 1), core.NewDate(2024, time.June, 30))
	if err != nil {
		t.Fatalf("FindInstancesInRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d instances in June window, want 2", len(got))
	}
	for _, inst := range got {
		if inst.DueDate.Month() != time.June {
			t.Errorf("instance outside window: %s", inst.DueDate)
		}
	}
}

func TestMarkInstancePaid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repo, "user-1")

	inst, err := repo.InsertInstance(ctx, core.BillInstance{
		TemplateID: tpl.ID,
		UserID:     tpl.UserID,
		Title:      tpl.Title,
		Amount:     tpl.Amount,
		DueDate:    core.NewDate(2024, time.June, 15),
		Status:     core.StatusPending,
	})
	if err != nil {
		t.Fatalf("InsertInstance: %v", err)
	}

	paid, err := repo.MarkInstancePaid(ctx, inst.ID)
	if err != nil {
		t.Fatalf("MarkInstancePaid: %v", err)
	}
	if paid.Status != core.StatusPaid {
		t.Errorf("status = %s, want %s", paid.Status, core.StatusPaid)
	}

	// Paid bills drop out of the upcoming view.
	upcoming, err := repo.ListUpcomingInstances(ctx, tpl.UserID,
		core.NewDate(2024, time.June, 1), core.NewDate(2024, time.June, 30))
	if err != nil {
		t.Fatalf("ListUpcomingInstances: %v", err)
	}
	if len(upcoming) != 0 {
		t.Errorf("paid instance still listed as upcoming: %+v", upcoming)
	}

	if _, err := repo.MarkInstancePaid(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("MarkInstancePaid(missing) = %v, want %v", err, core.ErrNotFound)
	}
}

func TestReminderDuplicateGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repo, "user-1")
	day := core.NewDate(2024, time.June, 10)

	reminder := core.NotificationRecord{
		UserID:     tpl.UserID,
		Title:      "Upcoming bill: Rent",
		Type:       core.NotificationInfo,
		TemplateID: tpl.ID,
		RemindDate: day,
	}

	if _, err := repo.InsertNotification(ctx, reminder); err != nil {
		t.Fatalf("first reminder: %v", err)
	}

	exists, err := repo.HasReminderOnDay(ctx, tpl.ID, day)
	if err != nil {
		t.Fatalf("HasReminderOnDay: %v", err)
	}
	if !exists {
		t.Error("HasReminderOnDay = false after insert")
	}

	if _, err := repo.InsertNotification(ctx, reminder); !errors.Is(err, core.ErrDuplicateReminder) {
		t.Errorf("second reminder = %v, want %v", err, core.ErrDuplicateReminder)
	}

	// Plain notifications without a template key are never deduplicated.
	plain := core.NotificationRecord{
		UserID: tpl.UserID,
		Title:  "Low Balance Alert",
		Type:   core.NotificationWarning,
	}
	for i := 0; i < 2; i++ {
		if _, err := repo.InsertNotification(ctx, plain); err != nil {
			t.Fatalf("plain notification %d: %v", i, err)
		}
	}
}

func TestNotificationFeed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.InsertNotification(ctx, core.NotificationRecord{
			UserID: "user-1",
			Title:  "note",
			Type:   core.NotificationInfo,
		})
		if err != nil {
			t.Fatalf("insert notification: %v", err)
		}
	}

	unread, err := repo.ListUnreadNotifications(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListUnreadNotifications: %v", err)
	}
	if len(unread) != 3 {
		t.Fatalf("unread = %d, want 3", len(unread))
	}

	if err := repo.MarkAllNotificationsRead(ctx, "user-1"); err != nil {
		t.Fatalf("MarkAllNotificationsRead: %v", err)
	}

	unread, err = repo.ListUnreadNotifications(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListUnreadNotifications after read: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("unread after mark = %d, want 0", len(unread))
	}

	all, err := repo.ListNotifications(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("limited feed = %d, want 2", len(all))
	}
}

func TestPushToken(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetPushToken(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetPushToken(missing) = %v, want %v", err, core.ErrNotFound)
	}

	err := repo.UpsertProfile(ctx, core.Profile{ID: "user-1", Username: "pr", PushToken: "ExponentPushToken[abc]"})
	if err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}

	token, err := repo.GetPushToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetPushToken: %v", err)
	}
	if token != "ExponentPushToken[abc]" {
		t.Errorf("token = %q", token)
	}
}

func TestUserBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.InsertAddedMoney(ctx, core.AddedMoney{UserID: "user-1", Amount: core.Money{Cents: 100000}}); err != nil {
		t.Fatalf("InsertAddedMoney: %v", err)
	}
	_, err := repo.InsertPurchase(ctx, core.Purchase{
		UserID:   "user-1",
		ItemName: "Groceries",
		Category: "Food",
		Quantity: 1,
		Price:    core.Money{Cents: 35000},
		Total:    core.Money{Cents: 35000},
	})
	if err != nil {
		t.Fatalf("InsertPurchase: %v", err)
	}

	balance, err := repo.UserBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("UserBalance: %v", err)
	}
	if balance.Cents != 65000 {
		t.Errorf("balance = %d, want 65000", balance.Cents)
	}

	// No rows at all still yields a zero balance, not an error.
	balance, err = repo.UserBalance(ctx, "user-2")
	if err != nil {
		t.Fatalf("UserBalance(empty): %v", err)
	}
	if balance.Cents != 0 {
		t.Errorf("empty balance = %d, want 0", balance.Cents)
	}
}

func TestMonthlySummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.InsertAddedMoney(ctx, core.AddedMoney{UserID: "user-1", Amount: core.Money{Cents: 200000}}); err != nil {
		t.Fatalf("InsertAddedMoney: %v", err)
	}
	for _, p := range []core.Purchase{
		{UserID: "user-1", ItemName: "Groceries", Category: "Food", Quantity: 1, Price: core.Money{Cents: 30000}, Total: core.Money{Cents: 30000}},
		{UserID: "user-1", ItemName: "Bus pass", Category: "Transport", Quantity: 1, Price: core.Money{Cents: 10000}, Total: core.Money{Cents: 10000}},
	} {
		if _, err := repo.InsertPurchase(ctx, p); err != nil {
			t.Fatalf("InsertPurchase: %v", err)
		}
	}

	summary, err := repo.MonthlySummary(ctx, "user-1", now.Year(), now.Month())
	if err != nil {
		t.Fatalf("MonthlySummary: %v", err)
	}
	if summary.TotalAdded.Cents != 200000 {
		t.Errorf("total added = %d", summary.TotalAdded.Cents)
	}
	if summary.TotalSpent.Cents != 40000 {
		t.Errorf("total spent = %d", summary.TotalSpent.Cents)
	}
	if summary.Balance.Cents != 160000 {
		t.Errorf("balance = %d", summary.Balance.Cents)
	}
	if len(summary.ByCategory) != 2 || summary.ByCategory[0].Name != "Food" {
		t.Errorf("by category = %+v", summary.ByCategory)
	}
}
