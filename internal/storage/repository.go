package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mymoney/internal/core"
)

// SQLiteRepository is the persistent store behind the finance tracker:
// bill templates and instances, notifications, purchases, added money and
// user profiles.
type SQLiteRepository struct {
	db *sql.DB
}

const timeFormat = time.RFC3339Nano

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- bill templates ---

func (r *SQLiteRepository) CreateBillTemplate(ctx context.Context, t core.BillTemplate) (core.BillTemplate, error) {
	if err := t.Validate(); err != nil {
		return core.BillTemplate{}, fmt.Errorf("validate template: %w", err)
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bill_templates
			(id, user_id, title, category, amount_cents, day_of_month, is_recurring, remind_before_days, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.Category, t.Amount.Cents, t.DayOfMonth,
		boolToInt(t.IsRecurring), t.RemindBeforeDays, t.Note,
		now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return core.BillTemplate{}, fmt.Errorf("insert template: %w", err)
	}

	slog.InfoContext(ctx, "Bill template created",
		"template_id", t.ID,
		"title", t.Title,
		"day_of_month", t.DayOfMonth,
		"amount_cents", t.Amount.Cents)

	return t, nil
}

// ListActiveRecurringTemplates returns every template still generating
// instances, across all users.
func (r *SQLiteRepository) ListActiveRecurringTemplates(ctx context.Context) ([]core.BillTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, category, amount_cents, day_of_month, is_recurring, remind_before_days, note, created_at, updated_at
		FROM bill_templates
		WHERE is_recurring = 1
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

func (r *SQLiteRepository) ListBillTemplates(ctx context.Context, userID string) ([]core.BillTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, category, amount_cents, day_of_month, is_recurring, remind_before_days, note, created_at, updated_at
		FROM bill_templates
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

func (r *SQLiteRepository) GetBillTemplate(ctx context.Context, id string) (core.BillTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, category, amount_cents, day_of_month, is_recurring, remind_before_days, note, created_at, updated_at
		FROM bill_templates
		WHERE id = ?`, id)

	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillTemplate{}, core.ErrNotFound
	}
	if err != nil {
		return core.BillTemplate{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// StopRecurring disables future instance generation for a template. The
// template row stays so existing instances keep their parent.
func (r *SQLiteRepository) StopRecurring(ctx context.Context, userID, templateID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bill_templates
		SET is_recurring = 0, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		time.Now().UTC().Format(timeFormat), templateID, userID)
	if err != nil {
		return fmt.Errorf("stop recurring: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Bill recurrence stopped", "template_id", templateID)
	return nil
}

func (r *SQLiteRepository) DeleteBillTemplate(ctx context.Context, userID, templateID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bill_templates WHERE id = ? AND user_id = ?`, templateID, userID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// --- bill instances ---

// InsertInstance creates the materialized bill for one billing cycle.
// A second insert for the same (template, due month) fails with
// core.ErrDuplicateInstance, enforced by a unique index.
func (r *SQLiteRepository) InsertInstance(ctx context.Context, inst core.BillInstance) (core.BillInstance, error) {
	if err := inst.Validate(); err != nil {
		return core.BillInstance{}, fmt.Errorf("validate instance: %w", err)
	}
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	inst.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bill_instances (id, template_id, user_id, title, amount_cents, due_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.TemplateID, inst.UserID, inst.Title, inst.Amount.Cents,
		inst.DueDate.String(), string(inst.Status), inst.CreatedAt.Format(timeFormat))
	if err != nil {
		if isUniqueViolation(err) {
			return core.BillInstance{}, core.ErrDuplicateInstance
		}
		return core.BillInstance{}, fmt.Errorf("insert instance: %w", err)
	}

	slog.InfoContext(ctx, "Bill instance created",
		"instance_id", inst.ID,
		"template_id", inst.TemplateID,
		"due_date", inst.DueDate.String(),
		"amount_cents", inst.Amount.Cents)

	return inst, nil
}

// FindInstancesInRange returns a template's instances with a due date in
// [from, to], inclusive on both ends.
func (r *SQLiteRepository) FindInstancesInRange(ctx context.Context, templateID string, from, to core.Date) ([]core.BillInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, template_id, user_id, title, amount_cents, due_date, status, created_at
		FROM bill_instances
		WHERE template_id = ? AND due_date >= ? AND due_date <= ?
		ORDER BY due_date`,
		templateID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("find instances in range: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListUpcomingInstances returns a user's unpaid bills due within [from, to],
// soonest first.
func (r *SQLiteRepository) ListUpcomingInstances(ctx context.Context, userID string, from, to core.Date) ([]core.BillInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, template_id, user_id, title, amount_cents, due_date, status, created_at
		FROM bill_instances
		WHERE user_id = ? AND status != 'paid' AND due_date >= ? AND due_date <= ?
		ORDER BY due_date`,
		userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list upcoming instances: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

func (r *SQLiteRepository) GetInstance(ctx context.Context, id string) (core.BillInstance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, template_id, user_id, title, amount_cents, due_date, status, created_at
		FROM bill_instances
		WHERE id = ?`, id)

	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillInstance{}, core.ErrNotFound
	}
	if err != nil {
		return core.BillInstance{}, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

// MarkInstancePaid flips an instance to paid and returns the updated row.
func (r *SQLiteRepository) MarkInstancePaid(ctx context.Context, id string) (core.BillInstance, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bill_instances SET status = 'paid' WHERE id = ?`, id)
	if err != nil {
		return core.BillInstance{}, fmt.Errorf("mark instance paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.BillInstance{}, core.ErrNotFound
	}
	return r.GetInstance(ctx, id)
}

// --- notifications ---

// InsertNotification stores an in-app notification. Reminder notifications
// carry (TemplateID, RemindDate); inserting a second reminder for the same
// key fails with core.ErrDuplicateReminder.
func (r *SQLiteRepository) InsertNotification(ctx context.Context, n core.NotificationRecord) (core.NotificationRecord, error) {
	if err := n.Validate(); err != nil {
		return core.NotificationRecord{}, fmt.Errorf("validate notification: %w", err)
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()

	var templateID, remindDate any
	if n.TemplateID != "" {
		templateID = n.TemplateID
		remindDate = n.RemindDate.String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, description, type, read, template_id, remind_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Description, string(n.Type), boolToInt(n.Read),
		templateID, remindDate, n.CreatedAt.Format(timeFormat))
	if err != nil {
		if isUniqueViolation(err) {
			return core.NotificationRecord{}, core.ErrDuplicateReminder
		}
		return core.NotificationRecord{}, fmt.Errorf("insert notification: %w", err)
	}

	slog.InfoContext(ctx, "Notification created",
		"notification_id", n.ID,
		"user_id", n.UserID,
		"type", string(n.Type),
		"title", n.Title)

	return n, nil
}

// HasReminderOnDay reports whether a reminder notification already exists for
// the template on the given calendar day.
func (r *SQLiteRepository) HasReminderOnDay(ctx context.Context, templateID string, day core.Date) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE template_id = ? AND remind_date = ?`,
		templateID, day.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count reminders: %w", err)
	}
	return count > 0, nil
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]core.NotificationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, type, read, template_id, remind_date, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *SQLiteRepository) ListUnreadNotifications(ctx context.Context, userID string) ([]core.NotificationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, type, read, template_id, remind_date, created_at
		FROM notifications
		WHERE user_id = ? AND read = 0
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *SQLiteRepository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// --- profiles ---

func (r *SQLiteRepository) UpsertProfile(ctx context.Context, p core.Profile) error {
	if p.ID == "" {
		return core.ErrEmptyUserID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, full_name, email, avatar_url, push_token)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			full_name = excluded.full_name,
			email = excluded.email,
			avatar_url = excluded.avatar_url,
			push_token = excluded.push_token`,
		p.ID, p.Username, p.FullName, p.Email, p.AvatarURL, p.PushToken)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListProfiles(ctx context.Context) ([]core.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, full_name, email, avatar_url, push_token FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []core.Profile
	for rows.Next() {
		var p core.Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.FullName, &p.Email, &p.AvatarURL, &p.PushToken); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// GetPushToken returns the user's push token, which may be empty when the
// user never granted notification permission.
func (r *SQLiteRepository) GetPushToken(ctx context.Context, userID string) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT push_token FROM profiles WHERE id = ?`, userID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get push token: %w", err)
	}
	return token, nil
}

// --- purchases and added money ---

func (r *SQLiteRepository) InsertPurchase(ctx context.Context, p core.Purchase) (core.Purchase, error) {
	if err := p.Validate(); err != nil {
		return core.Purchase{}, fmt.Errorf("validate purchase: %w", err)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO purchase_details (id, user_id, item_name, category, quantity, price_cents, total_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.ItemName, p.Category, p.Quantity,
		p.Price.Cents, p.Total.Cents, p.CreatedAt.Format(timeFormat))
	if err != nil {
		return core.Purchase{}, fmt.Errorf("insert purchase: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPurchases(ctx context.Context, userID string) ([]core.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, item_name, category, quantity, price_cents, total_cents, created_at
		FROM purchase_details
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []core.Purchase
	for rows.Next() {
		var (
			p       core.Purchase
			created string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.ItemName, &p.Category, &p.Quantity,
			&p.Price.Cents, &p.Total.Cents, &created); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		p.CreatedAt = parseStoredTime(created)
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (r *SQLiteRepository) InsertAddedMoney(ctx context.Context, a core.AddedMoney) (core.AddedMoney, error) {
	if err := a.Validate(); err != nil {
		return core.AddedMoney{}, fmt.Errorf("validate added money: %w", err)
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO added_money (id, user_id, amount_cents, created_at)
		VALUES (?, ?, ?, ?)`,
		a.ID, a.UserID, a.Amount.Cents, a.CreatedAt.Format(timeFormat))
	if err != nil {
		return core.AddedMoney{}, fmt.Errorf("insert added money: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAddedMoney(ctx context.Context, userID string) ([]core.AddedMoney, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount_cents, created_at
		FROM added_money
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list added money: %w", err)
	}
	defer rows.Close()

	var entries []core.AddedMoney
	for rows.Next() {
		var (
			a       core.AddedMoney
			created string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Amount.Cents, &created); err != nil {
			return nil, fmt.Errorf("scan added money: %w", err)
		}
		a.CreatedAt = parseStoredTime(created)
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// UserBalance is total added money minus total purchases, over all time.
func (r *SQLiteRepository) UserBalance(ctx context.Context, userID string) (core.Money, error) {
	var added, spent int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM added_money WHERE user_id = ?`, userID).Scan(&added)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum added money: %w", err)
	}
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_cents), 0) FROM purchase_details WHERE user_id = ?`, userID).Scan(&spent)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum purchases: %w", err)
	}
	return core.Money{Cents: added - spent}, nil
}

// MonthlySummary aggregates one calendar month: money added, money spent,
// balance, and spend per category.
func (r *SQLiteRepository) MonthlySummary(ctx context.Context, userID string, year int, month time.Month) (core.MonthSummary, error) {
	summary := core.MonthSummary{Year: year, Month: int(month)}
	prefix := fmt.Sprintf("%04d-%02d", year, int(month))

	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM added_money
		WHERE user_id = ? AND substr(created_at, 1, 7) = ?`,
		userID, prefix).Scan(&summary.TotalAdded.Cents)
	if err != nil {
		return summary, fmt.Errorf("sum month added money: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents), 0)
		FROM purchase_details
		WHERE user_id = ? AND substr(created_at, 1, 7) = ?`,
		userID, prefix).Scan(&summary.TotalSpent.Cents)
	if err != nil {
		return summary, fmt.Errorf("sum month purchases: %w", err)
	}

	summary.Balance = core.Money{Cents: summary.TotalAdded.Cents - summary.TotalSpent.Cents}

	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(total_cents)
		FROM purchase_details
		WHERE user_id = ? AND substr(created_at, 1, 7) = ?
		GROUP BY category
		ORDER BY SUM(total_cents) DESC`,
		userID, prefix)
	if err != nil {
		return summary, fmt.Errorf("sum month categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return summary, fmt.Errorf("scan category sum: %w", err)
		}
		summary.ByCategory = append(summary.ByCategory, ca)
	}
	return summary, rows.Err()
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (core.BillTemplate, error) {
	var (
		t                core.BillTemplate
		recurring        int
		created, updated string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Category, &t.Amount.Cents,
		&t.DayOfMonth, &recurring, &t.RemindBeforeDays, &t.Note, &created, &updated)
	if err != nil {
		return core.BillTemplate{}, err
	}
	t.IsRecurring = recurring != 0
	t.CreatedAt = parseStoredTime(created)
	t.UpdatedAt = parseStoredTime(updated)
	return t, nil
}

func scanTemplates(rows *sql.Rows) ([]core.BillTemplate, error) {
	var templates []core.BillTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func scanInstance(row rowScanner) (core.BillInstance, error) {
	var (
		inst        core.BillInstance
		due, status string
		created     string
	)
	err := row.Scan(&inst.ID, &inst.TemplateID, &inst.UserID, &inst.Title,
		&inst.Amount.Cents, &due, &status, &created)
	if err != nil {
		return core.BillInstance{}, err
	}
	dueDate, err := core.ParseDate(due)
	if err != nil {
		return core.BillInstance{}, fmt.Errorf("parse due date %q: %w", due, err)
	}
	inst.DueDate = dueDate
	inst.Status = core.BillStatus(status)
	inst.CreatedAt = parseStoredTime(created)
	return inst, nil
}

func scanInstances(rows *sql.Rows) ([]core.BillInstance, error) {
	var instances []core.BillInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func scanNotifications(rows *sql.Rows) ([]core.NotificationRecord, error) {
	var notifications []core.NotificationRecord
	for rows.Next() {
		var (
			n                      core.NotificationRecord
			read                   int
			templateID, remindDate sql.NullString
			typ, created           string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Description, &typ,
			&read, &templateID, &remindDate, &created); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = core.NotificationType(typ)
		n.Read = read != 0
		if templateID.Valid {
			n.TemplateID = templateID.String
			if remindDate.Valid {
				if d, err := core.ParseDate(remindDate.String); err == nil {
					n.RemindDate = d
				}
			}
		}
		n.CreatedAt = parseStoredTime(created)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func parseStoredTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
