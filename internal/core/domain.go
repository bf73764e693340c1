package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPending BillStatus = "pending"
	StatusPaid    BillStatus = "paid"
)

const (
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

type (
	BillStatus string

	NotificationType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// BillTemplate is the recurrence rule a user sets up once. The scheduler
	// derives dated BillInstances from it; it never mutates the template.
	BillTemplate struct {
		ID               string
		UserID           string
		Title            string
		Category         string
		Amount           Money
		DayOfMonth       int // 1-31, clamped to shorter months at generation time
		IsRecurring      bool
		RemindBeforeDays int
		Note             string
		CreatedAt        time.Time
		UpdatedAt        time.Time
	}

	// BillInstance is the materialization of a template for one billing cycle.
	BillInstance struct {
		ID         string
		TemplateID string
		UserID     string
		Title      string
		Amount     Money
		DueDate    Date
		Status     BillStatus
		CreatedAt  time.Time
	}

	NotificationRecord struct {
		ID          string
		UserID      string
		Title       string
		Description string
		Type        NotificationType
		Read        bool
		// TemplateID and RemindDate form the duplicate-guard key for bill
		// reminders; both are empty for notifications of other origins.
		TemplateID string
		RemindDate Date
		CreatedAt  time.Time
	}

	// Purchase is a single spend entry (the app's purchase details row).
	Purchase struct {
		ID        string
		UserID    string
		ItemName  string
		Category  string
		Quantity  int
		Price     Money
		Total     Money
		CreatedAt time.Time
	}

	// AddedMoney is a single balance top-up entry.
	AddedMoney struct {
		ID        string
		UserID    string
		Amount    Money
		CreatedAt time.Time
	}

	Profile struct {
		ID        string
		Username  string
		FullName  string
		Email     string
		AvatarURL string
		PushToken string
	}
)

var (
	ErrInvalidDayOfMonth = errors.New("day of month must be between 1 and 31")
	ErrInvalidRemindDays = errors.New("remind before days must be zero or positive")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidStatus     = errors.New("invalid bill status")
	ErrInvalidType       = errors.New("invalid notification type")
	ErrEmptyTitle        = errors.New("empty title")
	ErrEmptyUserID       = errors.New("empty user id")
	ErrEmptyTemplateID   = errors.New("empty template id")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateInstance = errors.New("instance already exists for this cycle")
	ErrDuplicateReminder = errors.New("reminder already recorded for this day")
)

// NewDate creates a calendar date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date at midnight UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// String renders the date as YYYY-MM-DD, the storage and wire format.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (s BillStatus) Validate() error {
	switch s {
	case StatusPending, StatusPaid:
		return nil
	}
	return ErrInvalidStatus
}

func (t NotificationType) Validate() error {
	switch t {
	case NotificationSuccess, NotificationWarning, NotificationInfo:
		return nil
	}
	return ErrInvalidType
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t BillTemplate) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUserID
	}
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if t.DayOfMonth < 1 || t.DayOfMonth > 31 {
		return ErrInvalidDayOfMonth
	}
	if t.RemindBeforeDays < 0 {
		return ErrInvalidRemindDays
	}
	return t.Amount.Validate()
}

func (i BillInstance) Validate() error {
	if strings.TrimSpace(i.TemplateID) == "" {
		return ErrEmptyTemplateID
	}
	if strings.TrimSpace(i.UserID) == "" {
		return ErrEmptyUserID
	}
	if len(strings.TrimSpace(i.Title)) == 0 {
		return ErrEmptyTitle
	}
	if err := i.DueDate.Validate(); err != nil {
		return err
	}
	if err := i.Status.Validate(); err != nil {
		return err
	}
	return i.Amount.Validate()
}

func (n NotificationRecord) Validate() error {
	if strings.TrimSpace(n.UserID) == "" {
		return ErrEmptyUserID
	}
	if len(strings.TrimSpace(n.Title)) == 0 {
		return ErrEmptyTitle
	}
	return n.Type.Validate()
}

func (p Purchase) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrEmptyUserID
	}
	if len(strings.TrimSpace(p.ItemName)) == 0 {
		return errors.New("empty item name")
	}
	if p.Quantity < 1 {
		return errors.New("quantity must be at least 1")
	}
	return p.Total.Validate()
}

func (a AddedMoney) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return ErrEmptyUserID
	}
	return a.Amount.Validate()
}
