package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mymoney/internal/core"
)

// BillStore is the slice of the store the bill service needs.
type BillStore interface {
	CreateBillTemplate(ctx context.Context, t core.BillTemplate) (core.BillTemplate, error)
	ListBillTemplates(ctx context.Context, userID string) ([]core.BillTemplate, error)
	GetBillTemplate(ctx context.Context, id string) (core.BillTemplate, error)
	StopRecurring(ctx context.Context, userID, templateID string) error
	DeleteBillTemplate(ctx context.Context, userID, templateID string) error
	GetInstance(ctx context.Context, id string) (core.BillInstance, error)
	ListUpcomingInstances(ctx context.Context, userID string, from, to core.Date) ([]core.BillInstance, error)
	MarkInstancePaid(ctx context.Context, id string) (core.BillInstance, error)
	InsertPurchase(ctx context.Context, p core.Purchase) (core.Purchase, error)
}

// BillService covers the bill screens: template management, the upcoming
// window, and the pay flow.
type BillService struct {
	store      BillStore
	windowDays int
}

func NewBillService(store BillStore, windowDays int) *BillService {
	return &BillService{store: store, windowDays: windowDays}
}

func (s *BillService) CreateTemplate(ctx context.Context, tpl core.BillTemplate) (core.BillTemplate, error) {
	if err := tpl.Validate(); err != nil {
		return core.BillTemplate{}, fmt.Errorf("invalid bill template: %w", err)
	}
	return s.store.CreateBillTemplate(ctx, tpl)
}

func (s *BillService) ListTemplates(ctx context.Context, userID string) ([]core.BillTemplate, error) {
	return s.store.ListBillTemplates(ctx, userID)
}

func (s *BillService) StopRecurring(ctx context.Context, userID, templateID string) error {
	return s.store.StopRecurring(ctx, userID, templateID)
}

func (s *BillService) DeleteTemplate(ctx context.Context, userID, templateID string) error {
	return s.store.DeleteBillTemplate(ctx, userID, templateID)
}

// Upcoming returns the user's unpaid bills due between today and today plus
// the configured window, ordered by due date.
func (s *BillService) Upcoming(ctx context.Context, userID string, today time.Time) ([]core.BillInstance, error) {
	from := core.DateOf(today)
	to := core.DateOf(today.AddDate(0, 0, s.windowDays))
	return s.store.ListUpcomingInstances(ctx, userID, from, to)
}

// MarkPaid flips the instance to paid and records the spend as a purchase,
// so the payment shows up in balance and summaries. The purchase carries the
// template's category when the template still exists.
func (s *BillService) MarkPaid(ctx context.Context, instanceID string) (core.BillInstance, error) {
	inst, err := s.store.MarkInstancePaid(ctx, instanceID)
	if err != nil {
		return core.BillInstance{}, fmt.Errorf("mark instance paid: %w", err)
	}

	category := "Bills"
	tpl, err := s.store.GetBillTemplate(ctx, inst.TemplateID)
	switch {
	case err == nil && tpl.Category != "":
		category = tpl.Category
	case err != nil && !errors.Is(err, core.ErrNotFound):
		slog.WarnContext(ctx, "Failed to load template for paid bill",
			"instance_id", inst.ID, "template_id", inst.TemplateID, "error", err)
	}

	if _, err := s.store.InsertPurchase(ctx, core.Purchase{
		UserID:   inst.UserID,
		ItemName: inst.Title,
		Category: category,
		Quantity: 1,
		Price:    inst.Amount,
		Total:    inst.Amount,
	}); err != nil {
		// The instance stays paid even when the purchase insert fails.
		slog.ErrorContext(ctx, "Failed to record purchase for paid bill",
			"instance_id", inst.ID, "error", err)
		return inst, fmt.Errorf("record purchase: %w", err)
	}

	slog.InfoContext(ctx, "Bill marked paid",
		"instance_id", inst.ID, "user_id", inst.UserID, "amount_cents", inst.Amount.Cents)

	return inst, nil
}
