package services

import (
	"context"
	"fmt"
	"time"

	"mymoney/internal/core"
)

// LedgerStore is the slice of the store the money ledger needs.
type LedgerStore interface {
	InsertAddedMoney(ctx context.Context, a core.AddedMoney) (core.AddedMoney, error)
	ListAddedMoney(ctx context.Context, userID string) ([]core.AddedMoney, error)
	InsertPurchase(ctx context.Context, p core.Purchase) (core.Purchase, error)
	ListPurchases(ctx context.Context, userID string) ([]core.Purchase, error)
	UserBalance(ctx context.Context, userID string) (core.Money, error)
	MonthlySummary(ctx context.Context, userID string, year int, month time.Month) (core.MonthSummary, error)
}

// LedgerService covers added money, purchases, balance and the monthly
// summary screen.
type LedgerService struct {
	store LedgerStore
}

func NewLedgerService(store LedgerStore) *LedgerService {
	return &LedgerService{store: store}
}

func (s *LedgerService) AddMoney(ctx context.Context, entry core.AddedMoney) (core.AddedMoney, error) {
	if err := entry.Validate(); err != nil {
		return core.AddedMoney{}, fmt.Errorf("invalid added money entry: %w", err)
	}
	return s.store.InsertAddedMoney(ctx, entry)
}

func (s *LedgerService) RecordPurchase(ctx context.Context, p core.Purchase) (core.Purchase, error) {
	if err := p.Validate(); err != nil {
		return core.Purchase{}, fmt.Errorf("invalid purchase: %w", err)
	}
	return s.store.InsertPurchase(ctx, p)
}

func (s *LedgerService) Purchases(ctx context.Context, userID string) ([]core.Purchase, error) {
	return s.store.ListPurchases(ctx, userID)
}

func (s *LedgerService) AddedMoney(ctx context.Context, userID string) ([]core.AddedMoney, error) {
	return s.store.ListAddedMoney(ctx, userID)
}

func (s *LedgerService) Balance(ctx context.Context, userID string) (core.Money, error) {
	return s.store.UserBalance(ctx, userID)
}

// Summary returns the per-month totals the summary screen renders.
func (s *LedgerService) Summary(ctx context.Context, userID string, year int, month time.Month) (core.MonthSummary, error) {
	return s.store.MonthlySummary(ctx, userID, year, month)
}
