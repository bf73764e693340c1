package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mymoney/internal/core"
)

// LowBalanceStore is the slice of the store the low-balance check needs.
type LowBalanceStore interface {
	ListProfiles(ctx context.Context) ([]core.Profile, error)
	UserBalance(ctx context.Context, userID string) (core.Money, error)
	InsertNotification(ctx context.Context, n core.NotificationRecord) (core.NotificationRecord, error)
}

// LowBalanceReport summarizes one sweep over all profiles.
type LowBalanceReport struct {
	ProfilesSeen int
	Alerted      int
	Failures     []error
}

func (r LowBalanceReport) Err() error {
	return errors.Join(r.Failures...)
}

// LowBalanceNotifier warns users whose balance has dropped below a fixed
// threshold. One warning per sweep per user; the sweep cadence bounds how
// often a user can be nagged.
type LowBalanceNotifier struct {
	store     LowBalanceStore
	pusher    Pusher
	threshold core.Money
}

func NewLowBalanceNotifier(store LowBalanceStore, pusher Pusher, thresholdCents int64) *LowBalanceNotifier {
	return &LowBalanceNotifier{
		store:     store,
		pusher:    pusher,
		threshold: core.Money{Cents: thresholdCents},
	}
}

// Run checks every profile once. A profile listing failure aborts the run;
// a failure for one user never blocks the rest.
func (l *LowBalanceNotifier) Run(ctx context.Context) (LowBalanceReport, error) {
	var report LowBalanceReport

	profiles, err := l.store.ListProfiles(ctx)
	if err != nil {
		return report, fmt.Errorf("list profiles: %w", err)
	}
	report.ProfilesSeen = len(profiles)

	for _, profile := range profiles {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run abandoned: %w", err)
		}
		alerted, err := l.checkProfile(ctx, profile)
		if err != nil {
			slog.ErrorContext(ctx, "Low balance check failed for user",
				"user_id", profile.ID, "error", err)
			report.Failures = append(report.Failures, fmt.Errorf("user %s: %w", profile.ID, err))
			continue
		}
		if alerted {
			report.Alerted++
		}
	}

	return report, report.Err()
}

func (l *LowBalanceNotifier) checkProfile(ctx context.Context, profile core.Profile) (bool, error) {
	balance, err := l.store.UserBalance(ctx, profile.ID)
	if err != nil {
		return false, fmt.Errorf("compute balance: %w", err)
	}
	if balance.Cents >= l.threshold.Cents {
		return false, nil
	}

	title := "Low balance warning"
	body := fmt.Sprintf("Your balance is %s, below %s. Time to add money.",
		balance.Display(), l.threshold.Display())

	if _, err := l.store.InsertNotification(ctx, core.NotificationRecord{
		UserID:      profile.ID,
		Title:       title,
		Description: body,
		Type:        core.NotificationWarning,
	}); err != nil {
		return false, fmt.Errorf("create warning notification: %w", err)
	}

	slog.InfoContext(ctx, "Low balance warning issued",
		"user_id", profile.ID, "balance_cents", balance.Cents)

	if l.pusher != nil && profile.PushToken != "" {
		if err := l.pusher.Send(ctx, profile.PushToken, title, body); err != nil {
			slog.WarnContext(ctx, "Push delivery failed",
				"user_id", profile.ID, "error", err)
		}
	}

	return true, nil
}
