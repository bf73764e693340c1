// Package services provides the domain jobs and orchestration on top of the
// store: recurring bill generation, reminders, low-balance alerts, and the
// user-facing bill operations.
//
// This file holds the pure calendar arithmetic for monthly billing cycles.
package services

import (
	"time"

	"mymoney/internal/core"
)

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampDay clamps a template's day-of-month to the last valid day of the
// given month, so day 31 lands on Feb 28/29, Apr 30, and so on.
func clampDay(day, year int, month time.Month) int {
	if last := daysInMonth(year, month); day > last {
		return last
	}
	return day
}

// DueDateFor computes the next actionable due date for a template evaluated
// on a given day. The nominal date is dayOfMonth in today's month, clamped;
// if that date has already passed it advances one month (wrapping December
// into January) and clamps again, so a template never targets a past cycle.
func DueDateFor(dayOfMonth int, today time.Time) core.Date {
	year, month := today.Year(), today.Month()
	nominal := core.NewDate(year, month, clampDay(dayOfMonth, year, month))

	if !nominal.Before(core.DateOf(today).Time) {
		return nominal
	}

	// time.Date normalizes month 13 of year Y to January of Y+1, but the
	// day must be clamped against the target month before constructing the
	// date or a short month would spill into the one after it.
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return core.NewDate(next.Year(), next.Month(), clampDay(dayOfMonth, next.Year(), next.Month()))
}

// ReminderDate is the calendar day a reminder should fire: the due date
// minus the template's lead days.
func ReminderDate(due core.Date, remindBeforeDays int) core.Date {
	return core.DateOf(due.AddDate(0, 0, -remindBeforeDays))
}

// MonthWindow returns the first and last day of the month containing d.
func MonthWindow(d core.Date) (core.Date, core.Date) {
	first := core.NewDate(d.Year(), d.Month(), 1)
	last := core.NewDate(d.Year(), d.Month(), daysInMonth(d.Year(), d.Month()))
	return first, last
}
