package core

// CategoryAmount represents spend aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthSummary is a compact summary for a specific year+month: money put in,
// money spent, and what remains.
type MonthSummary struct {
	Year       int
	Month      int // 1-12
	TotalAdded Money
	TotalSpent Money
	Balance    Money
	ByCategory []CategoryAmount
}
