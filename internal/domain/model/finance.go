package model

import "time"

// MonthlyRefundData is one bucket of a monthly refund series.
type MonthlyRefundData struct {
	Month  string `json:"month"` // YYYY-MM
	Amount int64  `json:"amount"`
	Count  int64  `json:"count"`
}

// TimeWindow is a half-open [From, To) interval. Nil bounds are open.
type TimeWindow struct {
	From *time.Time
	To   *time.Time
}

// FinancialSummary aggregates the ledger for the metrics endpoint.
type FinancialSummary struct {
	TotalRevenue           int64                 `json:"totalRevenue"`
	TotalRefunded          int64                 `json:"totalRefunded"`
	MonthlyRefunded        int64                 `json:"monthlyRefunded"`
	NetRevenue             int64                 `json:"netRevenue"`
	RefundCountBySpeed     map[RefundSpeed]int64 `json:"refundCountBySpeed"`
	AverageProcessingHours float64               `json:"averageProcessingHours"`
	PendingRefunds         int64                 `json:"pendingRefunds"`
}

// Page is a 1-indexed slice of a larger ordered result.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalCount int64 `json:"totalCount"`
}
