//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/usecase"
)

func newFinanceLedger() *memLedger {
	l := newMemLedger()
	t0 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	l.putPayment(model.Payment{ID: "pay_1", Email: "a@example.com", Amount: 1000, Status: model.PaymentStatusVerified, CreatedAt: t0})
	l.putPayment(model.Payment{ID: "pay_2", Email: "b@example.com", Amount: 2000, Status: model.PaymentStatusVerified, CreatedAt: t0})
	l.putPayment(model.Payment{ID: "pay_3", Amount: 5000, Status: model.PaymentStatusFailed, CreatedAt: t0})

	done := func(id, pay string, amount int64, speed model.RefundSpeed, created time.Time, hours int) {
		at := created.Add(time.Duration(hours) * time.Hour)
		l.putRefund(model.Refund{ID: id, PaymentID: pay, Amount: amount, Status: model.RefundStatusProcessed, Speed: speed, CreatedAt: created, UpdatedAt: at, ProcessedAt: &at})
	}
	done("r1", "pay_1", 100, model.RefundSpeedInstant, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 2)
	done("r2", "pay_1", 200, model.RefundSpeedNormal, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), 4)
	done("r3", "pay_2", 300, model.RefundSpeedNormal, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), 6)
	l.putRefund(model.Refund{ID: "r4", PaymentID: "pay_2", Amount: 50, Status: model.RefundStatusProcessing, Speed: model.RefundSpeedNormal, CreatedAt: t0, UpdatedAt: t0})
	l.putRefund(model.Refund{ID: "r5", PaymentID: "pay_2", Amount: 70, Status: model.RefundStatusFailed, Speed: model.RefundSpeedNormal, CreatedAt: t0, UpdatedAt: t0})
	return l
}

func TestFinanceUseCase(t *testing.T) {
	ctx := context.Background()
	l := newFinanceLedger()
	now := time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC)
	uc := usecase.NewFinanceUseCase(l.Payments(), l.Refunds(), newTestLogger()).WithClock(func() time.Time { return now })

	t.Run("should total only verified payments", func(t *testing.T) {
		got, err := uc.TotalRevenue(ctx)
		if err != nil || got != 3000 {
			t.Errorf("expected 3000, got %d err %v", got, err)
		}
	})

	t.Run("should total only processed refunds inside the window", func(t *testing.T) {
		all, _ := uc.TotalRefunded(ctx, model.TimeWindow{})
		if all != 600 {
			t.Errorf("expected 600 refunded, got %d", all)
		}
		march, err := uc.MonthlyRefunded(ctx, time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC))
		if err != nil || march != 500 {
			t.Errorf("expected 500 in March, got %d err %v", march, err)
		}
	})

	t.Run("should count processed refunds by speed", func(t *testing.T) {
		got, err := uc.RefundCountBySpeed(ctx)
		if err != nil || got[model.RefundSpeedInstant] != 1 || got[model.RefundSpeedNormal] != 2 {
			t.Errorf("unexpected counts %v err %v", got, err)
		}
	})

	t.Run("should average processing time in hours", func(t *testing.T) {
		h, ok, err := uc.AverageProcessingHours(ctx)
		if err != nil || !ok || math.Abs(h-4) > 1e-9 {
			t.Errorf("expected 4h, got %v ok=%v err %v", h, ok, err)
		}
		empty := usecase.NewFinanceUseCase(newMemLedger().Payments(), newMemLedger().Refunds(), newTestLogger())
		h, ok, err = empty.AverageProcessingHours(ctx)
		if err != nil || ok || h != 0 {
			t.Errorf("expected no data, got %v ok=%v err %v", h, ok, err)
		}
	})

	t.Run("should zero-fill the monthly series oldest first", func(t *testing.T) {
		// --- Act ---
		series, err := uc.MonthlySeries(ctx, 4)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		want := []model.MonthlyRefundData{
			{Month: "2024-01", Amount: 100, Count: 1},
			{Month: "2024-02"},
			{Month: "2024-03", Amount: 500, Count: 2},
			{Month: "2024-04"},
		}
		if len(series) != len(want) {
			t.Fatalf("expected %d buckets, got %d", len(want), len(series))
		}
		for i := range want {
			if series[i] != want[i] {
				t.Errorf("bucket %d: expected %+v, got %+v", i, want[i], series[i])
			}
		}
	})

	t.Run("should validate the series length", func(t *testing.T) {
		for _, n := range []int{0, -1, usecase.MaxMonthlySeries + 1} {
			if _, err := uc.MonthlySeries(ctx, n); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("n=%d: expected ErrInvalidArgument, got %v", n, err)
			}
		}
	})

	t.Run("should build a summary", func(t *testing.T) {
		s, err := uc.Summary(ctx)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if s.TotalRevenue != 3000 || s.TotalRefunded != 600 || s.NetRevenue != 2400 || s.PendingRefunds != 1 {
			t.Errorf("unexpected summary %+v", s)
		}
		if s.MonthlyRefunded != 0 {
			t.Errorf("expected nothing refunded in April, got %d", s.MonthlyRefunded)
		}
	})

	t.Run("should fail the summary when one aggregate fails", func(t *testing.T) {
		bad := newFinanceLedger()
		bad.FailOn["refunds.SumProcessed"] = errors.New("db down")
		_, err := usecase.NewFinanceUseCase(bad.Payments(), bad.Refunds(), newTestLogger()).Summary(ctx)
		if err == nil {
			t.Error("expected an error")
		}
	})
}

func TestFinanceUseCase_Paginated(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger()
	l.putPayment(model.Payment{ID: "pay_1", Email: "Payer@Example.com", Amount: 100000, Status: model.PaymentStatusVerified})
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	const n = 23
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		l.putRefund(model.Refund{ID: fmt.Sprintf("r%02d", i), PaymentID: "pay_1", Amount: 10, Status: model.RefundStatusInitiated, CreatedAt: at, UpdatedAt: at})
	}
	uc := usecase.NewFinanceUseCase(l.Payments(), l.Refunds(), newTestLogger())

	t.Run("should return the newest refunds first with the total", func(t *testing.T) {
		page, err := uc.Paginated(ctx, 1, 10, model.RefundFilter{})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if page.TotalCount != n || len(page.Items) != 10 {
			t.Fatalf("unexpected first page: total=%d len=%d", page.TotalCount, len(page.Items))
		}
		if page.Items[0].ID != "r22" {
			t.Errorf("expected newest refund first, got %s", page.Items[0].ID)
		}
	})

	t.Run("should return an empty page past the end with the correct total", func(t *testing.T) {
		pageSize := 10
		last := int(math.Ceil(float64(n)/float64(pageSize))) + 1
		page, err := uc.Paginated(ctx, last, pageSize, model.RefundFilter{})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(page.Items) != 0 || page.TotalCount != n {
			t.Errorf("expected empty items and total %d, got %d items total %d", n, len(page.Items), page.TotalCount)
		}
		if page.Items == nil {
			t.Error("expected an empty, non-nil item slice")
		}
	})

	t.Run("should filter by payer email case-insensitively", func(t *testing.T) {
		page, err := uc.Paginated(ctx, 1, 100, model.RefundFilter{Email: "payer@example.com"})
		if err != nil || page.TotalCount != n {
			t.Errorf("expected %d matches, got %d err %v", n, page.TotalCount, err)
		}
	})

	t.Run("should reject invalid paging", func(t *testing.T) {
		cases := []struct{ page, size int }{{0, 10}, {-1, 10}, {1, 0}, {1, usecase.MaxPageSize + 1}}
		for _, c := range cases {
			if _, err := uc.Paginated(ctx, c.page, c.size, model.RefundFilter{}); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("page=%d size=%d: expected ErrInvalidArgument, got %v", c.page, c.size, err)
			}
		}
	})
}
