// File: internal/usecase/finance_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
)

const (
	MaxPageSize      = 100
	MaxMonthlySeries = 120
)

var _ FinanceUseCase = (*financeUC)(nil)

// FinanceUseCase is read-only over the ledger. Refund sums only count PROCESSED
// refunds and window them by processed_at; months are calendar months in UTC.
type FinanceUseCase interface {
	TotalRevenue(ctx context.Context) (int64, error)
	TotalRefunded(ctx context.Context, w model.TimeWindow) (int64, error)
	MonthlyRefunded(ctx context.Context, month time.Time) (int64, error)
	RefundCountBySpeed(ctx context.Context) (map[model.RefundSpeed]int64, error)
	// AverageProcessingHours returns ok=false when nothing has been processed yet.
	AverageProcessingHours(ctx context.Context) (hours float64, ok bool, err error)
	MonthlySeries(ctx context.Context, n int) ([]model.MonthlyRefundData, error)
	Paginated(ctx context.Context, page, pageSize int, f model.RefundFilter) (model.Page[*model.Refund], error)
	Summary(ctx context.Context) (model.FinancialSummary, error)
}

type financeUC struct {
	payments repository.PaymentRepository
	refunds  repository.RefundRepository
	log      *zerolog.Logger
	now      func() time.Time
}

func NewFinanceUseCase(payments repository.PaymentRepository, refunds repository.RefundRepository, logger *zerolog.Logger) *financeUC {
	l := logger.With().Str("component", "FinanceUseCase").Logger()
	return &financeUC{payments: payments, refunds: refunds, log: &l, now: time.Now}
}

// WithClock replaces the time source.
func (u *financeUC) WithClock(now func() time.Time) *financeUC {
	u.now = now
	return u
}

func (u *financeUC) TotalRevenue(ctx context.Context) (int64, error) {
	return u.payments.SumVerified(ctx, repository.NoTX, model.TimeWindow{})
}

func (u *financeUC) TotalRefunded(ctx context.Context, w model.TimeWindow) (int64, error) {
	if w.From != nil && w.To != nil && w.To.Before(*w.From) {
		return 0, domain.NewValidationError("endDate", "must not be before startDate")
	}
	return u.refunds.SumProcessed(ctx, repository.NoTX, w)
}

func (u *financeUC) MonthlyRefunded(ctx context.Context, month time.Time) (int64, error) {
	from := monthStart(month)
	to := from.AddDate(0, 1, 0)
	return u.refunds.SumProcessed(ctx, repository.NoTX, model.TimeWindow{From: &from, To: &to})
}

func (u *financeUC) RefundCountBySpeed(ctx context.Context) (map[model.RefundSpeed]int64, error) {
	counts, err := u.refunds.CountProcessedBySpeed(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	out := map[model.RefundSpeed]int64{model.RefundSpeedInstant: 0, model.RefundSpeedNormal: 0}
	for k, v := range counts {
		out[k] = v
	}
	return out, nil
}

func (u *financeUC) AverageProcessingHours(ctx context.Context) (float64, bool, error) {
	secs, ok, err := u.refunds.AverageProcessingSeconds(ctx, repository.NoTX)
	if err != nil || !ok {
		return 0, false, err
	}
	return secs / 3600, true, nil
}

// MonthlySeries returns the last n calendar months including the current one,
// oldest first, with empty months present as zero buckets.
func (u *financeUC) MonthlySeries(ctx context.Context, n int) ([]model.MonthlyRefundData, error) {
	if n < 1 || n > MaxMonthlySeries {
		return nil, domain.NewValidationError("months", fmt.Sprintf("must be between 1 and %d", MaxMonthlySeries))
	}
	first := monthStart(u.now()).AddDate(0, -(n - 1), 0)
	rows, err := u.refunds.MonthlyProcessed(ctx, repository.NoTX, first)
	if err != nil {
		return nil, err
	}
	byMonth := make(map[string]model.MonthlyRefundData, len(rows))
	for _, r := range rows {
		byMonth[r.Month] = r
	}
	out := make([]model.MonthlyRefundData, 0, n)
	for i := 0; i < n; i++ {
		label := first.AddDate(0, i, 0).Format("2006-01")
		b, ok := byMonth[label]
		if !ok {
			b = model.MonthlyRefundData{Month: label}
		}
		out = append(out, b)
	}
	return out, nil
}

func (u *financeUC) Paginated(ctx context.Context, page, pageSize int, f model.RefundFilter) (model.Page[*model.Refund], error) {
	return pageRefunds(ctx, u.refunds, page, pageSize, f)
}

// Summary computes every headline figure concurrently.
func (u *financeUC) Summary(ctx context.Context) (model.FinancialSummary, error) {
	var s model.FinancialSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.TotalRevenue, err = u.TotalRevenue(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.TotalRefunded, err = u.TotalRefunded(gctx, model.TimeWindow{})
		return err
	})
	g.Go(func() (err error) {
		s.MonthlyRefunded, err = u.MonthlyRefunded(gctx, u.now())
		return err
	})
	g.Go(func() (err error) {
		s.RefundCountBySpeed, err = u.RefundCountBySpeed(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.AverageProcessingHours, _, err = u.AverageProcessingHours(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.PendingRefunds, err = u.refunds.CountByStatus(gctx, repository.NoTX, model.RefundStatusInitiated, model.RefundStatusProcessing)
		return err
	})
	if err := g.Wait(); err != nil {
		u.log.Error().Err(err).Msg("financial summary failed")
		return model.FinancialSummary{}, err
	}
	s.NetRevenue = s.TotalRevenue - s.TotalRefunded
	return s, nil
}

// pageRefunds validates 1-indexed paging. A page past the end is empty but
// still carries the total.
func pageRefunds(ctx context.Context, refunds repository.RefundRepository, page, pageSize int, f model.RefundFilter) (model.Page[*model.Refund], error) {
	if page < 1 {
		return model.Page[*model.Refund]{}, domain.NewValidationError("page", "must be a positive integer")
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return model.Page[*model.Refund]{}, domain.NewValidationError("pageSize", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	}
	if f.Status != "" && !f.Status.Valid() {
		return model.Page[*model.Refund]{}, domain.NewValidationError("status", fmt.Sprintf("unknown refund status %q", f.Status))
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return model.Page[*model.Refund]{}, domain.NewValidationError("endDate", "must not be before startDate")
	}
	items, total, err := refunds.List(ctx, repository.NoTX, f, (page-1)*pageSize, pageSize)
	if err != nil {
		return model.Page[*model.Refund]{}, err
	}
	if items == nil {
		items = []*model.Refund{}
	}
	return model.Page[*model.Refund]{Items: items, Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
