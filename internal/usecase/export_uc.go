// File: internal/usecase/export_uc.go
package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
)

type ExportKind string

const (
	ExportPayments ExportKind = "payments"
	ExportRefunds  ExportKind = "refunds"
	ExportAll      ExportKind = "all"
)

type ExportQuery struct {
	Kind ExportKind
	From *time.Time
	To   *time.Time
}

// ExportColumns is the CSV header. Column order is part of the contract.
var ExportColumns = []string{"type", "id", "reference_id", "user_id", "amount", "currency", "status", "created_at", "processed_at"}

const exportPageSize = 500

var _ ExportUseCase = (*exportUC)(nil)

type ExportUseCase interface {
	WriteCSV(ctx context.Context, w io.Writer, q ExportQuery) error
}

type exportUC struct {
	payments repository.PaymentRepository
	refunds  repository.RefundRepository
	log      *zerolog.Logger
}

func NewExportUseCase(payments repository.PaymentRepository, refunds repository.RefundRepository, logger *zerolog.Logger) *exportUC {
	l := logger.With().Str("component", "ExportUseCase").Logger()
	return &exportUC{payments: payments, refunds: refunds, log: &l}
}

func (u *exportUC) WriteCSV(ctx context.Context, w io.Writer, q ExportQuery) error {
	if q.Kind == "" {
		q.Kind = ExportAll
	}
	switch q.Kind {
	case ExportPayments, ExportRefunds, ExportAll:
	default:
		return domain.NewValidationError("kind", "must be payments, refunds or all")
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return domain.NewValidationError("endDate", "must not be before startDate")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return err
	}
	rows := 0
	if q.Kind != ExportRefunds {
		n, err := u.writePayments(ctx, cw, q)
		rows += n
		if err != nil {
			return err
		}
	}
	if q.Kind != ExportPayments {
		n, err := u.writeRefunds(ctx, cw, q)
		rows += n
		if err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	u.log.Info().Str("kind", string(q.Kind)).Int("rows", rows).Msg("export written")
	return nil
}

func (u *exportUC) writePayments(ctx context.Context, cw *csv.Writer, q ExportQuery) (int, error) {
	w := model.TimeWindow{From: q.From, To: q.To}
	n := 0
	for offset := 0; ; offset += exportPageSize {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		batch, err := u.payments.ListCreatedBetween(ctx, repository.NoTX, w, offset, exportPageSize)
		if err != nil {
			return n, err
		}
		for _, p := range batch {
			rec := []string{"payment", p.ID, p.OrderID, p.UserID, strconv.FormatInt(p.Amount, 10), p.Currency,
				string(p.Status), formatTime(&p.CreatedAt), formatTime(p.VerifiedAt)}
			if err := cw.Write(rec); err != nil {
				return n, err
			}
			n++
		}
		cw.Flush()
		if len(batch) < exportPageSize {
			return n, cw.Error()
		}
	}
}

func (u *exportUC) writeRefunds(ctx context.Context, cw *csv.Writer, q ExportQuery) (int, error) {
	f := model.RefundFilter{From: q.From, To: q.To}
	owners := map[string]*model.Payment{}
	n := 0
	for offset := 0; ; offset += exportPageSize {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		batch, _, err := u.refunds.List(ctx, repository.NoTX, f, offset, exportPageSize)
		if err != nil {
			return n, err
		}
		for _, r := range batch {
			p, err := u.owner(ctx, owners, r.PaymentID)
			if err != nil {
				return n, err
			}
			rec := []string{"refund", r.ID, r.PaymentID, p.UserID, strconv.FormatInt(r.Amount, 10), p.Currency,
				string(r.Status), formatTime(&r.CreatedAt), formatTime(r.ProcessedAt)}
			if err := cw.Write(rec); err != nil {
				return n, err
			}
			n++
		}
		cw.Flush()
		if len(batch) < exportPageSize {
			return n, cw.Error()
		}
	}
}

func (u *exportUC) owner(ctx context.Context, seen map[string]*model.Payment, paymentID string) (*model.Payment, error) {
	if p, ok := seen[paymentID]; ok {
		return p, nil
	}
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if errors.Is(err, domain.ErrNotFound) {
		p, err = &model.Payment{ID: paymentID}, nil
	}
	if err != nil {
		return nil, err
	}
	seen[paymentID] = p
	return p, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
