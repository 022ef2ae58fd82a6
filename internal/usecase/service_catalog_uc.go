package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
)

var _ ServiceCatalogUseCase = (*serviceCatalogUC)(nil)

// ServiceCatalogUseCase manages the purchasable services. Every field change
// is recorded in the service history.
type ServiceCatalogUseCase interface {
	Upsert(ctx context.Context, svc *model.ServiceConfig, changedBy string) (created bool, err error)
	List(ctx context.Context) ([]*model.ServiceConfig, error)
	History(ctx context.Context, serviceID string, limit int) ([]*model.ServiceHistory, error)
}

type serviceCatalogUC struct {
	services repository.ServiceConfigRepository
	history  repository.ServiceHistoryRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewServiceCatalogUseCase(services repository.ServiceConfigRepository, history repository.ServiceHistoryRepository, tm repository.TransactionManager, logger *zerolog.Logger) *serviceCatalogUC {
	l := logger.With().Str("component", "ServiceCatalogUseCase").Logger()
	return &serviceCatalogUC{services: services, history: history, tm: tm, log: &l, now: time.Now}
}

func (u *serviceCatalogUC) Upsert(ctx context.Context, svc *model.ServiceConfig, changedBy string) (bool, error) {
	if err := validateService(svc); err != nil {
		return false, err
	}
	created := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		prev, err := u.services.FindByID(ctx, tx, svc.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		now := u.now().UTC()
		svc.UpdatedAt = now
		if err := u.services.Save(ctx, tx, svc); err != nil {
			return err
		}
		created = prev == nil
		for _, c := range serviceDiff(prev, svc) {
			h := &model.ServiceHistory{
				ID:        ulid.Make().String(),
				ServiceID: svc.ID,
				Field:     c[0],
				OldValue:  c[1],
				NewValue:  c[2],
				ChangedBy: changedBy,
				ChangedAt: now,
			}
			if err := u.history.Append(ctx, tx, h); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	u.log.Info().Str("service_id", svc.ID).Bool("created", created).Str("changed_by", changedBy).Msg("service saved")
	return created, nil
}

func (u *serviceCatalogUC) List(ctx context.Context) ([]*model.ServiceConfig, error) {
	return u.services.ListAll(ctx, repository.NoTX)
}

func (u *serviceCatalogUC) History(ctx context.Context, serviceID string, limit int) ([]*model.ServiceHistory, error) {
	if serviceID == "" {
		return nil, domain.NewValidationError("serviceId", "is required")
	}
	return u.history.ListByService(ctx, repository.NoTX, serviceID, limit)
}

func validateService(s *model.ServiceConfig) error {
	switch {
	case s == nil || strings.TrimSpace(s.ID) == "":
		return domain.NewValidationError("id", "is required")
	case strings.TrimSpace(s.Name) == "":
		return domain.NewValidationError("name", "is required")
	case s.PriceMinor <= 0:
		return domain.NewValidationError("priceMinor", "must be positive")
	case len(s.Currency) != 3:
		return domain.NewValidationError("currency", "must be an ISO 4217 code")
	case s.DurationDays <= 0:
		return domain.NewValidationError("durationDays", "must be positive")
	case s.GraceDays < 0:
		return domain.NewValidationError("graceDays", "must not be negative")
	}
	return nil
}

// serviceDiff lists {field, old, new} for every changed field. A nil prev
// diffs against the zero ServiceConfig.
func serviceDiff(prev, next *model.ServiceConfig) [][3]string {
	if prev == nil {
		prev = &model.ServiceConfig{}
	}
	pairs := [][3]string{
		{"name", prev.Name, next.Name},
		{"price_minor", itoa64(prev.PriceMinor), itoa64(next.PriceMinor)},
		{"currency", prev.Currency, next.Currency},
		{"duration_days", strconv.Itoa(prev.DurationDays), strconv.Itoa(next.DurationDays)},
		{"grace_days", strconv.Itoa(prev.GraceDays), strconv.Itoa(next.GraceDays)},
		{"active", strconv.FormatBool(prev.Active), strconv.FormatBool(next.Active)},
	}
	out := pairs[:0]
	for _, p := range pairs {
		if p[1] != p[2] {
			out = append(out, p)
		}
	}
	return out
}

func itoa64(n int64) string { return strconv.FormatInt(n, 10) }
