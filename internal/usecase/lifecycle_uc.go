// File: internal/usecase/lifecycle_uc.go
package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/adapter"
	"billing-reconciler/internal/domain/ports/repository"
	uc "billing-reconciler/internal/domain/ports/usecase"
	"billing-reconciler/internal/infra/metrics"
)

var (
	_ LifecycleUseCase   = (*lifecycleUC)(nil)
	_ uc.LifecycleRunner = (*lifecycleUC)(nil)
)

// LifecycleUseCase moves subscriptions through their time-driven states.
// Every transition is a conditional update, so a pass re-run over the same
// window changes nothing and notifies nobody twice.
type LifecycleUseCase interface {
	RunExpiryPass(ctx context.Context) (int, error)
	RunGracePass(ctx context.Context) (int, error)
	RunWarningPass(ctx context.Context) (int, error)
	Run(ctx context.Context) (model.LifecycleReport, error)
}

type LifecycleOptions struct {
	BatchSize        int
	WarnDays         []int
	DefaultGraceDays int
}

type lifecycleUC struct {
	subs     repository.SubscriptionRepository
	services repository.ServiceConfigRepository
	notified repository.NotificationLogRepository
	notifier adapter.NotificationSender
	opts     LifecycleOptions
	log      *zerolog.Logger
	now      func() time.Time
}

func NewLifecycleUseCase(
	subs repository.SubscriptionRepository,
	services repository.ServiceConfigRepository,
	notified repository.NotificationLogRepository,
	notifier adapter.NotificationSender,
	opts LifecycleOptions,
	logger *zerolog.Logger,
) *lifecycleUC {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	warn := append([]int(nil), opts.WarnDays...)
	sort.Ints(warn)
	opts.WarnDays = warn
	l := logger.With().Str("component", "LifecycleUseCase").Logger()
	return &lifecycleUC{subs: subs, services: services, notified: notified, notifier: notifier, opts: opts, log: &l, now: time.Now}
}

// WithClock replaces the time source.
func (u *lifecycleUC) WithClock(now func() time.Time) *lifecycleUC {
	u.now = now
	return u
}

type passResult struct {
	transitions  map[model.SubscriptionStatus]int
	notified     int
	notifyFailed int
}

func newPassResult() *passResult {
	return &passResult{transitions: map[model.SubscriptionStatus]int{}}
}

func (p *passResult) total() int {
	n := 0
	for _, v := range p.transitions {
		n += v
	}
	return n
}

func (u *lifecycleUC) RunExpiryPass(ctx context.Context) (int, error) {
	res, err := u.expiryPass(ctx, u.now().UTC())
	return res.total(), err
}

func (u *lifecycleUC) RunGracePass(ctx context.Context) (int, error) {
	res, err := u.gracePass(ctx, u.now().UTC())
	return res.total(), err
}

func (u *lifecycleUC) RunWarningPass(ctx context.Context) (int, error) {
	res, err := u.warningPass(ctx, u.now().UTC())
	return res.notified, err
}

// Run executes the warning, expiry and grace passes in that order. A failing
// pass does not stop the following ones; the errors are joined.
func (u *lifecycleUC) Run(ctx context.Context) (model.LifecycleReport, error) {
	start := u.now()
	now := start.UTC()
	var rep model.LifecycleReport

	warn, werr := u.warningPass(ctx, now)
	rep.WarningsSent = warn.notified
	rep.NotifyFailed += warn.notifyFailed

	exp, eerr := u.expiryPass(ctx, now)
	rep.Expired = exp.transitions[model.SubscriptionStatusExpired]
	rep.GraceStarted = exp.transitions[model.SubscriptionStatusGrace]
	rep.NotifyFailed += exp.notifyFailed

	gr, gerr := u.gracePass(ctx, now)
	rep.GraceExpired = gr.transitions[model.SubscriptionStatusGraceExpired]
	rep.NotifyFailed += gr.notifyFailed

	for _, p := range []*passResult{exp, gr} {
		for st, n := range p.transitions {
			metrics.AddSubscriptionTransitions(string(st), n)
		}
	}

	err := errors.Join(werr, eerr, gerr)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ObserveLifecycleRun(result, u.now().Sub(start))
	u.log.Info().
		Int("expired", rep.Expired).
		Int("grace_started", rep.GraceStarted).
		Int("grace_expired", rep.GraceExpired).
		Int("warnings", rep.WarningsSent).
		Int("notify_failed", rep.NotifyFailed).
		Err(err).
		Msg("lifecycle run finished")
	return rep, err
}

func (u *lifecycleUC) expiryPass(ctx context.Context, now time.Time) (*passResult, error) {
	res := newPassResult()
	graceDays := map[string]int{}
	for {
		batch, err := u.subs.ListActiveEndedBefore(ctx, repository.NoTX, now, u.opts.BatchSize)
		if err != nil {
			return res, err
		}
		moved := 0
		for _, s := range batch {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			g, err := u.graceDaysFor(ctx, s.ServiceID, graceDays)
			if err != nil {
				return res, err
			}
			target, graceEnd := s.ExpiryTarget(g)
			ok, err := u.subs.TransitionStatus(ctx, repository.NoTX, s.ID, []model.SubscriptionStatus{model.SubscriptionStatusActive}, target, graceEnd)
			if err != nil {
				return res, err
			}
			if !ok {
				continue
			}
			moved++
			res.transitions[target]++
			s.Status, s.GraceEndAt = target, graceEnd
			u.notify(ctx, res, s, model.NotificationExpired, 0, now)
		}
		if len(batch) < u.opts.BatchSize || moved == 0 {
			return res, nil
		}
	}
}

func (u *lifecycleUC) gracePass(ctx context.Context, now time.Time) (*passResult, error) {
	res := newPassResult()
	for {
		batch, err := u.subs.ListGraceEndedBefore(ctx, repository.NoTX, now, u.opts.BatchSize)
		if err != nil {
			return res, err
		}
		moved := 0
		for _, s := range batch {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			ok, err := u.subs.TransitionStatus(ctx, repository.NoTX, s.ID, []model.SubscriptionStatus{model.SubscriptionStatusGrace}, model.SubscriptionStatusGraceExpired, s.GraceEndAt)
			if err != nil {
				return res, err
			}
			if !ok {
				continue
			}
			moved++
			res.transitions[model.SubscriptionStatusGraceExpired]++
			u.notify(ctx, res, s, model.NotificationGraceExpired, 0, now)
		}
		if len(batch) < u.opts.BatchSize || moved == 0 {
			return res, nil
		}
	}
}

// warningPass sends one warning per (subscription, threshold, period end). A
// subscription gets the tightest threshold it currently falls under; the
// notification log makes the send happen at most once per period.
func (u *lifecycleUC) warningPass(ctx context.Context, now time.Time) (*passResult, error) {
	res := newPassResult()
	if len(u.opts.WarnDays) == 0 {
		return res, nil
	}
	horizon := now.AddDate(0, 0, u.opts.WarnDays[len(u.opts.WarnDays)-1])
	after, afterID := now, ""
	for {
		batch, err := u.subs.ListActiveEndingBetween(ctx, repository.NoTX, after, afterID, horizon, u.opts.BatchSize)
		if err != nil {
			return res, err
		}
		for _, s := range batch {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if err := u.warn(ctx, res, s, now); err != nil {
				return res, err
			}
		}
		if len(batch) < u.opts.BatchSize {
			return res, nil
		}
		last := batch[len(batch)-1]
		after, afterID = last.EndAt, last.ID
	}
}

func (u *lifecycleUC) warn(ctx context.Context, res *passResult, s *model.Subscription, now time.Time) error {
	threshold := u.thresholdFor(s.DaysLeft(now))
	if threshold == 0 {
		return nil
	}
	mark := repository.NotificationMark{
		SubscriptionID: s.ID,
		UserID:         s.UserID,
		Kind:           string(model.NotificationExpiryWarning),
		ThresholdDays:  threshold,
		PeriodEnd:      s.EndAt,
	}
	first, err := u.notified.Record(ctx, repository.NoTX, mark)
	if err != nil || !first {
		return err
	}
	if u.notify(ctx, res, s, model.NotificationExpiryWarning, threshold, now) {
		return nil
	}
	// not handed off; free the mark so the next run retries
	if err := u.notified.Release(ctx, repository.NoTX, mark); err != nil {
		u.log.Error().Err(err).Str("subscription_id", s.ID).Int("threshold_days", threshold).Msg("release notification mark failed")
	}
	return nil
}

func (u *lifecycleUC) thresholdFor(daysLeft int) int {
	for _, d := range u.opts.WarnDays {
		if daysLeft <= d {
			return d
		}
	}
	return 0
}

func (u *lifecycleUC) graceDaysFor(ctx context.Context, serviceID string, seen map[string]int) (int, error) {
	if g, ok := seen[serviceID]; ok {
		return g, nil
	}
	g := u.opts.DefaultGraceDays
	svc, err := u.services.FindByID(ctx, repository.NoTX, serviceID)
	switch {
	case err == nil:
		g = svc.GraceDays
	case errors.Is(err, domain.ErrNotFound):
		u.log.Warn().Str("service_id", serviceID).Msg("service missing, using default grace days")
	default:
		return 0, err
	}
	seen[serviceID] = g
	return g, nil
}

// notify reports whether the notification was handed to the sender.
func (u *lifecycleUC) notify(ctx context.Context, res *passResult, s *model.Subscription, kind model.NotificationKind, threshold int, now time.Time) bool {
	if u.notifier == nil {
		return true
	}
	req := model.NewNotificationRequest(s, kind, threshold, now)
	if err := u.notifier.Send(ctx, req); err != nil {
		res.notifyFailed++
		u.log.Warn().Err(err).Str("subscription_id", s.ID).Str("kind", string(kind)).Msg("notification not sent")
		return false
	}
	res.notified++
	return true
}
