//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/usecase"
)

type lifecycleFixture struct {
	ledger   *memLedger
	notifier *MockNotifier
	uc       usecase.LifecycleUseCase
	now      time.Time
}

func newLifecycleFixture(graceDays int) *lifecycleFixture {
	f := &lifecycleFixture{
		ledger:   newMemLedger(),
		notifier: &MockNotifier{},
		now:      time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	f.ledger.putService(model.ServiceConfig{ID: "svc-1", DurationDays: 30, GraceDays: graceDays, Active: true})
	f.uc = usecase.NewLifecycleUseCase(
		f.ledger.Subscriptions(),
		f.ledger.Services(),
		f.ledger.NotificationLog(),
		f.notifier,
		usecase.LifecycleOptions{BatchSize: 2, WarnDays: []int{3, 1}},
		newTestLogger(),
	).WithClock(func() time.Time { return f.now })
	return f
}

func (f *lifecycleFixture) seed(id string, status model.SubscriptionStatus, endAt time.Time) {
	f.ledger.putSubscription(model.Subscription{ID: id, UserID: "user-" + id, ServiceID: "svc-1", Status: status, StartAt: endAt.AddDate(0, 0, -30), EndAt: endAt})
}

func TestLifecycle_ExpiryScenario(t *testing.T) {
	// --- Arrange ---
	ctx := context.Background()
	f := newLifecycleFixture(0)
	f.seed("s1", model.SubscriptionStatusActive, f.now.AddDate(0, 0, -1))

	// --- Act ---
	first, err := f.uc.Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	second, err := f.uc.Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}

	// --- Assert ---
	if first.Expired != 1 {
		t.Errorf("expected 1 expiry in the first run, got %+v", first)
	}
	if got := f.ledger.subscription("s1").Status; got != model.SubscriptionStatusExpired {
		t.Errorf("expected EXPIRED, got %s", got)
	}
	if second != (model.LifecycleReport{}) {
		t.Errorf("expected the second run to change nothing, got %+v", second)
	}
	if got := f.notifier.count(model.NotificationExpired); got != 1 {
		t.Errorf("expected exactly one expiry notification, got %d", got)
	}
}

func TestLifecycle_GracePeriod(t *testing.T) {
	ctx := context.Background()

	t.Run("should move expired subscriptions into grace when the service has one", func(t *testing.T) {
		// --- Arrange ---
		f := newLifecycleFixture(7)
		end := f.now.AddDate(0, 0, -1)
		f.seed("s1", model.SubscriptionStatusActive, end)

		// --- Act ---
		n, err := f.uc.RunExpiryPass(ctx)

		// --- Assert ---
		if err != nil || n != 1 {
			t.Fatalf("expected 1 transition, got %d err %v", n, err)
		}
		s := f.ledger.subscription("s1")
		if s.Status != model.SubscriptionStatusGrace || s.GraceEndAt == nil || !s.GraceEndAt.Equal(end.AddDate(0, 0, 7)) {
			t.Errorf("expected GRACE until %v, got %s %v", end.AddDate(0, 0, 7), s.Status, s.GraceEndAt)
		}
	})

	t.Run("should expire grace once its end passes", func(t *testing.T) {
		f := newLifecycleFixture(7)
		graceEnd := f.now.Add(-time.Hour)
		f.ledger.putSubscription(model.Subscription{ID: "s1", UserID: "u1", ServiceID: "svc-1", Status: model.SubscriptionStatusGrace, EndAt: graceEnd.AddDate(0, 0, -7), GraceEndAt: &graceEnd})
		f.ledger.putSubscription(model.Subscription{ID: "s2", UserID: "u2", ServiceID: "svc-1", Status: model.SubscriptionStatusCancelled, EndAt: graceEnd})

		n, err := f.uc.RunGracePass(ctx)
		if err != nil || n != 1 {
			t.Fatalf("expected 1 transition, got %d err %v", n, err)
		}
		if got := f.ledger.subscription("s1").Status; got != model.SubscriptionStatusGraceExpired {
			t.Errorf("expected GRACE_EXPIRED, got %s", got)
		}
		if got := f.ledger.subscription("s2").Status; got != model.SubscriptionStatusCancelled {
			t.Errorf("expected cancelled subscription untouched, got %s", got)
		}
		if n, _ := f.uc.RunGracePass(ctx); n != 0 {
			t.Errorf("expected rerun to be a no-op, got %d", n)
		}
		if got := f.notifier.count(model.NotificationGraceExpired); got != 1 {
			t.Errorf("expected one grace notification, got %d", got)
		}
	})
}

func TestLifecycle_Batches(t *testing.T) {
	// batch size is 2 in the fixture
	f := newLifecycleFixture(0)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		f.seed(id, model.SubscriptionStatusActive, f.now.Add(-time.Minute))
	}
	n, err := f.uc.RunExpiryPass(context.Background())
	if err != nil || n != 5 {
		t.Errorf("expected 5 transitions across batches, got %d err %v", n, err)
	}
}

func TestLifecycle_WarningPass(t *testing.T) {
	ctx := context.Background()

	t.Run("should warn once per threshold", func(t *testing.T) {
		// --- Arrange ---
		f := newLifecycleFixture(0)
		f.seed("s3", model.SubscriptionStatusActive, f.now.Add(60*time.Hour)) // 3 days left
		f.seed("s1", model.SubscriptionStatusActive, f.now.Add(20*time.Hour)) // 1 day left
		f.seed("s9", model.SubscriptionStatusActive, f.now.AddDate(0, 0, 9))

		// --- Act ---
		n, err := f.uc.RunWarningPass(ctx)
		again, err2 := f.uc.RunWarningPass(ctx)

		// --- Assert ---
		if err != nil || err2 != nil {
			t.Fatalf("unexpected errors %v %v", err, err2)
		}
		if n != 2 || again != 0 {
			t.Errorf("expected 2 then 0 warnings, got %d then %d", n, again)
		}
		thresholds := map[string]int{}
		for _, s := range f.notifier.Sent {
			thresholds[s.SubscriptionID] = s.ThresholdDays
		}
		if thresholds["s3"] != 3 || thresholds["s1"] != 1 {
			t.Errorf("unexpected thresholds %v", thresholds)
		}

		// a day later s3 crosses the 1-day threshold
		f.now = f.now.Add(44 * time.Hour)
		n, _ = f.uc.RunWarningPass(ctx)
		if n != 1 {
			t.Errorf("expected one more warning, got %d", n)
		}
	})

	t.Run("should reach every subscription sharing one end time across batches", func(t *testing.T) {
		// --- Arrange ---
		f := newLifecycleFixture(0)
		end := f.now.Add(20 * time.Hour)
		for _, id := range []string{"e", "d", "c", "b", "a"} {
			f.seed(id, model.SubscriptionStatusActive, end)
		}

		// --- Act ---
		n, err := f.uc.RunWarningPass(ctx)

		// --- Assert ---
		if err != nil || n != 5 {
			t.Fatalf("expected 5 warnings with batch size 2, got %d err %v", n, err)
		}
		if again, _ := f.uc.RunWarningPass(ctx); again != 0 {
			t.Errorf("expected rerun to send nothing, got %d", again)
		}
	})

	t.Run("should warn again after the subscription is extended", func(t *testing.T) {
		// --- Arrange ---
		f := newLifecycleFixture(0)
		end := f.now.Add(20 * time.Hour)
		f.seed("s1", model.SubscriptionStatusActive, end)
		if n, _ := f.uc.RunWarningPass(ctx); n != 1 {
			t.Fatalf("expected the first period warning, got %d", n)
		}

		// --- Act ---
		if err := f.ledger.Subscriptions().ExtendEnd(ctx, nil, "s1", end.AddDate(0, 0, 30)); err != nil {
			t.Fatalf("extend failed: %v", err)
		}
		f.now = f.now.AddDate(0, 0, 30)
		n, err := f.uc.RunWarningPass(ctx)

		// --- Assert ---
		if err != nil || n != 1 {
			t.Errorf("expected a warning for the renewed period, got %d err %v", n, err)
		}
		if got := f.notifier.count(model.NotificationExpiryWarning); got != 2 {
			t.Errorf("expected 2 warnings in total, got %d", got)
		}
	})

	t.Run("should retry a warning the sender refused", func(t *testing.T) {
		// --- Arrange ---
		f := newLifecycleFixture(0)
		f.seed("s1", model.SubscriptionStatusActive, f.now.Add(20*time.Hour))
		f.notifier.Err = errors.New("queue full")

		// --- Act ---
		rep, err := f.uc.Run(ctx)
		f.notifier.Err = nil
		n, err2 := f.uc.RunWarningPass(ctx)

		// --- Assert ---
		if err != nil || err2 != nil {
			t.Fatalf("unexpected errors %v %v", err, err2)
		}
		if rep.WarningsSent != 0 || rep.NotifyFailed != 1 {
			t.Errorf("unexpected report %+v", rep)
		}
		if n != 1 {
			t.Errorf("expected the refused warning to be sent on retry, got %d", n)
		}
	})

	t.Run("should not roll back transitions when notifications fail", func(t *testing.T) {
		f := newLifecycleFixture(0)
		f.notifier.Err = errors.New("broker down")
		f.seed("s1", model.SubscriptionStatusActive, f.now.Add(-time.Hour))

		rep, err := f.uc.Run(ctx)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if rep.Expired != 1 || rep.NotifyFailed != 1 {
			t.Errorf("unexpected report %+v", rep)
		}
		if got := f.ledger.subscription("s1").Status; got != model.SubscriptionStatusExpired {
			t.Errorf("expected EXPIRED, got %s", got)
		}
	})

	t.Run("should keep running later passes when one fails", func(t *testing.T) {
		f := newLifecycleFixture(0)
		f.seed("s1", model.SubscriptionStatusActive, f.now.Add(-time.Hour))
		f.ledger.FailOn["subs.TransitionStatus"] = errors.New("db down")

		_, err := f.uc.Run(ctx)
		if err == nil {
			t.Error("expected the joined pass error")
		}
	})
}
