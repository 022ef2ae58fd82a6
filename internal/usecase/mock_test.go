//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/adapter"
	"billing-reconciler/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// In-memory ledger
// =============================

// memLedger backs every in-memory repository so that cross-table reads
// (refund list by payer email, export owners) behave like the SQL store.
type memLedger struct {
	mu       sync.Mutex
	payments map[string]model.Payment
	refunds  map[string]model.Refund
	subs     map[string]model.Subscription
	services map[string]model.ServiceConfig
	users    map[string]model.User
	notified map[string]bool
	events   []model.WebhookEvent

	// FailOn makes the named operation return the error, e.g. "refunds.UpdateStatusIf".
	FailOn map[string]error
}

func newMemLedger() *memLedger {
	return &memLedger{
		payments: map[string]model.Payment{},
		refunds:  map[string]model.Refund{},
		subs:     map[string]model.Subscription{},
		services: map[string]model.ServiceConfig{},
		users:    map[string]model.User{},
		notified: map[string]bool{},
		FailOn:   map[string]error{},
	}
}

func (l *memLedger) fail(op string) error {
	return l.FailOn[op]
}

func (l *memLedger) Payments() *memPaymentRepo { return &memPaymentRepo{l} }
func (l *memLedger) Refunds() *memRefundRepo { return &memRefundRepo{l} }
func (l *memLedger) Subscriptions() *memSubscriptionRepo { return &memSubscriptionRepo{l} }
func (l *memLedger) Services() *memServiceRepo { return &memServiceRepo{l} }
func (l *memLedger) Users() *memUserRepo { return &memUserRepo{l} }
func (l *memLedger) NotificationLog() *memNotificationLog { return &memNotificationLog{l} }
func (l *memLedger) WebhookEvents() *memWebhookEvents { return &memWebhookEvents{l} }

func (l *memLedger) putPayment(p model.Payment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payments[p.ID] = p
}

func (l *memLedger) putRefund(r model.Refund) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refunds[r.ID] = r
}

func (l *memLedger) putSubscription(s model.Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[s.ID] = s
}

func (l *memLedger) putService(s model.ServiceConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services[s.ID] = s
}

func (l *memLedger) refund(id string) model.Refund {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refunds[id]
}

func (l *memLedger) subscription(id string) model.Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.subs[id]
}

// ---- Payments ----

type memPaymentRepo struct{ l *memLedger }

var _ repository.PaymentRepository = (*memPaymentRepo)(nil)

func (r *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if err := r.l.fail("payments.Save"); err != nil {
		return false, err
	}
	if _, ok := r.l.payments[p.ID]; ok {
		return false, nil
	}
	r.l.payments[p.ID] = *p
	return true, nil
}

func (r *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	p, ok := r.l.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *memPaymentRepo) SumVerified(ctx context.Context, tx repository.Tx, w model.TimeWindow) (int64, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var sum int64
	for _, p := range r.l.payments {
		if p.Status == model.PaymentStatusVerified && inWindow(p.CreatedAt, w) {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (r *memPaymentRepo) ListCreatedBetween(ctx context.Context, tx repository.Tx, w model.TimeWindow, offset, limit int) ([]*model.Payment, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var all []*model.Payment
	for _, p := range r.l.payments {
		if inWindow(p.CreatedAt, w) {
			p := p
			all = append(all, &p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return pageOf(all, offset, limit), nil
}

func (r *memPaymentRepo) CountCreatedBetween(ctx context.Context, tx repository.Tx, from, to *time.Time) (int64, error) {
	items, _ := r.ListCreatedBetween(ctx, tx, model.TimeWindow{From: from, To: to}, 0, 1<<30)
	return int64(len(items)), nil
}

// ---- Refunds ----

type memRefundRepo struct{ l *memLedger }

var _ repository.RefundRepository = (*memRefundRepo)(nil)

func (r *memRefundRepo) Save(ctx context.Context, tx repository.Tx, rf *model.Refund) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if err := r.l.fail("refunds.Save"); err != nil {
		return false, err
	}
	if _, ok := r.l.refunds[rf.ID]; ok {
		return false, nil
	}
	r.l.refunds[rf.ID] = *rf
	return true, nil
}

func (r *memRefundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Refund, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if err := r.l.fail("refunds.FindByID"); err != nil {
		return nil, err
	}
	rf, ok := r.l.refunds[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rf, nil
}

func (r *memRefundRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, u repository.RefundStatusUpdate) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if err := r.l.fail("refunds.UpdateStatusIf"); err != nil {
		return false, err
	}
	rf, ok := r.l.refunds[id]
	if !ok || rf.Status != u.From {
		return false, nil
	}
	rf.Status = u.To
	if u.ProcessedAt != nil {
		rf.ProcessedAt = u.ProcessedAt
	}
	rf.ErrorCode, rf.ErrorDescription = u.ErrorCode, u.ErrorDescription
	rf.UpdatedAt = time.Now().UTC()
	r.l.refunds[id] = rf
	return true, nil
}

func (r *memRefundRepo) SumByPayment(ctx context.Context, tx repository.Tx, paymentID string, statuses ...model.RefundStatus) (int64, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var sum int64
	for _, rf := range r.l.refunds {
		if rf.PaymentID == paymentID && hasStatus(rf.Status, statuses) {
			sum += rf.Amount
		}
	}
	return sum, nil
}

func (r *memRefundRepo) List(ctx context.Context, tx repository.Tx, f model.RefundFilter, offset, limit int) ([]*model.Refund, int64, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var all []*model.Refund
	for _, rf := range r.l.refunds {
		if f.Status != "" && rf.Status != f.Status {
			continue
		}
		if f.PaymentID != "" && rf.PaymentID != f.PaymentID {
			continue
		}
		if f.Email != "" && !strings.EqualFold(r.l.payments[rf.PaymentID].Email, f.Email) {
			continue
		}
		if !inWindow(rf.CreatedAt, model.TimeWindow{From: f.From, To: f.To}) {
			continue
		}
		rf := rf
		all = append(all, &rf)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return pageOf(all, offset, limit), int64(len(all)), nil
}

func (r *memRefundRepo) ListStale(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Refund, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []*model.Refund
	for _, rf := range r.l.refunds {
		if !rf.Status.IsTerminal() && rf.UpdatedAt.Before(olderThan) {
			rf := rf
			out = append(out, &rf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return pageOf(out, 0, limit), nil
}

func (r *memRefundRepo) processed(w model.TimeWindow) []model.Refund {
	var out []model.Refund
	for _, rf := range r.l.refunds {
		if rf.Status == model.RefundStatusProcessed && rf.ProcessedAt != nil && inWindow(*rf.ProcessedAt, w) {
			out = append(out, rf)
		}
	}
	return out
}

func (r *memRefundRepo) SumProcessed(ctx context.Context, tx repository.Tx, w model.TimeWindow) (int64, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if err := r.l.fail("refunds.SumProcessed"); err != nil {
		return 0, err
	}
	var sum int64
	for _, rf := range r.processed(w) {
		sum += rf.Amount
	}
	return sum, nil
}

func (r *memRefundRepo) CountProcessedBySpeed(ctx context.Context, tx repository.Tx) (map[model.RefundSpeed]int64, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	out := map[model.RefundSpeed]int64{}
	for _, rf := range r.processed(model.TimeWindow{}) {
		out[rf.Speed]++
	}
	return out, nil
}

func (r *memRefundRepo) AverageProcessingSeconds(ctx context.Context, tx repository.Tx) (float64, bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	done := r.processed(model.TimeWindow{})
	if len(done) == 0 {
		return 0, false, nil
	}
	var total float64
	for _, rf := range done {
		total += rf.ProcessedAt.Sub(rf.CreatedAt).Seconds()
	}
	return total / float64(len(done)), true, nil
}

func (r *memRefundRepo) MonthlyProcessed(ctx context.Context, tx repository.Tx, since time.Time) ([]model.MonthlyRefundData, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	buckets := map[string]*model.MonthlyRefundData{}
	for _, rf := range r.processed(model.TimeWindow{From: &since}) {
		m := rf.ProcessedAt.UTC().Format("2006-01")
		b, ok := buckets[m]
		if !ok {
			b = &model.MonthlyRefundData{Month: m}
			buckets[m] = b
		}
		b.Amount += rf.Amount
		b.Count++
	}
	out := make([]model.MonthlyRefundData, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (r *memRefundRepo) CountByStatus(ctx context.Context, tx repository.Tx, statuses ...model.RefundStatus) (int64, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var n int64
	for _, rf := range r.l.refunds {
		if hasStatus(rf.Status, statuses) {
			n++
		}
	}
	return n, nil
}

// ---- Subscriptions ----

type memSubscriptionRepo struct{ l *memLedger }

var _ repository.SubscriptionRepository = (*memSubscriptionRepo)(nil)

func (r *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.subs[s.ID] = *s
	return nil
}

func (r *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	s, ok := r.l.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r *memSubscriptionRepo) FindActiveByUserService(ctx context.Context, tx repository.Tx, userID, serviceID string) (*model.Subscription, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, s := range r.l.subs {
		if s.UserID == userID && s.ServiceID == serviceID && s.Status == model.SubscriptionStatusActive {
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memSubscriptionRepo) list(match func(model.Subscription) bool, key func(model.Subscription) time.Time, limit int) []*model.Subscription {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.l.subs {
		if match(s) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return key(*out[i]).Before(key(*out[j])) })
	return pageOf(out, 0, limit)
}

func endAt(s model.Subscription) time.Time { return s.EndAt }

func (r *memSubscriptionRepo) ListActiveEndedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	return r.list(func(s model.Subscription) bool {
		return s.Status == model.SubscriptionStatusActive && !s.EndAt.After(cutoff)
	}, endAt, limit), nil
}

func (r *memSubscriptionRepo) ListGraceEndedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	return r.list(func(s model.Subscription) bool {
		return s.Status == model.SubscriptionStatusGrace && s.GraceEndAt != nil && !s.GraceEndAt.After(cutoff)
	}, func(s model.Subscription) time.Time { return *s.GraceEndAt }, limit), nil
}

func (r *memSubscriptionRepo) ListActiveEndingBetween(ctx context.Context, tx repository.Tx, after time.Time, afterID string, to time.Time, limit int) ([]*model.Subscription, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.l.subs {
		pastCursor := s.EndAt.After(after) || (s.EndAt.Equal(after) && s.ID > afterID)
		if s.Status == model.SubscriptionStatusActive && pastCursor && !s.EndAt.After(to) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndAt.Equal(out[j].EndAt) {
			return out[i].EndAt.Before(out[j].EndAt)
		}
		return out[i].ID < out[j].ID
	})
	return pageOf(out, 0, limit), nil
}

func (r *memSubscriptionRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from []model.SubscriptionStatus, to model.SubscriptionStatus, graceEndAt *time.Time) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if err := r.l.fail("subs.TransitionStatus"); err != nil {
		return false, err
	}
	s, ok := r.l.subs[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, f := range from {
		allowed = allowed || s.Status == f
	}
	if !allowed {
		return false, nil
	}
	s.Status = to
	if graceEndAt != nil {
		s.GraceEndAt = graceEndAt
	}
	if to == model.SubscriptionStatusCancelled {
		now := time.Now().UTC()
		s.CancelledAt = &now
	}
	r.l.subs[id] = s
	return true, nil
}

func (r *memSubscriptionRepo) ExtendEnd(ctx context.Context, tx repository.Tx, id string, end time.Time) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	s, ok := r.l.subs[id]
	if !ok || s.Status != model.SubscriptionStatusActive {
		return domain.ErrNotFound
	}
	s.EndAt = end
	r.l.subs[id] = s
	return nil
}

// ---- Services, users, notification log, webhook events ----

type memServiceRepo struct{ l *memLedger }

var _ repository.ServiceConfigRepository = (*memServiceRepo)(nil)

func (r *memServiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ServiceConfig, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	s, ok := r.l.services[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r *memServiceRepo) Save(ctx context.Context, tx repository.Tx, svc *model.ServiceConfig) error {
	r.l.putService(*svc)
	return nil
}

func (r *memServiceRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.ServiceConfig, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []*model.ServiceConfig
	for _, s := range r.l.services {
		s := s
		out = append(out, &s)
	}
	return out, nil
}

type memUserRepo struct{ l *memLedger }

var _ repository.UserRepository = (*memUserRepo)(nil)

func (r *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	u, ok := r.l.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.users[u.ID] = *u
	return nil
}

type memNotificationLog struct{ l *memLedger }

var _ repository.NotificationLogRepository = (*memNotificationLog)(nil)

func markKey(m repository.NotificationMark) string {
	return fmt.Sprintf("%s|%s|%d|%d", m.SubscriptionID, m.Kind, m.ThresholdDays, m.PeriodEnd.UnixNano())
}

func (r *memNotificationLog) Record(ctx context.Context, tx repository.Tx, m repository.NotificationMark) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	key := markKey(m)
	if r.l.notified[key] {
		return false, nil
	}
	r.l.notified[key] = true
	return true, nil
}

func (r *memNotificationLog) Release(ctx context.Context, tx repository.Tx, m repository.NotificationMark) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	delete(r.l.notified, markKey(m))
	return nil
}

type memWebhookEvents struct{ l *memLedger }

var _ repository.WebhookEventRepository = (*memWebhookEvents)(nil)

func (r *memWebhookEvents) Append(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.events = append(r.l.events, *ev)
	return nil
}

func (l *memLedger) webhookEvents() []model.WebhookEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.WebhookEvent(nil), l.events...)
}

// ---- helpers ----

func inWindow(t time.Time, w model.TimeWindow) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && !t.Before(*w.To) {
		return false
	}
	return true
}

func hasStatus(s model.RefundStatus, set []model.RefundStatus) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

func pageOf[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// =============================
// Transactions
// =============================

// MockTxManager runs fn immediately. With Serialize set it holds one mutex for
// the whole callback, which stands in for the row locks a real transaction takes.
type MockTxManager struct {
	Serialize  bool
	mu         sync.Mutex
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if m.Serialize {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

type MockGateway struct {
	mu sync.Mutex

	InitiateRefundFunc func(ctx context.Context, req adapter.RefundRequest) (adapter.RefundResult, error)
	FetchRefundFunc    func(ctx context.Context, refundID string) (adapter.RefundResult, error)

	Initiated []adapter.RefundRequest
	seq       int
}

var _ adapter.GatewayClient = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) InitiateRefund(ctx context.Context, req adapter.RefundRequest) (adapter.RefundResult, error) {
	m.mu.Lock()
	m.Initiated = append(m.Initiated, req)
	m.seq++
	id := fmt.Sprintf("rfnd_%d", m.seq)
	m.mu.Unlock()
	if m.InitiateRefundFunc != nil {
		return m.InitiateRefundFunc(ctx, req)
	}
	return adapter.RefundResult{ID: id, PaymentID: req.PaymentID, Amount: req.Amount, Status: "created", Speed: req.Speed, CreatedAt: time.Now().UTC()}, nil
}

func (m *MockGateway) FetchRefund(ctx context.Context, refundID string) (adapter.RefundResult, error) {
	if m.FetchRefundFunc != nil {
		return m.FetchRefundFunc(ctx, refundID)
	}
	return adapter.RefundResult{}, domain.ErrNotFound
}

// memLocker is an in-process adapter.Locker.
type memLocker struct {
	mu   sync.Mutex
	held map[string]string
	seq  int
}

var _ adapter.Locker = (*memLocker)(nil)

func newMemLocker() *memLocker { return &memLocker{held: map[string]string{}} }

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	l.seq++
	tok := fmt.Sprintf("tok-%d", l.seq)
	l.held[key] = tok
	return tok, nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func (l *memLocker) heldCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []model.NotificationRequest
	Err  error
}

var _ adapter.NotificationSender = (*MockNotifier)(nil)

func (m *MockNotifier) Send(ctx context.Context, n model.NotificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, n)
	return nil
}

func (m *MockNotifier) count(kind model.NotificationKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.Sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// staticVerifier accepts exactly one signature value.
type staticVerifier struct{ valid string }

func (v staticVerifier) Verify(raw []byte, provided, secret string) bool { return provided == v.valid }

func (v staticVerifier) VerifyPaymentSignature(orderID, paymentID, provided, secret string) bool {
	return provided == v.valid
}
