package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/infra/logging"
	red "billing-reconciler/internal/infra/redis"
	"billing-reconciler/internal/usecase"
)

const (
	signatureHeader = "X-Gateway-Signature"
	dateLayout      = "2006-01-02"
	defaultPageSize = 20
	defaultMonths   = 12
)

type errorBody struct {
	Error string `json:"error"`
}

type refundDTO struct {
	ID               string     `json:"id"`
	PaymentID        string     `json:"paymentId"`
	Amount           int64      `json:"amount"`
	Status           string     `json:"status"`
	Speed            string     `json:"speed"`
	Reason           string     `json:"reason,omitempty"`
	ProcessedAt      *time.Time `json:"processedAt,omitempty"`
	ErrorCode        *string    `json:"errorCode,omitempty"`
	ErrorDescription *string    `json:"errorDescription,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func toRefundDTO(r *model.Refund) refundDTO {
	return refundDTO{
		ID:               r.ID,
		PaymentID:        r.PaymentID,
		Amount:           r.Amount,
		Status:           string(r.Status),
		Speed:            string(r.Speed),
		Reason:           r.Reason,
		ProcessedAt:      r.ProcessedAt,
		ErrorCode:        r.ErrorCode,
		ErrorDescription: r.ErrorDescription,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type paymentDTO struct {
	ID         string     `json:"id"`
	OrderID    string     `json:"orderId"`
	UserID     string     `json:"userId"`
	ServiceID  string     `json:"serviceId"`
	Amount     int64      `json:"amount"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}

type subscriptionDTO struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	ServiceID   string     `json:"serviceId"`
	Status      string     `json:"status"`
	StartAt     time.Time  `json:"startAt"`
	EndAt       time.Time  `json:"endAt"`
	GraceEndAt  *time.Time `json:"graceEndAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

func toSubscriptionDTO(s *model.Subscription) *subscriptionDTO {
	if s == nil {
		return nil
	}
	return &subscriptionDTO{
		ID:          s.ID,
		UserID:      s.UserID,
		ServiceID:   s.ServiceID,
		Status:      string(s.Status),
		StartAt:     s.StartAt,
		EndAt:       s.EndAt,
		GraceEndAt:  s.GraceEndAt,
		CancelledAt: s.CancelledAt,
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		return
	}
	ack, err := s.webhooks.Handle(r.Context(), r.Header.Get(signatureHeader), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

type initiateRefundRequest struct {
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
	Speed     string `json:"speed"`
	Reason    string `json:"reason"`
}

func (s *Server) handleInitiateRefund(w http.ResponseWriter, r *http.Request) {
	var req initiateRefundRequest
	if err := decodeJSON(w, r, s.opts.MaxBodyBytes, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	rf, err := s.refunds.Initiate(r.Context(), req.PaymentID, req.Amount, model.RefundSpeed(strings.ToLower(req.Speed)), req.Reason, key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRefundDTO(rf))
}

func (s *Server) handleListRefunds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pageSize, err := intParam(q.Get("pageSize"), "pageSize", defaultPageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := refundFilter(q.Get("status"), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f.Email = strings.TrimSpace(q.Get("email"))
	f.PaymentID = strings.TrimSpace(q.Get("paymentId"))

	res, err := s.refunds.History(r.Context(), page, pageSize, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]refundDTO, 0, len(res.Items))
	for _, rf := range res.Items {
		items = append(items, toRefundDTO(rf))
	}
	writeJSON(w, http.StatusOK, model.Page[refundDTO]{Items: items, Page: res.Page, PageSize: res.PageSize, TotalCount: res.TotalCount})
}

func (s *Server) handleGetRefund(w http.ResponseWriter, r *http.Request) {
	rf, err := s.refunds.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundDTO(rf))
}

func (s *Server) handleSyncRefund(w http.ResponseWriter, r *http.Request) {
	rf, err := s.refunds.CheckStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundDTO(rf))
}

func (s *Server) handleFinanceMetrics(w http.ResponseWriter, r *http.Request) {
	sum, err := s.finance.Summary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleFinanceMonthly(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r.URL.Query().Get("months"), "months", defaultMonths)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	series, err := s.finance.MonthlySeries(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := usecase.ExportKind(strings.ToLower(q.Get("kind")))
	if kind == "" {
		kind = usecase.ExportAll
	}
	f, err := refundFilter("", q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.limiter != nil {
		subject := "anonymous"
		if c := claimsFrom(r.Context()); c != nil && c.Subject != "" {
			subject = c.Subject
		}
		q, err := s.limiter.Allow(r.Context(), red.ExportKey(subject), s.opts.ExportLimit, s.opts.ExportEvery)
		switch {
		case err != nil:
			// Limiter errors fail open.
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("export rate limiter unavailable")
		case !q.Allowed:
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(q.ResetIn.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "export rate limit exceeded"})
			return
		default:
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
		}
	}

	cw := &csvResponse{w: w, filename: "export-" + string(kind) + ".csv"}
	err = s.exports.WriteCSV(r.Context(), cw, usecase.ExportQuery{Kind: kind, From: f.From, To: f.To})
	switch {
	case err == nil && !cw.started:
		cw.start()
	case err != nil && !cw.started:
		s.writeError(w, r, err)
	case err != nil:
		// headers are gone; the client sees a truncated body
		logging.With(r.Context(), s.log).Error().Err(err).Msg("export aborted mid-stream")
	}
}

// csvResponse defers the 200 and the CSV headers until the first page is
// written, so failures before any output still get a JSON error.
type csvResponse struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (c *csvResponse) start() {
	c.started = true
	c.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	c.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.filename))
	c.w.WriteHeader(http.StatusOK)
}

func (c *csvResponse) Write(p []byte) (int, error) {
	if !c.started {
		c.start()
	}
	n, err := c.w.Write(p)
	if f, ok := c.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var conf model.PaymentConfirmation
	if err := decodeJSON(w, r, s.opts.MaxBodyBytes, &conf); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, sub, err := s.payments.Verify(r.Context(), conf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Payment      paymentDTO       `json:"payment"`
		Subscription *subscriptionDTO `json:"subscription,omitempty"`
	}{
		Payment: paymentDTO{
			ID:         p.ID,
			OrderID:    p.OrderID,
			UserID:     p.UserID,
			ServiceID:  p.ServiceID,
			Amount:     p.Amount,
			Currency:   p.Currency,
			Status:     string(p.Status),
			VerifiedAt: p.VerifiedAt,
		},
		Subscription: toSubscriptionDTO(sub),
	})
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionDTO(sub))
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a bare 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	var ill *domain.IllegalTransitionError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error()})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrSignatureInvalid):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "signature invalid"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownRefund):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.As(err, &ill):
		writeJSON(w, http.StatusConflict, errorBody{Error: ill.Error()})
	case errors.Is(err, domain.ErrRefundInFlight):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "payment gateway unavailable"})
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "invalid json")
	}
	return nil
}

func intParam(raw, field string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(field, "must be an integer")
	}
	return n, nil
}

// refundFilter parses the shared status and date-range parameters. A
// date-only endDate covers the whole day.
func refundFilter(status, start, end string) (model.RefundFilter, error) {
	var f model.RefundFilter
	if status != "" {
		st := model.RefundStatus(strings.ToUpper(strings.TrimSpace(status)))
		if !st.Valid() {
			return f, domain.NewValidationError("status", "unknown refund status")
		}
		f.Status = st
	}
	if start != "" {
		t, _, err := parseDate(start)
		if err != nil {
			return f, domain.NewValidationError("startDate", err.Error())
		}
		f.From = &t
	}
	if end != "" {
		t, dateOnly, err := parseDate(end)
		if err != nil {
			return f, domain.NewValidationError("endDate", err.Error())
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		f.To = &t
	}
	return f, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, errors.New("expected YYYY-MM-DD or RFC3339")
}
