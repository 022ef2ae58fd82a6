// File: internal/infra/adapters/payment/gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"billing-reconciler/internal/config"
	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/adapter"
	"billing-reconciler/internal/infra/metrics"
)

var _ adapter.GatewayClient = (*HTTPGateway)(nil)

// HTTPGateway talks to the gateway's REST refund API with a bearer token
// obtained from its OAuth endpoint using the key id and secret.
type HTTPGateway struct {
	name    string
	baseURL string
	keyID   string
	secret  string
	timeout time.Duration
	client  *http.Client
	tokens  *tokenSource
	log     *zerolog.Logger
}

func NewHTTPGateway(cfg config.GatewayConfig, logger *zerolog.Logger) (*HTTPGateway, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway base url empty")
	}
	l := logger.With().Str("component", "HTTPGateway").Str("gateway", cfg.Name).Logger()
	g := &HTTPGateway{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		keyID:   cfg.KeyID,
		secret:  cfg.KeySecret,
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     &l,
	}
	g.tokens = newTokenSource(g.fetchToken, cfg.TokenTTL)
	return g, nil
}

func (g *HTTPGateway) Name() string { return g.name }

type refundPayload struct {
	ID               string `json:"id"`
	PaymentID        string `json:"payment_id"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	Speed            string `json:"speed"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	ProcessedAt      int64  `json:"processed_at,omitempty"` // unix seconds
	CreatedAt        int64  `json:"created_at"`
}

func (p refundPayload) result() adapter.RefundResult {
	res := adapter.RefundResult{
		ID:               p.ID,
		PaymentID:        p.PaymentID,
		Amount:           p.Amount,
		Status:           p.Status,
		Speed:            model.RefundSpeed(p.Speed),
		ErrorCode:        p.ErrorCode,
		ErrorDescription: p.ErrorDescription,
		CreatedAt:        time.Unix(p.CreatedAt, 0).UTC(),
	}
	if p.ProcessedAt > 0 {
		t := time.Unix(p.ProcessedAt, 0).UTC()
		res.ProcessedAt = &t
	}
	return res
}

// InitiateRefund calls POST /payments/{id}/refund.
func (g *HTTPGateway) InitiateRefund(ctx context.Context, req adapter.RefundRequest) (adapter.RefundResult, error) {
	body := map[string]any{
		"amount":  req.Amount,
		"speed":   string(req.Speed),
		"receipt": req.Receipt,
		"notes":   map[string]string{"reason": req.Reason},
	}
	var out refundPayload
	path := "/payments/" + url.PathEscape(req.PaymentID) + "/refund"
	if err := g.call(ctx, "initiate_refund", http.MethodPost, path, req.Receipt, body, &out); err != nil {
		return adapter.RefundResult{}, err
	}
	if out.ID == "" {
		return adapter.RefundResult{}, fmt.Errorf("%w: empty refund id", domain.ErrGatewayUnavailable)
	}
	return out.result(), nil
}

// FetchRefund calls GET /refunds/{id}.
func (g *HTTPGateway) FetchRefund(ctx context.Context, refundID string) (adapter.RefundResult, error) {
	var out refundPayload
	if err := g.call(ctx, "fetch_refund", http.MethodGet, "/refunds/"+url.PathEscape(refundID), "", nil, &out); err != nil {
		return adapter.RefundResult{}, err
	}
	return out.result(), nil
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// call performs one authenticated request, retrying once with a fresh token on 401.
// A non-empty idemKey is sent as X-Refund-Idempotency so the gateway collapses repeats.
func (g *HTTPGateway) call(ctx context.Context, op, method, path, idemKey string, in, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveGatewayCall(g.name, op, err == nil, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	for attempt := 0; attempt < 2; attempt++ {
		tok, terr := g.tokens.Token(ctx)
		if terr != nil {
			return g.unavailable(op, terr)
		}
		status, body, rerr := g.do(ctx, method, path, tok, idemKey, in)
		if rerr != nil {
			return g.unavailable(op, rerr)
		}
		switch {
		case status == http.StatusUnauthorized && attempt == 0:
			g.tokens.Invalidate(tok)
			continue
		case status >= 200 && status < 300:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return g.unavailable(op, fmt.Errorf("decode response: %w", err))
			}
			return nil
		case status == http.StatusNotFound:
			return domain.ErrNotFound
		case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
			var ae apiError
			_ = json.Unmarshal(body, &ae)
			return domain.NewValidationError("gateway", strings.TrimSpace(ae.Error.Code+" "+ae.Error.Description))
		default:
			return g.unavailable(op, fmt.Errorf("http %d", status))
		}
	}
	return g.unavailable(op, errors.New("unauthorized after token refresh"))
}

func (g *HTTPGateway) do(ctx context.Context, method, path, token, idemKey string, in any) (int, []byte, error) {
	var rd io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if idemKey != "" {
		req.Header.Set("X-Refund-Idempotency", idemKey)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (g *HTTPGateway) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/oauth/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(g.keyID, g.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.client.Do(req)
	if err != nil {
		metrics.IncGatewayTokenRefresh(g.name, "error")
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.IncGatewayTokenRefresh(g.name, "rejected")
		return "", 0, fmt.Errorf("token endpoint http %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.AccessToken == "" {
		metrics.IncGatewayTokenRefresh(g.name, "error")
		return "", 0, fmt.Errorf("token endpoint: malformed response")
	}
	metrics.IncGatewayTokenRefresh(g.name, "ok")
	g.log.Debug().Int64("expires_in", out.ExpiresIn).Msg("gateway token refreshed")
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

func (g *HTTPGateway) unavailable(op string, cause error) error {
	g.log.Warn().Err(cause).Str("op", op).Msg("gateway call failed")
	return fmt.Errorf("%w: %s: %v", domain.ErrGatewayUnavailable, op, cause)
}
