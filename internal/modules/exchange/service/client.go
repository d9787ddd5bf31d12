package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"liquidation_bot/internal/modules/config"
	"liquidation_bot/pkg/logger"
	"liquidation_bot/pkg/ratelimit"
	"liquidation_bot/pkg/tracing"

	"github.com/bytedance/sonic"
)

const apiPrefix = "/api/v2/peatio"

// Client — подписанный REST-клиент биржи.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string

	http    *http.Client
	limiter *ratelimit.Window

	nonceMu   sync.Mutex
	lastNonce int64
	now       func() time.Time
}

func NewClient(cfg *config.Config) *Client {
	var limiter *ratelimit.Window
	if cfg.Exchange.RequestsPerMin > 0 {
		limiter = ratelimit.New(cfg.Exchange.RequestsPerMin, 0)
	}
	return New(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.HTTPTimeout, limiter)
}

func New(baseURL, apiKey, apiSecret string, timeout time.Duration, limiter *ratelimit.Window) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: timeout},
		limiter:   limiter,
		now:       time.Now,
	}
}

// Limiter — окно запросов клиента; nil = без ограничений.
func (c *Client) Limiter() *ratelimit.Window { return c.limiter }

// Get — GET на path (относительно /api/v2/peatio) с query.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Post — POST с JSON-телом.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	op := http.MethodPost + " " + path
	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, &GatewayError{Kind: DecodeFailure, Op: op, Err: err}
	}
	return c.do(ctx, http.MethodPost, path, nil, payload)
}

// nonce — миллисекунды, строго возрастающие в пределах процесса.
func (c *Client) nonce() string {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	n := c.now().UnixMilli()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return strconv.FormatInt(n, 10)
}

// sign — hex(HMAC-SHA256(secret, nonce+apiKey)).
func sign(secret, nonce, apiKey string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(nonce + apiKey))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (_ json.RawMessage, err error) {
	op := method + " " + path

	span, ctx := tracing.StartSpan(ctx, "exchange "+op)
	span.SetTag("http.method", method)
	span.SetTag("http.path", path)
	defer func() { tracing.Finish(span, err) }()

	if c.apiKey == "" || c.apiSecret == "" {
		return nil, &GatewayError{Kind: AuthFailure, Op: op, Err: errors.New("api credentials are empty")}
	}
	if !c.limiter.Reserve(1) {
		return nil, &GatewayError{Kind: RateLimited, Op: op, Err: errors.New("local request budget exhausted")}
	}

	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	// HTTP-вызов не отменяется снаружи: ограничивает только таймаут транспорта
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), method, u, rd)
	if err != nil {
		return nil, &GatewayError{Kind: TransportFailure, Op: op, Err: err}
	}

	nonce := c.nonce()
	req.Header.Set("X-Auth-Apikey", c.apiKey)
	req.Header.Set("X-Auth-Nonce", nonce)
	req.Header.Set("X-Auth-Signature", sign(c.apiSecret, nonce, c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{Kind: TransportFailure, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{Kind: TransportFailure, Op: op, Err: err}
	}
	span.SetTag("http.status_code", resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &GatewayError{Kind: AuthFailure, Op: op, Code: resp.StatusCode, Body: string(data)}
	}
	if resp.StatusCode/100 != 2 {
		logger.Warn("[EXCHANGE] %s http %d: %s", op, resp.StatusCode, truncate(string(data), 256))
		return nil, &GatewayError{Kind: HTTPStatusFailure, Op: op, Code: resp.StatusCode, Body: string(data)}
	}
	if !json.Valid(data) {
		return nil, &GatewayError{Kind: DecodeFailure, Op: op, Body: truncate(string(data), 256), Err: errors.New("response is not json")}
	}

	return data, nil
}

// getInto — Get + декодирование в out; несовпадение формы = DecodeFailure.
func (c *Client) getInto(ctx context.Context, path string, query url.Values, out any) error {
	raw, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	return decode(http.MethodGet+" "+path, raw, out)
}

func decode(op string, raw json.RawMessage, out any) error {
	if err := sonic.Unmarshal(raw, out); err != nil {
		return &GatewayError{Kind: DecodeFailure, Op: op, Body: truncate(string(raw), 256), Err: err}
	}
	return nil
}
