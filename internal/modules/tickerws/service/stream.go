package service

import (
	"context"
	"net/url"
	"time"

	"liquidation_bot/internal/modules/config"
	"liquidation_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	tickersStream = "global.tickers"

	readTimeout = 90 * time.Second
	minBackoff  = time.Second
	maxBackoff  = 30 * time.Second
)

// Status — куда стрим отчитывается о соединении.
type Status interface {
	SetWSConnected(v bool)
	TouchPrice(t time.Time)
}

type wsTicker struct {
	Buy  decimal.Decimal `json:"buy"`
	Last decimal.Decimal `json:"last"`
}

type tickersFrame struct {
	Tickers map[string]wsTicker `json:"global.tickers"`
}

// Stream держит ws-подписку на тикеры и наполняет PriceCache.
type Stream struct {
	url    string
	dialer *websocket.Dialer
	cache  *PriceCache
	status Status
}

func NewStream(cfg *config.Config, cache *PriceCache, status Status) *Stream {
	return newStream(cfg.Exchange.WSURL, cache, status)
}

func newStream(rawURL string, cache *PriceCache, status Status) *Stream {
	return &Stream{
		url:    rawURL,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		cache:  cache,
		status: status,
	}
}

func (s *Stream) Enabled() bool { return s.url != "" }

func (s *Stream) endpoint() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("stream", tickersStream)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run — цикл переподключения до отмены ctx.
func (s *Stream) Run(ctx context.Context) {
	endpoint, err := s.endpoint()
	if err != nil {
		logger.Error("[WS] bad ws_url %q: %v", s.url, err)
		return
	}

	backoff := minBackoff
	for {
		connected, err := s.session(ctx, endpoint)
		s.status.SetWSConnected(false)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = minBackoff
		}
		logger.Warn("[WS] stream dropped: %v, reconnect in %s", err, backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// session — одно соединение; connected=true, если хоть один кадр дошёл.
func (s *Stream) session(ctx context.Context, endpoint string) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// закрываем сокет по отмене, чтобы разблокировать ReadMessage
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	s.status.SetWSConnected(true)
	logger.Info("[WS] subscribed to %s", tickersStream)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return connected, err
		}
		if n := s.handle(msg); n > 0 {
			connected = true
			s.status.TouchPrice(time.Now())
		}
	}
}

// handle разбирает кадр {"global.tickers": {"<symbol>": {...}}}; возвращает число обновлённых символов.
func (s *Stream) handle(msg []byte) int {
	var frame tickersFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		logger.Debug("[WS] skip frame: %v", err)
		return 0
	}
	for symbol, t := range frame.Tickers {
		s.cache.Update(symbol, t.Buy, t.Last)
	}
	return len(frame.Tickers)
}
