package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"liquidation_bot/internal/models"
	"liquidation_bot/pkg/logger"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

var ErrTrackerClosed = errors.New("order tracker is shut down")

// сколько последних order id помнит защита от повторного уведомления
const notifiedKeep = 1024

type TrackerConfig struct {
	PollInterval time.Duration
	PollAttempts int
	// MaxInFlight — сколько ордеров одновременно под наблюдением
	MaxInFlight int
}

// Tracker размещает ордера и ведёт каждый до терминального состояния в своей горутине.
type Tracker struct {
	api      OrderAPI
	notifier Notifier
	journal  Journal
	cfg      TrackerConfig
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inFlight map[string]models.OrderRecord
	notified map[string]struct{}
	// порядок вставки в notified, старые id вытесняются
	notifiedFIFO []string
	notifiedKeep int
}

func NewTracker(api OrderAPI, notifier Notifier, journal Journal, cfg TrackerConfig) *Tracker {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		api:      api,
		notifier: notifier,
		journal:  journal,
		cfg:      cfg,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, cfg.MaxInFlight),
		inFlight: make(map[string]models.OrderRecord),
		notified: make(map[string]struct{}),

		notifiedKeep: notifiedKeep,
	}
}

// Submit ждёт свободный слот, отправляет ордер и возвращает канал с итоговым отчётом.
// Ошибка отправки — терминальный REJECTED без повторов; отчёт по нему тоже придёт в канал.
// error возвращается только если ордер не отправлялся вовсе.
func (t *Tracker) Submit(ctx context.Context, req models.OrderRequest) (<-chan models.OrderReport, error) {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.ctx.Done():
		return nil, ErrTrackerClosed
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		<-t.sem
		return nil, ErrTrackerClosed
	}
	t.wg.Add(1)
	t.mu.Unlock()

	out := make(chan models.OrderReport, 1)
	rec := models.NewOrderRecord(req, t.now())

	placed, err := t.api.PlaceOrder(ctx, req)
	if err != nil {
		logger.Warn("[TRACKER] %s submit %s failed: %v", req.Symbol, req.Quantity, err)
		_ = rec.Transition(models.OrderRejected)
		t.finish(rec, nil, 0, err.Error(), out)
		t.release()
		return out, nil
	}

	rec.OrderID = placed.ID
	if err := rec.Transition(models.OrderOpen); err != nil {
		t.release()
		return nil, err
	}
	logger.Info("[TRACKER] %s order %s open: %s %s", req.Symbol, rec.OrderID, req.Type, req.Quantity)

	t.mu.Lock()
	t.inFlight[rec.OrderID] = rec.Snapshot()
	t.mu.Unlock()

	go t.track(rec, placed, out)
	return out, nil
}

func (t *Tracker) release() {
	<-t.sem
	t.wg.Done()
}

func (t *Tracker) track(rec *models.OrderRecord, last models.ExchangeOrder, out chan<- models.OrderReport) {
	defer t.release()
	defer func() {
		t.mu.Lock()
		delete(t.inFlight, rec.OrderID)
		t.mu.Unlock()
	}()

	attempts := 0
	timer := time.NewTimer(t.cfg.PollInterval)
	defer timer.Stop()

	for {
		// биржа могла сразу вернуть терминальный статус
		switch last.State {
		case models.ExchangeStateDone:
			t.filled(rec, last, attempts, out)
			return
		case models.ExchangeStateCancel:
			_ = rec.Transition(models.OrderCancelled)
			t.finish(rec, &last, attempts, "cancelled by exchange", out)
			return
		case models.ExchangeStateReject:
			_ = rec.Transition(models.OrderRejected)
			t.finish(rec, &last, attempts, "rejected by exchange", out)
			return
		}

		if attempts >= t.cfg.PollAttempts {
			_ = rec.Transition(models.OrderTimedOut)
			t.finish(rec, &last, attempts, fmt.Sprintf("not terminal after %d polls, needs reconciliation", attempts), out)
			return
		}

		select {
		case <-t.ctx.Done():
			_ = rec.Transition(models.OrderTimedOut)
			t.finish(rec, &last, attempts, "tracking stopped on shutdown, needs reconciliation", out)
			return
		case <-timer.C:
		}

		attempts++
		o, err := t.api.Order(t.ctx, rec.OrderID)
		if err != nil {
			logger.Warn("[TRACKER] %s order %s poll %d/%d: %v", rec.Symbol, rec.OrderID, attempts, t.cfg.PollAttempts, err)
		} else {
			last = o
		}
		timer.Reset(t.cfg.PollInterval)
	}
}

// filled считает исполнение по сделкам; без сделок берёт executed_volume/avg_price ордера.
func (t *Tracker) filled(rec *models.OrderRecord, o models.ExchangeOrder, attempts int, out chan<- models.OrderReport) {
	_ = rec.Transition(models.OrderFilled)

	fills, err := t.api.OrderTrades(t.ctx, rec.OrderID)
	if err != nil {
		logger.Warn("[TRACKER] %s order %s trades unavailable, using order totals: %v", rec.Symbol, rec.OrderID, err)
		exec := o.ExecutedVolume
		t.finishWith(rec, exec, exec.Mul(o.AvgPrice), o.AvgPrice, attempts, "", out)
		return
	}

	qty, proceeds, avg := AggregateFills(fills)
	t.finishWith(rec, qty, proceeds, avg, attempts, "", out)
}

func (t *Tracker) rememberLocked(id string) {
	t.notified[id] = struct{}{}
	t.notifiedFIFO = append(t.notifiedFIFO, id)
	for len(t.notifiedFIFO) > t.notifiedKeep {
		delete(t.notified, t.notifiedFIFO[0])
		t.notifiedFIFO = t.notifiedFIFO[1:]
	}
}

// AggregateFills — исполненный объём, выручка и средневзвешенная цена. avg = 0 без сделок.
func AggregateFills(fills []models.Fill) (qty, proceeds, avg decimal.Decimal) {
	for _, f := range fills {
		qty = qty.Add(f.Amount)
		proceeds = proceeds.Add(f.Notional())
	}
	if qty.IsPositive() {
		avg = proceeds.Div(qty)
	}
	return qty, proceeds, avg
}

func (t *Tracker) finish(rec *models.OrderRecord, o *models.ExchangeOrder, attempts int, reason string, out chan<- models.OrderReport) {
	var exec, avg decimal.Decimal
	if o != nil {
		exec, avg = o.ExecutedVolume, o.AvgPrice
	}
	t.finishWith(rec, exec, exec.Mul(avg), avg, attempts, reason, out)
}

// finishWith публикует отчёт: одно уведомление и одна запись в журнал на order id.
func (t *Tracker) finishWith(rec *models.OrderRecord, exec, proceeds, avg decimal.Decimal, attempts int, reason string, out chan<- models.OrderReport) {
	report := models.OrderReport{
		OrderID:          rec.OrderID,
		Symbol:           rec.Symbol,
		Currency:         rec.Currency,
		Type:             rec.Type,
		Submitted:        rec.SubmittedQuantity,
		ExecutedQuantity: exec,
		Proceeds:         proceeds,
		AvgPrice:         avg,
		State:            rec.State,
		Attempts:         attempts,
		Reason:           reason,
		Timestamp:        t.now(),
	}

	first := true
	if report.OrderID != "" {
		t.mu.Lock()
		if _, seen := t.notified[report.OrderID]; seen {
			first = false
		} else {
			t.rememberLocked(report.OrderID)
		}
		t.mu.Unlock()
	}

	if first {
		logger.Info("[TRACKER] %s order %s -> %s exec=%s proceeds=%s avg=%s",
			report.Symbol, report.OrderID, report.State, report.ExecutedQuantity, report.Proceeds.StringFixed(4), report.AvgPrice)

		// наружу уходит копия, трекер её больше не трогает
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if t.journal != nil {
			if err := t.journal.SaveOrderReport(ctx, report); err != nil {
				logger.Error("[TRACKER] journal order %s: %v", report.OrderID, err)
			}
		}
		if t.notifier != nil {
			t.notifier.NotifyOrder(ctx, report)
		}
		cancel()
	}

	out <- report
	close(out)
}

// InFlight — снимки ордеров, которые сейчас под наблюдением.
func (t *Tracker) InFlight() []models.OrderRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.OrderRecord, 0, len(t.inFlight))
	for _, r := range t.inFlight {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Shutdown останавливает опрос. Текущие HTTP-вызовы доживают до своего таймаута,
// каждый незавершённый ордер отчитывается как TIMED_OUT.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	var result error
	for _, r := range t.InFlight() {
		result = multierror.Append(result, fmt.Errorf("order %s (%s) still draining", r.OrderID, r.Symbol))
	}
	if result == nil {
		result = ctx.Err()
	}
	return result
}
