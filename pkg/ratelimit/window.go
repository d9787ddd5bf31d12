package ratelimit

import (
	"sync"
	"time"
)

// DefaultSpan — ширина скользящего окна.
const DefaultSpan = 60 * time.Second

type tokenEntry struct {
	at     time.Time
	tokens int
}

// Window — скользящее окно по числу запросов и сумме "стоимости" (токенов).
// Проверка и запись выполняются под одним мьютексом.
// Admit не блокирует: отказ означает "подожди/пропусти цикл" на стороне вызывающего.
type Window struct {
	mu sync.Mutex

	maxRequests int // 0 = без лимита
	maxTokens   int // 0 = без лимита
	span        time.Duration

	requests []time.Time
	tokens   []tokenEntry

	now func() time.Time
}

func New(requestsPerMin, tokensPerMin int) *Window {
	return &Window{
		maxRequests: requestsPerMin,
		maxTokens:   tokensPerMin,
		span:        DefaultSpan,
		now:         time.Now,
	}
}

// WithClock подменяет часы (для тестов).
func (w *Window) WithClock(now func() time.Time) *Window {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
	return w
}

// Admit проверяет, поместится ли ещё один запрос стоимостью estimatedCost.
func (w *Window) Admit(estimatedCost int) bool {
	if w == nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(w.now())
	return w.fitsLocked(1, estimatedCost)
}

// AdmitN — поместятся ли ещё n запросов общей стоимостью cost.
func (w *Window) AdmitN(n, cost int) bool {
	if w == nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(w.now())
	return w.fitsLocked(n, cost)
}

// Record учитывает фактически выполненный запрос.
func (w *Window) Record(actualCost int) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)
	w.recordLocked(now, actualCost)
}

// Reserve = Admit + Record атомарно: два конкурента не могут оба занять последний слот.
func (w *Window) Reserve(cost int) bool {
	if w == nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)
	if !w.fitsLocked(1, cost) {
		return false
	}
	w.recordLocked(now, cost)
	return true
}

// Settle заменяет оценку reserved, сделанную через Reserve, фактической стоимостью actual.
// Правится последняя запись с такой оценкой; время записи не меняется.
func (w *Window) Settle(reserved, actual int) {
	if w == nil || reserved == actual || actual < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(w.now())
	for i := len(w.tokens) - 1; i >= 0; i-- {
		if w.tokens[i].tokens == reserved {
			w.tokens[i].tokens = actual
			return
		}
	}
}

// Usage — текущая загрузка окна (запросы, токены).
func (w *Window) Usage() (requests int, tokens int) {
	if w == nil {
		return 0, 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(w.now())
	for _, e := range w.tokens {
		tokens += e.tokens
	}
	return len(w.requests), tokens
}

func (w *Window) fitsLocked(n, cost int) bool {
	if w.maxRequests > 0 && len(w.requests)+n > w.maxRequests {
		return false
	}
	if w.maxTokens > 0 {
		sum := 0
		for _, e := range w.tokens {
			sum += e.tokens
		}
		if sum+cost > w.maxTokens {
			return false
		}
	}
	return true
}

func (w *Window) recordLocked(now time.Time, cost int) {
	w.requests = append(w.requests, now)
	if cost > 0 {
		w.tokens = append(w.tokens, tokenEntry{at: now, tokens: cost})
	}
}

// pruneLocked выкидывает записи старше span. Записи упорядочены по времени.
func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.span)

	i := 0
	for i < len(w.requests) && !w.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.requests = append(w.requests[:0], w.requests[i:]...)
	}

	j := 0
	for j < len(w.tokens) && !w.tokens[j].at.After(cutoff) {
		j++
	}
	if j > 0 {
		w.tokens = append(w.tokens[:0], w.tokens[j:]...)
	}
}
