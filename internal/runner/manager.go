package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"liquidation_bot/internal/models"
	"liquidation_bot/pkg/logger"
)

var ErrSweepInProgress = errors.New("sweep already in progress for this account")

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// Sweeper — то, что Manager запускает по расписанию и по команде.
type Sweeper interface {
	Sweep(ctx context.Context, trigger string) (models.SweepResult, error)
	Preview(ctx context.Context) (Plan, error)
	InFlight() []models.OrderRecord
	Shutdown(ctx context.Context) error
}

// Manager сериализует свипы по аккаунту и гоняет расписание.
type Manager struct {
	account    string
	sweeper    Sweeper
	interval   time.Duration
	runOnStart bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	lastMu sync.RWMutex
	last   *models.SweepResult

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(account string, sweeper Sweeper, interval time.Duration, runOnStart bool) *Manager {
	return &Manager{
		account:    account,
		sweeper:    sweeper,
		interval:   interval,
		runOnStart: runOnStart,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(account string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[account]
	if !ok {
		l = &sync.Mutex{}
		m.locks[account] = l
	}
	return l
}

// RunSweep — свип по аккаунту менеджера. Параллельный вызов получает ErrSweepInProgress.
func (m *Manager) RunSweep(ctx context.Context, trigger string) (models.SweepResult, error) {
	lock := m.lockFor(m.account)
	if !lock.TryLock() {
		return models.SweepResult{}, ErrSweepInProgress
	}
	defer lock.Unlock()

	res, err := m.sweeper.Sweep(ctx, trigger)

	m.lastMu.Lock()
	m.last = &res
	m.lastMu.Unlock()

	return res, err
}

// Busy — идёт ли сейчас свип.
func (m *Manager) Busy() bool {
	lock := m.lockFor(m.account)
	if lock.TryLock() {
		lock.Unlock()
		return false
	}
	return true
}

func (m *Manager) LastSweep() (models.SweepResult, bool) {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	if m.last == nil {
		return models.SweepResult{}, false
	}
	return *m.last, true
}

func (m *Manager) Preview(ctx context.Context) (Plan, error) { return m.sweeper.Preview(ctx) }

func (m *Manager) InFlight() []models.OrderRecord { return m.sweeper.InFlight() }

// Start запускает расписание. interval <= 0 — только ручные свипы.
func (m *Manager) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		if m.runOnStart {
			m.scheduled(ctx, TriggerStartup)
		}
		if m.interval <= 0 {
			<-ctx.Done()
			return
		}

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		logger.Info("[MANAGER] sweep every %s for account %s", m.interval, m.account)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.scheduled(ctx, TriggerSchedule)
			}
		}
	}()
}

func (m *Manager) scheduled(ctx context.Context, trigger string) {
	_, err := m.RunSweep(ctx, trigger)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		logger.Info("[MANAGER] %s sweep skipped: previous sweep still running", trigger)
	case err != nil:
		logger.Warn("[MANAGER] %s sweep failed, retry on next tick: %v", trigger, err)
	}
}

// Stop гасит расписание, затем дренирует трекер ордеров.
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	// трекер гасим раньше ожидания цикла: свип ждёт отчёты трекера
	err := m.sweeper.Shutdown(ctx)

	if m.done != nil {
		select {
		case <-m.done:
		case <-ctx.Done():
		}
	}
	return err
}
