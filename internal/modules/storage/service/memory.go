package service

import (
	"context"
	"sync"

	"liquidation_bot/internal/models"
)

// Memory — журнал в памяти; для тестов и запуска без диска.
type Memory struct {
	mu     sync.RWMutex
	orders []models.OrderReport
	sweeps []models.SweepResult
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SaveOrderReport(_ context.Context, r models.OrderReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, r)
	return nil
}

func (m *Memory) SaveSweep(_ context.Context, r models.SweepResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps = append(m.sweeps, r)
	return nil
}

// RecentSweeps — последние свипы, новые первыми.
func (m *Memory) RecentSweeps(_ context.Context, limit int) ([]models.SweepResult, error) {
	limit = recentLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.SweepResult, 0, limit)
	for i := len(m.sweeps) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.sweeps[i])
	}
	return out, nil
}

// Orders — копия сохранённых отчётов.
func (m *Memory) Orders() []models.OrderReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.OrderReport(nil), m.orders...)
}

func (m *Memory) Close() error { return nil }
