package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a process-local Repository.
type Memory struct {
	mu       sync.RWMutex
	records  []Record
	settings map[string]string
	now      func() time.Time
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		settings: make(map[string]string),
		now:      time.Now,
	}
}

func (m *Memory) SaveSimulation(ctx context.Context, record Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	record = Prepare(record, m.now())
	record.Installments = append([]Installment(nil), record.Installments...)

	m.mu.Lock()
	m.records = append(m.records, record)
	m.mu.Unlock()
	return record, nil
}

func (m *Memory) ListSimulations(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	records := make([]Record, len(m.records))
	copy(records, m.records)
	m.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (m *Memory) DeleteAllSimulations(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := int64(len(m.records))
	m.records = nil
	return removed, nil
}

func (m *Memory) GetSetting(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) PutSetting(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.settings[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
