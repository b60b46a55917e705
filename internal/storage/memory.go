package storage

import (
	"context"
	"sync"
)

const memoryDeliveryCap = 1000

type memoryStore struct {
	mu         sync.Mutex
	alarm      AlarmRecord
	deliveries []DeliveryRecord
	closed     bool
}

// NewMemory returns a process-local store. Nothing survives a restart.
func NewMemory() Store {
	return &memoryStore{}
}

func (s *memoryStore) LoadAlarm(ctx context.Context) (AlarmRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return AlarmRecord{}, ErrClosed
	}
	return s.alarm, nil
}

func (s *memoryStore) SaveAlarm(ctx context.Context, r AlarmRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.alarm = r
	return nil
}

func (s *memoryStore) AppendDelivery(ctx context.Context, r DeliveryRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.deliveries = append(s.deliveries, r)
	if len(s.deliveries) > memoryDeliveryCap {
		s.deliveries = s.deliveries[len(s.deliveries)-memoryDeliveryCap:]
	}
	return nil
}

func (s *memoryStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return tail(s.deliveries, limit), nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func tail(in []DeliveryRecord, limit int) []DeliveryRecord {
	if limit <= 0 || limit > len(in) {
		limit = len(in)
	}
	return append([]DeliveryRecord(nil), in[len(in)-limit:]...)
}
