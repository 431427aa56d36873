package session

import (
	"context"
	"sync"
)

// record внутреннее состояние одной сессии. Наружу отдаются только копии.
type record struct {
	history        []Turn
	requestCount   int
	lastActiveDate string
	displayName    string
}

// MemoryStore потокобезопасное in-memory хранилище сессий.
// Единственный общий мьютекс: критические секции короткие, сетевых
// вызовов внутри блокировки нет.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*record),
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, userID, today string) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[userID]
	if !ok || rec.lastActiveDate != today {
		name := ""
		if ok {
			// Имя переживает суточный сброс, оно не влияет на корректность.
			name = rec.displayName
		}
		rec = &record{
			history:        nil,
			requestCount:   0,
			lastActiveDate: today,
			displayName:    name,
		}
		s.sessions[userID] = rec
		return s.snapshotLocked(userID, rec), true, nil
	}

	return s.snapshotLocked(userID, rec), false, nil
}

func (s *MemoryStore) AppendTurn(ctx context.Context, userID string, role Role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[userID]
	if !ok {
		rec = &record{}
		s.sessions[userID] = rec
	}
	rec.history = append(rec.history, Turn{Role: role, Text: text})
	return nil
}

func (s *MemoryStore) IncrementRequestCount(ctx context.Context, userID, today string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[userID]
	if !ok {
		rec = &record{}
		s.sessions[userID] = rec
	}
	rec.requestCount++
	rec.lastActiveDate = today
	return nil
}

func (s *MemoryStore) SnapshotHistory(ctx context.Context, userID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	history := make([]Turn, len(rec.history))
	copy(history, rec.history)
	return history, nil
}

func (s *MemoryStore) Reset(ctx context.Context, userID, today string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := ""
	if rec, ok := s.sessions[userID]; ok {
		name = rec.displayName
	}
	s.sessions[userID] = &record{
		lastActiveDate: today,
		displayName:    name,
	}
	return nil
}

func (s *MemoryStore) SetDisplayName(ctx context.Context, userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[userID]
	if !ok {
		rec = &record{}
		s.sessions[userID] = rec
	}
	rec.displayName = name
	return nil
}

// snapshotLocked копирует состояние сессии. Вызывается под мьютексом.
func (s *MemoryStore) snapshotLocked(userID string, rec *record) Snapshot {
	history := make([]Turn, len(rec.history))
	copy(history, rec.history)
	return Snapshot{
		UserID:         userID,
		History:        history,
		RequestCount:   rec.requestCount,
		LastActiveDate: rec.lastActiveDate,
		DisplayName:    rec.displayName,
	}
}
