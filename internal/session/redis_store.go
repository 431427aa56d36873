package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore хранилище сессий поверх Redis: один JSON-блоб на пользователя
// с TTL. Read-modify-write сериализуется процессным мьютексом: сервис
// работает в одном экземпляре, межпроцессная блокировка не нужна.
type RedisStore struct {
	mu     sync.Mutex
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore создаёт хранилище и проверяет соединение.
// ttl определяет, как долго сессия живёт без активности.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) sessionKey(userID string) string {
	return "session:" + userID
}

func (s *RedisStore) GetOrCreate(ctx context.Context, userID, today string) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, found, err := s.load(ctx, userID)
	if err != nil {
		return Snapshot{}, false, err
	}
	if found && snap.LastActiveDate == today {
		return snap, false, nil
	}

	fresh := Snapshot{
		UserID:         userID,
		LastActiveDate: today,
		DisplayName:    snap.DisplayName,
	}
	if err := s.save(ctx, fresh); err != nil {
		return Snapshot{}, false, err
	}
	return fresh, true, nil
}

func (s *RedisStore) AppendTurn(ctx context.Context, userID string, role Role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, _, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	snap.UserID = userID
	snap.History = append(snap.History, Turn{Role: role, Text: text})
	return s.save(ctx, snap)
}

func (s *RedisStore) IncrementRequestCount(ctx context.Context, userID, today string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, _, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	snap.UserID = userID
	snap.RequestCount++
	snap.LastActiveDate = today
	return s.save(ctx, snap)
}

func (s *RedisStore) SnapshotHistory(ctx context.Context, userID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, found, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return snap.History, nil
}

func (s *RedisStore) Reset(ctx context.Context, userID, today string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, _, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	return s.save(ctx, Snapshot{
		UserID:         userID,
		LastActiveDate: today,
		DisplayName:    snap.DisplayName,
	})
}

func (s *RedisStore) SetDisplayName(ctx context.Context, userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, _, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	snap.UserID = userID
	snap.DisplayName = name
	return s.save(ctx, snap)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// load читает сессию из Redis. Отсутствие ключа не ошибка.
func (s *RedisStore) load(ctx context.Context, userID string) (Snapshot, bool, error) {
	data, err := s.client.Get(ctx, s.sessionKey(userID)).Result()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load session: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("parse session data: %w", err)
	}
	return snap, true, nil
}

// save пишет сессию обратно, обновляя TTL.
func (s *RedisStore) save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(snap.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
