package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveChatStore persists which chat a user had open so a new session
// can restore it. A missing entry is not an error; it returns "".
type ActiveChatStore interface {
	SaveActiveChat(ctx context.Context, userID, chatID string) error
	LoadActiveChat(ctx context.Context, userID string) (string, error)
	ClearActiveChat(ctx context.Context, userID string) error
}

// MemoryActiveChatStore keeps the active chat per user in process.
type MemoryActiveChatStore struct {
	mu     sync.RWMutex
	active map[string]string
}

func NewMemoryActiveChatStore() *MemoryActiveChatStore {
	return &MemoryActiveChatStore{active: make(map[string]string)}
}

func (s *MemoryActiveChatStore) SaveActiveChat(_ context.Context, userID, chatID string) error {
	s.mu.Lock()
	s.active[userID] = chatID
	s.mu.Unlock()
	return nil
}

func (s *MemoryActiveChatStore) LoadActiveChat(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[userID], nil
}

func (s *MemoryActiveChatStore) ClearActiveChat(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.active, userID)
	s.mu.Unlock()
	return nil
}

// RedisActiveChatStore keeps the active chat in Redis so it survives
// process restarts and is shared across instances.
type RedisActiveChatStore struct {
	client *redis.Client
	ttl    time.Duration
}

const activeChatKeyPrefix = "lawtutor:session:active:"

func NewRedisActiveChatStore(addr, password string, ttl time.Duration) *RedisActiveChatStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &RedisActiveChatStore{client: client, ttl: ttl}
}

func (s *RedisActiveChatStore) SaveActiveChat(ctx context.Context, userID, chatID string) error {
	if err := s.client.Set(ctx, activeChatKeyPrefix+userID, chatID, s.ttl).Err(); err != nil {
		return fmt.Errorf("save active chat: %w", err)
	}
	return nil
}

func (s *RedisActiveChatStore) LoadActiveChat(ctx context.Context, userID string) (string, error) {
	val, err := s.client.Get(ctx, activeChatKeyPrefix+userID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load active chat: %w", err)
	}
	return val, nil
}

func (s *RedisActiveChatStore) ClearActiveChat(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, activeChatKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("clear active chat: %w", err)
	}
	return nil
}
