package store

// In-memory store backends for single-process deployments without a shared
// Redis. The gofiber memory storage used elsewhere only exposes blob
// Get/Set/Delete, so the atomic increment-and-read and compare-and-delete
// contracts are implemented here behind a per-store mutex.

import (
	"context"
	"sync"
	"time"
)

const sweepThreshold = 4096

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*counterEntry
	now      func() time.Time
}

func (s *MemoryCounterStore) IncrAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	entry, ok := s.counters[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &counterEntry{expiresAt: now.Add(ttl)}
		s.counters[key] = entry
	}
	entry.count++
	if len(s.counters) > sweepThreshold {
		s.sweep(now)
	}
	return entry.count, nil
}

func (s *MemoryCounterStore) sweep(now time.Time) {
	for key, entry := range s.counters {
		if now.After(entry.expiresAt) {
			delete(s.counters, key)
		}
	}
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*counterEntry),
		now:      time.Now,
	}
}

type tokenEntry struct {
	value     string
	expiresAt time.Time
}

type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]tokenEntry
	now    func() time.Time
}

func (s *MemoryTokenStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = tokenEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryTokenStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[key]
	if !ok {
		return "", ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.tokens, key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (s *MemoryTokenStore) DeleteIfEquals(ctx context.Context, key string, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[key]
	if !ok || s.now().After(entry.expiresAt) || entry.value != value {
		return false, nil
	}
	delete(s.tokens, key)
	return true, nil
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]tokenEntry),
		now:    time.Now,
	}
}

type MemoryBlocklist struct {
	mu      sync.Mutex
	members map[string]time.Time
	now     func() time.Time
}

func (s *MemoryBlocklist) Add(ctx context.Context, member string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt := time.Time{}
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.members[member] = expiresAt
	return nil
}

func (s *MemoryBlocklist) Contains(ctx context.Context, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.members[member]
	if !ok {
		return false, nil
	}
	if !expiresAt.IsZero() && s.now().After(expiresAt) {
		delete(s.members, member)
		return false, nil
	}
	return true, nil
}

func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{
		members: make(map[string]time.Time),
		now:     time.Now,
	}
}
