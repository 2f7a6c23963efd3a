package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
)

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) live(at time.Time) bool {
	return e.expiresAt.After(at)
}

// KVStore is a process-local port.TTLStore for single-node deployments and tests.
// Expired entries are invisible immediately and physically removed by a janitor goroutine.
type KVStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewKVStore constructs an empty store. A positive cleanupInterval starts the janitor; call Close to stop it.
func NewKVStore(cleanupInterval time.Duration) *KVStore {
	s := &KVStore{
		entries: make(map[string]entry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go s.janitor(cleanupInterval)
	}

	return s
}

// WithClock overrides the clock, for tests.
func (s *KVStore) WithClock(now func() time.Time) *KVStore {
	if now != nil {
		s.mu.Lock()
		s.now = now
		s.mu.Unlock()
	}
	return s
}

// Get returns the value stored at key and whether it was present.
func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.live(s.now()) {
		return "", false, nil
	}
	return e.value, true, nil
}

// SetWithTTL stores value at key, overwriting any previous value and TTL.
func (s *KVStore) SetWithTTL(_ context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// Exists reports whether key is present.
func (s *KVStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Increment bumps the counter at key under the store lock.
func (s *KVStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || !e.live(now) {
		if ttl <= 0 {
			return 0, errors.New("ttl must be positive")
		}
		s.entries[key] = entry{value: "1", expiresAt: now.Add(ttl)}
		return 1, nil
	}

	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, errors.New("value is not an integer")
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	s.entries[key] = e
	return n, nil
}

// Delete removes the supplied keys.
func (s *KVStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// Ping always succeeds.
func (s *KVStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *KVStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the janitor goroutine.
func (s *KVStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *KVStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *KVStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !e.live(now) {
			delete(s.entries, key)
		}
	}
}

var _ port.TTLStore = (*KVStore)(nil)
