package routes_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/kafka"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository"
)

type userStore struct {
	mu    sync.Mutex
	users map[string]domain.Principal
}

func newUserStore() *userStore {
	return &userStore{users: make(map[string]domain.Principal)}
}

func (s *userStore) Create(_ context.Context, user domain.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *userStore) find(match func(domain.Principal) bool) (*domain.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *userStore) GetByID(_ context.Context, id string) (*domain.Principal, error) {
	return s.find(func(u domain.Principal) bool { return u.ID == id })
}

func (s *userStore) GetByUsername(_ context.Context, username string) (*domain.Principal, error) {
	return s.find(func(u domain.Principal) bool { return u.Username == username })
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*domain.Principal, error) {
	return s.find(func(u domain.Principal) bool { return strings.EqualFold(u.Email, email) })
}

func (s *userStore) UpdatePassword(_ context.Context, id, hash string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.PasswordChangedAt = &changedAt
	s.users[id] = u
	return nil
}

type refreshStore struct {
	mu      sync.Mutex
	records map[string]domain.RefreshTokenRecord
}

func newRefreshStore() *refreshStore {
	return &refreshStore{records: make(map[string]domain.RefreshTokenRecord)}
}

func (s *refreshStore) Create(_ context.Context, record domain.RefreshTokenRecord, maxPerUser int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxPerUser > 0 {
		var owned []domain.RefreshTokenRecord
		for _, r := range s.records {
			if r.UserID == record.UserID {
				owned = append(owned, r)
			}
		}
		sort.Slice(owned, func(i, j int) bool { return owned[i].ExpiresAt.Before(owned[j].ExpiresAt) })
		for i := 0; i <= len(owned)-maxPerUser; i++ {
			delete(s.records, owned[i].ID)
		}
	}
	s.records[record.ID] = record
	return nil
}

func (s *refreshStore) GetByHash(_ context.Context, hash string) (*domain.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.TokenHash == hash {
			found := r
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *refreshStore) Rotate(_ context.Context, oldID string, next domain.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[oldID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.records, oldID)
	s.records[next.ID] = next
	return nil
}

func (s *refreshStore) DeleteByHash(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.TokenHash == hash {
			delete(s.records, id)
			return true, nil
		}
	}
	return false, nil
}

func (s *refreshStore) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.records {
		if r.UserID == userID {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *refreshStore) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.records {
		if r.IsExpired(before) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

type resetStore struct {
	mu     sync.Mutex
	tokens map[string]domain.PasswordResetToken
	users  *userStore
}

func newResetStore(users *userStore) *resetStore {
	return &resetStore{tokens: make(map[string]domain.PasswordResetToken), users: users}
}

func (s *resetStore) Create(_ context.Context, token domain.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tokens {
		if t.UserID == token.UserID && !t.Used {
			t.Used = true
			s.tokens[id] = t
		}
	}
	s.tokens[token.ID] = token
	return nil
}

func (s *resetStore) GetByHash(_ context.Context, hash string) (*domain.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.TokenHash == hash {
			found := t
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *resetStore) Redeem(ctx context.Context, id, userID, hash string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || !t.Consume() {
		return repository.ErrNotFound
	}
	if err := s.users.UpdatePassword(ctx, userID, hash, changedAt); err != nil {
		return err
	}
	s.tokens[id] = t
	return nil
}

func (s *resetStore) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.tokens {
		if t.IsExpired(before) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

// mailbox logs events like the stub publisher and keeps the last reset token per email.
type mailbox struct {
	*kafka.StubPublisher

	mu     sync.Mutex
	resets map[string]string
}

func (m *mailbox) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	m.mu.Lock()
	m.resets[event.Email] = event.Token
	m.mu.Unlock()
	return m.StubPublisher.PublishPasswordResetRequested(ctx, event)
}

func (m *mailbox) resetToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets[email]
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

var errDatabaseDown = errors.New("database unreachable")
