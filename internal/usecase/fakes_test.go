package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/security"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository/memory"
)

const testSigningSecret = "usecase-test-secret-0123456789abcdef"

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.Principal
	err   error
	// updateErr fails the next UpdatePassword call only.
	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]domain.Principal)}
}

func (r *fakeUserRepo) Create(_ context.Context, user domain.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.Principal, error) {
	return r.find(func(p domain.Principal) bool { return p.ID == id })
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.Principal, error) {
	return r.find(func(p domain.Principal) bool { return p.Username == username })
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.Principal, error) {
	return r.find(func(p domain.Principal) bool { return strings.EqualFold(p.Email, email) })
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateErr; err != nil {
		r.updateErr = nil
		return err
	}
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.PasswordChangedAt = &changedAt
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) find(match func(domain.Principal) bool) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, user := range r.users {
		if match(user) {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) get(id string) domain.Principal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

type fakeRefreshRepo struct {
	mu      sync.Mutex
	records map[string]domain.RefreshTokenRecord
	now     func() time.Time
	err     error
}

func newFakeRefreshRepo(now func() time.Time) *fakeRefreshRepo {
	return &fakeRefreshRepo{records: make(map[string]domain.RefreshTokenRecord), now: now}
}

func (r *fakeRefreshRepo) Create(_ context.Context, record domain.RefreshTokenRecord, maxPerUser int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}

	var owned []domain.RefreshTokenRecord
	for hash, existing := range r.records {
		if existing.UserID != record.UserID {
			continue
		}
		if existing.IsExpired(r.now()) {
			delete(r.records, hash)
			continue
		}
		owned = append(owned, existing)
	}

	if maxPerUser > 0 && len(owned) >= maxPerUser {
		sort.Slice(owned, func(i, j int) bool { return owned[i].ExpiresAt.After(owned[j].ExpiresAt) })
		for _, evicted := range owned[maxPerUser-1:] {
			delete(r.records, evicted.TokenHash)
		}
	}

	r.records[record.TokenHash] = record
	return nil
}

func (r *fakeRefreshRepo) GetByHash(_ context.Context, hash string) (*domain.RefreshTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	record, ok := r.records[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &record, nil
}

func (r *fakeRefreshRepo) Rotate(_ context.Context, oldID string, next domain.RefreshTokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, existing := range r.records {
		if existing.ID == oldID {
			delete(r.records, hash)
			r.records[next.TokenHash] = next
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeRefreshRepo) DeleteByHash(_ context.Context, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.records[hash]
	delete(r.records, hash)
	return ok, nil
}

func (r *fakeRefreshRepo) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	count := 0
	for hash, existing := range r.records {
		if existing.UserID == userID {
			delete(r.records, hash)
			count++
		}
	}
	return count, nil
}

func (r *fakeRefreshRepo) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	count := 0
	for hash, existing := range r.records {
		if !existing.ExpiresAt.After(before) {
			delete(r.records, hash)
			count++
		}
	}
	return count, nil
}

func (r *fakeRefreshRepo) countFor(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, existing := range r.records {
		if existing.UserID == userID {
			count++
		}
	}
	return count
}

// fakeResetRepo applies password updates to users, when set, under its own lock so that
// consuming a token and changing the password behave as one unit.
type fakeResetRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.PasswordResetToken
	users  *fakeUserRepo
}

func newFakeResetRepo(users *fakeUserRepo) *fakeResetRepo {
	return &fakeResetRepo{tokens: make(map[string]domain.PasswordResetToken), users: users}
}

func (r *fakeResetRepo) Create(_ context.Context, token domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.tokens {
		if existing.UserID == token.UserID && !existing.Used {
			existing.Used = true
			r.tokens[id] = existing
		}
	}
	r.tokens[token.ID] = token
	return nil
}

func (r *fakeResetRepo) GetByHash(_ context.Context, hash string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.TokenHash == hash {
			copy := token
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeResetRepo) Redeem(ctx context.Context, id, userID, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok || !token.Consume() {
		return repository.ErrNotFound
	}
	if r.users != nil {
		if err := r.users.UpdatePassword(ctx, userID, passwordHash, changedAt); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
	}
	r.tokens[id] = token
	return nil
}

func (r *fakeResetRepo) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, token := range r.tokens {
		if !token.ExpiresAt.After(before) {
			delete(r.tokens, id)
			count++
		}
	}
	return count, nil
}

func (r *fakeResetRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

type recordingPublisher struct {
	mu             sync.Mutex
	err            error
	loginSucceeded []domain.LoginSucceededEvent
	loginFailed    []domain.LoginFailedEvent
	registered     []domain.UserRegisteredEvent
	resetRequested []domain.PasswordResetRequestedEvent
	resetCompleted []domain.PasswordResetCompletedEvent
	revoked        []domain.SessionsRevokedEvent
}

func (p *recordingPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginSucceeded = append(p.loginSucceeded, event)
	return p.err
}

func (p *recordingPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginFailed = append(p.loginFailed, event)
	return p.err
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return p.err
}

func (p *recordingPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetRequested = append(p.resetRequested, event)
	return p.err
}

func (p *recordingPublisher) PublishPasswordResetCompleted(_ context.Context, event domain.PasswordResetCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetCompleted = append(p.resetCompleted, event)
	return p.err
}

func (p *recordingPublisher) PublishSessionsRevoked(_ context.Context, event domain.SessionsRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, event)
	return p.err
}

var errStoreDown = errors.New("store unavailable")

// failingStore answers every call with errStoreDown.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) { return "", false, errStoreDown }

func (failingStore) SetWithTTL(context.Context, string, string, time.Duration) error {
	return errStoreDown
}

func (failingStore) Exists(context.Context, string) (bool, error) { return false, errStoreDown }

func (failingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errStoreDown
}

func (failingStore) Delete(context.Context, ...string) error { return errStoreDown }

func (failingStore) Ping(context.Context) error { return errStoreDown }

var _ port.TTLStore = failingStore{}

func fastArgon2Params() port.Argon2Params {
	return port.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

// harness wires every service against fakes, the in-memory TTL store and a manual clock.
type harness struct {
	clock       *manualClock
	users       *fakeUserRepo
	refreshRepo *fakeRefreshRepo
	resetRepo   *fakeResetRepo
	events      *recordingPublisher
	kv          *memory.KVStore
	hasher      *security.Argon2Hasher
	codec       *security.TokenCodec

	limiter       *RateLimiter
	revocations   *RevocationStore
	issuer        *TokenIssuer
	validator     *TokenValidator
	refresh       *RefreshTokenService
	authenticator *CredentialAuthenticator
	resets        *PasswordResetService
	registration  *RegistrationService
	auth          *AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:  newManualClock(),
		users:  newFakeUserRepo(),
		events: &recordingPublisher{},
	}
	h.resetRepo = newFakeResetRepo(h.users)
	h.refreshRepo = newFakeRefreshRepo(h.clock.Now)
	h.kv = memory.NewKVStore(0).WithClock(h.clock.Now)

	hasher, err := security.NewArgon2Hasher(fastArgon2Params())
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}
	h.hasher = hasher

	codec, err := security.NewTokenCodec(testSigningSecret, "school-auth")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	h.codec = codec.WithClock(h.clock.Now)

	policy := security.NewPasswordPolicy(security.DefaultPasswordPolicySettings())

	h.limiter = NewRateLimiter(h.kv, RateLimitConfig{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		BlockDuration: 15 * time.Minute,
		StoreTimeout:  time.Second,
	}, nil).WithClock(h.clock.Now)
	resetLimiter := NewRateLimiter(h.kv, RateLimitConfig{
		MaxAttempts:   3,
		Window:        15 * time.Minute,
		BlockDuration: 15 * time.Minute,
	}, nil).WithClock(h.clock.Now)

	h.revocations = NewRevocationStore(h.kv, time.Second, nil)
	h.issuer = NewTokenIssuer(h.codec, h.refreshRepo, TokenSettings{
		AccessTTL:            15 * time.Minute,
		RefreshTTL:           7 * 24 * time.Hour,
		RememberMeMultiplier: 7,
		MaxRefreshPerUser:    5,
	}, nil).WithClock(h.clock.Now)
	h.validator = NewTokenValidator(h.codec, h.revocations, nil)
	h.refresh = NewRefreshTokenService(h.codec, h.refreshRepo, h.users, h.issuer, nil).WithClock(h.clock.Now)

	authenticator, err := NewCredentialAuthenticator(h.users, h.hasher, h.limiter, h.events, nil)
	if err != nil {
		t.Fatalf("NewCredentialAuthenticator: %v", err)
	}
	h.authenticator = authenticator.WithClock(h.clock.Now)

	h.resets = NewPasswordResetService(h.users, h.resetRepo, h.refreshRepo, h.hasher, policy, resetLimiter, h.events, time.Hour, nil).WithClock(h.clock.Now)
	h.registration = NewRegistrationService(h.users, h.hasher, policy, h.events, nil).WithClock(h.clock.Now)
	h.auth = NewAuthService(h.authenticator, h.issuer, h.refresh, h.revocations, NewRoleAuthorizer(), h.users, h.events, nil).WithClock(h.clock.Now)

	return h
}

func (h *harness) seedUser(t *testing.T, id, username, email, password string, role domain.Role, enabled bool) domain.Principal {
	t.Helper()

	hash, err := h.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := domain.Principal{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Enabled:      enabled,
		CreatedAt:    h.clock.Now(),
	}
	if err := h.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (h *harness) seedAlice(t *testing.T) domain.Principal {
	t.Helper()
	return h.seedUser(t, "user-alice", "alice", "alice@school.test", "P@ss1234", domain.RoleStudent, true)
}
