package credential

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

// GetResult is what Get hands back. When a credential was expired and the
// refresh attempt failed, the stale credential is still returned with
// RefreshFailed set, so callers can decide whether to use it or surface a
// reconnect prompt.
type GetResult struct {
	Credential    *credential.Credential
	RefreshFailed bool
}

// RefreshGuard deduplicates refresh attempts across processes. TryAcquire
// returns a release func when the caller holds the guard, or nil when
// another process is already refreshing the same key.
type RefreshGuard interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithExpiryBuffer overrides the expiry safety buffer.
func WithExpiryBuffer(d time.Duration) Option {
	return func(s *Store) { s.buffer = d }
}

// WithRefreshGuard enables cross-process refresh deduplication.
func WithRefreshGuard(g RefreshGuard) Option {
	return func(s *Store) { s.guard = g }
}

// Store manages credential retrieval, caching, and transparent refresh.
//
// Synchronization is per (user, platform) key: two goroutines asking for the
// same expiring credential serialize so only one refresh is in flight, while
// requests for different keys never contend.
type Store struct {
	repo       credential.Repository
	refreshers map[platform.Platform]credential.Refresher
	guard      RefreshGuard
	logger     *zap.Logger

	now    func() time.Time
	buffer time.Duration

	mu    sync.RWMutex
	cache map[string]*credential.Credential

	keys keyedMutex
}

// NewStore builds a Store. The refreshers map may omit platforms; a missing
// refresher means expired credentials for that platform are returned with
// RefreshFailed set.
func NewStore(repo credential.Repository, refreshers map[platform.Platform]credential.Refresher, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		repo:       repo,
		refreshers: refreshers,
		logger:     logger,
		now:        time.Now,
		buffer:     credential.DefaultExpiryBuffer,
		cache:      make(map[string]*credential.Credential),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKey(userID string, p platform.Platform) string {
	return userID + "\x00" + string(p)
}

// Get returns the credential for (user, platform), refreshing it first when
// it is expired or about to expire. A lookup miss returns shared.ErrNotFound.
func (s *Store) Get(ctx context.Context, userID string, p platform.Platform) (GetResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return GetResult{}, fmt.Errorf("user id is required: %w", shared.ErrInvalidInput)
	}
	if !p.IsValid() {
		return GetResult{}, fmt.Errorf("platform %q: %w", p, shared.ErrUnsupportedPlatform)
	}

	key := cacheKey(userID, p)
	unlock := s.keys.lock(key)
	defer unlock()

	cred, err := s.load(ctx, userID, p, key)
	if err != nil {
		return GetResult{}, err
	}

	if !cred.IsExpiredWithin(s.now(), s.buffer) {
		return GetResult{Credential: cred.Clone()}, nil
	}

	refreshed, err := s.refresh(ctx, userID, p, cred)
	if err != nil {
		s.logger.Warn("credential refresh failed",
			zap.String("user_id", userID),
			zap.String("platform", p.String()),
			zap.Error(err))
		return GetResult{Credential: cred.Clone(), RefreshFailed: true}, nil
	}
	return GetResult{Credential: refreshed.Clone()}, nil
}

// GetWithoutRefresh returns the stored credential as-is, expired or not.
func (s *Store) GetWithoutRefresh(ctx context.Context, userID string, p platform.Platform) (*credential.Credential, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", shared.ErrInvalidInput)
	}

	// The key lock keeps the read-and-repopulate atomic with respect to
	// Delete and ClearUser, so a disconnect can never race a stale entry
	// back into the cache.
	key := cacheKey(userID, p)
	unlock := s.keys.lock(key)
	defer unlock()

	cred, err := s.load(ctx, userID, p, key)
	if err != nil {
		return nil, err
	}
	return cred.Clone(), nil
}

// Store persists and caches a credential.
func (s *Store) Store(ctx context.Context, userID string, c *credential.Credential) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required: %w", shared.ErrInvalidInput)
	}
	if c == nil {
		return fmt.Errorf("credential is required: %w", shared.ErrInvalidInput)
	}
	if !c.Platform.IsValid() {
		return fmt.Errorf("platform %q: %w", c.Platform, shared.ErrUnsupportedPlatform)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("access token is required: %w", shared.ErrInvalidInput)
	}

	key := cacheKey(userID, c.Platform)
	unlock := s.keys.lock(key)
	defer unlock()

	if err := s.repo.Put(ctx, userID, c); err != nil {
		return err
	}
	s.put(key, c)
	s.logger.Info("credential stored",
		zap.String("user_id", userID),
		zap.String("platform", c.Platform.String()))
	return nil
}

// Delete removes a credential. It reports whether one existed.
func (s *Store) Delete(ctx context.Context, userID string, p platform.Platform) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, fmt.Errorf("user id is required: %w", shared.ErrInvalidInput)
	}
	key := cacheKey(userID, p)
	unlock := s.keys.lock(key)
	defer unlock()

	existed, err := s.repo.Delete(ctx, userID, p)
	if err != nil {
		return false, err
	}
	s.evict(key)
	return existed, nil
}

// ListPlatforms returns the platforms the user has connected.
func (s *Store) ListPlatforms(ctx context.Context, userID string) ([]platform.Platform, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", shared.ErrInvalidInput)
	}
	return s.repo.ListPlatforms(ctx, userID)
}

// HasCredential reports whether a credential exists, without decrypting or
// refreshing it.
func (s *Store) HasCredential(ctx context.Context, userID string, p platform.Platform) (bool, error) {
	platforms, err := s.ListPlatforms(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, have := range platforms {
		if have == p {
			return true, nil
		}
	}
	return false, nil
}

// ClearUser removes every credential the user has and returns how many were
// removed.
func (s *Store) ClearUser(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required: %w", shared.ErrInvalidInput)
	}
	// Hold every platform key lock for the user so no concurrent Get path
	// can re-cache a credential between the bulk delete and the evictions.
	// Lock order follows platform.All, matching no other multi-key path.
	for _, p := range platform.All() {
		unlock := s.keys.lock(cacheKey(userID, p))
		defer unlock()
	}

	n, err := s.repo.DeleteAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	for _, p := range platform.All() {
		delete(s.cache, cacheKey(userID, p))
	}
	s.mu.Unlock()
	return n, nil
}

// load returns the cached credential or falls through to the repository.
// Caller holds the key lock.
func (s *Store) load(ctx context.Context, userID string, p platform.Platform, key string) (*credential.Credential, error) {
	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}
	cred, err := s.repo.Get(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	s.put(key, cred)
	return cred, nil
}

// refresh runs one refresh attempt for the key. Caller holds the key lock,
// which already serializes in-process attempts; the guard extends that to
// other processes.
func (s *Store) refresh(ctx context.Context, userID string, p platform.Platform, cred *credential.Credential) (*credential.Credential, error) {
	refresher, ok := s.refreshers[p]
	if !ok {
		return nil, fmt.Errorf("no refresher for platform %s: %w", p, shared.ErrRefreshFailed)
	}
	if !cred.CanRefresh() {
		return nil, fmt.Errorf("credential for %s has no refresh material: %w", p, shared.ErrRefreshFailed)
	}

	if s.guard != nil {
		release, err := s.guard.TryAcquire(ctx, "credential-refresh:"+cacheKey(userID, p), 30*time.Second)
		if err != nil {
			return nil, fmt.Errorf("refresh guard: %w", err)
		}
		if release == nil {
			// Another process is refreshing; pick up its result.
			return s.reloadAfterForeignRefresh(ctx, userID, p)
		}
		defer release()
	}

	refreshed, err := refresher.Refresh(ctx, cred)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Put(ctx, userID, refreshed); err != nil {
		return nil, fmt.Errorf("persisting refreshed credential: %w", err)
	}
	s.put(cacheKey(userID, p), refreshed)
	s.logger.Info("credential refreshed",
		zap.String("user_id", userID),
		zap.String("platform", p.String()))
	return refreshed, nil
}

// reloadAfterForeignRefresh re-reads storage hoping the process holding the
// guard has finished. A still-expired row counts as a failed refresh.
func (s *Store) reloadAfterForeignRefresh(ctx context.Context, userID string, p platform.Platform) (*credential.Credential, error) {
	cred, err := s.repo.Get(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	if cred.IsExpiredWithin(s.now(), s.buffer) {
		return nil, fmt.Errorf("concurrent refresh did not produce a fresh credential: %w", shared.ErrRefreshFailed)
	}
	s.put(cacheKey(userID, p), cred)
	return cred, nil
}

func (s *Store) put(key string, c *credential.Credential) {
	s.mu.Lock()
	s.cache[key] = c.Clone()
	s.mu.Unlock()
}

func (s *Store) evict(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}
