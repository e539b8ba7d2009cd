package perm

import (
	"context"
	"errors"
	"strings"
	"sync"

	"secure-agent-cli/internal/model"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Source fetches the accessible-document set for one identity.
type Source interface {
	Permissions(ctx context.Context, identityID string) (model.PermissionSnapshot, error)
}

// ErrStale is returned when a newer fetch for the same identity was issued
// while this one was in flight; its result was discarded.
var ErrStale = errors.New("perm: superseded by a newer fetch")

// Cache keeps the latest snapshot per identity for the whole session.
// Entries never expire and are only ever overwritten.
type Cache struct {
	src   Source
	log   *zap.Logger
	store *cache.Cache

	mu     sync.Mutex
	issued map[string]uint64
}

func NewCache(src Source, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		src:    src,
		log:    log,
		store:  cache.New(cache.NoExpiration, 0),
		issued: map[string]uint64{},
	}
}

// Fetch asks the service for identityID's snapshot and stores it, replacing
// any prior one. On failure the prior snapshot is left as is. When a later
// Fetch for the same identity was issued before this one returned, the
// response is dropped and ErrStale returned (last request wins).
func (c *Cache) Fetch(ctx context.Context, identityID string) (model.PermissionSnapshot, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return model.PermissionSnapshot{}, errors.New("perm: empty identity id")
	}

	c.mu.Lock()
	c.issued[identityID]++
	seq := c.issued[identityID]
	c.mu.Unlock()

	snap, err := c.src.Permissions(ctx, identityID)
	if err != nil {
		c.log.Warn("fetch permissions failed",
			zap.String("module", "perm"),
			zap.String("identity", identityID),
			zap.Uint64("seq", seq),
			zap.Error(err),
		)
		return model.PermissionSnapshot{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.issued[identityID] != seq {
		c.log.Debug("discard stale permissions",
			zap.String("module", "perm"),
			zap.String("identity", identityID),
			zap.Uint64("seq", seq),
		)
		return model.PermissionSnapshot{}, ErrStale
	}
	snap.IdentityID = identityID
	c.store.Set(identityID, snap, cache.NoExpiration)
	return snap, nil
}

// Get returns the live snapshot for identityID, if one was ever fetched.
func (c *Cache) Get(identityID string) (model.PermissionSnapshot, bool) {
	x, ok := c.store.Get(identityID)
	if !ok {
		return model.PermissionSnapshot{}, false
	}
	snap, ok := x.(model.PermissionSnapshot)
	return snap, ok
}

func (c *Cache) Len() int { return c.store.ItemCount() }
