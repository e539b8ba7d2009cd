package catalog

import (
	"context"
	"sync"

	"secure-agent-cli/internal/model"

	"go.uber.org/zap"
)

// Source is the part of the remote service the catalog needs.
type Source interface {
	Users(ctx context.Context) ([]model.Identity, error)
	Documents(ctx context.Context) ([]model.Document, error)
}

// Cache holds every identity and document known to the client. It is filled
// once by Load and read-only afterwards.
type Cache struct {
	mu         sync.RWMutex
	identities []model.Identity
	documents  []model.Document
	identByID  map[string]int
	docByID    map[string]int
	loaded     bool
}

func New() *Cache {
	return &Cache{identByID: map[string]int{}, docByID: map[string]int{}}
}

// FromSlices builds a loaded cache without a remote source.
func FromSlices(identities []model.Identity, documents []model.Document) *Cache {
	c := New()
	c.set(identities, documents)
	return c
}

// LoadErrors carries whichever half of the catalog failed to load.
type LoadErrors struct {
	Identities error
	Documents  error
}

func (e LoadErrors) Err() error {
	if e.Identities != nil {
		return e.Identities
	}
	return e.Documents
}

// Load fetches identities and documents concurrently. A failed half is logged
// and left empty; Load never retries. Calling Load twice is a no-op.
func (c *Cache) Load(ctx context.Context, src Source, log *zap.Logger) LoadErrors {
	if log == nil {
		log = zap.NewNop()
	}
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return LoadErrors{}
	}

	var (
		wg         sync.WaitGroup
		identities []model.Identity
		documents  []model.Document
		errs       LoadErrors
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		identities, errs.Identities = src.Users(ctx)
	}()
	go func() {
		defer wg.Done()
		documents, errs.Documents = src.Documents(ctx)
	}()
	wg.Wait()

	if errs.Identities != nil {
		log.Warn("load identities failed", zap.String("module", "catalog"), zap.Error(errs.Identities))
		identities = nil
	}
	if errs.Documents != nil {
		log.Warn("load documents failed", zap.String("module", "catalog"), zap.Error(errs.Documents))
		documents = nil
	}
	c.set(identities, documents)
	log.Info("catalog loaded",
		zap.String("module", "catalog"),
		zap.Int("identities", len(identities)),
		zap.Int("documents", len(documents)),
	)
	return errs
}

func (c *Cache) set(identities []model.Identity, documents []model.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identities = make([]model.Identity, 0, len(identities))
	c.identByID = make(map[string]int, len(identities))
	for _, id := range identities {
		if _, dup := c.identByID[id.ID]; dup || id.ID == "" {
			continue
		}
		c.identByID[id.ID] = len(c.identities)
		c.identities = append(c.identities, id)
	}
	c.documents = make([]model.Document, 0, len(documents))
	c.docByID = make(map[string]int, len(documents))
	for _, d := range documents {
		if _, dup := c.docByID[d.ID]; dup || d.ID == "" {
			continue
		}
		c.docByID[d.ID] = len(c.documents)
		c.documents = append(c.documents, d)
	}
	c.loaded = true
}

// Identities returns a copy in service order.
func (c *Cache) Identities() []model.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Identity(nil), c.identities...)
}

// Documents returns a copy in catalog order.
func (c *Cache) Documents() []model.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Document(nil), c.documents...)
}

func (c *Cache) Identity(id string) (model.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.identByID[id]
	if !ok {
		return model.Identity{}, false
	}
	return c.identities[i], true
}

func (c *Cache) Document(id string) (model.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.docByID[id]
	if !ok {
		return model.Document{}, false
	}
	return c.documents[i], true
}

func (c *Cache) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.identities) == 0
}
