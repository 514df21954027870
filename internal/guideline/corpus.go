package guideline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"adscribe/internal/logging"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
)

// Corpus is an immutable snapshot of the guideline record set.
// A Corpus is never mutated after construction; reloading builds a fresh
// one and atomically swaps it into the cache.
type Corpus struct {
	records []*Record
	byID    map[string]*Record
	byTier  map[Tier][]*Record
}

// NewCorpus builds a corpus snapshot from records. Records failing
// validation are rejected; duplicate IDs are an error.
func NewCorpus(records []*Record) (*Corpus, error) {
	c := &Corpus{
		byID:   make(map[string]*Record, len(records)),
		byTier: make(map[Tier][]*Record),
	}

	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid guideline record: %w", err)
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate guideline record ID %q", r.ID)
		}
		c.byID[r.ID] = r
		c.byTier[r.Tier] = append(c.byTier[r.Tier], r)
		c.records = append(c.records, r)
	}

	// Deterministic iteration order
	sort.Slice(c.records, func(i, j int) bool {
		return c.records[i].ID < c.records[j].ID
	})
	for tier := range c.byTier {
		recs := c.byTier[tier]
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].ID < recs[j].ID
		})
	}

	return c, nil
}

// Get retrieves a record by ID.
func (c *Corpus) Get(id string) (*Record, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// ByTier returns all records in a tier.
func (c *Corpus) ByTier(tier Tier) []*Record {
	return c.byTier[tier]
}

// All returns all records, ordered by ID.
func (c *Corpus) All() []*Record {
	return c.records
}

// Count returns the number of records in the corpus.
func (c *Corpus) Count() int {
	return len(c.records)
}

// LoadFunc produces a fresh record set, typically by reading the corpus
// source from disk.
type LoadFunc func(ctx context.Context) ([]*Record, error)

// Cache is the process-wide corpus cache. The corpus is loaded once on
// first access and treated as read-only thereafter; Invalidate swaps in a
// freshly built snapshot so in-flight readers never observe a partial
// corpus. Concurrent first loads are collapsed through singleflight.
type Cache struct {
	load    LoadFunc
	current atomic.Pointer[Corpus]
	group   singleflight.Group

	watcherMu sync.Mutex
	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

// NewCache creates a corpus cache backed by the given load function.
func NewCache(load LoadFunc) *Cache {
	return &Cache{load: load}
}

// Corpus returns the cached corpus, loading it on first access.
func (c *Cache) Corpus(ctx context.Context) (*Corpus, error) {
	if corpus := c.current.Load(); corpus != nil {
		return corpus, nil
	}
	return c.reload(ctx)
}

// Invalidate discards the cached corpus and rebuilds it. The swap is
// atomic: readers hold either the old or the new snapshot, never a mix.
func (c *Cache) Invalidate(ctx context.Context) error {
	_, err := c.reload(ctx)
	return err
}

func (c *Cache) reload(ctx context.Context) (*Corpus, error) {
	v, err, _ := c.group.Do("corpus", func() (interface{}, error) {
		timer := logging.StartTimer(logging.CategoryCorpus, "Cache.reload")
		defer timer.Stop()

		records, err := c.load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load guideline corpus: %w", err)
		}

		corpus, err := NewCorpus(records)
		if err != nil {
			return nil, err
		}

		c.current.Store(corpus)
		logging.Get(logging.CategoryCorpus).Info("Corpus loaded: %d records", corpus.Count())
		return corpus, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Corpus), nil
}

// Watch starts watching a corpus directory and invalidates the cache when
// any file in it changes. Stop with StopWatch.
func (c *Cache) Watch(dir string) error {
	c.watcherMu.Lock()
	defer c.watcherMu.Unlock()

	if c.watcher != nil {
		return fmt.Errorf("corpus watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create corpus watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch corpus directory %s: %w", dir, err)
	}

	c.watcher = watcher
	c.watchDone = make(chan struct{})

	go c.watchLoop(watcher, c.watchDone)

	logging.Get(logging.CategoryCorpus).Info("Watching corpus directory: %s", dir)
	return nil
}

func (c *Cache) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logging.Get(logging.CategoryCorpus).Info("Corpus change detected (%s), reloading", event.Name)
			if err := c.Invalidate(context.Background()); err != nil {
				// Keep serving the previous snapshot on a bad reload.
				logging.Get(logging.CategoryCorpus).Error("Corpus reload failed: %v", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryCorpus).Warn("Corpus watcher error: %v", err)
		}
	}
}

// StopWatch stops the corpus watcher if one is running.
func (c *Cache) StopWatch() {
	c.watcherMu.Lock()
	defer c.watcherMu.Unlock()

	if c.watcher == nil {
		return
	}

	c.watcher.Close()
	<-c.watchDone
	c.watcher = nil
	c.watchDone = nil
}
