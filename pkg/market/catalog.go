package market

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"dreambot/pkg/cache"

	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

const (
	// Discord caps autocomplete responses at 25 choices.
	MaxSearchResults = 25

	DefaultRefreshSpec = "@every 1h"
)

type MappingSource interface {
	Mapping(ctx context.Context) ([]Item, error)
}

// Catalog indexes item metadata by id and name. Search results are memoised
// in an expiring cache which is dropped on every refresh.
type Catalog struct {
	source   MappingSource
	searches *cache.Cache[string, []Item]
	group    singleflight.Group

	mu          sync.RWMutex
	items       map[int]Item
	sorted      []Item
	refreshedAt time.Time
}

func NewCatalog(source MappingSource, searches *cache.Cache[string, []Item]) *Catalog {
	return &Catalog{
		source:   source,
		searches: searches,
		items:    make(map[int]Item),
	}
}

// Refresh reloads the item mapping. Concurrent callers share one request.
func (c *Catalog) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do(mappingKey, func() (any, error) {
		items, err := c.source.Mapping(ctx)
		if err != nil {
			return nil, fmt.Errorf("refresh catalog: %w", err)
		}
		index := make(map[int]Item, len(items))
		for _, item := range items {
			index[item.ID] = item
		}
		sorted := slices.Clone(items)
		slices.SortFunc(sorted, func(a, b Item) int {
			return cmp.Or(cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), cmp.Compare(a.ID, b.ID))
		})

		c.mu.Lock()
		c.items = index
		c.sorted = sorted
		c.refreshedAt = time.Now()
		c.mu.Unlock()
		c.searches.Clear()
		return nil, nil
	})
	return err
}

// Schedule registers a periodic refresh on cr.
func (c *Catalog) Schedule(cr *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultRefreshSpec
	}
	return cr.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			slog.Warn("dreambot: error while refreshing the item catalog", tint.Err(err))
			return
		}
		slog.Debug("dreambot: refreshed the item catalog", slog.Int("item.count", c.Len()))
	})
}

func (c *Catalog) Item(id int) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

// Name returns the item's name, or a placeholder when the item is unknown.
func (c *Catalog) Name(id int) string {
	if item, ok := c.Item(id); ok {
		return item.Name
	}
	return "Item #" + strconv.Itoa(id)
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Catalog) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// Search matches items by id or case-insensitive name. Prefix matches come
// before substring matches; at most limit items are returned.
func (c *Catalog) Search(query string, limit int) []Item {
	if limit <= 0 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}
	q := strings.ToLower(strings.TrimSpace(query))
	results, ok := c.searches.Get(q)
	if !ok {
		results = c.search(q)
		c.searches.Put(q, results, 0)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (c *Catalog) search(q string) []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var exact []Item
	if id, err := strconv.Atoi(q); err == nil {
		if item, ok := c.items[id]; ok {
			exact = append(exact, item)
		}
	}

	var prefix, contains []Item
	for _, item := range c.sorted {
		if len(exact)+len(prefix) >= MaxSearchResults {
			break
		}
		name := strings.ToLower(item.Name)
		switch {
		case strings.HasPrefix(name, q):
			prefix = append(prefix, item)
		case strings.Contains(name, q):
			contains = append(contains, item)
		}
	}

	results := slices.Concat(exact, prefix, contains)
	if len(results) > MaxSearchResults {
		results = results[:MaxSearchResults]
	}
	return results
}
