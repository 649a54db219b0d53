package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"dreambot/pkg/cache"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMapping struct {
	items []Item
	err   error
	calls int
}

func (s *stubMapping) Mapping(context.Context) ([]Item, error) {
	s.calls++
	return s.items, s.err
}

func names(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

func newTestCatalog(t *testing.T, items ...Item) (*Catalog, *stubMapping) {
	t.Helper()
	source := &stubMapping{items: items}
	c := NewCatalog(source, cache.New[string, []Item](time.Minute))
	require.NoError(t, c.Refresh(context.Background()))
	return c, source
}

func TestCatalogLookup(t *testing.T) {
	c, _ := newTestCatalog(t, Item{ID: 4151, Name: "Abyssal whip"}, Item{ID: 2, Name: "Cannonball"})

	item, ok := c.Item(4151)
	require.True(t, ok)
	assert.Equal(t, "Abyssal whip", item.Name)
	assert.Equal(t, "Cannonball", c.Name(2))
	assert.Equal(t, "Item #99", c.Name(99))
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.RefreshedAt().IsZero())
}

func TestCatalogSearchOrdering(t *testing.T) {
	c, _ := newTestCatalog(t,
		Item{ID: 1, Name: "Rune platebody"},
		Item{ID: 2, Name: "Adamant platebody"},
		Item{ID: 3, Name: "Platebody (g)"},
		Item{ID: 4, Name: "Rune scimitar"},
	)

	assert.Equal(t, []string{"Platebody (g)", "Adamant platebody", "Rune platebody"}, names(c.Search("Plate", 10)))
	assert.Equal(t, []string{"Rune platebody"}, names(c.Search("rune", 1)))
	assert.Equal(t, []string{"Rune scimitar"}, names(c.Search("4", 10)))
	assert.Empty(t, c.Search("dragon", 10))
}

func TestCatalogSearchCapped(t *testing.T) {
	items := make([]Item, 0, 40)
	for i := 0; i < 40; i++ {
		items = append(items, Item{ID: 1000 + i, Name: "Bolt"})
	}
	c, _ := newTestCatalog(t, items...)

	assert.Len(t, c.Search("bolt", 100), MaxSearchResults)
}

func TestCatalogRefreshDropsSearchCache(t *testing.T) {
	c, source := newTestCatalog(t, Item{ID: 1, Name: "Coal"})
	assert.Equal(t, []string{"Coal"}, names(c.Search("co", 5)))

	source.items = []Item{{ID: 1, Name: "Coal"}, {ID: 2, Name: "Coins"}}
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"Coal", "Coins"}, names(c.Search("co", 5)))
}

func TestCatalogRefreshErrorKeepsItems(t *testing.T) {
	c, source := newTestCatalog(t, Item{ID: 1, Name: "Coal"})
	source.err = errors.New("boom")

	require.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, "Coal", c.Name(1))
}

func TestCatalogSchedule(t *testing.T) {
	c, _ := newTestCatalog(t)
	cr := cron.New()
	id, err := c.Schedule(cr, "", time.Second)
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = c.Schedule(cr, "not a spec", time.Second)
	assert.Error(t, err)
}
