package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"dreambot/pkg/market"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval     = time.Minute
	DefaultFetchTimeout = 10 * time.Second
	DefaultConcurrency  = 4
)

type CycleStats struct {
	Items            int
	FetchFailures    int
	Triggered        int
	DeliveryFailures int
	Removed          int
	Errors           int
}

type Option func(*Engine)

func WithLocker(l Locker) Option { return func(e *Engine) { e.locker = l } }

func WithItemNamer(n ItemNamer) Option { return func(e *Engine) { e.namer = n } }

func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Engine polls prices for every tracked item and alerts the owners of
// subscriptions whose thresholds were crossed. It keeps no subscription state
// between cycles.
type Engine struct {
	store    Store
	prices   PriceSource
	notifier Notifier
	locker   Locker
	namer    ItemNamer

	interval     time.Duration
	fetchTimeout time.Duration
	concurrency  int
	now          func() time.Time
}

func NewEngine(store Store, prices PriceSource, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		prices:       prices,
		notifier:     notifier,
		locker:       NewKeyedMutex(),
		interval:     DefaultInterval,
		fetchTimeout: DefaultFetchTimeout,
		concurrency:  DefaultConcurrency,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts a cycle immediately and then on every interval until ctx is done.
// A cycle that has started always runs to completion.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	start := time.Now()
	stats, err := e.RunCycle(context.WithoutCancel(ctx))
	mCycleDur.Observe(time.Since(start).Seconds())
	stats.observe()
	if err != nil {
		slog.Error("dreambot: error while running an alert cycle", tint.Err(err))
		return
	}
	slog.Debug("dreambot: alert cycle finished",
		slog.Int("items", stats.Items),
		slog.Int("fetch.failures", stats.FetchFailures),
		slog.Int("triggered", stats.Triggered),
		slog.Int("removed", stats.Removed),
		slog.Duration("duration", time.Since(start)))
}

// RunCycle runs a single poll-compare-notify pass.
func (e *Engine) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats
	now := e.now().Unix()

	items, err := e.store.TrackedItems(ctx)
	if err != nil {
		return stats, fmt.Errorf("tracked items: %w", err)
	}
	stats.Items = len(items)
	if len(items) == 0 {
		return stats, nil
	}

	prices, failures := e.fetchPrices(ctx, items)
	stats.FetchFailures = failures

	for _, itemID := range items {
		bounds, ok := prices[itemID]
		if !ok {
			continue
		}
		subs, err := e.store.SubscriptionsForItem(ctx, itemID)
		if err != nil {
			stats.Errors++
			slog.Error("dreambot: error while loading subscriptions", slog.Int("item.id", itemID), tint.Err(err))
			continue
		}
		for _, sub := range subs {
			e.evaluate(ctx, sub, bounds, now, &stats)
		}
	}
	return stats, nil
}

func (e *Engine) fetchPrices(ctx context.Context, items []int) (map[int]market.PriceBounds, int) {
	var (
		mu       sync.Mutex
		failures int
		g        errgroup.Group
	)
	prices := make(map[int]market.PriceBounds, len(items))
	g.SetLimit(e.concurrency)
	for _, itemID := range items {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
			defer cancel()
			bounds, err := e.prices.Latest(fctx, itemID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				level := slog.LevelWarn
				if errors.Is(err, market.ErrBackingOff) {
					level = slog.LevelDebug
				}
				slog.Log(ctx, level, "dreambot: skipping item for this cycle", slog.Int("item.id", itemID), tint.Err(err))
				return nil
			}
			prices[itemID] = bounds
			return nil
		})
	}
	_ = g.Wait()
	return prices, failures
}

func (e *Engine) evaluate(ctx context.Context, sub Subscription, bounds market.PriceBounds, now int64, stats *CycleStats) {
	if sub.CoolingDown(now) {
		return
	}
	if low, high := sub.Crossed(bounds); !low && !high {
		return
	}

	unlock, err := e.locker.Lock(ctx, sub.Key())
	if err != nil {
		stats.Errors++
		slog.Error("dreambot: error while locking a subscription", slog.String("alert.key", sub.Key()), tint.Err(err))
		return
	}
	defer unlock()

	// an overlapping cycle may have spent this window while we waited
	current, err := e.store.Subscription(ctx, sub.OwnerID, sub.ItemID)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		stats.Errors++
		slog.Error("dreambot: error while reloading a subscription", slog.String("alert.key", sub.Key()), tint.Err(err))
		return
	}
	if current.CoolingDown(now) {
		return
	}
	low, high := current.Crossed(bounds)
	if !low && !high {
		return
	}

	removed, err := e.store.Consume(ctx, current, now)
	if errors.Is(err, ErrStale) {
		return
	}
	if err != nil {
		stats.Errors++
		slog.Error("dreambot: error while updating a subscription", slog.String("alert.key", sub.Key()), tint.Err(err))
		return
	}
	stats.Triggered++
	consumed := current.Consumed(now)
	remaining := consumed.MaximumAlerts
	if removed {
		stats.Removed++
		remaining = 0
	}

	// delivery is at most once: the alert is spent whether or not it arrives
	n := Notification{
		Subscription: consumed,
		ItemName:     e.itemName(current.ItemID),
		Bounds:       bounds,
		LowCrossed:   low,
		HighCrossed:  high,
		Remaining:    remaining,
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		stats.DeliveryFailures++
		slog.Warn("dreambot: error while delivering an alert",
			slog.Any("owner.id", current.OwnerID),
			slog.Int("item.id", current.ItemID),
			tint.Err(err))
	}
}

func (e *Engine) itemName(itemID int) string {
	if e.namer != nil {
		return e.namer.Name(itemID)
	}
	return "Item #" + strconv.Itoa(itemID)
}
