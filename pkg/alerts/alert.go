package alerts

import (
	"context"
	"errors"
	"fmt"

	"dreambot/pkg/market"

	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrNotFound = errors.New("alerts: subscription not found")
	// ErrStale is returned by Store.Consume when the stored subscription no
	// longer matches the state the caller evaluated.
	ErrStale = errors.New("alerts: subscription changed concurrently")
)

// Subscription is a user's price watch on a single item. Times are unix
// seconds; Frequency is the minimum number of seconds between two alerts and
// MaximumAlerts is the remaining alert budget.
type Subscription struct {
	OwnerID       snowflake.ID
	ItemID        int
	TargetLow     *int64
	TargetHigh    *int64
	Frequency     int64
	MaximumAlerts int
	LastAlert     int64
}

func (s Subscription) Key() string {
	return fmt.Sprintf("alert:%d:%d", s.OwnerID, s.ItemID)
}

// CoolingDown reports whether the subscription alerted less than Frequency
// seconds before now.
func (s Subscription) CoolingDown(now int64) bool {
	return now-s.LastAlert < s.Frequency
}

// Crossed evaluates both thresholds independently: low fires when the
// instant-sell price is at or below TargetLow, high when the instant-buy price
// is at or above TargetHigh.
func (s Subscription) Crossed(bounds market.PriceBounds) (low bool, high bool) {
	if s.TargetLow != nil && bounds.Low != nil && *bounds.Low <= *s.TargetLow {
		low = true
	}
	if s.TargetHigh != nil && bounds.High != nil && *bounds.High >= *s.TargetHigh {
		high = true
	}
	return
}

// Consumed is the state after one alert has been spent at now.
func (s Subscription) Consumed(now int64) Subscription {
	s.LastAlert = now
	s.MaximumAlerts--
	return s
}

type Store interface {
	// TrackedItems lists every item with at least one subscription.
	TrackedItems(ctx context.Context) ([]int, error)
	SubscriptionsForItem(ctx context.Context, itemID int) ([]Subscription, error)
	Subscription(ctx context.Context, ownerID snowflake.ID, itemID int) (Subscription, error)
	// Consume stores sub.Consumed(now), or deletes the subscription when its
	// budget is spent. It only applies if the stored LastAlert still equals
	// sub.LastAlert and reports ErrStale otherwise.
	Consume(ctx context.Context, sub Subscription, now int64) (removed bool, err error)
}

type PriceSource interface {
	Latest(ctx context.Context, itemID int) (market.PriceBounds, error)
}

type Notification struct {
	Subscription Subscription
	ItemName     string
	Bounds       market.PriceBounds
	LowCrossed   bool
	HighCrossed  bool
	// Remaining is the budget left after this alert; zero means the
	// subscription has been removed.
	Remaining int
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ItemNamer resolves item names for notifications.
type ItemNamer interface {
	Name(id int) string
}

type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
