package db

import (
	"context"
	"errors"
	"fmt"

	"dreambot/pkg/alerts"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
)

const (
	alertColumns = "owner_id, item_id, target_low, target_high, frequency, maximum_alerts, last_alert"

	trackedItemsQuery   = "SELECT DISTINCT item_id FROM alerts ORDER BY item_id;"
	alertsForItemQuery  = "SELECT " + alertColumns + " FROM alerts WHERE item_id = $1 ORDER BY owner_id;"
	alertsForOwnerQuery = "SELECT " + alertColumns + " FROM alerts WHERE owner_id = $1 ORDER BY item_id;"
	alertQuery          = "SELECT " + alertColumns + " FROM alerts WHERE owner_id = $1 AND item_id = $2;"

	// the last_alert and maximum_alerts guards make the claim conditional on
	// the state the engine evaluated
	consumeAlertQuery = `
UPDATE alerts
SET last_alert = $5, maximum_alerts = maximum_alerts - 1
WHERE owner_id = $1 AND item_id = $2 AND last_alert = $3 AND maximum_alerts = $4;`
	exhaustAlertQuery = `
DELETE FROM alerts
WHERE owner_id = $1 AND item_id = $2 AND last_alert = $3 AND maximum_alerts = $4;`

	upsertAlertQuery = `
INSERT INTO alerts (owner_id, item_id, target_low, target_high, frequency, maximum_alerts, last_alert)
VALUES ($1, $2, $3, $4, $5, $6, 0)
ON CONFLICT(owner_id, item_id) DO UPDATE SET
    target_low=excluded.target_low,
    target_high=excluded.target_high,
    frequency=excluded.frequency,
    maximum_alerts=excluded.maximum_alerts,
    last_alert=0;`
	deleteAlertQuery = "DELETE FROM alerts WHERE owner_id = $1 AND item_id = $2;"

	// transaction scoped, released on commit or rollback
	lockOwnerAlertsQuery  = "SELECT pg_advisory_xact_lock($1);"
	countOtherAlertsQuery = "SELECT count(*) FROM alerts WHERE owner_id = $1 AND item_id <> $2;"
)

type alertRow struct {
	OwnerID       snowflake.ID `db:"owner_id"`
	ItemID        int          `db:"item_id"`
	TargetLow     *int64       `db:"target_low"`
	TargetHigh    *int64       `db:"target_high"`
	Frequency     int64        `db:"frequency"`
	MaximumAlerts int          `db:"maximum_alerts"`
	LastAlert     int64        `db:"last_alert"`
}

func (r alertRow) subscription() alerts.Subscription {
	return alerts.Subscription(r)
}

func collectSubscriptions(rows pgx.Rows) ([]alerts.Subscription, error) {
	rs, err := pgx.CollectRows(rows, pgx.RowToStructByName[alertRow])
	if err != nil {
		return nil, err
	}
	subs := make([]alerts.Subscription, len(rs))
	for i, r := range rs {
		subs[i] = r.subscription()
	}
	return subs, nil
}

// AlertStore adapts DB to the alert engine.
type AlertStore struct {
	db *DB
}

func NewAlertStore(db *DB) *AlertStore {
	return &AlertStore{db: db}
}

var _ alerts.Store = (*AlertStore)(nil)

func (s *AlertStore) TrackedItems(ctx context.Context) ([]int, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	rows, _ := s.db.pool.Query(ctx, trackedItemsQuery)
	items, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("tracked items: %w", err)
	}
	return items, nil
}

func (s *AlertStore) SubscriptionsForItem(ctx context.Context, itemID int) ([]alerts.Subscription, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	rows, _ := s.db.pool.Query(ctx, alertsForItemQuery, itemID)
	subs, err := collectSubscriptions(rows)
	if err != nil {
		return nil, fmt.Errorf("alerts for item %d: %w", itemID, err)
	}
	return subs, nil
}

func (s *AlertStore) Subscription(ctx context.Context, ownerID snowflake.ID, itemID int) (alerts.Subscription, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	rows, _ := s.db.pool.Query(ctx, alertQuery, ownerID, itemID)
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[alertRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return alerts.Subscription{}, ErrNotFound
	}
	if err != nil {
		return alerts.Subscription{}, fmt.Errorf("alert %d/%d: %w", ownerID, itemID, err)
	}
	return row.subscription(), nil
}

func (s *AlertStore) Consume(ctx context.Context, sub alerts.Subscription, now int64) (bool, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	removed := sub.MaximumAlerts <= 1
	query, args := consumeAlertQuery, []any{sub.OwnerID, sub.ItemID, sub.LastAlert, sub.MaximumAlerts, now}
	if removed {
		query, args = exhaustAlertQuery, args[:4]
	}
	tag, err := s.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("consume alert %s: %w", sub.Key(), err)
	}
	if tag.RowsAffected() == 0 {
		return false, ErrStale
	}
	return removed, nil
}

// AddAlert creates the subscription, or replaces the one the owner already has
// on the item and resets its cooldown, unless the owner has limit alerts on
// other items. Concurrent adds by one owner are serialized on an advisory
// lock so they cannot both pass the count.
func (s *AlertStore) AddAlert(ctx context.Context, sub alerts.Subscription, limit int) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, s.db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockOwnerAlertsQuery, sub.OwnerID); err != nil {
			return fmt.Errorf("lock alerts of %d: %w", sub.OwnerID, err)
		}
		var others int
		if err := tx.QueryRow(ctx, countOtherAlertsQuery, sub.OwnerID, sub.ItemID).Scan(&others); err != nil {
			return fmt.Errorf("count alerts: %w", err)
		}
		if others >= limit {
			return ErrTooManyAlerts
		}
		_, err := tx.Exec(ctx, upsertAlertQuery,
			sub.OwnerID, sub.ItemID, sub.TargetLow, sub.TargetHigh, sub.Frequency, sub.MaximumAlerts)
		if err != nil {
			return fmt.Errorf("upsert alert %s: %w", sub.Key(), err)
		}
		return nil
	})
}

func (s *AlertStore) AlertsForOwner(ctx context.Context, ownerID snowflake.ID) ([]alerts.Subscription, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	rows, _ := s.db.pool.Query(ctx, alertsForOwnerQuery, ownerID)
	subs, err := collectSubscriptions(rows)
	if err != nil {
		return nil, fmt.Errorf("alerts for owner %d: %w", ownerID, err)
	}
	return subs, nil
}

func (s *AlertStore) DeleteAlert(ctx context.Context, ownerID snowflake.ID, itemID int) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	tag, err := s.db.pool.Exec(ctx, deleteAlertQuery, ownerID, itemID)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
