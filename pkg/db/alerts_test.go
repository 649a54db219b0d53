package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"dreambot/pkg/alerts"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statement struct {
	sql  string
	args []any
}

// fakeConn records statements and answers every count query with count.
type fakeConn struct {
	statements   []statement
	rowsAffected int64
	count        int
	execErr      error
	committed    bool
	rolledBack   bool
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.statements = append(c.statements, statement{sql: sql, args: args})
	if c.execErr != nil {
		return pgconn.CommandTag{}, c.execErr
	}
	verb := strings.Fields(sql)[0]
	return pgconn.NewCommandTag(fmt.Sprintf("%s %d", verb, c.rowsAffected)), nil
}

func (c *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("query not supported")
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.statements = append(c.statements, statement{sql: sql, args: args})
	return countRow(c.count)
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	return &fakeTx{conn: c}, nil
}

func (c *fakeConn) Ping(context.Context) error {
	return nil
}

func (c *fakeConn) sql() []string {
	out := make([]string, len(c.statements))
	for i, s := range c.statements {
		out[i] = s.sql
	}
	return out
}

type countRow int

func (r countRow) Scan(dest ...any) error {
	n, ok := dest[0].(*int)
	if !ok {
		return fmt.Errorf("unexpected scan target %T", dest[0])
	}
	*n = int(r)
	return nil
}

type fakeTx struct {
	pgx.Tx
	conn *fakeConn
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return tx.conn.Exec(ctx, sql, args...)
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return tx.conn.QueryRow(ctx, sql, args...)
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.conn.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.conn.committed {
		return pgx.ErrTxClosed
	}
	tx.conn.rolledBack = true
	return nil
}

func newFakeStore(conn *fakeConn) *AlertStore {
	return NewAlertStore(&DB{pool: conn})
}

func TestConsumeClaim(t *testing.T) {
	low := int64(100)
	tests := []struct {
		name          string
		maximumAlerts int
		wantSQL       string
		wantArgs      []any
		wantRemoved   bool
	}{
		{
			name:          "budget left",
			maximumAlerts: 3,
			wantSQL:       consumeAlertQuery,
			wantArgs:      []any{snowflake.ID(1), 42, int64(500), 3, int64(4000)},
		},
		{
			name:          "last alert",
			maximumAlerts: 1,
			wantSQL:       exhaustAlertQuery,
			wantArgs:      []any{snowflake.ID(1), 42, int64(500), 1},
			wantRemoved:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{rowsAffected: 1}
			sub := alerts.Subscription{OwnerID: 1, ItemID: 42, TargetLow: &low, Frequency: 60, MaximumAlerts: tt.maximumAlerts, LastAlert: 500}

			removed, err := newFakeStore(conn).Consume(context.Background(), sub, 4000)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)
			require.Len(t, conn.statements, 1)
			assert.Equal(t, tt.wantSQL, conn.statements[0].sql)
			assert.Equal(t, tt.wantArgs, conn.statements[0].args)
		})
	}
}

func TestConsumeStale(t *testing.T) {
	for _, maximumAlerts := range []int{1, 5} {
		conn := &fakeConn{rowsAffected: 0}
		sub := alerts.Subscription{OwnerID: 1, ItemID: 42, Frequency: 60, MaximumAlerts: maximumAlerts, LastAlert: 500}

		removed, err := newFakeStore(conn).Consume(context.Background(), sub, 4000)
		assert.ErrorIs(t, err, ErrStale, "maximum alerts %d", maximumAlerts)
		assert.False(t, removed)
	}
}

func TestConsumeExecError(t *testing.T) {
	conn := &fakeConn{execErr: errors.New("connection reset")}
	sub := alerts.Subscription{OwnerID: 1, ItemID: 42, Frequency: 60, MaximumAlerts: 2}

	_, err := newFakeStore(conn).Consume(context.Background(), sub, 4000)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStale)
	assert.ErrorContains(t, err, "alert:1:42")
}

func TestAddAlert(t *testing.T) {
	high := int64(2_000_000)
	sub := alerts.Subscription{OwnerID: 7, ItemID: 4151, TargetHigh: &high, Frequency: 3600, MaximumAlerts: 5}

	conn := &fakeConn{count: 24, rowsAffected: 1}
	require.NoError(t, newFakeStore(conn).AddAlert(context.Background(), sub, 25))

	assert.Equal(t, []string{lockOwnerAlertsQuery, countOtherAlertsQuery, upsertAlertQuery}, conn.sql())
	assert.Equal(t, []any{snowflake.ID(7)}, conn.statements[0].args)
	assert.Equal(t, []any{snowflake.ID(7), 4151}, conn.statements[1].args)
	assert.True(t, conn.committed)
	assert.False(t, conn.rolledBack)
}

func TestAddAlertAtLimit(t *testing.T) {
	sub := alerts.Subscription{OwnerID: 7, ItemID: 4151, Frequency: 3600, MaximumAlerts: 5}

	conn := &fakeConn{count: 25, rowsAffected: 1}
	err := newFakeStore(conn).AddAlert(context.Background(), sub, 25)
	assert.ErrorIs(t, err, ErrTooManyAlerts)

	assert.Equal(t, []string{lockOwnerAlertsQuery, countOtherAlertsQuery}, conn.sql())
	assert.False(t, conn.committed)
	assert.True(t, conn.rolledBack)
}
