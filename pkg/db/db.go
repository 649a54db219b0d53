package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreambot/pkg/config"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectGuildQuery         = "SELECT guild_id, features, log_channel_id, log_actions FROM guild_features WHERE guild_id = $1;"
	upsertGuildFeaturesQuery = "INSERT INTO guild_features (guild_id, features) VALUES ($1, $2) ON CONFLICT(guild_id) DO UPDATE SET features=excluded.features;"
	upsertGuildLoggingQuery  = `
INSERT INTO guild_features (guild_id, features, log_channel_id, log_actions) VALUES ($1, $2, $3, $4)
ON CONFLICT(guild_id) DO UPDATE SET log_channel_id=excluded.log_channel_id, log_actions=excluded.log_actions;`
)

// conn is the part of *pgxpool.Pool the queries use.
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

var _ conn = (*pgxpool.Pool)(nil)

type DB struct {
	pool         conn
	queryTimeout time.Duration
}

func NewDB(pool *pgxpool.Pool, queryTimeout time.Duration) *DB {
	return &DB{pool: pool, queryTimeout: queryTimeout}
}

// Connect opens a pool and makes sure the database is reachable.
func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	return db.pool.Ping(ctx)
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

// GetGuildConfig returns the stored settings of a guild, or the defaults when
// the guild never changed them.
func (db *DB) GetGuildConfig(ctx context.Context, guildID snowflake.ID) (config.Guild, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, _ := db.pool.Query(ctx, selectGuildQuery, guildID)
	cfg, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[config.Guild])
	if errors.Is(err, pgx.ErrNoRows) {
		return config.DefaultGuild(guildID), nil
	}
	return cfg, err
}

func (db *DB) UpdateGuildFeatures(ctx context.Context, guildID snowflake.ID, features config.Features) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.pool.Exec(ctx, upsertGuildFeaturesQuery, guildID, features)
	return err
}

// UpdateGuildLogging stores the audit log channel and actions. A nil channel
// turns audit logging off. Guilds without a row keep the default features.
func (db *DB) UpdateGuildLogging(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, actions config.AuditActions) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.pool.Exec(ctx, upsertGuildLoggingQuery, guildID, config.FeaturesAll, channelID, actions)
	return err
}
