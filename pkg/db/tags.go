package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
)

const (
	tagColumns = "guild_id, name, content, owner_id, uses, created"

	insertTagQuery = "INSERT INTO tags (" + tagColumns + ") VALUES ($1, $2, $3, $4, 0, $5);"
	selectTagQuery = "SELECT " + tagColumns + " FROM tags WHERE guild_id = $1 AND name = $2;"
	useTagQuery    = "UPDATE tags SET uses = uses + 1 WHERE guild_id = $1 AND name = $2 RETURNING " + tagColumns + ";"
	randomTagQuery = "SELECT " + tagColumns + " FROM tags WHERE guild_id = $1 ORDER BY random() LIMIT 1;"
	deleteTagQuery = "DELETE FROM tags WHERE guild_id = $1 AND name = $2;"
	tagNamesQuery  = "SELECT name FROM tags WHERE guild_id = $1 AND name LIKE $2 || '%' ORDER BY uses DESC, name LIMIT $3;"
)

type Tag struct {
	GuildID snowflake.ID `db:"guild_id"`
	Name    string       `db:"name"`
	Content string       `db:"content"`
	OwnerID snowflake.ID `db:"owner_id"`
	Uses    int          `db:"uses"`
	Created int64        `db:"created"`
}

func (db *DB) CreateTag(ctx context.Context, tag Tag) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.pool.Exec(ctx, insertTagQuery, tag.GuildID, tag.Name, tag.Content, tag.OwnerID, tag.Created)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (db *DB) Tag(ctx context.Context, guildID snowflake.ID, name string) (Tag, error) {
	return db.queryTag(ctx, selectTagQuery, guildID, name)
}

// UseTag returns the tag and counts the lookup towards its uses.
func (db *DB) UseTag(ctx context.Context, guildID snowflake.ID, name string) (Tag, error) {
	return db.queryTag(ctx, useTagQuery, guildID, name)
}

func (db *DB) RandomTag(ctx context.Context, guildID snowflake.ID) (Tag, error) {
	return db.queryTag(ctx, randomTagQuery, guildID)
}

func (db *DB) queryTag(ctx context.Context, query string, args ...any) (Tag, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, _ := db.pool.Query(ctx, query, args...)
	tag, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Tag])
	if errors.Is(err, pgx.ErrNoRows) {
		return Tag{}, ErrNotFound
	}
	if err != nil {
		return Tag{}, fmt.Errorf("query tag: %w", err)
	}
	return tag, nil
}

func (db *DB) DeleteTag(ctx context.Context, guildID snowflake.ID, name string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	tag, err := db.pool.Exec(ctx, deleteTagQuery, guildID, name)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) TagNames(ctx context.Context, guildID snowflake.ID, prefix string, limit int) ([]string, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, _ := db.pool.Query(ctx, tagNamesQuery, guildID, prefix, limit)
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
