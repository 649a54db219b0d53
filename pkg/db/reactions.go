package db

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
)

const (
	reactionRoleColumns = "guild_id, channel_id, message_id, emoji, role_id"

	upsertReactionRoleQuery = `
INSERT INTO reaction_roles (` + reactionRoleColumns + `) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT(message_id, emoji) DO UPDATE SET role_id=excluded.role_id;`
	deleteReactionRoleQuery  = "DELETE FROM reaction_roles WHERE guild_id = $1 AND message_id = $2 AND emoji = $3;"
	clearReactionRolesQuery  = "DELETE FROM reaction_roles WHERE guild_id = $1 AND message_id = $2;"
	messageReactionRoleQuery = "SELECT emoji, role_id FROM reaction_roles WHERE message_id = $1;"
	guildReactionRolesQuery  = `
SELECT ` + reactionRoleColumns + ` FROM reaction_roles
WHERE guild_id = $1 AND ($2::bigint IS NULL OR channel_id = $2)
ORDER BY channel_id, message_id, emoji;`
)

// ReactionRole grants RoleID to members reacting with Emoji on a message.
// Emoji is the custom emoji id or the unicode emoji without variation
// selectors.
type ReactionRole struct {
	GuildID   snowflake.ID `db:"guild_id"`
	ChannelID snowflake.ID `db:"channel_id"`
	MessageID snowflake.ID `db:"message_id"`
	Emoji     string       `db:"emoji"`
	RoleID    snowflake.ID `db:"role_id"`
}

// AddReactionRole binds the emoji on the message to the role, replacing the
// role of an existing binding.
func (db *DB) AddReactionRole(ctx context.Context, rr ReactionRole) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.pool.Exec(ctx, upsertReactionRoleQuery, rr.GuildID, rr.ChannelID, rr.MessageID, rr.Emoji, rr.RoleID)
	if err != nil {
		return fmt.Errorf("add reaction role: %w", err)
	}
	return nil
}

func (db *DB) RemoveReactionRole(ctx context.Context, guildID snowflake.ID, messageID snowflake.ID, emoji string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	tag, err := db.pool.Exec(ctx, deleteReactionRoleQuery, guildID, messageID, emoji)
	if err != nil {
		return fmt.Errorf("remove reaction role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearReactionRoles removes every binding on the message and returns how
// many there were.
func (db *DB) ClearReactionRoles(ctx context.Context, guildID snowflake.ID, messageID snowflake.ID) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	tag, err := db.pool.Exec(ctx, clearReactionRolesQuery, guildID, messageID)
	if err != nil {
		return 0, fmt.Errorf("clear reaction roles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MessageReactionRoles maps emoji to role for one message. Messages without
// bindings get an empty map.
func (db *DB) MessageReactionRoles(ctx context.Context, messageID snowflake.ID) (map[string]snowflake.ID, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, _ := db.pool.Query(ctx, messageReactionRoleQuery, messageID)
	roles := make(map[string]snowflake.ID)
	var (
		emoji  string
		roleID snowflake.ID
	)
	_, err := pgx.ForEachRow(rows, []any{&emoji, &roleID}, func() error {
		roles[emoji] = roleID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reaction roles of message %d: %w", messageID, err)
	}
	return roles, nil
}

// ReactionRoles lists the guild's bindings, only those in channelID when it is
// set.
func (db *DB) ReactionRoles(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID) ([]ReactionRole, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, _ := db.pool.Query(ctx, guildReactionRolesQuery, guildID, channelID)
	return pgx.CollectRows(rows, pgx.RowToStructByName[ReactionRole])
}
