package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
)

const (
	groupColumns  = "guild_id, name, owner_id, created, max_members, ephemeral_updates"
	memberColumns = "guild_id, group_name, member_id, joined"

	insertGroupQuery   = "INSERT INTO groups (" + groupColumns + ") VALUES ($1, $2, $3, $4, $5, $6);"
	selectGroupQuery   = "SELECT " + groupColumns + " FROM groups WHERE guild_id = $1 AND name = $2;"
	deleteMembersQuery = "DELETE FROM group_members WHERE guild_id = $1 AND group_name = $2;"
	deleteGroupQuery   = "DELETE FROM groups WHERE guild_id = $1 AND name = $2;"
	groupNamesQuery    = "SELECT name FROM groups WHERE guild_id = $1 AND name LIKE $2 || '%' ORDER BY name LIMIT $3;"

	lockGroupQuery    = "SELECT max_members FROM groups WHERE guild_id = $1 AND name = $2 FOR UPDATE;"
	countMembersQuery = "SELECT count(*) FROM group_members WHERE guild_id = $1 AND group_name = $2;"
	insertMemberQuery = "INSERT INTO group_members (" + memberColumns + ") VALUES ($1, $2, $3, $4);"
	deleteMemberQuery = "DELETE FROM group_members WHERE guild_id = $1 AND group_name = $2 AND member_id = $3;"
	membersQuery      = "SELECT " + memberColumns + " FROM group_members WHERE guild_id = $1 AND group_name = $2 ORDER BY joined, member_id;"
)

type Group struct {
	GuildID          snowflake.ID `db:"guild_id"`
	Name             string       `db:"name"`
	OwnerID          snowflake.ID `db:"owner_id"`
	Created          int64        `db:"created"`
	MaxMembers       *int         `db:"max_members"`
	EphemeralUpdates bool         `db:"ephemeral_updates"`
}

type GroupMember struct {
	GuildID   snowflake.ID `db:"guild_id"`
	GroupName string       `db:"group_name"`
	MemberID  snowflake.ID `db:"member_id"`
	Joined    int64        `db:"joined"`
}

func (db *DB) CreateGroup(ctx context.Context, group Group) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.pool.Exec(ctx, insertGroupQuery,
		group.GuildID, group.Name, group.OwnerID, group.Created, group.MaxMembers, group.EphemeralUpdates)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (db *DB) Group(ctx context.Context, guildID snowflake.ID, name string) (Group, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, _ := db.pool.Query(ctx, selectGroupQuery, guildID, name)
	group, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Group])
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, fmt.Errorf("query group: %w", err)
	}
	return group, nil
}

// DeleteGroup removes the group together with its members.
func (db *DB) DeleteGroup(ctx context.Context, guildID snowflake.ID, name string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteMembersQuery, guildID, name); err != nil {
			return fmt.Errorf("delete group members: %w", err)
		}
		tag, err := tx.Exec(ctx, deleteGroupQuery, guildID, name)
		if err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// JoinGroup adds a member unless the group is full. The group row is locked so
// concurrent joins cannot overfill it.
func (db *DB) JoinGroup(ctx context.Context, member GroupMember) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		var maxMembers *int
		err := tx.QueryRow(ctx, lockGroupQuery, member.GuildID, member.GroupName).Scan(&maxMembers)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock group: %w", err)
		}
		if maxMembers != nil {
			var count int
			if err := tx.QueryRow(ctx, countMembersQuery, member.GuildID, member.GroupName).Scan(&count); err != nil {
				return fmt.Errorf("count group members: %w", err)
			}
			if count >= *maxMembers {
				return ErrGroupFull
			}
		}
		_, err = tx.Exec(ctx, insertMemberQuery, member.GuildID, member.GroupName, member.MemberID, member.Joined)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	})
}

func (db *DB) LeaveGroup(ctx context.Context, guildID snowflake.ID, name string, memberID snowflake.ID) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	tag, err := db.pool.Exec(ctx, deleteMemberQuery, guildID, name, memberID)
	if err != nil {
		return fmt.Errorf("leave group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GroupMembers(ctx context.Context, guildID snowflake.ID, name string) ([]GroupMember, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, _ := db.pool.Query(ctx, membersQuery, guildID, name)
	return pgx.CollectRows(rows, pgx.RowToStructByName[GroupMember])
}

func (db *DB) GroupNames(ctx context.Context, guildID snowflake.ID, prefix string, limit int) ([]string, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, _ := db.pool.Query(ctx, groupNamesQuery, guildID, prefix, limit)
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
