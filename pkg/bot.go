package pkg

import (
	"dreambot/pkg/cache"
	"dreambot/pkg/config"
	"dreambot/pkg/db"
	"dreambot/pkg/market"

	"github.com/disgoorg/snowflake/v2"
)

type Bot struct {
	DB      *db.DB
	Alerts  *db.AlertStore
	Market  *market.Client
	Catalog *market.Catalog
	// Guilds caches per-guild feature flags in front of the database.
	Guilds *cache.Cache[snowflake.ID, config.Guild]
	// ReactionRoles caches the emoji to role bindings of a message, empty
	// maps included.
	ReactionRoles *cache.Cache[snowflake.ID, map[string]snowflake.ID]
	// Messages remembers recent messages so the audit log can show what was
	// deleted.
	Messages *cache.Cache[snowflake.ID, LoggedMessage]
}

type LoggedMessage struct {
	AuthorID  snowflake.ID
	ChannelID snowflake.ID
	Content   string
}
