package config

import (
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// Guild holds the per-guild settings stored in guild_features.
type Guild struct {
	GuildID  snowflake.ID `db:"guild_id"`
	Features Features     `db:"features"`
	// LogChannelID receives audit log entries when set.
	LogChannelID *snowflake.ID `db:"log_channel_id"`
	LogActions   AuditActions  `db:"log_actions"`
}

// AuditEnabled reports whether action should be posted to the log channel.
func (g Guild) AuditEnabled(action AuditActions) bool {
	return g.LogChannelID != nil && g.Features.Has(FeatureAuditLog) && g.LogActions.Has(action)
}

type Features int64

const (
	FeatureTags Features = 1 << iota
	FeatureGroups
	FeatureAlerts
	FeatureReactionRoles
	FeatureAuditLog
)

// FeaturesAll is what a guild without a stored row gets.
const FeaturesAll = FeatureTags | FeatureGroups | FeatureAlerts | FeatureReactionRoles | FeatureAuditLog

var featureNames = []flagName[Features]{
	{FeatureTags, "tags"},
	{FeatureGroups, "groups"},
	{FeatureAlerts, "alerts"},
	{FeatureReactionRoles, "reactionroles"},
	{FeatureAuditLog, "auditlog"},
}

func DefaultGuild(guildID snowflake.ID) Guild {
	return Guild{GuildID: guildID, Features: FeaturesAll}
}

func (f Features) Has(feature Features) bool {
	return f&feature == feature
}

func (f Features) Set(feature Features, enabled bool) Features {
	if enabled {
		return f | feature
	}
	return f &^ feature
}

func (f Features) String() string {
	return flagString(f, featureNames)
}

// ParseFeature returns the single feature called name.
func ParseFeature(name string) (Features, bool) {
	return parseFlag(name, featureNames)
}

func FeatureNames() []string {
	return flagNames(featureNames)
}

// AuditActions selects which guild events are posted to the log channel.
type AuditActions int64

const (
	AuditMemberJoin AuditActions = 1 << iota
	AuditMemberLeave
	AuditMessageDelete
)

const AuditActionsAll = AuditMemberJoin | AuditMemberLeave | AuditMessageDelete

var auditActionNames = []flagName[AuditActions]{
	{AuditMemberJoin, "memberjoin"},
	{AuditMemberLeave, "memberleave"},
	{AuditMessageDelete, "messagedelete"},
}

func (a AuditActions) Has(action AuditActions) bool {
	return a&action == action
}

func (a AuditActions) Set(action AuditActions, enabled bool) AuditActions {
	if enabled {
		return a | action
	}
	return a &^ action
}

func (a AuditActions) String() string {
	return flagString(a, auditActionNames)
}

func ParseAuditAction(name string) (AuditActions, bool) {
	return parseFlag(name, auditActionNames)
}

func AuditActionNames() []string {
	return flagNames(auditActionNames)
}

type flagName[F ~int64] struct {
	flag F
	name string
}

func flagString[F ~int64](f F, names []flagName[F]) string {
	var set []string
	for _, n := range names {
		if f&n.flag == n.flag {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, ", ")
}

func parseFlag[F ~int64](name string, names []flagName[F]) (F, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range names {
		if n.name == name {
			return n.flag, true
		}
	}
	return 0, false
}

func flagNames[F ~int64](names []flagName[F]) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.name
	}
	return out
}
