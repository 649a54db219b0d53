package handlers

import (
	"context"
	"log/slog"
	"time"

	"dreambot/pkg/config"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

// Discord drops interactions that are not answered within 3 seconds.
const interactionTimeout = 2500 * time.Millisecond

func interactionContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), interactionTimeout)
}

func (h *Handler) guildConfig(ctx context.Context, guildID snowflake.ID) (config.Guild, error) {
	if cfg, ok := h.Bot.Guilds.Get(guildID); ok {
		return cfg, nil
	}
	cfg, err := h.Bot.DB.GetGuildConfig(ctx, guildID)
	if err != nil {
		return cfg, err
	}
	h.Bot.Guilds.Put(guildID, cfg, 0)
	return cfg, nil
}

// featureGate answers the interaction itself and returns false when the
// command cannot run here. Commands outside guilds only pass when guildOnly is
// false.
func (h *Handler) featureGate(ctx context.Context, event *handler.CommandEvent, feature config.Features, guildOnly bool) (bool, error) {
	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	guildID := event.GuildID()
	if guildID == nil {
		if guildOnly {
			return false, event.CreateMessage(messageCreate.WithContent("This command can only be used in a server."))
		}
		return true, nil
	}
	cfg, err := h.guildConfig(ctx, *guildID)
	if err != nil {
		slog.Error("dreambot: error while getting guild config", slog.Any("guild.id", *guildID), tint.Err(err))
		return false, event.CreateMessage(messageCreate.WithContent("There was an error while getting the guild configuration."))
	}
	if !cfg.Features.Has(feature) {
		return false, event.CreateMessage(messageCreate.WithContentf("The **%s** feature is disabled in this server.", feature))
	}
	return true, nil
}

func memberPermissions(event *handler.CommandEvent) discord.Permissions {
	if member := event.Member(); member != nil {
		return member.Permissions
	}
	return discord.PermissionsNone
}
