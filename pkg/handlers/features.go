package handlers

import (
	"fmt"
	"log/slog"
	"strings"

	"dreambot/pkg/config"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

func (h *Handler) HandleFeaturesCurrent(event *handler.CommandEvent) error {
	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	guildID := event.GuildID()
	if guildID == nil {
		return event.CreateMessage(messageCreate.WithContent("This command can only be used in a server."))
	}
	ctx, cancel := interactionContext()
	defer cancel()
	cfg, err := h.guildConfig(ctx, *guildID)
	if err != nil {
		slog.Error("dreambot: error while getting guild config", slog.Any("guild.id", *guildID), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("There was an error while getting the guild configuration."))
	}
	return event.CreateMessage(messageCreate.WithContent(describeFeatures(cfg)))
}

func (h *Handler) HandleFeatureSet(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	guildID := event.GuildID()
	if guildID == nil {
		return event.CreateMessage(messageCreate.WithContent("This command can only be used in a server."))
	}
	if !memberPermissions(event).Has(discord.PermissionManageGuild) {
		return event.CreateMessage(messageCreate.WithContent("You need the Manage Server permission to change features."))
	}
	feature, ok := config.ParseFeature(data.String("name"))
	if !ok {
		return event.CreateMessage(messageCreate.WithContentf("Unknown feature, choose one of: %s.", strings.Join(config.FeatureNames(), ", ")))
	}
	enabled := data.Bool("enabled")

	ctx, cancel := interactionContext()
	defer cancel()
	cfg, err := h.guildConfig(ctx, *guildID)
	if err != nil {
		return err
	}
	features := cfg.Features.Set(feature, enabled)
	if err := h.Bot.DB.UpdateGuildFeatures(ctx, *guildID, features); err != nil {
		slog.Error("dreambot: error while updating guild features", slog.Any("features", features), slog.Any("guild.id", *guildID), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("There was an error while updating the features."))
	}
	h.Bot.Guilds.Delete(*guildID)

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return event.CreateMessage(messageCreate.WithContentf("The **%s** feature has been %s.", feature, state))
}

func (h *Handler) HandleLogChannel(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	guildID := event.GuildID()
	if guildID == nil {
		return event.CreateMessage(messageCreate.WithContent("This command can only be used in a server."))
	}
	if !memberPermissions(event).Has(discord.PermissionManageGuild) {
		return event.CreateMessage(messageCreate.WithContent("You need the Manage Server permission to change the audit log."))
	}

	ctx, cancel := interactionContext()
	defer cancel()
	cfg, err := h.guildConfig(ctx, *guildID)
	if err != nil {
		return err
	}
	var channelID *snowflake.ID
	actions := cfg.LogActions
	if channel, ok := data.OptChannel("channel"); ok {
		if channel.Type != discord.ChannelTypeGuildText && channel.Type != discord.ChannelTypeGuildNews {
			return event.CreateMessage(messageCreate.WithContent("The audit log needs a text channel."))
		}
		channelID = &channel.ID
		// a first log channel logs everything
		if cfg.LogChannelID == nil && actions == 0 {
			actions = config.AuditActionsAll
		}
	}
	if err := h.Bot.DB.UpdateGuildLogging(ctx, *guildID, channelID, actions); err != nil {
		slog.Error("dreambot: error while updating the audit log", slog.Any("guild.id", *guildID), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("There was an error while updating the audit log."))
	}
	h.Bot.Guilds.Delete(*guildID)

	if channelID == nil {
		return event.CreateMessage(messageCreate.WithContent("The audit log has been turned off."))
	}
	return event.CreateMessage(messageCreate.WithContentf("Audit log entries (%s) will be posted in <#%s>.", actions, *channelID))
}

func (h *Handler) HandleLogAction(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	guildID := event.GuildID()
	if guildID == nil {
		return event.CreateMessage(messageCreate.WithContent("This command can only be used in a server."))
	}
	if !memberPermissions(event).Has(discord.PermissionManageGuild) {
		return event.CreateMessage(messageCreate.WithContent("You need the Manage Server permission to change the audit log."))
	}
	action, ok := config.ParseAuditAction(data.String("action"))
	if !ok {
		return event.CreateMessage(messageCreate.WithContentf("Unknown action, choose one of: %s.", strings.Join(config.AuditActionNames(), ", ")))
	}
	enabled := data.Bool("enabled")

	ctx, cancel := interactionContext()
	defer cancel()
	cfg, err := h.guildConfig(ctx, *guildID)
	if err != nil {
		return err
	}
	if cfg.LogChannelID == nil {
		return event.CreateMessage(messageCreate.WithContent("Set a log channel first with `/configure logchannel`."))
	}
	actions := cfg.LogActions.Set(action, enabled)
	if err := h.Bot.DB.UpdateGuildLogging(ctx, *guildID, cfg.LogChannelID, actions); err != nil {
		slog.Error("dreambot: error while updating the audit log", slog.Any("guild.id", *guildID), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("There was an error while updating the audit log."))
	}
	h.Bot.Guilds.Delete(*guildID)
	return event.CreateMessage(messageCreate.WithContentf("Logging **%s**.", actions))
}

func (h *Handler) HandleLogActionAutocomplete(event *handler.AutocompleteEvent) error {
	return event.AutocompleteResult(stringChoices(config.AuditActionNames()))
}

func (h *Handler) HandleFeatureAutocomplete(event *handler.AutocompleteEvent) error {
	return event.AutocompleteResult(stringChoices(config.FeatureNames()))
}

func describeFeatures(cfg config.Guild) string {
	var b strings.Builder
	b.WriteString("Features in this server:")
	for _, name := range config.FeatureNames() {
		feature, _ := config.ParseFeature(name)
		state := "disabled"
		if cfg.Features.Has(feature) {
			state = "enabled"
		}
		fmt.Fprintf(&b, "\n- **%s**: %s", name, state)
	}
	if cfg.LogChannelID != nil {
		fmt.Fprintf(&b, "\nAudit log: <#%s>, logging %s", *cfg.LogChannelID, cfg.LogActions)
	} else {
		b.WriteString("\nAudit log: no channel set")
	}
	return b.String()
}
