package handlers

import (
	"errors"
	"log/slog"
	"time"

	"dreambot/pkg/config"
	"dreambot/pkg/db"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/lmittmann/tint"
)

func (h *Handler) HandleTagCreate(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.featureGate(ctx, event, config.FeatureTags, true); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	name, err := normalizeTagName(data.String("name"))
	if err != nil {
		msg, _ := userMessage(err)
		return event.CreateMessage(messageCreate.WithContent(msg))
	}
	content, err := validateTagContent(data.String("content"))
	if err != nil {
		msg, _ := userMessage(err)
		return event.CreateMessage(messageCreate.WithContent(msg))
	}

	guildID := *event.GuildID()
	err = h.Bot.DB.CreateTag(ctx, db.Tag{
		GuildID: guildID,
		Name:    name,
		Content: content,
		OwnerID: event.User().ID,
		Created: time.Now().Unix(),
	})
	if errors.Is(err, db.ErrConflict) {
		return event.CreateMessage(messageCreate.WithContentf("Tag `%s` already exists.", name))
	}
	if err != nil {
		slog.Error("dreambot: error while creating a tag", slog.Any("guild.id", guildID), slog.String("tag.name", name), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("Failed to create tag."))
	}
	return event.CreateMessage(messageCreate.WithContentf("Successfully created tag `%s`.", name))
}

func (h *Handler) HandleTagGet(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.featureGate(ctx, event, config.FeatureTags, true); !ok {
		return err
	}

	name, err := normalizeTagName(data.String("name"))
	if err != nil {
		msg, _ := userMessage(err)
		return event.CreateMessage(discord.NewMessageCreate().WithContent(msg).WithEphemeral(true))
	}
	tag, err := h.Bot.DB.UseTag(ctx, *event.GuildID(), name)
	if errors.Is(err, db.ErrNotFound) {
		return event.CreateMessage(discord.NewMessageCreate().WithContentf("Tag `%s` does not exist.", name).WithEphemeral(true))
	}
	if err != nil {
		return err
	}
	return event.CreateMessage(discord.NewMessageCreate().
		WithContent(tag.Content).
		WithAllowedMentions(&discord.AllowedMentions{}))
}

// HandleTagRandom does not count towards the tag's uses.
func (h *Handler) HandleTagRandom(event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.featureGate(ctx, event, config.FeatureTags, true); !ok {
		return err
	}

	tag, err := h.Bot.DB.RandomTag(ctx, *event.GuildID())
	if errors.Is(err, db.ErrNotFound) {
		return event.CreateMessage(discord.NewMessageCreate().WithContent("No tags exist for this server.").WithEphemeral(true))
	}
	if err != nil {
		return err
	}
	return event.CreateMessage(discord.NewMessageCreate().
		WithContentf("**%s**\n%s", tag.Name, tag.Content).
		WithAllowedMentions(&discord.AllowedMentions{}))
}

func (h *Handler) HandleTagDelete(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.featureGate(ctx, event, config.FeatureTags, true); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	name, err := normalizeTagName(data.String("name"))
	if err != nil {
		msg, _ := userMessage(err)
		return event.CreateMessage(messageCreate.WithContent(msg))
	}
	guildID := *event.GuildID()
	tag, err := h.Bot.DB.Tag(ctx, guildID, name)
	if errors.Is(err, db.ErrNotFound) {
		return event.CreateMessage(messageCreate.WithContentf("Tag `%s` does not exist.", name))
	}
	if err != nil {
		return err
	}
	if !canManage(tag.OwnerID, event.User().ID, memberPermissions(event)) {
		return event.CreateMessage(messageCreate.WithContent("Only the tag owner or moderators can delete this tag."))
	}
	if err := h.Bot.DB.DeleteTag(ctx, guildID, name); err != nil && !errors.Is(err, db.ErrNotFound) {
		slog.Error("dreambot: error while deleting a tag", slog.Any("guild.id", guildID), slog.String("tag.name", name), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContentf("Failed to delete tag `%s`.", name))
	}
	return event.CreateMessage(messageCreate.WithContentf("Deleted tag `%s`.", name))
}

func (h *Handler) HandleTagAutocomplete(event *handler.AutocompleteEvent) error {
	guildID := event.GuildID()
	if guildID == nil {
		return event.AutocompleteResult(nil)
	}
	ctx, cancel := interactionContext()
	defer cancel()
	names, err := h.Bot.DB.TagNames(ctx, *guildID, normalizePrefix(event.Data.String("name"), true), autocompleteLimit)
	if err != nil {
		return err
	}
	return event.AutocompleteResult(stringChoices(names))
}
