package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dreambot/pkg/config"
	"dreambot/pkg/db"
	"dreambot/pkg/util"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/lmittmann/tint"
)

const (
	groupColor         = 0x64D1FF
	embedFieldMaxChars = 1024
)

func (h *Handler) HandleGroupCreate(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.featureGate(ctx, event, config.FeatureGroups, true); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	name, err := normalizeGroupName(data.String("name"))
	if err != nil {
		msg, _ := userMessage(err)
		return event.CreateMessage(messageCreate.WithContent(msg))
	}
	group := db.Group{
		GuildID:          *event.GuildID(),
		Name:             name,
		OwnerID:          event.User().ID,
		Created:          time.Now().Unix(),
		EphemeralUpdates: true,
	}
	if v, ok := data.OptInt("max"); ok {
		if v < 1 {
			return event.CreateMessage(messageCreate.WithContent("`max` must be at least 1."))
		}
		group.MaxMembers = &v
	}
	if v, ok := data.OptBool("silent"); ok {
		group.EphemeralUpdates = v
	}

	err = h.Bot.DB.CreateGroup(ctx, group)
	if errors.Is(err, db.ErrConflict) {
		return event.CreateMessage(messageCreate.WithContent("A group with that name already exists."))
	}
	if err != nil {
		slog.Error("dreambot: error while creating a group", slog.Any("guild.id", group.GuildID), slog.String("group.name", name), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("Failed to create a new group."))
	}
	return event.CreateMessage(messageCreate.
		WithContentf("Successfully created group **%s**.", name).
		WithEphemeral(group.EphemeralUpdates))
}

func (h *Handler) HandleGroupDelete(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	return h.withGroup(data, event, func(ctx context.Context, group db.Group, messageCreate discord.MessageCreate) error {
		if !canManage(group.OwnerID, event.User().ID, memberPermissions(event)) {
			return event.CreateMessage(messageCreate.WithContent("You do not own that group or do not have permission to manage groups."))
		}
		if err := h.Bot.DB.DeleteGroup(ctx, group.GuildID, group.Name); err != nil && !errors.Is(err, db.ErrNotFound) {
			slog.Error("dreambot: error while deleting a group", slog.Any("guild.id", group.GuildID), slog.String("group.name", group.Name), tint.Err(err))
			return event.CreateMessage(messageCreate.WithContent("Failed to delete the group."))
		}
		return event.CreateMessage(messageCreate.
			WithContentf("Successfully deleted group **%s**.", group.Name).
			WithEphemeral(group.EphemeralUpdates))
	})
}

func (h *Handler) HandleGroupJoin(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	return h.withGroup(data, event, func(ctx context.Context, group db.Group, messageCreate discord.MessageCreate) error {
		err := h.Bot.DB.JoinGroup(ctx, db.GroupMember{
			GuildID:   group.GuildID,
			GroupName: group.Name,
			MemberID:  event.User().ID,
			Joined:    time.Now().Unix(),
		})
		switch {
		case errors.Is(err, db.ErrConflict):
			return event.CreateMessage(messageCreate.WithContent("You're already a member of this group!"))
		case errors.Is(err, db.ErrGroupFull):
			return event.CreateMessage(messageCreate.WithContent("That group is full!"))
		case errors.Is(err, db.ErrNotFound):
			return event.CreateMessage(messageCreate.WithContent("That group does not exist!"))
		case err != nil:
			slog.Error("dreambot: error while joining a group", slog.Any("guild.id", group.GuildID), slog.String("group.name", group.Name), tint.Err(err))
			return event.CreateMessage(messageCreate.WithContent("Failed to join the group."))
		}
		return event.CreateMessage(messageCreate.
			WithContentf("%s joined **%s**.", util.UserMention(event.User().ID), group.Name).
			WithAllowedMentions(&discord.AllowedMentions{}).
			WithEphemeral(group.EphemeralUpdates))
	})
}

func (h *Handler) HandleGroupLeave(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	return h.withGroup(data, event, func(ctx context.Context, group db.Group, messageCreate discord.MessageCreate) error {
		err := h.Bot.DB.LeaveGroup(ctx, group.GuildID, group.Name, event.User().ID)
		if errors.Is(err, db.ErrNotFound) {
			return event.CreateMessage(messageCreate.WithContent("You are not a member of that group!"))
		}
		if err != nil {
			slog.Error("dreambot: error while leaving a group", slog.Any("guild.id", group.GuildID), slog.String("group.name", group.Name), tint.Err(err))
			return event.CreateMessage(messageCreate.WithContent("Failed to leave the group."))
		}
		return event.CreateMessage(messageCreate.
			WithContentf("%s left **%s**.", util.UserMention(event.User().ID), group.Name).
			WithAllowedMentions(&discord.AllowedMentions{}).
			WithEphemeral(group.EphemeralUpdates))
	})
}

func (h *Handler) HandleGroupView(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	return h.withGroup(data, event, func(ctx context.Context, group db.Group, messageCreate discord.MessageCreate) error {
		members, err := h.Bot.DB.GroupMembers(ctx, group.GuildID, group.Name)
		if err != nil {
			slog.Error("dreambot: error while fetching group members", slog.Any("guild.id", group.GuildID), slog.String("group.name", group.Name), tint.Err(err))
			return event.CreateMessage(messageCreate.WithContent("Failed to fetch group members."))
		}
		return event.CreateMessage(discord.NewMessageCreate().
			WithEmbeds(groupEmbed(group, members)).
			WithAllowedMentions(&discord.AllowedMentions{}))
	})
}

func (h *Handler) HandleGroupAutocomplete(event *handler.AutocompleteEvent) error {
	guildID := event.GuildID()
	if guildID == nil {
		return event.AutocompleteResult(nil)
	}
	ctx, cancel := interactionContext()
	defer cancel()
	names, err := h.Bot.DB.GroupNames(ctx, *guildID, normalizePrefix(event.Data.String("name"), false), autocompleteLimit)
	if err != nil {
		return err
	}
	return event.AutocompleteResult(stringChoices(names))
}

// withGroup runs fn for the group named by the "name" option, answering the
// interaction itself when the group does not exist.
func (h *Handler) withGroup(data discord.SlashCommandInteractionData, event *handler.CommandEvent, fn func(ctx context.Context, group db.Group, messageCreate discord.MessageCreate) error) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.featureGate(ctx, event, config.FeatureGroups, true); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	name, err := normalizeGroupName(data.String("name"))
	if err != nil {
		msg, _ := userMessage(err)
		return event.CreateMessage(messageCreate.WithContent(msg))
	}
	group, err := h.Bot.DB.Group(ctx, *event.GuildID(), name)
	if errors.Is(err, db.ErrNotFound) {
		return event.CreateMessage(messageCreate.WithContent("That group does not exist!"))
	}
	if err != nil {
		return err
	}
	return fn(ctx, group, messageCreate)
}

func groupEmbed(group db.Group, members []db.GroupMember) discord.Embed {
	maxMembers := "None"
	if group.MaxMembers != nil {
		maxMembers = fmt.Sprintf("%d", *group.MaxMembers)
	}
	membersField, positionsField, joinedField := memberColumns(members)

	embedBuilder := discord.NewEmbedBuilder()
	embedBuilder.SetTitle(group.Name + " Members")
	embedBuilder.SetColor(groupColor)
	embedBuilder.AddField("Owner", util.UserMention(group.OwnerID), true)
	embedBuilder.AddField("Created", util.RelativeTime(group.Created), true)
	embedBuilder.AddField("Current Members", fmt.Sprintf("%d", len(members)), true)
	embedBuilder.AddField("Max Members", maxMembers, true)
	embedBuilder.AddField("Members", membersField, true)
	embedBuilder.AddField("Position", positionsField, true)
	embedBuilder.AddField("Joined", joinedField, true)
	return embedBuilder.Build()
}

// memberColumns lists members in joining order, stopping before any column
// would exceed the embed field limit.
func memberColumns(members []db.GroupMember) (string, string, string) {
	if len(members) == 0 {
		return "None", "-", "-"
	}
	var mentions, positions, joined []string
	var mentionsLen, joinedLen int
	for i, m := range members {
		mention := util.UserMention(m.MemberID)
		ts := util.RelativeTime(m.Joined)
		if mentionsLen+len(mention)+1 > embedFieldMaxChars || joinedLen+len(ts)+1 > embedFieldMaxChars {
			break
		}
		mentionsLen += len(mention) + 1
		joinedLen += len(ts) + 1
		mentions = append(mentions, mention)
		positions = append(positions, fmt.Sprintf("%d", i+1))
		joined = append(joined, ts)
	}
	return strings.Join(mentions, "\n"), strings.Join(positions, "\n"), strings.Join(joined, "\n")
}
