package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dreambot/pkg"
	"dreambot/pkg/config"
	"dreambot/pkg/util"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

const (
	listenerTimeout = 5 * time.Second

	memberJoinColor    = 0x2ECC71
	memberLeaveColor   = 0xE74C3C
	messageDeleteColor = 0xE67E22
)

// Listeners reacts to gateway events: reaction roles and the audit log.
func (h *Handler) Listeners() *events.ListenerAdapter {
	return &events.ListenerAdapter{
		OnGuildMessageReactionAdd: func(event *events.GuildMessageReactionAdd) {
			if event.Member.User.Bot {
				return
			}
			h.updateReactionRole(event.GenericGuildMessageReaction, true)
		},
		OnGuildMessageReactionRemove: func(event *events.GuildMessageReactionRemove) {
			h.updateReactionRole(event.GenericGuildMessageReaction, false)
		},
		OnGuildMessageCreate: func(event *events.GuildMessageCreate) {
			h.rememberMessage(event.GenericGuildMessage)
		},
		OnGuildMessageUpdate: func(event *events.GuildMessageUpdate) {
			h.rememberMessage(event.GenericGuildMessage)
		},
		OnGuildMessageDelete: func(event *events.GuildMessageDelete) {
			message, ok := h.Bot.Messages.Get(event.MessageID)
			h.Bot.Messages.Delete(event.MessageID)
			var logged *pkg.LoggedMessage
			if ok {
				logged = &message
			}
			h.audit(event.Client(), event.GuildID, config.AuditMessageDelete,
				messageDeleteEmbed(event.ChannelID, event.MessageID, logged, time.Now()))
		},
		OnGuildMemberJoin: func(event *events.GuildMemberJoin) {
			h.audit(event.Client(), event.GuildID, config.AuditMemberJoin, memberJoinEmbed(event.Member.User, time.Now()))
		},
		OnGuildMemberLeave: func(event *events.GuildMemberLeave) {
			h.audit(event.Client(), event.GuildID, config.AuditMemberLeave, memberLeaveEmbed(event.User, event.Member.JoinedAt, time.Now()))
		},
	}
}

func (h *Handler) updateReactionRole(event *events.GenericGuildMessageReaction, add bool) {
	if event.UserID == event.Client().ID() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()

	cfg, err := h.guildConfig(ctx, event.GuildID)
	if err != nil {
		slog.Error("dreambot: error while getting guild config", slog.Any("guild.id", event.GuildID), tint.Err(err))
		return
	}
	if !cfg.Features.Has(config.FeatureReactionRoles) {
		return
	}
	roles, err := h.messageReactionRoles(ctx, event.MessageID)
	if err != nil {
		slog.Error("dreambot: error while getting reaction roles", slog.Any("message.id", event.MessageID), tint.Err(err))
		return
	}
	roleID, ok := roles[emojiKey(event.Emoji)]
	if !ok {
		return
	}

	client := event.Client().Rest
	opts := []rest.RequestOpt{rest.WithCtx(ctx), rest.WithReason(fmt.Sprintf("Reaction role on message %s", event.MessageID))}
	if add {
		err = client.AddMemberRole(event.GuildID, event.UserID, roleID, opts...)
	} else {
		err = client.RemoveMemberRole(event.GuildID, event.UserID, roleID, opts...)
	}
	if err != nil {
		slog.Error("dreambot: error while updating a reaction role",
			slog.Any("guild.id", event.GuildID),
			slog.Any("user.id", event.UserID),
			slog.Any("role.id", roleID),
			slog.Bool("add", add),
			tint.Err(err))
	}
}

func (h *Handler) messageReactionRoles(ctx context.Context, messageID snowflake.ID) (map[string]snowflake.ID, error) {
	if roles, ok := h.Bot.ReactionRoles.Get(messageID); ok {
		return roles, nil
	}
	roles, err := h.Bot.DB.MessageReactionRoles(ctx, messageID)
	if err != nil {
		return nil, err
	}
	h.Bot.ReactionRoles.Put(messageID, roles, 0)
	return roles, nil
}

// rememberMessage keeps messages of guilds that log deletions.
func (h *Handler) rememberMessage(event *events.GenericGuildMessage) {
	if event.Message.Author.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()
	cfg, err := h.guildConfig(ctx, event.GuildID)
	if err != nil {
		slog.Error("dreambot: error while getting guild config", slog.Any("guild.id", event.GuildID), tint.Err(err))
		return
	}
	if !cfg.AuditEnabled(config.AuditMessageDelete) {
		return
	}
	h.Bot.Messages.Put(event.MessageID, pkg.LoggedMessage{
		AuthorID:  event.Message.Author.ID,
		ChannelID: event.ChannelID,
		Content:   event.Message.Content,
	}, 0)
}

func (h *Handler) audit(client *bot.Client, guildID snowflake.ID, action config.AuditActions, embed discord.Embed) {
	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()

	cfg, err := h.guildConfig(ctx, guildID)
	if err != nil {
		slog.Error("dreambot: error while getting guild config", slog.Any("guild.id", guildID), tint.Err(err))
		return
	}
	if !cfg.AuditEnabled(action) {
		return
	}
	_, err = client.Rest.CreateMessage(*cfg.LogChannelID, discord.NewMessageCreate().
		WithEmbeds(embed).
		WithAllowedMentions(&discord.AllowedMentions{}), rest.WithCtx(ctx))
	if err != nil {
		slog.Warn("dreambot: error while posting to the audit log",
			slog.Any("guild.id", guildID),
			slog.Any("channel.id", *cfg.LogChannelID),
			slog.String("action", action.String()),
			tint.Err(err))
	}
}

func memberJoinEmbed(user discord.User, at time.Time) discord.Embed {
	embedBuilder := discord.NewEmbedBuilder()
	embedBuilder.SetTitle("Member joined")
	embedBuilder.SetColor(memberJoinColor)
	embedBuilder.SetDescription(fmt.Sprintf("%s (%s)", util.UserMention(user.ID), user.Username))
	embedBuilder.AddField("Account created", util.RelativeTime(user.CreatedAt().Unix()), true)
	embedBuilder.SetThumbnail(user.EffectiveAvatarURL())
	embedBuilder.SetFooterText("User ID: " + user.ID.String())
	embedBuilder.SetTimestamp(at)
	return embedBuilder.Build()
}

func memberLeaveEmbed(user discord.User, joinedAt *time.Time, at time.Time) discord.Embed {
	embedBuilder := discord.NewEmbedBuilder()
	embedBuilder.SetTitle("Member left")
	embedBuilder.SetColor(memberLeaveColor)
	embedBuilder.SetDescription(fmt.Sprintf("%s (%s)", util.UserMention(user.ID), user.Username))
	if joinedAt != nil {
		embedBuilder.AddField("Joined", util.RelativeTime(joinedAt.Unix()), true)
	}
	embedBuilder.SetThumbnail(user.EffectiveAvatarURL())
	embedBuilder.SetFooterText("User ID: " + user.ID.String())
	embedBuilder.SetTimestamp(at)
	return embedBuilder.Build()
}

// messageDeleteEmbed describes a deleted message. message is nil when it was
// not remembered.
func messageDeleteEmbed(channelID snowflake.ID, messageID snowflake.ID, message *pkg.LoggedMessage, at time.Time) discord.Embed {
	embedBuilder := discord.NewEmbedBuilder()
	embedBuilder.SetTitle("Message deleted")
	embedBuilder.SetColor(messageDeleteColor)
	switch {
	case message == nil:
		embedBuilder.SetDescription("_The message was not cached._")
	case message.Content == "":
		embedBuilder.SetDescription("_The message had no text._")
	default:
		embedBuilder.SetDescription(util.Truncate(message.Content, 4000))
	}
	embedBuilder.AddField("Channel", "<#"+channelID.String()+">", true)
	if message != nil {
		embedBuilder.AddField("Author", util.UserMention(message.AuthorID), true)
	}
	embedBuilder.SetFooterText("Message ID: " + messageID.String())
	embedBuilder.SetTimestamp(at)
	return embedBuilder.Build()
}
