package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"unicode"

	"dreambot/pkg/config"
	"dreambot/pkg/db"
	"dreambot/pkg/util"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

const reactionRoleColor = 0x9B59B6

var (
	messageLinkRegex = regexp.MustCompile(`^https://(?:(?:ptb|canary)\.)?discord(?:app)?\.com/channels/(\d+)/(\d+)/(\d+)/?$`)
	customEmojiRegex = regexp.MustCompile(`^<(a?):(\w{2,32}):(\d{17,20})>$`)
	namedEmojiRegex  = regexp.MustCompile(`^(\w{2,32}):(\d{17,20})$`)
)

// reactionEmoji is an emoji given as a command option.
type reactionEmoji struct {
	// key is what bindings are stored and looked up under
	key string
	// reaction is the form the reactions endpoints expect
	reaction string
	display  string
}

func parseEmoji(input string) (reactionEmoji, error) {
	input = strings.TrimSpace(input)
	if m := customEmojiRegex.FindStringSubmatch(input); m != nil {
		return reactionEmoji{key: m[3], reaction: m[2] + ":" + m[3], display: input}, nil
	}
	if m := namedEmojiRegex.FindStringSubmatch(input); m != nil {
		return reactionEmoji{key: m[2], reaction: input, display: "<:" + input + ">"}, nil
	}
	if input == "" || strings.ContainsFunc(input, unicode.IsSpace) || !strings.ContainsFunc(input, func(r rune) bool { return r > unicode.MaxASCII }) {
		return reactionEmoji{}, userErrorf("That is not an emoji. Use a standard emoji or one from this server.")
	}
	return reactionEmoji{key: unicodeEmojiKey(input), reaction: input, display: input}, nil
}

// emojiKey matches parseEmoji's key for an emoji seen on a reaction event.
func emojiKey(emoji discord.PartialEmoji) string {
	if emoji.ID != nil {
		return emoji.ID.String()
	}
	if emoji.Name == nil {
		return ""
	}
	return unicodeEmojiKey(*emoji.Name)
}

// Clients disagree on sending the emoji presentation selector.
func unicodeEmojiKey(emoji string) string {
	return strings.ReplaceAll(emoji, "\ufe0f", "")
}

func displayEmojiKey(key string) string {
	if _, err := snowflake.Parse(key); err == nil {
		return "<:emoji:" + key + ">"
	}
	return key
}

// parseMessageReference accepts a message link or a bare message id, which
// refers to a message in the current channel.
func parseMessageReference(input string, guildID snowflake.ID, channelID snowflake.ID) (snowflake.ID, snowflake.ID, error) {
	input = strings.TrimSpace(input)
	if m := messageLinkRegex.FindStringSubmatch(input); m != nil {
		linkGuildID, _ := snowflake.Parse(m[1])
		if linkGuildID != guildID {
			return 0, 0, userErrorf("That message doesn't belong to this server.")
		}
		linkChannelID, _ := snowflake.Parse(m[2])
		messageID, _ := snowflake.Parse(m[3])
		return linkChannelID, messageID, nil
	}
	messageID, err := snowflake.Parse(input)
	if err != nil || messageID == 0 {
		return 0, 0, userErrorf("Give a message link or the id of a message in this channel.")
	}
	return channelID, messageID, nil
}

func topRolePosition(roles []discord.Role) int {
	top := 0
	for _, role := range roles {
		top = max(top, role.Position)
	}
	return top
}

// roleAssignable checks the role hierarchy: the bot can only grant roles below
// its own highest role, and members other than the owner can only hand out
// roles below theirs.
func roleAssignable(role discord.Role, guildID snowflake.ID, invokerTop int, botTop int, owner bool) error {
	switch {
	case role.ID == guildID:
		return userErrorf("The @everyone role can't be a reaction role.")
	case role.Managed:
		return userErrorf("%s is managed by an integration and can't be assigned.", role.Mention())
	case role.Position >= botTop:
		return userErrorf("I can only assign roles below my highest role.")
	case !owner && role.Position >= invokerTop:
		return userErrorf("You can only set up roles below your highest role.")
	}
	return nil
}

func (h *Handler) checkAssignable(event *handler.CommandEvent, guildID snowflake.ID, role discord.Role) error {
	caches := event.Client().Caches
	guild, ok := caches.Guild(guildID)
	owner := ok && guild.OwnerID == event.User().ID

	invokerTop := 0
	if member := event.Member(); member != nil {
		m := member.Member
		m.GuildID = guildID
		invokerTop = topRolePosition(caches.MemberRoles(m))
	}
	// Discord rejects the role change later if the bot's member is not cached
	botTop := math.MaxInt
	if self, ok := caches.SelfMember(guildID); ok {
		botTop = topRolePosition(caches.MemberRoles(self))
	}
	return roleAssignable(role, guildID, invokerTop, botTop, owner)
}

// reactionRoleGate combines the feature gate with the Manage Roles check every
// reaction role command needs.
func (h *Handler) reactionRoleGate(ctx context.Context, event *handler.CommandEvent) (bool, error) {
	if ok, err := h.featureGate(ctx, event, config.FeatureReactionRoles, true); !ok {
		return false, err
	}
	if !memberPermissions(event).Has(discord.PermissionManageRoles) {
		return false, event.CreateMessage(discord.NewMessageCreate().WithEphemeral(true).
			WithContent("You need the Manage Roles permission to manage reaction roles."))
	}
	return true, nil
}

func (h *Handler) HandleReactionRoleAdd(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.reactionRoleGate(ctx, event); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	guildID := *event.GuildID()
	channelID, messageID, err := parseMessageReference(data.String("message"), guildID, event.Channel().ID())
	if msg, ok := userMessage(err); ok {
		return event.CreateMessage(messageCreate.WithContent(msg))
	}
	emoji, err := parseEmoji(data.String("emoji"))
	if msg, ok := userMessage(err); ok {
		return event.CreateMessage(messageCreate.WithContent(msg))
	}
	role := data.Role("role")
	if err := h.checkAssignable(event, guildID, role); err != nil {
		msg, _ := userMessage(err)
		return event.CreateMessage(messageCreate.WithContent(msg))
	}

	client := event.Client().Rest
	if _, err := client.GetMessage(channelID, messageID, rest.WithCtx(ctx)); err != nil {
		slog.Debug("dreambot: error while fetching a reaction role message", slog.Any("channel.id", channelID), slog.Any("message.id", messageID), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("I couldn't find that message. Make sure I can read its channel."))
	}
	err = h.Bot.DB.AddReactionRole(ctx, db.ReactionRole{
		GuildID:   guildID,
		ChannelID: channelID,
		MessageID: messageID,
		Emoji:     emoji.key,
		RoleID:    role.ID,
	})
	if err != nil {
		slog.Error("dreambot: error while adding a reaction role", slog.Any("guild.id", guildID), slog.Any("message.id", messageID), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("There was an error while saving the reaction role."))
	}
	h.Bot.ReactionRoles.Delete(messageID)

	reply := fmt.Sprintf("Members reacting with %s on %s will get %s.", emoji.display, discord.MessageURL(guildID, channelID, messageID), role.Mention())
	if err := client.AddReaction(channelID, messageID, emoji.reaction, rest.WithCtx(ctx)); err != nil {
		slog.Warn("dreambot: error while adding a reaction role reaction", slog.Any("message.id", messageID), slog.String("emoji", emoji.reaction), tint.Err(err))
		reply += " I couldn't add the reaction myself, please add it for me."
	}
	return event.CreateMessage(messageCreate.WithContent(reply))
}

func (h *Handler) HandleReactionRoleRemove(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.reactionRoleGate(ctx, event); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	guildID := *event.GuildID()
	channelID, messageID, err := parseMessageReference(data.String("message"), guildID, event.Channel().ID())
	if msg, ok := userMessage(err); ok {
		return event.CreateMessage(messageCreate.WithContent(msg))
	}
	emoji, err := parseEmoji(data.String("emoji"))
	if msg, ok := userMessage(err); ok {
		return event.CreateMessage(messageCreate.WithContent(msg))
	}

	err = h.Bot.DB.RemoveReactionRole(ctx, guildID, messageID, emoji.key)
	if errors.Is(err, db.ErrNotFound) {
		return event.CreateMessage(messageCreate.WithContentf("There is no reaction role for %s on that message.", emoji.display))
	}
	if err != nil {
		return err
	}
	h.Bot.ReactionRoles.Delete(messageID)

	if err := event.Client().Rest.RemoveOwnReaction(channelID, messageID, emoji.reaction, rest.WithCtx(ctx)); err != nil {
		slog.Debug("dreambot: error while removing a reaction role reaction", slog.Any("message.id", messageID), tint.Err(err))
	}
	return event.CreateMessage(messageCreate.WithContentf("Removed the reaction role for %s.", emoji.display))
}

func (h *Handler) HandleReactionRoleClear(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.reactionRoleGate(ctx, event); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	guildID := *event.GuildID()
	_, messageID, err := parseMessageReference(data.String("message"), guildID, event.Channel().ID())
	if msg, ok := userMessage(err); ok {
		return event.CreateMessage(messageCreate.WithContent(msg))
	}
	n, err := h.Bot.DB.ClearReactionRoles(ctx, guildID, messageID)
	if err != nil {
		return err
	}
	h.Bot.ReactionRoles.Delete(messageID)
	if n == 0 {
		return event.CreateMessage(messageCreate.WithContent("That message has no reaction roles."))
	}
	return event.CreateMessage(messageCreate.WithContentf("Removed **%d** reaction role(s) from that message.", n))
}

func (h *Handler) HandleReactionRoleCheck(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.reactionRoleGate(ctx, event); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	guildID := *event.GuildID()
	var channelID *snowflake.ID
	if channel, ok := data.OptChannel("channel"); ok {
		channelID = &channel.ID
	}
	rrs, err := h.Bot.DB.ReactionRoles(ctx, guildID, channelID)
	if err != nil {
		slog.Error("dreambot: error while listing reaction roles", slog.Any("guild.id", guildID), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("There was an error while listing the reaction roles."))
	}
	if len(rrs) == 0 {
		return event.CreateMessage(messageCreate.WithContent("No reaction roles are set up here."))
	}
	return event.CreateMessage(messageCreate.WithEmbeds(reactionRolesEmbed(rrs)))
}

// reactionRolesEmbed lists bindings grouped by message, in the order given.
func reactionRolesEmbed(rrs []db.ReactionRole) discord.Embed {
	var b strings.Builder
	var last snowflake.ID
	for _, rr := range rrs {
		if rr.MessageID != last {
			if last != 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s\n", discord.MessageURL(rr.GuildID, rr.ChannelID, rr.MessageID))
			last = rr.MessageID
		}
		fmt.Fprintf(&b, "%s → <@&%s>\n", displayEmojiKey(rr.Emoji), rr.RoleID)
	}
	embedBuilder := discord.NewEmbedBuilder()
	embedBuilder.SetTitle("Reaction roles")
	embedBuilder.SetColor(reactionRoleColor)
	embedBuilder.SetDescription(util.Truncate(strings.TrimSpace(b.String()), 4096))
	return embedBuilder.Build()
}
