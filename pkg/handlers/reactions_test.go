package handlers

import (
	"strings"
	"testing"
	"time"

	"dreambot/pkg"
	"dreambot/pkg/db"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGuildID   snowflake.ID = 111111111111111111
	testChannelID snowflake.ID = 222222222222222222
	testMessageID snowflake.ID = 333333333333333333
)

func TestParseEmoji(t *testing.T) {
	tests := []struct {
		input    string
		key      string
		reaction string
		display  string
		wantErr  bool
	}{
		{input: "👍", key: "👍", reaction: "👍", display: "👍"},
		{input: " ❤️ ", key: "❤", reaction: "❤️", display: "❤️"},
		{input: "1️⃣", key: "1⃣", reaction: "1️⃣", display: "1️⃣"},
		{input: "<:pepe:123456789012345678>", key: "123456789012345678", reaction: "pepe:123456789012345678", display: "<:pepe:123456789012345678>"},
		{input: "<a:dance:123456789012345678>", key: "123456789012345678", reaction: "dance:123456789012345678", display: "<a:dance:123456789012345678>"},
		{input: "pepe:123456789012345678", key: "123456789012345678", reaction: "pepe:123456789012345678", display: "<:pepe:123456789012345678>"},
		{input: "", wantErr: true},
		{input: "thumbsup", wantErr: true},
		{input: "👍 👍", wantErr: true},
		{input: "<:pepe:12>", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseEmoji(tt.input)
			if tt.wantErr {
				_, ok := userMessage(err)
				assert.True(t, ok, "want a user facing error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, got.key)
			assert.Equal(t, tt.reaction, got.reaction)
			assert.Equal(t, tt.display, got.display)
		})
	}
}

func TestEmojiKeyMatchesCommandInput(t *testing.T) {
	heart, err := parseEmoji("❤")
	require.NoError(t, err)
	assert.Equal(t, heart.key, emojiKey(discord.PartialEmoji{Name: ptr("❤️")}))

	custom, err := parseEmoji("<:pepe:123456789012345678>")
	require.NoError(t, err)
	id := snowflake.ID(123456789012345678)
	assert.Equal(t, custom.key, emojiKey(discord.PartialEmoji{ID: &id, Name: ptr("renamed")}))

	assert.Empty(t, emojiKey(discord.PartialEmoji{}))
}

func TestParseMessageReference(t *testing.T) {
	link := "https://discord.com/channels/111111111111111111/444444444444444444/555555555555555555"
	channelID, messageID, err := parseMessageReference(link, testGuildID, testChannelID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(444444444444444444), channelID)
	assert.Equal(t, snowflake.ID(555555555555555555), messageID)

	_, messageID, err = parseMessageReference(strings.Replace(link, "discord.com", "ptb.discord.com", 1), testGuildID, testChannelID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(555555555555555555), messageID)

	channelID, messageID, err = parseMessageReference(" 333333333333333333 ", testGuildID, testChannelID)
	require.NoError(t, err)
	assert.Equal(t, testChannelID, channelID)
	assert.Equal(t, testMessageID, messageID)

	_, _, err = parseMessageReference(link, 999999999999999999, testChannelID)
	msg, ok := userMessage(err)
	require.True(t, ok)
	assert.Contains(t, msg, "doesn't belong to this server")

	for _, input := range []string{"", "hello", "0", "https://example.com/channels/1/2/3"} {
		_, _, err = parseMessageReference(input, testGuildID, testChannelID)
		_, ok = userMessage(err)
		assert.True(t, ok, input)
	}
}

func TestRoleAssignable(t *testing.T) {
	role := discord.Role{ID: 900, Position: 5}
	tests := []struct {
		name       string
		role       discord.Role
		invokerTop int
		botTop     int
		owner      bool
		wantErr    string
	}{
		{name: "below both", role: role, invokerTop: 6, botTop: 10},
		{name: "everyone", role: discord.Role{ID: testGuildID}, invokerTop: 6, botTop: 10, wantErr: "@everyone"},
		{name: "managed", role: discord.Role{ID: 900, Position: 1, Managed: true}, invokerTop: 6, botTop: 10, wantErr: "managed"},
		{name: "above bot", role: role, invokerTop: 20, botTop: 5, wantErr: "my highest role"},
		{name: "above invoker", role: role, invokerTop: 5, botTop: 10, wantErr: "your highest role"},
		{name: "owner ignores own top role", role: role, invokerTop: 0, botTop: 10, owner: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := roleAssignable(tt.role, testGuildID, tt.invokerTop, tt.botTop, tt.owner)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			msg, ok := userMessage(err)
			require.True(t, ok)
			assert.Contains(t, msg, tt.wantErr)
		})
	}
}

func TestTopRolePosition(t *testing.T) {
	assert.Equal(t, 0, topRolePosition(nil))
	assert.Equal(t, 7, topRolePosition([]discord.Role{{Position: 3}, {Position: 7}, {Position: 1}}))
}

func TestReactionRolesEmbed(t *testing.T) {
	embed := reactionRolesEmbed([]db.ReactionRole{
		{GuildID: testGuildID, ChannelID: testChannelID, MessageID: testMessageID, Emoji: "👍", RoleID: 1},
		{GuildID: testGuildID, ChannelID: testChannelID, MessageID: testMessageID, Emoji: "123456789012345678", RoleID: 2},
		{GuildID: testGuildID, ChannelID: testChannelID, MessageID: 444444444444444444, Emoji: "🎉", RoleID: 3},
	})
	assert.Equal(t, "Reaction roles", embed.Title)
	assert.Equal(t, strings.Join([]string{
		discord.MessageURL(testGuildID, testChannelID, testMessageID),
		"👍 → <@&1>",
		"<:emoji:123456789012345678> → <@&2>",
		"",
		discord.MessageURL(testGuildID, testChannelID, 444444444444444444),
		"🎉 → <@&3>",
	}, "\n"), embed.Description)
}

func TestMemberJoinEmbed(t *testing.T) {
	user := discord.User{ID: 175928847299117063, Username: "gnome"}
	at := time.Unix(1700000000, 0)
	embed := memberJoinEmbed(user, at)

	assert.Equal(t, "Member joined", embed.Title)
	assert.Equal(t, "<@175928847299117063> (gnome)", embed.Description)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "Account created", embed.Fields[0].Name)
	assert.Equal(t, "<t:1462015105:R>", embed.Fields[0].Value)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "User ID: 175928847299117063", embed.Footer.Text)
}

func TestMemberLeaveEmbed(t *testing.T) {
	user := discord.User{ID: 175928847299117063, Username: "gnome"}
	joined := time.Unix(1600000000, 0)

	embed := memberLeaveEmbed(user, &joined, time.Unix(1700000000, 0))
	assert.Equal(t, "Member left", embed.Title)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "<t:1600000000:R>", embed.Fields[0].Value)

	embed = memberLeaveEmbed(user, nil, time.Unix(1700000000, 0))
	assert.Empty(t, embed.Fields)
}

func TestMessageDeleteEmbed(t *testing.T) {
	at := time.Unix(1700000000, 0)
	embed := messageDeleteEmbed(testChannelID, testMessageID, &pkg.LoggedMessage{AuthorID: 42, ChannelID: testChannelID, Content: "buying gf"}, at)
	assert.Equal(t, "Message deleted", embed.Title)
	assert.Equal(t, "buying gf", embed.Description)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "<#222222222222222222>", embed.Fields[0].Value)
	assert.Equal(t, "<@42>", embed.Fields[1].Value)
	assert.Equal(t, "Message ID: 333333333333333333", embed.Footer.Text)

	embed = messageDeleteEmbed(testChannelID, testMessageID, nil, at)
	assert.Equal(t, "_The message was not cached._", embed.Description)
	assert.Len(t, embed.Fields, 1)

	embed = messageDeleteEmbed(testChannelID, testMessageID, &pkg.LoggedMessage{AuthorID: 42}, at)
	assert.Equal(t, "_The message had no text._", embed.Description)
}
