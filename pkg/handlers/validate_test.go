package handlers

import (
	"errors"
	"strings"
	"testing"

	"dreambot/pkg/alerts"
	"dreambot/pkg/config"
	"dreambot/pkg/db"
	"dreambot/pkg/market"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestAlertInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      alertInput
		want    int64
		wantErr string
	}{
		{
			name: "low only",
			in:   alertInput{Low: ptr[int64](100), FrequencyMinutes: 60, Maximum: 3},
			want: 3600,
		},
		{
			name: "both thresholds",
			in:   alertInput{Low: ptr[int64](100), High: ptr[int64](500), FrequencyMinutes: 1, Maximum: 100},
			want: 60,
		},
		{
			name:    "no threshold",
			in:      alertInput{FrequencyMinutes: 60, Maximum: 3},
			wantErr: "at least one",
		},
		{
			name:    "zero low",
			in:      alertInput{Low: ptr[int64](0), FrequencyMinutes: 60, Maximum: 3},
			wantErr: "`low`",
		},
		{
			name:    "negative high",
			in:      alertInput{High: ptr[int64](-5), FrequencyMinutes: 60, Maximum: 3},
			wantErr: "`high`",
		},
		{
			name:    "frequency below a minute",
			in:      alertInput{Low: ptr[int64](100), FrequencyMinutes: 0, Maximum: 3},
			wantErr: "`frequency`",
		},
		{
			name:    "maximum too small",
			in:      alertInput{Low: ptr[int64](100), FrequencyMinutes: 60, Maximum: 0},
			wantErr: "`maximum`",
		},
		{
			name:    "maximum too large",
			in:      alertInput{Low: ptr[int64](100), FrequencyMinutes: 60, Maximum: 101},
			wantErr: "`maximum`",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.validate()
			if tt.wantErr != "" {
				msg, ok := userMessage(err)
				require.True(t, ok)
				assert.Contains(t, msg, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTagName(t *testing.T) {
	name, err := normalizeTagName("  Hello World ")
	require.NoError(t, err)
	assert.Equal(t, "hello world", name)

	for _, bad := range []string{"", "   ", "random", "DELETE", strings.Repeat("a", 101)} {
		_, err := normalizeTagName(bad)
		_, ok := userMessage(err)
		assert.True(t, ok, bad)
	}

	name, err = normalizeTagName(strings.Repeat("ż", 100))
	require.NoError(t, err)
	assert.Len(t, []rune(name), 100)
}

func TestValidateTagContent(t *testing.T) {
	content, err := validateTagContent("  some content\n")
	require.NoError(t, err)
	assert.Equal(t, "some content", content)

	_, err = validateTagContent(" ")
	assert.Error(t, err)
	_, err = validateTagContent(strings.Repeat("x", 2001))
	assert.Error(t, err)
	_, err = validateTagContent(strings.Repeat("x", 2000))
	assert.NoError(t, err)
}

func TestNormalizeGroupName(t *testing.T) {
	name, err := normalizeGroupName(" Raids ")
	require.NoError(t, err)
	assert.Equal(t, "Raids", name)

	_, err = normalizeGroupName("")
	assert.Error(t, err)
	_, err = normalizeGroupName(strings.Repeat("g", 101))
	assert.Error(t, err)
}

func TestUserMessageIgnoresOtherErrors(t *testing.T) {
	_, ok := userMessage(errors.New("boom"))
	assert.False(t, ok)
	_, ok = userMessage(nil)
	assert.False(t, ok)
}

func TestCanManage(t *testing.T) {
	assert.True(t, canManage(1, 1, discord.PermissionsNone))
	assert.False(t, canManage(1, 2, discord.PermissionsNone))
	assert.True(t, canManage(1, 2, discord.PermissionManageMessages))
	assert.False(t, canManage(1, 2, discord.PermissionSendMessages))
}

func TestMemberColumns(t *testing.T) {
	members, positions, joined := memberColumns(nil)
	assert.Equal(t, "None", members)
	assert.Equal(t, "-", positions)
	assert.Equal(t, "-", joined)

	members, positions, joined = memberColumns([]db.GroupMember{
		{MemberID: 10, Joined: 100},
		{MemberID: 20, Joined: 200},
	})
	assert.Equal(t, "<@10>\n<@20>", members)
	assert.Equal(t, "1\n2", positions)
	assert.Equal(t, "<t:100:R>\n<t:200:R>", joined)

	many := make([]db.GroupMember, 200)
	for i := range many {
		many[i] = db.GroupMember{MemberID: 100000000000000000 + 1, Joined: 1700000000}
	}
	members, positions, joined = memberColumns(many)
	assert.LessOrEqual(t, len(members), embedFieldMaxChars)
	assert.LessOrEqual(t, len(joined), embedFieldMaxChars)
	assert.Equal(t, strings.Count(members, "\n"), strings.Count(positions, "\n"))
}

func TestDescribeFeatures(t *testing.T) {
	cfg := config.DefaultGuild(1)
	cfg.Features = cfg.Features.Set(config.FeatureGroups, false)
	got := describeFeatures(cfg)
	assert.Contains(t, got, "**tags**: enabled")
	assert.Contains(t, got, "**groups**: disabled")
	assert.Contains(t, got, "**alerts**: enabled")
	assert.Contains(t, got, "**reactionroles**: enabled")
	assert.Contains(t, got, "Audit log: no channel set")

	channelID := snowflake.ID(77)
	cfg.LogChannelID = &channelID
	cfg.LogActions = config.AuditMemberJoin | config.AuditMessageDelete
	assert.Contains(t, describeFeatures(cfg), "Audit log: <#77>, logging memberjoin, messagedelete")
}

func TestDescribeSubscription(t *testing.T) {
	got := describeSubscription(alerts.Subscription{
		TargetLow: ptr[int64](1000), TargetHigh: ptr[int64](2500), Frequency: 3600, MaximumAlerts: 3,
	})
	assert.Equal(t, "low at or below 1,000 gp or high at or above 2,500 gp, at most every 1h0m0s, 3 alert(s) left", got)
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "abc", normalizePrefix(" ABC ", true))
	assert.Equal(t, "ABC", normalizePrefix("ABC", false))
	assert.Equal(t, `50\%\_off`, normalizePrefix("50%_off", true))
}

func TestPriceEmbed(t *testing.T) {
	embed := priceEmbed(
		market.Item{ID: 563, Name: "Law rune", Examine: "Used for teleport spells.", Icon: "Law rune.png", Limit: ptr(18000)},
		market.PriceBounds{High: ptr[int64](160), HighTime: ptr[int64](1700000000), Low: ptr[int64](155)},
	)
	assert.Equal(t, "Law rune", embed.Title)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "160 gp\n<t:1700000000:R>", embed.Fields[0].Value)
	assert.Equal(t, "155 gp", embed.Fields[1].Value)
	assert.Equal(t, "18000", embed.Fields[2].Value)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Item #563", embed.Footer.Text)
}
