package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dreambot/pkg/alerts"
	"dreambot/pkg/market"
	"dreambot/pkg/util"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

const (
	colorLow  = 0x2ECC71
	colorHigh = 0xE67E22
)

// DMClient is the part of the disgo REST client needed to send direct messages.
type DMClient interface {
	CreateDMChannel(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.DMChannel, error)
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
}

type ItemLookup interface {
	Item(id int) (market.Item, bool)
}

// Discord delivers alert notifications as direct messages to the subscription owner.
type Discord struct {
	rest  DMClient
	items ItemLookup
}

func NewDiscord(client DMClient, items ItemLookup) *Discord {
	return &Discord{rest: client, items: items}
}

func (d *Discord) Notify(ctx context.Context, n alerts.Notification) error {
	channel, err := d.rest.CreateDMChannel(n.Subscription.OwnerID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	messageCreate := discord.NewMessageCreate().WithEmbeds(d.Embed(n))
	if _, err := d.rest.CreateMessage(channel.ID(), messageCreate, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

func (d *Discord) Embed(n alerts.Notification) discord.Embed {
	sub := n.Subscription
	embedBuilder := discord.NewEmbedBuilder()
	embedBuilder.SetTitle("Price alert: " + n.ItemName)
	embedBuilder.SetDescription(describe(n))
	if n.LowCrossed {
		embedBuilder.SetColor(colorLow)
	} else {
		embedBuilder.SetColor(colorHigh)
	}
	if sub.TargetLow != nil {
		embedBuilder.AddField("Low", fmt.Sprintf("%s (target %s)", util.FormatPrice(n.Bounds.Low), util.FormatCoins(*sub.TargetLow)), true)
	}
	if sub.TargetHigh != nil {
		embedBuilder.AddField("High", fmt.Sprintf("%s (target %s)", util.FormatPrice(n.Bounds.High), util.FormatCoins(*sub.TargetHigh)), true)
	}
	if d.items != nil {
		if item, ok := d.items.Item(sub.ItemID); ok && item.Icon != "" {
			embedBuilder.SetThumbnail(util.IconURL(item.Icon))
		}
	}
	if n.Remaining == 0 {
		embedBuilder.SetFooterText("This was the last alert, the subscription has been removed.")
	} else {
		embedBuilder.SetFooterText(fmt.Sprintf("%d alert(s) left, next one no sooner than in %s.", n.Remaining, time.Duration(sub.Frequency)*time.Second))
	}
	embedBuilder.SetTimestamp(time.Unix(sub.LastAlert, 0))
	return embedBuilder.Build()
}

func describe(n alerts.Notification) string {
	var sides []string
	if n.LowCrossed {
		sides = append(sides, "dropped to its low target")
	}
	if n.HighCrossed {
		sides = append(sides, "rose to its high target")
	}
	return fmt.Sprintf("**%s** %s.", n.ItemName, strings.Join(sides, " and "))
}
