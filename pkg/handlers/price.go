package handlers

import (
	"context"
	"errors"
	"fmt"

	"dreambot/pkg/market"
	"dreambot/pkg/util"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
)

const priceColor = 0x001BFF

func (h *Handler) HandlePrice(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	item, ok := h.resolveItem(data.String("item"))
	if !ok {
		return event.CreateMessage(messageCreate.WithContent("Unknown item, pick one from the suggestions."))
	}
	bounds, err := h.Bot.Market.Latest(ctx, item.ID)
	switch {
	case errors.Is(err, market.ErrNoPriceData):
		return event.CreateMessage(messageCreate.WithContentf("There is no recent price data for **%s**.", item.Name))
	case errors.Is(err, market.ErrBackingOff), errors.Is(err, context.DeadlineExceeded):
		return event.CreateMessage(messageCreate.WithContent("The prices API is not responding right now, try again later."))
	case err != nil:
		return err
	}
	return event.CreateMessage(messageCreate.WithEmbeds(priceEmbed(item, bounds)))
}

func priceEmbed(item market.Item, bounds market.PriceBounds) discord.Embed {
	embedBuilder := discord.NewEmbedBuilder()
	embedBuilder.SetTitle(item.Name)
	embedBuilder.SetColor(priceColor)
	if item.Examine != "" {
		embedBuilder.SetDescription(item.Examine)
	}
	embedBuilder.AddField("Instant buy", priceWithTime(bounds.High, bounds.HighTime), true)
	embedBuilder.AddField("Instant sell", priceWithTime(bounds.Low, bounds.LowTime), true)
	if item.Limit != nil {
		embedBuilder.AddField("Buy limit", fmt.Sprintf("%d", *item.Limit), true)
	}
	if icon := util.IconURL(item.Icon); icon != "" {
		embedBuilder.SetThumbnail(icon)
	}
	embedBuilder.SetFooterText(fmt.Sprintf("Item #%d", item.ID))
	return embedBuilder.Build()
}

func priceWithTime(price *int64, at *int64) string {
	s := util.FormatPrice(price)
	if price != nil && at != nil {
		s += "\n" + util.RelativeTime(*at)
	}
	return s
}
