package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"dreambot/pkg/alerts"
	"dreambot/pkg/config"
	"dreambot/pkg/db"
	"dreambot/pkg/market"
	"dreambot/pkg/util"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/lmittmann/tint"
)

const alertColor = 0xF1C40F

func (h *Handler) HandleAlertAdd(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.featureGate(ctx, event, config.FeatureAlerts, false); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	item, ok := h.resolveItem(data.String("item"))
	if !ok {
		return event.CreateMessage(messageCreate.WithContent("Unknown item, pick one from the suggestions."))
	}
	in := alertInput{
		ItemID:           item.ID,
		FrequencyMinutes: defaultFrequencyMinutes,
		Maximum:          defaultMaximumAlerts,
	}
	if v, ok := data.OptInt("low"); ok {
		low := int64(v)
		in.Low = &low
	}
	if v, ok := data.OptInt("high"); ok {
		high := int64(v)
		in.High = &high
	}
	if v, ok := data.OptInt("frequency"); ok {
		in.FrequencyMinutes = v
	}
	if v, ok := data.OptInt("maximum"); ok {
		in.Maximum = v
	}
	frequency, err := in.validate()
	if msg, ok := userMessage(err); ok {
		return event.CreateMessage(messageCreate.WithContent(msg))
	}

	ownerID := event.User().ID
	sub := alerts.Subscription{
		OwnerID:       ownerID,
		ItemID:        item.ID,
		TargetLow:     in.Low,
		TargetHigh:    in.High,
		Frequency:     frequency,
		MaximumAlerts: in.Maximum,
	}
	err = h.Bot.Alerts.AddAlert(ctx, sub, maxAlertsPerOwner)
	if errors.Is(err, db.ErrTooManyAlerts) {
		return event.CreateMessage(messageCreate.WithContentf("You can have at most **%d** alerts.", maxAlertsPerOwner))
	}
	if err != nil {
		slog.Error("dreambot: error while saving an alert", slog.Any("owner.id", ownerID), slog.Int("item.id", item.ID), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("There was an error while saving the alert."))
	}
	return event.CreateMessage(messageCreate.WithContentf("Watching **%s**: %s. I will DM you.", item.Name, describeSubscription(sub)))
}

func (h *Handler) HandleAlertList(event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.featureGate(ctx, event, config.FeatureAlerts, false); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	subs, err := h.Bot.Alerts.AlertsForOwner(ctx, event.User().ID)
	if err != nil {
		slog.Error("dreambot: error while listing alerts", slog.Any("owner.id", event.User().ID), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("There was an error while listing your alerts."))
	}
	if len(subs) == 0 {
		return event.CreateMessage(messageCreate.WithContent("You have no alerts. Create one with `/alert add`."))
	}

	lines := make([]string, len(subs))
	for i, sub := range subs {
		lines[i] = fmt.Sprintf("**%s**: %s", h.Bot.Catalog.Name(sub.ItemID), describeSubscription(sub))
	}
	embedBuilder := discord.NewEmbedBuilder()
	embedBuilder.SetTitle("Your price alerts")
	embedBuilder.SetColor(alertColor)
	embedBuilder.SetDescription(util.Truncate(strings.Join(lines, "\n"), 4096))
	return event.CreateMessage(messageCreate.WithEmbeds(embedBuilder.Build()))
}

func (h *Handler) HandleAlertRemove(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	ctx, cancel := interactionContext()
	defer cancel()
	if ok, err := h.featureGate(ctx, event, config.FeatureAlerts, false); !ok {
		return err
	}

	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	item, ok := h.resolveItem(data.String("item"))
	if !ok {
		return event.CreateMessage(messageCreate.WithContent("Unknown item, pick one from the suggestions."))
	}
	err := h.Bot.Alerts.DeleteAlert(ctx, event.User().ID, item.ID)
	if errors.Is(err, db.ErrNotFound) {
		return event.CreateMessage(messageCreate.WithContentf("You have no alert for **%s**.", item.Name))
	}
	if err != nil {
		return err
	}
	return event.CreateMessage(messageCreate.WithContentf("Removed your alert for **%s**.", item.Name))
}

func (h *Handler) HandleItemAutocomplete(event *handler.AutocompleteEvent) error {
	items := h.Bot.Catalog.Search(event.Data.String("item"), autocompleteLimit)
	choices := make([]discord.AutocompleteChoice, len(items))
	for i, item := range items {
		choices[i] = discord.AutocompleteChoiceString{
			Name:  util.Truncate(item.Name, 100),
			Value: strconv.Itoa(item.ID),
		}
	}
	return event.AutocompleteResult(choices)
}

// resolveItem accepts an item id, as sent by autocomplete, or an exact name.
func (h *Handler) resolveItem(input string) (market.Item, bool) {
	input = strings.TrimSpace(input)
	if id, err := strconv.Atoi(input); err == nil {
		return h.Bot.Catalog.Item(id)
	}
	for _, item := range h.Bot.Catalog.Search(input, market.MaxSearchResults) {
		if strings.EqualFold(item.Name, input) {
			return item, true
		}
	}
	return market.Item{}, false
}

func describeSubscription(sub alerts.Subscription) string {
	var targets []string
	if sub.TargetLow != nil {
		targets = append(targets, "low at or below "+util.FormatCoins(*sub.TargetLow))
	}
	if sub.TargetHigh != nil {
		targets = append(targets, "high at or above "+util.FormatCoins(*sub.TargetHigh))
	}
	return fmt.Sprintf("%s, at most every %s, %d alert(s) left",
		strings.Join(targets, " or "), time.Duration(sub.Frequency)*time.Second, sub.MaximumAlerts)
}
