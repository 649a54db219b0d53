package handlers

import (
	"log/slog"

	"dreambot/pkg"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/lmittmann/tint"
)

func NewHandler(b *pkg.Bot) *Handler {
	mux := handler.New()
	mux.Error(func(e *handler.InteractionEvent, err error) {
		name := "unknown"
		switch i := e.Interaction.(type) {
		case discord.ApplicationCommandInteraction:
			name = i.Data.CommandName()
		case discord.AutocompleteInteraction:
			name = i.Data.CommandName
			slog.Error("dreambot: error while handling autocomplete", slog.String("command.name", name), tint.Err(err))
			return
		}
		slog.Error("dreambot: error while handling a command", slog.String("command.name", name), tint.Err(err))
		_ = e.Respond(discord.InteractionResponseTypeCreateMessage, discord.NewMessageCreate().
			WithContent("There was an error while handling the command.").
			WithEphemeral(true))
	})
	handlers := &Handler{
		Bot:    b,
		Router: mux,
	}
	handlers.Route("/alert", func(r handler.Router) {
		r.SlashCommand("/add", handlers.HandleAlertAdd)
		r.Command("/list", handlers.HandleAlertList)
		r.SlashCommand("/remove", handlers.HandleAlertRemove)
		r.Autocomplete("/add", handlers.HandleItemAutocomplete)
		r.Autocomplete("/remove", handlers.HandleItemAutocomplete)
	})
	handlers.Group(func(r handler.Router) {
		r.SlashCommand("/price", handlers.HandlePrice)
		r.Autocomplete("/price", handlers.HandleItemAutocomplete)
	})
	handlers.Route("/tag", func(r handler.Router) {
		r.SlashCommand("/create", handlers.HandleTagCreate)
		r.SlashCommand("/get", handlers.HandleTagGet)
		r.Command("/random", handlers.HandleTagRandom)
		r.SlashCommand("/delete", handlers.HandleTagDelete)
		r.Autocomplete("/get", handlers.HandleTagAutocomplete)
		r.Autocomplete("/delete", handlers.HandleTagAutocomplete)
	})
	handlers.Route("/group", func(r handler.Router) {
		r.SlashCommand("/create", handlers.HandleGroupCreate)
		r.SlashCommand("/delete", handlers.HandleGroupDelete)
		r.SlashCommand("/join", handlers.HandleGroupJoin)
		r.SlashCommand("/leave", handlers.HandleGroupLeave)
		r.SlashCommand("/view", handlers.HandleGroupView)
		for _, path := range []string{"/delete", "/join", "/leave", "/view"} {
			r.Autocomplete(path, handlers.HandleGroupAutocomplete)
		}
	})
	handlers.Route("/reactionrole", func(r handler.Router) {
		r.SlashCommand("/add", handlers.HandleReactionRoleAdd)
		r.SlashCommand("/remove", handlers.HandleReactionRoleRemove)
		r.SlashCommand("/clear", handlers.HandleReactionRoleClear)
		r.SlashCommand("/check", handlers.HandleReactionRoleCheck)
	})
	handlers.Route("/configure", func(r handler.Router) {
		r.Command("/features", handlers.HandleFeaturesCurrent)
		r.SlashCommand("/feature", handlers.HandleFeatureSet)
		r.SlashCommand("/logchannel", handlers.HandleLogChannel)
		r.SlashCommand("/logaction", handlers.HandleLogAction)
		r.Autocomplete("/feature", handlers.HandleFeatureAutocomplete)
		r.Autocomplete("/logaction", handlers.HandleLogActionAutocomplete)
	})
	return handlers
}

type Handler struct {
	Bot *pkg.Bot
	handler.Router
}
