package handlers

import (
	"strings"

	"dreambot/pkg/util"

	"github.com/disgoorg/disgo/discord"
)

func stringChoices(values []string) []discord.AutocompleteChoice {
	choices := make([]discord.AutocompleteChoice, len(values))
	for i, v := range values {
		v = util.Truncate(v, 100)
		choices[i] = discord.AutocompleteChoiceString{Name: v, Value: v}
	}
	return choices
}

// normalizePrefix prepares typed input for a LIKE prefix query.
func normalizePrefix(input string, lower bool) string {
	input = strings.TrimSpace(input)
	if lower {
		input = strings.ToLower(input)
	}
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(input)
}
