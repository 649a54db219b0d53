package handlers

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

const (
	minFrequencyMinutes     = 1
	defaultFrequencyMinutes = 60
	minMaximumAlerts        = 1
	maxMaximumAlerts        = 100
	defaultMaximumAlerts    = 5
	maxAlertsPerOwner       = 25

	maxTagNameLength    = 100
	maxTagContentLength = 2000
	maxGroupNameLength  = 100
	autocompleteLimit   = 25
)

var reservedTagNames = []string{
	"tag", "create", "add", "get", "fetch", "alias", "random", "delete", "del", "remove", "r", "g", "a",
}

// userError carries a message that is safe to show to the invoking user.
type userError struct{ msg string }

func (e *userError) Error() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return &userError{msg: fmt.Sprintf(format, args...)}
}

func userMessage(err error) (string, bool) {
	var ue *userError
	if errors.As(err, &ue) {
		return ue.msg, true
	}
	return "", false
}

type alertInput struct {
	ItemID           int
	Low              *int64
	High             *int64
	FrequencyMinutes int
	Maximum          int
}

// validate returns the frequency in seconds.
func (in alertInput) validate() (int64, error) {
	if in.Low == nil && in.High == nil {
		return 0, userErrorf("Set at least one of `low` or `high`.")
	}
	if in.Low != nil && *in.Low < 1 {
		return 0, userErrorf("`low` must be at least 1 gp.")
	}
	if in.High != nil && *in.High < 1 {
		return 0, userErrorf("`high` must be at least 1 gp.")
	}
	if in.FrequencyMinutes < minFrequencyMinutes {
		return 0, userErrorf("`frequency` must be at least %d minute(s).", minFrequencyMinutes)
	}
	if in.Maximum < minMaximumAlerts || in.Maximum > maxMaximumAlerts {
		return 0, userErrorf("`maximum` must be between %d and %d.", minMaximumAlerts, maxMaximumAlerts)
	}
	return int64(in.FrequencyMinutes) * 60, nil
}

func normalizeTagName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case name == "":
		return "", userErrorf("Tag names cannot be empty.")
	case utf8.RuneCountInString(name) > maxTagNameLength:
		return "", userErrorf("Tag names can be at most %d characters long.", maxTagNameLength)
	case slices.Contains(reservedTagNames, name):
		return "", userErrorf("`%s` is a reserved word and cannot be used as a tag name.", name)
	}
	return name, nil
}

func validateTagContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return "", userErrorf("Tag content cannot be empty.")
	case utf8.RuneCountInString(content) > maxTagContentLength:
		return "", userErrorf("Tag content can be at most %d characters long.", maxTagContentLength)
	}
	return content, nil
}

func normalizeGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", userErrorf("Group names cannot be empty.")
	case utf8.RuneCountInString(name) > maxGroupNameLength:
		return "", userErrorf("Group names can be at most %d characters long.", maxGroupNameLength)
	}
	return name, nil
}

// canManage reports whether userID may delete something owned by ownerID.
func canManage(ownerID snowflake.ID, userID snowflake.ID, permissions discord.Permissions) bool {
	return ownerID == userID || permissions.Has(discord.PermissionManageMessages)
}
