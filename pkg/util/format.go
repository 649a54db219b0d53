package util

import (
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

const wikiImagesURL = "https://oldschool.runescape.wiki/images/"

// FormatCoins renders an amount with thousands separators, e.g. 1,234,567 gp.
func FormatCoins(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	sign := ""
	if amount < 0 {
		sign, s = "-", s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + " gp"
}

func FormatPrice(amount *int64) string {
	if amount == nil {
		return "n/a"
	}
	return FormatCoins(*amount)
}

func IconURL(icon string) string {
	if icon == "" {
		return ""
	}
	return wikiImagesURL + strings.ReplaceAll(icon, " ", "_")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// RelativeTime renders a unix timestamp the way Discord shows "5 minutes ago".
func RelativeTime(unix int64) string {
	return "<t:" + strconv.FormatInt(unix, 10) + ":R>"
}

func UserMention(id snowflake.ID) string {
	return "<@" + id.String() + ">"
}
