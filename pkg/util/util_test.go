package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCoins(t *testing.T) {
	tests := map[int64]string{
		0:          "0 gp",
		999:        "999 gp",
		1000:       "1,000 gp",
		1234567:    "1,234,567 gp",
		-45000:     "-45,000 gp",
		2147483647: "2,147,483,647 gp",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatCoins(in))
	}
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "n/a", FormatPrice(nil))
	v := int64(1500)
	assert.Equal(t, "1,500 gp", FormatPrice(&v))
}

func TestIconURL(t *testing.T) {
	assert.Equal(t, "https://oldschool.runescape.wiki/images/Law_rune.png", IconURL("Law rune.png"))
	assert.Empty(t, IconURL(""))
}

func TestMentions(t *testing.T) {
	assert.Equal(t, "<t:1700000000:R>", RelativeTime(1700000000))
	assert.Equal(t, "<@123>", UserMention(123))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "żó", Truncate("żółw", 2))
}

func TestMarketClientSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	rs, err := NewMarketClient(time.Second, "test-agent").Get(srv.URL)
	require.NoError(t, err)
	rs.Body.Close()
	assert.Equal(t, "test-agent", got)

	rs, err = NewMarketClient(time.Second, "").Get(srv.URL)
	require.NoError(t, err)
	rs.Body.Close()
	assert.Equal(t, DefaultUserAgent, got)
}
