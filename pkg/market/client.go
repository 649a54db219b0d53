package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/disgoorg/json"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

var (
	ErrNoPriceData = errors.New("market: no price data")
	ErrBackingOff  = errors.New("market: backing off")
	// ErrRateLimited means the local limiter refused to wait; nothing was sent.
	ErrRateLimited = errors.New("market: rate limited")
)

const (
	DefaultBaseURL = "https://prices.runescape.wiki/api/v1/osrs"

	latestPath  = "/latest?id=%d"
	mappingPath = "/mapping"
	mappingKey  = "mapping"
)

type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("market: unexpected status %d from %s", e.StatusCode, e.URL)
}

// Temporary reports whether the request is worth repeating on a later cycle.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	backoffs   *Backoffs
}

func New(httpClient *http.Client, baseURL string, limiter *rate.Limiter, backoffs *Backoffs) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if backoffs == nil {
		backoffs = NewBackoffs(DefaultMaxBackoff)
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		limiter:    limiter,
		backoffs:   backoffs,
	}
}

// Latest fetches the most recent instant-buy and instant-sell prices of an item.
func (c *Client) Latest(ctx context.Context, itemID int) (PriceBounds, error) {
	key := "latest:" + strconv.Itoa(itemID)
	if remaining := c.backoffs.Remaining(key); remaining > 0 {
		return PriceBounds{}, fmt.Errorf("%w: item %d for %s", ErrBackingOff, itemID, remaining)
	}

	var rs latestResponse
	if err := c.get(ctx, fmt.Sprintf(latestPath, itemID), &rs); err != nil {
		c.failure(ctx, key, err)
		return PriceBounds{}, err
	}
	bounds, ok := rs.Data[strconv.Itoa(itemID)]
	if !ok || (bounds.Low == nil && bounds.High == nil) {
		c.backoffs.Failure(key)
		return PriceBounds{}, fmt.Errorf("%w: item %d", ErrNoPriceData, itemID)
	}
	c.backoffs.Success(key)
	return bounds, nil
}

// Mapping fetches metadata for every tradeable item.
func (c *Client) Mapping(ctx context.Context) ([]Item, error) {
	if remaining := c.backoffs.Remaining(mappingKey); remaining > 0 {
		return nil, fmt.Errorf("%w: mapping for %s", ErrBackingOff, remaining)
	}
	var items []Item
	if err := c.get(ctx, mappingPath, &items); err != nil {
		c.failure(ctx, mappingKey, err)
		return nil, err
	}
	c.backoffs.Success(mappingKey)
	return items, nil
}

// failure records an upstream failure. A caller giving up early or the local
// limiter refusing says nothing about the API, and backoffs are shared by
// every caller.
func (c *Client) failure(ctx context.Context, key string, err error) {
	if ctx.Err() != nil || errors.Is(err, ErrRateLimited) {
		return
	}
	c.backoffs.Failure(key)
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	u := c.baseURL + path
	rq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	rs, err := c.httpClient.Do(rq)
	if err != nil {
		slog.Debug("dreambot: error while running a prices request", slog.String("request.url", u), tint.Err(err))
		return err
	}
	defer rs.Body.Close()
	if rs.StatusCode != http.StatusOK {
		slog.Debug("dreambot: received an unexpected code from the prices api", slog.Int("status.code", rs.StatusCode), slog.String("request.url", u))
		return &StatusError{StatusCode: rs.StatusCode, URL: u}
	}
	if err := json.NewDecoder(rs.Body).Decode(v); err != nil {
		slog.Debug("dreambot: error while decoding a prices response", slog.String("request.url", u), tint.Err(err))
		return fmt.Errorf("%w: %w", ErrNoPriceData, err)
	}
	return nil
}

type latestResponse struct {
	Data map[string]PriceBounds `json:"data"`
}

// PriceBounds holds the latest trades of an item. High is the instant-buy
// price and Low the instant-sell price; either may be absent.
type PriceBounds struct {
	High     *int64 `json:"high"`
	HighTime *int64 `json:"highTime"`
	Low      *int64 `json:"low"`
	LowTime  *int64 `json:"lowTime"`
}

type Item struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Examine  string `json:"examine"`
	Icon     string `json:"icon"`
	Members  bool   `json:"members"`
	Value    *int64 `json:"value"`
	Limit    *int   `json:"limit"`
	LowAlch  *int64 `json:"lowalch"`
	HighAlch *int64 `json:"highalch"`
}
