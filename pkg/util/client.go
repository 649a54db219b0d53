package util

import (
	"net/http"
	"time"
)

const DefaultUserAgent = "dreambot - price alerts for Discord"

func NewMarketClient(timeout time.Duration, userAgent string) *http.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTripper{tripper: http.DefaultTransport, userAgent: userAgent},
	}
}

type userAgentTripper struct {
	tripper   http.RoundTripper
	userAgent string
}

func (t *userAgentTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.tripper.RoundTrip(req)
}
