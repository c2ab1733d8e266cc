package nordpool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	volumesPathSuffix = "/AggregateVolumes"
)

// Options parameterise the Nord Pool Data Portal client.
type Options struct {
	TokenURL string
	// APIURL is the batched day-ahead prices endpoint.
	APIURL string
	// VolumesAPIURL is the aggregated buy-volumes endpoint. When empty it is
	// derived from APIURL by appending the AggregateVolumes path segment.
	VolumesAPIURL string
	Market        string
	Currency      string
	BasicAuth     string
	Username      string
	Password      string
	Scope         string
	Timeout       time.Duration
	UserAgent     string
}

// Client fetches day-ahead auction data from the Nord Pool Data Portal API.
// One token request is made per invocation; price and volume calls are
// batched across all areas.
type Client struct {
	opts   Options
	logger zerolog.Logger
	client *http.Client
}

// NewClient constructs a Nord Pool client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if opts.Market == "" {
		opts.Market = "DayAhead"
	}

	return &Client{
		opts:   opts,
		logger: logger.With().Str("component", "nordpool_client").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Token performs the OAuth2 password-grant exchange and returns a bearer token.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.opts.TokenURL == "" {
		return "", errors.New("nordpool token url not configured")
	}
	if c.opts.Username == "" || c.opts.Password == "" {
		return "", errors.New("nordpool credentials not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("scope", c.opts.Scope)
	form.Set("username", c.opts.Username)
	form.Set("password", c.opts.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Basic "+c.opts.BasicAuth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setUserAgent(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", parseHTTPError("token", resp.StatusCode, payload)
	}

	var token tokenResponse
	if err := json.Unmarshal(payload, &token); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}

	return token.AccessToken, nil
}

// DayAheadPrices fetches the batched per-area price series for one delivery
// date (YYYY-MM-DD).
func (c *Client) DayAheadPrices(ctx context.Context, token string, areas []string, date string) ([]AreaPrices, error) {
	payload, err := c.get(ctx, c.opts.APIURL, token, areas, date)
	if err != nil {
		return nil, err
	}

	var data []AreaPrices
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode prices response: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("nordpool prices response empty")
	}
	return data, nil
}

// DayAheadVolumes fetches the batched per-area aggregated buy volumes for one
// delivery date. Used only by the VWAP index variant.
func (c *Client) DayAheadVolumes(ctx context.Context, token string, areas []string, date string) ([]AreaVolumes, error) {
	payload, err := c.get(ctx, c.volumesURL(), token, areas, date)
	if err != nil {
		return nil, err
	}

	var data []AreaVolumes
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode volumes response: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("nordpool volumes response empty")
	}
	return data, nil
}

func (c *Client) volumesURL() string {
	if c.opts.VolumesAPIURL != "" {
		return c.opts.VolumesAPIURL
	}
	if c.opts.APIURL == "" {
		return ""
	}
	return strings.TrimRight(c.opts.APIURL, "/") + volumesPathSuffix
}

func (c *Client) get(ctx context.Context, endpoint, token string, areas []string, date string) ([]byte, error) {
	if endpoint == "" {
		return nil, errors.New("nordpool api url not configured")
	}
	if len(areas) == 0 {
		return nil, errors.New("no delivery areas requested")
	}

	query := url.Values{}
	query.Set("market", c.opts.Market)
	query.Set("areas", strings.Join(areas, ","))
	query.Set("currency", c.opts.Currency)
	query.Set("date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	c.setUserAgent(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError("data", resp.StatusCode, payload)
	}

	return payload, nil
}

func (c *Client) setUserAgent(req *http.Request) {
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "powerindex/1.0")
	}
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

func parseHTTPError(kind string, status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.ErrorDescription != "" {
			return fmt.Errorf("nordpool %s error (%d): %s", kind, status, apiErr.ErrorDescription)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("nordpool %s error (%d): %s", kind, status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("nordpool %s error (%d): %s", kind, status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("nordpool %s error (%d): %s", kind, status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("nordpool %s error (%d)", kind, status)
}
