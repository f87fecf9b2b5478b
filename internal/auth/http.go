package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"quotex-trader/internal/models"
)

// TradeRecord is one settled trade from the cabinet history.
type TradeRecord struct {
	ID            string  `json:"id"`
	Asset         string  `json:"asset"`
	Amount        float64 `json:"amount"`
	ProfitAmount  float64 `json:"profitAmount"`
	PercentProfit float64 `json:"percentProfit"`
	Command       int     `json:"command"`
	OpenTime      string  `json:"openTime"`
	CloseTime     string  `json:"closeTime"`
	OpenPrice     float64 `json:"openPrice"`
	ClosePrice    float64 `json:"closePrice"`
}

// Profile fetches the account profile from the cabinet digest endpoint.
func (c *Client) Profile(ctx context.Context) (models.Profile, error) {
	var out struct {
		Data models.Profile `json:"data"`
	}
	url := c.baseURL() + "/api/v1/cabinets/digest"
	if err := c.getJSON(ctx, url, &out); err != nil {
		return models.Profile{}, fmt.Errorf("fetching profile: %w", err)
	}
	return out.Data, nil
}

// TradeHistory fetches one page of settled trades for the given account
// mode. Pages start at 1.
func (c *Client) TradeHistory(ctx context.Context, mode models.AccountMode, page int) ([]TradeRecord, error) {
	account := "live"
	if mode == models.ModeDemo {
		account = "demo"
	}
	if page < 1 {
		page = 1
	}
	var out struct {
		Data []TradeRecord `json:"data"`
	}
	url := fmt.Sprintf("%s/api/v1/cabinets/trades/history/type/%s?page=%d", c.baseURL(), account, page)
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, fmt.Errorf("fetching trade history: %w", err)
	}
	return out.Data, nil
}

// SetTimeOffset pushes the client's timezone offset to the profile. The
// platform interprets candle history timestamps relative to it.
func (c *Client) SetTimeOffset(ctx context.Context, offset int) (models.Profile, error) {
	payload, _ := json.Marshal(map[string]int{"time_offset": offset})
	url := c.baseURL() + "/api/v1/user/profile/time_offset"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return models.Profile{}, err
	}
	c.apiHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Data models.Profile `json:"data"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return models.Profile{}, fmt.Errorf("setting time offset: %w", err)
	}
	return out.Data, nil
}

// Logout invalidates the platform session and clears the persisted one.
func (c *Client) Logout(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s/logout", c.baseURL(), c.lang)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.apiHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	resp.Body.Close()
	return c.store.Clear()
}

// apiHeaders attaches the headers every authenticated cabinet request
// carries. Cookies come from the persisted session so API calls work
// without a fresh login in this process.
func (c *Client) apiHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", fmt.Sprintf("%s/%s/trade", c.baseURL(), c.lang))
	if sess, err := c.store.Load(); err == nil && sess.Cookies != "" {
		req.Header.Set("Cookie", sess.Cookies)
	}
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.apiHeaders(req)
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}
