// Package models provides domain models for the trading client.
package models

import (
	"strings"
	"time"
)

// AccountMode selects which balance a session operates on.
type AccountMode int

const (
	// ModeLive trades with real funds (isDemo = 0 on the wire).
	ModeLive AccountMode = 0
	// ModeDemo trades with practice funds (isDemo = 1 on the wire).
	ModeDemo AccountMode = 1
)

// String returns the human-readable account mode.
func (m AccountMode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "demo"
}

// Direction is the side of a binary option order.
type Direction string

const (
	DirectionCall Direction = "call"
	DirectionPut  Direction = "put"
)

// Valid reports whether the direction is one of the two accepted values.
func (d Direction) Valid() bool {
	return d == DirectionCall || d == DirectionPut
}

// Session holds the authenticated browser state persisted between runs.
type Session struct {
	Cookies   string `json:"cookies"`
	Token     string `json:"token"`
	UserAgent string `json:"user_agent"`
}

// Valid reports whether the session carries a usable token.
func (s Session) Valid() bool {
	return s.Token != ""
}

// Candle represents OHLC data for one fixed-width time window.
type Candle struct {
	Time  int64   `json:"time"` // window open, unix seconds
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
	Ticks int     `json:"ticks"`
}

// Tick is a single realtime price sample.
type Tick struct {
	Symbol string
	Time   float64
	Price  float64
}

// Sentiment is the aggregate buy/sell split among traders for an asset.
type Sentiment struct {
	Buy  int `json:"buy"`
	Sell int `json:"sell"`
}

// Signal is a platform-pushed trading signal for an asset.
type Signal struct {
	Asset     string
	Direction string
	Duration  int64
	At        int64
}

// Balance holds the account balances reported by the platform.
type Balance struct {
	Live float64
	Demo float64
}

// ForMode returns the balance matching the account mode.
func (b Balance) ForMode(mode AccountMode) float64 {
	if mode == ModeLive {
		return b.Live
	}
	return b.Demo
}

// Profile holds the account profile returned by the cabinet digest endpoint.
type Profile struct {
	ID             int64   `json:"id"`
	Nickname       string  `json:"nickname"`
	DemoBalance    float64 `json:"demoBalance"`
	LiveBalance    float64 `json:"liveBalance"`
	Avatar         string  `json:"avatar"`
	CurrencyCode   string  `json:"currencyCode"`
	CurrencySymbol string  `json:"currencySymbol"`
	Country        string  `json:"country"`
	CountryName    string  `json:"countryName"`
	TimeOffset     int     `json:"timeOffset"`
}

// IsOTC reports whether an asset trades outside normal market hours.
// OTC assets are identified by their naming suffix and follow different
// expiration rules.
func IsOTC(asset string) bool {
	return strings.HasSuffix(asset, "_otc")
}

// UnixSeconds truncates a time to whole unix seconds.
func UnixSeconds(t time.Time) int64 {
	return t.Unix()
}
