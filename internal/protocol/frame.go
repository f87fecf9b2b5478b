// Package protocol implements the Engine.IO/Socket.IO-style text framing
// used by the platform websocket, encoding outbound requests and decoding
// inbound frames into a closed set of typed events.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Control frames. These are bare numeric codes with no JSON body.
const (
	FrameOpen       = "0"  // transport open, carries session settings
	FramePing       = "2"  // heartbeat probe
	FramePong       = "3"  // heartbeat reply
	FrameConnect    = "40" // namespace connected
	FrameDisconnect = "41" // server-initiated disconnect
)

// EventPrefix precedes every outbound application frame.
const EventPrefix = "42"

// Outbound event names understood by the platform.
const (
	ChannelTick              = "tick"
	ChannelAuthorization     = "authorization"
	ChannelInstrumentsUpdate = "instruments/update"
	ChannelInstrumentsFollow = "instruments/follow"
	ChannelDepthFollow       = "depth/follow"
	ChannelDepthUnfollow     = "depth/unfollow"
	ChannelSettingsStore     = "settings/store"
	ChannelOrdersOpen        = "orders/open"
	ChannelOrdersCancel      = "orders/cancel"
	ChannelDemoRefill        = "demo/refill"
	ChannelSignalSubscribe   = "signal/subscribe"
	ChannelAccountChange     = "account/change"
	ChannelHistoryLoad       = "history/load"
	ChannelHistoryLoadLine   = "history/load/line"
	ChannelChartNotification = "chart_notification/get"
	ChannelPendingCreate     = "pending/create"
)

// Encode serializes an application frame as 42["<event>",<payload>].
// A nil payload produces the bare form 42["<event>"].
func Encode(event string, payload any) ([]byte, error) {
	if payload == nil {
		return []byte(fmt.Sprintf(`%s["%s"]`, EventPrefix, event)), nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return []byte(fmt.Sprintf(`%s["%s",%s]`, EventPrefix, event, body)), nil
}

// MustEncode is Encode for payloads that cannot fail to marshal.
func MustEncode(event string, payload any) []byte {
	frame, err := Encode(event, payload)
	if err != nil {
		panic(err)
	}
	return frame
}

// AuthorizationPayload is sent immediately after the transport opens.
type AuthorizationPayload struct {
	Session      string `json:"session"`
	IsDemo       int    `json:"isDemo"`
	TournamentID int    `json:"tournamentId"`
}

// OrderPayload opens a binary option order. Time carries the computed
// expiration unix timestamp.
type OrderPayload struct {
	Asset        string  `json:"asset"`
	Amount       float64 `json:"amount"`
	Time         int64   `json:"time"`
	Action       string  `json:"action"`
	IsDemo       int     `json:"isDemo"`
	TournamentID int     `json:"tournamentId"`
	RequestID    int64   `json:"requestId"`
	OptionType   int     `json:"optionType"`
}

// Option types accepted by orders/open.
const (
	OptionTypeTimed = 1   // scheduled expiration, fast options
	OptionTypeTurbo = 100 // turbo/OTC style, duration-relative
)

// SubscribePayload follows a realtime candle stream.
type SubscribePayload struct {
	Asset  string `json:"asset"`
	Period int64  `json:"period"`
}

// ChartNotificationPayload accompanies a stream subscription.
type ChartNotificationPayload struct {
	Asset   string `json:"asset"`
	Version string `json:"version"`
}

// HistoryPayload requests a historical candle load.
type HistoryPayload struct {
	Asset  string `json:"asset"`
	Index  int64  `json:"index"`
	Time   int64  `json:"time"`
	Offset int64  `json:"offset"`
	Period int64  `json:"period"`
}

// CancelPayload sells an open option back by ticket.
type CancelPayload struct {
	Ticket string `json:"ticket"`
}

// AccountChangePayload switches between demo and live balances.
type AccountChangePayload struct {
	Demo         int `json:"demo"`
	TournamentID int `json:"tournamentId"`
}

// InstrumentsFollowPayload registers interest in a pending order's
// instrument after the platform assigns its ticket.
type InstrumentsFollowPayload struct {
	Amount    float64 `json:"amount"`
	Command   int     `json:"command"` // 0 call, 1 put
	Currency  string  `json:"currency"`
	MinPayout int     `json:"min_payout"`
	OpenTime  string  `json:"open_time"`
	OpenType  int     `json:"open_type"`
	Symbol    string  `json:"symbol"`
	Ticket    string  `json:"ticket"`
	Timeframe int64   `json:"timeframe"`
	UID       int64   `json:"uid"`
}

// PendingPayload schedules a trade for a future open time.
type PendingPayload struct {
	OpenType  int     `json:"openType"`
	Asset     string  `json:"asset"`
	OpenTime  string  `json:"openTime"`
	Timeframe int64   `json:"timeframe"`
	Command   string  `json:"command"`
	Amount    float64 `json:"amount"`
}

// SettingsPayload pushes chart context ahead of fast-option orders. The
// platform rejects fast options whose expiration was not announced through
// settings/store first.
type SettingsPayload struct {
	ChartID  string        `json:"chartId"`
	Settings ChartSettings `json:"settings"`
}

// ChartSettings mirrors the trading UI chart state.
type ChartSettings struct {
	ChartID               string       `json:"chartId"`
	ChartType             int          `json:"chartType"`
	CurrentExpirationTime int64        `json:"currentExpirationTime"`
	IsFastOption          bool         `json:"isFastOption"`
	IsFastAmountOption    bool         `json:"isFastAmountOption"`
	IsIndicatorsMinimized bool         `json:"isIndicatorsMinimized"`
	IsIndicatorsShowing   bool         `json:"isIndicatorsShowing"`
	IsShortBetElement     bool         `json:"isShortBetElement"`
	ChartPeriod           int          `json:"chartPeriod"`
	CurrentAsset          CurrentAsset `json:"currentAsset"`
	DealValue             float64      `json:"dealValue"`
	DealPercentValue      float64      `json:"dealPercentValue"`
	IsVisible             bool         `json:"isVisible"`
	TimePeriod            int64        `json:"timePeriod"`
	GridOpacity           int          `json:"gridOpacity"`
	IsAutoScrolling       int          `json:"isAutoScrolling"`
	IsOneClickTrade       bool         `json:"isOneClickTrade"`
	UpColor               string       `json:"upColor"`
	DownColor             string       `json:"downColor"`
}

// NewChartSettings returns the chart context frame for an order.
func NewChartSettings(asset string, period int64, expiration int64, fastOption bool) SettingsPayload {
	return SettingsPayload{
		ChartID: "graph",
		Settings: ChartSettings{
			ChartID:               "graph",
			ChartType:             2,
			CurrentExpirationTime: expiration,
			IsFastOption:          fastOption,
			IsIndicatorsShowing:   true,
			ChartPeriod:           4,
			CurrentAsset:          CurrentAsset{Symbol: asset},
			DealValue:             5,
			DealPercentValue:      1,
			IsVisible:             true,
			TimePeriod:            period,
			GridOpacity:           8,
			IsAutoScrolling:       1,
			IsOneClickTrade:       true,
			UpColor:               "#0FAF59",
			DownColor:             "#FF6251",
		},
	}
}

// CurrentAsset names the chart's active asset.
type CurrentAsset struct {
	Symbol string `json:"symbol"`
}
