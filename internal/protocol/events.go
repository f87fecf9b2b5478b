package protocol

import (
	"encoding/json"

	"quotex-trader/internal/models"
)

// Event is the closed set of inbound frames after decoding. Every frame the
// server can send maps to exactly one variant; components never inspect raw
// payloads themselves.
type Event interface {
	isEvent()
}

// EventOpen is the transport-open frame carrying engine settings.
type EventOpen struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// EventConnected is the namespace-connect acknowledgement.
type EventConnected struct{}

// EventPing is a server heartbeat probe; the connection must answer with a
// pong frame.
type EventPing struct{}

// EventPong is the server's answer to our heartbeat probe.
type EventPong struct{}

// EventDisconnect is a platform-initiated disconnect; the connection must
// be re-established.
type EventDisconnect struct{}

// EventAuthAccepted confirms the authorization frame was accepted.
type EventAuthAccepted struct{}

// EventAuthRejected signals a stale or invalid session token.
type EventAuthRejected struct{}

// EventPlaceholder is a continuation marker: the next frame's bare JSON
// payload must be interpreted using Schema.
type EventPlaceholder struct {
	Schema string
}

// EventBalance is a balance update. Absent balances are nil.
type EventBalance struct {
	Live *float64
	Demo *float64
}

// EventInstruments is the periodic full catalog push. The snapshot replaces
// any previous catalog wholesale.
type EventInstruments struct {
	Instruments []models.Instrument
}

// EventTicks carries realtime price samples.
type EventTicks struct {
	Ticks []models.Tick
}

// EventSentiment carries buy/sell split updates keyed by asset.
type EventSentiment struct {
	Sentiment map[string]models.Sentiment
}

// EventSignals carries platform trading signals.
type EventSignals struct {
	Signals []models.Signal
}

// EventBuyAck acknowledges an orders/open request.
type EventBuyAck struct {
	ID             string
	RequestID      int64
	Asset          string
	Amount         float64
	OpenPrice      float64
	CloseTimestamp int64
	Raw            json.RawMessage
}

// EventSellAck acknowledges an orders/cancel request.
type EventSellAck struct {
	Ticket string
	Raw    json.RawMessage
}

// EventPendingAck acknowledges a pending/create request.
type EventPendingAck struct {
	Ticket string
	Raw    json.RawMessage
}

// Deal is one settled trade inside a settlement batch.
type Deal struct {
	ID     string
	Profit float64
}

// EventDeals is a settlement batch: the orders listed are final.
type EventDeals struct {
	Profit float64 // aggregate batch profit
	Deals  []Deal
}

// EventBalanceEdited acknowledges a demo/refill request.
type EventBalanceEdited struct {
	IsDemo  int
	Balance float64
}

// EventError is a protocol-level failure pushed by the server, e.g.
// insufficient funds.
type EventError struct {
	Reason string
}

// EventHistoryLoad is the response to history/load: raw price history plus
// the server clock.
type EventHistoryLoad struct {
	Asset          string
	History        []models.Tick
	CloseTimestamp int64
}

// EventHistoryV2 is the history/list/v2 payload announced by a placeholder
// frame: raw price history plus pre-built candles.
type EventHistoryV2 struct {
	Asset   string
	Period  int64
	History []models.Tick
	Candles []models.Candle
}

// EventSettingsList is the settings/list payload announced by a placeholder
// frame.
type EventSettingsList struct {
	Raw json.RawMessage
}

// EventRaw is any frame the decoder cannot classify. Dispatch ignores it.
type EventRaw struct {
	Data []byte
}

func (EventOpen) isEvent()          {}
func (EventConnected) isEvent()     {}
func (EventPing) isEvent()          {}
func (EventPong) isEvent()          {}
func (EventDisconnect) isEvent()    {}
func (EventAuthAccepted) isEvent()  {}
func (EventAuthRejected) isEvent()  {}
func (EventPlaceholder) isEvent()   {}
func (EventBalance) isEvent()       {}
func (EventInstruments) isEvent()   {}
func (EventTicks) isEvent()         {}
func (EventSentiment) isEvent()     {}
func (EventSignals) isEvent()       {}
func (EventBuyAck) isEvent()        {}
func (EventSellAck) isEvent()       {}
func (EventPendingAck) isEvent()    {}
func (EventDeals) isEvent()         {}
func (EventBalanceEdited) isEvent() {}
func (EventError) isEvent()         {}
func (EventHistoryLoad) isEvent()   {}
func (EventHistoryV2) isEvent()     {}
func (EventSettingsList) isEvent()  {}
func (EventRaw) isEvent()           {}
