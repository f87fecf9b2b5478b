package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"quotex-trader/internal/models"
)

// Schemas announced by placeholder frames.
const (
	SchemaSettingsList = "settings/list"
	SchemaHistoryV2    = "history/list/v2"
)

// Decoder turns raw inbound frames into typed events. It is stateful: a
// placeholder frame names the schema the next frame's bare payload must be
// decoded with, and the decoder retains that name between calls. A Decoder
// is owned by the single receive loop and is not safe for concurrent use.
type Decoder struct {
	pendingSchema string
}

// NewDecoder creates a decoder with no pending schema.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset clears any pending schema. Called when the connection drops so a
// stale marker never leaks into the next session.
func (d *Decoder) Reset() {
	d.pendingSchema = ""
}

// Decode classifies one inbound frame. Control codes are checked before any
// JSON parsing; unclassifiable frames come back as EventRaw rather than an
// error so one junk frame never kills the receive loop.
func (d *Decoder) Decode(raw []byte) (Event, error) {
	if len(raw) == 0 {
		return EventRaw{}, nil
	}
	s := string(raw)

	switch s {
	case FramePing:
		return EventPing{}, nil
	case FramePong:
		return EventPong{}, nil
	case FrameDisconnect:
		return EventDisconnect{}, nil
	}

	// Engine.IO open and namespace-connect frames carry an optional body.
	if strings.HasPrefix(s, FrameConnect) && !strings.HasPrefix(s, "42[") {
		return EventConnected{}, nil
	}
	if s[0] == '0' {
		var open EventOpen
		if len(s) > 1 {
			if err := json.Unmarshal(raw[1:], &open); err != nil {
				return nil, fmt.Errorf("parsing open frame: %w", err)
			}
		}
		return open, nil
	}

	// Placeholder frames: 451-["<schema>",{"_placeholder":true,"num":0}]
	// announce how to decode the frame that follows.
	if strings.HasPrefix(s, "451-") || strings.HasPrefix(s, "51-") {
		return d.decodePlaceholder(raw)
	}

	// Standard 42["<event>",<payload>] frames.
	if i := bytes.IndexByte(raw, '['); i > 0 && isDigits(s[:i]) {
		return d.decodeEventFrame(raw[i:])
	}

	// Bare JSON payloads, possibly wrapped in a binary-attachment marker
	// byte. These either complete a pending placeholder or are dispatched
	// by shape.
	body := raw
	if body[0] == 0x04 {
		body = body[1:]
	}
	if len(body) > 0 && (body[0] == '{' || body[0] == '[') {
		if schema := d.pendingSchema; schema != "" {
			d.pendingSchema = ""
			return d.decodeSchema(schema, body)
		}
		return d.dispatchJSON(body)
	}

	return EventRaw{Data: raw}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func (d *Decoder) decodePlaceholder(raw []byte) (Event, error) {
	i := bytes.IndexByte(raw, '[')
	if i < 0 {
		return EventRaw{Data: raw}, nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw[i:], &parts); err != nil || len(parts) == 0 {
		return EventRaw{Data: raw}, nil
	}
	var schema string
	if err := json.Unmarshal(parts[0], &schema); err != nil {
		return EventRaw{Data: raw}, nil
	}
	d.pendingSchema = schema
	return EventPlaceholder{Schema: schema}, nil
}

func (d *Decoder) decodeEventFrame(body []byte) (Event, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil || len(parts) == 0 {
		return EventRaw{Data: body}, nil
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		// Array-of-arrays payload without an event name.
		return d.dispatchJSON(body)
	}

	switch name {
	case "s_authorization":
		return EventAuthAccepted{}, nil
	case "authorization/reject":
		return EventAuthRejected{}, nil
	case "instruments/list":
		if len(parts) > 1 {
			return d.dispatchJSON(parts[1])
		}
		return EventRaw{Data: body}, nil
	}

	if len(parts) > 1 {
		return d.dispatchJSON(parts[1])
	}
	return EventRaw{Data: body}, nil
}

func (d *Decoder) decodeSchema(schema string, body []byte) (Event, error) {
	switch schema {
	case SchemaSettingsList:
		return EventSettingsList{Raw: append([]byte(nil), body...)}, nil
	case SchemaHistoryV2:
		var payload struct {
			Asset   string          `json:"asset"`
			Period  int64           `json:"period"`
			History [][]float64     `json:"history"`
			Candles [][]json.Number `json:"candles"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("parsing %s payload: %w", schema, err)
		}
		ev := EventHistoryV2{Asset: payload.Asset, Period: payload.Period}
		for _, row := range payload.History {
			if len(row) < 2 {
				continue
			}
			ev.History = append(ev.History, models.Tick{
				Symbol: payload.Asset,
				Time:   row[0],
				Price:  row[1],
			})
		}
		for _, row := range payload.Candles {
			if c, ok := positionalCandle(row); ok {
				ev.Candles = append(ev.Candles, c)
			}
		}
		return ev, nil
	default:
		// Unknown schema: surface the body untyped.
		return EventRaw{Data: body}, nil
	}
}

// positionalCandle parses a [time, open, close, high, low, ticks] row.
func positionalCandle(row []json.Number) (models.Candle, bool) {
	if len(row) < 5 {
		return models.Candle{}, false
	}
	f := func(i int) float64 {
		v, _ := row[i].Float64()
		return v
	}
	c := models.Candle{
		Time:  int64(f(0)),
		Open:  f(1),
		Close: f(2),
		High:  f(3),
		Low:   f(4),
	}
	if len(row) > 5 {
		c.Ticks = int(f(5))
	}
	return c, true
}

// dispatchJSON classifies a bare payload by its shape. The server
// multiplexes many payload shapes onto generic channels, so the presence
// and absence of specific fields is the contract.
func (d *Decoder) dispatchJSON(body []byte) (Event, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return EventRaw{}, nil
	}
	if trimmed[0] == '[' {
		return d.dispatchArray(trimmed)
	}
	if trimmed[0] != '{' {
		return EventRaw{Data: body}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return EventRaw{Data: body}, nil
	}

	has := func(key string) bool {
		_, ok := obj[key]
		return ok
	}

	switch {
	case has("error"):
		var reason string
		if err := json.Unmarshal(obj["error"], &reason); err != nil {
			reason = string(obj["error"])
		}
		return EventError{Reason: reason}, nil

	case has("liveBalance") || has("demoBalance"):
		var ev EventBalance
		if raw, ok := obj["liveBalance"]; ok {
			ev.Live = parseFloatPtr(raw)
		}
		if raw, ok := obj["demoBalance"]; ok {
			ev.Demo = parseFloatPtr(raw)
		}
		return ev, nil

	case has("signals"):
		return parseSignals(obj)

	case has("pending"):
		var pending map[string]json.RawMessage
		_ = json.Unmarshal(obj["pending"], &pending)
		return EventPendingAck{Ticket: parseID(pending["ticket"]), Raw: trimmed}, nil

	case has("deals"):
		return parseDeals(obj)

	case has("id") && !has("ticket"):
		return parseBuyAck(obj, trimmed)

	case has("ticket") && !has("id"):
		return EventSellAck{Ticket: parseID(obj["ticket"]), Raw: trimmed}, nil

	case has("isDemo") && has("balance"):
		var ev EventBalanceEdited
		_ = json.Unmarshal(obj["isDemo"], &ev.IsDemo)
		_ = json.Unmarshal(obj["balance"], &ev.Balance)
		return ev, nil

	case has("index"):
		return parseHistoryLoad(obj)
	}

	return EventRaw{Data: body}, nil
}

func (d *Decoder) dispatchArray(body []byte) (Event, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return EventRaw{Data: body}, nil
	}

	var first []json.RawMessage
	if err := json.Unmarshal(rows[0], &first); err != nil {
		return EventRaw{Data: body}, nil
	}

	switch {
	case len(first) == 4:
		return parseTicks(rows)
	case len(first) == 2:
		return parseSentiment(rows)
	case len(first) >= 15:
		return parseInstruments(rows)
	}
	return EventRaw{Data: body}, nil
}

// parseID reads an identifier that the server sends as either a JSON
// string or a bare number.
func parseID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func parseFloatPtr(raw json.RawMessage) *float64 {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func parseTicks(rows []json.RawMessage) (Event, error) {
	ev := EventTicks{}
	for _, raw := range rows {
		var row []json.RawMessage
		if err := json.Unmarshal(raw, &row); err != nil || len(row) < 3 {
			continue
		}
		var t models.Tick
		if err := json.Unmarshal(row[0], &t.Symbol); err != nil {
			continue
		}
		_ = json.Unmarshal(row[1], &t.Time)
		_ = json.Unmarshal(row[2], &t.Price)
		ev.Ticks = append(ev.Ticks, t)
	}
	if len(ev.Ticks) == 0 {
		return EventRaw{}, nil
	}
	return ev, nil
}

func parseSentiment(rows []json.RawMessage) (Event, error) {
	ev := EventSentiment{Sentiment: make(map[string]models.Sentiment)}
	for _, raw := range rows {
		var row []json.RawMessage
		if err := json.Unmarshal(raw, &row); err != nil || len(row) != 2 {
			continue
		}
		var symbol string
		var buy int
		if err := json.Unmarshal(row[0], &symbol); err != nil {
			continue
		}
		if err := json.Unmarshal(row[1], &buy); err != nil {
			continue
		}
		ev.Sentiment[symbol] = models.Sentiment{Buy: buy, Sell: 100 - buy}
	}
	if len(ev.Sentiment) == 0 {
		return EventRaw{}, nil
	}
	return ev, nil
}

// parseInstruments decodes the positional catalog tuples. The load-bearing
// positions: 0 id, 1 symbol, 2 display name, 5 1-minute payout percent,
// 6 5-minute payout percent, 7 turbo payout percent, 14 open flag.
func parseInstruments(rows []json.RawMessage) (Event, error) {
	ev := EventInstruments{}
	for _, raw := range rows {
		var row []json.RawMessage
		if err := json.Unmarshal(raw, &row); err != nil || len(row) < 15 {
			continue
		}
		var in models.Instrument
		var id json.Number
		if err := json.Unmarshal(row[0], &id); err == nil {
			in.ID, _ = id.Int64()
		}
		if err := json.Unmarshal(row[1], &in.Symbol); err != nil {
			continue
		}
		_ = json.Unmarshal(row[2], &in.Name)
		_ = json.Unmarshal(row[5], &in.Payout)
		_ = json.Unmarshal(row[6], &in.Payout5)
		_ = json.Unmarshal(row[7], &in.TurboPayout)

		var open any
		if err := json.Unmarshal(row[14], &open); err == nil {
			switch v := open.(type) {
			case bool:
				in.Open = v
			case float64:
				in.Open = v != 0
			}
		}
		in.Name = strings.ReplaceAll(in.Name, "\n", "")
		ev.Instruments = append(ev.Instruments, in)
	}
	if len(ev.Instruments) == 0 {
		return EventRaw{}, nil
	}
	return ev, nil
}

func parseSignals(obj map[string]json.RawMessage) (Event, error) {
	var at int64
	if raw, ok := obj["time"]; ok {
		_ = json.Unmarshal(raw, &at)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(obj["signals"], &rows); err != nil {
		return EventRaw{}, nil
	}

	ev := EventSignals{}
	for _, raw := range rows {
		var row []json.RawMessage
		if err := json.Unmarshal(raw, &row); err != nil || len(row) < 2 {
			continue
		}
		sig := models.Signal{At: at}
		if err := json.Unmarshal(row[0], &sig.Asset); err != nil {
			continue
		}
		if len(row) > 2 {
			_ = json.Unmarshal(row[2], &sig.At)
		}

		var entries []json.RawMessage
		if err := json.Unmarshal(row[1], &entries); err != nil || len(entries) == 0 {
			continue
		}
		// Entries appear either as objects or positional pairs.
		var entry struct {
			Signal    string      `json:"signal"`
			TimeFrame json.Number `json:"timeFrame"`
		}
		if err := json.Unmarshal(entries[0], &entry); err == nil && entry.Signal != "" {
			sig.Direction = entry.Signal
			sig.Duration, _ = entry.TimeFrame.Int64()
		} else {
			var pair []json.RawMessage
			if err := json.Unmarshal(entries[0], &pair); err != nil || len(pair) < 2 {
				continue
			}
			var tf json.Number
			_ = json.Unmarshal(pair[0], &tf)
			sig.Duration, _ = tf.Int64()
			_ = json.Unmarshal(pair[1], &sig.Direction)
		}
		ev.Signals = append(ev.Signals, sig)
	}
	if len(ev.Signals) == 0 {
		return EventRaw{}, nil
	}
	return ev, nil
}

func parseDeals(obj map[string]json.RawMessage) (Event, error) {
	ev := EventDeals{}
	if raw, ok := obj["profit"]; ok {
		_ = json.Unmarshal(raw, &ev.Profit)
	}
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(obj["deals"], &rows); err != nil {
		return EventRaw{}, nil
	}
	for _, row := range rows {
		var deal Deal
		if raw, ok := row["id"]; ok {
			deal.ID = parseID(raw)
		}
		if raw, ok := row["profit"]; ok {
			_ = json.Unmarshal(raw, &deal.Profit)
		}
		ev.Deals = append(ev.Deals, deal)
	}
	return ev, nil
}

func parseBuyAck(obj map[string]json.RawMessage, body []byte) (Event, error) {
	ev := EventBuyAck{Raw: append([]byte(nil), body...)}
	ev.ID = parseID(obj["id"])
	if raw, ok := obj["requestId"]; ok {
		var rid json.Number
		_ = json.Unmarshal(raw, &rid)
		ev.RequestID, _ = rid.Int64()
	}
	if raw, ok := obj["asset"]; ok {
		_ = json.Unmarshal(raw, &ev.Asset)
	}
	if raw, ok := obj["amount"]; ok {
		_ = json.Unmarshal(raw, &ev.Amount)
	}
	if raw, ok := obj["openPrice"]; ok {
		_ = json.Unmarshal(raw, &ev.OpenPrice)
	}
	if raw, ok := obj["closeTimestamp"]; ok {
		_ = json.Unmarshal(raw, &ev.CloseTimestamp)
	}
	return ev, nil
}

func parseHistoryLoad(obj map[string]json.RawMessage) (Event, error) {
	ev := EventHistoryLoad{}
	if raw, ok := obj["asset"]; ok {
		_ = json.Unmarshal(raw, &ev.Asset)
	}
	if raw, ok := obj["closeTimestamp"]; ok {
		_ = json.Unmarshal(raw, &ev.CloseTimestamp)
	}
	if raw, ok := obj["history"]; ok {
		var rows [][]float64
		if err := json.Unmarshal(raw, &rows); err == nil {
			for _, row := range rows {
				if len(row) < 2 {
					continue
				}
				ev.History = append(ev.History, models.Tick{
					Symbol: ev.Asset,
					Time:   row[0],
					Price:  row[1],
				})
			}
		}
	}
	return ev, nil
}
