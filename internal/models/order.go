package models

import "time"

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderAccepted  OrderStatus = "ACCEPTED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderSettled   OrderStatus = "SETTLED"
)

// TradeOutcome is the terminal result of a settled binary option.
type TradeOutcome string

const (
	OutcomeWin  TradeOutcome = "win"
	OutcomeLoss TradeOutcome = "loss"
	OutcomeDoji TradeOutcome = "doji"
)

// Order is a binary option trade. The ID is assigned by the server's
// acknowledgement frame; RequestID is the client-side correlation id sent
// with the open request.
type Order struct {
	RequestID  int64
	ID         string
	Ticket     string
	Asset      string
	Amount     float64
	Direction  Direction
	Duration   int64 // seconds
	Expiration int64 // unix seconds
	OpenPrice  float64
	Status     OrderStatus
	Profit     float64
	PlacedAt   time.Time
}

// TradeResult is the settlement outcome for a single order.
type TradeResult struct {
	OrderID string
	Outcome TradeOutcome
	Profit  float64
}

// Win reports whether the settlement finished in the money.
func (r TradeResult) Win() bool {
	return r.Outcome == OutcomeWin
}
