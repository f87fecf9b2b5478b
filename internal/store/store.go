// Package store persists the local trade journal and a candle cache.
package store

import (
	"context"
	"time"

	"quotex-trader/internal/models"
)

// OrderFilter narrows ListOrders results. Zero values mean "any".
type OrderFilter struct {
	Asset     string
	Status    models.OrderStatus
	Demo      *bool
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// Stats summarizes the settled journal entries a filter matches.
type Stats struct {
	Total   int
	Wins    int
	Losses  int
	Dojis   int
	WinRate float64
	Profit  float64
}

// Journal records orders through their lifecycle.
type Journal interface {
	LogOrder(ctx context.Context, order *models.Order, demo bool) error
	SettleOrder(ctx context.Context, result models.TradeResult) error
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	GetStats(ctx context.Context, filter OrderFilter) (Stats, error)

	SaveCandles(ctx context.Context, asset string, period int64, candles []models.Candle) error
	GetCandles(ctx context.Context, asset string, period int64, from, to int64) ([]models.Candle, error)

	Close() error
}
