// Package store provides persistent storage for trades.
package store

import (
	"context"

	"futures-blotter/internal/models"
)

// Filter narrows trade listings. Zero values match everything.
type Filter struct {
	Status   models.TradeStatus
	Strategy string
	Type     models.TradeType
}

// TradeStore is the interface for trade persistence.
type TradeStore interface {
	// SaveTrade inserts or replaces a trade and all its legs.
	SaveTrade(ctx context.Context, trade *models.Trade) error

	// GetTrade retrieves a trade by ID.
	GetTrade(ctx context.Context, id string) (*models.Trade, error)

	// ListTrades retrieves trades matching the filter, newest first.
	ListTrades(ctx context.Context, filter Filter) ([]*models.Trade, error)

	// LoadAllTrades retrieves every trade, newest first.
	LoadAllTrades(ctx context.Context) ([]*models.Trade, error)

	// DeleteTrade removes a trade and its legs.
	DeleteTrade(ctx context.Context, id string) error

	// Close closes the store.
	Close() error
}
