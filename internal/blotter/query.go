package blotter

import (
	"context"

	"futures-blotter/internal/models"
	"futures-blotter/internal/store"
)

// GetTrade retrieves one trade by ID.
func (s *Service) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	return s.store.GetTrade(ctx, id)
}

// ListTrades retrieves trades matching the filter, newest first.
func (s *Service) ListTrades(ctx context.Context, filter store.Filter) ([]*models.Trade, error) {
	return s.store.ListTrades(ctx, filter)
}
