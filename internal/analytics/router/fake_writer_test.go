package router

import (
	"context"

	"github.com/angelmondragon/partsmarket-backend/internal/analytics/types"
)

type fakeWriter struct {
	inserted []types.MarketplaceEventRow
	err      error
}

func (f *fakeWriter) InsertMarketplace(_ context.Context, rows ...types.MarketplaceEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rows...)
	return nil
}
