package usecases

import (
	"context"
	"sync"

	"github.com/abelzeko/dwlr-dashboard/internal/entities"
	"go.uber.org/zap"
)

// ZonesFetcher fetches the zone classification of every station
type ZonesFetcher interface {
	Zones(ctx context.Context) ([]entities.ZoneClassification, error)
}

// ZoneMapWidget holds the markers of the zone map. Zones are fetched once
// when the widget is mounted.
type ZoneMapWidget struct {
	api    ZonesFetcher
	loader *loader[[]entities.ZoneClassification]
	once   sync.Once
}

// NewZoneMapWidget creates a zone map widget
func NewZoneMapWidget(api ZonesFetcher, logger *zap.SugaredLogger) *ZoneMapWidget {
	return &ZoneMapWidget{
		api:    api,
		loader: newLoader[[]entities.ZoneClassification]("zones", logger),
	}
}

// Mount issues the one and only zones fetch
func (w *ZoneMapWidget) Mount() {
	w.once.Do(func() {
		w.loader.issue("", w.api.Zones)
	})
}

// View returns the current display state
func (w *ZoneMapWidget) View() View[[]entities.ZoneClassification] {
	return w.loader.snapshot()
}

// Wait blocks until no fetch is in flight
func (w *ZoneMapWidget) Wait() {
	w.loader.wait()
}

// Close cancels the fetch if it is still in flight
func (w *ZoneMapWidget) Close() {
	w.loader.close()
}
