package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/geo-dashboard/internal/config"
	"github.com/jengzang/geo-dashboard/internal/mapview"
	"github.com/jengzang/geo-dashboard/internal/models"
)

// ErrUnknownLayer is returned for a layer id the map cannot draw.
var ErrUnknownLayer = errors.New("unknown map layer")

// DefaultLayers are drawn when a request names none.
var DefaultLayers = []string{mapview.LayerDistricts, mapview.LayerGPS}

// MapRequest selects the layers of a map. A non-zero TripID restricts the
// point layers to one trip.
type MapRequest struct {
	Layers []string
	TripID int64
}

// MapService composes deck.gl maps from the dataset and analysis results
type MapService struct {
	data     *DatasetService
	analysis *AnalysisService
	settings config.AnalysisSettings
}

// NewMapService creates a new map service
func NewMapService(data *DatasetService, analysis *AnalysisService, settings config.AnalysisSettings) *MapService {
	return &MapService{data: data, analysis: analysis, settings: settings}
}

// Deck builds the requested layers concurrently and returns them in request
// order. The first failing layer cancels the rest.
func (s *MapService) Deck(ctx context.Context, req MapRequest) (mapview.Deck, error) {
	names := req.Layers
	if len(names) == 0 {
		names = DefaultLayers
	}

	layers := make([]mapview.Layer, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			layer, err := s.layer(gctx, name, req.TripID)
			if err != nil {
				return fmt.Errorf("layer %s: %w", name, err)
			}
			layers[i] = layer
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return mapview.Deck{}, err
	}
	return mapview.NewDeck(layers...), nil
}

func (s *MapService) layer(ctx context.Context, name string, tripID int64) (mapview.Layer, error) {
	switch name {
	case mapview.LayerDistricts:
		districts, err := s.data.Districts()
		if err != nil {
			return nil, err
		}
		return mapview.DistrictLayer(districts), nil

	case mapview.LayerGPS:
		points, err := s.points(ctx, tripID)
		if err != nil {
			return nil, err
		}
		return mapview.GPSLayer(points), nil

	case mapview.LayerHeatmap:
		points, err := s.points(ctx, tripID)
		if err != nil {
			return nil, err
		}
		return mapview.HeatmapLayer(points, s.settings.Analysis().HeatmapS2Level), nil

	case mapview.LayerBusRoutes:
		routes, err := s.analysis.Routes(ctx)
		if err != nil {
			return nil, err
		}
		return mapview.BusRouteLayer(routes), nil

	case mapview.LayerGraphNodes, mapview.LayerGraphEdges:
		res, err := s.analysis.MovementGraph(ctx)
		if err != nil {
			return nil, err
		}
		if name == mapview.LayerGraphNodes {
			return mapview.GraphNodeLayer(res), nil
		}
		return mapview.GraphEdgeLayer(res), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
}

func (s *MapService) points(ctx context.Context, tripID int64) ([]models.GPSPoint, error) {
	if tripID != 0 {
		return s.data.TripPoints(ctx, tripID)
	}
	points, _, err := s.data.Snapshot()
	return points, err
}

// DistrictsGeoJSON exports the district polygons.
func (s *MapService) DistrictsGeoJSON() (*geojson.FeatureCollection, error) {
	districts, err := s.data.Districts()
	if err != nil {
		return nil, err
	}
	return mapview.DistrictsGeoJSON(districts), nil
}

// RoutesGeoJSON exports the analysed routes.
func (s *MapService) RoutesGeoJSON(ctx context.Context) (*geojson.FeatureCollection, error) {
	routes, err := s.analysis.Routes(ctx)
	if err != nil {
		return nil, err
	}
	return mapview.RoutesGeoJSON(routes), nil
}
