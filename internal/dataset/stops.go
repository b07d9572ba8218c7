package dataset

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/jengzang/geo-dashboard/internal/models"
)

// WriteBusStops writes stops as name,latitude,longitude.
func WriteBusStops(w io.Writer, stops []models.BusStop) error {
	if err := gocsv.Marshal(stops, w); err != nil {
		return fmt.Errorf("failed to write bus stops: %w", err)
	}
	return nil
}

// ReadBusStops reads a name,latitude,longitude CSV.
func ReadBusStops(r io.Reader) ([]models.BusStop, error) {
	var stops []models.BusStop
	if err := gocsv.Unmarshal(r, &stops); err != nil {
		return nil, fmt.Errorf("%w: bus stops: %v", ErrInvalidData, err)
	}
	return stops, nil
}

// WriteSegments writes route segments as lat1,lon1,lat2,lon2.
func WriteSegments(w io.Writer, segments []models.RouteSegment) error {
	if err := gocsv.Marshal(segments, w); err != nil {
		return fmt.Errorf("failed to write route segments: %w", err)
	}
	return nil
}

// ReadSegments reads a lat1,lon1,lat2,lon2 CSV.
func ReadSegments(r io.Reader) ([]models.RouteSegment, error) {
	var segments []models.RouteSegment
	if err := gocsv.Unmarshal(r, &segments); err != nil {
		return nil, fmt.Errorf("%w: route segments: %v", ErrInvalidData, err)
	}
	return segments, nil
}
