package dataset

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/twpayne/go-gpx"

	"github.com/jengzang/geo-dashboard/internal/models"
)

const gpxCreator = "geo-dashboard"

// WriteTripGPX writes the points of one trip as a single GPX track.
func WriteTripGPX(w io.Writer, tripID int64, points []models.GPSPoint) error {
	seg := &gpx.TrkSegType{TrkPt: make([]*gpx.WptType, 0, len(points))}
	for _, p := range points {
		seg.TrkPt = append(seg.TrkPt, &gpx.WptType{
			Lat:   p.Latitude,
			Lon:   p.Longitude,
			Time:  p.Timestamp.UTC(),
			Speed: p.SimulatedSpeedKmh / 3.6, // m/s
		})
	}

	g := &gpx.GPX{
		Version: "1.1",
		Creator: gpxCreator,
		Trk: []*gpx.TrkType{{
			Name:   "trip " + strconv.FormatInt(tripID, 10),
			TrkSeg: []*gpx.TrkSegType{seg},
		}},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if err := g.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write gpx: %w", err)
	}
	return nil
}
