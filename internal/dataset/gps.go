// Package dataset reads and writes the files of the dashboard: the GPS trace
// CSV, bus stop and route segment CSVs, the district boundary file and GPX
// exports of single trips.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/jengzang/geo-dashboard/internal/models"
)

// ErrInvalidData marks input that cannot be turned into a dataset.
var ErrInvalidData = errors.New("invalid data")

// GPSColumns is the header of the GPS trace CSV.
var GPSColumns = []string{"trip_id", "timestamp", "latitude", "longitude", "simulated_speed_kmh"}

// timestamp layouts accepted on input, tried in order
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// TimeLayout is used when writing timestamps.
const TimeLayout = "2006-01-02 15:04:05.999999"

type csvTime time.Time

func (t *csvTime) UnmarshalText(b []byte) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, string(b)); err == nil {
			*t = csvTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", b)
}

func (t csvTime) MarshalText() ([]byte, error) {
	return []byte(time.Time(t).Format(TimeLayout)), nil
}

type gpsRow struct {
	TripID            int64   `csv:"trip_id"`
	Timestamp         csvTime `csv:"timestamp"`
	Latitude          float64 `csv:"latitude"`
	Longitude         float64 `csv:"longitude"`
	SimulatedSpeedKmh float64 `csv:"simulated_speed_kmh"`
}

// ReadGPS decodes a GPS trace CSV. Extra columns are ignored; missing
// required columns, unparsable values and out-of-range coordinates are
// reported with the offending line.
func ReadGPS(r io.Reader) ([]models.GPSPoint, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrInvalidData)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	if err := checkHeader(dec.Header()); err != nil {
		return nil, err
	}

	var points []models.GPSPoint
	for line := 2; ; line++ {
		var row gpsRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidData, line, err)
		}
		if !validCoord(row.Latitude, row.Longitude) {
			return nil, fmt.Errorf("%w: line %d: coordinate (%v, %v) out of range", ErrInvalidData, line, row.Latitude, row.Longitude)
		}
		points = append(points, models.GPSPoint{
			TripID:            row.TripID,
			Timestamp:         time.Time(row.Timestamp),
			Latitude:          row.Latitude,
			Longitude:         row.Longitude,
			SimulatedSpeedKmh: row.SimulatedSpeedKmh,
		})
	}
	return points, nil
}

func checkHeader(header []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	for _, col := range GPSColumns {
		if !have[col] {
			return fmt.Errorf("%w: missing column %q", ErrInvalidData, col)
		}
	}
	return nil
}

func validCoord(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// WriteGPS encodes points as a GPS trace CSV, header included.
func WriteGPS(w io.Writer, points []models.GPSPoint) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(gpsRow{}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range points {
		row := gpsRow{
			TripID:            p.TripID,
			Timestamp:         csvTime(p.Timestamp),
			Latitude:          p.Latitude,
			Longitude:         p.Longitude,
			SimulatedSpeedKmh: p.SimulatedSpeedKmh,
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to write point: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadGPSFile reads a GPS trace CSV from disk.
func LoadGPSFile(path string) ([]models.GPSPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gps file: %w", err)
	}
	defer f.Close()

	points, err := ReadGPS(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}
