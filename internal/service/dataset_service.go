package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jengzang/geo-dashboard/internal/analysis/busroute"
	"github.com/jengzang/geo-dashboard/internal/dataset"
	"github.com/jengzang/geo-dashboard/internal/logger"
	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/repository"
	"github.com/jengzang/geo-dashboard/internal/stats"
	"github.com/jengzang/geo-dashboard/internal/telemetry"
)

var (
	// ErrNoData is returned while no GPS dataset is loaded.
	ErrNoData = errors.New("no gps dataset loaded")
	// ErrNoDistricts is returned while no district file is loaded.
	ErrNoDistricts = errors.New("no district boundaries loaded")
)

// DatasetService owns the loaded GPS dataset and district boundaries. The
// points are kept in memory as an immutable snapshot for the analyzers and
// mirrored into SQLite for the per-trip queries.
type DatasetService struct {
	repo    *repository.GPSRepository
	metrics *telemetry.Metrics

	mu        sync.RWMutex
	points    []models.GPSPoint
	info      models.DatasetInfo
	version   int64
	districts []models.District
	index     *busroute.DistrictIndex
	// bumped on every district load, part of the route cache key
	districtsVersion int64
}

// NewDatasetService creates a new dataset service. metrics may be nil.
func NewDatasetService(repo *repository.GPSRepository, metrics *telemetry.Metrics) *DatasetService {
	return &DatasetService{repo: repo, metrics: metrics}
}

// Load replaces the dataset with points and bumps the dataset version.
func (s *DatasetService) Load(ctx context.Context, points []models.GPSPoint, source string) (models.DatasetInfo, error) {
	ctx, span := telemetry.StartSpan(ctx, "dataset.load",
		attribute.String("dataset.source", source),
		attribute.Int("dataset.points", len(points)),
	)
	defer span.End()

	if len(points) == 0 {
		return models.DatasetInfo{}, fmt.Errorf("%w: no points", dataset.ErrInvalidData)
	}

	// hold the write lock across the store so concurrent loads apply in order
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.ReplaceAll(ctx, points); err != nil {
		span.RecordError(err)
		return models.DatasetInfo{}, fmt.Errorf("failed to store dataset: %w", err)
	}

	s.version++
	s.points = points
	s.info = describe(points, source, s.version)

	if s.metrics != nil {
		s.metrics.SetDataset(s.info.PointCount, s.info.TripCount, s.version)
	}
	logger.FromContext(ctx).Info("Dataset loaded",
		zap.String("source", source),
		zap.Int64("version", s.version),
		zap.Int("points", s.info.PointCount),
		zap.Int("trips", s.info.TripCount),
	)
	return s.info, nil
}

// LoadFile loads a GPS trace CSV from disk.
func (s *DatasetService) LoadFile(ctx context.Context, path string) (models.DatasetInfo, error) {
	points, err := dataset.LoadGPSFile(path)
	if err != nil {
		return models.DatasetInfo{}, err
	}
	return s.Load(ctx, points, path)
}

// Upload loads a GPS trace CSV from r.
func (s *DatasetService) Upload(ctx context.Context, r io.Reader, name string) (models.DatasetInfo, error) {
	points, err := dataset.ReadGPS(r)
	if err != nil {
		return models.DatasetInfo{}, err
	}
	return s.Load(ctx, points, "upload:"+name)
}

func describe(points []models.GPSPoint, source string, version int64) models.DatasetInfo {
	info := models.DatasetInfo{
		Version:    version,
		Source:     source,
		PointCount: len(points),
		LoadedAt:   time.Now().UTC(),
	}

	trips := make(map[int64]struct{})
	speeds := make([]float64, len(points))
	for i, p := range points {
		trips[p.TripID] = struct{}{}
		speeds[i] = p.SimulatedSpeedKmh
		if info.StartTime.IsZero() || p.Timestamp.Before(info.StartTime) {
			info.StartTime = p.Timestamp
		}
		if p.Timestamp.After(info.EndTime) {
			info.EndTime = p.Timestamp
		}
	}
	info.TripCount = len(trips)

	summary := stats.Summarize(speeds)
	info.SpeedMean = summary.Mean
	info.SpeedPct = summary.Percentiles()
	return info
}

// Snapshot returns the loaded points and their dataset version. Callers must
// not modify the slice.
func (s *DatasetService) Snapshot() ([]models.GPSPoint, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.points == nil {
		return nil, 0, ErrNoData
	}
	return s.points, s.version, nil
}

// Info describes the loaded dataset.
func (s *DatasetService) Info() (models.DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.points == nil {
		return models.DatasetInfo{}, ErrNoData
	}
	return s.info, nil
}

// Trips lists the trips of the loaded dataset.
func (s *DatasetService) Trips(ctx context.Context) ([]models.TripSummary, error) {
	if _, _, err := s.Snapshot(); err != nil {
		return nil, err
	}
	return s.repo.Trips(ctx)
}

// TripPoints returns the points of one trip ordered by timestamp.
func (s *DatasetService) TripPoints(ctx context.Context, tripID int64) ([]models.GPSPoint, error) {
	if _, _, err := s.Snapshot(); err != nil {
		return nil, err
	}
	return s.repo.TripPoints(ctx, tripID)
}

// WriteTripGPX exports one trip as GPX.
func (s *DatasetService) WriteTripGPX(ctx context.Context, w io.Writer, tripID int64) error {
	points, err := s.TripPoints(ctx, tripID)
	if err != nil {
		return err
	}
	return dataset.WriteTripGPX(w, tripID, points)
}

// LoadDistricts reads the district boundary file and rebuilds the index.
func (s *DatasetService) LoadDistricts(ctx context.Context, path string) error {
	districts, err := dataset.LoadDistricts(path)
	if err != nil {
		return err
	}
	s.SetDistricts(districts)
	logger.FromContext(ctx).Info("Districts loaded", zap.String("path", path), zap.Int("polygons", len(districts)))
	return nil
}

// SetDistricts replaces the district boundaries.
func (s *DatasetService) SetDistricts(districts []models.District) {
	idx := busroute.NewDistrictIndex(districts)
	s.mu.Lock()
	s.districts = districts
	s.index = idx
	s.districtsVersion++
	s.mu.Unlock()
}

// Districts returns the district polygons in file order.
func (s *DatasetService) Districts() ([]models.District, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.districts == nil {
		return nil, ErrNoDistricts
	}
	return s.districts, nil
}

// DistrictIndex returns the point-in-district index and the version of the
// district boundaries it was built from.
func (s *DatasetService) DistrictIndex() (*busroute.DistrictIndex, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, 0, ErrNoDistricts
	}
	return s.index, s.districtsVersion, nil
}

// DistrictInfos lists districts with their polygon counts, sorted by name.
func (s *DatasetService) DistrictInfos() ([]models.DistrictInfo, error) {
	districts, err := s.Districts()
	if err != nil {
		return nil, err
	}
	infos := dataset.DistrictInfos(districts)
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
