package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jengzang/geo-dashboard/internal/analysis"
	"github.com/jengzang/geo-dashboard/internal/auth"
	"github.com/jengzang/geo-dashboard/internal/config"
	"github.com/jengzang/geo-dashboard/internal/database"
	"github.com/jengzang/geo-dashboard/internal/middleware"
	"github.com/jengzang/geo-dashboard/internal/repository"
	"github.com/jengzang/geo-dashboard/internal/service"
	"github.com/jengzang/geo-dashboard/internal/telemetry"
)

const secret = "test-secret"

const gpsCSV = `trip_id,timestamp,latitude,longitude,simulated_speed_kmh
1,2024-05-01 08:00:00,10.7700,106.7000,30
1,2024-05-01 08:00:20,10.7701,106.7001,30
1,2024-05-01 08:00:40,10.8000,106.6500,30
2,2024-05-01 08:05:00,10.8001,106.6501,30
2,2024-05-01 08:05:20,10.7702,106.7002,30
`

const districtsJSON = `{"level2s":[
 {"name":"Quận 1","level2_id":"760","coordinates":[[[[106.69,10.76],[106.71,10.76],[106.71,10.78],[106.69,10.78]]]]},
 {"name":"Quận 3","level2_id":"770","coordinates":[[[[106.64,10.79],[106.66,10.79],[106.66,10.81],[106.64,10.81]]]]}
]}`

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	conn, err := database.Open(database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Auth.JWTSecret = secret
	cfg.Data.GPSPath = filepath.Join(dir, "gps.csv")
	cfg.Data.DistrictsPath = filepath.Join(dir, "districts.json")
	cfg.Data.MaxUploadBytes = 4096
	cfg.Analysis.DBSCANEps = 0.001
	cfg.Analysis.DBSCANMinSamples = 2
	require.NoError(t, os.WriteFile(cfg.Data.GPSPath, []byte(gpsCSV), 0o644))
	require.NoError(t, os.WriteFile(cfg.Data.DistrictsPath, []byte(districtsJSON), 0o644))

	settings := config.Static(cfg.Analysis)
	metrics := telemetry.NewMetrics()
	data := service.NewDatasetService(repository.NewGPSRepository(conn), metrics)
	tracker := analysis.NewTracker(repository.NewRunRepository(conn), metrics)
	an := service.NewAnalysisService(data, settings, config.CacheConfig{Size: 16, TTL: time.Minute}, tracker, metrics)

	return SetupRouter(Dependencies{
		Settings: func() *config.Config { return cfg },
		Metrics:  metrics,
		Limiter:  limiter,
		Dataset:  data,
		Analysis: an,
		Maps:     service.NewMapService(data, an, settings),
	})
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	return do(r, httptest.NewRequest(http.MethodGet, path, nil))
}

func adminToken(t *testing.T) string {
	token, err := auth.IssueToken(secret, "tester", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func reload(t *testing.T, r *gin.Engine) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dataset/reload", nil)
	req.Header.Set("Authorization", adminToken(t))
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealthAndStatic(t *testing.T) {
	r := newRouter(t, nil)

	w := get(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())

	w = get(r, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "JSONConverter")

	w = get(r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, httptest.NewRequest(http.MethodOptions, "/api/v1/trips", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestEmptyDatasetReturnsNotFound(t *testing.T) {
	r := newRouter(t, nil)
	for _, path := range []string{"/api/v1/dataset", "/api/v1/trips", "/api/v1/graph", "/api/v1/metrics/trips", "/api/v1/districts"} {
		w := get(r, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, int64(http.StatusNotFound), gjson.Get(w.Body.String(), "code").Int(), path)
	}
}

func TestDatasetMutationsRequireAdmin(t *testing.T) {
	r := newRouter(t, nil)

	w := do(r, httptest.NewRequest(http.MethodPost, "/api/v1/dataset/reload", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	viewer, err := auth.IssueToken(secret, "viewer", "viewer", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dataset/reload", nil)
	req.Header.Set("Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusForbidden, do(r, req).Code)

	reload(t, r)
	w = get(r, "/api/v1/dataset")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5), gjson.Get(w.Body.String(), "data.point_count").Int())
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "data.trip_count").Int())
}

func TestUpload(t *testing.T) {
	r := newRouter(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "trace.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(gpsCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dataset/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", adminToken(t))
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "upload:trace.csv", gjson.Get(w.Body.String(), "data.source").String())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/dataset/upload", strings.NewReader("a,b\n1,2\n"))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", adminToken(t))
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)

	big := gpsCSV + strings.Repeat("1,2024-05-01 09:00:00,10.7700,106.7000,30\n", 200)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/dataset/upload", strings.NewReader(big))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", adminToken(t))
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(r, req).Code)
}

func TestTripEndpoints(t *testing.T) {
	r := newRouter(t, nil)
	reload(t, r)

	w := get(r, "/api/v1/trips")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "data.total").Int())

	w = get(r, "/api/v1/trips/1")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, int64(3), gjson.Get(body, "data.points.#").Int())
	assert.Greater(t, gjson.Get(body, "data.metric.total_distance_km").Float(), 5.0)

	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/trips/99").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/trips/abc").Code)

	w = get(r, "/api/v1/trips/2/gpx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/gpx+xml")
	assert.Contains(t, w.Body.String(), "<trkpt")

	w = get(r, "/api/v1/metrics/trips?method=traditional")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "data.total").Int())
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/metrics/trips?method=pandas").Code)
}

func TestAnalysisEndpoints(t *testing.T) {
	r := newRouter(t, nil)
	reload(t, r)

	w := get(r, "/api/v1/performance")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "data.identical").Bool())
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/performance?traditional=false&columnar=false").Code)

	w = get(r, "/api/v1/graph")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "data.result.cluster_count").Int())

	w = get(r, "/api/v1/graph/top?metric=pagerank&n=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "data.areas.#").Int())
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/graph/top?metric=degree").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/graph/top?n=-1").Code)

	w = get(r, "/api/v1/routes/summary")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "data.#").Int())

	w = get(r, "/api/v1/routes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Quận 1", gjson.Get(w.Body.String(), "data.routes.0.start_district").String())

	w = get(r, "/api/v1/runs?analyzer=movement_graph")
	require.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, gjson.Get(w.Body.String(), "data.#").Int(), int64(1))
}

func TestMapEndpoints(t *testing.T) {
	r := newRouter(t, nil)
	reload(t, r)

	w := get(r, "/api/v1/map/layers?layers=districts,gps&trip=1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "data.layers.#").Int())

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/map/layers?layers=satellite").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/map/layers?trip=x").Code)

	w = get(r, "/api/v1/districts/geojson")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FeatureCollection", gjson.Get(w.Body.String(), "type").String())
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "features.#").Int())

	w = get(r, "/api/v1/routes/geojson")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "features.#").Int())
}

func TestRateLimitedGroup(t *testing.T) {
	r := newRouter(t, middleware.NewRateLimiter(1, time.Minute))
	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/dataset").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/api/v1/dataset").Code)
	assert.Equal(t, http.StatusOK, get(r, "/health").Code)
}
