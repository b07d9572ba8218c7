// Command geoctl prepares the synthetic datasets served by the dashboard.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/jengzang/geo-dashboard/internal/analysis/tripmetrics"
	"github.com/jengzang/geo-dashboard/internal/auth"
	"github.com/jengzang/geo-dashboard/internal/config"
	"github.com/jengzang/geo-dashboard/internal/dataset"
	"github.com/jengzang/geo-dashboard/internal/generator"
	"github.com/jengzang/geo-dashboard/internal/logger"
)

func main() {
	log.SetFlags(0)
	app := &cli.App{
		Name:  "geoctl",
		Usage: "Generate bus stops, routes and GPS traces for the geo dashboard",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "seed", Usage: "random seed", Value: 42},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Before: func(c *cli.Context) error {
			_, err := logger.Init(config.ObservabilityConfig{
				ServiceName: "geoctl",
				LogLevel:    c.String("log-level"),
				LogFormat:   "console",
			})
			return err
		},
		Commands: []*cli.Command{
			stopsCommand(),
			routesCommand(),
			gpsCommand(),
			benchCommand(),
			tokenCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func stopsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stops",
		Usage: "Extract bus stops from an OpenStreetMap GeoJSON export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "osm", Usage: "OSM GeoJSON file", Required: true},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "bus_stops.csv"},
		},
		Action: func(c *cli.Context) error {
			fc, err := readFeatureCollection(c.String("osm"))
			if err != nil {
				return err
			}
			stops := generator.ExtractBusStops(fc)
			if err := writeFile(c.String("out"), func(f *os.File) error { return dataset.WriteBusStops(f, stops) }); err != nil {
				return err
			}
			logger.L().Info("Bus stops written", zap.Int("count", len(stops)), zap.String("out", c.String("out")))
			return nil
		},
	}
}

func routesCommand() *cli.Command {
	return &cli.Command{
		Name:  "routes",
		Usage: "Chain random bus stops into route segments",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "stops", Value: "bus_stops.csv"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "bus_routes.csv"},
			&cli.IntFlag{Name: "num", Value: 10, Usage: "number of routes"},
			&cli.IntFlag{Name: "min-stops", Value: 5},
			&cli.IntFlag{Name: "max-stops", Value: 15},
		},
		Action: func(c *cli.Context) error {
			if c.Int("min-stops") < 0 || c.Int("max-stops") < c.Int("min-stops") {
				return fmt.Errorf("invalid stop bounds %d..%d", c.Int("min-stops"), c.Int("max-stops"))
			}
			f, err := os.Open(c.String("stops"))
			if err != nil {
				return fmt.Errorf("failed to open stops: %w", err)
			}
			defer f.Close()
			stops, err := dataset.ReadBusStops(f)
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(c.Uint64("seed")))
			segments := generator.RandomBusRoutes(stops, c.Int("num"), c.Int("min-stops"), c.Int("max-stops"), rng)
			if err := writeFile(c.String("out"), func(f *os.File) error { return dataset.WriteSegments(f, segments) }); err != nil {
				return err
			}
			logger.L().Info("Route segments written", zap.Int("count", len(segments)), zap.String("out", c.String("out")))
			return nil
		},
	}
}

func gpsCommand() *cli.Command {
	defaults := generator.DefaultTripOptions()
	return &cli.Command{
		Name:  "gps",
		Usage: "Simulate vehicles along the road network between route segments",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "roads", Usage: "road network GeoJSON", Required: true},
			&cli.StringFlag{Name: "routes", Value: "bus_routes.csv"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "fake_hcmc_road_gps_data.csv"},
			&cli.Float64Flag{Name: "min-speed", Value: defaults.MinSpeedKmh},
			&cli.Float64Flag{Name: "max-speed", Value: defaults.MaxSpeedKmh},
			&cli.DurationFlag{Name: "interval", Value: defaults.Interval},
			&cli.Float64Flag{Name: "noise", Value: defaults.NoiseMeters, Usage: "GPS noise in meters"},
		},
		Action: func(c *cli.Context) error {
			fc, err := readFeatureCollection(c.String("roads"))
			if err != nil {
				return err
			}
			net, err := generator.LoadRoadNetwork(fc)
			if err != nil {
				return err
			}

			f, err := os.Open(c.String("routes"))
			if err != nil {
				return fmt.Errorf("failed to open routes: %w", err)
			}
			segments, err := dataset.ReadSegments(f)
			f.Close()
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(len(segments),
				progressbar.OptionSetDescription("Simulating trips"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "=",
					SaucerHead:    ">",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)

			opts := defaults
			opts.MinSpeedKmh = c.Float64("min-speed")
			opts.MaxSpeedKmh = c.Float64("max-speed")
			opts.Interval = c.Duration("interval")
			opts.NoiseMeters = c.Float64("noise")
			opts.Progress = func(done, total int) { _ = bar.Set(done) }

			rng := rand.New(rand.NewSource(c.Uint64("seed")))
			points := generator.GenerateTrips(net, segments, opts, rng)
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)

			if err := writeFile(c.String("out"), func(f *os.File) error { return dataset.WriteGPS(f, points) }); err != nil {
				return err
			}
			logger.L().Info("GPS trace written",
				zap.Int("nodes", net.Len()),
				zap.Int("segments", len(segments)),
				zap.Int("points", len(points)),
				zap.String("out", c.String("out")))
			return nil
		},
	}
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Compare the traditional and columnar trip metric methods",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "gps", Value: "fake_hcmc_road_gps_data.csv"},
			&cli.IntFlag{Name: "workers", Value: config.Defaults().Analysis.Workers},
		},
		Action: func(c *cli.Context) error {
			points, err := dataset.LoadGPSFile(c.String("gps"))
			if err != nil {
				return err
			}
			cmp := tripmetrics.Compare(points, true, true, c.Int("workers"))
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Traditional interface{} `json:"traditional_timings"`
				Columnar    interface{} `json:"columnar_timings"`
				Speedup     float64     `json:"speedup"`
				Identical   *bool       `json:"identical"`
				Trips       int         `json:"trips"`
			}{cmp.Traditional.Timings, cmp.Columnar.Timings, cmp.Speedup, cmp.Identical, len(cmp.Columnar.Metrics)})
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an admin bearer token for the dataset endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret", EnvVars: []string{"GEODASH_AUTH_JWT_SECRET"}, Required: true},
			&cli.StringFlag{Name: "subject", Value: "admin"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
		},
		Action: func(c *cli.Context) error {
			token, err := auth.IssueToken(c.String("secret"), c.String("subject"), auth.RoleAdmin, c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return fc, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
