// Command roadsnap builds a location index for a road graph and snaps
// coordinates to the closest edge.
//
//	roadsnap -graph berlin.json -store file:///var/lib/roadkit 52.52,13.40
//
// Coordinates are read from the arguments or, without arguments, one
// "lat,lon" pair per line from stdin. Results are written as JSON lines.
// Locator settings come from ROADKIT_* variables, see roadkit.Config.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/roadkit"
	"github.com/hupe1980/roadkit/geo"
	"github.com/hupe1980/roadkit/graph"
	"github.com/hupe1980/roadkit/spatial"
)

func main() {
	graphPath := flag.String("graph", "", "Path to the JSON road graph")
	envFile := flag.String("env", "", "Optional dotenv file with ROADKIT_* settings")
	storeURI := flag.String("store", "", "Blob store URI, overrides ROADKIT_STORE")
	commitTable := flag.String("commit-table", "", "DynamoDB table for versioned commits on s3:// stores")
	rebuild := flag.Bool("rebuild", false, "Ignore a persisted index and build a new one")
	metricsAddr := flag.String("metrics", "", "Address to serve Prometheus metrics on, e.g. :9090")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, runConfig{
		graphPath:   *graphPath,
		envFile:     *envFile,
		storeURI:    *storeURI,
		commitTable: *commitTable,
		rebuild:     *rebuild,
		metricsAddr: *metricsAddr,
		args:        flag.Args(),
	}, os.Stdin, os.Stdout); err != nil {
		slog.Error("roadsnap failed", "error", err)
		os.Exit(1)
	}
}

type runConfig struct {
	graphPath   string
	envFile     string
	storeURI    string
	commitTable string
	rebuild     bool
	metricsAddr string
	args        []string
}

func run(ctx context.Context, rc runConfig, stdin io.Reader, stdout io.Writer) error {
	if rc.graphPath == "" {
		return errors.New("-graph is required")
	}

	var envFiles []string
	if rc.envFile != "" {
		envFiles = append(envFiles, rc.envFile)
	}
	cfg, err := roadkit.LoadConfig(envFiles...)
	if err != nil {
		return err
	}
	if rc.storeURI != "" {
		cfg.Store = rc.storeURI
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	slog.SetDefault(logger.Logger)

	f, err := os.Open(rc.graphPath)
	if err != nil {
		return err
	}
	g, err := graph.LoadJSON(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.Store, rc.commitTable)
	if err != nil {
		return err
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts = append(opts, roadkit.WithStore(store))

	if rc.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := roadkit.NewPrometheusCollector(reg)
		if err != nil {
			return err
		}
		opts = append(opts, roadkit.WithMetricsCollector(collector))
		go serveMetrics(rc.metricsAddr, reg, logger.Logger)
	}

	loc, err := roadkit.New(g, opts...)
	if err != nil {
		return err
	}
	defer loc.Close()

	if rc.rebuild {
		err = loc.Prepare(ctx)
		if err == nil {
			err = loc.Flush(ctx)
		}
	} else {
		err = loc.LoadOrPrepare(ctx)
	}
	if err != nil {
		return err
	}

	points, err := readPoints(rc.args, stdin)
	if err != nil {
		return err
	}
	snaps, err := loc.FindClosestBatch(ctx, points, nil)
	if err != nil {
		return err
	}
	return writeSnaps(stdout, snaps)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("serving metrics", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

// readPoints parses "lat,lon" pairs from args, or from r when args is empty.
// Blank lines and lines starting with '#' are skipped.
func readPoints(args []string, r io.Reader) ([]geo.Point, error) {
	var pts []geo.Point
	add := func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" || strings.HasPrefix(s, "#") {
			return nil
		}
		p, err := parsePoint(s)
		if err != nil {
			return err
		}
		pts = append(pts, p)
		return nil
	}

	if len(args) > 0 {
		for _, a := range args {
			if err := add(a); err != nil {
				return nil, err
			}
		}
		return pts, nil
	}

	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		if err := add(sc.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return pts, sc.Err()
}

func parsePoint(s string) (geo.Point, error) {
	latS, lonS, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("coordinate %q: want lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("coordinate %q: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonS), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("coordinate %q: %w", s, err)
	}
	return geo.Point{Lat: lat, Lon: lon}, nil
}

type snapRecord struct {
	Lat      float64     `json:"lat"`
	Lon      float64     `json:"lon"`
	Edge     int32       `json:"edge"`
	Node     int32       `json:"node"`
	Distance *float64    `json:"distance_m,omitempty"`
	Snapped  *[2]float64 `json:"snapped,omitempty"`
	Position string      `json:"position,omitempty"`
}

func writeSnaps(w io.Writer, snaps []spatial.Snap) error {
	enc := gojson.NewEncoder(w)
	for _, s := range snaps {
		rec := snapRecord{Lat: s.Query.Lat, Lon: s.Query.Lon, Edge: s.EdgeID, Node: s.ClosestNode}
		if s.Valid() {
			d := s.Distance
			rec.Distance = &d
			rec.Snapped = &[2]float64{s.Snapped.Lat, s.Snapped.Lon}
			rec.Position = s.Position.String()
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
