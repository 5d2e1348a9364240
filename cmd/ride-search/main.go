// README: Command-line ride search; prints the search response as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"boleia/internal/clock"
	"boleia/internal/config"
	"boleia/internal/infra"
	"boleia/internal/log"
	"boleia/internal/modules/matching"
	"boleia/internal/modules/ride"
	"boleia/internal/types"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitInvalid = 2
)

// sourceOpener connects to the ride inventory; the returned func releases it.
type sourceOpener func(ctx context.Context, cfg config.Config) (matching.RideSource, func(), error)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, openPostgres)
	cancel()
	os.Exit(code)
}

func openPostgres(ctx context.Context, cfg config.Config) (matching.RideSource, func(), error) {
	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	return ride.NewStore(pool, cfg.Location), pool.Close, nil
}

type options struct {
	from, to         string
	fromLat, fromLng float64
	toLat, toLng     float64
	radius           float64
	max              int
	pretty           bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("ride-search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.from, "from", "", "origin (city, province or address)")
	fs.StringVar(&o.to, "to", "", "destination (city, province or address)")
	fs.Float64Var(&o.fromLat, "from-lat", math.NaN(), "origin latitude")
	fs.Float64Var(&o.fromLng, "from-lng", math.NaN(), "origin longitude")
	fs.Float64Var(&o.toLat, "to-lat", math.NaN(), "destination latitude")
	fs.Float64Var(&o.toLng, "to-lng", math.NaN(), "destination longitude")
	fs.Float64Var(&o.radius, "radius", 0, "nearby radius in km (default from config)")
	fs.IntVar(&o.max, "max", 0, "maximum results (default from config)")
	fs.BoolVar(&o.pretty, "pretty", false, "indent JSON output")
	err := fs.Parse(args)
	return o, err
}

func coords(lat, lng float64) *types.Point {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return nil
	}
	return &types.Point{Lat: lat, Lng: lng}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, open sourceOpener) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return exitInvalid
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}
	logger := log.New(log.Config{Level: cfg.Log.Level, Pretty: true, ServiceName: "ride-search"}, stderr)
	ctx = log.WithLogger(ctx, logger)

	source, closeSource, err := open(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("open ride store")
		return exitFailure
	}
	defer closeSource()

	svc := matching.NewService(source, clock.RealClock{}, cfg.Matching)
	resp, err := svc.Search(ctx, matching.Query{
		From:       o.from,
		To:         o.to,
		FromCoords: coords(o.fromLat, o.fromLng),
		ToCoords:   coords(o.toLat, o.toLng),
		RadiusKm:   o.radius,
		MaxResults: o.max,
	})
	if errors.Is(err, matching.ErrInvalidQuery) {
		fmt.Fprintln(stderr, err)
		return exitInvalid
	}
	if err != nil {
		logger.Error().Err(err).Msg("search")
		return exitFailure
	}

	enc := json.NewEncoder(stdout)
	if o.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(resp); err != nil {
		logger.Error().Err(err).Msg("encode response")
		return exitFailure
	}
	return exitOK
}
