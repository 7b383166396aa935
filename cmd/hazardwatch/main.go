// Command hazardwatch replays a route against the hazard detection engine
// from the terminal. It exists for field debugging: feed it the same route
// polyline the navigation app uses and watch which restrictions and turns
// the engine flags.
package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/twpayne/go-kml/v2"
	"go.uber.org/zap"

	"github.com/truckpilot/hazardwatch/internal/cache"
	"github.com/truckpilot/hazardwatch/internal/clients/overpass"
	"github.com/truckpilot/hazardwatch/internal/config"
	"github.com/truckpilot/hazardwatch/internal/lib/geo"
	"github.com/truckpilot/hazardwatch/internal/lib/hazard"
	"github.com/truckpilot/hazardwatch/internal/services"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "hazardwatch",
		Short: "Restriction-aware hazard detection for truck routes",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newSimulateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSimulateCmd() *cobra.Command {
	var (
		routePath string
		interval  time.Duration
		kmlOut    string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a route through the engine and print hazard alerts",
		Long: `Reads an encoded route polyline from a file, fetches restrictions along
it, then advances the vehicle vertex by vertex, printing every alert the
engine would raise. With --kml-out the route and alert positions are also
written as a KML overlay for inspection in a map viewer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(routePath, interval, kmlOut)
		},
	}

	cmd.Flags().StringVar(&routePath, "route", "", "file containing an encoded route polyline (required)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "delay between simulated position updates")
	cmd.Flags().StringVar(&kmlOut, "kml-out", "", "write route and alerts as KML to this file")
	_ = cmd.MarkFlagRequired("route")

	return cmd
}

func runSimulate(routePath string, interval time.Duration, kmlOut string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	route, err := loadRoute(routePath)
	if err != nil {
		return err
	}
	logger.Info("route loaded",
		zap.Int("vertices", len(route)),
		zap.Float64("length_km", geo.PathLength(route)/1000))

	client := overpass.NewClient(logger,
		overpass.WithEndpoint(cfg.Overpass.Endpoint),
		overpass.WithSearchRadius(cfg.Overpass.SearchRadiusMeters),
		overpass.WithSampleSpacing(cfg.Overpass.SampleSpacingMeters),
		overpass.WithTimeout(cfg.Overpass.RequestTimeout),
		overpass.WithCache(cache.New(logger), cfg.Overpass.CacheTTL))

	sink := &consoleSink{audio: cfg.Monitoring.HazardAudioEnabled}
	monitor := services.NewMonitor(client, sink, cfg.Monitoring, logger)

	profile := hazard.VehicleProfile{
		HeightMeters:    cfg.Vehicle.HeightMeters,
		WidthMeters:     cfg.Vehicle.WidthMeters,
		LengthMeters:    cfg.Vehicle.LengthMeters,
		WeightKilograms: cfg.Vehicle.WeightKilograms,
	}

	monitor.Start(route[0], route, profile)
	defer monitor.Stop()

	for _, position := range route[1:] {
		time.Sleep(interval)
		monitor.UpdateLocation(position)
		sink.notePosition(position)
	}

	fmt.Printf("simulation complete: %d alerts over %d positions\n",
		sink.alertCount(), len(route))

	if kmlOut != "" {
		if err := writeKML(kmlOut, route, sink.snapshot()); err != nil {
			return fmt.Errorf("failed to write KML overlay: %w", err)
		}
		logger.Info("KML overlay written", zap.String("path", kmlOut))
	}

	return nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadRoute reads an encoded polyline from a file and decodes it.
func loadRoute(path string) ([]geo.Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file: %w", err)
	}

	route, err := geo.DecodePolyline(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid route polyline in %s: %w", path, err)
	}
	if len(route) < 2 {
		return nil, fmt.Errorf("route in %s has fewer than 2 points", path)
	}
	return route, nil
}

// consoleSink prints alerts as they arrive and keeps them, paired with the
// position the vehicle held at the time, for the KML overlay.
type consoleSink struct {
	audio bool

	mu       sync.Mutex
	position geo.Point
	alerts   []locatedAlert
}

type locatedAlert struct {
	alert    hazard.Alert
	position geo.Point
}

func (s *consoleSink) OnNewAlert(alert hazard.Alert) {
	s.mu.Lock()
	s.alerts = append(s.alerts, locatedAlert{alert: alert, position: s.position})
	s.mu.Unlock()

	chime := ""
	if s.audio && alert.Kind.Critical() {
		chime = " \a"
	}
	road := alert.RoadName
	if road == "" {
		road = "unnamed road"
	}
	fmt.Printf("ALERT  %-18s %6.0f m ahead on %s%s\n",
		alert.Kind.Label(), alert.DistanceMeters, road, chime)
}

func (s *consoleSink) OnAlertUpdated(alert hazard.Alert) {
	fmt.Printf("update %-18s %6.0f m\n", alert.Kind.Label(), alert.DistanceMeters)
}

func (s *consoleSink) notePosition(p geo.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = p
}

func (s *consoleSink) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func (s *consoleSink) snapshot() []locatedAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]locatedAlert(nil), s.alerts...)
}

// writeKML renders the route and each alert position as a KML document.
func writeKML(path string, route []geo.Point, alerts []locatedAlert) error {
	coords := make([]kml.Coordinate, len(route))
	for i, p := range route {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}

	children := []kml.Element{
		kml.Placemark(
			kml.Name("route"),
			kml.LineString(kml.Coordinates(coords...)),
		),
	}

	for _, la := range alerts {
		children = append(children, kml.Placemark(
			kml.Name(la.alert.Kind.Label()),
			kml.Description(fmt.Sprintf("%.0f m ahead", la.alert.DistanceMeters)),
			kml.Point(kml.Coordinates(kml.Coordinate{
				Lon: la.position.Longitude,
				Lat: la.position.Latitude,
			})),
		))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return kml.KML(kml.Document(children...)).WriteIndent(f, "", "  ")
}
