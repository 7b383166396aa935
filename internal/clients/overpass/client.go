// Package overpass retrieves restriction-tagged road segments near a route
// from an Overpass QL endpoint.
package overpass

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/truckpilot/hazardwatch/internal/cache"
	"github.com/truckpilot/hazardwatch/internal/lib/geo"
	"github.com/truckpilot/hazardwatch/internal/lib/hazard"
	"github.com/truckpilot/hazardwatch/internal/lib/units"
)

const (
	// DefaultEndpoint is the public Overpass API interpreter.
	DefaultEndpoint = "https://overpass-api.de/api/interpreter"

	// defaultTimeout matches the Overpass server-side query budget.
	defaultTimeout = 25 * time.Second

	// chunkSize bounds how many sample points go into one query so a long
	// route cannot produce an oversized request.
	chunkSize = 20

	// maxConcurrentChunks bounds in-flight queries against the endpoint.
	maxConcurrentChunks = 4
)

// Client queries an Overpass endpoint for road restrictions.
type Client struct {
	endpoint      string
	httpClient    *http.Client
	cache         *cache.Cache
	cacheTTL      time.Duration
	logger        *zap.Logger
	searchRadius  float64
	sampleSpacing float64
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the Overpass interpreter URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithCache enables response caching for query chunks.
func WithCache(cc *cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cc
		c.cacheTTL = ttl
	}
}

// WithSearchRadius overrides the per-sample-point search radius in meters.
func WithSearchRadius(radius float64) Option {
	return func(c *Client) { c.searchRadius = radius }
}

// WithSampleSpacing overrides the route downsampling interval in meters.
func WithSampleSpacing(spacing float64) Option {
	return func(c *Client) { c.sampleSpacing = spacing }
}

// WithTimeout overrides the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// NewClient creates an Overpass client. A nil logger disables logging.
func NewClient(logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		endpoint: DefaultEndpoint,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:        logger,
		searchRadius:  100,
		sampleSpacing: 500,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRestrictions queries restriction-tagged ways near the route and
// returns the parsed records. The route is downsampled to one point per
// sample spacing of arc length, sample points are chunked into bounded
// queries, and chunks are fetched concurrently.
//
// Failures degrade: a chunk that cannot be fetched or decoded is logged and
// dropped, and a total failure yields an empty slice. The only returned
// error is context cancellation, so a caller tearing down a session can
// tell a stale fetch from an empty corridor.
func (c *Client) FetchRestrictions(ctx context.Context, route []geo.Point) ([]hazard.RestrictionRecord, error) {
	samples := geo.Downsample(route, c.sampleSpacing)
	if len(samples) == 0 {
		return nil, nil
	}

	chunks := chunkPoints(samples, chunkSize)
	results := make([][]hazard.RestrictionRecord, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChunks)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			records, err := c.fetchChunk(gctx, chunk)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("overpass chunk query failed, dropping chunk",
					zap.Int("chunk", i), zap.Error(err))
				return nil
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := dedupe(results)
	c.logger.Info("restriction fetch complete",
		zap.Int("sample_points", len(samples)),
		zap.Int("chunks", len(chunks)),
		zap.Int("records", len(records)))
	return records, nil
}

// fetchChunk resolves one chunk of sample points, consulting the cache
// before issuing the query.
func (c *Client) fetchChunk(ctx context.Context, points []geo.Point) ([]hazard.RestrictionRecord, error) {
	query := buildQuery(points, c.searchRadius)
	cacheKey := fmt.Sprintf("overpass:%x", sha256.Sum256([]byte(query)))

	if c.cache != nil {
		var cached []hazard.RestrictionRecord
		if found, err := c.cache.Get(cacheKey, &cached); err == nil && found {
			return cached, nil
		}
	}

	body := url.Values{"data": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("overpass error %d: %s", resp.StatusCode, string(snippet))
	}

	var decoded Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	records := c.parseElements(decoded.Elements)

	if c.cache != nil {
		if err := c.cache.Set(cacheKey, records, c.cacheTTL, "overpass"); err != nil {
			c.logger.Warn("failed to cache overpass chunk", zap.Error(err))
		}
	}

	return records, nil
}

// parseElements converts returned way elements into restriction records.
// Elements whose tag values cannot be normalized are dropped; a malformed
// tag must never abort detection for the rest of the route.
func (c *Client) parseElements(elements []Element) []hazard.RestrictionRecord {
	var records []hazard.RestrictionRecord
	for _, element := range elements {
		location, ok := element.representativePoint()
		if !ok {
			continue
		}

		tunnel := element.Tags["tunnel"] == "yes"
		name := element.Tags["name"]

		for _, kind := range hazard.RestrictionKinds {
			raw, present := element.Tags[kind.TagKey()]
			if !present {
				continue
			}

			measurement, ok := normalize(kind, raw)
			if !ok {
				c.logger.Debug("dropping unparseable restriction tag",
					zap.String("tag", kind.TagKey()), zap.String("value", raw),
					zap.Int64("way", element.ID))
				continue
			}

			records = append(records, hazard.RestrictionRecord{
				Location: location,
				Kind:     kind,
				Value:    measurement.Value,
				Unit:     measurement.Unit,
				RoadName: name,
				Tunnel:   tunnel,
			})
		}
	}
	return records
}

// normalize routes a raw tag value to the parser for its restriction kind.
func normalize(kind hazard.RestrictionKind, raw string) (units.Measurement, bool) {
	switch kind {
	case hazard.MaxWeight:
		return units.ParseWeight(raw)
	case hazard.MaxGrade:
		return units.ParseIncline(raw)
	default:
		return units.ParseDimension(raw)
	}
}

// buildQuery assembles an Overpass QL query unioning, per sample point, an
// around-clause for each restriction tag key.
func buildQuery(points []geo.Point, radius float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", int(defaultTimeout.Seconds()))
	for _, p := range points {
		for _, kind := range hazard.RestrictionKinds {
			fmt.Fprintf(&b, "  way(around:%.0f,%.6f,%.6f)[\"%s\"];\n",
				radius, p.Latitude, p.Longitude, kind.TagKey())
		}
	}
	b.WriteString(");\nout tags geom;\n")
	return b.String()
}

// chunkPoints splits sample points into slices of at most size points.
func chunkPoints(points []geo.Point, size int) [][]geo.Point {
	var chunks [][]geo.Point
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		chunks = append(chunks, points[start:end])
	}
	return chunks
}

// dedupe flattens per-chunk results, keeping the first record seen for each
// way and restriction kind. Adjacent chunks overlap wherever their search
// radii touch the same way.
func dedupe(results [][]hazard.RestrictionRecord) []hazard.RestrictionRecord {
	type recordKey struct {
		lat, lon float64
		kind     hazard.RestrictionKind
	}

	seen := make(map[recordKey]bool)
	var records []hazard.RestrictionRecord
	for _, chunk := range results {
		for _, record := range chunk {
			key := recordKey{record.Location.Latitude, record.Location.Longitude, record.Kind}
			if seen[key] {
				continue
			}
			seen[key] = true
			records = append(records, record)
		}
	}
	return records
}
