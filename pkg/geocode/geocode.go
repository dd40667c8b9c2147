// Package geocode resolves place names into spatial contexts. Mapbox forward
// geocoding supplies points; Nominatim supplies polygon boundaries as a
// fallback, decimated to a small fixed vertex budget.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/soundprediction/chronotope/pkg/config"
	"github.com/soundprediction/chronotope/pkg/types"
)

// Placeholder location names that should never be geocoded.
var placeholderNames = map[string]struct{}{
	"unknown":       {},
	"none":          {},
	"n/a":           {},
	"not specified": {},
	"unspecified":   {},
}

// IsPlaceholderName reports whether a location name is a placeholder rather
// than a real place.
func IsPlaceholderName(name string) bool {
	_, ok := placeholderNames[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Client geocodes place names against Mapbox and Nominatim.
type Client struct {
	cfg        config.GeocodeConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a geocoding client.
func NewClient(cfg config.GeocodeConfig, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		logger:     logger,
	}
}

// Lookup resolves a place name into spatial contexts. Mapbox is tried first
// for a point; Nominatim is the fallback and may return a decimated polygon.
// An empty slice means the name could not be resolved.
func (c *Client) Lookup(ctx context.Context, name string) ([]types.SpatialContext, error) {
	if c.cfg.MapboxToken != "" {
		sc, err := c.lookupMapbox(ctx, name)
		if err != nil {
			c.logger.Warn("mapbox geocoding failed", "name", name, "error", err)
		} else if sc != nil {
			return []types.SpatialContext{*sc}, nil
		}
	}

	sc, err := c.lookupNominatim(ctx, name)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, nil
	}
	return []types.SpatialContext{*sc}, nil
}

// Expand resolves a list of raw location names into spatial contexts,
// skipping nulls and placeholder names. Names that cannot be resolved yield
// a named point context with nil coordinates so the location is still
// recorded.
func (c *Client) Expand(ctx context.Context, names []string) []types.SpatialContext {
	var expanded []types.SpatialContext
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" || IsPlaceholderName(trimmed) {
			continue
		}

		contexts, err := c.Lookup(ctx, trimmed)
		if err != nil {
			c.logger.Warn("geocoding failed", "name", trimmed, "error", err)
		}
		if len(contexts) == 0 {
			expanded = append(expanded, types.SpatialContext{
				Name: trimmed,
				Type: types.GeometryPoint,
			})
			continue
		}
		expanded = append(expanded, contexts...)
	}
	return expanded
}

type mapboxResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates types.Position `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

func (c *Client) lookupMapbox(ctx context.Context, name string) (*types.SpatialContext, error) {
	endpoint := fmt.Sprintf("%s/%s.json?access_token=%s&limit=1",
		strings.TrimSuffix(c.cfg.MapboxURL, "/"),
		url.PathEscape(name),
		url.QueryEscape(c.cfg.MapboxToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapbox returned status %d", resp.StatusCode)
	}

	var body mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding mapbox response: %w", err)
	}
	if len(body.Features) == 0 {
		return nil, nil
	}

	point := body.Features[0].Geometry.Coordinates
	return &types.SpatialContext{
		Name:  name,
		Type:  types.GeometryPoint,
		Point: &point,
	}, nil
}

type nominatimPlace struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	GeoJSON *struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geojson"`
}

func (c *Client) lookupNominatim(ctx context.Context, name string) (*types.SpatialContext, error) {
	endpoint := fmt.Sprintf("%s?format=json&polygon_geojson=1&polygon_threshold=0&q=%s",
		strings.TrimSuffix(c.cfg.NominatimURL, "/"),
		url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decoding nominatim response: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	place := places[0]
	fallback, fallbackErr := place.pointContext(name)

	if place.GeoJSON == nil {
		return fallback, fallbackErr
	}

	switch place.GeoJSON.Type {
	case types.GeometryPolygon:
		var rings [][]types.Position
		if err := json.Unmarshal(place.GeoJSON.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("decoding polygon coordinates: %w", err)
		}
		decimated, ok := DecimatePolygons([][][]types.Position{rings})
		if !ok {
			return fallback, fallbackErr
		}
		return &types.SpatialContext{
			Name:    name,
			Type:    types.GeometryPolygon,
			Polygon: decimated[0],
		}, nil

	case types.GeometryMultiPolygon:
		var polygons [][][]types.Position
		if err := json.Unmarshal(place.GeoJSON.Coordinates, &polygons); err != nil {
			return nil, fmt.Errorf("decoding multipolygon coordinates: %w", err)
		}
		decimated, ok := DecimatePolygons(polygons)
		if !ok {
			return fallback, fallbackErr
		}
		return &types.SpatialContext{
			Name:         name,
			Type:         types.GeometryMultiPolygon,
			MultiPolygon: decimated,
		}, nil

	default:
		// LineString and anything else falls back to the place point
		return fallback, fallbackErr
	}
}

func (p nominatimPlace) pointContext(name string) (*types.SpatialContext, error) {
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing place longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing place latitude: %w", err)
	}
	point := types.Position{lon, lat}
	return &types.SpatialContext{
		Name:  name,
		Type:  types.GeometryPoint,
		Point: &point,
	}, nil
}
