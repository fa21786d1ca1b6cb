package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"copa-dashboard/models"

	"github.com/apex/log"
	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// NeighborhoodsService caches the San Francisco neighborhood polygons from
// the city's public geodata feed. The cache is read-heavy: it loads once at
// startup (with an optional local file fallback) and serves map overlays and
// point-in-polygon lookups from memory.
type NeighborhoodsService struct {
	feedURL  string
	filePath string
	client   *http.Client

	mutex    sync.RWMutex
	features []*geojson.Feature
	shapes   []orb.Geometry
	names    []string
	loaded   bool
}

// NewNeighborhoodsService creates a new neighborhoods service
func NewNeighborhoodsService(feedURL, filePath string) *NeighborhoodsService {
	return &NeighborhoodsService{
		feedURL:  feedURL,
		filePath: filePath,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Load fetches and parses the neighborhood feed. When the feed is down and a
// local file is configured, the file is used instead so the dashboard can
// still start.
func (s *NeighborhoodsService) Load(ctx context.Context) error {
	data, err := s.fetchFeed(ctx)
	if err != nil {
		if s.filePath == "" {
			return err
		}
		log.Warnf("Neighborhood feed unavailable, falling back to %s: %v", s.filePath, err)
		data, err = os.ReadFile(s.filePath)
		if err != nil {
			return fmt.Errorf("failed to read neighborhoods file: %w", err)
		}
	}

	collection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("failed to parse neighborhoods GeoJSON: %w", err)
	}

	features := make([]*geojson.Feature, 0, len(collection.Features))
	shapes := make([]orb.Geometry, 0, len(collection.Features))
	names := make([]string, 0, len(collection.Features))
	for _, feature := range collection.Features {
		name := featureName(feature)
		if name == "" {
			log.Warnf("Skipping neighborhood feature without a name")
			continue
		}
		shape := orbGeometry(feature.Geometry)
		if shape == nil {
			log.Warnf("Skipping neighborhood %s with unsupported geometry", name)
			continue
		}
		features = append(features, feature)
		shapes = append(shapes, shape)
		names = append(names, name)
	}
	sort.Strings(names)

	s.mutex.Lock()
	s.features = features
	s.shapes = shapes
	s.names = names
	s.loaded = true
	s.mutex.Unlock()

	log.Infof("Loaded %d neighborhoods", len(features))
	return nil
}

func (s *NeighborhoodsService) fetchFeed(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch neighborhood feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("neighborhood feed returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// IsLoaded returns whether the neighborhood data has been loaded
func (s *NeighborhoodsService) IsLoaded() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.loaded
}

// Names returns the neighborhood names sorted alphabetically.
func (s *NeighborhoodsService) Names() ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.loaded {
		return nil, fmt.Errorf("neighborhoods not loaded yet")
	}
	return append([]string{}, s.names...), nil
}

// All returns every neighborhood with its polygon geometry for map overlays.
func (s *NeighborhoodsService) All() ([]models.Neighborhood, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.loaded {
		return nil, fmt.Errorf("neighborhoods not loaded yet")
	}

	neighborhoods := make([]models.Neighborhood, 0, len(s.features))
	for _, feature := range s.features {
		geometry, err := json.Marshal(feature.Geometry)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal neighborhood geometry: %w", err)
		}
		neighborhoods = append(neighborhoods, models.Neighborhood{
			Name:     featureName(feature),
			Geometry: geometry,
		})
	}
	return neighborhoods, nil
}

// FindNeighborhood returns the name of the neighborhood containing the given
// point, or "" when the point falls outside every polygon.
func (s *NeighborhoodsService) FindNeighborhood(lat, lng float64) string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	point := orb.Point{lng, lat}
	for i, shape := range s.shapes {
		switch geometry := shape.(type) {
		case orb.Polygon:
			if planar.PolygonContains(geometry, point) {
				return featureName(s.features[i])
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(geometry, point) {
				return featureName(s.features[i])
			}
		}
	}
	return ""
}

func featureName(feature *geojson.Feature) string {
	for _, key := range []string{"name", "nhood", "neighborhood"} {
		if name, err := feature.PropertyString(key); err == nil && name != "" {
			return name
		}
	}
	return ""
}

// orbGeometry converts a parsed GeoJSON geometry into its orb counterpart so
// containment checks run against prebuilt rings. Coordinates stay [lng, lat].
func orbGeometry(geometry *geojson.Geometry) orb.Geometry {
	switch {
	case geometry == nil:
		return nil
	case geometry.IsPolygon():
		return orbPolygon(geometry.Polygon)
	case geometry.IsMultiPolygon():
		multi := make(orb.MultiPolygon, 0, len(geometry.MultiPolygon))
		for _, polygon := range geometry.MultiPolygon {
			multi = append(multi, orbPolygon(polygon))
		}
		return multi
	}
	return nil
}

func orbPolygon(rings [][][]float64) orb.Polygon {
	polygon := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		converted := make(orb.Ring, 0, len(ring))
		for _, coord := range ring {
			converted = append(converted, orb.Point{coord[0], coord[1]})
		}
		polygon = append(polygon, converted)
	}
	return polygon
}
