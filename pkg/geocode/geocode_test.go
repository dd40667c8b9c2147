package geocode_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/chronotope/pkg/config"
	"github.com/soundprediction/chronotope/pkg/geocode"
	"github.com/soundprediction/chronotope/pkg/types"
)

func newClient(mapboxURL, nominatimURL, token string) *geocode.Client {
	return geocode.NewClient(config.GeocodeConfig{
		MapboxToken:  token,
		MapboxURL:    mapboxURL,
		NominatimURL: nominatimURL,
		UserAgent:    "chronotope-test/1.0",
		Timeout:      5,
	}, nil)
}

func TestIsPlaceholderName(t *testing.T) {
	for _, name := range []string{"unknown", "None", "N/A", "not specified", " Unspecified "} {
		assert.True(t, geocode.IsPlaceholderName(name), name)
	}
	assert.False(t, geocode.IsPlaceholderName("London"))
}

func TestLookupMapboxPoint(t *testing.T) {
	mapbox := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.EscapedPath(), "Imperial%20College%20London")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"features":[{"geometry":{"type":"Point","coordinates":[-0.179359,51.498711]}}]}`)
	}))
	defer mapbox.Close()

	client := newClient(mapbox.URL, "http://unused.invalid", "test-token")

	contexts, err := client.Lookup(context.Background(), "Imperial College London")
	require.NoError(t, err)
	require.Len(t, contexts, 1)

	sc := contexts[0]
	assert.Equal(t, "Imperial College London", sc.Name)
	assert.Equal(t, types.GeometryPoint, sc.Type)
	require.NotNil(t, sc.Point)
	assert.InDelta(t, -0.179359, sc.Point.Lon(), 1e-9)
	assert.InDelta(t, 51.498711, sc.Point.Lat(), 1e-9)
}

func TestLookupFallsBackToNominatim(t *testing.T) {
	mapbox := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features":[]}`)
	}))
	defer mapbox.Close()

	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "chronotope-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("polygon_geojson"))
		fmt.Fprint(w, `[{"lat":"51.5074","lon":"-0.1278","geojson":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]`)
	}))
	defer nominatim.Close()

	client := newClient(mapbox.URL, nominatim.URL, "test-token")

	contexts, err := client.Lookup(context.Background(), "London")
	require.NoError(t, err)
	require.Len(t, contexts, 1)

	sc := contexts[0]
	assert.Equal(t, types.GeometryPolygon, sc.Type)
	require.Len(t, sc.Polygon, 1)
	assert.Equal(t, sc.Polygon[0][0], sc.Polygon[0][len(sc.Polygon[0])-1], "ring stays closed")
}

func TestLookupNominatimLineStringFallsBackToPoint(t *testing.T) {
	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lat":"48.8584","lon":"2.2945","geojson":{"type":"LineString","coordinates":[[2.29,48.85],[2.30,48.86]]}}]`)
	}))
	defer nominatim.Close()

	client := newClient("http://unused.invalid", nominatim.URL, "")

	contexts, err := client.Lookup(context.Background(), "Seine")
	require.NoError(t, err)
	require.Len(t, contexts, 1)

	sc := contexts[0]
	assert.Equal(t, types.GeometryPoint, sc.Type)
	require.NotNil(t, sc.Point)
	assert.InDelta(t, 2.2945, sc.Point.Lon(), 1e-9)
	assert.InDelta(t, 48.8584, sc.Point.Lat(), 1e-9)
}

func TestLookupNominatimTooManyRingsFallsBackToPoint(t *testing.T) {
	// 6 polygons of one ring each needs 24 minimum vertices, over the budget
	multi := `[`
	for i := 0; i < 6; i++ {
		if i > 0 {
			multi += ","
		}
		multi += `[[[0,0],[1,0],[1,1],[0,0]]]`
	}
	multi += `]`

	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"lat":"55.0","lon":"-3.0","geojson":{"type":"MultiPolygon","coordinates":%s}}]`, multi)
	}))
	defer nominatim.Close()

	client := newClient("http://unused.invalid", nominatim.URL, "")

	contexts, err := client.Lookup(context.Background(), "United Kingdom")
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, types.GeometryPoint, contexts[0].Type)
}

func TestExpandSkipsPlaceholdersAndKeepsFailures(t *testing.T) {
	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "London" {
			fmt.Fprint(w, `[{"lat":"51.5074","lon":"-0.1278"}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer nominatim.Close()

	client := newClient("http://unused.invalid", nominatim.URL, "")

	contexts := client.Expand(context.Background(), []string{"London", "unknown", "", "Atlantis"})
	require.Len(t, contexts, 2)

	assert.Equal(t, "London", contexts[0].Name)
	require.NotNil(t, contexts[0].Point)

	assert.Equal(t, "Atlantis", contexts[1].Name)
	assert.Equal(t, types.GeometryPoint, contexts[1].Type)
	assert.Nil(t, contexts[1].Point, "unresolved names keep a nil-coordinate point")
}
