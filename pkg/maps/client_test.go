package maps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("   ")
	require.ErrorIs(t, err, errAPIKeyRequired)
}

func TestGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/geocode/json", r.URL.Path)
		require.Equal(t, "12 Nguyen Hue, District 1", r.URL.Query().Get("address"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{{
				"place_id":          "place-1",
				"formatted_address": "12 Nguyen Hue, District 1, Ho Chi Minh City",
				"geometry": map[string]any{
					"location": map[string]any{"lat": 10.7741, "lng": 106.7038},
				},
			}},
		})
	}))
	defer srv.Close()

	client, err := NewClient("key", WithGeocodeBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	got, err := client.Geocode(context.Background(), "12 Nguyen Hue, District 1")
	require.NoError(t, err)
	require.Equal(t, "place-1", got.PlaceID)
	require.InDelta(t, 10.7741, got.Location.Latitude, 1e-9)
	require.InDelta(t, 106.7038, got.Location.Longitude, 1e-9)
}

func TestGeocodeZeroResultsIsValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ZERO_RESULTS", "results": []any{}})
	}))
	defer srv.Close()

	client, err := NewClient("key", WithGeocodeBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = client.Geocode(context.Background(), "nowhere at all")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestRouteDistanceKmRoundsUp(t *testing.T) {
	cases := []struct {
		meters int
		wantKm int
	}{
		{meters: 1000, wantKm: 1},
		{meters: 1001, wantKm: 2},
		{meters: 4999, wantKm: 5},
		{meters: 5000, wantKm: 5},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/directions/v2:computeRoutes", r.URL.Path)
			require.Equal(t, "key", r.Header.Get("X-Goog-Api-Key"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"routes": []map[string]any{{"distanceMeters": tc.meters}},
			})
		}))

		client, err := NewClient("key", WithRoutesBaseURL(srv.URL), WithHTTPClient(srv.Client()))
		require.NoError(t, err)

		km, err := client.RouteDistanceKm(context.Background(), LatLng{Latitude: 10.77, Longitude: 106.70}, LatLng{Latitude: 10.80, Longitude: 106.72})
		require.NoError(t, err)
		require.Equal(t, tc.wantKm, km, "meters=%d", tc.meters)
		srv.Close()
	}
}

func TestRouteDistanceKmNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"routes": []any{}})
	}))
	defer srv.Close()

	client, err := NewClient("key", WithRoutesBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = client.RouteDistanceKm(context.Background(), LatLng{}, LatLng{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeDependency, typed.Code())
}
