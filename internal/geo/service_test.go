package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tmnhat/platterly-backend/pkg/errors"
	"github.com/tmnhat/platterly-backend/pkg/maps"
)

type stubMaps struct {
	geocoded   *maps.GeocodedAddress
	geocodeErr error
	distanceKm int
	routeErr   error
}

func (s *stubMaps) Geocode(_ context.Context, _ string) (*maps.GeocodedAddress, error) {
	return s.geocoded, s.geocodeErr
}

func (s *stubMaps) RouteDistanceKm(_ context.Context, _, _ maps.LatLng) (int, error) {
	return s.distanceKm, s.routeErr
}

func TestResolveDelivery(t *testing.T) {
	svc := newServiceWithAPI(&stubMaps{
		geocoded: &maps.GeocodedAddress{
			FormattedAddress: "12 Nguyen Hue, District 1, Ho Chi Minh City",
			Location:         maps.LatLng{Latitude: 10.7741, Longitude: 106.7038},
		},
		distanceKm: 5,
	})

	resolved, err := svc.ResolveDelivery(context.Background(), "12 Nguyen Hue", Location{Latitude: 10.80, Longitude: 106.72})
	require.NoError(t, err)
	require.Equal(t, 5, resolved.DistanceKm)
	require.Equal(t, "12 Nguyen Hue, District 1, Ho Chi Minh City", resolved.Location.Address)
}

func TestResolveDeliveryRequiresAddress(t *testing.T) {
	svc := newServiceWithAPI(&stubMaps{})
	_, err := svc.ResolveDelivery(context.Background(), "  ", Location{})
	require.Equal(t, errors.CodeValidation, errors.As(err).Code())
}

func TestResolveDeliveryPropagatesGeocodeError(t *testing.T) {
	svc := newServiceWithAPI(&stubMaps{
		geocodeErr: errors.New(errors.CodeValidation, "address could not be resolved to coordinates"),
	})
	_, err := svc.ResolveDelivery(context.Background(), "nowhere", Location{})
	require.Equal(t, errors.CodeValidation, errors.As(err).Code())
}

func TestResolveDeliveryFailsWhenRoutingUnavailable(t *testing.T) {
	svc := newServiceWithAPI(&stubMaps{
		geocoded: &maps.GeocodedAddress{
			Location: maps.LatLng{Latitude: 10.8231, Longitude: 106.6297},
		},
		routeErr: errors.New(errors.CodeDependency, "no route found between origin and destination"),
	})

	resolved, err := svc.ResolveDelivery(context.Background(), "somewhere", Location{Latitude: 10.7741, Longitude: 106.7038})
	require.Nil(t, resolved)
	require.Error(t, err)
	require.Equal(t, errors.CodeDependency, errors.As(err).Code())
}
