// Package geo resolves delivery addresses to coordinates and measures the
// chargeable distance between a restaurant and the dropoff point.
package geo

import (
	"context"
	"strings"

	"github.com/tmnhat/platterly-backend/pkg/errors"
	"github.com/tmnhat/platterly-backend/pkg/maps"
)

// Location is a resolved point on the map.
type Location struct {
	Address   string
	Latitude  float64
	Longitude float64
}

// ResolvedDelivery carries everything pricing needs about a dropoff.
type ResolvedDelivery struct {
	Location   Location
	DistanceKm int
}

type mapsAPI interface {
	Geocode(ctx context.Context, address string) (*maps.GeocodedAddress, error)
	RouteDistanceKm(ctx context.Context, origin, destination maps.LatLng) (int, error)
}

type Service interface {
	ResolveDelivery(ctx context.Context, address string, origin Location) (*ResolvedDelivery, error)
}

type service struct {
	maps mapsAPI
}

func NewService(client *maps.Client) Service {
	return &service{maps: client}
}

func newServiceWithAPI(api mapsAPI) Service {
	return &service{maps: api}
}

// ResolveDelivery geocodes the free-form address and measures the routed
// distance from the restaurant. A routing failure aborts the resolution;
// an order is never priced with an estimated distance.
func (s *service) ResolveDelivery(ctx context.Context, address string, origin Location) (*ResolvedDelivery, error) {
	if s == nil || s.maps == nil {
		return nil, errors.New(errors.CodeDependency, "maps client unavailable")
	}
	if strings.TrimSpace(address) == "" {
		return nil, errors.New(errors.CodeValidation, "delivery address is required")
	}

	geocoded, err := s.maps.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	destination := maps.LatLng{
		Latitude:  geocoded.Location.Latitude,
		Longitude: geocoded.Location.Longitude,
	}
	originPoint := maps.LatLng{Latitude: origin.Latitude, Longitude: origin.Longitude}

	distanceKm, err := s.maps.RouteDistanceKm(ctx, originPoint, destination)
	if err != nil {
		return nil, err
	}

	return &ResolvedDelivery{
		Location: Location{
			Address:   geocoded.FormattedAddress,
			Latitude:  destination.Latitude,
			Longitude: destination.Longitude,
		},
		DistanceKm: distanceKm,
	}, nil
}
