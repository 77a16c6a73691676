package trip

import (
	"fmt"
	"time"

	"github.com/triplens/service-trip-duration/internal/domain"
)

// Coordinate bounds in degrees.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Observation is the immutable input of a single trip prediction.
type Observation struct {
	pickupLat  float64
	pickupLon  float64
	dropoffLat float64
	dropoffLon float64
	pickupAt   time.Time
}

// NewObservation validates raw trip endpoints and the ISO-8601 pickup timestamp.
func NewObservation(pickupLat, pickupLon, dropoffLat, dropoffLon float64, pickupDatetime string) (*Observation, error) {
	pickupAt, err := ParsePickupTime(pickupDatetime)
	if err != nil {
		return nil, err
	}
	return NewObservationAt(pickupLat, pickupLon, dropoffLat, dropoffLon, pickupAt)
}

// NewObservationAt is NewObservation for an already parsed pickup instant.
func NewObservationAt(pickupLat, pickupLon, dropoffLat, dropoffLon float64, pickupAt time.Time) (*Observation, error) {
	if err := checkLatitude("pickup_lat", pickupLat); err != nil {
		return nil, err
	}
	if err := checkLongitude("pickup_lon", pickupLon); err != nil {
		return nil, err
	}
	if err := checkLatitude("dropoff_lat", dropoffLat); err != nil {
		return nil, err
	}
	if err := checkLongitude("dropoff_lon", dropoffLon); err != nil {
		return nil, err
	}
	if pickupAt.IsZero() {
		return nil, domain.NewMalformedInputError("pickup_datetime is required")
	}

	return &Observation{
		pickupLat:  pickupLat,
		pickupLon:  pickupLon,
		dropoffLat: dropoffLat,
		dropoffLon: dropoffLon,
		pickupAt:   pickupAt.UTC(),
	}, nil
}

func checkLatitude(field string, v float64) error {
	// written as a negated conjunction so NaN is rejected too
	if !(v >= MinLatitude && v <= MaxLatitude) {
		return domain.NewMalformedInputError(fmt.Sprintf("%s must be between %v and %v", field, MinLatitude, MaxLatitude))
	}
	return nil
}

func checkLongitude(field string, v float64) error {
	if !(v >= MinLongitude && v <= MaxLongitude) {
		return domain.NewMalformedInputError(fmt.Sprintf("%s must be between %v and %v", field, MinLongitude, MaxLongitude))
	}
	return nil
}

func (o *Observation) PickupLat() float64  { return o.pickupLat }
func (o *Observation) PickupLon() float64  { return o.pickupLon }
func (o *Observation) DropoffLat() float64 { return o.dropoffLat }
func (o *Observation) DropoffLon() float64 { return o.dropoffLon }
func (o *Observation) PickupAt() time.Time { return o.pickupAt }
