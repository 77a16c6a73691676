package trip

import (
	"fmt"
	"math"

	"github.com/triplens/service-trip-duration/internal/domain"
)

// NumFeatures is the width of the model input.
const NumFeatures = 18

// FeatureColumns is the model input schema. Order matters: it is the column order the
// model was trained on.
var FeatureColumns = [NumFeatures]string{
	"pickup_longitude",
	"pickup_latitude",
	"dropoff_longitude",
	"dropoff_latitude",
	"pickup_hour_sin",
	"pickup_hour_cos",
	"pickup_minute_sin",
	"pickup_minute_cos",
	"wd_0",
	"wd_1",
	"wd_2",
	"wd_3",
	"wd_4",
	"wd_5",
	"wd_6",
	"haversine_km",
	"bearing_sin",
	"bearing_cos",
}

// FeatureVector is one row of model input. Field order mirrors FeatureColumns.
type FeatureVector struct {
	PickupLongitude  float64
	PickupLatitude   float64
	DropoffLongitude float64
	DropoffLatitude  float64
	PickupHourSin    float64
	PickupHourCos    float64
	PickupMinuteSin  float64
	PickupMinuteCos  float64
	Weekday          WeekdayOneHot
	HaversineKm      float64
	BearingSin       float64
	BearingCos       float64
}

// Values returns the vector in schema order.
func (v FeatureVector) Values() []float64 {
	out := make([]float64, 0, NumFeatures)
	out = append(out,
		v.PickupLongitude,
		v.PickupLatitude,
		v.DropoffLongitude,
		v.DropoffLatitude,
		v.PickupHourSin,
		v.PickupHourCos,
		v.PickupMinuteSin,
		v.PickupMinuteCos,
	)
	out = append(out, v.Weekday[:]...)
	return append(out, v.HaversineKm, v.BearingSin, v.BearingCos)
}

// Named returns the vector keyed by column name.
func (v FeatureVector) Named() map[string]float64 {
	values := v.Values()
	named := make(map[string]float64, NumFeatures)
	for i, col := range FeatureColumns {
		named[col] = values[i]
	}
	return named
}

// Validate fails with a missing-feature error on the first column holding NaN or Inf.
func (v FeatureVector) Validate() error {
	for i, x := range v.Values() {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return domain.NewMissingFeatureError(FeatureColumns[i])
		}
	}
	return nil
}

// Assemble derives the model input for one observation.
func Assemble(obs *Observation) (FeatureVector, error) {
	if obs == nil {
		return FeatureVector{}, domain.NewMalformedInputError("trip observation is required")
	}

	temporal := EncodeTime(obs.PickupAt())

	distanceKm := HaversineKm(obs.PickupLat(), obs.PickupLon(), obs.DropoffLat(), obs.DropoffLon())

	// the model was trained on sin/cos of the normalized degree bearing converted back to
	// radians; keep both steps
	bearing := BearingDeg(obs.PickupLat(), obs.PickupLon(), obs.DropoffLat(), obs.DropoffLon())
	bearingSin := math.Sin(radians(bearing))
	bearingCos := math.Cos(radians(bearing))

	v := FeatureVector{
		PickupLongitude:  obs.PickupLon(),
		PickupLatitude:   obs.PickupLat(),
		DropoffLongitude: obs.DropoffLon(),
		DropoffLatitude:  obs.DropoffLat(),
		PickupHourSin:    temporal.HourSin,
		PickupHourCos:    temporal.HourCos,
		PickupMinuteSin:  temporal.MinuteSin,
		PickupMinuteCos:  temporal.MinuteCos,
		Weekday:          temporal.Weekday,
		HaversineKm:      distanceKm,
		BearingSin:       bearingSin,
		BearingCos:       bearingCos,
	}
	if err := v.Validate(); err != nil {
		return FeatureVector{}, err
	}
	return v, nil
}

// AssembleBatch assembles each observation independently, preserving order.
func AssembleBatch(observations []*Observation) ([]FeatureVector, error) {
	vectors := make([]FeatureVector, len(observations))
	for i, obs := range observations {
		v, err := Assemble(obs)
		if err != nil {
			return nil, fmt.Errorf("trip %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}
