package trip

import (
	"math"
	"time"

	"github.com/triplens/service-trip-duration/internal/domain"
)

// DaysPerWeek is the width of the weekday one-hot encoding.
const DaysPerWeek = 7

// WeekdayOneHot flags the pickup weekday, Monday at index 0.
type WeekdayOneHot [DaysPerWeek]float64

// Index returns the position of the set flag, or -1 if none is set.
func (w WeekdayOneHot) Index() int {
	for i, v := range w {
		if v == 1 {
			return i
		}
	}
	return -1
}

// TemporalFeatures is the cyclical encoding of a pickup instant.
type TemporalFeatures struct {
	HourSin   float64
	HourCos   float64
	MinuteSin float64
	MinuteCos float64
	Weekday   WeekdayOneHot
}

var pickupLayouts = buildPickupLayouts()

func buildPickupLayouts() []string {
	zones := []string{"Z07:00", "Z0700", "Z07", ""}

	var layouts []string
	// extended format: 2016-01-15T18:30:00+05:00
	for _, sep := range []string{"T", " "} {
		for _, clock := range []string{"15:04:05", "15:04", "15"} {
			for _, zone := range zones {
				layouts = append(layouts, "2006-01-02"+sep+clock+zone)
			}
		}
	}
	// basic format: 20160115T183000+0500
	for _, clock := range []string{"150405", "1504", "15"} {
		for _, zone := range zones {
			layouts = append(layouts, "20060102T"+clock+zone)
		}
	}
	return append(layouts, "2006-01-02", "20060102")
}

// ParsePickupTime parses an ISO-8601 timestamp and normalizes it to UTC.
// Timestamps without a zone are taken to be UTC already.
func ParsePickupTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range pickupLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, domain.NewMalformedInputError(
		"pickup_datetime must be ISO-8601 format (e.g. 2016-01-15T18:30:00 or 2016-01-15T18:30:00Z)",
	).Wrap(lastErr)
}

// EncodeTime derives the cyclical hour/minute encoding and the weekday one-hot vector
// from the UTC wall clock of t.
func EncodeTime(t time.Time) TemporalFeatures {
	t = t.UTC()
	hour := float64(t.Hour())
	minute := float64(t.Minute())

	var f TemporalFeatures
	f.HourSin = math.Sin(2 * math.Pi * hour / 24)
	f.HourCos = math.Cos(2 * math.Pi * hour / 24)
	f.MinuteSin = math.Sin(2 * math.Pi * minute / 60)
	f.MinuteCos = math.Cos(2 * math.Pi * minute / 60)
	f.Weekday[weekdayIndex(t.Weekday())] = 1
	return f
}

// weekdayIndex maps time.Weekday (Sunday=0) onto a Monday=0 index.
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % DaysPerWeek
}
