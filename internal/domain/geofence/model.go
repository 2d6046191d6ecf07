package geofence

import (
	"fmt"
	"math"
)

type Result string

const (
	Inside      Result = "inside"
	Outside     Result = "outside"
	Unavailable Result = "unavailable"
)

func (r Result) Valid() bool {
	switch r {
	case Inside, Outside, Unavailable:
		return true
	}
	return false
}

func ParseResult(s string) (Result, error) {
	r := Result(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownResult, s)
	}
	return r, nil
}

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location - показание LocationProvider.
type Location struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	AccuracyMeters float64 `json:"accuracy_meters"`
}

func (l Location) Coordinate() Coordinate {
	return Coordinate{Lat: l.Lat, Lon: l.Lon}
}

func (c Coordinate) valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Policy описывает круговую зону площадки.
type Policy struct {
	SiteID                      string     `json:"site_id" mapstructure:"site_id"`
	Center                      Coordinate `json:"center" mapstructure:"center"`
	RadiusMeters                float64    `json:"radius_meters" mapstructure:"radius_meters"`
	AllowedMethods              []string   `json:"allowed_methods" mapstructure:"allowed_methods"`
	ToleranceFactor             float64    `json:"tolerance_factor" mapstructure:"tolerance_factor"`
	MaxAcceptableAccuracyMeters float64    `json:"max_acceptable_accuracy_meters" mapstructure:"max_acceptable_accuracy_meters"`
}

func (p Policy) Validate() error {
	if p.SiteID == "" {
		return ErrEmptySiteID
	}
	if !p.Center.valid() {
		return ErrInvalidCenter
	}
	if p.RadiusMeters <= 0 || math.IsNaN(p.RadiusMeters) {
		return ErrInvalidRadius
	}
	if p.ToleranceFactor < 0 || math.IsNaN(p.ToleranceFactor) {
		return ErrInvalidTolerance
	}
	if p.MaxAcceptableAccuracyMeters <= 0 || math.IsNaN(p.MaxAcceptableAccuracyMeters) {
		return ErrInvalidAccuracyLimit
	}
	return nil
}

// AllowsMethod - пустой список разрешает любой способ.
func (p Policy) AllowsMethod(kind string) bool {
	if len(p.AllowedMethods) == 0 {
		return true
	}
	for _, m := range p.AllowedMethods {
		if m == kind {
			return true
		}
	}
	return false
}
