package geofence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	office = Coordinate{Lat: 55.751244, Lon: 37.618423}
	// ~667 м к северу от office
	northGate = Coordinate{Lat: 55.757244, Lon: 37.618423}
)

func testPolicy() Policy {
	return Policy{
		SiteID:                      "hq",
		Center:                      office,
		RadiusMeters:                100,
		ToleranceFactor:             0.5,
		MaxAcceptableAccuracyMeters: 50,
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Coordinate
		want float64
		tol  float64
	}{
		{
			name: "same point",
			a:    office,
			b:    office,
			want: 0,
			tol:  1e-9,
		},
		{
			name: "one degree of latitude",
			a:    Coordinate{Lat: 0, Lon: 0},
			b:    Coordinate{Lat: 1, Lon: 0},
			want: 111195.08,
			tol:  1,
		},
		{
			name: "moscow to saint petersburg",
			a:    office,
			b:    Coordinate{Lat: 59.938784, Lon: 30.314997},
			want: 634_000,
			tol:  2_000,
		},
		{
			name: "antipodes",
			a:    Coordinate{Lat: 0, Lon: 0},
			b:    Coordinate{Lat: 0, Lon: 180},
			want: math.Pi * EarthRadiusMeters,
			tol:  1e-6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), tt.tol)
			assert.InDelta(t, Distance(tt.a, tt.b), Distance(tt.b, tt.a), 1e-6)
		})
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		loc    Location
		policy func() Policy
		want   Result
	}{
		{
			name:   "center of site",
			loc:    Location{Lat: office.Lat, Lon: office.Lon, AccuracyMeters: 5},
			policy: testPolicy,
			want:   Inside,
		},
		{
			name:   "far away",
			loc:    Location{Lat: northGate.Lat, Lon: northGate.Lon, AccuracyMeters: 5},
			policy: testPolicy,
			want:   Outside,
		},
		{
			name: "tolerance widens the fence",
			loc:  Location{Lat: northGate.Lat, Lon: northGate.Lon, AccuracyMeters: 40},
			policy: func() Policy {
				p := testPolicy()
				p.RadiusMeters = 650
				return p
			},
			want: Inside,
		},
		{
			name:   "accuracy worse than limit at the center",
			loc:    Location{Lat: office.Lat, Lon: office.Lon, AccuracyMeters: 50.01},
			policy: testPolicy,
			want:   Unavailable,
		},
		{
			name:   "accuracy exactly at the limit",
			loc:    Location{Lat: office.Lat, Lon: office.Lon, AccuracyMeters: 50},
			policy: testPolicy,
			want:   Inside,
		},
		{
			name:   "latitude out of range",
			loc:    Location{Lat: 91, Lon: 0, AccuracyMeters: 1},
			policy: testPolicy,
			want:   Unavailable,
		},
		{
			name:   "nan coordinate",
			loc:    Location{Lat: math.NaN(), Lon: 0, AccuracyMeters: 1},
			policy: testPolicy,
			want:   Unavailable,
		},
		{
			name:   "negative accuracy",
			loc:    Location{Lat: office.Lat, Lon: office.Lon, AccuracyMeters: -1},
			policy: testPolicy,
			want:   Unavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.loc, tt.policy()))
		})
	}
}

func TestEvaluate_LowAccuracyNeverInside(t *testing.T) {
	p := testPolicy()
	p.RadiusMeters = 10_000
	p.ToleranceFactor = 3

	for _, acc := range []float64{50.0001, 75, 200, 1_000, 50_000} {
		for _, c := range []Coordinate{office, northGate} {
			got := Evaluate(Location{Lat: c.Lat, Lon: c.Lon, AccuracyMeters: acc}, p)
			assert.Equal(t, Unavailable, got, "accuracy %v", acc)
		}
	}
}

func TestEvaluate_BoundaryInclusive(t *testing.T) {
	const accuracy, tolerance = 10.0, 0.5

	d := Distance(office, northGate)
	require.Greater(t, d, 520.0)
	require.Less(t, d, 1000.0)

	loc := Location{Lat: northGate.Lat, Lon: northGate.Lon, AccuracyMeters: accuracy}

	p := testPolicy()
	p.ToleranceFactor = tolerance
	p.RadiusMeters = d - accuracy*tolerance
	require.Equal(t, d, p.RadiusMeters+accuracy*tolerance)

	assert.Equal(t, Inside, Evaluate(loc, p), "exactly on radius+accuracy*tolerance")

	p.RadiusMeters = d - accuracy*tolerance - 1
	assert.Equal(t, Outside, Evaluate(loc, p), "one meter beyond")
}

func TestEvaluate_Deterministic(t *testing.T) {
	loc := Location{Lat: northGate.Lat, Lon: northGate.Lon, AccuracyMeters: 12}
	p := testPolicy()
	first := Evaluate(loc, p)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Evaluate(loc, p))
	}
	assert.Equal(t, first, HaversineEvaluator{}.Evaluate(loc, p))
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Policy)
		wantErr error
	}{
		{name: "valid", mutate: func(p *Policy) {}},
		{name: "empty site", mutate: func(p *Policy) { p.SiteID = "" }, wantErr: ErrEmptySiteID},
		{name: "bad center", mutate: func(p *Policy) { p.Center.Lon = 200 }, wantErr: ErrInvalidCenter},
		{name: "zero radius", mutate: func(p *Policy) { p.RadiusMeters = 0 }, wantErr: ErrInvalidRadius},
		{name: "negative tolerance", mutate: func(p *Policy) { p.ToleranceFactor = -1 }, wantErr: ErrInvalidTolerance},
		{name: "zero accuracy limit", mutate: func(p *Policy) { p.MaxAcceptableAccuracyMeters = 0 }, wantErr: ErrInvalidAccuracyLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPolicy_AllowsMethod(t *testing.T) {
	p := testPolicy()
	assert.True(t, p.AllowsMethod("qr"))

	p.AllowedMethods = []string{"geo", "kiosk_pin"}
	assert.True(t, p.AllowsMethod("kiosk_pin"))
	assert.False(t, p.AllowsMethod("qr"))
}

func TestParseResult(t *testing.T) {
	r, err := ParseResult("outside")
	require.NoError(t, err)
	assert.Equal(t, Outside, r)

	_, err = ParseResult("maybe")
	assert.ErrorIs(t, err, ErrUnknownResult)
}
