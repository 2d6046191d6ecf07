package geofence

import "math"

// EarthRadiusMeters - средний радиус Земли (IUGG).
const EarthRadiusMeters = 6371008.8

// Distance возвращает расстояние по большому кругу в метрах (haversine).
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Evaluate решает, находится ли показание внутри зоны.
// Показание с точностью хуже допустимой никогда не дает Inside.
func Evaluate(loc Location, p Policy) Result {
	if !loc.Coordinate().valid() || loc.AccuracyMeters < 0 || math.IsNaN(loc.AccuracyMeters) {
		return Unavailable
	}
	if loc.AccuracyMeters > p.MaxAcceptableAccuracyMeters {
		return Unavailable
	}

	d := Distance(p.Center, loc.Coordinate())
	if d <= p.RadiusMeters+loc.AccuracyMeters*p.ToleranceFactor {
		return Inside
	}
	return Outside
}

// Evaluator оборачивает Evaluate для внедрения в машину состояний.
type Evaluator interface {
	Evaluate(loc Location, p Policy) Result
}

type HaversineEvaluator struct{}

func (HaversineEvaluator) Evaluate(loc Location, p Policy) Result {
	return Evaluate(loc, p)
}
