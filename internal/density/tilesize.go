package density

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultTargetPoints is the point budget a single tile is sized for.
const DefaultTargetPoints = 1_500_000

// ErrDegenerateDensity is returned when no usable tile edge can be derived.
var ErrDegenerateDensity = errors.New("degenerate point density")

// TileSize derives a square tile edge from the highest density so that a
// tile holds about target points, halved for headroom and rounded to the
// nearest 10 (ties away from zero).
func TileSize(densities []float64, target float64) (int, error) {
	if len(densities) == 0 {
		return 0, fmt.Errorf("%w: no density samples", ErrDegenerateDensity)
	}
	if target <= 0 {
		return 0, fmt.Errorf("%w: target points %g", ErrDegenerateDensity, target)
	}
	for _, d := range densities {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return 0, fmt.Errorf("%w: non-finite density %g", ErrDegenerateDensity, d)
		}
	}

	maxDensity := floats.Max(densities)
	if maxDensity <= 0 {
		return 0, fmt.Errorf("%w: max density %g", ErrDegenerateDensity, maxDensity)
	}

	edge := 0.5 * math.Sqrt(target/maxDensity)
	size := math.Round(edge/10) * 10
	if size <= 0 {
		return 0, fmt.Errorf("%w: tile edge %g rounds to zero", ErrDegenerateDensity, edge)
	}
	if size > math.MaxInt32 {
		return 0, fmt.Errorf("%w: tile edge %g too large", ErrDegenerateDensity, edge)
	}
	return int(size), nil
}

// Summary describes a set of density samples.
type Summary struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
	Std   float64
}

// Summarize computes descriptive statistics over densities.
func Summarize(densities []float64) Summary {
	if len(densities) == 0 {
		return Summary{}
	}
	s := Summary{
		Count: len(densities),
		Min:   floats.Min(densities),
		Max:   floats.Max(densities),
	}
	s.Mean, s.Std = stat.MeanStdDev(densities, nil)
	if len(densities) == 1 {
		s.Std = 0
	}
	return s
}
