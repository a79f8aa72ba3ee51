package reputation

import "math"

// pointsPerLevelStep is the scale of the quadratic level curve.
const pointsPerLevelStep = 100

// Level returns floor(sqrt(points/100)) + 1 using integer arithmetic.
func Level(points int64) int {
	if points <= 0 {
		return 1
	}
	return int(isqrt(points/pointsPerLevelStep)) + 1
}

// PointsForLevel returns the minimum total needed to reach level l.
func PointsForLevel(l int) int64 {
	if l <= 1 {
		return 0
	}
	step := int64(l - 1)
	return step * step * pointsPerLevelStep
}

// LevelProgress describes where a total sits between two levels.
type LevelProgress struct {
	Level            int     `json:"level"`
	PointsForCurrent int64   `json:"points_for_current"`
	PointsForNext    int64   `json:"points_for_next"`
	Progress         float64 `json:"progress"`
}

// Progress returns the level of points and the fraction of the way to the
// next level, clamped to [0, 1].
func Progress(points int64) LevelProgress {
	l := Level(points)
	lo, hi := PointsForLevel(l), PointsForLevel(l+1)
	p := float64(points-lo) / float64(hi-lo)
	return LevelProgress{
		Level:            l,
		PointsForCurrent: lo,
		PointsForNext:    hi,
		Progress:         math.Max(0, math.Min(1, p)),
	}
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int64) int64 {
	if n < 2 {
		return n
	}
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
