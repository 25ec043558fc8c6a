package pathfind

// CostModel scores a partial route. Lower scores are expanded first.
type CostModel interface {
	Score(distance, structureCost, crowFlies float64, steps, turns int) float64
}

// CostFunc adapts a plain function to CostModel.
type CostFunc func(distance, structureCost, crowFlies float64, steps, turns int) float64

func (f CostFunc) Score(distance, structureCost, crowFlies float64, steps, turns int) float64 {
	return f(distance, structureCost, crowFlies, steps, turns)
}

// Standard sums every component unweighted. A direction change costs 1.
var Standard CostModel = CostFunc(func(distance, structureCost, crowFlies float64, steps, turns int) float64 {
	return distance + structureCost + crowFlies + float64(steps) + float64(turns)
})

// NoExtras ignores structure cost and turns. Used for straight-line estimates.
var NoExtras CostModel = CostFunc(func(distance, _ float64, crowFlies float64, steps, _ int) float64 {
	return distance + crowFlies + float64(steps)
})
