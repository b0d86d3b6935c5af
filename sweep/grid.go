package sweep

// The threshold grid is shared by every sweep so results stay comparable
// across datasets and runs.
const (
	// GridSize is the number of thresholds in the grid.
	GridSize = 100
	// GridStep is the spacing between consecutive thresholds.
	GridStep = 0.01
	// FloorIndex is the lowest grid index the selector may choose
	// automatically; thresholds below Grid()[FloorIndex] are never
	// auto-selected.
	FloorIndex = 10
)

// Grid returns the GridSize thresholds 0, 0.01, ..., 0.99.
func Grid() []float64 {
	g := make([]float64, GridSize)
	for i := range g {
		g[i] = float64(i) / GridSize
	}
	return g
}

// IndexOf returns the grid index nearest to threshold, clamped to the grid.
func IndexOf(threshold float64) int {
	i := int(threshold/GridStep + 0.5)
	if i < 0 {
		return 0
	}
	if i >= GridSize {
		return GridSize - 1
	}
	return i
}
