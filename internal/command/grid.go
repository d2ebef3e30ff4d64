package command

import "math"

// GridExtent is the half-width of the logical grid: coordinates span
// [-GridExtent, GridExtent] on both axes.
const GridExtent = 100

// Grid maps a point on the coordinate widget to four opposing outputs.
// A positive X drives Right, a negative X drives Left; Y drives Top/Bottom.
type Grid struct {
	Right  int `json:"right"`
	Top    int `json:"top"`
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
}

// Pins returns the grid pins in wire order: right, top, left, bottom.
func (g Grid) Pins() []int {
	return []int{g.Right, g.Top, g.Left, g.Bottom}
}

// Magnitude converts a coordinate to an output level: round(|c|/100*255).
// Coordinates beyond the grid saturate at MaxValue.
func Magnitude(c float64) int {
	c = math.Abs(clampCoord(c))
	return int(math.Round(c / GridExtent * MaxValue))
}

// VSet returns the request equivalent to point (x, y). The pin opposite to
// the sign of each axis receives 0.
func (g Grid) VSet(x, y float64, settling int) VSet {
	values := []int{0, 0, 0, 0}
	if x >= 0 {
		values[0] = Magnitude(x)
	} else {
		values[2] = Magnitude(x)
	}
	if y >= 0 {
		values[1] = Magnitude(y)
	} else {
		values[3] = Magnitude(y)
	}
	return VSet{Pins: g.Pins(), Values: values, Settling: settling}
}

// Zero returns the request that drives all grid pins to 0.
func (g Grid) Zero(settling int) VSet {
	return VSet{Pins: g.Pins(), Values: []int{0, 0, 0, 0}, Settling: settling}
}

// ClickToCoord converts a click at pixel offset (px, py) inside a square widget
// of the given size to logical coordinates snapped to resolution. Y grows upward.
func ClickToCoord(px, py, size float64, resolution int) (x, y int) {
	if size <= 0 {
		return 0, 0
	}
	if resolution < 1 {
		resolution = 1
	}
	res := float64(resolution)
	steps := 2 * GridExtent / res
	x = int(math.Round(px/size*steps)*res) - GridExtent
	y = GridExtent - int(math.Round(py/size*steps)*res)
	return int(clampCoord(float64(x))), int(clampCoord(float64(y)))
}

func clampCoord(c float64) float64 {
	switch {
	case c > GridExtent:
		return GridExtent
	case c < -GridExtent:
		return -GridExtent
	}
	return c
}
