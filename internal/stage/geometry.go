package stage

// Coords is a world tile position.
type Coords struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Area is an axis-aligned rectangle of tiles anchored at its south-west
// corner. Bounds are half-open.
type Area struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Contains reports whether c lies inside the area.
func (a Area) Contains(c Coords) bool {
	return c.X >= a.X && c.X < a.X+a.Width &&
		c.Y >= a.Y && c.Y < a.Y+a.Height
}

// Around returns the square area of the given radius centred on c.
func Around(c Coords, radius int) Area {
	return Area{X: c.X - radius, Y: c.Y - radius, Width: 2*radius + 1, Height: 2*radius + 1}
}

// Chebyshev returns the chessboard distance between two tiles, the number of
// single-tile steps between them when diagonal steps are allowed.
func Chebyshev(a, b Coords) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
