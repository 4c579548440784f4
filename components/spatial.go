package components

import (
	"fmt"
	"strconv"
	"strings"
)

// GridPos identifies a cell by its integer grid coordinates.
type GridPos struct {
	X, Y int
}

// String renders the position as "x,y", the key format of cell record files.
func (p GridPos) String() string {
	return strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y)
}

// ParseGridPos parses an "x,y" key.
func ParseGridPos(s string) (GridPos, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return GridPos{}, fmt.Errorf("cell key %q: want \"x,y\"", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return GridPos{}, fmt.Errorf("cell key %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return GridPos{}, fmt.Errorf("cell key %q: %w", s, err)
	}
	return GridPos{X: x, Y: y}, nil
}
