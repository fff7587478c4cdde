package signing

import (
	"fmt"
	"math"
)

// Position places the visible signature stamp on a document page.
type Position struct {
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// Validate requires page >= 1 and non-negative, finite coordinates.
func (p Position) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("%w: page must be at least 1", ErrInvalidPosition)
	}
	coords := []struct {
		name string
		v    float64
	}{{"x", p.X}, {"y", p.Y}, {"size", p.Size}}
	for _, c := range coords {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) || c.v < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidPosition, c.name)
		}
	}
	return nil
}
