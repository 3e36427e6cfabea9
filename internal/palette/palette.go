// Package palette maps classifier confidence to the visualizer background.
package palette

import (
	"fmt"
	"math"
)

type RGB struct {
	R, G, B uint8
}

var (
	Low  = RGB{R: 250, G: 210, B: 210} // #FAD2D2
	High = RGB{R: 230, G: 210, B: 250} // #E6D2FA
)

// For interpolates each channel linearly from Low at 0 to High at 1.
func For(confidence float64) RGB {
	return RGB{
		R: lerp(Low.R, High.R, confidence),
		G: lerp(Low.G, High.G, confidence),
		B: lerp(Low.B, High.B, confidence),
	}
}

func (c RGB) CSS() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

func lerp(low, high uint8, t float64) uint8 {
	v := float64(low) + (float64(high)-float64(low))*t
	return uint8(math.Floor(v + 0.5))
}
