package viz

import (
	"math"
	"strings"
)

// Braille cells hold 2x4 dots; dotBits[y][x] is the bit for each dot,
// added to the blank pattern U+2800.
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

const blankBraille = 0x2800

// Canvas is a Braille dot grid of Width x Height characters, addressed in
// dots (2*Width by 4*Height) with y growing downwards.
type Canvas struct {
	Width, Height int
	cells         [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, cells: make([][]rune, h)}
	for j := range c.cells {
		c.cells[j] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Clear() {
	for j := range c.cells {
		for i := range c.cells[j] {
			c.cells[j][i] = blankBraille
		}
	}
}

// Set turns on the dot at (x, y). Dots outside the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= 2*c.Width || y >= 4*c.Height {
		return
	}
	c.cells[y/4][x/2] |= dotBits[y%4][x%2]
}

// Line draws from (x0, y0) to (x1, y1) with Bresenham's algorithm.
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), -absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, r := range c.cells {
		b.WriteString(string(r))
		b.WriteByte('\n')
	}
	return b.String()
}

// Profile draws one or more curves sharing a vertical scale, for example
// surface elevation and bottom along a grid row.
func Profile(width, height int, curves ...[]float32) string {
	c := NewCanvas(width, height)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, curve := range curves {
		for _, v := range curve {
			if !finite(v) {
				continue
			}
			lo = math.Min(lo, float64(v))
			hi = math.Max(hi, float64(v))
		}
	}
	if math.IsInf(lo, 0) {
		return c.String()
	}
	if hi-lo < 1e-9 {
		hi, lo = hi+0.5, lo-0.5
	}

	w, h := 2*width-1, 4*height-1
	toY := func(v float32) int { return int(math.Round((hi - float64(v)) / (hi - lo) * float64(h))) }
	for _, curve := range curves {
		if len(curve) == 1 && finite(curve[0]) {
			c.Line(0, toY(curve[0]), w, toY(curve[0]))
			continue
		}
		for k := 1; k < len(curve); k++ {
			if !finite(curve[k-1]) || !finite(curve[k]) {
				continue
			}
			x0 := (k - 1) * w / (len(curve) - 1)
			x1 := k * w / (len(curve) - 1)
			c.Line(x0, toY(curve[k-1]), x1, toY(curve[k]))
		}
	}
	return c.String()
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
