package recording

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/v0xg/uistep/internal/dom"
)

var (
	outlineColor = color.RGBA{0, 0, 0, 255}
	fillColor    = color.RGBA{255, 255, 255, 255}
	rippleColor  = color.RGBA{66, 133, 244, 255}
	okColor      = color.RGBA{52, 168, 83, 255}
	failColor    = color.RGBA{234, 67, 53, 255}
)

// Marker describes what to draw over a step's frame.
type Marker struct {
	// Target is the element the step acted on, if it was resolved.
	Target *dom.Box
	// Click draws a ripple at the target's center.
	Click bool
	// Failed outlines in red and draws a cross in the top-left corner.
	Failed bool
}

// Mark returns a copy of frame with m drawn on it.
func Mark(frame image.Image, m Marker) *image.RGBA {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)

	boxColor := okColor
	if m.Failed {
		boxColor = failColor
		drawCross(out, bounds.Min.X+6, bounds.Min.Y+6, 12, failColor)
	}
	if m.Target == nil {
		return out
	}
	b := m.Target
	x0, y0 := bounds.Min.X+int(b.X), bounds.Min.Y+int(b.Y)
	x1, y1 := x0+int(b.Width), y0+int(b.Height)
	drawRect(out, x0, y0, x1, y1, boxColor)

	cx, cy := b.Center()
	x, y := bounds.Min.X+int(cx), bounds.Min.Y+int(cy)
	if m.Click {
		drawRipple(out, x, y, 15)
	}
	drawCursor(out, x, y)
	return out
}

// drawCursor draws an arrow cursor with its tip at (x, y).
func drawCursor(img *image.RGBA, x, y int) {
	points := []image.Point{{0, 0}, {0, 16}, {4, 12}, {7, 18}, {10, 17}, {7, 11}, {12, 11}}
	for dy := 0; dy <= 16; dy++ {
		for dx := 0; dx < 13; dx++ {
			if insideCursor(dx, dy) {
				setPixel(img, x+dx, y+dy, fillColor)
			}
		}
	}
	for i, p := range points {
		q := points[(i+1)%len(points)]
		drawLine(img, x+p.X, y+p.Y, x+q.X, y+q.Y, outlineColor)
	}
}

func insideCursor(dx, dy int) bool {
	if dx < 0 || dy < 0 || dy > 16 {
		return false
	}
	if dy <= 11 {
		return dx <= dy*12/16
	}
	return dx <= 4
}

func drawRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	for i := 0; i < 2; i++ {
		drawLine(img, x0-i, y0-i, x1+i, y0-i, c)
		drawLine(img, x1+i, y0-i, x1+i, y1+i, c)
		drawLine(img, x1+i, y1+i, x0-i, y1+i, c)
		drawLine(img, x0-i, y1+i, x0-i, y0-i, c)
	}
}

func drawCross(img *image.RGBA, x, y, size int, c color.RGBA) {
	for i := 0; i < 2; i++ {
		drawLine(img, x+i, y, x+size+i, y+size, c)
		drawLine(img, x+size+i, y, x+i, y+size, c)
	}
}

// drawLine is Bresenham's line algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	e := dx - dy
	for {
		setPixel(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x1 += sx
		}
		if e2 < dx {
			e += dx
			y1 += sy
		}
	}
}

func drawRipple(img *image.RGBA, x, y, radius int) {
	for deg := 0.0; deg < 360; deg++ {
		rad := deg * math.Pi / 180
		px := x + int(float64(radius)*math.Cos(rad))
		py := y + int(float64(radius)*math.Sin(rad))
		setPixel(img, px, py, rippleColor)
		setPixel(img, px+1, py, rippleColor)
		setPixel(img, px, py+1, rippleColor)
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{x, y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
