package recording

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"sort"
	"time"

	"github.com/nfnt/resize"
)

// GIFOptions configure encoding.
type GIFOptions struct {
	// MaxWidth scales frames down to at most this width; 0 means 800.
	MaxWidth uint
	// MinDelay is the shortest time a frame is shown.
	MinDelay time.Duration
}

// EncodeGIF writes frames as a looping GIF. Each frame is shown for its
// Hold duration, at least opts.MinDelay.
func EncodeGIF(w io.Writer, frames []Frame, opts GIFOptions) error {
	if len(frames) == 0 {
		return fmt.Errorf("encode gif: no frames")
	}
	if opts.MaxWidth == 0 {
		opts.MaxWidth = 800
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 500 * time.Millisecond
	}

	bounds := frames[0].Image.Bounds()
	width := uint(bounds.Dx())
	height := uint(bounds.Dy())
	if width > opts.MaxWidth {
		height = uint(float64(opts.MaxWidth) * float64(bounds.Dy()) / float64(bounds.Dx()))
		width = opts.MaxWidth
	}

	palette := buildPalette(frames[0].Image)
	g := &gif.GIF{
		Image: make([]*image.Paletted, len(frames)),
		Delay: make([]int, len(frames)),
	}
	for i, f := range frames {
		img := f.Image
		if b := img.Bounds(); uint(b.Dx()) != width || uint(b.Dy()) != height {
			img = resize.Resize(width, height, img, resize.Lanczos3)
		}
		p := image.NewPaletted(img.Bounds(), palette)
		draw.FloydSteinberg.Draw(p, img.Bounds(), img, img.Bounds().Min)
		g.Image[i] = p

		hold := f.Hold
		if hold < opts.MinDelay {
			hold = opts.MinDelay
		}
		g.Delay[i] = int(hold / (10 * time.Millisecond))
	}
	if err := gif.EncodeAll(w, g); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	return nil
}

// WriteGIF encodes frames into the file at path and returns its size.
func WriteGIF(path string, frames []Frame, opts GIFOptions) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := EncodeGIF(f, frames, opts); err != nil {
		f.Close()
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	return info.Size(), f.Close()
}

// buildPalette takes the most frequent colors of a sampled image, padding
// with grays up to 256 entries. The marker colors are always present.
func buildPalette(img image.Image) color.Palette {
	counts := make(map[color.RGBA]int)
	b := img.Bounds()
	const step = 4
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, a := img.At(x, y).RGBA()
			counts[color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8), uint8(a >> 8)}]++
		}
	}
	colors := make([]color.RGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if counts[colors[i]] != counts[colors[j]] {
			return counts[colors[i]] > counts[colors[j]]
		}
		ci, cj := colors[i], colors[j]
		return uint32(ci.R)<<24|uint32(ci.G)<<16|uint32(ci.B)<<8|uint32(ci.A) <
			uint32(cj.R)<<24|uint32(cj.G)<<16|uint32(cj.B)<<8|uint32(cj.A)
	})

	fixed := []color.RGBA{outlineColor, fillColor, rippleColor, okColor, failColor}
	seen := make(map[color.RGBA]bool)
	palette := make(color.Palette, 0, 256)
	add := func(c color.RGBA) {
		if !seen[c] && len(palette) < 256 {
			seen[c] = true
			palette = append(palette, c)
		}
	}
	for _, c := range fixed {
		add(c)
	}
	for _, c := range colors {
		add(c)
	}
	for i := 0; len(palette) < 256 && i < 256; i++ {
		add(color.RGBA{uint8(i), uint8(i), uint8(i), 255})
	}
	return palette
}
