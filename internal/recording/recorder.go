// Package recording captures a screenshot per performed step, marks the
// target element and encodes the run as a GIF.
package recording

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
)

// Frame is one captured step.
type Frame struct {
	Image image.Image
	Label string
	Hold  time.Duration
}

// Recorder collects frames. It is safe for concurrent use.
type Recorder struct {
	hold time.Duration
	log  *zap.Logger

	mu     sync.Mutex
	frames []Frame
}

// NewRecorder returns a Recorder whose frames are held for hold each.
func NewRecorder(hold time.Duration, log *zap.Logger) *Recorder {
	if hold <= 0 {
		hold = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{hold: hold, log: log.Named("recording")}
}

// Capture screenshots page and stores the frame with m drawn on it. Pages
// that cannot render themselves yield dom.ErrUnsupported.
func (r *Recorder) Capture(ctx context.Context, page dom.Page, label string, m Marker) error {
	shooter, ok := page.(dom.Screenshotter)
	if !ok {
		return fmt.Errorf("capture %q: %w", label, dom.ErrUnsupported)
	}
	data, err := shooter.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("capture %q: %w", label, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode screenshot %q: %w", label, err)
	}
	r.Add(Frame{Image: Mark(img, m), Label: label, Hold: r.hold})
	r.log.Debug("frame captured", zap.String("label", label), zap.Bool("failed", m.Failed))
	return nil
}

// Add appends a prepared frame.
func (r *Recorder) Add(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

// Frames returns the captured frames in order.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Len returns the number of frames.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}
