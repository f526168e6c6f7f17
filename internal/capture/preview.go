package capture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// KeyEscape is the key code returned by WaitKey for the Escape key.
const KeyEscape = 27

// Preview shows processed frames in an OpenCV window and polls the
// keyboard between frames.
type Preview struct {
	window *gocv.Window
	waitMs int
}

// NewPreview opens a window with the given title. waitMs is how long
// Show waits for a key press; values below 1 are raised to 1 because
// WaitKey(0) blocks forever.
func NewPreview(title string, waitMs int) *Preview {
	if waitMs < 1 {
		waitMs = 1
	}
	return &Preview{
		window: gocv.NewWindow(title),
		waitMs: waitMs,
	}
}

// Show draws the caption on the frame, displays it and reports whether
// Escape was pressed.
func (p *Preview) Show(frame *gocv.Mat, caption string) bool {
	if frame != nil && !frame.Empty() {
		if caption != "" {
			gocv.PutText(frame, caption, image.Pt(10, 30),
				gocv.FontHersheySimplex, 1.0, color.RGBA{G: 255, A: 255}, 2)
		}
		p.window.IMShow(*frame)
	}
	return p.window.WaitKey(p.waitMs) == KeyEscape
}

// Close destroys the window.
func (p *Preview) Close() error {
	return p.window.Close()
}
