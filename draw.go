package avespeed

import (
	"image"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/nfnt/resize"
)

// A utility function to draw a frame into the given viewport, scaling
// as required with [ebiten.FilterLinear] to take as much space as possible
// while preserving the aspect ratio.
//
// If there's extra space in the viewport, the frame will be drawn centered,
// but black bars won't be explicitly drawn, so whatever was on the background
// of the viewport will remain visible.
//
// Common usage:
//
//	frame := renderer.Frame()
//	if frame != nil { avespeed.Draw(screen, frame) }
func Draw(viewport, frame *ebiten.Image) {
	geom, filter := CalcProjection(viewport, frame)
	var opts ebiten.DrawImageOptions
	opts.GeoM = geom
	opts.Filter = filter
	viewport.DrawImage(frame, &opts)
}

// CalcProjection returns the GeoM and recommended ebiten.Filter to project
// the frame into the given viewport. If you don't need the specific parameters,
// see [Draw]() instead.
func CalcProjection(viewport, frame *ebiten.Image) (ebiten.GeoM, ebiten.Filter) {
	viewBounds := viewport.Bounds()
	frameBounds := frame.Bounds()
	vwWidth, vwHeight := viewBounds.Dx(), viewBounds.Dy()
	frWidth, frHeight := frameBounds.Dx(), frameBounds.Dy()
	tx, ty := float64(viewBounds.Min.X), float64(viewBounds.Min.Y)

	var geom ebiten.GeoM
	sf := fitScale(frWidth, frHeight, vwWidth, vwHeight)
	if sf != 1.0 {
		geom.Scale(sf, sf)
	}
	sfrWidth := float64(frWidth) * sf
	sfrHeight := float64(frHeight) * sf
	geom.Translate(tx+(float64(vwWidth)-sfrWidth)/2, ty+(float64(vwHeight)-sfrHeight)/2)
	return geom, ebiten.FilterLinear
}

// FitSize returns the largest size with the aspect ratio of src that fits
// into dst. Both results are at least 1.
func FitSize(srcWidth, srcHeight, dstWidth, dstHeight int) (int, int) {
	if srcWidth < 1 || srcHeight < 1 {
		return max(1, dstWidth), max(1, dstHeight)
	}
	sf := fitScale(srcWidth, srcHeight, dstWidth, dstHeight)
	w := int(math.Round(float64(srcWidth) * sf))
	h := int(math.Round(float64(srcHeight) * sf))
	return max(1, min(w, dstWidth)), max(1, min(h, dstHeight))
}

func fitScale(srcWidth, srcHeight, dstWidth, dstHeight int) float64 {
	wf := float64(dstWidth) / float64(srcWidth)
	hf := float64(dstHeight) / float64(srcHeight)
	return min(wf, hf)
}

// FitFrame scales the frame to fit a canvas of the given size, preserving
// the aspect ratio. Canvas sizes below 2 leave the frame untouched.
func FitFrame(frame image.Image, canvasWidth, canvasHeight int) image.Image {
	if canvasWidth < 2 || canvasHeight < 2 {
		return frame
	}
	bounds := frame.Bounds()
	w, h := FitSize(bounds.Dx(), bounds.Dy(), canvasWidth, canvasHeight)
	if w == bounds.Dx() && h == bounds.Dy() {
		return frame
	}
	return resize.Resize(uint(w), uint(h), frame, resize.Bilinear)
}

var _ Renderer = (*EbitenRenderer)(nil)

// EbitenRenderer keeps the last displayed frame as an [ebiten.Image], ready
// to be drawn from the game's Draw() with [Draw](). The canvas size should
// be updated from the game's Layout() so frames arrive already fitted.
type EbitenRenderer struct {
	mutex        sync.Mutex
	frame        *ebiten.Image
	canvasWidth  int
	canvasHeight int
}

func NewEbitenRenderer() *EbitenRenderer {
	return &EbitenRenderer{}
}

func (r *EbitenRenderer) Display(frame image.Image) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	bounds := frame.Bounds()
	rgba, isRGBA := frame.(*image.RGBA)
	if !isRGBA || rgba.Stride != 4*bounds.Dx() {
		r.frame = ebiten.NewImageFromImage(frame)
		return
	}
	if r.frame == nil || r.frame.Bounds().Size() != bounds.Size() {
		r.frame = ebiten.NewImage(bounds.Dx(), bounds.Dy())
	}
	r.frame.WritePixels(rgba.Pix)
}

func (r *EbitenRenderer) CanvasSize() (int, int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.canvasWidth, r.canvasHeight
}

// SetCanvasSize reports whether the size actually changed, in which case
// [Player.NotifyResize]() should be called.
func (r *EbitenRenderer) SetCanvasSize(width, height int) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if width == r.canvasWidth && height == r.canvasHeight {
		return false
	}
	r.canvasWidth, r.canvasHeight = width, height
	return true
}

// Frame returns the last displayed frame, or nil if nothing has been
// displayed yet. The image is reused between frames of the same size.
func (r *EbitenRenderer) Frame() *ebiten.Image {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.frame
}
