package avespeed

import (
	"image"
	"testing"
)

func TestFitSize(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		dstW, dstH int
		wantW      int
		wantH      int
	}{
		{"same size", 640, 360, 640, 360, 640, 360},
		{"upscale letterbox", 640, 360, 1280, 1024, 1280, 720},
		{"downscale pillarbox", 1920, 1080, 800, 300, 533, 300},
		{"portrait", 1080, 1920, 900, 960, 540, 960},
		{"tiny canvas", 1920, 1080, 1, 1, 1, 1},
		{"unknown source", 0, 0, 320, 240, 320, 240},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitSize(tt.srcW, tt.srcH, tt.dstW, tt.dstH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("FitSize(%dx%d into %dx%d) = %dx%d, want %dx%d",
					tt.srcW, tt.srcH, tt.dstW, tt.dstH, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFitFrame(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 160, 90))

	if got := FitFrame(frame, 0, 0); got != image.Image(frame) {
		t.Error("unknown canvas size should keep the frame as is")
	}
	if got := FitFrame(frame, 160, 200); got != image.Image(frame) {
		t.Error("frame already fitting the canvas width was resized")
	}
	got := FitFrame(frame, 320, 320)
	if b := got.Bounds(); b.Dx() != 320 || b.Dy() != 180 {
		t.Errorf("FitFrame to 320x320 = %dx%d, want 320x180", b.Dx(), b.Dy())
	}
}
