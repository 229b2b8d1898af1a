package avespeed

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
)

var _ FrameExporter = ImageFileExporter{}

// ImageFileExporter saves frames as PNG, JPEG or BMP depending on the file
// extension. Unknown extensions are saved as PNG.
type ImageFileExporter struct {
	JPEGQuality int // 0 means jpeg.DefaultQuality
}

func (e ImageFileExporter) SaveImage(frame image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		quality := e.JPEGQuality
		if quality == 0 {
			quality = jpeg.DefaultQuality
		}
		err = jpeg.Encode(f, frame, &jpeg.Options{Quality: quality})
	case ".bmp":
		err = bmp.Encode(f, frame)
	default:
		err = png.Encode(f, frame)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to save frame to '%s': %w", filepath.Base(path), err)
	}
	return nil
}
