package camera

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"visionbridge/internal/model"
)

const (
	FrameWidth     = 640
	FrameHeight    = 480
	DefaultQuality = 0.9
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// Encoder scales frames to a fixed raster and encodes them.
type Encoder struct {
	Width   int
	Height  int
	Format  Format
	Quality float64 // 0 < q <= 1
}

// NewEncoder returns a 640x480 encoder for the given format and quality.
func NewEncoder(format Format, quality float64) (*Encoder, error) {
	if format != FormatJPEG && format != FormatWebP {
		return nil, fmt.Errorf("unsupported frame format %q", format)
	}
	if quality <= 0 || quality > 1 {
		return nil, fmt.Errorf("quality %.2f out of range (0, 1]", quality)
	}
	return &Encoder{
		Width:   FrameWidth,
		Height:  FrameHeight,
		Format:  format,
		Quality: quality,
	}, nil
}

// Encode stretches img to the raster, like drawing a video frame onto a
// fixed-size canvas, and encodes it.
func (e *Encoder) Encode(img image.Image) (model.EncodedImage, error) {
	raster := imaging.Resize(img, e.Width, e.Height, imaging.Linear)

	var buf bytes.Buffer
	var mime string
	switch e.Format {
	case FormatWebP:
		mime = "image/webp"
		if err := webp.Encode(&buf, raster, &webp.Options{Quality: float32(e.Quality * 100)}); err != nil {
			return model.EncodedImage{}, fmt.Errorf("failed to encode webp: %w", err)
		}
	default:
		mime = "image/jpeg"
		quality := int(math.Round(e.Quality * 100))
		if err := imaging.Encode(&buf, raster, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return model.EncodedImage{}, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	}

	return model.EncodedImage{
		Data:     buf.Bytes(),
		MIMEType: mime,
		Width:    e.Width,
		Height:   e.Height,
	}, nil
}
