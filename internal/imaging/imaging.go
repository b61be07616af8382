// Package imaging normalises listing photos and renders thumbnails.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/dustin/go-humanize"
	"golang.org/x/image/draw"
)

// MaxDimension is the maximum width or height for stored photos.
const MaxDimension = 1024

// ThumbnailSize is the edge length of the square list-row thumbnail.
const ThumbnailSize = 160

// MaxPixels bounds the decoded size of an upload, whatever its byte size.
const MaxPixels = 40_000_000

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// MIMEJPEG is the MIME type of every processed photo.
const MIMEJPEG = "image/jpeg"

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ErrUnsupported is returned for data that is not a JPEG or PNG photo.
var ErrUnsupported = errors.New("unsupported image format")

// ErrTooLarge is returned for images whose dimensions exceed MaxPixels.
var ErrTooLarge = errors.New("image dimensions too large")

// Photo is a processed listing photo.
type Photo struct {
	Data []byte
	MIME string
}

// Size returns the encoded size in human-readable form.
func (p *Photo) Size() string {
	return humanize.Bytes(uint64(len(p.Data)))
}

// Normalize validates the format by sniffing bytes, downscales photos
// larger than MaxDimension and re-encodes them as JPEG.
func Normalize(data []byte, maxBytes int) (*Photo, error) {
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fmt.Errorf("image is %s, limit is %s",
			humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(maxBytes)))
	}

	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	return encode(fit(img, MaxDimension))
}

// Thumbnail crops the photo to a centred square and scales it to size.
func Thumbnail(data []byte, size int) (*Photo, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	src := squareCrop(img.Bounds())
	if src.Dx() < size {
		size = src.Dx()
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return encode(dst)
}

func decode(data []byte) (image.Image, error) {
	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s (only JPEG and PNG accepted)", ErrUnsupported, detected)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

func encode(img image.Image) (*Photo, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return &Photo{Data: buf.Bytes(), MIME: MIMEJPEG}, nil
}

// fit resizes img so neither dimension exceeds maxDim, preserving the
// aspect ratio. Smaller images are returned unchanged.
func fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, int(float64(h)*float64(maxDim)/float64(w)))
	} else {
		newW = max(1, int(float64(w)*float64(maxDim)/float64(h)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func squareCrop(b image.Rectangle) image.Rectangle {
	side := min(b.Dx(), b.Dy())
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x, y, x+side, y+side)
}
