package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

const (
	// DefaultMaxDimension bounds the longer side of stored photos.
	DefaultMaxDimension = 1600
	jpegQuality         = 85
)

// ErrNotImage is returned for uploads that do not decode as a JPEG or PNG.
var ErrNotImage = errors.New("not a JPEG or PNG image")

var extensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
}

// Detect reads the image header and returns the file extension and content
// type of the decoded format. Anything else is ErrNotImage, whatever the
// client called the file.
func Detect(data []byte) (ext, contentType string, err error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	ext, ok := extensions[format]
	if !ok {
		return "", "", fmt.Errorf("%w: unsupported format %s", ErrNotImage, format)
	}
	return ext, "image/" + format, nil
}

// Orientation returns the EXIF orientation tag of a JPEG, or 1 when absent.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// orient maps a destination pixel back to its source pixel for each EXIF
// orientation. Orientations 5-8 swap width and height.
func orient(img image.Image, orientation int) image.Image {
	if orientation < 2 || orientation > 8 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	out := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			out.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// Normalize decodes a JPEG or PNG upload, applies its EXIF orientation and
// shrinks it so neither side exceeds maxDim. Images that are already upright
// and small are returned unchanged with reencoded false; otherwise the result
// is a JPEG.
func Normalize(data []byte, maxDim int) (out []byte, reencoded bool, err error) {
	orientation := Orientation(data)
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}
	img = orient(img, orientation)

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if orientation <= 1 && w <= maxDim && h <= maxDim {
		return data, false, nil
	}

	scale := 1.0
	if w > maxDim || h > maxDim {
		scale = float64(maxDim) / float64(w)
		if s := float64(maxDim) / float64(h); s < scale {
			scale = s
		}
	}
	nw, nh := max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, false, fmt.Errorf("failed to encode image: %w", err)
	}
	log.Infof("Image normalized: %d bytes -> %d bytes (%dx%d -> %dx%d, orientation %d)",
		len(data), buf.Len(), w, h, nw, nh, orientation)
	return buf.Bytes(), true, nil
}
