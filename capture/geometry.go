package capture

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Point is a position in target coordinates.
type Point struct {
	X, Y float64
}

// Size is an extent in target coordinates.
type Size struct {
	Width, Height float64
}

// Area is a rectangle in target coordinates.
type Area struct {
	Origin Point
	Size   Size
}

// Rect converts a to integer pixel bounds.
func (a Area) Rect() image.Rectangle {
	x, y := int(a.Origin.X), int(a.Origin.Y)
	return image.Rect(x, y, x+int(a.Size.Width), y+int(a.Size.Height))
}

// Scaled returns a multiplied by factor.
func (a Area) Scaled(factor float64) Area {
	return Area{
		Origin: Point{X: a.Origin.X * factor, Y: a.Origin.Y * factor},
		Size:   Size{Width: a.Size.Width * factor, Height: a.Size.Height * factor},
	}
}

// Resolution is an output size tier. The zero value keeps the captured size.
type Resolution int

const (
	ResolutionCaptured Resolution = iota
	Resolution480p
	Resolution720p
	Resolution1080p
	Resolution1440p
	Resolution2160p
	Resolution4320p
)

var resolutionNames = [...]string{
	ResolutionCaptured: "captured",
	Resolution480p:     "480p",
	Resolution720p:     "720p",
	Resolution1080p:    "1080p",
	Resolution1440p:    "1440p",
	Resolution2160p:    "2160p",
	Resolution4320p:    "4320p",
}

var resolutionWidths = [...]uint32{
	Resolution480p:  640,
	Resolution720p:  1280,
	Resolution1080p: 1920,
	Resolution1440p: 2560,
	Resolution2160p: 3840,
	Resolution4320p: 7680,
}

func (r Resolution) String() string {
	if r >= 0 && int(r) < len(resolutionNames) {
		return resolutionNames[r]
	}
	return fmt.Sprintf("Resolution(%d)", int(r))
}

// ParseResolution parses the names returned by Resolution.String.
func ParseResolution(s string) (Resolution, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ResolutionCaptured, nil
	}
	for r, name := range resolutionNames {
		if name == s {
			return Resolution(r), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown resolution %q", ErrInvalidOptions, s)
}

// Value returns the tier's frame size for the given aspect ratio. It panics
// for ResolutionCaptured, which has no fixed size.
func (r Resolution) Value(aspect float64) (uint32, uint32) {
	if r <= ResolutionCaptured || int(r) >= len(resolutionWidths) {
		panic("capture: Resolution.Value called on " + r.String())
	}
	w := resolutionWidths[r]
	return w, uint32(math.Round(float64(w) / aspect))
}

// roundUpEven rounds v's integer part up to the next even number.
func roundUpEven(v float64) float64 {
	n := int64(v)
	return float64(n + n%2)
}

// resolveCropArea returns the rectangle to capture in target coordinates. An
// explicit crop has its size rounded up to even; otherwise the whole target is
// used. When nativePixels is set the result is multiplied by scale.
func resolveCropArea(opts Options, native Size, scale float64, nativePixels bool) Area {
	area := Area{Size: native}
	if opts.CropArea != nil {
		area = Area{
			Origin: opts.CropArea.Origin,
			Size: Size{
				Width:  roundUpEven(opts.CropArea.Size.Width),
				Height: roundUpEven(opts.CropArea.Size.Height),
			},
		}
	}
	if nativePixels && scale > 0 && scale != 1 {
		area = area.Scaled(scale)
	}
	return area
}

// resolveOutputSize returns the delivered frame size for crop. The crop is
// scaled by scale, clamped to the requested tier without upscaling, and both
// dimensions are forced even.
func resolveOutputSize(opts Options, crop Area, scale float64) (uint32, uint32) {
	if scale <= 0 {
		scale = 1
	}
	width := uint32(crop.Size.Width * scale)
	height := uint32(crop.Size.Height * scale)

	if opts.OutputResolution != ResolutionCaptured && crop.Size.Width > 0 && crop.Size.Height > 0 {
		tierW, tierH := opts.OutputResolution.Value(crop.Size.Width / crop.Size.Height)
		width = min(width, tierW)
		height = min(height, tierH)
	}

	width -= width % 2
	height -= height % 2
	return width, height
}

// geometry is the resolved capture geometry of one session.
type geometry struct {
	native Size
	scale  float64
	crop   Area
	width  uint32
	height uint32
}

func resolveGeometry(opts Options, native Size, scale float64) geometry {
	if scale <= 0 {
		scale = 1
	}
	crop := resolveCropArea(opts, native, scale, false)
	w, h := resolveOutputSize(opts, crop, scale)
	return geometry{native: native, scale: scale, crop: crop, width: w, height: h}
}

// pixelCrop returns the crop rectangle in native pixels, clipped to bounds.
func (g geometry) pixelCrop(bounds image.Rectangle) image.Rectangle {
	return g.crop.Scaled(g.scale).Rect().Intersect(bounds)
}

func (g geometry) outputSize() (uint32, uint32) {
	return g.width, g.height
}
