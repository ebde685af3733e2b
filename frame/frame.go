// Package frame defines the decoded frame values produced by a capture
// session and the pixel conversions between them.
package frame

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSizeMismatch    = errors.New("frame payload does not match its dimensions")
	ErrOddDimensions   = errors.New("frame dimensions must be even")
	ErrUnsupportedType = errors.New("unsupported frame conversion")
)

// Type is the pixel layout a caller asks a capture session to deliver.
type Type int

const (
	// TypeYUV is biplanar 4:2:0 YCbCr (NV12 layout, video range).
	TypeYUV Type = iota
	// TypeBGR0 is packed 3-byte BGR.
	TypeBGR0
	// TypeRGB is packed 3-byte RGB.
	TypeRGB
	// TypeBGRA is packed 4-byte BGRA.
	TypeBGRA
)

func (t Type) String() string {
	switch t {
	case TypeYUV:
		return "yuv"
	case TypeBGR0:
		return "bgr0"
	case TypeRGB:
		return "rgb"
	case TypeBGRA:
		return "bgra"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType parses the names returned by Type.String.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yuv", "nv12":
		return TypeYUV, nil
	case "bgr0", "bgr":
		return TypeBGR0, nil
	case "rgb":
		return TypeRGB, nil
	case "bgra":
		return TypeBGRA, nil
	default:
		return 0, fmt.Errorf("unknown frame type %q", s)
	}
}

// PixelFormat is the concrete byte layout of a video frame's payload.
type PixelFormat int

const (
	FormatYUV420 PixelFormat = iota
	FormatRGB
	FormatRGBx
	FormatXBGR
	FormatBGRx
	FormatBGR
	FormatBGRA
)

var pixelFormatNames = [...]string{
	FormatYUV420: "nv12",
	FormatRGB:    "rgb24",
	FormatRGBx:   "rgb0",
	FormatXBGR:   "0bgr",
	FormatBGRx:   "bgr0",
	FormatBGR:    "bgr24",
	FormatBGRA:   "bgra",
}

// String returns the ffmpeg pix_fmt name for the layout.
func (f PixelFormat) String() string {
	if f >= 0 && int(f) < len(pixelFormatNames) {
		return pixelFormatNames[f]
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// BytesPerPixel returns the packed pixel size, or 0 for planar layouts.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB, FormatBGR:
		return 3
	case FormatRGBx, FormatXBGR, FormatBGRx, FormatBGRA:
		return 4
	default:
		return 0
	}
}

// Frame is any item delivered by a capture session: a video frame or an
// audio frame.
type Frame interface {
	// Timestamp returns the display time in nanoseconds.
	Timestamp() uint64
	isFrame()
}

// Video is implemented by every video frame variant.
type Video interface {
	Frame
	Dimensions() (width, height int)
	// IsIdle reports a zero-sized placeholder frame.
	IsIdle() bool
	Format() PixelFormat
	// Planes returns the payload planes in order.
	Planes() [][]byte
}

// Meta is embedded by every video frame variant.
type Meta struct {
	Width       int
	Height      int
	DisplayTime uint64
}

func (m Meta) Timestamp() uint64 { return m.DisplayTime }

func (m Meta) Dimensions() (int, int) { return m.Width, m.Height }

func (m Meta) IsIdle() bool { return m.Width == 0 && m.Height == 0 }

func (Meta) isFrame() {}

// YUVFrame holds a biplanar 4:2:0 image. Strides are bytes per row and may be
// larger than Width.
type YUVFrame struct {
	Meta
	LuminanceBytes    []byte
	LuminanceStride   int
	ChrominanceBytes  []byte
	ChrominanceStride int
}

func (*YUVFrame) Format() PixelFormat { return FormatYUV420 }

func (f *YUVFrame) Planes() [][]byte { return [][]byte{f.LuminanceBytes, f.ChrominanceBytes} }

// RGBFrame is packed R,G,B.
type RGBFrame struct {
	Meta
	Data []byte
}

func (*RGBFrame) Format() PixelFormat { return FormatRGB }

func (f *RGBFrame) Planes() [][]byte { return [][]byte{f.Data} }

// RGBxFrame is packed R,G,B,x.
type RGBxFrame struct {
	Meta
	Data []byte
}

func (*RGBxFrame) Format() PixelFormat { return FormatRGBx }

func (f *RGBxFrame) Planes() [][]byte { return [][]byte{f.Data} }

// XBGRFrame is packed x,B,G,R.
type XBGRFrame struct {
	Meta
	Data []byte
}

func (*XBGRFrame) Format() PixelFormat { return FormatXBGR }

func (f *XBGRFrame) Planes() [][]byte { return [][]byte{f.Data} }

// BGRxFrame is packed B,G,R,x.
type BGRxFrame struct {
	Meta
	Data []byte
}

func (*BGRxFrame) Format() PixelFormat { return FormatBGRx }

func (f *BGRxFrame) Planes() [][]byte { return [][]byte{f.Data} }

// BGRFrame is packed B,G,R.
type BGRFrame struct {
	Meta
	Data []byte
}

func (*BGRFrame) Format() PixelFormat { return FormatBGR }

func (f *BGRFrame) Planes() [][]byte { return [][]byte{f.Data} }

// BGRAFrame is packed B,G,R,A.
type BGRAFrame struct {
	Meta
	Data []byte
}

func (*BGRAFrame) Format() PixelFormat { return FormatBGRA }

func (f *BGRAFrame) Planes() [][]byte { return [][]byte{f.Data} }

// NewIdle returns the zero-sized placeholder for t.
func NewIdle(t Type, displayTime uint64) Video {
	meta := Meta{DisplayTime: displayTime}
	switch t {
	case TypeYUV:
		return &YUVFrame{Meta: meta}
	case TypeBGR0:
		return &BGRFrame{Meta: meta}
	case TypeRGB:
		return &RGBFrame{Meta: meta}
	default:
		return &BGRAFrame{Meta: meta}
	}
}

// NewPacked wraps data in the packed variant for format. data is not copied.
func NewPacked(format PixelFormat, meta Meta, data []byte) (Video, error) {
	switch format {
	case FormatRGB:
		return &RGBFrame{Meta: meta, Data: data}, nil
	case FormatRGBx:
		return &RGBxFrame{Meta: meta, Data: data}, nil
	case FormatXBGR:
		return &XBGRFrame{Meta: meta, Data: data}, nil
	case FormatBGRx:
		return &BGRxFrame{Meta: meta, Data: data}, nil
	case FormatBGR:
		return &BGRFrame{Meta: meta, Data: data}, nil
	case FormatBGRA:
		return &BGRAFrame{Meta: meta, Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a packed format", ErrUnsupportedType, format)
	}
}

// Validate checks that the payload is large enough for the frame's
// dimensions. Idle placeholders are always valid.
func Validate(v Video) error {
	if v.IsIdle() {
		return nil
	}
	w, h := v.Dimensions()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrSizeMismatch, w, h)
	}
	if yuv, ok := v.(*YUVFrame); ok {
		if yuv.LuminanceStride < w || len(yuv.LuminanceBytes) < yuv.LuminanceStride*h {
			return fmt.Errorf("%w: luma plane %d bytes, stride %d", ErrSizeMismatch, len(yuv.LuminanceBytes), yuv.LuminanceStride)
		}
		if yuv.ChrominanceStride < w || len(yuv.ChrominanceBytes) < yuv.ChrominanceStride*((h+1)/2) {
			return fmt.Errorf("%w: chroma plane %d bytes, stride %d", ErrSizeMismatch, len(yuv.ChrominanceBytes), yuv.ChrominanceStride)
		}
		return nil
	}
	bpp := v.Format().BytesPerPixel()
	if got := len(v.Planes()[0]); got < w*h*bpp {
		return fmt.Errorf("%w: %s %dx%d needs %d bytes, got %d", ErrSizeMismatch, v.Format(), w, h, w*h*bpp, got)
	}
	return nil
}
