package pipewire

import (
	"fmt"

	"go2tv.app/screencap/frame"
)

// Raw SPA video format ids from spa/param/video/raw.h.
const (
	spaVideoFormatRGBx = 7
	spaVideoFormatBGRx = 8
	spaVideoFormatXBGR = 10
	spaVideoFormatRGBA = 11
	spaVideoFormatBGRA = 12
	spaVideoFormatRGB  = 15
	spaVideoFormatBGR  = 16
)

const (
	audioRate     = 48000
	audioChannels = 2
)

// Format is the negotiated video format of a stream.
type Format struct {
	Pixel        frame.PixelFormat
	Width        int
	Height       int
	FramerateNum uint32
	FramerateDen uint32
}

// pixelFormat maps an SPA video format to the frame layout it is delivered
// as. RGBA is treated as RGBx; compositors leave its alpha undefined.
func pixelFormat(spa uint32) (frame.PixelFormat, bool) {
	switch spa {
	case spaVideoFormatRGBx, spaVideoFormatRGBA:
		return frame.FormatRGBx, true
	case spaVideoFormatBGRx:
		return frame.FormatBGRx, true
	case spaVideoFormatXBGR:
		return frame.FormatXBGR, true
	case spaVideoFormatBGRA:
		return frame.FormatBGRA, true
	case spaVideoFormatRGB:
		return frame.FormatRGB, true
	case spaVideoFormatBGR:
		return frame.FormatBGR, true
	default:
		return 0, false
	}
}

// videoFrame copies one buffer chunk into an owned, tightly packed frame. A
// zero-sized chunk yields the idle placeholder.
func videoFrame(f Format, data []byte, stride int, pts uint64) (frame.Video, error) {
	if len(data) == 0 {
		return frame.NewIdle(idleType(f.Pixel), pts), nil
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("buffer before format negotiation")
	}

	rowBytes := f.Width * f.Pixel.BytesPerPixel()
	if stride <= 0 {
		stride = rowBytes
	}
	if stride < rowBytes || len(data) < stride*(f.Height-1)+rowBytes {
		return nil, fmt.Errorf("%w: chunk of %d bytes (stride %d) for %dx%d %s",
			frame.ErrSizeMismatch, len(data), stride, f.Width, f.Height, f.Pixel)
	}

	packed := frame.PackPlane(data, stride, rowBytes, f.Height)
	return frame.NewPacked(f.Pixel, frame.Meta{Width: f.Width, Height: f.Height, DisplayTime: pts}, packed)
}

// audioFrame copies one interleaved S16 chunk.
func audioFrame(data []byte, pts uint64) *frame.AudioFrame {
	frameBytes := audioChannels * frame.AudioI16.SampleSize()
	n := len(data) / frameBytes
	out := make([]byte, n*frameBytes)
	copy(out, data)
	return &frame.AudioFrame{
		Format:      frame.AudioI16,
		Channels:    audioChannels,
		Data:        out,
		SampleCount: n,
		Rate:        audioRate,
		DisplayTime: pts,
	}
}

func idleType(p frame.PixelFormat) frame.Type {
	switch p {
	case frame.FormatRGB:
		return frame.TypeRGB
	case frame.FormatBGRA:
		return frame.TypeBGRA
	default:
		return frame.TypeBGR0
	}
}

// streamStateName mirrors enum pw_stream_state.
func streamStateName(s int) string {
	switch s {
	case -1:
		return "error"
	case 0:
		return "unconnected"
	case 1:
		return "connecting"
	case 2:
		return "paused"
	case 3:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}
