package frame

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Scale resizes a packed 4-byte-per-pixel image with bilinear filtering. The
// channel order is preserved since every channel is interpolated alike.
func Scale(data []byte, srcW, srcH, dstW, dstH int) []byte {
	if srcW == dstW && srcH == dstH {
		return append([]byte(nil), data[:srcW*srcH*4]...)
	}
	src := &image.RGBA{
		Pix:    data[:srcW*srcH*4],
		Stride: srcW * 4,
		Rect:   image.Rect(0, 0, srcW, srcH),
	}
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst.Pix
}

// ScaleVideo resizes v to dstW x dstH, keeping its pixel layout. Idle frames
// and frames already at the requested size are returned unchanged.
func ScaleVideo(v Video, dstW, dstH int) (Video, error) {
	if v.IsIdle() {
		return v, nil
	}
	w, h := v.Dimensions()
	if w == dstW && h == dstH {
		return v, nil
	}
	if dstW <= 0 || dstH <= 0 {
		return nil, fmt.Errorf("%w: scale target %dx%d", ErrSizeMismatch, dstW, dstH)
	}
	if err := Validate(v); err != nil {
		return nil, err
	}

	meta := Meta{Width: dstW, Height: dstH, DisplayTime: v.Timestamp()}
	switch f := v.(type) {
	case *RGBFrame:
		out := Scale(ConvertBGRToBGRA(packed(f.Data, w, h, 3)), w, h, dstW, dstH)
		return &RGBFrame{Meta: meta, Data: RemoveAlphaChannel(out)}, nil
	case *BGRFrame:
		out := Scale(ConvertBGRToBGRA(packed(f.Data, w, h, 3)), w, h, dstW, dstH)
		return &BGRFrame{Meta: meta, Data: RemoveAlphaChannel(out)}, nil
	case *YUVFrame:
		bgra, err := toBGRA(f)
		if err != nil {
			return nil, err
		}
		scaled := &BGRAFrame{Meta: meta, Data: Scale(bgra, w, h, dstW, dstH)}
		return Convert(scaled, TypeYUV)
	default:
		if v.Format().BytesPerPixel() != 4 {
			return nil, fmt.Errorf("%w: scale %s", ErrUnsupportedType, v.Format())
		}
		return NewPacked(v.Format(), meta, Scale(v.Planes()[0], w, h, dstW, dstH))
	}
}

// Crop returns the part of packed frame v inside r, clipped to the frame.
// The payload is copied.
func Crop(v Video, r image.Rectangle) (Video, error) {
	if v.IsIdle() {
		return v, nil
	}
	w, h := v.Dimensions()
	r = r.Intersect(image.Rect(0, 0, w, h))
	if r.Empty() {
		return nil, fmt.Errorf("%w: crop %v outside %dx%d", ErrSizeMismatch, r, w, h)
	}
	if r.Min.X == 0 && r.Min.Y == 0 && r.Dx() == w && r.Dy() == h {
		return v, nil
	}
	if _, ok := v.(*YUVFrame); ok {
		return nil, fmt.Errorf("%w: crop %s", ErrUnsupportedType, v.Format())
	}
	if err := Validate(v); err != nil {
		return nil, err
	}

	bpp := v.Format().BytesPerPixel()
	stride := w * bpp
	src := v.Planes()[0][r.Min.Y*stride+r.Min.X*bpp:]
	meta := Meta{Width: r.Dx(), Height: r.Dy(), DisplayTime: v.Timestamp()}
	return NewPacked(v.Format(), meta, PackPlane(src, stride, r.Dx()*bpp, r.Dy()))
}
