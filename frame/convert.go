package frame

import (
	"fmt"
	"image"
)

// Convert returns v in the layout requested by t. Frames already in that
// layout and idle placeholders are returned unchanged.
func Convert(v Video, t Type) (Video, error) {
	if v.IsIdle() {
		if matchesType(v, t) {
			return v, nil
		}
		return NewIdle(t, v.Timestamp()), nil
	}
	if matchesType(v, t) {
		return v, nil
	}
	if err := Validate(v); err != nil {
		return nil, err
	}

	w, h := v.Dimensions()
	meta := Meta{Width: w, Height: h, DisplayTime: v.Timestamp()}

	switch t {
	case TypeRGB:
		rgb, err := toRGB(v)
		if err != nil {
			return nil, err
		}
		return &RGBFrame{Meta: meta, Data: rgb}, nil
	case TypeBGR0:
		switch f := v.(type) {
		case *BGRAFrame:
			return &BGRFrame{Meta: meta, Data: RemoveAlphaChannel(packed(f.Data, w, h, 4))}, nil
		case *BGRxFrame:
			return &BGRFrame{Meta: meta, Data: RemoveAlphaChannel(packed(f.Data, w, h, 4))}, nil
		}
		rgb, err := toRGB(v)
		if err != nil {
			return nil, err
		}
		return &BGRFrame{Meta: meta, Data: SwapRGB(rgb)}, nil
	case TypeBGRA:
		bgra, err := toBGRA(v)
		if err != nil {
			return nil, err
		}
		return &BGRAFrame{Meta: meta, Data: bgra}, nil
	case TypeYUV:
		bgra, err := toBGRA(v)
		if err != nil {
			return nil, err
		}
		y, uv, err := BGRAToNV12(bgra, w, h, w*4)
		if err != nil {
			return nil, err
		}
		return &YUVFrame{
			Meta:              meta,
			LuminanceBytes:    y,
			LuminanceStride:   w,
			ChrominanceBytes:  uv,
			ChrominanceStride: w,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s to %s", ErrUnsupportedType, v.Format(), t)
	}
}

func matchesType(v Video, t Type) bool {
	switch v.(type) {
	case *YUVFrame:
		return t == TypeYUV
	case *RGBFrame:
		return t == TypeRGB
	case *BGRFrame:
		return t == TypeBGR0
	case *BGRAFrame:
		return t == TypeBGRA
	default:
		return false
	}
}

// packed trims any trailing bytes past w*h*bpp.
func packed(data []byte, w, h, bpp int) []byte {
	return data[:w*h*bpp]
}

func toRGB(v Video) ([]byte, error) {
	w, h := v.Dimensions()
	switch f := v.(type) {
	case *RGBFrame:
		return append([]byte(nil), packed(f.Data, w, h, 3)...), nil
	case *BGRFrame:
		return SwapRGB(packed(f.Data, w, h, 3)), nil
	case *RGBxFrame:
		return RemoveAlphaChannel(packed(f.Data, w, h, 4)), nil
	case *BGRxFrame:
		return ConvertBGRAToRGB(packed(f.Data, w, h, 4)), nil
	case *BGRAFrame:
		return ConvertBGRAToRGB(packed(f.Data, w, h, 4)), nil
	case *XBGRFrame:
		return ConvertXBGRToRGB(packed(f.Data, w, h, 4)), nil
	case *YUVFrame:
		if f.ChrominanceStride != f.LuminanceStride {
			y := PackPlane(f.LuminanceBytes, f.LuminanceStride, w, h)
			uv := PackPlane(f.ChrominanceBytes, f.ChrominanceStride, w, (h+1)/2)
			return YCbCrToRGB(y, uv, w, h, 0), nil
		}
		return YCbCrToRGB(f.LuminanceBytes, f.ChrominanceBytes, w, h, f.LuminanceStride-w), nil
	default:
		return nil, fmt.Errorf("%w: %T to rgb", ErrUnsupportedType, v)
	}
}

func toBGRA(v Video) ([]byte, error) {
	w, h := v.Dimensions()
	switch f := v.(type) {
	case *BGRAFrame:
		return append([]byte(nil), packed(f.Data, w, h, 4)...), nil
	case *BGRxFrame:
		return ConvertBGRxToBGRA(packed(f.Data, w, h, 4)), nil
	case *RGBxFrame:
		return ConvertRGBxToBGRA(packed(f.Data, w, h, 4)), nil
	case *XBGRFrame:
		return ConvertXBGRToBGRA(packed(f.Data, w, h, 4)), nil
	case *BGRFrame:
		return ConvertBGRToBGRA(packed(f.Data, w, h, 3)), nil
	default:
		rgb, err := toRGB(v)
		if err != nil {
			return nil, err
		}
		return ConvertRGBToBGRA(rgb), nil
	}
}

// ToImage converts any non-idle video frame to an RGBA image.
func ToImage(v Video) (*image.RGBA, error) {
	if v.IsIdle() {
		return nil, fmt.Errorf("%w: idle frame has no pixels", ErrSizeMismatch)
	}
	if err := Validate(v); err != nil {
		return nil, err
	}
	rgb, err := toRGB(v)
	if err != nil {
		return nil, err
	}

	w, h := v.Dimensions()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, p := 0, 0; i+2 < len(rgb); i, p = i+3, p+4 {
		img.Pix[p] = rgb[i]
		img.Pix[p+1] = rgb[i+1]
		img.Pix[p+2] = rgb[i+2]
		img.Pix[p+3] = 0xff
	}
	return img, nil
}
