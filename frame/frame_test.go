package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"math"
	"testing"
)

func solidBGRA(w, h int, b, g, r byte) []byte {
	out := make([]byte, w*h*4)
	for i := 0; i < len(out); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = b, g, r, 0xff
	}
	return out
}

func TestParseTypeRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeYUV, TypeBGR0, TypeRGB, TypeBGRA} {
		got, err := ParseType(typ.String())
		if err != nil {
			t.Fatalf("ParseType(%q): %v", typ.String(), err)
		}
		if got != typ {
			t.Fatalf("ParseType(%q) = %v, want %v", typ.String(), got, typ)
		}
	}
	if _, err := ParseType("cmyk"); err == nil {
		t.Fatal("ParseType(cmyk) should fail")
	}
}

func TestNewIdleIsZeroSized(t *testing.T) {
	for _, typ := range []Type{TypeYUV, TypeBGR0, TypeRGB, TypeBGRA} {
		v := NewIdle(typ, 42)
		if !v.IsIdle() {
			t.Fatalf("NewIdle(%v) is not idle", typ)
		}
		if v.Timestamp() != 42 {
			t.Fatalf("NewIdle(%v) timestamp = %d", typ, v.Timestamp())
		}
		if err := Validate(v); err != nil {
			t.Fatalf("Validate(idle %v): %v", typ, err)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := &BGRAFrame{Meta: Meta{Width: 2, Height: 2}, Data: make([]byte, 16)}
	if err := Validate(ok); err != nil {
		t.Fatalf("Validate(ok): %v", err)
	}
	short := &RGBFrame{Meta: Meta{Width: 2, Height: 2}, Data: make([]byte, 11)}
	if err := Validate(short); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("Validate(short) = %v, want ErrSizeMismatch", err)
	}
	halfSized := &BGRAFrame{Meta: Meta{Width: 2, Height: 0}, Data: nil}
	if err := Validate(halfSized); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("Validate(2x0) = %v, want ErrSizeMismatch", err)
	}
	yuv := &YUVFrame{
		Meta:              Meta{Width: 2, Height: 2},
		LuminanceBytes:    make([]byte, 8),
		LuminanceStride:   4,
		ChrominanceBytes:  make([]byte, 4),
		ChrominanceStride: 4,
	}
	if err := Validate(yuv); err != nil {
		t.Fatalf("Validate(yuv): %v", err)
	}
}

func TestConvertBGRxToRequestedTypes(t *testing.T) {
	src := &BGRxFrame{
		Meta: Meta{Width: 2, Height: 2, DisplayTime: 7},
		Data: []byte{
			1, 2, 3, 0, 4, 5, 6, 0,
			7, 8, 9, 0, 10, 11, 12, 0,
		},
	}

	rgb, err := Convert(src, TypeRGB)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := rgb.Planes()[0], []byte{3, 2, 1, 6, 5, 4, 9, 8, 7, 12, 11, 10}; !bytes.Equal(got, want) {
		t.Fatalf("rgb = %v, want %v", got, want)
	}

	bgr, err := Convert(src, TypeBGR0)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := bgr.Planes()[0], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}; !bytes.Equal(got, want) {
		t.Fatalf("bgr = %v, want %v", got, want)
	}

	bgra, err := Convert(src, TypeBGRA)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := bgra.(*BGRAFrame); !ok {
		t.Fatalf("Convert to BGRA returned %T", bgra)
	}
	if got := bgra.Planes()[0][3]; got != 0xff {
		t.Fatalf("alpha = %d, want 255", got)
	}
	if bgra.Timestamp() != 7 {
		t.Fatalf("timestamp = %d, want 7", bgra.Timestamp())
	}
}

func TestConvertSameTypeIsIdentity(t *testing.T) {
	src := &RGBFrame{Meta: Meta{Width: 1, Height: 1}, Data: []byte{1, 2, 3}}
	got, err := Convert(src, TypeRGB)
	if err != nil {
		t.Fatal(err)
	}
	if got != Video(src) {
		t.Fatal("Convert to the same type should return the input")
	}
}

func TestConvertIdleKeepsPlaceholder(t *testing.T) {
	got, err := Convert(&BGRxFrame{Meta: Meta{DisplayTime: 3}}, TypeRGB)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsIdle() || got.Timestamp() != 3 {
		t.Fatalf("Convert(idle) = %+v", got)
	}
	if _, ok := got.(*RGBFrame); !ok {
		t.Fatalf("Convert(idle) type = %T, want *RGBFrame", got)
	}
}

func TestConvertYUVRoundTripIsClose(t *testing.T) {
	src := &BGRAFrame{Meta: Meta{Width: 4, Height: 2}, Data: solidBGRA(4, 2, 40, 120, 200)}

	yuv, err := Convert(src, TypeYUV)
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(yuv); err != nil {
		t.Fatalf("Validate(yuv): %v", err)
	}

	rgb, err := Convert(yuv, TypeRGB)
	if err != nil {
		t.Fatal(err)
	}
	data := rgb.Planes()[0]
	want := []int{200, 120, 40}
	for i := 0; i < len(data); i += 3 {
		for c := 0; c < 3; c++ {
			if d := int(data[i+c]) - want[c]; d < -4 || d > 4 {
				t.Fatalf("pixel %d = %v, want ~%v", i/3, data[i:i+3], want)
			}
		}
	}
}

func TestBGRAToNV12(t *testing.T) {
	y, uv, err := BGRAToNV12(solidBGRA(2, 2, 255, 255, 255), 2, 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(y) != 4 || len(uv) != 2 {
		t.Fatalf("plane sizes %d/%d, want 4/2", len(y), len(uv))
	}
	if y[0] != 235 {
		t.Fatalf("white luma = %d, want 235", y[0])
	}
	if uv[0] != 128 || uv[1] != 128 {
		t.Fatalf("white chroma = %v, want [128 128]", uv)
	}

	if _, _, err := BGRAToNV12(solidBGRA(3, 2, 0, 0, 0), 3, 2, 12); !errors.Is(err, ErrOddDimensions) {
		t.Fatalf("odd width err = %v", err)
	}
	if _, _, err := BGRAToNV12(make([]byte, 4), 2, 2, 8); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("short input err = %v", err)
	}
}

func TestScaleVideo(t *testing.T) {
	src := &BGRAFrame{Meta: Meta{Width: 4, Height: 4, DisplayTime: 9}, Data: solidBGRA(4, 4, 10, 20, 30)}

	got, err := ScaleVideo(src, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	w, h := got.Dimensions()
	if w != 2 || h != 2 {
		t.Fatalf("scaled size %dx%d, want 2x2", w, h)
	}
	if !bytes.Equal(got.Planes()[0], solidBGRA(2, 2, 10, 20, 30)) {
		t.Fatalf("scaled solid image changed colour: %v", got.Planes()[0])
	}
	if got.Timestamp() != 9 {
		t.Fatalf("timestamp = %d", got.Timestamp())
	}

	rgb := &RGBFrame{Meta: Meta{Width: 2, Height: 2}, Data: bytes.Repeat([]byte{1, 2, 3}, 4)}
	up, err := ScaleVideo(rgb, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(up.Planes()[0], bytes.Repeat([]byte{1, 2, 3}, 8)) {
		t.Fatalf("scaled rgb = %v", up.Planes()[0])
	}
}

func TestCrop(t *testing.T) {
	// 3x2 BGR image whose pixel bytes encode their own position.
	data := []byte{
		0, 0, 0, 1, 1, 1, 2, 2, 2,
		10, 10, 10, 11, 11, 11, 12, 12, 12,
	}
	src := &BGRFrame{Meta: Meta{Width: 3, Height: 2, DisplayTime: 4}, Data: data}

	got, err := Crop(src, image.Rect(1, 0, 3, 2))
	if err != nil {
		t.Fatal(err)
	}
	if w, h := got.Dimensions(); w != 2 || h != 2 {
		t.Fatalf("cropped size %dx%d, want 2x2", w, h)
	}
	want := []byte{1, 1, 1, 2, 2, 2, 11, 11, 11, 12, 12, 12}
	if !bytes.Equal(got.Planes()[0], want) {
		t.Fatalf("cropped = %v, want %v", got.Planes()[0], want)
	}
	if got.Timestamp() != 4 {
		t.Fatalf("timestamp = %d", got.Timestamp())
	}

	clipped, err := Crop(src, image.Rect(2, 1, 10, 10))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(clipped.Planes()[0], []byte{12, 12, 12}) {
		t.Fatalf("clipped = %v", clipped.Planes()[0])
	}

	if _, err := Crop(src, image.Rect(5, 5, 6, 6)); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("crop outside err = %v", err)
	}
	if same, _ := Crop(src, image.Rect(0, 0, 3, 2)); same != Video(src) {
		t.Fatal("full-frame crop should return the input")
	}
}

func TestToImage(t *testing.T) {
	img, err := ToImage(&BGRAFrame{Meta: Meta{Width: 1, Height: 1}, Data: []byte{1, 2, 3, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := img.Pix, []byte{3, 2, 1, 255}; !bytes.Equal(got, want) {
		t.Fatalf("Pix = %v, want %v", got, want)
	}
	if _, err := ToImage(NewIdle(TypeBGRA, 0)); err == nil {
		t.Fatal("ToImage(idle) should fail")
	}
}

func TestAudioFrame(t *testing.T) {
	samples := []float32{0.5, -0.5, 1.5, -1}
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}

	a := &AudioFrame{Format: AudioF32, Channels: 2, Planar: true, Data: data, SampleCount: 2, Rate: 48000}
	if err := a.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := a.Plane(1); !bytes.Equal(got, data[8:]) {
		t.Fatalf("Plane(1) = %v", got)
	}
	if a.Plane(2) != nil {
		t.Fatal("Plane(2) should be nil for a stereo frame")
	}

	pcm, err := a.ToInterleavedS16()
	if err != nil {
		t.Fatal(err)
	}
	// planar L=[0.5, -0.5], R=[1.5, -1] -> L0 R0 L1 R1
	want := []int16{16384, 32767, -16384, -32768}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(pcm[i*2:])); got != w {
			t.Fatalf("sample %d = %d, want %d", i, got, w)
		}
	}

	short := &AudioFrame{Format: AudioI16, Channels: 2, Data: make([]byte, 7), SampleCount: 2}
	if err := short.Validate(); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("Validate(short) = %v", err)
	}
}

func TestAudioSampleSizes(t *testing.T) {
	tests := map[AudioFormat]int{
		AudioI8: 1, AudioU8: 1, AudioI16: 2, AudioU16: 2,
		AudioI32: 4, AudioU32: 4, AudioF32: 4,
		AudioI64: 8, AudioU64: 8, AudioF64: 8,
	}
	for f, want := range tests {
		if got := f.SampleSize(); got != want {
			t.Errorf("%s.SampleSize() = %d, want %d", f, got, want)
		}
	}
}
