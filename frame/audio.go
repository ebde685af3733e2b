package frame

import (
	"encoding/binary"
	"fmt"
	"math"
)

// AudioFormat is the sample encoding of an AudioFrame.
type AudioFormat int

const (
	AudioI8 AudioFormat = iota
	AudioI16
	AudioI32
	AudioI64
	AudioU8
	AudioU16
	AudioU32
	AudioU64
	AudioF32
	AudioF64
)

// SampleSize returns the size of one sample in bytes.
func (f AudioFormat) SampleSize() int {
	switch f {
	case AudioI8, AudioU8:
		return 1
	case AudioI16, AudioU16:
		return 2
	case AudioI32, AudioU32, AudioF32:
		return 4
	case AudioI64, AudioU64, AudioF64:
		return 8
	default:
		return 0
	}
}

func (f AudioFormat) String() string {
	switch f {
	case AudioI8:
		return "s8"
	case AudioI16:
		return "s16le"
	case AudioI32:
		return "s32le"
	case AudioI64:
		return "s64le"
	case AudioU8:
		return "u8"
	case AudioU16:
		return "u16le"
	case AudioU32:
		return "u32le"
	case AudioU64:
		return "u64le"
	case AudioF32:
		return "f32le"
	case AudioF64:
		return "f64le"
	default:
		return fmt.Sprintf("AudioFormat(%d)", int(f))
	}
}

// AudioFrame is one block of decoded audio samples. Planar data stores each
// channel contiguously; packed data interleaves channels per sample.
type AudioFrame struct {
	Format      AudioFormat
	Channels    uint16
	Planar      bool
	Data        []byte
	SampleCount int
	Rate        uint32
	DisplayTime uint64
}

func (a *AudioFrame) Timestamp() uint64 { return a.DisplayTime }

func (*AudioFrame) isFrame() {}

// Validate enforces len(Data) >= SampleCount * SampleSize * Channels.
func (a *AudioFrame) Validate() error {
	need := a.SampleCount * a.Format.SampleSize() * int(a.Channels)
	if a.Channels == 0 || a.Format.SampleSize() == 0 {
		return fmt.Errorf("%w: audio %s with %d channels", ErrSizeMismatch, a.Format, a.Channels)
	}
	if len(a.Data) < need {
		return fmt.Errorf("%w: audio needs %d bytes, got %d", ErrSizeMismatch, need, len(a.Data))
	}
	return nil
}

// Plane returns channel i of planar data, or nil if the frame is packed or i
// is out of range.
func (a *AudioFrame) Plane(i int) []byte {
	if !a.Planar || i < 0 || i >= int(a.Channels) {
		return nil
	}
	size := a.SampleCount * a.Format.SampleSize()
	start := i * size
	if start+size > len(a.Data) {
		return nil
	}
	return a.Data[start : start+size]
}

// ToInterleavedS16 converts planar or packed F32 audio to interleaved signed
// 16-bit little-endian PCM.
func (a *AudioFrame) ToInterleavedS16() ([]byte, error) {
	if a.Format != AudioF32 {
		return nil, fmt.Errorf("%w: %s to s16le", ErrUnsupportedType, a.Format)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	channels := int(a.Channels)
	out := make([]byte, a.SampleCount*channels*2)
	for i := 0; i < a.SampleCount; i++ {
		for ch := 0; ch < channels; ch++ {
			var off int
			if a.Planar {
				off = (ch*a.SampleCount + i) * 4
			} else {
				off = (i*channels + ch) * 4
			}
			v := math.Float32frombits(binary.LittleEndian.Uint32(a.Data[off : off+4]))
			oi := (i*channels + ch) * 2
			binary.LittleEndian.PutUint16(out[oi:oi+2], uint16(float32ToPCM16(v)))
		}
	}
	return out, nil
}

func float32ToPCM16(v float32) int16 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	if v >= 1 {
		return 32767
	}
	if v <= -1 {
		return -32768
	}

	scaled := int32(math.Round(float64(v * 32767)))
	scaled = max(min(scaled, 32767), -32768)
	return int16(scaled)
}
