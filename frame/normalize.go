package frame

// YCbCrToRGB converts a video-range NV12 image to packed RGB. stride is the
// per-row padding in bytes past width, shared by both planes.
func YCbCrToRGB(yPlane, cbcrPlane []byte, width, height, stride int) []byte {
	out := make([]byte, 0, width*height*3)
	row := width + stride

	for h := 0; h < height; h++ {
		for w := 0; w < width; w++ {
			yIdx := h*row + w
			uvIdx := (h/2)*row + w - w%2

			y := (float32(yPlane[yIdx]) - 16) * (255.0 / (235.0 - 16.0))
			cb := (float32(cbcrPlane[uvIdx])-16)*(255.0/(240.0-16.0)) - 128
			cr := (float32(cbcrPlane[uvIdx+1])-16)*(255.0/(240.0-16.0)) - 128

			out = append(out,
				clampByte(y+1.402*cr),
				clampByte(y-0.344136*cb-0.714136*cr),
				clampByte(y+1.772*cb),
			)
		}
	}
	return out
}

func clampByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}

// CropByStride keeps the first width pixels of every row of a 4-byte-per-pixel
// image whose rows are curWidth pixels long. A buffer whose length is not
// height*curWidth*4 is returned as an unmodified copy.
func CropByStride(data []byte, curWidth, height, width int) []byte {
	if len(data) != height*curWidth*4 || width > curWidth || width < 0 {
		return append([]byte(nil), data...)
	}

	out := make([]byte, 0, height*width*4)
	rowBytes := curWidth * 4
	for row := 0; row < height; row++ {
		start := row * rowBytes
		out = append(out, data[start:start+width*4]...)
	}
	return out
}

// RemoveAlphaChannel drops every fourth byte: [a,b,c,d] -> [a,b,c].
func RemoveAlphaChannel(data []byte) []byte {
	out := make([]byte, 0, len(data)/4*3)
	for i := 0; i+3 < len(data); i += 4 {
		out = append(out, data[i], data[i+1], data[i+2])
	}
	return out
}

// ConvertBGRAToRGB maps [B,G,R,A] -> [R,G,B].
func ConvertBGRAToRGB(data []byte) []byte {
	out := make([]byte, 0, len(data)/4*3)
	for i := 0; i+3 < len(data); i += 4 {
		out = append(out, data[i+2], data[i+1], data[i])
	}
	return out
}

// ConvertXBGRToRGB maps [x,B,G,R] -> [R,G,B].
func ConvertXBGRToRGB(data []byte) []byte {
	out := make([]byte, 0, len(data)/4*3)
	for i := 0; i+3 < len(data); i += 4 {
		out = append(out, data[i+3], data[i+2], data[i+1])
	}
	return out
}

// ConvertBGRxToBGRA copies BGRx and forces the fourth byte opaque.
func ConvertBGRxToBGRA(data []byte) []byte {
	out := make([]byte, len(data)/4*4)
	for i := 0; i+3 < len(data); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = data[i], data[i+1], data[i+2], 0xff
	}
	return out
}

// ConvertRGBxToBGRA maps [R,G,B,x] -> [B,G,R,255].
func ConvertRGBxToBGRA(data []byte) []byte {
	out := make([]byte, len(data)/4*4)
	for i := 0; i+3 < len(data); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = data[i+2], data[i+1], data[i], 0xff
	}
	return out
}

// ConvertXBGRToBGRA maps [x,B,G,R] -> [B,G,R,255].
func ConvertXBGRToBGRA(data []byte) []byte {
	out := make([]byte, len(data)/4*4)
	for i := 0; i+3 < len(data); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = data[i+1], data[i+2], data[i+3], 0xff
	}
	return out
}

// ConvertRGBToBGRA maps [R,G,B] -> [B,G,R,255].
func ConvertRGBToBGRA(data []byte) []byte {
	n := len(data) / 3
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		s, d := i*3, i*4
		out[d], out[d+1], out[d+2], out[d+3] = data[s+2], data[s+1], data[s], 0xff
	}
	return out
}

// ConvertBGRToBGRA maps [B,G,R] -> [B,G,R,255].
func ConvertBGRToBGRA(data []byte) []byte {
	n := len(data) / 3
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		s, d := i*3, i*4
		out[d], out[d+1], out[d+2], out[d+3] = data[s], data[s+1], data[s+2], 0xff
	}
	return out
}

// SwapRGB reverses the byte order of each 3-byte pixel (RGB <-> BGR).
func SwapRGB(data []byte) []byte {
	n := len(data) / 3
	out := make([]byte, n*3)
	for i := 0; i < n; i++ {
		s := i * 3
		out[s], out[s+1], out[s+2] = data[s+2], data[s+1], data[s]
	}
	return out
}

// CopyPlane copies rows rows of rowBytes bytes from src to dst when the two
// buffers use different line sizes. It returns the number of rows copied,
// which is smaller than rows when either buffer is too short.
func CopyPlane(dst []byte, dstStride int, src []byte, srcStride, rowBytes, rows int) int {
	if rowBytes > dstStride || rowBytes > srcStride {
		return 0
	}
	for r := 0; r < rows; r++ {
		s := r * srcStride
		d := r * dstStride
		if s+rowBytes > len(src) || d+rowBytes > len(dst) {
			return r
		}
		copy(dst[d:d+rowBytes], src[s:s+rowBytes])
	}
	return rows
}

// PackPlane returns a tightly packed copy of a strided plane.
func PackPlane(src []byte, srcStride, rowBytes, rows int) []byte {
	if srcStride == rowBytes && len(src) == rowBytes*rows {
		return append([]byte(nil), src...)
	}
	out := make([]byte, rowBytes*rows)
	n := CopyPlane(out, rowBytes, src, srcStride, rowBytes, rows)
	return out[:n*rowBytes]
}
