package frame

import "fmt"

// BGRAToNV12 converts BGRA pixel data to a video-range NV12 image with BT.601
// coefficients in fixed-point arithmetic. stride is the source row length in
// bytes. For 0-255 input, Y lands in [16,235] and UV in [16,240] so no
// clamping is needed.
func BGRAToNV12(bgra []byte, width, height, stride int) (yPlane, uvPlane []byte, err error) {
	if width%2 != 0 || height%2 != 0 {
		return nil, nil, fmt.Errorf("%w: %dx%d", ErrOddDimensions, width, height)
	}
	if stride < width*4 || len(bgra) < (height-1)*stride+width*4 {
		return nil, nil, fmt.Errorf("%w: %d bytes for %dx%d stride %d", ErrSizeMismatch, len(bgra), width, height, stride)
	}

	yPlane = make([]byte, width*height)
	uvPlane = make([]byte, width*height/2)

	// Pass 1: Y plane. BGRA order: R=pi+2, G=pi+1, B=pi+0
	for y := 0; y < height; y++ {
		row := bgra[y*stride : y*stride+width*4]
		yRow := yPlane[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			pi := x * 4
			yRow[x] = byte((66*int(row[pi+2])+129*int(row[pi+1])+25*int(row[pi])+128)>>8 + 16)
		}
	}

	// Pass 2: UV plane, one sample per 2x2 block taken from its top-left pixel.
	for y := 0; y < height; y += 2 {
		row := bgra[y*stride : y*stride+width*4]
		uvRow := uvPlane[(y/2)*width : (y/2+1)*width]
		for x := 0; x < width; x += 2 {
			pi := x * 4
			r := int(row[pi+2])
			g := int(row[pi+1])
			b := int(row[pi])

			uvRow[x] = byte((-38*r-74*g+112*b+128)>>8 + 128)
			uvRow[x+1] = byte((112*r-94*g-18*b+128)>>8 + 128)
		}
	}
	return yPlane, uvPlane, nil
}
