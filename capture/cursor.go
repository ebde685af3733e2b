package capture

import "image"

// cursorImage is a pointer bitmap in premultiplied ARGB, one uint32 per pixel,
// positioned by its hotspot at (x, y) in the same space as the capture rect.
type cursorImage struct {
	pixels        []uint32
	width, height int
	xhot, yhot    int
	x, y          int
}

// compositeCursor blends cur onto img, a BGRx buffer holding rect with the
// given stride. Pixels outside rect are clipped.
func compositeCursor(img []byte, stride int, rect image.Rectangle, cur cursorImage) {
	if cur.width <= 0 || cur.height <= 0 || len(cur.pixels) < cur.width*cur.height {
		return
	}

	left := cur.x - cur.xhot
	top := cur.y - cur.yhot
	bounds := image.Rect(left, top, left+cur.width, top+cur.height).Intersect(rect)
	if bounds.Empty() {
		return
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := (y - rect.Min.Y) * stride
		src := cur.pixels[(y-top)*cur.width:]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := row + (x-rect.Min.X)*4
			if i+3 >= len(img) {
				return
			}
			blendPixel(img[i:i+3], src[x-left])
		}
	}
}

// blendPixel applies one premultiplied ARGB pixel onto a BGR triple.
func blendPixel(dst []byte, argb uint32) {
	a := argb >> 24
	switch a {
	case 0:
		return
	case 255:
		dst[0] = byte(argb)
		dst[1] = byte(argb >> 8)
		dst[2] = byte(argb >> 16)
		return
	}
	inv := 255 - a
	dst[0] = byte(argb&0xff + uint32(dst[0])*inv/255)
	dst[1] = byte((argb>>8)&0xff + uint32(dst[1])*inv/255)
	dst[2] = byte((argb>>16)&0xff + uint32(dst[2])*inv/255)
}
