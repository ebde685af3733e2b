//go:build linux

package capture

import "go2tv.app/screencap/internal/x11"

// pointer returns the cursor image positioned in the grab's coordinate
// space: root coordinates for displays, window coordinates for windows. A
// pointer on another screen or over a window that vanished is skipped.
func (b *x11Backend) pointer() (cursorImage, bool) {
	cur, err := b.conn.Cursor()
	if err != nil {
		return cursorImage{}, false
	}
	x, y := cur.X, cur.Y
	if b.window != 0 {
		var ok bool
		x, y, ok = b.conn.ToWindow(b.window, x, y)
		if !ok {
			return cursorImage{}, false
		}
	}
	return cursorFromX11(cur, x, y), true
}

func cursorFromX11(cur x11.Cursor, x, y int) cursorImage {
	return cursorImage{
		pixels: cur.Pixels,
		width:  cur.Width,
		height: cur.Height,
		xhot:   cur.XHot,
		yhot:   cur.YHot,
		x:      x,
		y:      y,
	}
}
