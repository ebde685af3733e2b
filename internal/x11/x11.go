// Package x11 wraps the xgb connection used for target enumeration, frame
// grabs and cursor queries on X11 sessions.
package x11

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"sync"
	"unicode/utf8"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/rs/zerolog"

	"go2tv.app/screencap/internal/envutil"
	"go2tv.app/screencap/internal/logger"
)

var (
	ErrNoDisplay       = errors.New("DISPLAY is not set")
	ErrWindowNotFound  = errors.New("x11 window not found")
	ErrMonitorNotFound = errors.New("x11 monitor not found")
	ErrNoCursor        = errors.New("xfixes cursor image unavailable")
)

// Conn is an X11 connection plus the extension state and atom cache of one
// session. It is safe for concurrent use.
type Conn struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	root   xproto.Window
	log    *zerolog.Logger

	randr     bool
	xfixes    bool
	composite bool

	atomsMu sync.Mutex
	atoms   map[string]xproto.Atom
}

// Connect opens the default display and initializes the RandR, XFixes and
// Composite extensions where the server offers them.
func Connect() (*Conn, error) {
	if !envutil.CurrentSession().X11 {
		return nil, ErrNoDisplay
	}
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)
	c := &Conn{
		conn:   conn,
		screen: screen,
		root:   screen.Root,
		log:    logger.WithComponent("x11"),
		atoms:  make(map[string]xproto.Atom),
	}

	if err := randr.Init(conn); err != nil {
		c.log.Debug().Err(err).Msg("RandR extension not available; using the root window as the only monitor")
	} else {
		c.randr = true
	}
	if err := xfixes.Init(conn); err != nil {
		c.log.Debug().Err(err).Msg("XFixes extension not available; cursor compositing disabled")
	} else if _, err := xfixes.QueryVersion(conn, 4, 0).Reply(); err != nil {
		c.log.Debug().Err(err).Msg("XFixes version negotiation failed")
	} else {
		c.xfixes = true
	}
	if err := composite.Init(conn); err != nil {
		c.log.Debug().Err(err).Msg("Composite extension not available - obscured windows capture as seen on screen")
	} else {
		c.composite = true
	}
	return c, nil
}

// Close closes the connection.
func (c *Conn) Close() {
	c.conn.Close()
}

// Root returns the root window of the default screen.
func (c *Conn) Root() xproto.Window {
	return c.root
}

// HasCursor reports whether XFixes cursor images can be fetched.
func (c *Conn) HasCursor() bool {
	return c.xfixes
}

func (c *Conn) atom(name string) (xproto.Atom, error) {
	c.atomsMu.Lock()
	defer c.atomsMu.Unlock()
	if a, ok := c.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(c.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	c.atoms[name] = reply.Atom
	return reply.Atom, nil
}

func (c *Conn) property(win xproto.Window, name string) (*xproto.GetPropertyReply, error) {
	a, err := c.atom(name)
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(c.conn, false, win, a, xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return nil, err
	}
	if reply.ValueLen == 0 {
		return nil, fmt.Errorf("property %s is empty", name)
	}
	return reply, nil
}

// Monitor is one active RandR CRTC.
type Monitor struct {
	ID      uint32
	Name    string
	Bounds  image.Rectangle
	Primary bool
}

// Monitors returns the active monitors. Without RandR the whole root window
// is reported as a single primary monitor with the root window id.
func (c *Conn) Monitors() ([]Monitor, error) {
	if !c.randr {
		return []Monitor{c.rootMonitor()}, nil
	}

	res, err := randr.GetScreenResourcesCurrent(c.conn, c.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("get screen resources: %w", err)
	}

	var primaryCrtc randr.Crtc
	if p, err := randr.GetOutputPrimary(c.conn, c.root).Reply(); err == nil && p.Output != 0 {
		if info, err := randr.GetOutputInfo(c.conn, p.Output, res.ConfigTimestamp).Reply(); err == nil {
			primaryCrtc = info.Crtc
		}
	}

	var monitors []Monitor
	for _, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(c.conn, crtc, res.ConfigTimestamp).Reply()
		if err != nil {
			c.log.Debug().Uint32("crtc", uint32(crtc)).Err(err).Msg("skipping crtc")
			continue
		}
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}
		name := fmt.Sprintf("Display %d", len(monitors)+1)
		if out, err := randr.GetOutputInfo(c.conn, info.Outputs[0], res.ConfigTimestamp).Reply(); err == nil &&
			out.Connection == randr.ConnectionConnected && len(out.Name) > 0 {
			name = string(out.Name)
		}
		x, y := int(info.X), int(info.Y)
		monitors = append(monitors, Monitor{
			ID:      uint32(crtc),
			Name:    name,
			Bounds:  image.Rect(x, y, x+int(info.Width), y+int(info.Height)),
			Primary: crtc == primaryCrtc,
		})
	}

	if len(monitors) == 0 {
		return []Monitor{c.rootMonitor()}, nil
	}
	if primaryCrtc == 0 {
		monitors[0].Primary = true
	}
	return monitors, nil
}

func (c *Conn) rootMonitor() Monitor {
	return Monitor{
		ID:      uint32(c.root),
		Name:    "Screen",
		Bounds:  image.Rect(0, 0, int(c.screen.WidthInPixels), int(c.screen.HeightInPixels)),
		Primary: true,
	}
}

// Monitor returns the monitor with the given id.
func (c *Conn) Monitor(id uint32) (Monitor, error) {
	monitors, err := c.Monitors()
	if err != nil {
		return Monitor{}, err
	}
	for _, m := range monitors {
		if m.ID == id {
			return m, nil
		}
	}
	return Monitor{}, fmt.Errorf("%w: %d", ErrMonitorNotFound, id)
}

// WindowInfo is one EWMH client window.
type WindowInfo struct {
	ID    uint32
	Title string
}

// Windows returns the windows listed in _NET_CLIENT_LIST.
func (c *Conn) Windows() ([]WindowInfo, error) {
	reply, err := c.property(c.root, "_NET_CLIENT_LIST")
	if err != nil {
		return nil, fmt.Errorf("read _NET_CLIENT_LIST: %w", err)
	}

	windows := make([]WindowInfo, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		win := xproto.Window(binary.LittleEndian.Uint32(reply.Value[i:]))
		windows = append(windows, WindowInfo{ID: uint32(win), Title: c.Title(win)})
	}
	return windows, nil
}

// Title returns the _NET_WM_NAME of win, falling back to WM_NAME and then
// "n/a".
func (c *Conn) Title(win xproto.Window) string {
	for _, name := range []string{"_NET_WM_NAME", "WM_NAME"} {
		reply, err := c.property(win, name)
		if err != nil {
			continue
		}
		if utf8.Valid(reply.Value) {
			return string(reply.Value)
		}
		return latin1(reply.Value)
	}
	return "n/a"
}

func latin1(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// WindowSize returns the window size without translating its origin.
func (c *Conn) WindowSize(win xproto.Window) (int, int, error) {
	geom, err := xproto.GetGeometry(c.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %d: %v", ErrWindowNotFound, win, err)
	}
	return int(geom.Width), int(geom.Height), nil
}

// ToWindow translates a root-relative point into win's coordinate space.
// ok is false when the window is gone or on another screen.
func (c *Conn) ToWindow(win xproto.Window, x, y int) (int, int, bool) {
	tr, err := xproto.TranslateCoordinates(c.conn, c.root, win, int16(x), int16(y)).Reply()
	if err != nil || !tr.SameScreen {
		return 0, 0, false
	}
	return int(tr.DstX), int(tr.DstY), true
}

// Cursor is the current pointer image in premultiplied ARGB.
type Cursor struct {
	X, Y          int
	Width, Height int
	XHot, YHot    int
	Serial        uint32
	Pixels        []uint32
}

// Cursor fetches the current pointer image and its root position.
func (c *Conn) Cursor() (Cursor, error) {
	if !c.xfixes {
		return Cursor{}, ErrNoCursor
	}
	reply, err := xfixes.GetCursorImage(c.conn).Reply()
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrNoCursor, err)
	}
	return Cursor{
		X:      int(reply.X),
		Y:      int(reply.Y),
		Width:  int(reply.Width),
		Height: int(reply.Height),
		XHot:   int(reply.Xhot),
		YHot:   int(reply.Yhot),
		Serial: reply.CursorSerial,
		Pixels: reply.CursorImage,
	}, nil
}

// Image is a ZPixmap grab of a drawable region.
type Image struct {
	Width, Height int
	Stride        int
	Depth         byte
	Data          []byte
}

// GrabRoot reads rect of the root window.
func (c *Conn) GrabRoot(rect image.Rectangle) (Image, error) {
	return c.grab(xproto.Drawable(c.root), rect)
}

// GrabWindow reads rect of win, in window coordinates. With Composite the
// window's offscreen pixmap is read so overlapping windows do not bleed in.
func (c *Conn) GrabWindow(win xproto.Window, rect image.Rectangle) (Image, error) {
	if !c.composite {
		return c.grab(xproto.Drawable(win), rect)
	}
	if err := composite.RedirectWindowChecked(c.conn, win, composite.RedirectAutomatic).Check(); err != nil {
		c.log.Debug().Err(err).Uint32("window", uint32(win)).Msg("composite redirect failed, falling back to direct grab")
		return c.grab(xproto.Drawable(win), rect)
	}
	defer composite.UnredirectWindow(c.conn, win, composite.RedirectAutomatic)

	pixmap, err := xproto.NewPixmapId(c.conn)
	if err != nil {
		return c.grab(xproto.Drawable(win), rect)
	}
	if err := composite.NameWindowPixmapChecked(c.conn, win, pixmap).Check(); err != nil {
		return c.grab(xproto.Drawable(win), rect)
	}
	defer xproto.FreePixmap(c.conn, pixmap)
	return c.grab(xproto.Drawable(pixmap), rect)
}

func (c *Conn) grab(d xproto.Drawable, rect image.Rectangle) (Image, error) {
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return Image{}, fmt.Errorf("empty grab rectangle %v", rect)
	}
	reply, err := xproto.GetImage(c.conn, xproto.ImageFormatZPixmap, d,
		int16(rect.Min.X), int16(rect.Min.Y), uint16(w), uint16(h), 0xffffffff).Reply()
	if err != nil {
		return Image{}, fmt.Errorf("get image: %w", err)
	}
	if reply.Depth != 24 && reply.Depth != 32 {
		return Image{}, fmt.Errorf("unsupported drawable depth %d", reply.Depth)
	}
	stride := w * 4
	if len(reply.Data) < stride*h {
		return Image{}, fmt.Errorf("short image reply: %d bytes for %dx%d", len(reply.Data), w, h)
	}
	return Image{Width: w, Height: h, Stride: stride, Depth: reply.Depth, Data: reply.Data}, nil
}
