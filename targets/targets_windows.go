//go:build windows

package targets

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modUser32 = windows.NewLazySystemDLL("user32.dll")
	modShcore = windows.NewLazySystemDLL("shcore.dll")
	modDwmapi = windows.NewLazySystemDLL("dwmapi.dll")

	procEnumDisplayMonitors  = modUser32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW      = modUser32.NewProc("GetMonitorInfoW")
	procGetWindowTextW       = modUser32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = modUser32.NewProc("GetWindowTextLengthW")
	procGetClientRect        = modUser32.NewProc("GetClientRect")
	procGetDpiForWindow      = modUser32.NewProc("GetDpiForWindow")
	procGetDpiForMonitor     = modShcore.NewProc("GetDpiForMonitor")
	procDwmGetWindowAttr     = modDwmapi.NewProc("DwmGetWindowAttribute")
)

const (
	monitorInfoPrimary = 0x1
	mdtEffectiveDPI    = 0
	dwmwaCloaked       = 14
	defaultDPI         = 96.0
)

type monitorInfoEx struct {
	CbSize   uint32
	Monitor  windows.Rect
	Work     windows.Rect
	Flags    uint32
	SzDevice [32]uint16
}

type monitor struct {
	handle uintptr
	info   monitorInfoEx
}

func enumMonitors() ([]monitor, error) {
	var monitors []monitor
	cb := windows.NewCallback(func(hmon, hdc, rect, lparam uintptr) uintptr {
		m := monitor{handle: hmon}
		m.info.CbSize = uint32(unsafe.Sizeof(m.info))
		if ret, _, _ := procGetMonitorInfoW.Call(hmon, uintptr(unsafe.Pointer(&m.info))); ret != 0 {
			monitors = append(monitors, m)
		}
		return 1
	})
	if ret, _, err := procEnumDisplayMonitors.Call(0, 0, cb, 0); ret == 0 {
		return nil, fmt.Errorf("EnumDisplayMonitors: %w", err)
	}
	if len(monitors) == 0 {
		return nil, fmt.Errorf("%w: no monitors", ErrTargetNotFound)
	}
	return monitors, nil
}

// monitorName strips the \\.\ prefix from the GDI device name.
func monitorName(m monitor) string {
	name := windows.UTF16ToString(m.info.SzDevice[:])
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func monitorScale(hmon uintptr) float64 {
	if procGetDpiForMonitor.Find() != nil {
		return 1
	}
	var dpiX, dpiY uint32
	hr, _, _ := procGetDpiForMonitor.Call(hmon, mdtEffectiveDPI,
		uintptr(unsafe.Pointer(&dpiX)), uintptr(unsafe.Pointer(&dpiY)))
	if int32(hr) < 0 || dpiX == 0 {
		return 1
	}
	return (float64(dpiX) + float64(dpiY)) / 2 / defaultDPI
}

func windowScale(hwnd uintptr) float64 {
	if procGetDpiForWindow.Find() != nil {
		return 1
	}
	dpi, _, _ := procGetDpiForWindow.Call(hwnd)
	if dpi == 0 {
		return 1
	}
	return float64(dpi) / defaultDPI
}

func displays() ([]Display, error) {
	monitors, err := enumMonitors()
	if err != nil {
		return nil, err
	}
	out := make([]Display, 0, len(monitors))
	for i, m := range monitors {
		out = append(out, Display{
			ID:          uint32(i + 1),
			Title:       monitorName(m),
			ScaleFactor: monitorScale(m.handle),
			RawHandle:   m.handle,
		})
	}
	return out, nil
}

func windowTitle(hwnd windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func cloaked(hwnd windows.HWND) bool {
	if procDwmGetWindowAttr.Find() != nil {
		return false
	}
	var v uint32
	hr, _, _ := procDwmGetWindowAttr.Call(uintptr(hwnd), dwmwaCloaked, uintptr(unsafe.Pointer(&v)), unsafe.Sizeof(v))
	return int32(hr) >= 0 && v != 0
}

// captureWindows lists visible, titled, uncloaked top-level windows.
func captureWindows() ([]Window, error) {
	var out []Window
	shell := windows.GetShellWindow()
	cb := windows.NewCallback(func(hwnd windows.HWND, lparam uintptr) uintptr {
		if hwnd == shell || !windows.IsWindowVisible(hwnd) || cloaked(hwnd) {
			return 1
		}
		title := windowTitle(hwnd)
		if title == "" {
			return 1
		}
		out = append(out, Window{ID: uint32(len(out) + 1), Title: title, RawHandle: uintptr(hwnd)})
		return 1
	})
	if err := windows.EnumWindows(cb, nil); err != nil {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}
	return out, nil
}

func allTargets() ([]Target, error) {
	ds, err := displays()
	if err != nil {
		return nil, err
	}
	var out []Target
	for _, d := range ds {
		out = append(out, d)
	}
	ws, err := captureWindows()
	if err != nil {
		return out, nil
	}
	for _, w := range ws {
		out = append(out, w)
	}
	return out, nil
}

func mainDisplay() (Display, error) {
	monitors, err := enumMonitors()
	if err != nil {
		return Display{}, err
	}
	for i, m := range monitors {
		if m.info.Flags&monitorInfoPrimary != 0 {
			return Display{
				ID:          uint32(i + 1),
				Title:       monitorName(m),
				ScaleFactor: monitorScale(m.handle),
				RawHandle:   m.handle,
			}, nil
		}
	}
	return Display{}, fmt.Errorf("%w: no primary monitor", ErrTargetNotFound)
}

func scaleFactor(t Target) (float64, error) {
	switch v := t.(type) {
	case Display:
		return monitorScale(v.RawHandle), nil
	case Window:
		if !windows.IsWindow(windows.HWND(v.RawHandle)) {
			return 0, fmt.Errorf("%w: window %d", ErrTargetNotFound, v.ID)
		}
		return windowScale(v.RawHandle), nil
	default:
		return 0, fmt.Errorf("%w: unknown target type %T", ErrTargetNotFound, t)
	}
}

// dimensions converts physical pixels to logical points by the target's DPI.
func dimensions(t Target) (uint64, uint64, error) {
	scale, err := scaleFactor(t)
	if err != nil {
		return 0, 0, err
	}
	var r windows.Rect
	switch v := t.(type) {
	case Display:
		var info monitorInfoEx
		info.CbSize = uint32(unsafe.Sizeof(info))
		if ret, _, _ := procGetMonitorInfoW.Call(v.RawHandle, uintptr(unsafe.Pointer(&info))); ret == 0 {
			return 0, 0, fmt.Errorf("%w: display %d", ErrTargetNotFound, v.ID)
		}
		r = info.Monitor
	case Window:
		if ret, _, _ := procGetClientRect.Call(v.RawHandle, uintptr(unsafe.Pointer(&r))); ret == 0 {
			return 0, 0, fmt.Errorf("%w: window %d", ErrTargetNotFound, v.ID)
		}
	}
	w := float64(r.Right-r.Left) / scale
	h := float64(r.Bottom-r.Top) / scale
	return uint64(w), uint64(h), nil
}
