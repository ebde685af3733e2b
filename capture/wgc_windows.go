//go:build windows

package capture

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

var (
	d3d11DLL = syscall.NewLazyDLL("d3d11.dll")

	procD3D11CreateDevice                    = d3d11DLL.NewProc("D3D11CreateDevice")
	procCreateDirect3D11DeviceFromDXGIDevice = d3d11DLL.NewProc("CreateDirect3D11DeviceFromDXGIDevice")
)

const (
	d3dDriverTypeHardware        = 1
	d3d11SDKVersion              = 7
	d3d11CreateDeviceBGRASupport = 0x20

	d3d11UsageStaging  = 3
	d3d11CPUAccessRead = 0x20000
	d3d11MapRead       = 1
	dxgiFormatB8G8R8A8 = 87

	// ID3D11Device / ID3D11DeviceContext / ID3D11Texture2D
	d3d11DeviceCreateTexture2D = 5
	d3d11CtxMap                = 14
	d3d11CtxUnmap              = 15
	d3d11CtxCopyResource       = 47
	d3d11TextureGetDesc        = 10

	// IGraphicsCaptureItemInterop
	interopCreateForWindow  = 3
	interopCreateForMonitor = 4
	// IGraphicsCaptureItem
	itemGetSize = 7
	// IDirect3D11CaptureFramePoolStatics2
	poolStaticsCreateFreeThreaded = 6
	// IDirect3D11CaptureFramePool
	poolRecreate             = 6
	poolTryGetNextFrame      = 7
	poolCreateCaptureSession = 10
	// IDirect3D11CaptureFrame
	frameGetSurface            = 6
	frameGetSystemRelativeTime = 7
	frameGetContentSize        = 8
	// IGraphicsCaptureSession
	sessionStartCapture = 6
	// IGraphicsCaptureSession2 and 3 setters
	sessionPutCursorEnabled  = 7
	sessionPutBorderRequired = 7
	// IDirect3DDxgiInterfaceAccess
	dxgiAccessGetInterface = 3

	wgcBufferCount = 2
)

var (
	iidItemInterop       = ole.NewGUID("{3628E81B-3CAC-4C60-B7F4-23CE0E0C3356}")
	iidCaptureItem       = ole.NewGUID("{79C3F95B-31F7-4EC2-A464-632EF5D30760}")
	iidFramePoolStatics2 = ole.NewGUID("{589B103F-6BBC-5DF5-A991-02E28B3B66D5}")
	iidDxgiAccess        = ole.NewGUID("{A9B3D012-3DF2-4EE3-B8D1-8695F457D3C1}")
	iidIClosable         = ole.NewGUID("{30D5A829-7FA4-4026-83BB-D75BAE4EA99E}")
	iidCaptureSession2   = ole.NewGUID("{2C39AE40-7D2E-5044-804E-8B6799D4CF9E}")
	iidCaptureSession3   = ole.NewGUID("{F2CDD966-22AE-5EA1-9596-3A289344C3BE}")
	iidIDXGIDevice       = ole.NewGUID("{54EC77FA-1377-44E6-8C32-88FD5F44C84C}")
	iidID3D11Texture2D   = ole.NewGUID("{6F15AAF2-D208-4E89-9AB4-489535D34F9C}")
)

// d3d11Texture2DDesc matches D3D11_TEXTURE2D_DESC.
type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32
	SampleQuality  uint32
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

// d3d11MappedSubresource matches D3D11_MAPPED_SUBRESOURCE.
type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

type sizeInt32 struct {
	Width, Height int32
}

// wgcSession holds the COM objects of one Windows.Graphics.Capture session.
// Every field is a raw interface pointer released by close.
type wgcSession struct {
	device    uintptr // ID3D11Device
	context   uintptr // ID3D11DeviceContext
	winrtDev  uintptr // IDirect3DDevice
	item      uintptr // IGraphicsCaptureItem
	pool      uintptr // IDirect3D11CaptureFramePool
	session   uintptr // IGraphicsCaptureSession
	staging   uintptr // ID3D11Texture2D
	stageDesc d3d11Texture2DDesc
	size      sizeInt32
}

// openWGC creates the device, capture item and a free-threaded frame pool for
// a monitor (isWindow false) or window handle.
func openWGC(handle uintptr, isWindow bool) (*wgcSession, error) {
	if err := roInitialize(); err != nil {
		return nil, err
	}
	s := &wgcSession{}
	if err := s.createDevice(); err != nil {
		s.close()
		return nil, err
	}
	if err := s.createItem(handle, isWindow); err != nil {
		s.close()
		return nil, err
	}
	if err := s.createPool(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *wgcSession) createDevice() error {
	hr, _, _ := procD3D11CreateDevice.Call(
		0,
		d3dDriverTypeHardware,
		0,
		d3d11CreateDeviceBGRASupport,
		0, 0,
		d3d11SDKVersion,
		uintptr(unsafe.Pointer(&s.device)),
		0,
		uintptr(unsafe.Pointer(&s.context)),
	)
	if int32(hr) < 0 {
		return fmt.Errorf("D3D11CreateDevice: %w", ole.NewError(hr))
	}

	dxgiDevice, err := comQuery(s.device, iidIDXGIDevice)
	if err != nil {
		return fmt.Errorf("query IDXGIDevice: %w", err)
	}
	defer comRelease(dxgiDevice)

	hr, _, _ = procCreateDirect3D11DeviceFromDXGIDevice.Call(dxgiDevice, uintptr(unsafe.Pointer(&s.winrtDev)))
	if int32(hr) < 0 {
		return fmt.Errorf("CreateDirect3D11DeviceFromDXGIDevice: %w", ole.NewError(hr))
	}
	return nil
}

func (s *wgcSession) createItem(handle uintptr, isWindow bool) error {
	interop, err := activationFactory("Windows.Graphics.Capture.GraphicsCaptureItem", iidItemInterop)
	if err != nil {
		return err
	}
	defer comRelease(interop)

	method := interopCreateForMonitor
	if isWindow {
		method = interopCreateForWindow
	}
	if _, err := comCall(interop, method, handle, uintptr(unsafe.Pointer(iidCaptureItem)), uintptr(unsafe.Pointer(&s.item))); err != nil {
		return fmt.Errorf("%w: create capture item: %w", ErrTargetNotFound, err)
	}
	if _, err := comCall(s.item, itemGetSize, uintptr(unsafe.Pointer(&s.size))); err != nil {
		return fmt.Errorf("capture item size: %w", err)
	}
	return nil
}

func (s *wgcSession) createPool() error {
	statics, err := activationFactory("Windows.Graphics.Capture.Direct3D11CaptureFramePool", iidFramePoolStatics2)
	if err != nil {
		return err
	}
	defer comRelease(statics)

	if _, err := comCall(statics, poolStaticsCreateFreeThreaded,
		s.winrtDev, dxgiFormatB8G8R8A8, wgcBufferCount, packSize(s.size.Width, s.size.Height),
		uintptr(unsafe.Pointer(&s.pool))); err != nil {
		return fmt.Errorf("create frame pool: %w", err)
	}
	if _, err := comCall(s.pool, poolCreateCaptureSession, s.item, uintptr(unsafe.Pointer(&s.session))); err != nil {
		return fmt.Errorf("create capture session: %w", err)
	}
	return nil
}

// setCursor toggles cursor capture. Builds before 19041 lack the property and
// always draw the cursor.
func (s *wgcSession) setCursor(enabled bool) error {
	return s.setSessionBool(iidCaptureSession2, sessionPutCursorEnabled, enabled)
}

// setBorder toggles the yellow capture border (Windows 11 and newer builds).
func (s *wgcSession) setBorder(required bool) error {
	return s.setSessionBool(iidCaptureSession3, sessionPutBorderRequired, required)
}

func (s *wgcSession) setSessionBool(iid *ole.GUID, method int, v bool) error {
	iface, err := comQuery(s.session, iid)
	if err != nil {
		return err
	}
	defer comRelease(iface)
	var arg uintptr
	if v {
		arg = 1
	}
	_, err = comCall(iface, method, arg)
	return err
}

func (s *wgcSession) start() error {
	if _, err := comCall(s.session, sessionStartCapture); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	return nil
}

// wgcFrame is one frame read back to system memory as packed BGRA.
type wgcFrame struct {
	width, height int
	data          []byte
	// time is the system relative time in 100ns units.
	time int64
}

// next returns the newest pooled frame, or ok false when none arrived since
// the last call. Older queued frames are dropped.
func (s *wgcSession) next() (f wgcFrame, ok bool, err error) {
	var latest uintptr
	for {
		var fr uintptr
		if _, err := comCall(s.pool, poolTryGetNextFrame, uintptr(unsafe.Pointer(&fr))); err != nil {
			comRelease(latest)
			return wgcFrame{}, false, fmt.Errorf("try get next frame: %w", err)
		}
		if fr == 0 {
			break
		}
		comRelease(latest)
		latest = fr
	}
	if latest == 0 {
		return wgcFrame{}, false, nil
	}
	defer comRelease(latest)

	var content sizeInt32
	if _, err := comCall(latest, frameGetContentSize, uintptr(unsafe.Pointer(&content))); err == nil &&
		content.Width > 0 && content.Height > 0 && content != s.size {
		// Window resized: the pool must match the new content size.
		s.size = content
		if _, err := comCall(s.pool, poolRecreate, s.winrtDev, dxgiFormatB8G8R8A8, wgcBufferCount,
			packSize(content.Width, content.Height)); err != nil {
			return wgcFrame{}, false, fmt.Errorf("recreate frame pool: %w", err)
		}
	}

	var ts int64
	_, _ = comCall(latest, frameGetSystemRelativeTime, uintptr(unsafe.Pointer(&ts)))

	f, err = s.readback(latest)
	if err != nil {
		return wgcFrame{}, false, err
	}
	f.time = ts
	return f, true, nil
}

func (s *wgcSession) readback(captureFrame uintptr) (wgcFrame, error) {
	var surface uintptr
	if _, err := comCall(captureFrame, frameGetSurface, uintptr(unsafe.Pointer(&surface))); err != nil {
		return wgcFrame{}, fmt.Errorf("frame surface: %w", err)
	}
	defer comRelease(surface)

	access, err := comQuery(surface, iidDxgiAccess)
	if err != nil {
		return wgcFrame{}, fmt.Errorf("query dxgi access: %w", err)
	}
	defer comRelease(access)

	var tex uintptr
	if _, err := comCall(access, dxgiAccessGetInterface, uintptr(unsafe.Pointer(iidID3D11Texture2D)), uintptr(unsafe.Pointer(&tex))); err != nil {
		return wgcFrame{}, fmt.Errorf("surface texture: %w", err)
	}
	defer comRelease(tex)

	var desc d3d11Texture2DDesc
	syscall.SyscallN(vtableFn(tex, d3d11TextureGetDesc), tex, uintptr(unsafe.Pointer(&desc)))
	if err := s.ensureStaging(desc); err != nil {
		return wgcFrame{}, err
	}

	// CopyResource and Unmap return void.
	syscall.SyscallN(vtableFn(s.context, d3d11CtxCopyResource), s.context, s.staging, tex)

	var mapped d3d11MappedSubresource
	if _, err := comCall(s.context, d3d11CtxMap, s.staging, 0, d3d11MapRead, 0, uintptr(unsafe.Pointer(&mapped))); err != nil {
		return wgcFrame{}, fmt.Errorf("map staging texture: %w", err)
	}
	defer syscall.SyscallN(vtableFn(s.context, d3d11CtxUnmap), s.context, s.staging, 0)

	w, h := int(desc.Width), int(desc.Height)
	pitch := int(mapped.RowPitch)
	src := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData)), pitch*(h-1)+w*4)
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		copy(out[y*w*4:(y+1)*w*4], src[y*pitch:y*pitch+w*4])
	}
	return wgcFrame{width: w, height: h, data: out}, nil
}

// ensureStaging (re)creates the CPU-readable copy target when the source
// texture size changes.
func (s *wgcSession) ensureStaging(src d3d11Texture2DDesc) error {
	if s.staging != 0 && s.stageDesc.Width == src.Width && s.stageDesc.Height == src.Height {
		return nil
	}
	comRelease(s.staging)
	s.staging = 0

	desc := d3d11Texture2DDesc{
		Width:          src.Width,
		Height:         src.Height,
		MipLevels:      1,
		ArraySize:      1,
		Format:         dxgiFormatB8G8R8A8,
		SampleCount:    1,
		Usage:          d3d11UsageStaging,
		CPUAccessFlags: d3d11CPUAccessRead,
	}
	if _, err := comCall(s.device, d3d11DeviceCreateTexture2D, uintptr(unsafe.Pointer(&desc)), 0, uintptr(unsafe.Pointer(&s.staging))); err != nil {
		return fmt.Errorf("create staging texture: %w", err)
	}
	s.stageDesc = desc
	return nil
}

// close stops capture and releases every interface. Session and pool are
// closed before release so the capture border disappears immediately.
func (s *wgcSession) close() error {
	var err error
	if s.session != 0 {
		err = comClose(s.session)
	}
	if s.pool != 0 {
		if cerr := comClose(s.pool); err == nil {
			err = cerr
		}
	}
	for _, p := range []*uintptr{&s.staging, &s.session, &s.pool, &s.item, &s.winrtDev, &s.context, &s.device} {
		comRelease(*p)
		*p = 0
	}
	return err
}

func vtableFn(obj uintptr, idx int) uintptr {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}
