//go:build windows

package capture

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// comCall invokes a COM vtable method at the given index.
// obj is a pointer to a COM interface (pointer to pointer to vtable).
func comCall(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	if obj == 0 {
		return 0, fmt.Errorf("COM vtable[%d] on nil interface", vtableIdx)
	}
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(vtableIdx)*unsafe.Sizeof(uintptr(0))))
	allArgs := make([]uintptr, 0, 1+len(args))
	allArgs = append(allArgs, obj)
	allArgs = append(allArgs, args...)
	ret, _, _ := syscall.SyscallN(fnPtr, allArgs...)
	if int32(ret) < 0 {
		return ret, fmt.Errorf("COM vtable[%d]: %w", vtableIdx, ole.NewError(ret))
	}
	return ret, nil
}

// comRelease calls IUnknown::Release (vtable index 2).
func comRelease(obj uintptr) {
	if obj != 0 {
		vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
		fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + 2*unsafe.Sizeof(uintptr(0))))
		syscall.SyscallN(fnPtr, obj)
	}
}

// comQuery calls IUnknown::QueryInterface.
func comQuery(obj uintptr, iid *ole.GUID) (uintptr, error) {
	var out uintptr
	if _, err := comCall(obj, 0, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out))); err != nil {
		return 0, err
	}
	return out, nil
}

// comClose calls IClosable::Close when obj implements it.
func comClose(obj uintptr) error {
	closable, err := comQuery(obj, iidIClosable)
	if err != nil {
		return nil
	}
	defer comRelease(closable)
	_, err = comCall(closable, 6)
	return err
}

// roInitialize joins the multithreaded apartment. A thread already in it is
// fine.
func roInitialize() error {
	err := ole.RoInitialize(1)
	var oleErr *ole.OleError
	if err == nil || (errors.As(err, &oleErr) && oleErr.Code() == 1) {
		return nil
	}
	return fmt.Errorf("RoInitialize: %w", err)
}

// activationFactory returns the WinRT activation factory for class as iid.
func activationFactory(class string, iid *ole.GUID) (uintptr, error) {
	f, err := ole.RoGetActivationFactory(class, iid)
	if err != nil {
		return 0, fmt.Errorf("activation factory %s: %w", class, err)
	}
	return uintptr(unsafe.Pointer(f)), nil
}

// packSize passes a SizeInt32 by value in one register, as the 64-bit
// Windows ABI does for 8-byte structs.
func packSize(w, h int32) uintptr {
	return uintptr(uint32(w)) | uintptr(uint32(h))<<32
}
