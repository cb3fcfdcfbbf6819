//go:build linux

package upd

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"f7hal/errcode"
)

// Device is an open /dev/upd handle.
type Device struct {
	fd   int
	path string
}

// Open opens the driver node read-only, as the board kernel expects.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errcode.Wrap(errcode.DriverIO, "upd.Open("+path+")", err)
	}
	return &Device{fd: fd, path: path}, nil
}

func (d *Device) Ioctl(req Request, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}
