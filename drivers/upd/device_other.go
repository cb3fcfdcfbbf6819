//go:build !linux

package upd

import (
	"context"
	"unsafe"

	"f7hal/errcode"
)

// Device and MQueue exist on every platform so callers compile; only the
// linux build can open them.
type Device struct{}

func Open(path string) (*Device, error) {
	return nil, errcode.New(errcode.Unsupported, "upd.Open("+path+")", "no driver on this platform")
}

func (*Device) Ioctl(Request, unsafe.Pointer) error { return errcode.Unsupported }
func (*Device) Close() error                        { return nil }

type MQueue struct{}

func OpenQueue(name string) (*MQueue, error) {
	return nil, errcode.New(errcode.Unsupported, "upd.OpenQueue("+name+")", "no message queues on this platform")
}

func (*MQueue) Receive(context.Context, []byte) (int, error) { return 0, errcode.Unsupported }
func (*MQueue) Close() error                                 { return nil }
