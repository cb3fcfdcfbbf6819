//go:build linux

package upd

import (
	"context"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"f7hal/errcode"
)

// pollInterval bounds how long a receive sits in the kernel before the
// reader looks at its context again.
const pollInterval = 100 * time.Millisecond

// MQueue is a POSIX message queue opened read-only.
type MQueue struct {
	mqd  int
	name string
}

func OpenQueue(name string) (*MQueue, error) {
	// the syscall takes the name without its leading slash
	p, err := unix.BytePtrFromString(strings.TrimPrefix(name, "/"))
	if err != nil {
		return nil, errcode.Wrap(errcode.Validation, "upd.OpenQueue", err)
	}
	r, _, errno := unix.Syscall6(unix.SYS_MQ_OPEN, uintptr(unsafe.Pointer(p)),
		uintptr(unix.O_RDONLY|unix.O_CLOEXEC), 0, 0, 0, 0)
	if errno != 0 {
		return nil, errcode.Wrap(errcode.DriverIO, "upd.OpenQueue("+name+")", errno)
	}
	return &MQueue{mqd: int(r), name: name}, nil
}

func (q *MQueue) Receive(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, errcode.New(errcode.Validation, "upd.Receive", "empty buffer")
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if q.mqd < 0 {
			return 0, ErrClosed
		}
		ts := unix.NsecToTimespec(time.Now().Add(pollInterval).UnixNano())
		n, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDRECEIVE, uintptr(q.mqd),
			uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), 0,
			uintptr(unsafe.Pointer(&ts)), 0)
		switch errno {
		case 0:
			return int(n), nil
		case unix.ETIMEDOUT, unix.EINTR:
			continue
		case unix.EBADF:
			return 0, ErrClosed
		default:
			return 0, errcode.Wrap(errcode.DriverIO, "upd.Receive", errno)
		}
	}
}

func (q *MQueue) Close() error {
	if q.mqd < 0 {
		return nil
	}
	err := unix.Close(q.mqd)
	q.mqd = -1
	return err
}
