package upd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"f7hal/drivers/stm32"
	"f7hal/errcode"
)

func TestRegisterHelpers(t *testing.T) {
	s := NewSim()
	base := stm32.PortB.Base()

	if err := SetRegister(s, base+stm32.MODER, 0x5); err != nil {
		t.Fatal(err)
	}
	if err := UpdateRegister(s, base+stm32.MODER, 0xF, 0x8); err != nil {
		t.Fatal(err)
	}
	v, err := GetRegister(s, base+stm32.MODER)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x8 {
		t.Fatalf("MODER = %#x, want 0x8", v)
	}
	if ops := s.Ops(); len(ops) != 3 || ops[1].Req != ReqUpdateRegister || ops[1].Clear != 0xF {
		t.Fatalf("ops = %+v", ops)
	}
}

func TestSimBSRRLoopback(t *testing.T) {
	s := NewSim()
	base := stm32.PortC.Base()

	_ = SetRegister(s, base+stm32.BSRR, stm32.BSRRValue(5, true)|stm32.BSRRValue(6, true))
	_ = SetRegister(s, base+stm32.BSRR, stm32.BSRRValue(5, false))

	if got := s.Peek(base + stm32.ODR); got != 1<<6 {
		t.Fatalf("ODR = %#x", got)
	}
	if got := s.Peek(base + stm32.IDR); got != 1<<6 {
		t.Fatalf("IDR = %#x", got)
	}
}

func TestFailureIsDriverIO(t *testing.T) {
	s := NewSim()
	s.Fail(ReqGetRegister, errors.New("EIO"))

	_, err := GetRegister(s, 0)
	if !errors.Is(err, errcode.DriverIO) {
		t.Fatalf("err = %v, want driver_io", err)
	}

	s.Fail(ReqGetRegister, nil)
	if _, err := GetRegister(s, 0); err != nil {
		t.Fatalf("after clear: %v", err)
	}
}

func TestTransfer(t *testing.T) {
	s := NewSim()
	var seenTx []byte
	s.HandleSPI(func(tx, rx []byte) error {
		seenTx = append([]byte(nil), tx...)
		for i := range rx {
			rx[i] = byte(0xA0 + i)
		}
		return nil
	})

	tx := []byte{1, 2, 3}
	rx := make([]byte, 3)
	if err := Transfer(s, tx, rx); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(seenTx, tx) || !bytes.Equal(rx, []byte{0xA0, 0xA1, 0xA2}) {
		t.Fatalf("tx=%x rx=%x", seenTx, rx)
	}

	if err := Transfer(s, tx, make([]byte, 2)); !errors.Is(err, errcode.Validation) {
		t.Fatalf("length mismatch err = %v", err)
	}
}

func TestExecute(t *testing.T) {
	s := NewSim()
	s.HandleCoprocessor(func(iface uint8, fn uint32, payload, result []byte) uint32 {
		if iface != 1 || fn != 7 || !bytes.Equal(payload, []byte("hi")) {
			return 99
		}
		copy(result, "ok")
		return 0
	})

	cmd := CoprocessorCommand{Interface: 1, Function: 7, Block: 1}
	res := make([]byte, 4)
	if err := Execute(s, &cmd, []byte("hi"), res); err != nil {
		t.Fatal(err)
	}
	if cmd.StatusCode != 0 || string(res[:2]) != "ok" {
		t.Fatalf("status=%d res=%q", cmd.StatusCode, res)
	}
	if cmd.Payload != nil || cmd.Result != nil {
		t.Fatal("buffer pointers left in command after return")
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("open failed")
	ch := Unavailable(cause)
	if err := SetRegister(ch, 0, 0); !errors.Is(err, errcode.DriverIO) || !errors.Is(err, cause) {
		t.Fatalf("err = %v", err)
	}
}

func TestSimQueue(t *testing.T) {
	q := NewSimQueue(2)
	q.Fire(0x23)

	buf := make([]byte, MessageSize)
	n, err := q.Receive(context.Background(), buf)
	if err != nil || n != MessageSize {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if id, ok := DecodeIRQ(buf[:n]); !ok || id != 0x23 {
		t.Fatalf("id=%#x ok=%v", id, ok)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Receive(ctx, buf); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("empty receive err = %v", err)
	}

	_ = q.Close()
	if _, err := q.Receive(context.Background(), buf); !errors.Is(err, ErrClosed) {
		t.Fatalf("closed receive err = %v", err)
	}
}

func TestDecodeIRQShort(t *testing.T) {
	if _, ok := DecodeIRQ([]byte{1, 2}); ok {
		t.Fatal("short message accepted")
	}
}
