package upd

import (
	"context"
	"sync"
	"unsafe"

	"f7hal/drivers/stm32"
)

// Op is one recorded call on a Sim.
type Op struct {
	Req   Request
	Addr  uint32
	Value uint32 // written value (SetRegister) or set mask (UpdateRegister)
	Clear uint32 // UpdateRegister only
}

// SPIHandler sees each transfer; tx or rx may be nil.
type SPIHandler func(tx, rx []byte) error

// CoprocessorHandler answers a command by filling result and returning the
// firmware status code.
type CoprocessorHandler func(iface uint8, fn uint32, payload, result []byte) uint32

// Sim is an in-memory driver: a GPIO register file with BSRR emulation and
// pluggable SPI and coprocessor endpoints. It records every call in order.
type Sim struct {
	mu     sync.Mutex
	regs   map[uint32]uint32
	ops    []Op
	irqs   []GpioInterruptConfig
	fail   map[Request]error
	spi    SPIHandler
	cop    CoprocessorHandler
	closed bool
}

func NewSim() *Sim {
	return &Sim{
		regs: map[uint32]uint32{},
		fail: map[Request]error{},
	}
}

func (s *Sim) HandleSPI(h SPIHandler) {
	s.mu.Lock()
	s.spi = h
	s.mu.Unlock()
}

func (s *Sim) HandleCoprocessor(h CoprocessorHandler) {
	s.mu.Lock()
	s.cop = h
	s.mu.Unlock()
}

// Fail makes every subsequent req fail with err; nil clears it.
func (s *Sim) Fail(req Request, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, req)
		return
	}
	s.fail[req] = err
}

// Peek returns a register without recording an op.
func (s *Sim) Peek(addr uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[addr]
}

// Poke sets a register without recording an op.
func (s *Sim) Poke(addr, v uint32) {
	s.mu.Lock()
	s.regs[addr] = v
	s.mu.Unlock()
}

func (s *Sim) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.ops...)
}

func (s *Sim) ResetOps() {
	s.mu.Lock()
	s.ops = nil
	s.mu.Unlock()
}

func (s *Sim) Interrupts() []GpioInterruptConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GpioInterruptConfig(nil), s.irqs...)
}

func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Sim) Ioctl(req Request, arg unsafe.Pointer) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.fail[req]; err != nil {
		s.mu.Unlock()
		return err
	}

	switch req {
	case ReqGetRegister:
		r := (*RegisterValue)(arg)
		r.Value = s.regs[r.Address]
		s.ops = append(s.ops, Op{Req: req, Addr: r.Address})
	case ReqSetRegister:
		r := (*RegisterValue)(arg)
		s.ops = append(s.ops, Op{Req: req, Addr: r.Address, Value: r.Value})
		s.write(r.Address, r.Value)
	case ReqUpdateRegister:
		r := (*RegisterUpdate)(arg)
		s.ops = append(s.ops, Op{Req: req, Addr: r.Address, Value: r.SetBits, Clear: r.ClearBits})
		s.regs[r.Address] = s.regs[r.Address]&^r.ClearBits | r.SetBits
	case RegisterGpioIrq:
		s.irqs = append(s.irqs, *(*GpioInterruptConfig)(arg))
		s.ops = append(s.ops, Op{Req: req})
	case SPIData:
		c := (*SPICommand)(arg)
		h := s.spi
		s.ops = append(s.ops, Op{Req: req, Value: uint32(c.BufferLength)})
		s.mu.Unlock()
		// handlers run unlocked so concurrent callers are observable
		if h == nil {
			return nil
		}
		return h(bytesAt(c.TxBuffer, int(c.BufferLength)), bytesAt(c.RxBuffer, int(c.BufferLength)))
	case Esp32Command:
		c := (*CoprocessorCommand)(arg)
		h := s.cop
		s.ops = append(s.ops, Op{Req: req, Value: c.Function})
		s.mu.Unlock()
		if h != nil {
			c.StatusCode = h(c.Interface, c.Function,
				bytesAt(c.Payload, int(c.PayloadLength)), bytesAt(c.Result, int(c.ResultLength)))
		}
		return nil
	}
	s.mu.Unlock()
	return nil
}

// write applies BSRR semantics and loops ODR back to IDR so that a driven
// output reads back as its level.
func (s *Sim) write(addr, v uint32) {
	off := addr & (0x400 - 1)
	base := addr - off
	if off != stm32.BSRR {
		s.regs[addr] = v
		return
	}
	odr := s.regs[base+stm32.ODR]
	odr = odr&^(v>>16) | v&0xFFFF
	s.regs[base+stm32.ODR] = odr
	s.regs[base+stm32.IDR] = odr
}

func bytesAt(p unsafe.Pointer, n int) []byte {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// ---------------- SimQueue ----------------

// SimQueue is an in-memory interrupt queue.
type SimQueue struct {
	ch   chan [MessageSize]byte
	done chan struct{}
	once sync.Once
}

func NewSimQueue(depth int) *SimQueue {
	if depth <= 0 {
		depth = 16
	}
	return &SimQueue{
		ch:   make(chan [MessageSize]byte, depth),
		done: make(chan struct{}),
	}
}

// Fire enqueues an interrupt id, blocking when the queue is full as the
// kernel's sender would.
func (q *SimQueue) Fire(irq uint32) {
	select {
	case q.ch <- EncodeIRQ(irq):
	case <-q.done:
	}
}

func (q *SimQueue) Receive(ctx context.Context, buf []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-q.done:
		return 0, ErrClosed
	case m := <-q.ch:
		return copy(buf, m[:]), nil
	}
}

func (q *SimQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
