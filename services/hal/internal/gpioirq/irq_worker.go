// services/hal/internal/gpioirq/irq_worker.go
package gpioirq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"f7hal/drivers/upd"
	"f7hal/services/hal/internal/halcore"
	"f7hal/services/hal/internal/pins"
)

// Event is one interrupt delivered to a registered pin.
type Event struct {
	Key string
	Pin halcore.Pin
	IRQ uint32
	TS  time.Time
}

// Handler runs on the dispatch goroutine with the registration lock held.
// It must not block and must not call back into Register/Unregister.
type Handler func(Event)

// Worker drains the kernel interrupt queue. A reader goroutine feeds a
// bounded channel; a dispatcher decodes ids and delivers in kernel order.
type Worker struct {
	q       upd.Queue
	handler Handler
	log     *zap.Logger

	// reader -> dispatcher; full channel back-pressures the kernel queue
	raw chan uint32

	mu   sync.Mutex
	pins map[string]halcore.Pin

	start   sync.Once
	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	dispatched atomic.Uint64
	dropped    atomic.Uint64
	readErrs   atomic.Uint64
}

func New(q upd.Queue, h Handler, log *zap.Logger, buf int) *Worker {
	if buf <= 0 {
		buf = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	if h == nil {
		h = func(Event) {}
	}
	return &Worker{
		q:       q,
		handler: h,
		log:     log,
		raw:     make(chan uint32, buf),
		pins:    map[string]halcore.Pin{},
		done:    make(chan struct{}),
	}
}

// Register adds key unless present. It reports whether it was added.
func (w *Worker) Register(key string, p halcore.Pin) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pins[key]; ok {
		return false
	}
	w.pins[key] = p
	return true
}

// Unregister removes key if present. It reports whether it was removed.
func (w *Worker) Unregister(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pins[key]; !ok {
		return false
	}
	delete(w.pins, key)
	return true
}

func (w *Worker) Registered(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pins[key]
	return ok
}

// Start launches the reader and dispatcher. Later calls are no-ops.
func (w *Worker) Start(ctx context.Context) {
	w.start.Do(func() {
		w.started.Store(true)
		ctx, w.cancel = context.WithCancel(ctx)
		go w.read(ctx)
		go w.dispatch()
		w.log.Info("interrupt worker started")
	})
}

// Started reports whether Start has run.
func (w *Worker) Started() bool { return w.started.Load() }

// Stop cancels the reader and waits for the dispatcher to drain. A worker
// that was never started cannot be started afterwards.
func (w *Worker) Stop() {
	w.start.Do(func() { close(w.done) })
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

func (w *Worker) read(ctx context.Context) {
	defer close(w.raw)
	if w.q == nil {
		w.log.Error("no interrupt queue, interrupts will not be delivered")
		return
	}
	buf := make([]byte, upd.MessageSize)
	for {
		n, err := w.q.Receive(ctx, buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, upd.ErrClosed) {
				return
			}
			w.readErrs.Add(1)
			w.log.Warn("interrupt queue receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		id, ok := upd.DecodeIRQ(buf[:n])
		if !ok {
			w.dropped.Add(1)
			continue
		}
		select {
		case w.raw <- id:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) dispatch() {
	defer close(w.done)
	for id := range w.raw {
		key, ok := pins.KeyFromIRQ(id)
		if !ok {
			w.dropped.Add(1)
			continue
		}
		w.mu.Lock()
		if p, ok := w.pins[key]; ok {
			w.handler(Event{Key: key, Pin: p, IRQ: id, TS: time.Now()})
			w.dispatched.Add(1)
		} else {
			w.dropped.Add(1)
		}
		w.mu.Unlock()
	}
}

func (w *Worker) Dispatched() uint64 { return w.dispatched.Load() }

// Dropped counts events for unregistered pins and undecodable messages.
func (w *Worker) Dropped() uint64    { return w.dropped.Load() }
func (w *Worker) ReadErrors() uint64 { return w.readErrs.Load() }
