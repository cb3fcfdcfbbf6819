// services/hal/internal/pins/pins.go
package pins

import (
	"strconv"
	"sync"

	"f7hal/drivers/stm32"
	"f7hal/errcode"
)

// Designator is the physical location of a logical pin.
type Designator struct {
	Port stm32.Port
	Pin  int
	Base uint32
}

func (d Designator) Key() string {
	return "P" + string(d.Port.Letter()) + strconv.Itoa(d.Pin)
}

// IRQ is the kernel's interrupt id: port in the high nibble, pin in the low.
func (d Designator) IRQ() uint32 { return uint32(d.Port)<<4 | uint32(d.Pin) }

// Addr returns the address of register off in this pin's bank.
func (d Designator) Addr(off uint32) uint32 { return d.Base + off }

// KeyFromIRQ rebuilds the pin key carried by an interrupt id.
func KeyFromIRQ(id uint32) (string, bool) {
	port := stm32.Port(id >> 4)
	if id>>4 > uint32(stm32.PortK) {
		return "", false
	}
	return "P" + string(port.Letter()) + strconv.Itoa(int(id&0xF)), true
}

// Parse maps "P<A-K><0-15>" to a Designator without caching.
func Parse(key string) (Designator, error) {
	bad := errcode.New(errcode.UnsupportedPin, "pins.Resolve", strconv.Quote(key))
	if len(key) < 3 || len(key) > 4 || key[0] != 'P' {
		return Designator{}, bad
	}
	port, ok := stm32.PortFromLetter(key[1])
	if !ok {
		return Designator{}, bad
	}
	digits := key[2:]
	// canonical form only, so each pin has exactly one key
	if len(digits) == 2 && digits[0] == '0' {
		return Designator{}, bad
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Designator{}, bad
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n >= stm32.PinsPerPort {
		return Designator{}, bad
	}
	return Designator{Port: port, Pin: n, Base: port.Base()}, nil
}

// Directory caches resolved designators for the life of the process.
type Directory struct {
	mu    sync.Mutex
	cache map[string]Designator
}

func NewDirectory() *Directory {
	return &Directory{cache: make(map[string]Designator)}
}

func (d *Directory) Resolve(key string) (Designator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if des, ok := d.cache[key]; ok {
		return des, nil
	}
	des, err := Parse(key)
	if err != nil {
		return Designator{}, err
	}
	d.cache[key] = des
	return des, nil
}

// Len reports how many keys have been resolved.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}
