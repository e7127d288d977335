// Package bus is the flat 64KB address space the CPU runs against.
//
// The top page (0xFF00-0xFFFF) doubles as the I/O port window: IN/OUT with
// port p touch address PortBase|p. Writers can be attached to individual
// ports to stream program output.
package bus

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/emuerr"
)

const (
	Size     = 0x10000
	PortBase = 0xFF00
)

type Bus struct {
	ram     [Size]byte
	writers map[byte]io.Writer
	werr    error // first port writer failure
}

func New() *Bus {
	return &Bus{}
}

func (b *Bus) Read(addr uint16) byte {
	return b.ram[addr]
}

func (b *Bus) Write(addr uint16, value byte) {
	b.ram[addr] = value
	if addr >= PortBase && b.writers != nil {
		if w := b.writers[byte(addr)]; w != nil {
			if _, err := w.Write([]byte{value}); err != nil && b.werr == nil {
				b.werr = fmt.Errorf("port %02X writer: %w", byte(addr), err)
			}
		}
	}
}

// Load copies data to addr. It fails without writing anything when the
// range runs past the top of memory.
func (b *Bus) Load(addr uint16, data []byte) error {
	if int(addr)+len(data) > Size {
		return &emuerr.MemoryError{Addr: addr, Len: len(data)}
	}
	copy(b.ram[addr:], data)
	return nil
}

// Slice returns a copy of n bytes starting at addr, wrapping at 0xFFFF.
func (b *Bus) Slice(addr uint16, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b.ram[addr+uint16(i)]
	}
	return out
}

// In reads an I/O port through the port window.
func (b *Bus) In(port byte) byte { return b.Read(PortBase | uint16(port)) }

// Out writes an I/O port through the port window.
func (b *Bus) Out(port byte, value byte) { b.Write(PortBase|uint16(port), value) }

// SetPortWriter connects w to receive every byte written to port.
// A nil writer detaches the port.
func (b *Bus) SetPortWriter(port byte, w io.Writer) {
	if w == nil {
		delete(b.writers, port)
		return
	}
	if b.writers == nil {
		b.writers = make(map[byte]io.Writer)
	}
	b.writers[port] = w
}

// Err returns the first error a port writer reported. The write to memory
// itself always happens; a failing writer does not stop the CPU.
func (b *Bus) Err() error { return b.werr }

// Clear zeroes memory. Port writers stay attached.
func (b *Bus) Clear() {
	b.ram = [Size]byte{}
}

type busState struct {
	RAM []byte
}

// SaveState serialises memory contents.
func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(busState{RAM: b.ram[:]})
	return buf.Bytes()
}

// LoadState restores memory written by SaveState.
func (b *Bus) LoadState(data []byte) error {
	var s busState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	if len(s.RAM) != Size {
		return &emuerr.SystemError{Msg: "bus state has wrong size"}
	}
	copy(b.ram[:], s.RAM)
	return nil
}
