package cpu

import (
	"bytes"
	"encoding/gob"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/event"
)

// State is a complete copy of the CPU, suitable for gob.
type State struct {
	Registers
	IFF1, IFF2 bool
	IM         byte
	Halted     bool
	EIDelay    bool
	IntLine    bool
	NMIPending bool
	IRQVector  byte
	Cycles     uint64
	Events     []event.Event
}

func (c *CPU) State() State {
	return State{
		Registers:  c.Registers,
		IFF1:       c.IFF1,
		IFF2:       c.IFF2,
		IM:         c.IM,
		Halted:     c.halted,
		EIDelay:    c.eiDelay,
		IntLine:    c.intLine,
		NMIPending: c.nmiPending,
		IRQVector:  c.irqVector,
		Cycles:     c.cycles,
		Events:     c.events.Pending(),
	}
}

// SetState replaces the CPU state, including the event queue.
func (c *CPU) SetState(s State) {
	c.Registers = s.Registers
	c.IFF1, c.IFF2 = s.IFF1, s.IFF2
	c.IM = s.IM
	c.halted = s.Halted
	c.eiDelay = s.EIDelay
	c.intLine = s.IntLine
	c.nmiPending = s.NMIPending
	c.irqVector = s.IRQVector
	c.cycles = s.Cycles
	c.events.Clear()
	for _, ev := range s.Events {
		c.events.PushEvent(ev)
	}
	c.dec.Reset()
}

func (c *CPU) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(c.State())
	return buf.Bytes()
}

func (c *CPU) LoadState(data []byte) error {
	var s State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	c.SetState(s)
	return nil
}
