package cpu

import (
	"errors"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/bus"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/emuerr"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/event"
)

// PortBase is where I/O ports appear in the address space.
const PortBase = bus.PortBase

// NMI and mode 0/1 interrupt targets.
const (
	NMIVector = 0x0066
	IntVector = 0x0038
)

// Memory is the address space the CPU executes against.
type Memory interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
	Load(addr uint16, data []byte) error
}

// TimerHandler receives Timer events as the clock passes their due time.
type TimerHandler func(c *CPU, ev event.Event) error

// CPU is a Z80 core. Registers are embedded and exported; everything else
// goes through methods.
type CPU struct {
	Registers

	IFF1, IFF2 bool
	IM         byte

	halted bool
	// EI holds off maskable interrupts until the next instruction completes
	eiDelay bool

	intLine    bool
	nmiPending bool
	irqVector  byte

	cycles  uint64
	events  *event.Queue
	onTimer TimerHandler

	mem Memory
	dec Decoder

	// per instruction
	operand uint16 // next operand byte
	disp    int8   // DD CB / FD CB displacement
}

// New returns a CPU in its power-on state attached to mem.
func New(mem Memory) *CPU {
	c := &CPU{mem: mem, events: event.NewQueue()}
	c.Reset()
	return c
}

// Reset restores the power-on state and drops pending events.
// Memory is left alone.
func (c *CPU) Reset() {
	c.Registers = Registers{SP: 0xFFFF}
	c.IFF1, c.IFF2 = false, false
	c.IM = 0
	c.halted = false
	c.eiDelay = false
	c.intLine = false
	c.nmiPending = false
	c.irqVector = 0xFF
	c.cycles = 0
	c.events.Clear()
	c.dec.Reset()
}

// Memory exposes the attached address space for tools and tests.
func (c *CPU) Memory() Memory { return c.mem }

// LoadProgram copies data to addr and starts execution there.
func (c *CPU) LoadProgram(addr uint16, data []byte) error {
	if err := c.mem.Load(addr, data); err != nil {
		return err
	}
	c.Resume(addr)
	return nil
}

// Resume sets PC and leaves HALT. A pending EI delay and latched INT/NMI
// lines are dropped; registers, interrupt mode and queued events are kept.
func (c *CPU) Resume(pc uint16) {
	c.PC = pc
	c.halted = false
	c.eiDelay = false
	c.intLine = false
	c.nmiPending = false
	c.dec.Reset()
}

func (c *CPU) SetPC(pc uint16) { c.PC = pc }

func (c *CPU) Halted() bool { return c.halted }

// Cycles is the running T-state total.
func (c *CPU) Cycles() uint64 { return c.cycles }

// Step runs one instruction, or services one interrupt, or idles one
// HALT cycle. It returns the T-states consumed.
//
// Due events are delivered before fetch, after each prefix byte, after the
// opcode is fetched and after execution. Interrupt lines raised by an event are sampled at the
// start of the next Step.
func (c *CPU) Step() (int, error) {
	start := c.cycles
	if err := c.drainEvents(); err != nil {
		return 0, err
	}
	if c.serviceInterrupts() {
		return int(c.cycles - start), nil
	}
	if c.halted {
		c.IncrementR()
		c.cycles += 4
		err := c.drainEvents()
		return int(c.cycles - start), err
	}

	ins, err := c.fetch()
	if err != nil {
		return int(c.cycles - start), err
	}
	if err := c.drainEvents(); err != nil {
		return int(c.cycles - start), err
	}
	extra := ins.Exec(c)
	c.cycles += uint64(ins.Cycles - 4 + extra)
	err = c.drainEvents()
	return int(c.cycles - start), err
}

// maxPrefixRun bounds a run of superseding DD/FD bytes.
const maxPrefixRun = 0x10000

// fetch reads and decodes the instruction at PC. Every opcode byte costs 4
// T-states and one R increment; the DD CB displacement and final opcode
// are plain reads. On success PC already points past the instruction.
func (c *CPU) fetch() (*Instruction, error) {
	pc := c.PC
	addr := pc
	c.dec.Reset()
	for n := 0; n < maxPrefixRun; n++ {
		b := c.mem.Read(addr)
		addr++
		c.IncrementR()
		c.cycles += 4

		ins, done, err := c.dec.Decode(b)
		if err != nil {
			return nil, c.decodeError(err, pc)
		}
		if done {
			c.begin(pc, addr, ins)
			return ins, nil
		}
		// events fall due between prefix bytes too
		if err := c.drainEvents(); err != nil {
			return nil, err
		}
		if p := c.dec.Prefix(); p == PrefixDDCB || p == PrefixFDCB {
			c.disp = int8(c.mem.Read(addr))
			op := c.mem.Read(addr + 1)
			addr += 2
			c.cycles += 4
			ins, _, err := c.dec.Decode(op)
			if err != nil {
				return nil, c.decodeError(err, pc)
			}
			c.begin(pc, addr, ins)
			return ins, nil
		}
	}
	c.dec.Reset()
	return nil, &emuerr.SystemError{Msg: "unterminated prefix sequence"}
}

func (c *CPU) begin(pc, operand uint16, ins *Instruction) {
	c.operand = operand
	c.PC = pc + uint16(c.dec.Superseded()) + uint16(ins.Length)
}

func (c *CPU) decodeError(err error, pc uint16) error {
	var ie *emuerr.InvalidOpcodeError
	if errors.As(err, &ie) {
		ie.PC = pc
	}
	return err
}

// Events exposes the scheduler queue.
func (c *CPU) Events() *event.Queue { return c.events }

// SetTimerHandler installs the receiver for Timer events. Nil drops them.
func (c *CPU) SetTimerHandler(h TimerHandler) { c.onTimer = h }

// Schedule queues an event at the absolute T-state due. Interrupt events
// carry 0xFF on the data bus.
func (c *CPU) Schedule(kind event.Kind, due uint64) {
	ev := event.Event{Kind: kind, Due: due}
	if kind == event.Interrupt {
		ev.Data = 0xFF
	}
	c.events.PushEvent(ev)
}

// ScheduleIn queues an event delay T-states from now.
func (c *CPU) ScheduleIn(kind event.Kind, delay uint64) {
	c.Schedule(kind, c.cycles+delay)
}

// ScheduleInterrupt queues a maskable interrupt whose device supplies
// vector for mode 2.
func (c *CPU) ScheduleInterrupt(due uint64, vector byte) {
	c.events.PushEvent(event.Event{Kind: event.Interrupt, Due: due, Data: vector})
}

func (c *CPU) drainEvents() error {
	if c.events.Empty() {
		return nil
	}
	return c.events.Due(c.cycles, c.deliver)
}

func (c *CPU) deliver(ev event.Event) error {
	switch ev.Kind {
	case event.Interrupt:
		c.irqVector = ev.Data
		c.intLine = true
	case event.NMI:
		c.nmiPending = true
	case event.Timer:
		if c.onTimer == nil {
			return nil
		}
		if err := c.onTimer(c, ev); err != nil {
			return &emuerr.EventError{Kind: ev.Kind.String(), Err: err}
		}
	default:
		return &emuerr.EventError{Kind: ev.Kind.String()}
	}
	return nil
}
