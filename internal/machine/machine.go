// Package machine owns a CPU and its memory and drives them: program
// loading, stepping, frame pacing, periodic events and save states.
package machine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/bus"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/emuerr"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/event"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/snapshot"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/timing"
)

// TimerFunc receives Timer events that were not created by ScheduleEvery.
type TimerFunc func(m *Machine, ev event.Event) error

// periodic is a ScheduleEvery entry. Its Timer events carry id+1 in Data.
type periodic struct {
	Kind   event.Kind
	Period uint64
}

const maxPeriodic = 255

type Machine struct {
	cfg Config
	log *logrus.Logger

	bus   *bus.Bus
	cpu   *cpu.CPU
	clock *timing.Converter

	timers  []periodic
	onTimer TimerFunc
	frames  uint64
}

func New(cfg Config) *Machine {
	cfg.Defaults()
	m := &Machine{cfg: cfg, log: cfg.Logger, bus: bus.New()}
	m.cpu = cpu.New(m.bus)
	m.cpu.SetTimerHandler(m.handleTimer)
	m.cpu.SP = cfg.StackPointer
	m.clock = timing.New(cfg.ClockHz, cfg.FrameRate)
	if cfg.Console != nil {
		m.bus.SetPortWriter(cfg.ConsolePort, cfg.Console)
	}
	return m
}

func (m *Machine) CPU() *cpu.CPU { return m.cpu }

func (m *Machine) Memory() *bus.Bus { return m.bus }

func (m *Machine) Clock() *timing.Converter { return m.clock }

func (m *Machine) Config() Config { return m.cfg }

func (m *Machine) Logger() *logrus.Logger { return m.log }

// Frames is the number of frame boundaries crossed since the last reset.
func (m *Machine) Frames() uint64 { return m.frames }

func (m *Machine) SetTrace(on bool) { m.cfg.Trace = on }

// SetConsole attaches w to the console port. Nil detaches it.
func (m *Machine) SetConsole(w io.Writer) {
	m.cfg.Console = w
	m.bus.SetPortWriter(m.cfg.ConsolePort, w)
}

func (m *Machine) SetTimerHandler(fn TimerFunc) { m.onTimer = fn }

// Reset restores the CPU power-on state and clears pending events and
// periodic timers. Memory is kept.
func (m *Machine) Reset() {
	m.cpu.Reset()
	m.cpu.SP = m.cfg.StackPointer
	m.clock.Reset()
	m.timers = nil
	m.frames = 0
	m.log.Info("machine reset")
}

// LoadProgram copies data to addr and points PC at it, or at
// Config.StartPC when set.
func (m *Machine) LoadProgram(addr uint16, data []byte) error {
	if err := m.cpu.LoadProgram(addr, data); err != nil {
		return fmt.Errorf("load program: %w", err)
	}
	if m.cfg.StartPC != 0 {
		m.cpu.SetPC(m.cfg.StartPC)
	}
	m.log.WithFields(logrus.Fields{
		"addr": fmt.Sprintf("%04X", addr),
		"size": len(data),
		"pc":   fmt.Sprintf("%04X", m.cpu.PC),
	}).Info("program loaded")
	return nil
}

// LoadFile loads a raw binary at Config.LoadAddress.
func (m *Machine) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadProgram(m.cfg.LoadAddress, data)
}

// LoadSNA restores a 48K .sna image.
func (m *Machine) LoadSNA(data []byte) error {
	s, err := snapshot.Parse(data)
	if err != nil {
		return err
	}
	return m.applySNA(s)
}

func (m *Machine) LoadSNAFile(path string) error {
	s, err := snapshot.Load(path)
	if err != nil {
		return err
	}
	return m.applySNA(s)
}

func (m *Machine) applySNA(s *snapshot.SNA) error {
	if err := s.Apply(m.cpu); err != nil {
		return fmt.Errorf("apply snapshot: %w", err)
	}
	m.log.WithFields(logrus.Fields{
		"pc": fmt.Sprintf("%04X", m.cpu.PC),
		"sp": fmt.Sprintf("%04X", m.cpu.SP),
		"im": m.cpu.IM,
	}).Info("snapshot loaded")
	return nil
}

// SaveSNA writes the current machine as a .sna image.
func (m *Machine) SaveSNA(path string) error {
	s, err := snapshot.Capture(m.cpu, 0)
	if err != nil {
		return err
	}
	return s.Save(path)
}

// Tick executes one CPU step and advances the frame clock.
func (m *Machine) Tick() (int, error) {
	if m.cfg.Trace && !m.cpu.Halted() && m.log.IsLevelEnabled(logrus.DebugLevel) {
		m.trace()
	}
	pc := m.cpu.PC
	n, err := m.cpu.Step()
	if m.clock.Advance(n) {
		m.frames++
	}
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"pc":     fmt.Sprintf("%04X", pc),
			"cycles": m.cpu.Cycles(),
		}).WithError(err).Warn("execution stopped")
		return n, fmt.Errorf("step at %04X: %w", pc, err)
	}
	return n, nil
}

func (m *Machine) trace() {
	c := m.cpu
	text, length, err := c.Disassemble(c.PC)
	if err != nil {
		text = "??"
	}
	m.log.WithFields(logrus.Fields{
		"pc":     fmt.Sprintf("%04X", c.PC),
		"bytes":  fmt.Sprintf("% X", m.bus.Slice(c.PC, max(length, 1))),
		"af":     fmt.Sprintf("%04X", c.AF()),
		"bc":     fmt.Sprintf("%04X", c.BC()),
		"de":     fmt.Sprintf("%04X", c.DE()),
		"hl":     fmt.Sprintf("%04X", c.HL()),
		"sp":     fmt.Sprintf("%04X", c.SP),
		"flags":  c.F.String(),
		"cycles": c.Cycles(),
	}).Debug(text)
}

// Run ticks until maxSteps instructions have run, the CPU halts with no way
// to wake up, or an error occurs. It returns the number of steps taken.
func (m *Machine) Run(maxSteps int) (int, error) {
	return m.RunContext(context.Background(), maxSteps)
}

// RunContext is Run with cancellation, checked every 4096 steps.
func (m *Machine) RunContext(ctx context.Context, maxSteps int) (int, error) {
	steps := 0
	for steps < maxSteps {
		if m.cpu.Stuck() {
			m.log.WithField("pc", fmt.Sprintf("%04X", m.cpu.PC)).Debug("halted with interrupts disabled")
			return steps, nil
		}
		if steps&0xFFF == 0 {
			if err := ctx.Err(); err != nil {
				return steps, err
			}
		}
		if _, err := m.Tick(); err != nil {
			return steps, err
		}
		steps++
	}
	return steps, nil
}

// StepFrame runs until the frame clock crosses the next boundary.
func (m *Machine) StepFrame() error {
	start := m.frames
	for m.frames == start {
		if _, err := m.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Schedule queues an event at the absolute T-state due.
func (m *Machine) Schedule(kind event.Kind, due uint64) {
	m.cpu.Schedule(kind, due)
}

// ScheduleIn queues an event delay T-states from now.
func (m *Machine) ScheduleIn(kind event.Kind, delay uint64) {
	m.cpu.ScheduleIn(kind, delay)
}

// ScheduleEvery raises kind every period T-states, starting one period
// from now. Timer entries go to the handler set with SetTimerHandler.
// It returns an id for CancelEvery.
func (m *Machine) ScheduleEvery(kind event.Kind, period uint64) (int, error) {
	if period == 0 {
		return 0, &emuerr.SystemError{Msg: "periodic event needs a nonzero period"}
	}
	if len(m.timers) >= maxPeriodic {
		return 0, &emuerr.SystemError{Msg: "too many periodic events"}
	}
	id := len(m.timers)
	m.timers = append(m.timers, periodic{Kind: kind, Period: period})
	m.cpu.Events().PushEvent(event.Event{
		Kind: event.Timer,
		Due:  m.cpu.Cycles() + period,
		Data: byte(id + 1),
	})
	return id, nil
}

// CancelEvery stops a periodic event after any delivery already queued.
func (m *Machine) CancelEvery(id int) {
	if id >= 0 && id < len(m.timers) {
		m.timers[id].Period = 0
	}
}

func (m *Machine) handleTimer(c *cpu.CPU, ev event.Event) error {
	id := int(ev.Data) - 1
	if id < 0 || id >= len(m.timers) {
		if m.onTimer != nil {
			return m.onTimer(m, ev)
		}
		return nil
	}
	p := m.timers[id]
	if p.Period == 0 {
		return nil
	}
	next := ev
	next.Due += p.Period
	c.Events().PushEvent(next)
	switch p.Kind {
	case event.Interrupt:
		c.RequestInterrupt()
	case event.NMI:
		c.RequestNMI()
	default:
		if m.onTimer != nil {
			return m.onTimer(m, ev)
		}
	}
	return nil
}
