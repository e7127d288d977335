// Package script drives a machine from Lua. Scripts see a global z80 table
// whose functions load code, step the CPU, inspect and patch registers and
// memory, and queue interrupts.
package script

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/event"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/machine"
)

// DefaultRunSteps bounds z80.run() when the script gives no limit.
const DefaultRunSteps = 1_000_000

// Env is a Lua state bound to one machine.
type Env struct {
	m       *machine.Machine
	L       *lua.LState
	console bytes.Buffer
	onTimer *lua.LFunction
}

// New creates a Lua state with the z80 module installed.
func New(m *machine.Machine) *Env {
	e := &Env{m: m, L: lua.NewState()}
	e.install()
	return e
}

func (e *Env) Close() { e.L.Close() }

// Console returns everything captured by z80.console so far.
func (e *Env) Console() string { return e.console.String() }

// DoString runs a chunk of Lua.
func (e *Env) DoString(ctx context.Context, source string) error {
	e.L.SetContext(ctx)
	if err := e.L.DoString(source); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

// DoFile runs a Lua file.
func (e *Env) DoFile(ctx context.Context, path string) error {
	e.L.SetContext(ctx)
	if err := e.L.DoFile(path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// Run executes source against m in a fresh Lua state.
func Run(m *machine.Machine, source string) error {
	e := New(m)
	defer e.Close()
	return e.DoString(context.Background(), source)
}

// RunFile is Run for a file on disk.
func RunFile(ctx context.Context, m *machine.Machine, path string) error {
	e := New(m)
	defer e.Close()
	return e.DoFile(ctx, path)
}

func (e *Env) install() {
	mod := e.L.SetFuncs(e.L.NewTable(), map[string]lua.LGFunction{
		"load":     e.load,
		"step":     e.step,
		"run":      e.run,
		"reset":    e.reset,
		"reg":      e.reg,
		"setreg":   e.setreg,
		"flag":     e.flag,
		"flags":    e.flags,
		"peek":     e.peek,
		"poke":     e.poke,
		"pc":       e.pc,
		"cycles":   e.cycles,
		"halted":   e.halted,
		"irq":      e.irq,
		"nmi":      e.nmi,
		"schedule": e.schedule,
		"every":    e.every,
		"cancel":   e.cancel,
		"ontimer":  e.ontimer,
		"console":  e.attachConsole,
		"output":   e.output,
		"disasm":   e.disasm,
		"log":      e.log,
	})
	e.L.SetGlobal("z80", mod)
}

func (e *Env) cpu() *cpu.CPU { return e.m.CPU() }

func (e *Env) raise(L *lua.LState, err error) int {
	L.RaiseError("%s", err.Error())
	return 0
}

// checkAddr reads a 16-bit address argument.
func checkAddr(L *lua.LState, n int) uint16 {
	v := L.CheckInt(n)
	if v < 0 || v > 0xFFFF {
		L.ArgError(n, fmt.Sprintf("address %d out of range", v))
	}
	return uint16(v)
}

// bytesArg accepts a Lua string or an array of numbers.
func bytesArg(L *lua.LState, n int) []byte {
	switch v := L.Get(n).(type) {
	case lua.LString:
		return []byte(string(v))
	case *lua.LTable:
		out := make([]byte, 0, v.Len())
		for i := 1; i <= v.Len(); i++ {
			num, ok := v.RawGetInt(i).(lua.LNumber)
			if !ok {
				L.ArgError(n, fmt.Sprintf("element %d is not a number", i))
			}
			out = append(out, byte(int(num)))
		}
		return out
	}
	L.TypeError(n, lua.LTTable)
	return nil
}

// z80.load(addr, data) copies data to addr and points PC at it.
func (e *Env) load(L *lua.LState) int {
	addr := checkAddr(L, 1)
	if err := e.m.LoadProgram(addr, bytesArg(L, 2)); err != nil {
		return e.raise(L, err)
	}
	return 0
}

// z80.step([n]) runs n instructions and returns the T-states spent.
func (e *Env) step(L *lua.LState) int {
	n := L.OptInt(1, 1)
	total := 0
	for i := 0; i < n; i++ {
		t, err := e.m.Tick()
		total += t
		if err != nil {
			return e.raise(L, err)
		}
	}
	L.Push(lua.LNumber(total))
	return 1
}

// z80.run([max]) runs until a dead HALT or max steps and returns the step count.
func (e *Env) run(L *lua.LState) int {
	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	steps, err := e.m.RunContext(ctx, L.OptInt(1, DefaultRunSteps))
	if err != nil {
		return e.raise(L, err)
	}
	L.Push(lua.LNumber(steps))
	return 1
}

func (e *Env) reset(L *lua.LState) int {
	e.m.Reset()
	return 0
}

// z80.reg(name) reads an 8-bit register or a register pair.
func (e *Env) reg(L *lua.LState) int {
	name := strings.ToUpper(L.CheckString(1))
	c := e.cpu()
	if v, ok := c.Reg8(name); ok {
		L.Push(lua.LNumber(v))
		return 1
	}
	if v, ok := c.Pair(name); ok {
		L.Push(lua.LNumber(v))
		return 1
	}
	L.ArgError(1, "unknown register "+name)
	return 0
}

func (e *Env) setreg(L *lua.LState) int {
	name := strings.ToUpper(L.CheckString(1))
	v := L.CheckInt(2)
	c := e.cpu()
	if _, ok := c.Reg8(name); ok {
		c.SetReg8(name, byte(v))
		return 0
	}
	if !c.SetPair(name, uint16(v)) {
		L.ArgError(1, "unknown register "+name)
	}
	return 0
}

// z80.flag(name) reports one flag as a boolean.
func (e *Env) flag(L *lua.LState) int {
	mask, ok := cpu.FlagByName(L.CheckString(1))
	if !ok {
		L.ArgError(1, "unknown flag")
	}
	L.Push(lua.LBool(e.cpu().F.Has(mask)))
	return 1
}

func (e *Env) flags(L *lua.LState) int {
	L.Push(lua.LString(e.cpu().F.String()))
	return 1
}

func (e *Env) peek(L *lua.LState) int {
	L.Push(lua.LNumber(e.m.Memory().Read(checkAddr(L, 1))))
	return 1
}

func (e *Env) poke(L *lua.LState) int {
	addr := checkAddr(L, 1)
	e.m.Memory().Write(addr, byte(L.CheckInt(2)))
	return 0
}

func (e *Env) pc(L *lua.LState) int {
	L.Push(lua.LNumber(e.cpu().PC))
	return 1
}

func (e *Env) cycles(L *lua.LState) int {
	L.Push(lua.LNumber(e.cpu().Cycles()))
	return 1
}

func (e *Env) halted(L *lua.LState) int {
	L.Push(lua.LBool(e.cpu().Halted()))
	return 1
}

// z80.irq([vector]) asserts the maskable line, optionally with a mode 2 vector.
func (e *Env) irq(L *lua.LState) int {
	if L.GetTop() >= 1 {
		e.cpu().SetInterruptVector(byte(L.CheckInt(1)))
	}
	e.cpu().RequestInterrupt()
	return 0
}

func (e *Env) nmi(L *lua.LState) int {
	e.cpu().RequestNMI()
	return 0
}

func checkKind(L *lua.LState, n int) event.Kind {
	name := L.CheckString(n)
	kind, ok := event.ParseKind(strings.ToLower(name))
	if !ok {
		L.ArgError(n, "unknown event kind "+name)
	}
	return kind
}

// z80.schedule(kind, due) queues an event at an absolute T-state.
func (e *Env) schedule(L *lua.LState) int {
	kind := checkKind(L, 1)
	e.m.Schedule(kind, uint64(L.CheckInt64(2)))
	return 0
}

// z80.every(kind, period) returns an id for z80.cancel.
func (e *Env) every(L *lua.LState) int {
	kind := checkKind(L, 1)
	id, err := e.m.ScheduleEvery(kind, uint64(L.CheckInt64(2)))
	if err != nil {
		return e.raise(L, err)
	}
	L.Push(lua.LNumber(id))
	return 1
}

func (e *Env) cancel(L *lua.LState) int {
	e.m.CancelEvery(L.CheckInt(1))
	return 0
}

// z80.ontimer(fn) routes timer events to fn(due). nil removes the handler.
func (e *Env) ontimer(L *lua.LState) int {
	if L.Get(1) == lua.LNil {
		e.onTimer = nil
		e.m.SetTimerHandler(nil)
		return 0
	}
	e.onTimer = L.CheckFunction(1)
	e.m.SetTimerHandler(e.timer)
	return 0
}

func (e *Env) timer(m *machine.Machine, ev event.Event) error {
	if e.onTimer == nil {
		return nil
	}
	return e.L.CallByParam(lua.P{
		Fn:      e.onTimer,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(ev.Due))
}

// z80.console(port) captures OUT bytes on port for z80.output().
func (e *Env) attachConsole(L *lua.LState) int {
	port := L.CheckInt(1)
	if port < 0 || port > 0xFF {
		L.ArgError(1, "port out of range")
	}
	e.m.Memory().SetPortWriter(byte(port), &e.console)
	return 0
}

func (e *Env) output(L *lua.LState) int {
	L.Push(lua.LString(e.console.String()))
	return 1
}

// z80.disasm(addr) returns the mnemonic text and the instruction length.
func (e *Env) disasm(L *lua.LState) int {
	text, n, err := e.cpu().Disassemble(checkAddr(L, 1))
	if err != nil {
		return e.raise(L, err)
	}
	L.Push(lua.LString(text))
	L.Push(lua.LNumber(n))
	return 2
}

func (e *Env) log(L *lua.LState) int {
	e.m.Logger().WithFields(logrus.Fields{
		"pc":     fmt.Sprintf("%04X", e.cpu().PC),
		"cycles": e.cpu().Cycles(),
	}).Info(L.CheckString(1))
	return 0
}
