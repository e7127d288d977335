package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/machine"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/monitor"
)

const helpText = `keys: space/s step  c continue  f frame  b breakpoint at PC
      i INT  n NMI  m memory at HL  r reset  ? help  q quit`

// rawWriter turns \n into \r\n while the terminal is in raw mode.
type rawWriter struct{ w io.Writer }

func (r rawWriter) Write(p []byte) (int, error) {
	_, err := io.WriteString(r.w, strings.ReplaceAll(string(p), "\n", "\r\n"))
	return len(p), err
}

// interactive reads single keys from in and steps the machine.
func interactive(ctx context.Context, m *machine.Machine, in *os.File, out io.Writer) error {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("-interactive needs a terminal on stdin")
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, old)

	w := rawWriter{out}
	log := m.Logger()
	prevOut := log.Out
	log.SetOutput(w)
	defer log.SetOutput(prevOut)

	bp := monitor.Breakpoints{}
	show := func() {
		c := m.CPU()
		fmt.Fprintln(w, strings.Join(monitor.Registers(c), "  |  "))
		fmt.Fprintln(w, strings.Join(monitor.Disassembly(c, c.PC, 1), ""))
	}
	fmt.Fprintln(w, helpText)
	show()

	key := make([]byte, 1)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := in.Read(key); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		c := m.CPU()
		switch key[0] {
		case ' ', 's':
			if _, err := m.Tick(); err != nil {
				fmt.Fprintln(w, err)
			}
		case 'c':
			if err := continueTo(ctx, m, bp); err != nil {
				fmt.Fprintln(w, err)
			}
		case 'f':
			if err := m.StepFrame(); err != nil {
				fmt.Fprintln(w, err)
			}
		case 'b':
			if bp.Toggle(c.PC) {
				fmt.Fprintf(w, "breakpoint set at %04X\n", c.PC)
			} else {
				fmt.Fprintf(w, "breakpoint cleared at %04X\n", c.PC)
			}
			continue
		case 'i':
			c.RequestInterrupt()
		case 'n':
			c.RequestNMI()
		case 'm':
			fmt.Fprintln(w, strings.Join(monitor.HexDump(m.Memory(), c.HL(), 4), "\n"))
			continue
		case 'r':
			m.Reset()
		case '?', 'h':
			fmt.Fprintln(w, helpText)
			continue
		case 'q', 3, 4: // q, Ctrl-C, Ctrl-D
			return nil
		default:
			continue
		}
		show()
	}
}

// continueTo runs until a breakpoint, a dead HALT, an error or cancellation.
func continueTo(ctx context.Context, m *machine.Machine, bp monitor.Breakpoints) error {
	c := m.CPU()
	for n := 0; ; n++ {
		if c.Stuck() {
			return nil
		}
		if n > 0 && bp.Has(c.PC) {
			return nil
		}
		if n&0xFFF == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, err := m.Tick(); err != nil {
			return err
		}
	}
}
